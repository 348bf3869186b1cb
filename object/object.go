// Package object implements the PDF object model: the tagged value types a
// document is built from, plus the indirect-reference bookkeeping (ObjGen)
// used to tie them together.
//
// The interface shape (Object, Clone, PDFString, String) follows the
// teacher's pdfcpu-derived parser.Object interface; Dict is generalized here
// into an insertion-order-preserving structure (the teacher's Dict is a bare
// map, which cannot preserve key order), and Stream/indirect-reference
// handling is added to match the full object model a document loader needs.
package object

import (
	"fmt"
	"strconv"
)

// Kind tags the dynamic type of an Object, matching the sum type a PDF
// value can take plus the bookkeeping states a loader passes an object
// handle through while resolving it.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindReal
	KindString
	KindName
	KindArray
	KindDictionary
	KindStream
	KindOperator
	KindInlineImage
	// KindReserved marks a placeholder object number allocated (e.g. by the
	// cross-document copier) before its value is known, breaking reference
	// cycles during a copy.
	KindReserved
	// KindUnresolved marks an indirect reference whose target has not yet
	// been fetched from the xref table.
	KindUnresolved
	// KindDestroyed marks an object number that has been explicitly freed;
	// resolving it yields Null per the free-list contract of the xref table.
	KindDestroyed
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindName:
		return "name"
	case KindArray:
		return "array"
	case KindDictionary:
		return "dictionary"
	case KindStream:
		return "stream"
	case KindOperator:
		return "operator"
	case KindInlineImage:
		return "inline-image"
	case KindReserved:
		return "reserved"
	case KindUnresolved:
		return "unresolved"
	case KindDestroyed:
		return "destroyed"
	default:
		return "<invalid kind>"
	}
}

// ObjGen is an (object number, generation number) pair identifying an
// indirect object within one document. The zero value, (0,0), by convention
// never names a real indirect object and is used as the ObjGen of a direct
// (non-indirect) value.
type ObjGen struct {
	Num int
	Gen int
}

func (og ObjGen) String() string { return fmt.Sprintf("%d %d R", og.Num, og.Gen) }

// IsDirect reports whether og is the sentinel (0,0) used for values that are
// not behind an indirect reference.
func (og ObjGen) IsDirect() bool { return og.Num == 0 && og.Gen == 0 }

// Object is implemented by every concrete PDF value type. It mirrors the
// teacher's parser.Object interface (String/Clone/PDFString) and adds Kind
// so callers can type-switch-free dispatch on the tagged union.
type Object interface {
	fmt.Stringer
	Kind() Kind
	// Clone performs a shallow copy: scalars are copied by value; Array,
	// Dict, Stream clone their own top-level container but share children,
	// per the spec's "shallow copy" operation.
	Clone() Object
	// PDFString renders the canonical on-disk syntax for this value. It
	// never resolves indirect references — Reference renders "N G R".
	PDFString() string
}

// Null is the PDF null object. It is also returned by Dict.Get for an
// absent key and by resolving a KindDestroyed (freed) indirect reference.
type Null struct{}

func (Null) Kind() Kind        { return KindNull }
func (Null) String() string    { return "null" }
func (Null) Clone() Object     { return Null{} }
func (Null) PDFString() string { return "null" }

// Boolean is the PDF boolean object.
type Boolean bool

func (b Boolean) Kind() Kind     { return KindBoolean }
func (b Boolean) Clone() Object  { return b }
func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }
func (b Boolean) PDFString() string {
	return b.String()
}

// Integer is the PDF integer numeric object.
type Integer int64

func (i Integer) Kind() Kind        { return KindInteger }
func (i Integer) Clone() Object     { return i }
func (i Integer) String() string    { return strconv.FormatInt(int64(i), 10) }
func (i Integer) PDFString() string { return i.String() }

// Real is the PDF real numeric object. PDFString uses a fixed, locale
// independent decimal form (never scientific notation, which PDF forbids on
// output even though the tokenizer tolerates it on input).
type Real float64

func (r Real) Kind() Kind     { return KindReal }
func (r Real) Clone() Object  { return r }
func (r Real) String() string { return fmt.Sprintf("%.6f", float64(r)) }
func (r Real) PDFString() string {
	s := strconv.FormatFloat(float64(r), 'f', -1, 64)
	return s
}

// Name is the PDF name object, stored already hex-unescaped. PDFString
// re-escapes any byte that must not appear literally in a name on output.
type Name string

func (n Name) Kind() Kind     { return KindName }
func (n Name) Clone() Object  { return n }
func (n Name) String() string { return "/" + string(n) }
func (n Name) PDFString() string {
	out := make([]byte, 0, len(n)+1)
	out = append(out, '/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c == 0 || c > 0x7e || isNameDelim(c) || c == '#' {
			out = append(out, '#', hexDigit(c>>4), hexDigit(c&0xf))
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

func isNameDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%', ' ', '\t', '\n', '\r', '\f', 0x0b:
		return true
	}
	return false
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + (n - 10)
}

// Operator is a content-stream or other bare keyword token kept as an
// object (e.g. while round-tripping an object stream's compressed payload
// verbatim). The writer never needs to interpret it.
type Operator string

func (o Operator) Kind() Kind        { return KindOperator }
func (o Operator) Clone() Object     { return o }
func (o Operator) String() string    { return string(o) }
func (o Operator) PDFString() string { return string(o) }

// reservedSentinel is the value installed for a KindReserved placeholder
// created by the cross-document copier to break reference cycles.
type reservedSentinel struct{}

func (reservedSentinel) Kind() Kind        { return KindReserved }
func (reservedSentinel) Clone() Object     { return reservedSentinel{} }
func (reservedSentinel) String() string    { return "<reserved>" }
func (reservedSentinel) PDFString() string { return "null" }

// Reserved is the shared placeholder Object for a not-yet-materialized
// indirect object.
var Reserved Object = reservedSentinel{}

type destroyedSentinel struct{}

func (destroyedSentinel) Kind() Kind        { return KindDestroyed }
func (destroyedSentinel) Clone() Object     { return destroyedSentinel{} }
func (destroyedSentinel) String() string    { return "<destroyed>" }
func (destroyedSentinel) PDFString() string { return "null" }

// Destroyed is the shared placeholder Object left at an explicitly freed
// object number; resolving it behaves as Null.
var Destroyed Object = destroyedSentinel{}
