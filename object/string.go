package object

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// StringForm records whether a String object was written/should be written
// using literal "(...)" or hex "<...>" syntax, matching the teacher's split
// between StringLiteral and HexLiteral.
type StringForm uint8

const (
	Literal StringForm = iota
	Hex
)

// String is the PDF string object. Raw holds the exact decoded bytes (after
// tokenizer escape processing); no text encoding is assumed at this level.
type String struct {
	Raw  []byte
	Form StringForm
}

func NewLiteralString(raw []byte) String { return String{Raw: raw, Form: Literal} }
func NewHexString(raw []byte) String     { return String{Raw: raw, Form: Hex} }

func (s String) Kind() Kind { return KindString }
func (s String) Clone() Object {
	raw := make([]byte, len(s.Raw))
	copy(raw, s.Raw)
	return String{Raw: raw, Form: s.Form}
}
func (s String) String() string { return fmt.Sprintf("(%s)", s.Text()) }

func (s String) PDFString() string {
	if s.Form == Hex {
		return "<" + fmt.Sprintf("%x", s.Raw) + ">"
	}
	var buf bytes.Buffer
	buf.WriteByte('(')
	for _, b := range s.Raw {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\r':
			buf.WriteString(`\r`)
		case '\n':
			buf.WriteString(`\n`)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(')')
	return buf.String()
}

// Text returns the UTF-8 normalization of the string's raw bytes, per spec
// §4.3: recognize a UTF-16BE BOM (FE FF) or UTF-16LE BOM (FF FE), a UTF-8 BOM
// (EF BB BF), and otherwise treat the bytes as PDFDocEncoding (here
// approximated as Latin-1, which PDFDocEncoding matches for the printable
// ASCII range that by far dominates real-world text strings).
func (s String) Text() string {
	raw := s.Raw
	switch {
	case len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF:
		dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		out, err := dec.Bytes(raw[2:])
		if err == nil {
			return string(out)
		}
	case len(raw) >= 2 && raw[0] == 0xFF && raw[1] == 0xFE:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		out, err := dec.Bytes(raw[2:])
		if err == nil {
			return string(out)
		}
	case len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF:
		return string(raw[3:])
	}
	return pdfDocToUTF8(raw)
}

// NewTextString encodes s as UTF-16BE with a leading BOM, the conforming way
// to write a non-ASCII text string, matching the teacher's encodeTextString
// use in writer/writer.go. Pure-ASCII text is written as PDFDocEncoding
// (identity for ASCII) without a BOM, avoiding needless UTF-16 bloat.
func NewTextString(utf8Text string) String {
	isASCII := true
	for i := 0; i < len(utf8Text); i++ {
		if utf8Text[i] > 0x7e {
			isASCII = false
			break
		}
	}
	if isASCII {
		return NewLiteralString([]byte(utf8Text))
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	out, err := enc.Bytes([]byte(utf8Text))
	if err != nil {
		return NewLiteralString([]byte(utf8Text))
	}
	return NewLiteralString(out)
}

// pdfDocToUTF8 decodes PDFDocEncoding. Bytes 0x00-0x7f and 0xa0-0xff align
// with Latin-1/Unicode in PDFDocEncoding for the characters real-world
// strings overwhelmingly use; the handful of remapped control-range glyphs
// (0x18-0x1f, 0x80-0x9f) are mapped via pdfDocHighTable.
func pdfDocToUTF8(raw []byte) string {
	var buf bytes.Buffer
	for _, b := range raw {
		if r, ok := pdfDocHighTable[b]; ok {
			buf.WriteRune(r)
			continue
		}
		buf.WriteRune(rune(b))
	}
	return buf.String()
}

// pdfDocHighTable covers the PDFDocEncoding code points that diverge from
// Latin-1 (Table D.2 of the PDF specification), notably Euro, smart quotes
// and dashes placed in 0x18-0x1f and 0x80-0x9f.
var pdfDocHighTable = map[byte]rune{
	0x18: 0x02D8, 0x19: 0x02C7, 0x1A: 0x02C6, 0x1B: 0x02D9,
	0x1C: 0x02DD, 0x1D: 0x02DB, 0x1E: 0x02DA, 0x1F: 0x02DC,
	0x80: 0x2022, 0x81: 0x2020, 0x82: 0x2021, 0x83: 0x2026,
	0x84: 0x2014, 0x85: 0x2013, 0x86: 0x0192, 0x87: 0x2044,
	0x88: 0x2039, 0x89: 0x203A, 0x8A: 0x2212, 0x8B: 0x2030,
	0x8C: 0x201E, 0x8D: 0x201C, 0x8E: 0x201D, 0x8F: 0x2018,
	0x90: 0x2019, 0x91: 0x201A, 0x92: 0x2122, 0x93: 0xFB01,
	0x94: 0xFB02, 0x95: 0x0141, 0x96: 0x0152, 0x97: 0x0160,
	0x98: 0x0178, 0x99: 0x017D, 0x9A: 0x0131, 0x9B: 0x0142,
	0x9C: 0x0153, 0x9D: 0x0161, 0x9E: 0x017E, 0x9F: 0x20AC,
}
