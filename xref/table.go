// Package xref implements the Xref & object loader component: parsing
// classic cross-reference tables and cross-reference streams, following the
// /Prev chain, decoding object streams, recovering from damage by
// brute-force scanning, and resolving indirect references into object
// values with cycle protection.
//
// Grounded in the teacher's reader/file/xreftable.go, read.go and
// object_streams.go, generalized from the teacher's typed Document model to
// resolve into the generic object.Object tree.
package xref

import (
	"fmt"

	"github.com/holoq/qpdf/internal/xlog"
	"github.com/holoq/qpdf/object"
)

// EntryType tags how an xref Entry locates its object.
type EntryType uint8

const (
	EntryFree EntryType = iota
	EntryInUse
	EntryCompressed
)

// Entry is one cross-reference table row: either a free (deleted) object
// number, a regular object at a byte offset, or an object packed inside an
// object stream.
type Entry struct {
	Type EntryType

	Offset     int64 // valid when Type == EntryInUse
	Generation int

	StreamObjNum int // valid when Type == EntryCompressed: the /ObjStm's object number
	StreamIndex  int // this object's index within that object stream
}

// DefaultMaxWarnings is the initial Table.MaxWarnings, the number of
// warnings a Table records (see SPEC_FULL.md's Supplemented Features).
// Once the cap is reached, further warnings are neither recorded nor
// logged, and loading goes on; excess warnings do not become an error.
const DefaultMaxWarnings = 1000

// Table is the cross-reference table for one document: the entries plus a
// resolution cache. It implements object.Resolve via Resolve.
type Table struct {
	source []byte

	entries map[object.ObjGen]*Entry

	cache     map[object.ObjGen]object.Object
	resolving map[object.ObjGen]bool

	objStreamCache map[int][]object.Object

	Trailer *object.Dict

	MaxWarnings int
	Warnings    []string

	// Reconstructed is set by Recover: this Table's entries came from a
	// brute-force "N G obj" scan rather than a trusted table/stream, which
	// per spec §4.9 selects one of two duplicate-page behaviors.
	Reconstructed bool

	// Decrypt, when non-nil, is invoked on every freshly parsed object
	// (other than ones already inside an object stream, which per spec are
	// never separately encrypted) before it is cached. Wired by the crypt
	// package once a document's Encrypt dictionary has been negotiated.
	Decrypt func(obj object.Object, og object.ObjGen) (object.Object, error)
}

// New creates an empty Table over the given file bytes. Entries are
// populated by Load (classic/xref-stream parsing) or Recover (brute force).
func New(source []byte) *Table {
	return &Table{
		source:         source,
		entries:        map[object.ObjGen]*Entry{},
		cache:          map[object.ObjGen]object.Object{},
		resolving:      map[object.ObjGen]bool{},
		objStreamCache: map[int][]object.Object{},
		MaxWarnings:    DefaultMaxWarnings,
	}
}

func (t *Table) warn(format string, args ...interface{}) {
	if len(t.Warnings) >= t.MaxWarnings {
		return
	}
	msg := fmt.Sprintf(format, args...)
	t.Warnings = append(t.Warnings, msg)
	xlog.Xref.Println(msg)
}

// Set installs or overwrites the entry for (num,gen). Parsing the most
// recent xref section first and skipping already-set entries while
// following /Prev (as the teacher's parseXRefTableEntry does) gives correct
// "newest wins" precedence across incremental updates.
func (t *Table) Set(num, gen int, e Entry) {
	t.entries[object.ObjGen{Num: num, Gen: gen}] = &e
}

// SetIfAbsent installs e only if no entry for (num,gen) exists yet.
func (t *Table) SetIfAbsent(num, gen int, e Entry) {
	og := object.ObjGen{Num: num, Gen: gen}
	if _, ok := t.entries[og]; ok {
		return
	}
	t.entries[og] = &e
}

// Lookup returns the raw Entry for og, if any.
func (t *Table) Lookup(og object.ObjGen) (*Entry, bool) {
	e, ok := t.entries[og]
	return e, ok
}

// Entries exposes every known (ObjGen, Entry) pair, e.g. for the writer's
// breadth-first enqueue or a consistency checker.
func (t *Table) Entries() map[object.ObjGen]*Entry {
	return t.entries
}

// Resolve implements object.Resolve: fetch and fully parse the object bound
// to og, caching the result. A reference to an undefined or explicitly
// freed object resolves to (Null{}, true) per PDF 7.3.10 ("a reference to
// an undefined object shall not be considered an error ... it shall be
// treated as a reference to the null object"). An object that fails to
// parse is logged as a warning and also resolves to Null; the boolean is
// always true.
func (t *Table) Resolve(og object.ObjGen) (object.Object, bool) {
	if v, ok := t.cache[og]; ok {
		return v, true
	}

	entry, ok := t.entries[og]
	if !ok || entry.Type == EntryFree {
		return object.Null{}, true
	}

	if t.resolving[og] {
		// Cache-with-cycle-protection: a reference encountered again while
		// still being resolved sees the placeholder, breaking the cycle
		// instead of recursing forever.
		return object.Reserved, true
	}
	t.resolving[og] = true
	t.cache[og] = object.Null{} // placeholder, replaced below
	defer delete(t.resolving, og)

	var (
		val object.Object
		err error
	)
	switch entry.Type {
	case EntryCompressed:
		val, err = t.resolveCompressed(entry)
	default:
		val, err = t.resolveDirect(og, entry)
	}
	if err != nil {
		t.warn("resolving %s: %v", og, err)
		val = object.Null{}
	}

	if t.Decrypt != nil && entry.Type != EntryCompressed && err == nil {
		// Objects inside an object stream are never separately encrypted
		// (spec §4.7); only directly-offset objects pass through Decrypt.
		decrypted, derr := t.Decrypt(val, og)
		if derr != nil {
			t.warn("decrypting %s: %v", og, derr)
		} else {
			val = decrypted
		}
	}

	t.cache[og] = val
	return val, true
}

func (t *Table) resolveCompressed(entry *Entry) (object.Object, error) {
	objs, err := t.objectStream(entry.StreamObjNum)
	if err != nil {
		return nil, err
	}
	if entry.StreamIndex < 0 || entry.StreamIndex >= len(objs) {
		return nil, fmt.Errorf("object stream index %d out of range (%d objects)", entry.StreamIndex, len(objs))
	}
	return objs[entry.StreamIndex], nil
}

// ResolveShallow resolves a Reference at most one level, returning the
// direct value without recursively walking into it — used by callers (Open's
// /Encrypt lookup) that only need the immediate target.
func (t *Table) ResolveShallow(o object.Object) object.Object {
	ref, ok := o.(object.Reference)
	if !ok {
		return o
	}
	v, _ := t.Resolve(ref.ObjGen())
	return v
}

// MakeDirect recursively replaces indirect references reachable from o with
// their resolved values, via object.MakeDirect bound to this table.
func (t *Table) MakeDirect(o object.Object, allowStreamSubstitution bool) (object.Object, error) {
	return object.MakeDirect(o, t.Resolve, allowStreamSubstitution)
}
