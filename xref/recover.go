package xref

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/holoq/qpdf/object"
	"github.com/holoq/qpdf/objparse"
)

// recoveryObjectCap bounds how many "N G obj" declarations brute-force
// recovery will register before giving up, so a pathological or non-PDF
// input can't spin forever (see SPEC_FULL.md's Supplemented Features).
const recoveryObjectCap = 2_000_000

// Recover rebuilds a Table by scanning source byte-by-byte for "N G obj"
// declarations, ignoring whatever cross-reference data (if any) the file
// claims to have. It is the last resort when Load's offset chain cannot be
// followed at all, grounded in the teacher's bypassXrefSection — but
// reimplemented as a whole-buffer scan instead of a line reader, since this
// module holds the full file in memory rather than streaming it.
func Recover(source []byte) (*Table, error) {
	t := New(source)
	t.Reconstructed = true
	t.SetIfAbsent(0, 65535, Entry{Type: EntryFree, Generation: 65535})

	count := 0
	for i := 0; i < len(source); i++ {
		num, gen, next, ok := matchObjDeclaration(source, i)
		if !ok {
			continue
		}
		// Later declarations of the same object number win: a damaged file
		// recovered this way has no reliable "newest first" ordering, so
		// prefer the last occurrence in byte order, which for a linearly
		// appended/incrementally updated file is the most recent write.
		t.Set(num, gen, Entry{Type: EntryInUse, Offset: int64(i), Generation: gen})
		count++
		if count >= recoveryObjectCap {
			t.warn("recovery capped after scanning %d object declarations", count)
			break
		}
		i = next - 1 // loop's i++ resumes right after the match
	}

	trailer, ok := findTrailerDict(source)
	if !ok {
		trailer, ok = synthesizeTrailerFromCatalog(t)
	}
	if !ok {
		return nil, errors.New("xref: recovery found no trailer and no Catalog object to synthesize one from")
	}
	t.Trailer = trailer
	return t, nil
}

// matchObjDeclaration reports whether source[i:] begins, at a token
// boundary, with "<num> <gen> obj" (optionally followed by more content,
// not validated here) and returns the object/generation numbers and the
// offset just past the "obj" keyword.
func matchObjDeclaration(src []byte, i int) (num, gen, next int, ok bool) {
	if i > 0 && isAlnum(src[i-1]) {
		return 0, 0, 0, false // mid-token, not a boundary
	}
	j := i
	numStart := j
	for j < len(src) && isDigit(src[j]) {
		j++
	}
	if j == numStart {
		return 0, 0, 0, false
	}
	num, _ = strconv.Atoi(string(src[numStart:j]))

	if j >= len(src) || !isPDFSpace(src[j]) {
		return 0, 0, 0, false
	}
	for j < len(src) && isPDFSpace(src[j]) {
		j++
	}

	genStart := j
	for j < len(src) && isDigit(src[j]) {
		j++
	}
	if j == genStart {
		return 0, 0, 0, false
	}
	gen, _ = strconv.Atoi(string(src[genStart:j]))

	if j >= len(src) || !isPDFSpace(src[j]) {
		return 0, 0, 0, false
	}
	for j < len(src) && isPDFSpace(src[j]) {
		j++
	}

	if j+3 > len(src) || string(src[j:j+3]) != "obj" {
		return 0, 0, 0, false
	}
	j += 3
	if j < len(src) && isAlnum(src[j]) {
		return 0, 0, 0, false // e.g. "objA", not the keyword itself
	}
	return num, gen, j, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isAlnum(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isPDFSpace(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

// findTrailerDict locates the last "trailer" keyword in source and parses
// the dictionary that follows it.
func findTrailerDict(source []byte) (*object.Dict, bool) {
	idx := bytes.LastIndex(source, []byte("trailer"))
	if idx < 0 {
		return nil, false
	}
	obj, err := objparse.New(source[idx+len("trailer"):]).ParseObject()
	if err != nil {
		return nil, false
	}
	d, ok := obj.(*object.Dict)
	return d, ok
}

// synthesizeTrailerFromCatalog builds a minimal trailer by scanning every
// recovered object for a /Type /Catalog dictionary, used when a file has no
// "trailer" keyword at all (e.g. it only ever had cross-reference streams,
// themselves unparseable, or was truncated before the trailer was written).
func synthesizeTrailerFromCatalog(t *Table) (*object.Dict, bool) {
	maxNum := 0
	for og := range t.entries {
		if og.Num > maxNum {
			maxNum = og.Num
		}
	}

	for og, entry := range t.entries {
		if entry.Type != EntryInUse {
			continue
		}
		def, err := objparse.ParseObjectDefinition(t.source[entry.Offset:], false)
		if err != nil {
			continue
		}
		d, ok := def.Value.(*object.Dict)
		if !ok {
			continue
		}
		if name, ok := d.Get("Type").(object.Name); ok && name == "Catalog" {
			trailer := object.NewDict()
			trailer.Set("Root", object.NewReference(og.Num, og.Gen))
			trailer.Set("Size", object.Integer(maxNum+1))
			return trailer, true
		}
	}
	return nil, false
}
