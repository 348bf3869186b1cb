package xref

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/holoq/qpdf/filter"
	"github.com/holoq/qpdf/object"
	"github.com/holoq/qpdf/objparse"
	"github.com/holoq/qpdf/token"
)

var errCorruptHeader = errors.New("xref: missing or corrupt %PDF- header")

// HeaderVersion is the PDF version claimed by the file's first line, e.g.
// "1.7". It is the only version source Open reads; a Catalog /Version
// entry is not consulted.
func HeaderVersion(source []byte) (string, error) {
	n := len(source)
	if n > 1024 {
		n = 1024
	}
	s := string(source[:n])
	const prefix = "%PDF-"
	idx := strings.Index(s, prefix)
	if idx < 0 || idx+len(prefix)+3 > len(s) {
		return "", errCorruptHeader
	}
	return s[idx+len(prefix) : idx+len(prefix)+3], nil
}

// Load builds a Table for source by locating the file's last
// cross-reference section via its trailing "startxref" pointer and
// following classic xref tables and/or cross-reference streams through
// their /Prev (and hybrid /XRefStm) chains, matching the teacher's
// buildXRefTableStartingAt. If the chain cannot be followed at all (no
// startxref, or every attempt fails), it falls back to Recover.
func Load(source []byte) (*Table, error) {
	offset, err := findStartXRef(source)
	if err != nil {
		return Recover(source)
	}

	t := New(source)
	trailer := object.NewDict()
	seen := map[int64]bool{}

	for offset != 0 {
		if seen[offset] || offset < 0 || int(offset) >= len(source) {
			break
		}
		seen[offset] = true

		sectionTrailer, prev, err := t.parseSection(int(offset))
		if err != nil {
			if trailer.Len() == 0 {
				// Never managed to read even one section: this file is
				// damaged beyond the /Prev-chain recovery this function
				// does, so hand off to brute-force recovery entirely.
				return Recover(source)
			}
			t.warn("stopping /Prev chain at offset %d: %v", offset, err)
			break
		}

		mergeTrailerInto(trailer, sectionTrailer)

		if xrefStm, ok := sectionTrailer.Lookup("XRefStm"); ok {
			if n, isInt := xrefStm.(object.Integer); isInt {
				if _, _, err := t.parseXRefStreamSection(int(n)); err != nil {
					t.warn("hybrid /XRefStm at %d: %v", n, err)
				}
			}
		}

		offset = prev
	}

	if trailer.Len() == 0 {
		return Recover(source)
	}
	if _, ok := trailer.Lookup("Root"); !ok {
		t.warn("trailer missing /Root; attempting recovery")
		return Recover(source)
	}

	t.Trailer = trailer
	return t, nil
}

// findStartXRef returns the offset recorded by the last "startxref" keyword
// near the end of the file.
func findStartXRef(source []byte) (int64, error) {
	idx := bytes.LastIndex(source, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("xref: no startxref keyword found")
	}
	rest := source[idx+len("startxref"):]
	if end := bytes.Index(rest, []byte("%%EOF")); end >= 0 {
		rest = rest[:end]
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(rest)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("xref: corrupt startxref offset: %w", err)
	}
	return n, nil
}

// mergeTrailerInto copies keys present in src but not yet in dst, giving the
// first (most recent, since sections are walked newest-first) value for
// each key precedence across incremental updates — matching the teacher's
// parseTrailerInfo "only set if unset" behavior.
func mergeTrailerInto(dst, src *object.Dict) {
	for _, k := range src.Keys() {
		if _, has := dst.Lookup(k); has {
			continue
		}
		dst.Set(k, src.Get(k))
	}
}

// parseSection parses whichever kind of cross-reference section starts at
// offset — a classic "xref" table or a cross-reference stream object — and
// returns its trailer dict plus the /Prev offset (0 if none).
func (t *Table) parseSection(offset int) (*object.Dict, int64, error) {
	lex := token.New(t.source, token.Mode{AllowEOF: true})
	lex.Seek(offset)
	if tk := lex.Peek(); tk.Kind == token.Word && tk.Value == "xref" {
		return t.parseClassicSection(offset)
	}
	return t.parseXRefStreamSection(offset)
}

// parseClassicSection parses a classic "xref ... trailer <<...>>" section,
// recording every "m n\noffset gen f|n" entry (newest wins; earlier /Prev
// entries for the same object number are ignored), grounded in the
// teacher's parseXRefSection/parseXRefTableSubSection/parseXRefTableEntry.
func (t *Table) parseClassicSection(offset int) (*object.Dict, int64, error) {
	lex := token.New(t.source, token.Mode{AllowEOF: true})
	lex.Seek(offset)
	lex.Next() // consume "xref"

	for {
		tk := lex.Peek()
		if tk.Kind == token.Word && tk.Value == "trailer" {
			lex.Next()
			break
		}
		if tk.Kind != token.Integer {
			return nil, 0, fmt.Errorf("xref section: expected subsection header, got %s", tk.Kind)
		}
		if err := t.parseClassicSubsection(lex); err != nil {
			return nil, 0, err
		}
	}

	trailerDict, err := objparse.NewAt(t.source, lex.Offset()).ParseObject()
	if err != nil {
		return nil, 0, fmt.Errorf("xref trailer: %w", err)
	}
	d, ok := trailerDict.(*object.Dict)
	if !ok {
		return nil, 0, errors.New("xref trailer: expected a dictionary")
	}
	return d, prevOffset(d), nil
}

func (t *Table) parseClassicSubsection(lex *token.Lexer) error {
	startTok := lex.Next()
	start, err := startTok.Int()
	if err != nil {
		return fmt.Errorf("xref subsection: invalid start object number: %w", err)
	}
	countTok := lex.Next()
	count, err := countTok.Int()
	if err != nil {
		return fmt.Errorf("xref subsection: invalid entry count: %w", err)
	}

	for i := 0; i < count; i++ {
		offTok := lex.Next()
		offset, err := strconv.ParseInt(offTok.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("xref entry: invalid offset: %w", err)
		}
		genTok := lex.Next()
		gen, err := genTok.Int()
		if err != nil {
			return fmt.Errorf("xref entry: invalid generation: %w", err)
		}
		typeTok := lex.Next()
		if typeTok.Kind != token.Word || (typeTok.Value != "f" && typeTok.Value != "n") {
			return errors.New("xref entry: expected 'f' or 'n'")
		}

		num := start + i
		if typeTok.Value == "f" {
			t.SetIfAbsent(num, gen, Entry{Type: EntryFree, Generation: gen})
			continue
		}
		if offset == 0 {
			continue // skip malformed in-use entry with a zero offset
		}
		t.SetIfAbsent(num, gen, Entry{Type: EntryInUse, Offset: offset, Generation: gen})
	}
	return nil
}

// prevOffset reads a trailer/xref-stream dict's /Prev entry, accepting both
// the conforming direct integer and the indirect-reference form some buggy
// writers produce.
func prevOffset(d *object.Dict) int64 {
	switch v := d.Get("Prev").(type) {
	case object.Integer:
		return int64(v)
	case object.Reference:
		return int64(v.Num)
	default:
		return 0
	}
}

// xrefStreamLayout is the decoded form of a cross-reference stream's own
// dictionary fields (Index/W/Size/Prev), grounded in the teacher's
// xrefStreamDict/parseXRefStreamDict.
type xrefStreamLayout struct {
	index [][2]int
	w     [3]int
	size  int
	prev  int64
}

func (x xrefStreamLayout) entrySize() int { return x.w[0] + x.w[1] + x.w[2] }
func (x xrefStreamLayout) count() int {
	n := 0
	for _, ss := range x.index {
		n += ss[1]
	}
	return n
}

func parseXRefStreamLayout(d *object.Dict) (xrefStreamLayout, error) {
	var out xrefStreamLayout
	out.prev = prevOffset(d)

	size, ok := d.Get("Size").(object.Integer)
	if !ok {
		return out, errors.New("xref stream: missing /Size")
	}
	out.size = int(size)

	if indArr, ok := d.Get("Index").(*object.Array); ok && indArr.Size() > 0 {
		if indArr.Size()%2 != 0 {
			return out, errors.New("xref stream: corrupt /Index")
		}
		for i := 0; i < indArr.Size(); i += 2 {
			s, ok1 := indArr.Get(i).(object.Integer)
			c, ok2 := indArr.Get(i + 1).(object.Integer)
			if !ok1 || !ok2 {
				return out, errors.New("xref stream: corrupt /Index")
			}
			out.index = append(out.index, [2]int{int(s), int(c)})
		}
	} else {
		out.index = [][2]int{{0, out.size}}
	}

	w, ok := d.Get("W").(*object.Array)
	if !ok || w.Size() < 3 {
		return out, errors.New("xref stream: missing or corrupt /W")
	}
	for i := 0; i < 3; i++ {
		n, ok := w.Get(i).(object.Integer)
		if !ok || n < 0 {
			return out, errors.New("xref stream: corrupt /W")
		}
		out.w[i] = int(n)
	}
	return out, nil
}

// parseXRefStreamSection parses the cross-reference stream object declared
// at offset, decodes it, and records every entry it describes, grounded in
// the teacher's parseXRefStream/xRefStreamDict/extractXRefTableEntriesFromXRefStream.
func (t *Table) parseXRefStreamSection(offset int) (*object.Dict, int64, error) {
	def, err := objparse.ParseObjectDefinition(t.source[offset:], false)
	if err != nil {
		return nil, 0, fmt.Errorf("xref stream declaration: %w", err)
	}
	stream, ok := def.Value.(*object.Stream)
	if !ok {
		return nil, 0, errors.New("xref stream: object is not a stream")
	}

	layout, err := parseXRefStreamLayout(stream.Dict)
	if err != nil {
		return nil, 0, err
	}

	raw, err := stream.GetData()
	if err != nil {
		return nil, 0, err
	}
	// Cross-reference streams shall not be encrypted and shall not carry a
	// Crypt filter (PDF 7.5.8); LevelAll is always safe here.
	decoded, err := filter.Decode(stream.Dict, raw, filter.LevelAll)
	if err != nil {
		return nil, 0, fmt.Errorf("xref stream: %w", err)
	}

	entrySize, total := layout.entrySize(), layout.count()
	need := entrySize * total
	if len(decoded) < need {
		return nil, 0, fmt.Errorf("xref stream: corrupt (have %d bytes, need %d)", len(decoded), need)
	}
	decoded = decoded[:need]

	w0, w1, w2 := layout.w[0], layout.w[1], layout.w[2]
	j := 0
	for _, ss := range layout.index {
		firstObj, n := ss[0], ss[1]
		for i := 0; i < n; i++ {
			num := firstObj + i
			base := j * entrySize
			typeField := byte(1)
			if w0 > 0 {
				typeField = decoded[base]
			}
			f2 := bufToInt64(decoded[base+w0 : base+w0+w1])
			f3 := bufToInt64(decoded[base+w0+w1 : base+w0+w1+w2])

			switch typeField {
			case 0:
				t.SetIfAbsent(num, int(f3), Entry{Type: EntryFree, Generation: int(f3)})
			case 1:
				t.SetIfAbsent(num, int(f3), Entry{Type: EntryInUse, Offset: f2, Generation: int(f3)})
			case 2:
				t.SetIfAbsent(num, 0, Entry{Type: EntryCompressed, StreamObjNum: int(f2), StreamIndex: int(f3)})
			}
			j++
		}
	}

	t.SetIfAbsent(def.Num, def.Gen, Entry{Type: EntryInUse, Offset: int64(offset), Generation: def.Gen})

	return stream.Dict, layout.prev, nil
}

func bufToInt64(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
