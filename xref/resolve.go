package xref

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/holoq/qpdf/filter"
	"github.com/holoq/qpdf/object"
	"github.com/holoq/qpdf/objparse"
)

// resolveDirect parses the "N G obj ... endobj" declaration at entry.Offset
// and, if it is a stream whose /Length is indirect, resolves that /Length
// to trim the payload (filter parameters are left as parsed), matching the
// teacher's resolveObjectNumber.
func (t *Table) resolveDirect(og object.ObjGen, entry *Entry) (object.Object, error) {
	if entry.Offset < 0 || int(entry.Offset) >= len(t.source) {
		return nil, fmt.Errorf("invalid offset in xref table (%d)", entry.Offset)
	}
	p := objparse.NewAt(t.source, int(entry.Offset))
	def, err := objparse.ParseObjectDefinition(t.source[entry.Offset:], false)
	if err != nil {
		return nil, fmt.Errorf("invalid object declaration at %d: %w", entry.Offset, err)
	}
	if def.Num != og.Num {
		t.warn("object number mismatch at offset %d: table says %d, file says %d", entry.Offset, og.Num, def.Num)
	}

	val := def.Value
	stream, isStream := val.(*object.Stream)
	if !isStream {
		return val, nil
	}

	// The parser already consumed "stream"/payload-by-declared-Length if
	// /Length was a direct integer. If it was an indirect reference instead
	// (common in the wild, since the writer doesn't know the length until
	// the stream is fully buffered), the parser cannot have resolved it, so
	// reparse the payload now that the xref table can supply it.
	if _, sawDirectLength := stream.Dict.Lookup("Length"); sawDirectLength {
		if _, isInt := stream.Dict.Get("Length").(object.Integer); isInt {
			return stream, nil
		}
	}
	return t.reparseIndirectLengthStream(p.Offset(), stream)
}

// reparseIndirectLengthStream is used when a stream's /Length entry is
// itself an indirect reference: the object parser cannot resolve it without
// xref access, so the xref loader resolves /Length here and truncates the
// payload the parser captured by its endstream scan to that length when
// the scanned payload is longer; a longer /Length leaves it unchanged.
func (t *Table) reparseIndirectLengthStream(declEnd int, stream *object.Stream) (object.Object, error) {
	lengthObj := stream.Dict.Get("Length")
	ref, ok := lengthObj.(object.Reference)
	if !ok {
		return stream, nil // not actually indirect; keep whatever the parser produced
	}
	resolved, _ := t.Resolve(ref.ObjGen())
	length, ok := resolved.(object.Integer)
	if !ok {
		t.warn("indirect /Length for a stream did not resolve to an integer; falling back to endstream scan")
		return stream, nil
	}
	// The stream object's raw bytes were already captured by the parser
	// using a best-effort endstream scan; if the declared length disagrees,
	// trust the indirect /Length since it is authoritative once resolvable.
	raw, _ := stream.GetData()
	if len(raw) != int(length) && int(length) <= len(raw) {
		raw = raw[:length]
		stream.SetData(raw)
	}
	return stream, nil
}

// objectStream parses and decodes object stream number on, caching the
// result, following the teacher's processObjectStream.
func (t *Table) objectStream(on int) ([]object.Object, error) {
	if cached, ok := t.objStreamCache[on]; ok {
		return cached, nil
	}
	og := object.ObjGen{Num: on, Gen: 0}
	entry, ok := t.entries[og]
	if !ok {
		return nil, fmt.Errorf("missing object stream for object %d", on)
	}
	val, err := t.resolveDirect(og, entry)
	if err != nil {
		return nil, fmt.Errorf("invalid object stream at %d: %w", entry.Offset, err)
	}
	stream, ok := val.(*object.Stream)
	if !ok {
		return nil, fmt.Errorf("object %d is not a stream", on)
	}

	raw, err := stream.GetData()
	if err != nil {
		return nil, err
	}
	decoded, err := filter.Decode(stream.Dict, raw, filter.LevelAll)
	if err != nil {
		return nil, fmt.Errorf("decoding object stream %d: %w", on, err)
	}

	n, ok := stream.Dict.Get("N").(object.Integer)
	if !ok {
		return nil, fmt.Errorf("object stream %d missing /N", on)
	}
	first, ok := stream.Dict.Get("First").(object.Integer)
	if !ok {
		return nil, fmt.Errorf("object stream %d missing /First", on)
	}
	if int(first) > len(decoded) {
		return nil, fmt.Errorf("object stream %d: /First %d beyond decoded length %d", on, first, len(decoded))
	}

	prolog := bytes.ReplaceAll(decoded[:first], []byte{0x00}, []byte{0x20})
	fields := bytes.Fields(prolog)
	if len(fields) != int(n)*2 {
		return nil, fmt.Errorf("object stream %d: prolog has %d fields, expected %d", on, len(fields), int(n)*2)
	}

	offsets := make([]int, n)
	for i := range offsets {
		v, err := strconv.Atoi(string(fields[2*i+1]))
		if err != nil {
			return nil, fmt.Errorf("object stream %d: invalid offset %q", on, fields[2*i+1])
		}
		offsets[i] = int(first) + v
		if offsets[i] > len(decoded) {
			return nil, fmt.Errorf("object stream %d: offset %d beyond decoded length %d", on, offsets[i], len(decoded))
		}
	}

	objects := make([]object.Object, n)
	for i := range objects {
		start, end := offsets[i], len(decoded)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		obj, err := objparse.ParseCompleteObject(decoded[start:end])
		if err != nil {
			// a trailing delimiter quirk shouldn't sink the whole stream;
			// fall back to a lenient single-object parse.
			obj, err = objparse.New(decoded[start:end]).ParseObject()
			if err != nil {
				return nil, fmt.Errorf("object stream %d, entry %d: %w", on, i, err)
			}
		}
		objects[i] = obj
	}

	t.objStreamCache[on] = objects
	return objects, nil
}
