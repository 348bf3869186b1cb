package object

import "fmt"

// DataSource supplies a Stream's raw (undecoded) payload bytes on demand.
// Spec §4.3: "A Stream's raw payload lives either in the input at
// (offset,length) or in a buffer." BufferSource below is the in-memory
// variant, used for every stream the parser (and so the xref loader)
// produces; the copier's lazy mode supplies its own DataSource that pipes
// a foreign stream's bytes on demand.
type DataSource interface {
	GetData() ([]byte, error)
}

// BufferSource is the in-memory DataSource: the bytes are already resident.
type BufferSource []byte

func (b BufferSource) GetData() ([]byte, error) { return []byte(b), nil }

// Stream is the PDF stream object: a Dict plus a raw byte payload. Decoding
// the filter chain named in the dict is the filter package's job — Stream
// only stores the dict and exposes the raw bytes.
type Stream struct {
	Dict   *Dict
	source DataSource
}

// NewStream builds a Stream over an in-memory buffer, setting /Length to
// match, as the writer and any caller assembling a fresh stream expects.
func NewStream(dict *Dict, raw []byte) *Stream {
	if dict == nil {
		dict = NewDict()
	}
	dict.Set("Length", Integer(len(raw)))
	return &Stream{Dict: dict, source: BufferSource(raw)}
}

// NewLazyStream builds a Stream whose payload is fetched on demand from
// src — used by the copier's LazyStreams mode so that a copied stream's
// payload is read from the foreign document only when requested.
func NewLazyStream(dict *Dict, src DataSource) *Stream {
	return &Stream{Dict: dict, source: src}
}

func (s *Stream) Kind() Kind { return KindStream }

// Clone performs the spec's shallow copy: the dict is cloned (its own
// top-level map, sharing nested Objects), the payload source is shared.
func (s *Stream) Clone() Object {
	var d *Dict
	if s.Dict != nil {
		d = s.Dict.Clone().(*Dict)
	}
	return &Stream{Dict: d, source: s.source}
}

func (s *Stream) String() string {
	return fmt.Sprintf("stream%s", s.Dict.PDFString())
}

// PDFString renders only the dictionary; a full "dict stream ... endstream"
// rendering additionally needs the raw bytes, which is the writer's job
// since it alone decides re-encoding/encryption before emission.
func (s *Stream) PDFString() string {
	return s.Dict.PDFString()
}

// GetData returns the stream's raw, still-filtered bytes exactly as stored.
func (s *Stream) GetData() ([]byte, error) {
	if s.source == nil {
		return nil, nil
	}
	return s.source.GetData()
}

// SetData replaces the stream's payload with raw (already-filtered-per-Dict)
// bytes and updates /Length accordingly.
func (s *Stream) SetData(raw []byte) {
	s.source = BufferSource(raw)
	s.Dict.Set("Length", Integer(len(raw)))
}
