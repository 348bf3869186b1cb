package pipeline

import (
	"compress/zlib"
	"io"

	"github.com/hhrutter/lzw"
)

// FlateEncoderSink is the "Flate encode" link: a zlib-wrapped Deflate
// stream (PDF FlateDecode streams are zlib, not raw deflate, per PDF
// 7.4.4). level is a compress/zlib level constant, passed through as is:
// -1 is DefaultCompression and 0 is NoCompression.
type FlateEncoderSink struct {
	Next Sink
	w    *zlib.Writer
}

func NewFlateEncoderSink(next Sink, level int) (*FlateEncoderSink, error) {
	w, err := zlib.NewWriterLevel(funcWriter(func(p []byte) (int, error) { return next.Write(p) }), level)
	if err != nil {
		return nil, &Error{Link: "flate-encode", Err: err}
	}
	return &FlateEncoderSink{Next: next, w: w}, nil
}

func (s *FlateEncoderSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, &Error{Link: "flate-encode", Err: err}
	}
	return n, nil
}

func (s *FlateEncoderSink) Finish() error {
	if err := s.w.Close(); err != nil {
		return &Error{Link: "flate-encode", Err: err}
	}
	return s.Next.Finish()
}

// FlateDecoderSink is the "Flate decode" link, used when a pipeline needs
// to decode incrementally rather than through filter.Decode's whole-buffer
// call.
type FlateDecoderSink struct {
	Next   Sink
	pr     *io.PipeReader
	pw     *io.PipeWriter
	done   chan error
}

func NewFlateDecoderSink(next Sink) *FlateDecoderSink {
	pr, pw := io.Pipe()
	s := &FlateDecoderSink{Next: next, pr: pr, pw: pw, done: make(chan error, 1)}
	go func() {
		zr, err := zlib.NewReader(pr)
		if err != nil {
			pr.CloseWithError(err)
			s.done <- err
			return
		}
		_, err = io.Copy(funcWriter(func(p []byte) (int, error) { return next.Write(p) }), zr)
		s.done <- err
	}()
	return s
}

func (s *FlateDecoderSink) Write(p []byte) (int, error) {
	n, err := s.pw.Write(p)
	if err != nil {
		return n, &Error{Link: "flate-decode", Err: err}
	}
	return n, nil
}

func (s *FlateDecoderSink) Finish() error {
	s.pw.Close()
	if err := <-s.done; err != nil && err != io.EOF {
		return &Error{Link: "flate-decode", Err: err}
	}
	return s.Next.Finish()
}

// LZWDecoderSink is the "LZW decode" link, backed by the same
// github.com/hhrutter/lzw package the filter package uses for its
// whole-buffer LZWDecode filter.
type LZWDecoderSink struct {
	Next Sink
	pr   *io.PipeReader
	pw   *io.PipeWriter
	done chan error
}

func NewLZWDecoderSink(next Sink, earlyChange bool) *LZWDecoderSink {
	pr, pw := io.Pipe()
	s := &LZWDecoderSink{Next: next, pr: pr, pw: pw, done: make(chan error, 1)}
	go func() {
		r := lzw.NewReader(pr, earlyChange)
		_, err := io.Copy(funcWriter(func(p []byte) (int, error) { return next.Write(p) }), r)
		s.done <- err
	}()
	return s
}

func (s *LZWDecoderSink) Write(p []byte) (int, error) {
	n, err := s.pw.Write(p)
	if err != nil {
		return n, &Error{Link: "lzw-decode", Err: err}
	}
	return n, nil
}

func (s *LZWDecoderSink) Finish() error {
	s.pw.Close()
	if err := <-s.done; err != nil && err != io.EOF {
		return &Error{Link: "lzw-decode", Err: err}
	}
	return s.Next.Finish()
}
