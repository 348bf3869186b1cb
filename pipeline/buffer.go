package pipeline

import "bytes"

// BufferSink is the "buffer-collector" link: it accumulates every write
// into memory and has no downstream; Bytes() retrieves the result after
// Finish. Grounded in the teacher's model/writeutils.go `buffer` type (a
// thin bytes.Buffer wrapper used throughout the writer).
type BufferSink struct {
	buf bytes.Buffer
}

func NewBufferSink() *BufferSink { return &BufferSink{} }

func (b *BufferSink) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *BufferSink) Finish() error                { return nil }

// Bytes returns the accumulated bytes. Valid any time, not only after
// Finish, since BufferSink never defers work.
func (b *BufferSink) Bytes() []byte { return b.buf.Bytes() }
