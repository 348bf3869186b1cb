package filter

import (
	"bytes"
	"compress/zlib"
)

// EncodeFlate compresses data with zlib/deflate at the given compress/flate
// level, used by the writer's stream state machine when recompressing a
// stream it has to write back out (spec §4.10's "recompressed" stream
// state).
func EncodeFlate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
