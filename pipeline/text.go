package pipeline

import "encoding/ascii85"

// HexEncoderSink is the "hex encoder" link: it writes the ASCIIHex
// (PDF 7.4.2) rendering of every byte written, terminating the stream with
// '>' on Finish. The writer does not use it; it renders hex strings
// through object.String's own PDFString.
type HexEncoderSink struct {
	Next Sink
}

func NewHexEncoderSink(next Sink) *HexEncoderSink { return &HexEncoderSink{Next: next} }

const hexDigits = "0123456789abcdef"

func (h *HexEncoderSink) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(p)*2)
	for _, b := range p {
		out = append(out, hexDigits[b>>4], hexDigits[b&0xf])
	}
	if _, err := h.Next.Write(out); err != nil {
		return 0, &Error{Link: "hex-encode", Err: err}
	}
	return len(p), nil
}

func (h *HexEncoderSink) Finish() error {
	if _, err := h.Next.Write([]byte{'>'}); err != nil {
		return &Error{Link: "hex-encode", Err: err}
	}
	return h.Next.Finish()
}

// ASCII85EncoderSink is the "ASCII85 encoder" link, terminating with the
// PDF EOD marker "~>" on Finish.
type ASCII85EncoderSink struct {
	Next Sink
	enc  *ascii85.Encoder
}

func NewASCII85EncoderSink(next Sink) *ASCII85EncoderSink {
	s := &ASCII85EncoderSink{Next: next}
	s.enc = ascii85.NewEncoder(funcWriter(func(p []byte) (int, error) { return next.Write(p) }))
	return s
}

type funcWriter func([]byte) (int, error)

func (f funcWriter) Write(p []byte) (int, error) { return f(p) }

func (s *ASCII85EncoderSink) Write(p []byte) (int, error) {
	n, err := s.enc.Write(p)
	if err != nil {
		return n, &Error{Link: "ascii85-encode", Err: err}
	}
	return n, nil
}

func (s *ASCII85EncoderSink) Finish() error {
	if err := s.enc.Close(); err != nil {
		return &Error{Link: "ascii85-encode", Err: err}
	}
	if _, err := s.Next.Write([]byte("~>")); err != nil {
		return &Error{Link: "ascii85-encode", Err: err}
	}
	return s.Next.Finish()
}

// RLESink is the "RLE" link: a PDF RunLengthDecode-compatible encoder (PDF
// 7.4.5). It buffers until Finish so it can look ahead for literal vs.
// repeat runs, then writes the EOD marker (128).
type RLESink struct {
	Next Sink
	buf  []byte
}

func NewRLESink(next Sink) *RLESink { return &RLESink{Next: next} }

func (r *RLESink) Write(p []byte) (int, error) {
	r.buf = append(r.buf, p...)
	return len(p), nil
}

func (r *RLESink) Finish() error {
	encoded := encodeRunLength(r.buf)
	encoded = append(encoded, 128)
	if _, err := r.Next.Write(encoded); err != nil {
		return &Error{Link: "rle", Err: err}
	}
	return r.Next.Finish()
}

func encodeRunLength(data []byte) []byte {
	var out []byte
	i := 0
	for i < len(data) {
		runStart := i
		for i+1 < len(data) && data[i] == data[i+1] && i-runStart < 127 {
			i++
		}
		if i > runStart {
			// repeat run: data[runStart..i] are all data[runStart]
			out = append(out, byte(257-(i-runStart+1)), data[runStart])
			i++
			continue
		}
		// literal run: gather up to 128 non-repeating bytes
		litStart := i
		for i < len(data) && i-litStart < 128 {
			if i+1 < len(data) && data[i] == data[i+1] {
				break
			}
			i++
		}
		out = append(out, byte(i-litStart-1))
		out = append(out, data[litStart:i]...)
	}
	return out
}
