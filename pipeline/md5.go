package pipeline

import "crypto/md5"

// MD5Sink is the "MD5 accumulator" link: it hashes every byte written and
// forwards it unchanged, used by the writer to compute the /ID entry (see
// writer/id.go for what is hashed).
type MD5Sink struct {
	Next Sink
	sum  md5sum
}

const md5Size = md5.Size

type md5sum interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
}

func NewMD5Sink(next Sink) *MD5Sink {
	return &MD5Sink{Next: next, sum: md5.New()}
}

func (m *MD5Sink) Write(p []byte) (int, error) {
	m.sum.Write(p)
	if m.Next == nil {
		return len(p), nil
	}
	n, err := m.Next.Write(p)
	if err != nil {
		return n, &Error{Link: "md5", Err: err}
	}
	return n, nil
}

func (m *MD5Sink) Finish() error {
	if m.Next == nil {
		return nil
	}
	if err := m.Next.Finish(); err != nil {
		return &Error{Link: "md5", Err: err}
	}
	return nil
}

// Sum returns the MD5 digest of everything written so far.
func (m *MD5Sink) Sum() [md5Size]byte {
	var out [md5Size]byte
	copy(out[:], m.sum.Sum(nil))
	return out
}
