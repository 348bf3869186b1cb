package pipeline

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rc4"
)

// RC4Sink is the "RC4" link: RC4 is a symmetric stream cipher, so encode
// and decode are the same transform.
type RC4Sink struct {
	Next Sink
	c    *rc4.Cipher
}

func NewRC4Sink(next Sink, key []byte) (*RC4Sink, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, &Error{Link: "rc4", Err: err}
	}
	return &RC4Sink{Next: next, c: c}, nil
}

func (s *RC4Sink) Write(p []byte) (int, error) {
	out := make([]byte, len(p))
	s.c.XORKeyStream(out, p)
	if _, err := s.Next.Write(out); err != nil {
		return 0, &Error{Link: "rc4", Err: err}
	}
	return len(p), nil
}

func (s *RC4Sink) Finish() error {
	if err := s.Next.Finish(); err != nil {
		return &Error{Link: "rc4", Err: err}
	}
	return nil
}

// AESCBCSink is the "AES-CBC with PDF padding" link of spec §4.1: it holds
// a 16-byte block buffer, XORs the running IV, encrypts/decrypts whole
// blocks as they fill, and forwards completed blocks immediately. On
// Finish, an encrypting sink applies PKCS#7-style padding (1-16 bytes each
// equal to the pad count); a decrypting sink verifies and strips it.
//
// ZeroIV selects the zero-IV, no-padding variant used for /UE and /OE
// (spec's "a zero-IV and use-static-IV switch exists for reproducible test
// output and for PDF constructs that prepend IVs"); StaticIV, if non-nil,
// replaces the random IV an encrypting sink would otherwise generate, for
// reproducible test output.
type AESCBCSink struct {
	Next    Sink
	Encrypt bool
	ZeroIV  bool
	StaticIV []byte

	block   cipher.Block
	iv      []byte
	pending []byte
	started bool
}

func NewAESCBCSink(next Sink, key []byte, encrypt bool) (*AESCBCSink, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &Error{Link: "aes-cbc", Err: err}
	}
	return &AESCBCSink{Next: next, Encrypt: encrypt, block: block}, nil
}

func (s *AESCBCSink) ensureStarted() error {
	if s.started {
		return nil
	}
	s.started = true
	if s.ZeroIV {
		s.iv = make([]byte, aes.BlockSize)
		return nil
	}
	if s.Encrypt {
		if s.StaticIV != nil {
			s.iv = append([]byte(nil), s.StaticIV...)
		} else {
			s.iv = make([]byte, aes.BlockSize)
			if _, err := rand.Read(s.iv); err != nil {
				return err
			}
		}
		if _, err := s.Next.Write(s.iv); err != nil {
			return err
		}
		return nil
	}
	// Decrypting: the IV is the first block of ciphertext, consumed lazily
	// from the incoming pending buffer in Write.
	return nil
}

func (s *AESCBCSink) Write(p []byte) (int, error) {
	if err := s.ensureStarted(); err != nil {
		return 0, &Error{Link: "aes-cbc", Err: err}
	}
	s.pending = append(s.pending, p...)

	if !s.Encrypt && !s.ZeroIV && s.iv == nil {
		if len(s.pending) < aes.BlockSize {
			return len(p), nil
		}
		s.iv = append([]byte(nil), s.pending[:aes.BlockSize]...)
		s.pending = s.pending[aes.BlockSize:]
	}

	// Always keep the last block buffered (it may be the final, padded
	// block) until Finish, so decryption can strip padding correctly.
	keep := aes.BlockSize
	for len(s.pending)-keep >= aes.BlockSize {
		block := s.pending[:aes.BlockSize]
		out := make([]byte, aes.BlockSize)
		if s.Encrypt {
			cipher.NewCBCEncrypter(s.block, s.iv).CryptBlocks(out, block)
			s.iv = out
		} else {
			cipher.NewCBCDecrypter(s.block, s.iv).CryptBlocks(out, block)
			s.iv = append([]byte(nil), block...)
		}
		if _, err := s.Next.Write(out); err != nil {
			return 0, &Error{Link: "aes-cbc", Err: err}
		}
		s.pending = s.pending[aes.BlockSize:]
	}
	return len(p), nil
}

func (s *AESCBCSink) Finish() error {
	if err := s.ensureStarted(); err != nil {
		return &Error{Link: "aes-cbc", Err: err}
	}
	if s.Encrypt {
		padded := s.pending
		if !s.ZeroIV {
			padded = addPadding(s.pending, aes.BlockSize)
		} else if len(padded)%aes.BlockSize != 0 {
			return &Error{Link: "aes-cbc", Err: errInvalidPadding}
		}
		for off := 0; off < len(padded); off += aes.BlockSize {
			block := padded[off : off+aes.BlockSize]
			out := make([]byte, aes.BlockSize)
			cipher.NewCBCEncrypter(s.block, s.iv).CryptBlocks(out, block)
			s.iv = out
			if _, err := s.Next.Write(out); err != nil {
				return &Error{Link: "aes-cbc", Err: err}
			}
		}
	} else if len(s.pending) > 0 {
		out := make([]byte, len(s.pending))
		cipher.NewCBCDecrypter(s.block, s.iv).CryptBlocks(out, s.pending)
		if !s.ZeroIV {
			stripped, err := stripPadding(out, aes.BlockSize)
			if err != nil {
				return &Error{Link: "aes-cbc", Err: err}
			}
			out = stripped
		}
		if _, err := s.Next.Write(out); err != nil {
			return &Error{Link: "aes-cbc", Err: err}
		}
	}
	return s.Next.Finish()
}

func addPadding(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+pad)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

func stripPadding(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	pad := int(data[len(data)-1])
	if pad <= 0 || pad > blockSize || pad > len(data) {
		return nil, errInvalidPadding
	}
	return data[:len(data)-pad], nil
}

var errInvalidPadding = errPadding("pipeline: invalid PKCS#7 padding")

type errPadding string

func (e errPadding) Error() string { return string(e) }
