package filter

import "fmt"

// decodeASCIIHexDecode. Pairs of hex digits map to bytes; whitespace is
// ignored; a lone trailing digit is treated as if followed by '0' (PDF
// 7.4.2); the '>' EOD marker, if present, ends the data.
func decodeASCIIHex(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)/2+1)
	hi := -1
	for _, c := range data {
		if c == '>' {
			break
		}
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'a' && c <= 'f':
			v = int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = int(c-'A') + 10
		case isHexWhitespace(c):
			continue
		default:
			return nil, fmt.Errorf("asciihex: invalid character %q", c)
		}
		if hi < 0 {
			hi = v
			continue
		}
		out = append(out, byte(hi<<4|v))
		hi = -1
	}
	if hi >= 0 {
		out = append(out, byte(hi<<4))
	}
	return out, nil
}

func isHexWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}
