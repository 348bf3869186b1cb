package filter

import "fmt"

// decodeRunLength implements RunLengthDecode (PDF 7.4.5): each run is a
// length byte followed by either (length+1) literal bytes (length 0-127) or
// a single byte repeated (257-length) times (length 129-255); length 128 is
// the EOD marker.
func decodeRunLength(data []byte) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(data) {
		n := data[i]
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			count := int(n) + 1
			if i+count > len(data) {
				return nil, fmt.Errorf("runlength: literal run past end of data")
			}
			out = append(out, data[i:i+count]...)
			i += count
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("runlength: replicated run past end of data")
			}
			count := 257 - int(n)
			b := data[i]
			i++
			for k := 0; k < count; k++ {
				out = append(out, b)
			}
		}
	}
	return out, nil
}
