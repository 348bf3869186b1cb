// Package filter implements the Stream engine: the PDF filter pipeline that
// decodes (and, for the writer, encodes) a stream's raw bytes according to
// its /Filter and /DecodeParms entries.
//
// Grounded in the teacher's reader/parser/filters package (the Skipper
// interface for inline-image EOD detection) and model/streams.go (the named
// filter constants), generalized into a full decode (and encode) pipeline
// since the teacher's own filiter package only implements EOD-skipping, not
// decoding.
package filter

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"fmt"
	"io"

	"github.com/hhrutter/lzw"

	"github.com/holoq/qpdf/object"
)

// Name identifies a PDF stream filter by its standard /Filter name.
type Name string

const (
	ASCII85Decode  Name = "ASCII85Decode"
	ASCIIHexDecode Name = "ASCIIHexDecode"
	RunLengthName  Name = "RunLengthDecode"
	LZWDecode      Name = "LZWDecode"
	FlateDecode    Name = "FlateDecode"
	DCTDecode      Name = "DCTDecode"
	CCITTFaxDecode Name = "CCITTFaxDecode"
	JBIG2Decode    Name = "JBIG2Decode"
	JPXDecode      Name = "JPXDecode"
	CryptDecode    Name = "Crypt"
)

// imageFilters are the filters this package recognizes by name but
// deliberately does not decode: their payload is opaque compressed image
// data (JPEG/CCITT/JBIG2/JPEG2000) that this module has no decoder for, and
// spec §4.6 allows a stream engine to "decline to decode" them.
var imageFilters = map[Name]bool{
	DCTDecode: true, CCITTFaxDecode: true, JBIG2Decode: true, JPXDecode: true,
}

// Level controls how much of a stream's filter chain Decode actually runs.
type Level uint8

const (
	// LevelNone returns the raw bytes unchanged.
	LevelNone Level = iota
	// LevelGeneralized decodes only lossless, non-image filters (Flate,
	// LZW, ASCII85, ASCIIHex, RunLength).
	LevelGeneralized
	// LevelSpecialized additionally decodes filters this package has a
	// decoder for but that are specialized (none at generalized level are
	// excluded here; kept distinct for spec parity with qpdf's three-level
	// scheme, where "specialized" names filters like Crypt-passthrough).
	LevelSpecialized
	// LevelAll attempts every recognized filter, erroring on ones with no
	// decoder instead of passing them through.
	LevelAll
)

// CustomFilter lets a caller register a decoder for a filter name this
// package does not implement, per spec §4.6's "custom filter registration
// interface".
type CustomFilter interface {
	Decode(params *object.Dict, data []byte) ([]byte, error)
}

var customFilters = map[Name]CustomFilter{}

// Register installs a CustomFilter for name, consulted when the built-in
// filters don't recognize it.
func Register(name Name, f CustomFilter) { customFilters[name] = f }

// chain extracts the ordered list of filter names and their per-filter
// decode parameters from a stream dict's /Filter and /DecodeParms entries,
// accepting both the single-filter and array forms.
func chain(dict *object.Dict) ([]Name, []*object.Dict, error) {
	filterObj := dict.Get("Filter")
	paramsObj := dict.Get("DecodeParms")
	if _, isNull := filterObj.(object.Null); isNull {
		filterObj = dict.Get("F") // inline-image abbreviated key, harmless fallback
		if _, isNull := filterObj.(object.Null); isNull {
			return nil, nil, nil
		}
	}

	var names []Name
	var params []*object.Dict
	switch f := filterObj.(type) {
	case object.Name:
		names = []Name{Name(f)}
		params = []*object.Dict{asDict(paramsObj)}
	case *object.Array:
		for i := 0; i < f.Size(); i++ {
			n, ok := f.Get(i).(object.Name)
			if !ok {
				return nil, nil, fmt.Errorf("filter: non-name entry in /Filter array")
			}
			names = append(names, Name(n))
		}
		if arr, ok := paramsObj.(*object.Array); ok {
			for i := 0; i < arr.Size(); i++ {
				params = append(params, asDict(arr.Get(i)))
			}
		}
		for len(params) < len(names) {
			params = append(params, nil)
		}
	default:
		return nil, nil, fmt.Errorf("filter: unexpected /Filter value %T", filterObj)
	}
	return names, params, nil
}

func asDict(o object.Object) *object.Dict {
	if d, ok := o.(*object.Dict); ok {
		return d
	}
	return nil
}

// Decode runs dict's filter chain over raw up to the requested Level,
// returning the resulting bytes. At LevelNone it is a no-op. A filter this
// package cannot decode stops the chain: at LevelAll that is an error, at
// lower levels the partially-decoded bytes (everything up to that filter)
// are returned with no error, matching "decline to decode" semantics.
func Decode(dict *object.Dict, raw []byte, level Level) ([]byte, error) {
	if level == LevelNone {
		return raw, nil
	}
	names, params, err := chain(dict)
	if err != nil {
		return nil, err
	}
	data := raw
	for i, name := range names {
		var p *object.Dict
		if i < len(params) {
			p = params[i]
		}
		decoded, decodedOK, err := decodeOne(name, p, data)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}
		if !decodedOK {
			if level == LevelAll {
				return nil, fmt.Errorf("filter %s: no decoder available", name)
			}
			return data, nil
		}
		data = decoded
	}
	return data, nil
}

func decodeOne(name Name, params *object.Dict, data []byte) ([]byte, bool, error) {
	switch name {
	case FlateDecode:
		out, err := decodeFlate(data)
		return out, true, err
	case ASCII85Decode:
		out, err := decodeASCII85(data)
		return out, true, err
	case ASCIIHexDecode:
		out, err := decodeASCIIHex(data)
		return out, true, err
	case RunLengthName:
		out, err := decodeRunLength(data)
		return out, true, err
	case LZWDecode:
		out, err := decodeLZW(data, earlyChange(params))
		return out, true, err
	case CryptDecode:
		// The Identity crypt filter (the only one meaningful here — actual
		// decryption is handled per-object before the filter chain runs)
		// is a pass-through.
		return data, true, nil
	default:
		if imageFilters[name] {
			return data, false, nil
		}
		if cf, ok := customFilters[name]; ok {
			out, err := cf.Decode(params, data)
			return out, true, err
		}
		return data, false, nil
	}
}

func earlyChange(params *object.Dict) bool {
	if params == nil {
		return true
	}
	if v, ok := params.Lookup("EarlyChange"); ok {
		if i, isInt := v.(object.Integer); isInt {
			return i != 0
		}
	}
	return true
}

func decodeFlate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func decodeLZW(data []byte, earlyChange bool) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(data), earlyChange)
	defer r.Close()
	return io.ReadAll(r)
}

func decodeASCII85(data []byte) ([]byte, error) {
	// trim a trailing EOD marker "~>" if present, as real-world producers
	// nearly always include it even though some omit it.
	data = bytes.TrimRight(data, "\x00\t\n\f\r ")
	data = bytes.TrimSuffix(data, []byte("~>"))
	dst := make([]byte, 4*len(data)) // a lone 'z' decodes to four zero bytes
	n, _, err := ascii85.Decode(dst, data, true)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
