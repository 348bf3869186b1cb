package writer

import (
	"github.com/holoq/qpdf/crypt"
	"github.com/holoq/qpdf/filter"
	"github.com/holoq/qpdf/internal/xlog"
	"github.com/holoq/qpdf/object"
)

// streamState names a point in spec §4.10's stream state machine. States
// only move forward; prepareStreamBytes implements the one backward
// transition the spec allows ("a stream that fails in decoded reverts to
// source before encrypted").
type streamState int

const (
	stateSource streamState = iota
	stateDecoded
	stateRecompressed
	stateEncrypted
	stateWritten
)

// genericDecodableFilters are the filter names this package's own decoder
// understands well enough to strip and re-encode; anything else (an image
// filter, or a custom filter nobody registered) keeps the stream at
// stateSource.
var genericDecodableFilters = map[filter.Name]bool{
	filter.FlateDecode:    true,
	filter.ASCII85Decode:  true,
	filter.ASCIIHexDecode: true,
	filter.RunLengthName:  true,
	filter.LZWDecode:      true,
	filter.CryptDecode:    true,
}

func filterNames(dict *object.Dict) []filter.Name {
	switch v := dict.Get("Filter").(type) {
	case object.Name:
		return []filter.Name{filter.Name(v)}
	case *object.Array:
		names := make([]filter.Name, 0, v.Size())
		for i := 0; i < v.Size(); i++ {
			if n, ok := v.Get(i).(object.Name); ok {
				names = append(names, filter.Name(n))
			}
		}
		return names
	default:
		return nil
	}
}

// allDecodableAt reports whether every filter in dict's chain is one this
// package can both decode and safely drop from /Filter, per spec §4.10
// "does the decode chain contain only allowed filters for the current
// decode-level".
func allDecodableAt(dict *object.Dict, level filter.Level) bool {
	if level == filter.LevelNone {
		return false
	}
	names := filterNames(dict)
	if len(names) == 0 {
		return false
	}
	for _, n := range names {
		if !genericDecodableFilters[n] {
			return false
		}
	}
	return true
}

// prepareStreamBytes implements spec §4.10's "Stream decisions" and the
// stream state machine, for one stream object at its final (remapped)
// object number. skipMetadataCompress is true when this stream is the
// root's /Metadata and the output is unencrypted, per spec's carve-out.
// engine, if non-nil, applies per-object encryption (stateEncrypted); a
// stream is never packed into an object stream, so that step always
// applies when engine is set. A stream with no /Filter counts as already
// decoded, so compress wraps it in FlateDecode.
func prepareStreamBytes(dict *object.Dict, raw []byte, level filter.Level, compress bool, skipMetadataCompress bool, engine *crypt.Engine, num, gen int) (*object.Dict, []byte) {
	out := dict.Clone().(*object.Dict)
	data := raw
	state := stateSource

	if allDecodableAt(dict, level) {
		decoded, err := filter.Decode(dict, raw, level)
		if err != nil {
			xlog.Write.Printf("stream %d %d: decode failed, writing raw: %v", num, gen, err)
		} else {
			data = decoded
			out.Remove("Filter")
			out.Remove("DecodeParms")
			state = stateDecoded
		}
	} else if len(filterNames(dict)) == 0 {
		// Unfiltered: the stored bytes already are the decoded data.
		state = stateDecoded
	}

	if state == stateDecoded && compress && !skipMetadataCompress {
		encoded, err := filter.EncodeFlate(data, -1)
		if err != nil {
			xlog.Write.Printf("stream %d %d: recompress failed, reverting to source bytes: %v", num, gen, err)
			// Revert to source per the state machine's one backward edge.
			out = dict.Clone().(*object.Dict)
			data = raw
			state = stateSource
		} else {
			data = encoded
			out.Set("Filter", object.Name("FlateDecode"))
			out.Remove("DecodeParms")
			state = stateRecompressed
		}
	}

	if engine != nil {
		encrypted, err := engine.EncryptStreamData(data, num, gen)
		if err != nil {
			xlog.Write.Printf("stream %d %d: encryption failed, writing undencrypted: %v", num, gen, err)
		} else {
			data = encrypted
			state = stateEncrypted
		}
	}

	out.Set("Length", object.Integer(len(data)))
	_ = state // final state is stateWritten once the caller emits these bytes
	return out, data
}

// encryptStrings walks obj in place, replacing every String leaf with its
// per-object-key encrypted form. It must never be called for an object
// that ends up packed into an /ObjStm, since spec's object-stream members
// are encrypted once, as part of the container stream, not individually.
func encryptStrings(obj object.Object, num, gen int, engine *crypt.Engine) object.Object {
	switch v := obj.(type) {
	case object.String:
		enc, err := engine.EncryptString(v.Raw, num, gen)
		if err != nil {
			return v
		}
		return object.String{Raw: enc, Form: v.Form}
	case *object.Array:
		for i := 0; i < v.Size(); i++ {
			v.Set(i, encryptStrings(v.Get(i), num, gen, engine))
		}
		return v
	case *object.Dict:
		for _, k := range v.Keys() {
			v.Set(k, encryptStrings(v.Get(k), num, gen, engine))
		}
		return v
	case *object.Stream:
		encryptStrings(v.Dict, num, gen, engine)
		return v
	default:
		return obj
	}
}
