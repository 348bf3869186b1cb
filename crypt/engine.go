package crypt

import (
	"errors"

	"github.com/holoq/qpdf/object"
)

// Engine is a negotiated encryption session for one document: a Params plus
// the recovered file encryption key, able to decrypt every indirect string
// and stream it is handed. Its Decrypt method matches the signature
// xref.Table.Decrypt expects, so a Table is wired to one with
// `table.Decrypt = engine.Decrypt`.
type Engine struct {
	Params  Params
	FileKey []byte

	// IsOwner records whether the key was recovered via the owner password,
	// which per spec grants full permissions regardless of /P.
	IsOwner bool
}

// Open negotiates an Engine from a document's parsed Encrypt dict fields,
// trying candidatePassword as both user and owner password, per spec
// §4.7's password-check algorithms across all five (V,R) combinations.
func Open(p Params, candidatePassword []byte) (*Engine, error) {
	if p.V >= 5 {
		if key, ok := CheckUserPasswordR6(candidatePassword, p); ok {
			return &Engine{Params: p, FileKey: key}, nil
		}
		if key, ok := CheckOwnerPasswordR6(candidatePassword, p); ok {
			return &Engine{Params: p, FileKey: key, IsOwner: true}, nil
		}
		return nil, ErrWrongPassword
	}

	if key, ok := CheckUserPasswordV4(candidatePassword, p); ok {
		return &Engine{Params: p, FileKey: key}, nil
	}
	if key, ok := CheckOwnerPasswordV4(candidatePassword, p); ok {
		return &Engine{Params: p, FileKey: key, IsOwner: true}, nil
	}
	return nil, ErrWrongPassword
}

func (e *Engine) usesAES(stream bool) bool {
	method := e.Params.StrDefault
	if stream {
		method = e.Params.StmDefault
	}
	if e.Params.V >= 5 {
		return true // V5 only ever defines AESV3
	}
	return method == MethodAESV2
}

// objectKey returns the per-object key for (num,gen): the file key directly
// for V5, or the MD5-derived per-object key for V<5.
func (e *Engine) objectKey(num, gen int, aes bool) []byte {
	if e.Params.V >= 5 {
		return e.FileKey
	}
	return ObjectKey(e.FileKey, num, gen, aes)
}

func (e *Engine) decryptBytes(data []byte, num, gen int, stream bool) ([]byte, error) {
	method := e.Params.StrDefault
	if stream {
		method = e.Params.StmDefault
	}
	if e.Params.V >= 5 {
		method = MethodAESV3
	}
	switch method {
	case MethodNone:
		return data, nil
	case MethodRC4:
		return rc4Crypt(e.objectKey(num, gen, false), data), nil
	case MethodAESV2, MethodAESV3:
		return decryptAESCBC(e.objectKey(num, gen, e.usesAES(stream)), data)
	default:
		return nil, errors.New("crypt: unknown crypt filter method")
	}
}

// Decrypt recursively decrypts every String reachable from obj (and, if obj
// is itself a Stream, its payload) in place, matching xref.Table.Decrypt's
// signature. Objects inside object streams must never reach this method —
// the xref loader already excludes them, per spec's "never separately
// encrypted" rule.
func (e *Engine) Decrypt(obj object.Object, og object.ObjGen) (object.Object, error) {
	return e.decrypt(obj, og.Num, og.Gen)
}

func (e *Engine) decrypt(obj object.Object, num, gen int) (object.Object, error) {
	switch v := obj.(type) {
	case object.String:
		plain, err := e.decryptBytes(v.Raw, num, gen, false)
		if err != nil {
			return nil, err
		}
		return object.String{Raw: plain, Form: v.Form}, nil
	case *object.Array:
		for i := 0; i < v.Size(); i++ {
			dv, err := e.decrypt(v.Get(i), num, gen)
			if err != nil {
				return nil, err
			}
			v.Set(i, dv)
		}
		return v, nil
	case *object.Dict:
		for _, k := range v.Keys() {
			dv, err := e.decrypt(v.Get(k), num, gen)
			if err != nil {
				return nil, err
			}
			v.Set(k, dv)
		}
		return v, nil
	case *object.Stream:
		if _, err := e.decrypt(v.Dict, num, gen); err != nil {
			return nil, err
		}
		if isIdentityStream(v.Dict) {
			return v, nil
		}
		raw, err := v.GetData()
		if err != nil {
			return nil, err
		}
		plain, err := e.decryptBytes(raw, num, gen, true)
		if err != nil {
			return nil, err
		}
		v.SetData(plain)
		return v, nil
	default:
		return obj, nil
	}
}

// isIdentityStream reports whether a stream declares an explicit Crypt
// filter naming the Identity crypt filter, which per spec means "no
// encryption" for that stream regardless of /StmF.
func isIdentityStream(d *object.Dict) bool {
	name, ok := d.Get("Filter").(object.Name)
	if !ok || name != "Crypt" {
		return false
	}
	parms, ok := d.Get("DecodeParms").(*object.Dict)
	if !ok {
		return false
	}
	n, _ := parms.Get("Name").(object.Name)
	return n == "Identity"
}

// EncryptString encrypts a plaintext string for writing, the inverse of
// Decrypt's string branch, used by the writer's per-object encryption pass.
func (e *Engine) EncryptString(plain []byte, num, gen int) ([]byte, error) {
	return e.encryptBytes(plain, num, gen, false)
}

// EncryptStreamData encrypts a stream's decoded payload for writing.
func (e *Engine) EncryptStreamData(plain []byte, num, gen int) ([]byte, error) {
	return e.encryptBytes(plain, num, gen, true)
}

func (e *Engine) encryptBytes(data []byte, num, gen int, stream bool) ([]byte, error) {
	method := e.Params.StrDefault
	if stream {
		method = e.Params.StmDefault
	}
	if e.Params.V >= 5 {
		method = MethodAESV3
	}
	switch method {
	case MethodNone:
		return data, nil
	case MethodRC4:
		return rc4Crypt(e.objectKey(num, gen, false), data), nil
	case MethodAESV2, MethodAESV3:
		return encryptAESCBCRandomIV(e.objectKey(num, gen, e.usesAES(stream)), data)
	default:
		return nil, errors.New("crypt: unknown crypt filter method")
	}
}
