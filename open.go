package qpdf

import (
	"fmt"

	"github.com/holoq/qpdf/crypt"
	"github.com/holoq/qpdf/internal/xlog"
	"github.com/holoq/qpdf/object"
	"github.com/holoq/qpdf/xref"
)

// Open parses a complete PDF file already held in memory (this module never
// streams a source file, matching spec's "single-pass in-memory" framing
// for the writer and the teacher's own whole-buffer reader.file.Context),
// negotiates its encryption (if any) with password, and builds a Document.
// password is tried as both the user and owner password, per spec §4.7; an
// unencrypted document ignores it.
func Open(source []byte, password []byte) (*Document, error) {
	version, err := xref.HeaderVersion(source)
	if err != nil {
		xlog.Xref.Printf("qpdf: could not read header version, defaulting to 1.4: %v", err)
		version = "1.4"
	}

	table, err := xref.Load(source)
	if err != nil {
		return nil, fmt.Errorf("qpdf: %w", err)
	}

	doc := newDocument(table, version, table.Reconstructed)

	if encObj, ok := table.Trailer.Lookup("Encrypt"); ok {
		encDict, ok := table.ResolveShallow(encObj).(*object.Dict)
		if !ok {
			return nil, fmt.Errorf("qpdf: /Encrypt does not resolve to a dictionary")
		}
		id0, err := trailerID0(table.Trailer)
		if err != nil {
			return nil, err
		}
		params, err := parseEncryptDict(encDict, id0)
		if err != nil {
			return nil, fmt.Errorf("qpdf: parsing /Encrypt: %w", err)
		}
		engine, err := crypt.Open(params, password)
		if err != nil {
			return nil, fmt.Errorf("qpdf: %w", err)
		}
		doc.Engine = engine
		table.Decrypt = engine.Decrypt
	}

	if err := doc.EnsurePages(); err != nil {
		return nil, err
	}
	return doc, nil
}

// trailerID0 returns the raw bytes of the trailer's /ID first element,
// required by V<=4 key derivation (PDF Algorithm 2).
func trailerID0(trailer *object.Dict) ([]byte, error) {
	arr, ok := trailer.Get("ID").(*object.Array)
	if !ok || arr.Size() == 0 {
		return nil, fmt.Errorf("qpdf: encrypted document has no /ID")
	}
	s, ok := arr.Get(0).(object.String)
	if !ok {
		return nil, fmt.Errorf("qpdf: /ID[0] is not a string")
	}
	return s.Raw, nil
}

// parseEncryptDict builds a crypt.Params from a parsed /Encrypt dictionary,
// per spec §4.7. Crypt-filter resolution (/CF, /StmF, /StrF) only applies
// for V>=4; earlier revisions always use the algorithm implied by V/R.
func parseEncryptDict(d *object.Dict, id0 []byte) (crypt.Params, error) {
	p := crypt.Params{
		V:      dictInt(d, "V", 0),
		R:      dictInt(d, "R", 2),
		Length: dictInt(d, "Length", 40) / 8,
		P:      int32(dictInt(d, "P", 0)),
		ID0:    id0,
	}
	if name, ok := d.Get("Filter").(object.Name); ok && name != "Standard" {
		return p, fmt.Errorf("unsupported security handler %q", name)
	}
	p.O = dictBytes(d, "O")
	p.U = dictBytes(d, "U")
	if p.V >= 5 {
		p.Length = 32
		p.OE = dictBytes(d, "OE")
		p.UE = dictBytes(d, "UE")
		p.Perms = dictBytes(d, "Perms")
	}
	if b, ok := d.Get("EncryptMetadata").(object.Boolean); ok {
		p.EncryptMetadata = bool(b)
	} else {
		p.EncryptMetadata = true
	}

	// R<=3 always means RC4; AESV2/AESV3 only apply once /StmF, /StrF name
	// a crypt filter (V>=4).
	p.StmDefault, p.StrDefault = crypt.MethodRC4, crypt.MethodRC4
	if p.V >= 4 {
		cf, _ := d.Get("CF").(*object.Dict)
		stmF, _ := d.Get("StmF").(object.Name)
		strF, _ := d.Get("StrF").(object.Name)
		p.StmDefault = resolveCFMethod(cf, stmF)
		p.StrDefault = resolveCFMethod(cf, strF)
	}
	return p, nil
}

func resolveCFMethod(cf *object.Dict, filterName object.Name) crypt.Method {
	if filterName == "" || filterName == "Identity" {
		return crypt.MethodNone
	}
	if cf == nil {
		return crypt.MethodRC4
	}
	entry, ok := cf.Get(filterName).(*object.Dict)
	if !ok {
		return crypt.MethodRC4
	}
	switch entry.Get("CFM").(object.Name) {
	case "AESV2":
		return crypt.MethodAESV2
	case "AESV3":
		return crypt.MethodAESV3
	case "V2":
		return crypt.MethodRC4
	default:
		return crypt.MethodNone
	}
}

func dictInt(d *object.Dict, key object.Name, def int) int {
	if n, ok := d.Get(key).(object.Integer); ok {
		return int(n)
	}
	return def
}

func dictBytes(d *object.Dict, key object.Name) []byte {
	if s, ok := d.Get(key).(object.String); ok {
		return s.Raw
	}
	return nil
}
