package writer

import (
	"crypto/rand"
	"fmt"

	"github.com/holoq/qpdf/crypt"
)

// EncryptConfig negotiates spec §4.10's "Encryption integration": either
// Engine is already a negotiated session copied straight from the source
// document (preserving V/R/O/U/OE/UE/Perms and the crypt-filter dict
// unchanged), or New is set and the writer derives a fresh key and
// credentials for the requested parameters, per spec "Setting new
// parameters triggers key-derivation at write time".
type EncryptConfig struct {
	Engine *crypt.Engine

	New *NewEncryptParams
}

// NewEncryptParams is the caller-facing request to set up encryption from
// scratch: a security handler version/revision, the two passwords, the
// permission bits, and whether to encrypt /Metadata.
type NewEncryptParams struct {
	V, R            int
	Length          int // bytes; ignored (forced to 32) for V>=5
	UserPassword    []byte
	OwnerPassword   []byte
	Permissions     int32
	EncryptMetadata bool
}

// randSalt8 supplies ComputeUR6/ComputeOR6's random-bytes callback from
// crypto/rand, the same collaborator spec §9 names for cryptographic
// primitives.
func randSalt8() ([]byte, []byte) {
	buf := make([]byte, 16)
	rand.Read(buf)
	return buf[:8], buf[8:]
}

// resolveEngineWithID turns an EncryptConfig into a negotiated
// *crypt.Engine, deriving fresh key material for New if Engine wasn't
// already supplied. id0 is the file's (already-frozen) /ID first element,
// needed by V<=4's key derivation (PDF Algorithm 2 folds /ID into the
// file key), which is why spec §4.10 step 1 freezes /ID before encryption
// setup for encrypted files.
func resolveEngineWithID(cfg *EncryptConfig, id0 []byte) (*crypt.Engine, error) {
	if cfg == nil {
		return nil, nil
	}
	if cfg.Engine != nil {
		return cfg.Engine, nil
	}
	if cfg.New == nil {
		return nil, fmt.Errorf("writer: EncryptConfig has neither Engine nor New set")
	}
	return newEngine(cfg.New, id0)
}

func newEngine(p *NewEncryptParams, id0 []byte) (*crypt.Engine, error) {
	params := crypt.Params{
		V: p.V, R: p.R, Length: p.Length,
		P:               p.Permissions,
		EncryptMetadata: p.EncryptMetadata,
		ID0:             id0,
		StmDefault:      crypt.MethodAESV2,
		StrDefault:      crypt.MethodAESV2,
	}
	if p.R <= 4 {
		if params.Length == 0 {
			params.Length = 16
		}
		if p.R <= 3 {
			params.StmDefault, params.StrDefault = crypt.MethodRC4, crypt.MethodRC4
		}
	} else {
		params.Length = 32
	}

	if p.R >= 5 {
		fileKey := make([]byte, 32)
		if _, err := rand.Read(fileKey); err != nil {
			return nil, err
		}
		uEntry, ueKey := crypt.ComputeUR6(p.UserPassword, fileKey, randSalt8)
		oEntry, oeKey := crypt.ComputeOR6(p.OwnerPassword, fileKey, uEntry, randSalt8)
		params.U, params.UE = uEntry, ueKey
		params.O, params.OE = oEntry, oeKey
		permBytes := make([]byte, 4)
		permBytes[0] = byte(p.Permissions)
		permBytes[1] = byte(p.Permissions >> 8)
		permBytes[2] = byte(p.Permissions >> 16)
		permBytes[3] = byte(p.Permissions >> 24)
		perms, err := crypt.BuildPerms(fileKey, params, permBytes)
		if err != nil {
			return nil, err
		}
		params.Perms = perms
		return &crypt.Engine{Params: params, FileKey: fileKey}, nil
	}

	// V<=4: the file key is derived deterministically from the user
	// password, /O, /P and /ID (PDF Algorithm 2), not generated at random.
	params.O = crypt.ComputeO(p.OwnerPassword, p.UserPassword, params)
	fileKey := crypt.DeriveFileKeyV4(p.UserPassword, params)
	params.U = crypt.ComputeU(fileKey, params)
	return &crypt.Engine{Params: params, FileKey: fileKey}, nil
}
