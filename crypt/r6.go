package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
)

// hash2B implements "Hash algorithm 2.B" (ISO 32000-2 Annex B), the
// iterative SHA-256/384/512 hash used to derive R6 validation/key salted
// hashes. udata is the extra data appended for owner-password hashing (the
// /U string), empty for user-password hashing.
func hash2B(password, salt, udata []byte, iterate bool) []byte {
	h := sha256.New()
	h.Write(password)
	h.Write(salt)
	h.Write(udata)
	k := h.Sum(nil)

	if !iterate {
		return k // R5: no outer iteration loop
	}

	round := 0
	for {
		k1 := make([]byte, 0, 64*(len(password)+len(k)+len(udata)))
		for i := 0; i < 64; i++ {
			k1 = append(k1, password...)
			k1 = append(k1, k...)
			k1 = append(k1, udata...)
		}

		block, err := aes.NewCipher(k[:16])
		if err != nil {
			return k
		}
		e := make([]byte, len(k1))
		cipher.NewCBCEncrypter(block, k[16:32]).CryptBlocks(e, k1)

		sum := 0
		for _, b := range e[:16] {
			sum += int(b)
		}
		switch sum % 3 {
		case 0:
			s := sha256.Sum256(e)
			k = s[:]
		case 1:
			s := sha512.Sum384(e)
			k = s[:]
		case 2:
			s := sha512.Sum512(e)
			k = s[:]
		}

		round++
		if round >= 64 && int(e[len(e)-1]) <= round-32 {
			break
		}
	}
	return k[:32]
}

// r6Salts splits a 48-byte /U or /O string into its validation-salt and
// key-salt halves (bytes 32:40 and 40:48; the first 32 bytes are the hash).
func r6Salts(entry []byte) (hash, validationSalt, keySalt []byte, ok bool) {
	if len(entry) < 48 {
		return nil, nil, nil, false
	}
	return entry[:32], entry[32:40], entry[40:48], true
}

// CheckUserPasswordR6 validates candidate against /U and, if it matches,
// recovers the file encryption key by decrypting /UE with the intermediate
// key derived from the key salt.
func CheckUserPasswordR6(candidate []byte, p Params) (fileKey []byte, ok bool) {
	candidate = truncate127(candidate)
	hash, valSalt, keySalt, ok := r6Salts(p.U)
	if !ok {
		return nil, false
	}
	iterate := p.R >= 6
	if got := hash2B(candidate, valSalt, nil, iterate); !bytes.Equal(got, hash) {
		return nil, false
	}
	intermediate := hash2B(candidate, keySalt, nil, iterate)
	key, err := decryptAESCBCZeroIV(intermediate, p.UE)
	if err != nil {
		return nil, false
	}
	return key, true
}

// CheckOwnerPasswordR6 validates candidate against /O (hashed together with
// /U, per the spec) and recovers the file key from /OE.
func CheckOwnerPasswordR6(candidate []byte, p Params) (fileKey []byte, ok bool) {
	candidate = truncate127(candidate)
	hash, valSalt, keySalt, ok := r6Salts(p.O)
	if !ok {
		return nil, false
	}
	iterate := p.R >= 6
	udata := p.U
	if len(udata) > 48 {
		udata = udata[:48]
	}
	if got := hash2B(candidate, valSalt, udata, iterate); !bytes.Equal(got, hash) {
		return nil, false
	}
	intermediate := hash2B(candidate, keySalt, udata, iterate)
	key, err := decryptAESCBCZeroIV(intermediate, p.OE)
	if err != nil {
		return nil, false
	}
	return key, true
}

func truncate127(pw []byte) []byte {
	if len(pw) > 127 {
		return pw[:127]
	}
	return pw
}

// ComputeUR6 and ComputeOR6 build fresh /U and /O entries for a new R6
// encryption setup, needed by the writer when "encrypt(params)" is
// requested rather than preserved from a source file.
func ComputeUR6(userPassword, fileKey []byte, randSalt8 func() ([]byte, []byte)) ([]byte, []byte) {
	valSalt, keySalt := randSalt8()
	pw := truncate127(userPassword)
	hash := hash2B(pw, valSalt, nil, true)
	u := append(append(append([]byte(nil), hash...), valSalt...), keySalt...)

	intermediate := hash2B(pw, keySalt, nil, true)
	ue, _ := encryptAESCBCZeroIV(intermediate, fileKey)
	return u, ue
}

func ComputeOR6(ownerPassword, fileKey, uEntry []byte, randSalt8 func() ([]byte, []byte)) ([]byte, []byte) {
	valSalt, keySalt := randSalt8()
	pw := truncate127(ownerPassword)
	udata := uEntry
	if len(udata) > 48 {
		udata = udata[:48]
	}
	hash := hash2B(pw, valSalt, udata, true)
	o := append(append(append([]byte(nil), hash...), valSalt...), keySalt...)

	intermediate := hash2B(pw, keySalt, udata, true)
	oe, _ := encryptAESCBCZeroIV(intermediate, fileKey)
	return o, oe
}

// ValidatePerms implements the "/Perms AES-ECB validation" check: decrypt
// the 16-byte /Perms block with the file key and confirm it encodes P, the
// encrypt-metadata flag, and the literal "adb" marker.
func ValidatePerms(fileKey []byte, perms []byte, p Params) bool {
	plain, err := decryptAESECBBlock(fileKey, perms)
	if err != nil {
		return false
	}
	gotP := int32(plain[0]) | int32(plain[1])<<8 | int32(plain[2])<<16 | int32(plain[3])<<24
	if gotP != p.P {
		return false
	}
	wantMeta := byte('F')
	if p.EncryptMetadata {
		wantMeta = 'T'
	}
	if plain[8] != wantMeta {
		return false
	}
	return plain[9] == 'a' && plain[10] == 'd' && plain[11] == 'b'
}

// BuildPerms constructs a fresh /Perms block for a new R6 encryption setup.
func BuildPerms(fileKey []byte, p Params, randomBytes4 []byte) ([]byte, error) {
	block := make([]byte, 16)
	block[0] = byte(p.P)
	block[1] = byte(p.P >> 8)
	block[2] = byte(p.P >> 16)
	block[3] = byte(p.P >> 24)
	block[4], block[5], block[6], block[7] = 0xFF, 0xFF, 0xFF, 0xFF
	if p.EncryptMetadata {
		block[8] = 'T'
	} else {
		block[8] = 'F'
	}
	block[9], block[10], block[11] = 'a', 'd', 'b'
	copy(block[12:16], randomBytes4)

	c, err := aes.NewCipher(fileKey)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 16)
	c.Encrypt(out, block)
	return out, nil
}
