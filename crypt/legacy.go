package crypt

import "bytes"

// DeriveFileKeyV4 implements PDF Algorithm 2 (V1/V2/V4, R2-R4): derive the
// file encryption key from a (padded) user password.
func DeriveFileKeyV4(userPassword []byte, p Params) []byte {
	padded := padPassword(userPassword)

	buf := make([]byte, 0, 32+len(p.O)+4+len(p.ID0)+4)
	buf = append(buf, padded...)
	buf = append(buf, p.O...)
	buf = append(buf, byte(p.P), byte(p.P>>8), byte(p.P>>16), byte(p.P>>24))
	buf = append(buf, p.ID0...)
	if p.R >= 4 && !p.EncryptMetadata {
		buf = append(buf, 0xFF, 0xFF, 0xFF, 0xFF)
	}

	key := md50(buf)
	if p.R >= 3 {
		for i := 0; i < 50; i++ {
			key = md50(key[:p.Length])
		}
	}
	return key[:p.Length]
}

// ownerKey derives O_key: MD5 of the padded owner (or user) password,
// re-hashed 50 times for R>=3, truncated to Length.
func ownerKey(ownerOrUserPassword []byte, p Params) []byte {
	padded := padPassword(ownerOrUserPassword)
	key := md50(padded)
	if p.R >= 3 {
		for i := 0; i < 50; i++ {
			key = md50(key[:p.Length])
		}
	}
	return key[:p.Length]
}

// rc4With20Rounds implements the R>=3 "repeat 20 times XORing the round
// index into each key byte" step shared by /O and /U derivation.
func rc4With20Rounds(key, data []byte, encrypt bool) []byte {
	out := append([]byte(nil), data...)
	if encrypt {
		for round := 0; round < 20; round++ {
			rk := xorKeyRound(key, round)
			out = rc4Crypt(rk, out)
		}
		return out
	}
	for round := 19; round >= 0; round-- {
		rk := xorKeyRound(key, round)
		out = rc4Crypt(rk, out)
	}
	return out
}

func xorKeyRound(key []byte, round int) []byte {
	out := make([]byte, len(key))
	for i, b := range key {
		out[i] = b ^ byte(round)
	}
	return out
}

// ComputeO computes the /O entry: the padded user password, RC4-encrypted
// under O_key (with the R>=3 20-round XOR scheme).
func ComputeO(ownerPassword, userPassword []byte, p Params) []byte {
	ok := ownerKey(ownerPassword, p)
	padded := padPassword(userPassword)
	if p.R == 2 {
		return rc4Crypt(ok, padded)
	}
	return rc4With20Rounds(ok, padded, true)
}

// RecoverUserPasswordFromO decrypts /O under O_key(candidateOwnerPW) to
// recover the padded user password used at encryption time.
func RecoverUserPasswordFromO(candidateOwnerPassword []byte, p Params) []byte {
	ok := ownerKey(candidateOwnerPassword, p)
	if p.R == 2 {
		return rc4Crypt(ok, p.O)
	}
	return rc4With20Rounds(ok, p.O, false)
}

// ComputeU computes the /U entry for a given file key, per PDF Algorithm 4
// (R2) / Algorithm 5 (R>=3).
func ComputeU(fileKey []byte, p Params) []byte {
	if p.R == 2 {
		return rc4Crypt(fileKey, Padding[:])
	}
	buf := append(append([]byte(nil), Padding[:]...), p.ID0...)
	digest := md50(buf)
	enc := rc4With20Rounds(fileKey, digest, true)
	out := make([]byte, 32)
	copy(out, enc)
	return out
}

// CheckUserPasswordV4 derives the file key for candidate as a user password
// and reports whether it matches /U.
func CheckUserPasswordV4(candidate []byte, p Params) (fileKey []byte, ok bool) {
	fileKey = DeriveFileKeyV4(candidate, p)
	u := ComputeU(fileKey, p)
	if p.R == 2 {
		return fileKey, bytes.Equal(u, p.U)
	}
	if len(p.U) < 16 || len(u) < 16 {
		return fileKey, false
	}
	return fileKey, bytes.Equal(u[:16], p.U[:16])
}

// CheckOwnerPasswordV4 recovers the user password candidateOwnerPassword
// would have produced and validates it, per PDF's "Algorithm 7".
func CheckOwnerPasswordV4(candidateOwnerPassword []byte, p Params) (fileKey []byte, ok bool) {
	userPassword := RecoverUserPasswordFromO(candidateOwnerPassword, p)
	return CheckUserPasswordV4(userPassword, p)
}
