package crypt

import (
	"bytes"
	"testing"

	"github.com/holoq/qpdf/object"
)

func paramsR3() Params {
	return Params{
		V: 2, R: 3, Length: 16,
		P:               -4,
		ID0:             []byte("0123456789abcdef"),
		EncryptMetadata: true,
		StmDefault:      MethodRC4,
		StrDefault:      MethodRC4,
	}
}

func TestLegacyV4PasswordRoundTrip(t *testing.T) {
	p := paramsR3()
	userPW := []byte("user")
	ownerPW := []byte("owner")

	p.O = ComputeO(ownerPW, userPW, p)
	fileKey := DeriveFileKeyV4(userPW, p)
	p.U = ComputeU(fileKey, p)

	if got, ok := CheckUserPasswordV4(userPW, p); !ok || !bytes.Equal(got, fileKey) {
		t.Fatalf("user password check failed: ok=%v", ok)
	}
	if got, ok := CheckOwnerPasswordV4(ownerPW, p); !ok || !bytes.Equal(got, fileKey) {
		t.Fatalf("owner password check failed: ok=%v", ok)
	}
	if _, ok := CheckUserPasswordV4([]byte("wrong"), p); ok {
		t.Fatal("wrong password should not validate")
	}
}

func TestObjectKeyDeterministicAndTruncated(t *testing.T) {
	fileKey := make([]byte, 5) // 40-bit
	k1 := ObjectKey(fileKey, 7, 0, false)
	k2 := ObjectKey(fileKey, 7, 0, false)
	if !bytes.Equal(k1, k2) {
		t.Fatal("ObjectKey must be deterministic")
	}
	if len(k1) != 10 { // min(5+5, 16)
		t.Fatalf("got key length %d", len(k1))
	}
	k3 := ObjectKey(fileKey, 8, 0, false)
	if bytes.Equal(k1, k3) {
		t.Fatal("different object numbers must yield different keys")
	}
}

func TestRC4RoundTrip(t *testing.T) {
	key := []byte("somekey123")
	plain := []byte("hello, rc4")
	enc := rc4Crypt(key, plain)
	dec := rc4Crypt(key, enc)
	if !bytes.Equal(dec, plain) {
		t.Fatalf("got %q", dec)
	}
}

func TestAESCBCRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	plain := []byte("an AES string payload")
	enc, err := encryptAESCBCRandomIV(key, plain)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := decryptAESCBC(key, enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("got %q", dec)
	}
}

func TestHash2BDeterministic(t *testing.T) {
	h1 := hash2B([]byte("pw"), []byte("saltsalt"), nil, true)
	h2 := hash2B([]byte("pw"), []byte("saltsalt"), nil, true)
	if !bytes.Equal(h1, h2) {
		t.Fatal("hash2B must be deterministic")
	}
	h3 := hash2B([]byte("pw2"), []byte("saltsalt"), nil, true)
	if bytes.Equal(h1, h3) {
		t.Fatal("different passwords must hash differently")
	}
}

func fixedSalts(v validationSalt, k keySaltT) func() ([]byte, []byte) {
	return func() ([]byte, []byte) { return v[:], k[:] }
}

type validationSalt [8]byte
type keySaltT [8]byte

func TestR6PasswordRoundTrip(t *testing.T) {
	fileKey := bytes.Repeat([]byte{0x42}, 32)
	userPW := []byte("user")
	ownerPW := []byte("owner")

	u, ue := ComputeUR6(userPW, fileKey, fixedSalts(validationSalt{1, 2, 3, 4, 5, 6, 7, 8}, keySaltT{9, 10, 11, 12, 13, 14, 15, 16}))
	o, oe := ComputeOR6(ownerPW, fileKey, u, fixedSalts(validationSalt{21, 22, 23, 24, 25, 26, 27, 28}, keySaltT{31, 32, 33, 34, 35, 36, 37, 38}))

	p := Params{V: 5, R: 6, U: u, UE: ue, O: o, OE: oe}

	gotKey, ok := CheckUserPasswordR6(userPW, p)
	if !ok || !bytes.Equal(gotKey, fileKey) {
		t.Fatalf("user password check failed: ok=%v", ok)
	}
	gotKey, ok = CheckOwnerPasswordR6(ownerPW, p)
	if !ok || !bytes.Equal(gotKey, fileKey) {
		t.Fatalf("owner password check failed: ok=%v", ok)
	}
	if _, ok := CheckUserPasswordR6([]byte("wrong"), p); ok {
		t.Fatal("wrong password should not validate")
	}
}

func TestPermsRoundTrip(t *testing.T) {
	fileKey := bytes.Repeat([]byte{0x7}, 32)
	p := Params{P: -44, EncryptMetadata: true}
	perms, err := BuildPerms(fileKey, p, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if !ValidatePerms(fileKey, perms, p) {
		t.Fatal("expected valid perms")
	}
	p.P = 0
	if ValidatePerms(fileKey, perms, p) {
		t.Fatal("mismatched P should fail validation")
	}
}

func TestEngineDecryptsStringsThroughoutTree(t *testing.T) {
	p := paramsR3()
	userPW := []byte("user")
	p.O = ComputeO([]byte("owner"), userPW, p)
	fileKey := DeriveFileKeyV4(userPW, p)
	p.U = ComputeU(fileKey, p)

	e, err := Open(p, userPW)
	if err != nil {
		t.Fatal(err)
	}

	plain := []byte("secret text")
	encrypted := rc4Crypt(e.objectKey(5, 0, false), plain)

	dict := object.NewDict()
	dict.Set("S", object.String{Raw: encrypted, Form: object.Literal})
	arr := object.NewArray(object.String{Raw: encrypted, Form: object.Literal})
	dict.Set("A", arr)

	decrypted, err := e.Decrypt(dict, object.ObjGen{Num: 5, Gen: 0})
	if err != nil {
		t.Fatal(err)
	}
	out := decrypted.(*object.Dict)
	if !bytes.Equal(out.Get("S").(object.String).Raw, plain) {
		t.Fatalf("got %q", out.Get("S").(object.String).Raw)
	}
	gotArr := out.Get("A").(*object.Array)
	if !bytes.Equal(gotArr.Get(0).(object.String).Raw, plain) {
		t.Fatal("array element should be decrypted too")
	}
}
