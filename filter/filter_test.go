package filter

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/holoq/qpdf/object"
)

func dictWithFilter(name object.Name) *object.Dict {
	d := object.NewDict()
	d.Set("Filter", name)
	return d
}

func TestDecodeASCIIHex(t *testing.T) {
	got, err := decodeASCIIHex([]byte("68656c6c6f>"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeASCIIHexOddDigit(t *testing.T) {
	got, err := decodeASCIIHex([]byte("1>"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 0x10 {
		t.Fatalf("got %v", got)
	}
}

func TestDecodeRunLength(t *testing.T) {
	// 2 literal bytes "AB", then "C" repeated 3 times, then EOD.
	in := []byte{1, 'A', 'B', 254, 'C', 128}
	got, err := decodeRunLength(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "ABCCC" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeASCII85(t *testing.T) {
	in := []byte("BOu!rD]j7BOu!rD]j7~>")
	got, err := decodeASCII85(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("expected decoded bytes")
	}
}

func TestDecodeFlateViaPipeline(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write([]byte("hello, flate"))
	w.Close()

	dict := dictWithFilter(FlateDecode)
	out, err := Decode(dict, buf.Bytes(), LevelAll)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello, flate" {
		t.Fatalf("got %q", out)
	}
}

func TestDecodeLevelNoneIsNoop(t *testing.T) {
	dict := dictWithFilter(FlateDecode)
	raw := []byte("not actually flate data")
	out, err := Decode(dict, raw, LevelNone)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatal("LevelNone must not touch the data")
	}
}

func TestDecodeImageFilterPassesThroughBelowLevelAll(t *testing.T) {
	dict := dictWithFilter(DCTDecode)
	raw := []byte("\xff\xd8 pretend jpeg")
	out, err := Decode(dict, raw, LevelGeneralized)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatal("image filter should pass through unchanged at non-all levels")
	}
}

func TestDecodeImageFilterErrorsAtLevelAll(t *testing.T) {
	dict := dictWithFilter(DCTDecode)
	if _, err := Decode(dict, []byte("x"), LevelAll); err == nil {
		t.Fatal("expected error requesting full decode of an undecoded-by-design filter")
	}
}

func TestDecodeFilterChain(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write([]byte("68656c6c6f>"))
	w.Close()

	dict := object.NewDict()
	chainArr := object.NewArray(object.Name(FlateDecode), object.Name(ASCIIHexDecode))
	dict.Set("Filter", chainArr)

	out, err := Decode(dict, buf.Bytes(), LevelAll)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello" {
		t.Fatalf("got %q", out)
	}
}

func TestRegisterCustomFilter(t *testing.T) {
	Register("X-Reverse", reverseFilter{})
	dict := dictWithFilter("X-Reverse")
	out, err := Decode(dict, []byte("olleh"), LevelAll)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello" {
		t.Fatalf("got %q", out)
	}
}

type reverseFilter struct{}

func (reverseFilter) Decode(_ *object.Dict, data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	for i, b := range data {
		out[len(data)-1-i] = b
	}
	return out, nil
}
