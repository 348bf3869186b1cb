package token

import "testing"

func scanAll(t *testing.T, data string) []Token {
	t.Helper()
	lx := New([]byte(data), Mode{AllowEOF: true})
	var out []Token
	for {
		tok := lx.Next()
		if tok.Kind == EOF {
			break
		}
		out = append(out, tok)
	}
	return out
}

func TestIntegerAndReal(t *testing.T) {
	toks := scanAll(t, "123 -45 +6 3.14 -0.5 .5")
	want := []Kind{Integer, Integer, Integer, Real, Real, Real}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
}

func TestMalformedNumberDecaysToWord(t *testing.T) {
	toks := scanAll(t, "1.2.3")
	if len(toks) != 1 || toks[0].Kind != Word {
		t.Fatalf("expected a single word token, got %v", toks)
	}
}

func TestBoolAndNull(t *testing.T) {
	toks := scanAll(t, "true false null foo")
	if toks[0].Kind != Bool || !toks[0].Bool() {
		t.Errorf("expected true bool token, got %v", toks[0])
	}
	if toks[1].Kind != Bool || toks[1].Bool() {
		t.Errorf("expected false bool token, got %v", toks[1])
	}
	if toks[2].Kind != Null {
		t.Errorf("expected null token, got %v", toks[2])
	}
	if toks[3].Kind != Word || toks[3].Value != "foo" {
		t.Errorf("expected word 'foo', got %v", toks[3])
	}
}

func TestNameHexEscape(t *testing.T) {
	toks := scanAll(t, "/Na#6de /A#42")
	if toks[0].Kind != Name || toks[0].Value != "Name" {
		t.Fatalf("got %v", toks[0])
	}
	if toks[1].Kind != Name || toks[1].Value != "AB" {
		t.Fatalf("got %v", toks[1])
	}
}

func TestNameNulEscapeWarns(t *testing.T) {
	toks := scanAll(t, "/Na#00me")
	if toks[0].Kind != Name || toks[0].Warning == "" {
		t.Fatalf("expected a warning for #00 escape, got %v", toks[0])
	}
	if len(toks[0].Value) != 5 || toks[0].Value[2] != 0 {
		t.Fatalf("expected decoded NUL byte at position 2, got %q", toks[0].Value)
	}
}

func TestLiteralStringEscapes(t *testing.T) {
	toks := scanAll(t, `(abc\n\r\t\(\)\\def)`)
	want := "abc\n\r\t()\\def"
	if toks[0].Kind != String || toks[0].Value != want {
		t.Fatalf("got %q, want %q", toks[0].Value, want)
	}
}

func TestLiteralStringOctalEscape(t *testing.T) {
	toks := scanAll(t, `(\101\102\0501)`)
	want := "AB(1"
	if toks[0].Kind != String || toks[0].Value != want {
		t.Fatalf("got %q, want %q", toks[0].Value, want)
	}
}

func TestLiteralStringBalancedParens(t *testing.T) {
	toks := scanAll(t, "(a(b)c)")
	if toks[0].Kind != String || toks[0].Value != "a(b)c" {
		t.Fatalf("got %q", toks[0].Value)
	}
}

func TestLiteralStringLineContinuation(t *testing.T) {
	toks := scanAll(t, "(a\\\nb)")
	if toks[0].Kind != String || toks[0].Value != "ab" {
		t.Fatalf("got %q", toks[0].Value)
	}
}

func TestHexString(t *testing.T) {
	toks := scanAll(t, "<48656C6C6F> <48 65 6C 6C 6F> <ABC>")
	for i, want := range []string{"Hello", "Hello", "\xab\xc0"} {
		if toks[i].Kind != String || toks[i].Value != want {
			t.Fatalf("token %d: got %q, want %q", i, toks[i].Value, want)
		}
	}
}

func TestDictAndArrayDelimiters(t *testing.T) {
	toks := scanAll(t, "<< /K [1 2] >>")
	wantKinds := []Kind{DictOpen, Name, ArrayOpen, Integer, Integer, ArrayClose, DictClose}
	if len(toks) != len(wantKinds) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(wantKinds), toks)
	}
	for i, k := range wantKinds {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
}

func TestCommentsSkippedByDefault(t *testing.T) {
	toks := scanAll(t, "1 %a comment\n 2")
	if len(toks) != 2 || toks[0].Kind != Integer || toks[1].Kind != Integer {
		t.Fatalf("expected comment to be skipped, got %v", toks)
	}
}

func TestLookahead(t *testing.T) {
	lx := New([]byte("12 0 R"), Mode{AllowEOF: true})
	if lx.Peek().Value != "12" {
		t.Fatalf("peek: got %v", lx.Peek())
	}
	if lx.PeekPeek().Value != "0" {
		t.Fatalf("peekpeek: got %v", lx.PeekPeek())
	}
	_ = lx.Next()
	if lx.Peek().Value != "0" || lx.PeekPeek().Value != "R" {
		t.Fatalf("after Next: peek=%v peekpeek=%v", lx.Peek(), lx.PeekPeek())
	}
}

func TestEOFModes(t *testing.T) {
	allow := New([]byte(""), Mode{AllowEOF: true})
	if allow.Next().Kind != EOF {
		t.Fatal("expected eof token in allow-EOF mode")
	}
	strict := New([]byte("<<"), Mode{AllowEOF: false})
	_ = strict.Next() // dict-open
	if strict.Next().Kind != Bad {
		t.Fatal("expected bad token on premature EOF in strict mode")
	}
}

func TestTokenizerTotality(t *testing.T) {
	// Any finite byte string must either fully tokenize or terminate in a
	// single bad/eof token — it must never hang.
	inputs := []string{"", "(", "<", "<<", "/", "%", "\\", "999999999999999999999999999999", string([]byte{0, 1, 2, 255})}
	for _, in := range inputs {
		lx := New([]byte(in), Mode{AllowEOF: true})
		for i := 0; i < 1000; i++ {
			tok := lx.Next()
			if tok.Kind == EOF {
				break
			}
			if i == 999 {
				t.Fatalf("tokenizer looped on input %q", in)
			}
		}
	}
}

func TestInlineImageScan(t *testing.T) {
	data := []byte("BI /W 1/H 1 ID \x00\x01\x02 EI Q")
	idStart := 15 // offset right after "ID "
	lx := New(data, Mode{AllowEOF: true})
	lx.Seek(idStart)
	img, n := lx.ScanInlineImageEnd()
	if string(img) != "\x00\x01\x02 " {
		t.Fatalf("got image bytes %q", img)
	}
	if idStart+n != len("BI /W 1/H 1 ID \x00\x01\x02 EI") {
		t.Fatalf("consumed %d bytes, landed at %d", n, idStart+n)
	}
}
