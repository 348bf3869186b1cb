package objparse

import (
	"testing"

	"github.com/holoq/qpdf/object"
)

func parseOK(t *testing.T, data string) object.Object {
	t.Helper()
	obj, err := New([]byte(data)).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject(%q): %v", data, err)
	}
	return obj
}

func TestParseScalars(t *testing.T) {
	if _, ok := parseOK(t, "null").(object.Null); !ok {
		t.Fatal("expected null")
	}
	if v := parseOK(t, "true").(object.Boolean); !v {
		t.Fatal("expected true")
	}
	if v := parseOK(t, "123").(object.Integer); v != 123 {
		t.Fatalf("got %v", v)
	}
	if v := parseOK(t, "-3.14").(object.Real); v != -3.14 {
		t.Fatalf("got %v", v)
	}
	if v := parseOK(t, "/Name").(object.Name); v != "Name" {
		t.Fatalf("got %v", v)
	}
}

func TestParseIndirectReference(t *testing.T) {
	ref := parseOK(t, "12 0 R").(object.Reference)
	if ref.Num != 12 || ref.Gen != 0 {
		t.Fatalf("got %+v", ref)
	}
}

func TestParseBareIntegerNotMistakenForReference(t *testing.T) {
	v := parseOK(t, "12 0 obj").(object.Integer)
	if v != 12 {
		t.Fatalf("got %v", v)
	}
}

func TestParseArray(t *testing.T) {
	arr := parseOK(t, "[1 2 /Three]").(*object.Array)
	if arr.Size() != 3 {
		t.Fatalf("got size %d", arr.Size())
	}
	if arr.Get(2).(object.Name) != "Three" {
		t.Fatalf("got %v", arr.Get(2))
	}
}

func TestParseDict(t *testing.T) {
	d := parseOK(t, "<< /A 1 /B (hello) >>").(*object.Dict)
	if d.Get("A").(object.Integer) != 1 {
		t.Fatalf("got %v", d.Get("A"))
	}
	if d.Get("B").(object.String).Text() != "hello" {
		t.Fatalf("got %v", d.Get("B"))
	}
}

func TestParseDictNullEntryOmitted(t *testing.T) {
	d := parseOK(t, "<< /A null /B 1 >>").(*object.Dict)
	if _, ok := d.Lookup("A"); ok {
		t.Fatal("null-valued entry should be omitted")
	}
	if d.Len() != 1 {
		t.Fatalf("got %d keys", d.Len())
	}
}

func TestParseStream(t *testing.T) {
	data := "<< /Length 5 >>\nstream\nhello\nendstream"
	s := parseOK(t, data).(*object.Stream)
	raw, err := s.GetData()
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "hello" {
		t.Fatalf("got %q", raw)
	}
}

func TestParseStreamRecoversMissingLength(t *testing.T) {
	data := "<< /Foo 1 >>\nstream\nhello world\nendstream"
	s := parseOK(t, data).(*object.Stream)
	raw, _ := s.GetData()
	if string(raw) != "hello world" {
		t.Fatalf("got %q", raw)
	}
}

func TestParseObjectDefinition(t *testing.T) {
	def, err := ParseObjectDefinition([]byte("7 0 obj <</X 1>> endobj"), false)
	if err != nil {
		t.Fatal(err)
	}
	if def.Num != 7 || def.Gen != 0 {
		t.Fatalf("got %+v", def)
	}
	d := def.Value.(*object.Dict)
	if d.Get("X").(object.Integer) != 1 {
		t.Fatalf("got %v", d.Get("X"))
	}
}

func TestParseCompleteObjectRejectsTrailingGarbage(t *testing.T) {
	if _, err := ParseCompleteObject([]byte("1 garbage")); err == nil {
		t.Fatal("expected trailing-data error")
	}
	if _, err := ParseCompleteObject([]byte("1   \n")); err != nil {
		t.Fatalf("trailing whitespace should be accepted: %v", err)
	}
}

func TestParseContentStreamModeAllowsOperators(t *testing.T) {
	p := New([]byte("1 0 0 1 0 0 cm"))
	p.ContentStreamMode = true
	for i := 0; i < 6; i++ {
		if _, err := p.ParseObject(); err != nil {
			t.Fatalf("operand %d: %v", i, err)
		}
	}
	op, err := p.ParseObject()
	if err != nil {
		t.Fatal(err)
	}
	if op.(object.Operator) != "cm" {
		t.Fatalf("got %v", op)
	}
}
