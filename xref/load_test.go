package xref

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"testing"

	"github.com/holoq/qpdf/object"
)

func buildClassicPDF() ([]byte, int, int) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	obj1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	obj2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", obj1)
	fmt.Fprintf(&buf, "%010d 00000 n \n", obj2)
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)

	return buf.Bytes(), obj1, obj2
}

func TestLoadClassicXRefTable(t *testing.T) {
	data, _, _ := buildClassicPDF()

	table, err := Load(data)
	if err != nil {
		t.Fatal(err)
	}
	root, ok := table.Trailer.Lookup("Root")
	if !ok {
		t.Fatal("missing /Root in trailer")
	}
	ref := root.(object.Reference)
	catalog, ok := table.Resolve(ref.ObjGen())
	if !ok {
		t.Fatal("could not resolve Root")
	}
	d := catalog.(*object.Dict)
	if d.Get("Type").(object.Name) != "Catalog" {
		t.Fatalf("got %v", d.Get("Type"))
	}

	pagesRef := d.Get("Pages").(object.Reference)
	pages, _ := table.Resolve(pagesRef.ObjGen())
	if pages.(*object.Dict).Get("Type").(object.Name) != "Pages" {
		t.Fatal("expected Pages dict")
	}
}

func TestLoadClassicFreeEntryResolvesToNull(t *testing.T) {
	data, _, _ := buildClassicPDF()
	table, err := Load(data)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := table.Resolve(object.ObjGen{Num: 0, Gen: 65535})
	if !ok {
		t.Fatal("expected ok")
	}
	if _, isNull := v.(object.Null); !isNull {
		t.Fatalf("expected null for free entry, got %T", v)
	}
}

func TestLoadMissingObjectResolvesToNull(t *testing.T) {
	data, _, _ := buildClassicPDF()
	table, _ := Load(data)
	v, ok := table.Resolve(object.ObjGen{Num: 99, Gen: 0})
	if !ok {
		t.Fatal("expected ok per 7.3.10")
	}
	if _, isNull := v.(object.Null); !isNull {
		t.Fatalf("expected null, got %T", v)
	}
}

// buildXRefStreamPDF builds a minimal single-section PDF whose
// cross-reference data is a cross-reference stream (PDF 1.5+),
// flate-encoded.
func buildXRefStreamPDF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	obj1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	obj2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xrefObjNum := 3
	xrefOffset := buf.Len()

	// W = [1 4 1]: type byte, 4-byte field2, 1-byte field3.
	entry := func(typ byte, f2 uint32, f3 byte) []byte {
		return []byte{typ, byte(f2 >> 24), byte(f2 >> 16), byte(f2 >> 8), byte(f2), f3}
	}
	var raw bytes.Buffer
	raw.Write(entry(0, 0, 255))           // object 0: free, next free = 255 (unused)
	raw.Write(entry(1, uint32(obj1), 0))  // object 1
	raw.Write(entry(1, uint32(obj2), 0))  // object 2
	raw.Write(entry(1, uint32(xrefOffset), 0)) // object 3 (the xref stream itself)

	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	w.Write(raw.Bytes())
	w.Close()

	fmt.Fprintf(&buf, "%d 0 obj\n", xrefObjNum)
	fmt.Fprintf(&buf, "<< /Type /XRef /Size 4 /Root 1 0 R /W [1 4 1] /Filter /FlateDecode /Length %d >>\n", compressed.Len())
	buf.WriteString("stream\n")
	buf.Write(compressed.Bytes())
	buf.WriteString("\nendstream\nendobj\n")

	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)
	return buf.Bytes()
}

func TestLoadXRefStream(t *testing.T) {
	data := buildXRefStreamPDF(t)
	table, err := Load(data)
	if err != nil {
		t.Fatal(err)
	}
	root, ok := table.Trailer.Lookup("Root")
	if !ok {
		t.Fatal("xref stream dict should supply /Root via its own dict acting as trailer")
	}
	catalog, _ := table.Resolve(root.(object.Reference).ObjGen())
	d, ok := catalog.(*object.Dict)
	if !ok || d.Get("Type").(object.Name) != "Catalog" {
		t.Fatalf("got %v", catalog)
	}
}

func TestRecoverByBruteForce(t *testing.T) {
	// A file with a real trailer but deliberately no startxref/xref section
	// at all, forcing the brute-force scan.
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")

	table, err := Recover(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	root, ok := table.Trailer.Lookup("Root")
	if !ok {
		t.Fatal("missing /Root")
	}
	catalog, _ := table.Resolve(root.(object.Reference).ObjGen())
	if catalog.(*object.Dict).Get("Type").(object.Name) != "Catalog" {
		t.Fatal("expected Catalog")
	}
}

func TestRecoverSynthesizesTrailerFromCatalogWhenNoneFound(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")
	// no trailer keyword anywhere

	table, err := Recover(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	root, ok := table.Trailer.Lookup("Root")
	if !ok {
		t.Fatal("expected synthesized /Root")
	}
	if root.(object.Reference).Num != 1 {
		t.Fatalf("got %v", root)
	}
}

func TestLoadFallsBackToRecoverWhenNoStartXRef(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")

	table, err := Load(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := table.Trailer.Lookup("Root"); !ok {
		t.Fatal("Load should have fallen back to Recover and found /Root")
	}
}
