package qpdf

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/holoq/qpdf/object"
	"github.com/holoq/qpdf/writer"
)

func buildSimplePDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	obj1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	obj2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	obj3 := buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>\nendobj\n")

	obj4 := buf.Len()
	buf.WriteString("4 0 obj\n<< /Length 6 >>\nstream\nBT ET \nendstream\nendobj\n")

	obj5 := buf.Len()
	buf.WriteString("5 0 obj\n<< /Producer (qpdf test) >>\nendobj\n")

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 6\n")
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range []int{obj1, obj2, obj3, obj4, obj5} {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	buf.WriteString("trailer\n<< /Size 6 /Root 1 0 R /Info 5 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)

	return buf.Bytes()
}

func TestOpenResolvesCatalogAndBuildsPages(t *testing.T) {
	doc, err := Open(buildSimplePDF(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Engine != nil {
		t.Fatal("unencrypted document should have a nil Engine")
	}
	root, err := doc.Root()
	if err != nil {
		t.Fatal(err)
	}
	if root.Get("Type").(object.Name) != "Catalog" {
		t.Fatalf("got %v", root.Get("Type"))
	}
	pages := doc.Pages.Pages()
	if len(pages) != 1 {
		t.Fatalf("expected 1 flattened page, got %d", len(pages))
	}
}

func TestDocumentWriteRoundTrip(t *testing.T) {
	doc, err := Open(buildSimplePDF(), nil)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cfg := writer.Config{IDMode: writer.IDStatic, StaticID: [2][]byte{
		[]byte("0123456789abcdef"), []byte("0123456789abcdef"),
	}}
	if err := doc.Write(&out, cfg); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(out.Bytes(), nil)
	if err != nil {
		t.Fatalf("re-opening written output failed: %v", err)
	}
	root, err := reopened.Root()
	if err != nil {
		t.Fatal(err)
	}
	if root.Get("Type").(object.Name) != "Catalog" {
		t.Fatal("round-tripped catalog lost its /Type")
	}
}
