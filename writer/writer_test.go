package writer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/holoq/qpdf/object"
)

// fakeSource is a minimal in-memory Source backed by a map, the same shape
// the teacher's tests use for a fake model.Document.
type fakeSource map[object.ObjGen]object.Object

func (s fakeSource) Resolve(og object.ObjGen) (object.Object, bool) {
	o, ok := s[og]
	return o, ok
}

func simpleDoc() (fakeSource, Input) {
	root := object.NewDict()
	root.Set("Type", object.Name("Catalog"))
	root.Set("Pages", object.NewReference(2, 0))

	pages := object.NewDict()
	pages.Set("Type", object.Name("Pages"))
	pages.Set("Kids", object.NewArray(object.NewReference(3, 0)))
	pages.Set("Count", object.Integer(1))

	page := object.NewDict()
	page.Set("Type", object.Name("Page"))
	page.Set("Parent", object.NewReference(2, 0))
	page.Set("Contents", object.NewReference(4, 0))

	content := object.NewStream(object.NewDict(), []byte("BT ET"))

	info := object.NewDict()
	info.Set("Producer", object.NewTextString("qpdf test"))

	src := fakeSource{
		{Num: 1, Gen: 0}: root,
		{Num: 2, Gen: 0}: pages,
		{Num: 3, Gen: 0}: page,
		{Num: 4, Gen: 0}: content,
		{Num: 5, Gen: 0}: info,
	}
	in := Input{
		Source:        src,
		Root:          object.NewReference(1, 0),
		Info:          object.NewReference(5, 0),
		SourceVersion: "1.4",
	}
	return src, in
}

func TestWriteClassicXRefRoundTrip(t *testing.T) {
	_, in := simpleDoc()
	cfg := Config{IDMode: IDStatic, StaticID: [2][]byte{[]byte("0123456789abcdef"), []byte("0123456789abcdef")}}

	var out bytes.Buffer
	if err := Write(&out, in, cfg); err != nil {
		t.Fatal(err)
	}

	s := out.String()
	if !strings.HasPrefix(s, "%PDF-1.4\n") {
		t.Fatalf("unexpected header: %q", s[:20])
	}
	if !strings.Contains(s, "/Type /Catalog") {
		t.Fatal("catalog not found in output")
	}
	if !strings.Contains(s, "xref\n") {
		t.Fatal("expected a classic xref table when object streams are disabled")
	}
	if !strings.Contains(s, "trailer\n") || !strings.Contains(s, "/Root 1 0 R") {
		t.Fatal("trailer missing or /Root not renumbered to object 1")
	}
	if strings.Contains(s, "/Type /XRef") {
		t.Fatal("classic mode must not emit an xref stream")
	}
}

func TestWriteObjectStreamsUsesXRefStream(t *testing.T) {
	_, in := simpleDoc()
	cfg := Config{
		IDMode:        IDStatic,
		StaticID:      [2][]byte{[]byte("0123456789abcdef"), []byte("0123456789abcdef")},
		ObjectStreams: ObjectStreamsGenerate,
	}

	var out bytes.Buffer
	if err := Write(&out, in, cfg); err != nil {
		t.Fatal(err)
	}

	s := out.String()
	if !strings.Contains(s, "/Type /ObjStm") {
		t.Fatal("expected compressible objects packed into an /ObjStm")
	}
	if !strings.Contains(s, "/Type /XRef") {
		t.Fatal("object streams require an xref stream, not a classic table")
	}
	if strings.Contains(s, "\nxref\n") {
		t.Fatal("must not also emit a classic xref table alongside an xref stream")
	}
	// The Page is a candidate for packing; the Contents stream never is.
	if !strings.Contains(s, "BT ET") {
		t.Fatal("stream content must still be emitted as a direct object")
	}
}

func TestWriteDeterministicIDStable(t *testing.T) {
	_, in := simpleDoc()
	cfg := Config{IDMode: IDDeterministic, DerivedSeed: "fixed-seed"}

	var a, b bytes.Buffer
	if err := Write(&a, in, cfg); err != nil {
		t.Fatal(err)
	}
	if err := Write(&b, in, cfg); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Fatal("writing the same document twice with the same seed must be byte-identical")
	}
}

func TestWriteLinearizedPlacesLinearizedDictFirst(t *testing.T) {
	_, in := simpleDoc()
	in.FirstPage = object.NewReference(3, 0)
	in.PageCount = 1
	cfg := Config{
		IDMode:        IDStatic,
		StaticID:      [2][]byte{[]byte("0123456789abcdef"), []byte("0123456789abcdef")},
		ObjectStreams: ObjectStreamsGenerate,
		Linearize:     true,
	}

	var out bytes.Buffer
	if err := Write(&out, in, cfg); err != nil {
		t.Fatal(err)
	}
	s := out.String()

	firstObj := strings.Index(s, " 0 obj\n")
	if firstObj == -1 {
		t.Fatal("no indirect object found")
	}
	start := firstObj
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	firstObjText := s[start:]
	if end := strings.Index(firstObjText, "endobj"); end != -1 {
		firstObjText = firstObjText[:end]
	}
	if !strings.Contains(firstObjText, "/Linearized 1") {
		t.Fatalf("first indirect object is not the linearization dictionary: %q", firstObjText[:min(120, len(firstObjText))])
	}
	if !strings.Contains(s, "/H [") {
		t.Fatal("expected a hint stream offset/length pair in the linearization dictionary")
	}
	// The page and its content stream must stay as direct objects, not
	// packed into the /ObjStm, since linearization needs their byte offsets.
	if !strings.Contains(s, "/Type /Page") || !strings.Contains(s, "BT ET") {
		t.Fatal("first page and its content stream must be emitted as direct objects")
	}
}

func TestWriteLinearizeWithoutFirstPageErrors(t *testing.T) {
	_, in := simpleDoc()
	cfg := Config{Linearize: true}

	var out bytes.Buffer
	if err := Write(&out, in, cfg); err == nil {
		t.Fatal("expected an error when Linearize is set without Input.FirstPage")
	}
}

func TestVersionNegotiationFloorsOnFeatures(t *testing.T) {
	got := negotiateVersion(Config{}, "1.4", true, 0)
	if got != "1.5" {
		t.Fatalf("object streams should floor the version at 1.5, got %s", got)
	}
	got = negotiateVersion(Config{MinVersion: "1.7"}, "1.4", false, 0)
	if got != "1.7" {
		t.Fatalf("caller's MinVersion should win over a lower source version, got %s", got)
	}
	got = negotiateVersion(Config{}, "1.4", false, 6)
	if got != "2.0" {
		t.Fatalf("R6 encryption should floor the version at 2.0, got %s", got)
	}
}
