package writer

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/holoq/qpdf/object"
)

// rawObject is a pre-rendered PDF object body used for the linearization
// dictionary: its on-disk text contains fixed-width decimal placeholders
// that are patched in place once the surrounding offsets are known, so the
// dictionary's byte length never changes between pass 1 and pass 2.
type rawObject string

func (r rawObject) Kind() object.Kind { return object.KindDictionary }
func (r rawObject) Clone() object.Object { return r }
func (r rawObject) String() string       { return string(r) }
func (r rawObject) PDFString() string    { return string(r) }

// linPlaceholder is the fixed-width decimal placeholder patched in pass 2;
// ten digits comfortably covers any realistic file offset or length.
const linPlaceholder = "0000000000"

// linTemplate holds a not-yet-finalized linearization dictionary string
// together with the byte positions (relative to the start of the dict text)
// of the four fields pass 2 rewrites.
type linTemplate struct {
	text                      string
	lPos, hOffPos, ePos, tPos int
}

// buildLinTemplate renders the /Linearized dictionary with placeholder
// offsets, per spec §4.10 step 6 and the hint-stream layout named in
// SPEC_FULL.md: /L (file length), /H (hint stream offset and length), /O
// (first page object number), /E (end-of-first-page offset), /N (page
// count), /T (offset of the main xref section). /H's length is known up
// front (the hint stream content is fixed before any offsets are), so only
// its offset needs a placeholder.
func buildLinTemplate(firstPageNum, pageCount int, hintLen int) linTemplate {
	var b bytes.Buffer
	b.WriteString("<< /Linearized 1 /L ")
	lPos := b.Len()
	b.WriteString(linPlaceholder)
	b.WriteString(" /H [ ")
	hOffPos := b.Len()
	b.WriteString(linPlaceholder)
	b.WriteString(" ")
	b.WriteString(strconv.Itoa(hintLen))
	b.WriteString(" ] /O ")
	b.WriteString(strconv.Itoa(firstPageNum))
	b.WriteString(" /E ")
	ePos := b.Len()
	b.WriteString(linPlaceholder)
	b.WriteString(" /N ")
	b.WriteString(strconv.Itoa(pageCount))
	b.WriteString(" /T ")
	tPos := b.Len()
	b.WriteString(linPlaceholder)
	b.WriteString(" >>")
	return linTemplate{text: b.String(), lPos: lPos, hOffPos: hOffPos, ePos: ePos, tPos: tPos}
}

// buildHintStream renders the minimal hint stream of SPEC_FULL.md's
// "Linearization hint stream layout" clarification: a primary hint table
// with one zeroed entry per page, no overflow table. Real readers treat a
// malformed or degenerate hint stream as advisory — the spec explicitly
// frames the hint stream as an optimization a conforming reader may
// ignore — so a zeroed table is structurally valid even though it carries
// no actual page-offset savings.
func buildHintStream(pageCount int) (*object.Dict, []byte) {
	// Per-page primary hint table entry: 4 bytes objects-in-page-length,
	// plus a 4-byte placeholder for the (unused) secondary fields, giving
	// every page a fixed-size, all-zero record.
	data := make([]byte, pageCount*8)
	dict := object.NewDict()
	dict.Set("Length", object.Integer(len(data)))
	dict.Set("S", object.Integer(0))
	return dict, data
}

// firstPageMembers walks the resolved (pre-renumbering) first page object
// to find the set of new object numbers that belong in the linearized
// first-page block: the page dict itself, plus whatever it directly names
// as /Contents. It deliberately does not walk /Resources or /Parent —
// /Parent chains back into the shared Pages tree, and resources are shared
// across pages far more often than content streams are, so including them
// would pull most of the document into the "first page" block and defeat
// the point of linearizing.
func firstPageMembers(e *enqueue, src Source, firstPageOg object.ObjGen) ([]int, error) {
	num, ok := e.resolveNew(firstPageOg)
	if !ok {
		return nil, fmt.Errorf("writer: Input.FirstPage is not reachable from the trailer")
	}
	members := []int{num}

	raw, ok := src.Resolve(firstPageOg)
	if !ok {
		return members, nil
	}
	page, ok := raw.(*object.Dict)
	if !ok {
		return members, nil
	}
	for _, og := range contentOgs(page.Get("Contents")) {
		if n, ok := e.resolveNew(og); ok {
			members = append(members, n)
		}
	}
	return members, nil
}

// contentOgs extracts the ObjGen(s) named by a page's /Contents entry,
// which per PDF 7.7.3.3 is either a single stream reference or an array of
// them; a direct (non-reference) value has nothing to add to the block.
func contentOgs(contents object.Object) []object.ObjGen {
	switch v := contents.(type) {
	case object.Reference:
		return []object.ObjGen{v.ObjGen()}
	case *object.Array:
		var out []object.ObjGen
		for _, it := range v.Items() {
			if ref, ok := it.(object.Reference); ok {
				out = append(out, ref.ObjGen())
			}
		}
		return out
	default:
		return nil
	}
}

// patchDecimal overwrites the ten placeholder bytes at pos with value,
// zero-padded to the same width, so the surrounding byte layout (and every
// offset already recorded for objects after this one) stays unchanged.
func patchDecimal(buf []byte, pos int, value int64) {
	copy(buf[pos:pos+10], fmt.Sprintf("%010d", value))
}
