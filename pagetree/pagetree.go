// Package pagetree implements the Page tree manager of spec §4.9: an
// ordered page list rebuilt by walking /Pages, self-repairing the handful
// of structural faults real-world files accumulate, and a one-time
// flattening that pushes inherited attributes down to leaves so every page
// is a self-contained dictionary.
//
// Grounded in the teacher's model/pages.go (PagesTree/PageObject, inherited
// /Resources /MediaBox /CropBox /Rotate fields), generalized from the
// teacher's typed PageObject into the generic object.Dict tree this module
// works over, and extended with the repair/dedupe/flatten behavior spec
// §4.9 asks for that the teacher's loader does not need (it trusts its own
// writer's output).
package pagetree

import (
	"fmt"

	"github.com/holoq/qpdf/copier"
	"github.com/holoq/qpdf/internal/xlog"
	"github.com/holoq/qpdf/object"
)

// letterMediaBox is the fallback page size (612x792pt, US Letter) used when
// a page is missing /MediaBox and no ancestor supplies one, per spec §4.9.
func letterMediaBox() *object.Array {
	return object.NewArray(object.Integer(0), object.Integer(0), object.Integer(612), object.Integer(792))
}

// Sink is the subset of document bookkeeping the page tree manager needs to
// promote a direct page to indirect or to insert a foreign page: allocate a
// fresh local object number and install a value under it. Identical in
// shape to copier.Sink so one destination document type can implement both.
type Sink interface {
	NewObjectNumber() int
	Put(num, gen int, obj object.Object)
}

// entry is one page in the manager's ordered cache.
type entry struct {
	Num, Gen int
	Dict     *object.Dict
}

// Tree is the page tree manager for one document's /Pages subtree.
type Tree struct {
	Resolve func(object.ObjGen) (object.Object, bool)
	Sink    Sink

	// Root is the document catalog (the /Root dict); its /Pages entry names
	// the tree root.
	Root *object.Dict

	pagesOg   object.ObjGen
	list      []entry
	built     bool
	flattened bool

	// XrefWasReconstructed, set by the caller when this document's xref
	// table came from damage recovery rather than a trusted table/stream,
	// selects which of spec §4.9's two duplicate-page behaviors applies:
	// reconstructed xrefs are more likely to have fabricated a duplicate
	// entry, so the duplicate is dropped; otherwise it is kept as a shallow
	// copy to preserve the original page count.
	XrefWasReconstructed bool

	Warnings []string
}

// New builds an (unbuilt) Tree over a document's catalog.
func New(root *object.Dict, resolve func(object.ObjGen) (object.Object, bool), sink Sink) *Tree {
	return &Tree{Root: root, Resolve: resolve, Sink: sink}
}

func (t *Tree) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	t.Warnings = append(t.Warnings, msg)
	xlog.Xref.Println(msg)
}

func (t *Tree) resolveDict(o object.Object) (*object.Dict, object.ObjGen, bool) {
	og := object.ObjGen{}
	if ref, ok := o.(object.Reference); ok {
		og = ref.ObjGen()
		v, ok := t.Resolve(og)
		if !ok {
			return nil, og, false
		}
		o = v
	}
	d, ok := o.(*object.Dict)
	return d, og, ok
}

// ensureIndirect returns the ObjGen of o, promoting a direct Dict to a
// fresh indirect object via the Sink first, per spec's "ensures every page
// is indirect; promotes direct pages to indirect".
func (t *Tree) ensureIndirect(o object.Object, containerSet func(object.Object)) (object.ObjGen, *object.Dict, bool) {
	if ref, ok := o.(object.Reference); ok {
		d, og, ok := t.resolveDict(ref)
		return og, d, ok
	}
	d, ok := o.(*object.Dict)
	if !ok {
		return object.ObjGen{}, nil, false
	}
	num := t.Sink.NewObjectNumber()
	t.Sink.Put(num, 0, d)
	og := object.ObjGen{Num: num, Gen: 0}
	containerSet(object.NewReference(num, 0))
	return og, d, true
}

// Build (re)constructs the ordered page cache by walking /Kids recursively
// from the catalog's /Pages, repairing the faults spec §4.9 names. It is
// idempotent and should be called again after any mutation made outside
// this package's own API.
func (t *Tree) Build() error {
	t.list = nil
	t.built = false

	pagesObj, hasPages := t.Root.Lookup("Pages")
	if !hasPages {
		return fmt.Errorf("pagetree: catalog has no /Pages entry")
	}
	pagesOg, pagesDict, ok := t.ensureIndirect(pagesObj, func(v object.Object) { t.Root.Set("Pages", v) })
	if !ok {
		return fmt.Errorf("pagetree: /Pages does not resolve to a dictionary")
	}

	// "Fixes a root whose /Pages entry accidentally points to a leaf": a
	// /Pages target with no /Kids but page-shaped content (/Contents or
	// /MediaBox) is itself treated as the sole page.
	if _, hasKids := pagesDict.Lookup("Kids"); !hasKids {
		if looksLikePage(pagesDict) {
			t.warn("root /Pages pointed at a leaf page; promoting catalog to single-page tree")
			pagesDict.Set("Type", object.Name("Page"))
			t.list = append(t.list, entry{Num: pagesOg.Num, Gen: pagesOg.Gen, Dict: pagesDict})
			t.pagesOg = pagesOg
			t.built = true
			return nil
		}
	} else {
		pagesDict.Set("Type", object.Name("Pages"))
	}
	t.pagesOg = pagesOg

	seen := map[object.ObjGen]bool{}
	visiting := map[object.ObjGen]bool{}
	if err := t.walk(pagesOg, pagesDict, seen, visiting); err != nil {
		return err
	}
	t.built = true
	return nil
}

func looksLikePage(d *object.Dict) bool {
	if _, ok := d.Lookup("Contents"); ok {
		return true
	}
	if _, ok := d.Lookup("MediaBox"); ok {
		return true
	}
	return false
}

// walk recurses through /Kids, appending leaves to t.list in left-to-right
// order and repairing the structural faults spec §4.9 names.
func (t *Tree) walk(nodeOg object.ObjGen, node *object.Dict, seen, visiting map[object.ObjGen]bool) error {
	if !nodeOg.IsDirect() {
		if visiting[nodeOg] {
			return fmt.Errorf("pagetree: cycle detected at %s", nodeOg)
		}
		visiting[nodeOg] = true
		defer delete(visiting, nodeOg)
	}

	kidsObj := node.Get("Kids")
	kids, ok := kidsObj.(*object.Array)
	if !ok {
		// No /Kids: treat node itself as a leaf page (repairs a missing or
		// wrong /Type along the way).
		t.appendLeaf(nodeOg, node, seen)
		return nil
	}
	node.Set("Type", object.Name("Pages"))

	for i := 0; i < kids.Size(); i++ {
		i := i
		kidOg, kidDict, ok := t.ensureIndirect(kids.Get(i), func(v object.Object) { kids.Set(i, v) })
		if !ok {
			t.warn("pagetree: skipping unresolved kid at index %d", i)
			continue
		}
		if _, hasKids := kidDict.Lookup("Kids"); hasKids {
			if err := t.walk(kidOg, kidDict, seen, visiting); err != nil {
				return err
			}
			continue
		}
		kidDict.Set("Type", object.Name("Page"))
		t.appendLeaf(kidOg, kidDict, seen)
	}
	return nil
}

// appendLeaf records one resolved page, applying the repair rules: ensure
// /MediaBox and /Resources exist, and handle the same page object being
// reachable twice.
func (t *Tree) appendLeaf(og object.ObjGen, d *object.Dict, seen map[object.ObjGen]bool) {
	if !og.IsDirect() && seen[og] {
		if t.XrefWasReconstructed {
			t.warn("pagetree: dropping duplicate page object %s (xref was reconstructed)", og)
			return
		}
		t.warn("pagetree: page object %s reachable twice; inserting a shallow copy", og)
		clone := d.Clone().(*object.Dict)
		num := t.Sink.NewObjectNumber()
		t.Sink.Put(num, 0, clone)
		t.list = append(t.list, entry{Num: num, Gen: 0, Dict: clone})
		return
	}
	if !og.IsDirect() {
		seen[og] = true
	}

	if _, ok := d.Lookup("MediaBox"); !ok {
		t.warn("pagetree: page %s missing /MediaBox, defaulting to Letter", og)
		d.Set("MediaBox", letterMediaBox())
	}
	if _, ok := d.Lookup("Resources"); !ok {
		d.Set("Resources", object.NewDict())
	}

	t.list = append(t.list, entry{Num: og.Num, Gen: og.Gen, Dict: d})
}

// ensureBuilt rebuilds the cache lazily on first access.
func (t *Tree) ensureBuilt() {
	if !t.built {
		t.Build()
	}
}

// Pages returns the ordered page dictionaries, left-to-right, rebuilding
// the cache first if needed.
func (t *Tree) Pages() []*object.Dict {
	t.ensureBuilt()
	out := make([]*object.Dict, len(t.list))
	for i, e := range t.list {
		out[i] = e.Dict
	}
	return out
}

// Reference returns the indirect object.Reference for the page at index i,
// or the zero Reference if i is out of range. Used to point the writer at
// a specific page (its indirect object number), e.g. for linearization's
// "first page" hint.
func (t *Tree) Reference(i int) object.Reference {
	t.ensureBuilt()
	if i < 0 || i >= len(t.list) {
		return object.Reference{}
	}
	e := t.list[i]
	return object.NewReference(e.Num, e.Gen)
}

// Find returns the 0-based position of page within the ordered list, or -1
// if it is not present.
func (t *Tree) Find(page *object.Dict) int {
	t.ensureBuilt()
	for i, e := range t.list {
		if e.Dict == page {
			return i
		}
	}
	return -1
}

// Insert places page at pos (clamped to [0,len]) in the ordered list and,
// after the implicit first-mutation Flatten, in the catalog's flat /Kids
// array. page must already be an indirect object of this document (for a
// foreign page, call InsertForeign instead).
func (t *Tree) Insert(og object.ObjGen, page *object.Dict, pos int) {
	t.ensureBuilt()
	t.flattenOnFirstMutation()

	if pos < 0 {
		pos = 0
	}
	if pos > len(t.list) {
		pos = len(t.list)
	}
	e := entry{Num: og.Num, Gen: og.Gen, Dict: page}
	t.list = append(t.list, entry{})
	copy(t.list[pos+1:], t.list[pos:])
	t.list[pos] = e
	page.Set("Parent", object.NewReference(t.pagesOg.Num, t.pagesOg.Gen))

	t.syncKids()
}

// InsertForeign copies page (from a foreign document reached through src)
// into this document via the cross-document copier, then inserts the copy
// at pos, per spec's "Insert of a foreign page first copies the page (via
// the copier) into this document."
//
// The foreign page's /Parent is deliberately excluded from the copy (by
// copying a filtered shallow clone rather than the raw foreign dict) so the
// copier never chases the reference back up into the foreign document's
// ancestor /Pages nodes and catalog.
func (t *Tree) InsertForeign(src copier.Source, foreignPage *object.Dict, pos int) (*object.Dict, error) {
	filtered := foreignPage.Clone().(*object.Dict)
	filtered.Remove("Parent")

	c := copier.New(src, t.Sink, copier.ImmediateStreams)
	copied, err := c.Copy(filtered)
	if err != nil {
		return nil, err
	}
	localDict, ok := copied.(*object.Dict)
	if !ok {
		return nil, fmt.Errorf("pagetree: copied foreign page is not a dictionary")
	}
	localDict.Set("Type", object.Name("Page"))
	num := t.Sink.NewObjectNumber()
	t.Sink.Put(num, 0, localDict)

	t.Insert(object.ObjGen{Num: num, Gen: 0}, localDict, pos)
	return localDict, nil
}

// Remove deletes page from the ordered list and the flat /Kids array.
func (t *Tree) Remove(page *object.Dict) {
	t.ensureBuilt()
	t.flattenOnFirstMutation()

	pos := -1
	for i, e := range t.list {
		if e.Dict == page {
			pos = i
			break
		}
	}
	if pos < 0 {
		return
	}
	t.list = append(t.list[:pos], t.list[pos+1:]...)
	t.syncKids()
}

func (t *Tree) flattenOnFirstMutation() {
	if !t.flattened {
		t.Flatten()
	}
}

// PushInherited copies each leaf's inherited /MediaBox, /CropBox,
// /Resources, /Rotate down from its ancestor chain, so every page carries
// its own copy instead of relying on tree lookup. Safe to call before or
// independent of Flatten.
func (t *Tree) PushInherited() {
	t.ensureBuilt()
	pagesDict, _, ok := t.resolveDict(object.NewReference(t.pagesOg.Num, t.pagesOg.Gen))
	if !ok {
		return
	}
	inherited := inheritable{
		MediaBox:  pagesDict.Get("MediaBox"),
		CropBox:   pagesDict.Get("CropBox"),
		Resources: pagesDict.Get("Resources"),
		Rotate:    pagesDict.Get("Rotate"),
	}
	for _, e := range t.list {
		applyInherited(e.Dict, inherited)
	}
}

type inheritable struct {
	MediaBox, CropBox, Resources, Rotate object.Object
}

func applyInherited(d *object.Dict, inh inheritable) {
	if _, ok := d.Lookup("MediaBox"); !ok {
		if _, isNull := inh.MediaBox.(object.Null); !isNull && inh.MediaBox != nil {
			d.Set("MediaBox", inh.MediaBox)
		}
	}
	if _, ok := d.Lookup("CropBox"); !ok {
		if _, isNull := inh.CropBox.(object.Null); !isNull && inh.CropBox != nil {
			d.Set("CropBox", inh.CropBox)
		}
	}
	if _, ok := d.Lookup("Resources"); !ok {
		if _, isNull := inh.Resources.(object.Null); !isNull && inh.Resources != nil {
			d.Set("Resources", inh.Resources)
		}
	}
	if _, ok := d.Lookup("Rotate"); !ok {
		if _, isNull := inh.Rotate.(object.Null); !isNull && inh.Rotate != nil {
			d.Set("Rotate", inh.Rotate)
		}
	}
}

// Flatten pushes inherited attributes to every leaf, then replaces the
// root /Pages' /Kids with the flat ordered list and updates /Count, per
// spec §4.9's "the first mutation through the API also flattens the tree."
// Idempotent: a second call is a no-op.
func (t *Tree) Flatten() {
	t.ensureBuilt()
	if t.flattened {
		return
	}
	t.PushInherited()

	pagesDict, _, ok := t.resolveDict(object.NewReference(t.pagesOg.Num, t.pagesOg.Gen))
	if ok {
		pagesDict.Remove("MediaBox")
		pagesDict.Remove("CropBox")
		pagesDict.Remove("Resources")
		pagesDict.Remove("Rotate")
	}

	t.flattened = true
	t.syncKids()
}

// syncKids rewrites the root /Pages' /Kids array (and /Count) to match the
// current ordered list, and each leaf's /Parent to point back at the root.
// Only meaningful once Flatten has run (pre-flatten, the tree may still
// have intermediate /Pages nodes the API has not touched).
func (t *Tree) syncKids() {
	if !t.flattened {
		return
	}
	pagesDict, _, ok := t.resolveDict(object.NewReference(t.pagesOg.Num, t.pagesOg.Gen))
	if !ok {
		return
	}
	kids := object.NewArray()
	for _, e := range t.list {
		kids.Push(object.NewReference(e.Num, e.Gen))
		e.Dict.Set("Parent", object.NewReference(t.pagesOg.Num, t.pagesOg.Gen))
	}
	pagesDict.Set("Kids", kids)
	pagesDict.Set("Count", object.Integer(len(t.list)))
}
