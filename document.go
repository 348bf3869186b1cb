// Package qpdf ties the module's components into the single entry point
// described by SPEC_FULL.md: a Document that owns one xref.Table, an
// optional negotiated crypt.Engine, and a pagetree.Tree, and that is itself
// the Source/Sink every lower package needs (xref.Table.Resolve for
// reading, copier.Sink/pagetree.Sink for allocating and placing new
// objects, writer.Source for serializing). Grounded in the teacher's
// model.Document ("the entry point of the package is the type Document")
// generalized from the teacher's typed tree to the generic object.Object
// graph every other package in this module already speaks.
package qpdf

import (
	"fmt"
	"io"

	"github.com/holoq/qpdf/crypt"
	"github.com/holoq/qpdf/object"
	"github.com/holoq/qpdf/pagetree"
	"github.com/holoq/qpdf/writer"
	"github.com/holoq/qpdf/xref"
)

// Document is one opened (or newly assembled) PDF file.
type Document struct {
	Table  *xref.Table
	Engine *crypt.Engine // nil for an unencrypted document
	Pages  *pagetree.Tree

	// Version is the PDF version this document's header declared on open
	// (a catalog /Version entry is not consulted), the SourceVersion fed to
	// writer.Write.
	Version string

	// XrefWasReconstructed records whether Table came from damage recovery
	// rather than a trusted table/stream, per spec §4.9/§4.5.
	XrefWasReconstructed bool

	// newObjects holds objects placed by Put (copier/pagetree repairs, or a
	// caller building content from scratch) that aren't part of Table yet.
	newObjects map[object.ObjGen]object.Object
	nextNum    int
}

// newDocument wraps an already-loaded Table (via Load or Recover) into a
// Document, without yet negotiating encryption or building the page tree —
// the two steps Open sequences afterward, since page-tree construction
// needs Resolve to already see through encrypted strings/streams.
func newDocument(table *xref.Table, version string, reconstructed bool) *Document {
	maxNum := 0
	for og := range table.Entries() {
		if og.Num > maxNum {
			maxNum = og.Num
		}
	}
	return &Document{
		Table:                table,
		Version:              version,
		XrefWasReconstructed: reconstructed,
		newObjects:           map[object.ObjGen]object.Object{},
		nextNum:              maxNum + 1,
	}
}

// Resolve implements xref.Table's resolution signature for every consumer
// in this module (copier.Source, pagetree's resolve func, writer.Source):
// objects placed by Put shadow the underlying Table, so a copy or repair
// sees its own pending writes before falling back to the original file.
func (d *Document) Resolve(og object.ObjGen) (object.Object, bool) {
	if o, ok := d.newObjects[og]; ok {
		return o, true
	}
	return d.Table.Resolve(og)
}

// NewObjectNumber implements copier.Sink/pagetree.Sink: allocates the next
// unused object number, generation always 0 for freshly created objects.
func (d *Document) NewObjectNumber() int {
	n := d.nextNum
	d.nextNum++
	return n
}

// Put implements copier.Sink/pagetree.Sink: records a freshly allocated or
// repaired object so Resolve (and eventually Write) sees it.
func (d *Document) Put(num, gen int, obj object.Object) {
	d.newObjects[object.ObjGen{Num: num, Gen: gen}] = obj
}

// Root returns the document catalog, resolving /Root if it is (as PDF
// requires) an indirect reference.
func (d *Document) Root() (*object.Dict, error) {
	ref, ok := d.Table.Trailer.Get("Root").(object.Reference)
	if !ok {
		return nil, fmt.Errorf("qpdf: trailer has no indirect /Root")
	}
	obj, _ := d.Resolve(ref.ObjGen())
	root, ok := obj.(*object.Dict)
	if !ok {
		return nil, fmt.Errorf("qpdf: /Root does not resolve to a dictionary")
	}
	return root, nil
}

// rootReference returns the trailer's raw /Root reference, for Write's
// writer.Input.
func (d *Document) rootReference() (object.Reference, error) {
	ref, ok := d.Table.Trailer.Get("Root").(object.Reference)
	if !ok {
		return object.Reference{}, fmt.Errorf("qpdf: trailer has no indirect /Root")
	}
	return ref, nil
}

// infoReference returns the trailer's /Info reference, or the zero
// Reference if absent (spec treats /Info as optional, by convention
// indirect when present).
func (d *Document) infoReference() object.Reference {
	ref, _ := d.Table.Trailer.Get("Info").(object.Reference)
	return ref
}

// EnsurePages builds (if not already built) the page tree manager over this
// document's catalog, per spec §4.9.
func (d *Document) EnsurePages() error {
	if d.Pages != nil {
		return nil
	}
	root, err := d.Root()
	if err != nil {
		return err
	}
	tree := pagetree.New(root, d.Resolve, d)
	tree.XrefWasReconstructed = d.XrefWasReconstructed
	d.Pages = tree
	return nil
}

// Write serializes this document via the writer package, per spec §4.10.
// cfg.Encrypt, if nil and the document was opened encrypted, defaults to
// preserving the existing session (EncryptConfig{Engine: d.Engine}) so a
// plain round-trip stays encrypted; a non-nil cfg.Encrypt (an Engine, or
// New parameters) is passed to writer.Write unchanged. An EncryptConfig
// with neither Engine nor New set makes writer.Write return an error, so
// this method does not write an encrypted document out unencrypted.
func (d *Document) Write(dst io.Writer, cfg writer.Config) error {
	root, err := d.rootReference()
	if err != nil {
		return err
	}
	if cfg.Encrypt == nil && d.Engine != nil {
		cfg.Encrypt = &writer.EncryptConfig{Engine: d.Engine}
	}
	in := writer.Input{
		Source:        d,
		Root:          root,
		Info:          d.infoReference(),
		SourceVersion: d.Version,
	}
	if cfg.Linearize && d.Pages != nil {
		pages := d.Pages.Pages()
		in.PageCount = len(pages)
		if len(pages) > 0 {
			in.FirstPage = d.Pages.Reference(0)
		}
	}
	return writer.Write(dst, in, cfg)
}
