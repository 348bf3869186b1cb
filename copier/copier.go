// Package copier implements the Cross-document copier of spec §4.8: given a
// handle in a foreign document, it produces an equivalent handle in the
// destination document, preserving reference identity (the same foreign
// ObjGen always maps to the same local ObjGen within one Copier).
//
// Grounded in the teacher's Document.Clone/cloneCache pattern (model/*.go's
// `clone(cache cloneCache) ...` methods threaded through every cloneable
// type), generalized here from the teacher's fixed set of typed models to
// the generic object.Object tree, and reworked around object.Reserved
// (already used by xref for cycle protection) as the copier's own
// placeholder during traversal.
package copier

import "github.com/holoq/qpdf/object"

// Source is the foreign document a Copier reads from.
type Source interface {
	Resolve(og object.ObjGen) (object.Object, bool)
}

// Sink is the destination document a Copier writes newly-copied objects
// into: it allocates fresh local object numbers and accepts the finished
// value for each one.
type Sink interface {
	NewObjectNumber() int
	Put(num, gen int, obj object.Object)
}

// Mode selects how a copied Stream's payload is materialized.
type Mode int

const (
	// LazyStreams pipes the payload from the foreign document on demand,
	// deferring the read until the destination actually needs the bytes
	// (e.g. while the writer emits the object).
	LazyStreams Mode = iota
	// ImmediateStreams reads the foreign payload now and stores it in a
	// local buffer, decoupling the copy from the foreign source's lifetime.
	ImmediateStreams
)

// Copier copies object graphs from one Source into one Sink. A single
// Copier instance must be reused across every Copy call that should share
// reference identity (e.g. all objects copied while merging one foreign
// document into the destination).
type Copier struct {
	Source Source
	Sink   Sink
	Mode   Mode

	mapping map[object.ObjGen]object.ObjGen
	pending []object.ObjGen
}

// New builds a Copier. src and sink are held for the Copier's lifetime.
func New(src Source, sink Sink, mode Mode) *Copier {
	return &Copier{
		Source:  src,
		Sink:    sink,
		Mode:    mode,
		mapping: map[object.ObjGen]object.ObjGen{},
	}
}

// Copy produces the local equivalent of a foreign object handle: an
// indirect Reference if foreign itself was one (mapped to its recorded
// local ObjGen), or a direct value with every nested indirect reference
// substituted, per spec §4.8 steps 1-4.
func (c *Copier) Copy(foreign object.Object) (object.Object, error) {
	c.traverse(foreign, map[object.ObjGen]bool{})
	for len(c.pending) > 0 {
		og := c.pending[0]
		c.pending = c.pending[1:]
		if err := c.materialize(og); err != nil {
			return nil, err
		}
	}
	return c.substitute(foreign), nil
}

// Mapped reports the local ObjGen already recorded for a foreign ObjGen, if
// any copy through this Copier has touched it — used by callers (the page
// tree manager) that need to know whether a foreign object was already
// brought over before deciding to copy it again.
func (c *Copier) Mapped(foreign object.ObjGen) (object.ObjGen, bool) {
	local, ok := c.mapping[foreign]
	return local, ok
}

// traverse walks the foreign object graph reachable from obj, allocating a
// local object number (and queuing a pending materialization) for every
// not-yet-seen indirect reference. It stops descending into a Page object's
// own dictionary once it allocates that object's placeholder, per spec's
// "stopping at Page objects (preserved as such by the page-tree manager,
// not auto-copied)" — the mapping still exists so siblings referencing the
// page resolve to a valid local number, but the page's own content is left
// for the page-tree manager to bring over deliberately.
func (c *Copier) traverse(obj object.Object, visiting map[object.ObjGen]bool) {
	switch v := obj.(type) {
	case object.Reference:
		og := v.ObjGen()
		if _, done := c.mapping[og]; done {
			return
		}
		if visiting[og] {
			return
		}
		target, ok := c.Source.Resolve(og)
		if !ok {
			return
		}
		c.mapping[og] = object.ObjGen{Num: c.Sink.NewObjectNumber(), Gen: 0}
		c.pending = append(c.pending, og)
		if isPageDict(target) {
			return
		}
		visiting[og] = true
		c.traverse(target, visiting)
		delete(visiting, og)
	case *object.Array:
		for _, it := range v.Items() {
			c.traverse(it, visiting)
		}
	case *object.Dict:
		for _, k := range v.Keys() {
			c.traverse(v.Get(k), visiting)
		}
	case *object.Stream:
		c.traverse(v.Dict, visiting)
	}
}

// materialize resolves the foreign object behind og, deep-clones it with
// every nested reference substituted by its local handle, and installs the
// result into the Sink under the number allocated for og during traverse.
func (c *Copier) materialize(og object.ObjGen) error {
	local := c.mapping[og]
	target, ok := c.Source.Resolve(og)
	if !ok {
		target = object.Null{}
	}

	if stream, isStream := target.(*object.Stream); isStream {
		dict, _ := c.substitute(stream.Dict).(*object.Dict)
		var finished *object.Stream
		if c.Mode == ImmediateStreams {
			raw, err := stream.GetData()
			if err != nil {
				return err
			}
			finished = object.NewStream(dict, raw)
		} else {
			finished = object.NewLazyStream(dict, &foreignPipe{stream: stream})
		}
		c.Sink.Put(local.Num, local.Gen, finished)
		return nil
	}

	c.Sink.Put(local.Num, local.Gen, c.substitute(target))
	return nil
}

// substitute deep-clones obj, replacing every indirect Reference with the
// local ObjGen recorded for it. A reference to something traverse never
// mapped (a foreign reference to an undefined object, or one to a Page
// object, where traverse stops) resolves to Null, mirroring the "undefined
// reference is null" rule used throughout this module.
func (c *Copier) substitute(obj object.Object) object.Object {
	switch v := obj.(type) {
	case object.Reference:
		local, ok := c.mapping[v.ObjGen()]
		if !ok {
			return object.Null{}
		}
		return object.Reference(local)
	case *object.Array:
		out := object.NewArray()
		for _, it := range v.Items() {
			out.Push(c.substitute(it))
		}
		return out
	case *object.Dict:
		out := object.NewDict()
		for _, k := range v.Keys() {
			out.Set(k, c.substitute(v.Get(k)))
		}
		return out
	case *object.Stream:
		dict, _ := c.substitute(v.Dict).(*object.Dict)
		raw, _ := v.GetData()
		return object.NewStream(dict, raw)
	default:
		return obj.Clone()
	}
}

// foreignPipe is a DataSource that lazily reads a foreign Stream's payload
// on demand, used by LazyStreams mode so a copy never reads bytes it isn't
// asked for.
type foreignPipe struct {
	stream *object.Stream
}

func (p *foreignPipe) GetData() ([]byte, error) { return p.stream.GetData() }

// isPageDict reports whether obj is (or carries) a dictionary naming
// /Type /Page.
func isPageDict(obj object.Object) bool {
	var d *object.Dict
	switch v := obj.(type) {
	case *object.Dict:
		d = v
	case *object.Stream:
		d = v.Dict
	default:
		return false
	}
	name, _ := d.Get("Type").(object.Name)
	return name == "Page"
}
