package writer

import "github.com/holoq/qpdf/object"

// Source resolves an indirect reference into its target object, the only
// capability the writer needs from whatever document type owns the object
// graph (an xref.Table, or a qpdf.Document layering new objects over one).
type Source interface {
	Resolve(og object.ObjGen) (object.Object, bool)
}

// enqueue implements spec §4.10 step 2: a breadth-first walk from the
// trailer, assigning every direct-reachable indirect object a new
// sequential id (starting at 1) in first-seen order.
type enqueue struct {
	src Source

	newNum  map[object.ObjGen]int
	order   []object.ObjGen // old ObjGen, indexed by (newNum - 1)
	queue   []object.ObjGen
}

func newEnqueue(src Source) *enqueue {
	return &enqueue{src: src, newNum: map[object.ObjGen]int{}}
}

// seed registers root for numbering: a Reference (as Write passes for
// /Root and /Info) is numbered itself; for a container, every Reference
// inside it is numbered.
func (e *enqueue) seed(root object.Object) {
	e.scan(root)
}

// scan records every Reference found anywhere within obj (recursing through
// Array/Dict/Stream.Dict), assigning new numbers in first-seen, breadth
// order via the run loop below.
func (e *enqueue) scan(obj object.Object) {
	switch v := obj.(type) {
	case object.Reference:
		e.visit(v.ObjGen())
	case *object.Array:
		for _, it := range v.Items() {
			e.scan(it)
		}
	case *object.Dict:
		for _, k := range v.Keys() {
			e.scan(v.Get(k))
		}
	case *object.Stream:
		e.scan(v.Dict)
	}
}

func (e *enqueue) visit(og object.ObjGen) {
	if _, ok := e.newNum[og]; ok {
		return
	}
	e.newNum[og] = len(e.order) + 1
	e.order = append(e.order, og)
	e.queue = append(e.queue, og)
}

// run drains the queue, scanning each newly discovered object's children,
// which is what gives the walk its breadth-first character: every object
// discovered at depth N is queued before any of its children (depth N+1)
// are visited.
func (e *enqueue) run() {
	for len(e.queue) > 0 {
		og := e.queue[0]
		e.queue = e.queue[1:]
		obj, ok := e.src.Resolve(og)
		if !ok {
			continue
		}
		e.scan(obj)
	}
}

// resolveNew maps an old ObjGen to its freshly assigned object number (new
// generation is always 0, the writer never preserves free-list generations
// across a rewrite).
func (e *enqueue) resolveNew(og object.ObjGen) (int, bool) {
	n, ok := e.newNum[og]
	return n, ok
}
