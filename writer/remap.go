package writer

import "github.com/holoq/qpdf/object"

// remap rewrites every Reference inside obj from its old (num,gen) to the
// freshly assigned object number computed by enqueue, generation always 0.
// A reference to an object the walk never reached is rewritten to a
// reference to object 0, which any conforming reader treats as null. (An
// object whose Resolve failed was still reached and numbered; Write emits
// it as null.)
func remap(e *enqueue, obj object.Object) object.Object {
	switch v := obj.(type) {
	case object.Reference:
		if n, ok := e.resolveNew(v.ObjGen()); ok {
			return object.NewReference(n, 0)
		}
		return object.NewReference(0, 0)
	case *object.Array:
		out := object.NewArray()
		for _, it := range v.Items() {
			out.Push(remap(e, it))
		}
		return out
	case *object.Dict:
		out := object.NewDict()
		for _, k := range v.Keys() {
			out.Set(k, remap(e, v.Get(k)))
		}
		return out
	case *object.Stream:
		dict, _ := remap(e, v.Dict).(*object.Dict)
		raw, _ := v.GetData()
		return object.NewStream(dict, raw)
	default:
		return obj
	}
}
