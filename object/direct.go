package object

import "errors"

// ErrCycle is returned by MakeDirect when a reference cycle is found through
// arrays or dictionaries and the caller did not allow stream substitution.
var ErrCycle = errors.New("object: cycle detected while resolving indirect references")

// Resolve fetches the Object bound to an ObjGen, or reports it absent/freed.
type Resolve func(ObjGen) (Object, bool)

// MakeDirect recursively replaces every indirect Reference reachable from o
// with a deep copy of its resolved target, per spec §4.3's "make-direct"
// operation. It fails with ErrCycle if a cycle runs through an array or
// dictionary. A cycle that runs through a Stream is instead broken by
// substituting Null for the back-reference when allowStreamSubstitution is
// true (the caller explicitly opted into lossy cycle-breaking); otherwise
// it too is reported as ErrCycle.
func MakeDirect(o Object, resolve Resolve, allowStreamSubstitution bool) (Object, error) {
	return makeDirect(o, resolve, allowStreamSubstitution, map[ObjGen]bool{})
}

func makeDirect(o Object, resolve Resolve, allowStream bool, visiting map[ObjGen]bool) (Object, error) {
	switch v := o.(type) {
	case Reference:
		og := v.ObjGen()
		if visiting[og] {
			return Null{}, ErrCycle
		}
		target, ok := resolve(og)
		if !ok {
			return Null{}, nil
		}
		visiting[og] = true
		direct, err := makeDirect(target, resolve, allowStream, visiting)
		delete(visiting, og)
		if err != nil {
			if errors.Is(err, ErrCycle) && allowStream {
				if _, isStream := target.(*Stream); isStream {
					return Null{}, nil
				}
			}
			return Null{}, err
		}
		return direct, nil
	case *Array:
		out := NewArray()
		for _, it := range v.Items() {
			d, err := makeDirect(it, resolve, allowStream, visiting)
			if err != nil {
				return Null{}, err
			}
			out.Push(d)
		}
		return out, nil
	case *Dict:
		out := NewDict()
		for _, k := range v.Keys() {
			d, err := makeDirect(v.Get(k), resolve, allowStream, visiting)
			if err != nil {
				return Null{}, err
			}
			out.Set(k, d)
		}
		return out, nil
	case *Stream:
		dict, err := makeDirect(v.Dict, resolve, allowStream, visiting)
		if err != nil {
			return Null{}, err
		}
		raw, _ := v.GetData()
		return NewStream(dict.(*Dict), raw), nil
	default:
		return o.Clone(), nil
	}
}
