package object

import "strings"

// Dict is the PDF dictionary object: an insertion-order-preserving mapping
// from Name to Object. The teacher's Dict (parser.Dict) is a plain
// `map[string]Object`, which cannot preserve insertion order; this type
// generalizes it with a parallel key-order slice, as spec §3 requires
// ("Dictionary: insertion-order-preserving").
type Dict struct {
	values map[Name]Object
	order  []Name
}

// NewDict returns an empty Dict.
func NewDict() *Dict {
	return &Dict{values: map[Name]Object{}}
}

func (d *Dict) Kind() Kind { return KindDictionary }

// Clone performs a shallow copy: a new Dict sharing the same child Objects.
func (d *Dict) Clone() Object {
	cp := NewDict()
	for _, k := range d.order {
		cp.Set(k, d.values[k])
	}
	return cp
}

func (d *Dict) String() string { return d.PDFString() }

func (d *Dict) PDFString() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for _, k := range d.order {
		sb.WriteString(Name(k).PDFString())
		sb.WriteByte(' ')
		sb.WriteString(pdfStringOf(d.values[k]))
	}
	sb.WriteString(">>")
	return sb.String()
}

// Get returns the value for key, or Null{} if absent, per spec §4.3.
func (d *Dict) Get(key Name) Object {
	if v, ok := d.values[key]; ok {
		return v
	}
	return Null{}
}

// Lookup is like Get but also reports whether the key was present, for
// callers that must distinguish "absent" from "present and null".
func (d *Dict) Lookup(key Name) (Object, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Set inserts or replaces the value for key, appending key to the insertion
// order on first use.
func (d *Dict) Set(key Name, v Object) {
	if d.values == nil {
		d.values = map[Name]Object{}
	}
	if _, ok := d.values[key]; !ok {
		d.order = append(d.order, key)
	}
	d.values[key] = v
}

// Remove deletes key, if present.
func (d *Dict) Remove(key Name) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Keys returns the dictionary's keys in insertion order.
func (d *Dict) Keys() []Name {
	out := make([]Name, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.order) }
