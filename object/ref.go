package object

import "fmt"

// Reference is an indirect reference "N G R", the PDF syntax for pointing
// at another object without embedding it. Resolving a Reference is the
// xref package's job; the object model only carries the (num, gen) pair.
type Reference ObjGen

func NewReference(num, gen int) Reference { return Reference{Num: num, Gen: gen} }

func (r Reference) Kind() Kind        { return KindUnresolved }
func (r Reference) Clone() Object     { return r }
func (r Reference) String() string    { return fmt.Sprintf("(%s)", r.PDFString()) }
func (r Reference) PDFString() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// ObjGen reports the (num, gen) pair this reference names.
func (r Reference) ObjGen() ObjGen { return ObjGen(r) }
