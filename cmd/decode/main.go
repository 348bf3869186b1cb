// This tool reads a PDF file and decodes every stream it can (page content
// streams, form XObjects, and soft-mask groups), writing the result
// alongside the input with streams left uncompressed.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/holoq/qpdf"
	"github.com/holoq/qpdf/filter"
	"github.com/holoq/qpdf/object"
	"github.com/holoq/qpdf/writer"
)

func check(err error) {
	if err != nil {
		fmt.Println("fatal error", err)
		os.Exit(1)
	}
}

func resolve(doc *qpdf.Document, o object.Object) object.Object {
	ref, ok := o.(object.Reference)
	if !ok {
		return o
	}
	v, _ := doc.Resolve(ref.ObjGen())
	return v
}

// decodeStream strips every filter from s's payload, leaving it stored
// uncompressed. A stream whose chain contains a filter the filter package
// cannot decode is left unchanged.
func decodeStream(s *object.Stream) {
	raw, err := s.GetData()
	if err != nil {
		return
	}
	decoded, err := filter.Decode(s.Dict, raw, filter.LevelAll)
	if err != nil {
		return
	}
	s.SetData(decoded)
	s.Dict.Remove("Filter")
	s.Dict.Remove("DecodeParms")
}

func decodeResources(doc *qpdf.Document, res *object.Dict) {
	if res == nil {
		return
	}
	xobjects, _ := resolve(doc, res.Get("XObject")).(*object.Dict)
	for _, name := range dictKeysOrNil(xobjects) {
		xo, _ := resolve(doc, xobjects.Get(name)).(*object.Stream)
		if xo == nil {
			continue
		}
		if subtype, _ := xo.Dict.Get("Subtype").(object.Name); subtype == "Form" {
			decodeStream(xo)
			sub, _ := resolve(doc, xo.Dict.Get("Resources")).(*object.Dict)
			decodeResources(doc, sub)
		}
	}

	extGState, _ := resolve(doc, res.Get("ExtGState")).(*object.Dict)
	for _, name := range dictKeysOrNil(extGState) {
		gs, _ := resolve(doc, extGState.Get(name)).(*object.Dict)
		if gs == nil {
			continue
		}
		sMask, _ := resolve(doc, gs.Get("SMask")).(*object.Dict)
		if sMask == nil {
			continue
		}
		g, _ := resolve(doc, sMask.Get("G")).(*object.Stream)
		if g == nil {
			continue
		}
		decodeStream(g)
		sub, _ := resolve(doc, g.Dict.Get("Resources")).(*object.Dict)
		decodeResources(doc, sub)
	}
}

func dictKeysOrNil(d *object.Dict) []object.Name {
	if d == nil {
		return nil
	}
	return d.Keys()
}

func contentStreams(doc *qpdf.Document, page *object.Dict) []*object.Stream {
	switch contents := resolve(doc, page.Get("Contents")).(type) {
	case *object.Stream:
		return []*object.Stream{contents}
	case *object.Array:
		out := make([]*object.Stream, 0, contents.Size())
		for i := 0; i < contents.Size(); i++ {
			if s, ok := resolve(doc, contents.Get(i)).(*object.Stream); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func main() {
	flag.Parse()
	input := flag.Arg(0)
	if input == "" {
		fmt.Println("usage: decode <file.pdf>")
		os.Exit(1)
	}

	data, err := os.ReadFile(input)
	check(err)

	doc, err := qpdf.Open(data, nil)
	check(err)

	for _, page := range doc.Pages.Pages() {
		for _, cs := range contentStreams(doc, page) {
			decodeStream(cs)
		}
		res, _ := resolve(doc, page.Get("Resources")).(*object.Dict)
		decodeResources(doc, res)
	}

	out, err := os.Create(input + ".dec.pdf")
	check(err)
	defer out.Close()

	err = doc.Write(out, writer.Config{CompressStreams: false})
	check(err)
	fmt.Println("Done")
}
