// This script decodes just the page content streams of a PDF file, leaving
// every other stream (images, embedded files, object streams) untouched.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/holoq/qpdf"
	"github.com/holoq/qpdf/filter"
	"github.com/holoq/qpdf/object"
	"github.com/holoq/qpdf/writer"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("missing input file")
	}
	filePath := os.Args[1]

	data, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatalf("reading input: %s", err)
	}

	doc, err := qpdf.Open(data, nil)
	if err != nil {
		log.Fatalf("parsing input: %s", err)
	}

	for _, page := range doc.Pages.Pages() {
		contents := page.Get("Contents")
		if ref, ok := contents.(object.Reference); ok {
			contents, _ = doc.Resolve(ref.ObjGen())
		}
		s, ok := contents.(*object.Stream)
		if !ok {
			continue // an array of content streams is left as-is
		}
		raw, err := s.GetData()
		if err != nil {
			log.Fatal(err)
		}
		decoded, err := filter.Decode(s.Dict, raw, filter.LevelGeneralized)
		if err != nil {
			log.Fatal(err)
		}
		s.SetData(decoded)
		s.Dict.Remove("Filter")
		s.Dict.Remove("DecodeParms")
	}

	output := filePath + ".decoded.pdf"
	out, err := os.Create(output)
	if err != nil {
		log.Fatal(err)
	}
	defer out.Close()

	if err := doc.Write(out, writer.Config{CompressStreams: false}); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Written in", output)
}
