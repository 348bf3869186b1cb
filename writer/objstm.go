package writer

import (
	"bytes"
	"fmt"

	"github.com/holoq/qpdf/object"
)

// objStmMember is one object packed into an /ObjStm, identified by its
// final (post-renumbering) object number.
type objStmMember struct {
	num   int
	value object.Object
}

// packObjectStreams implements spec §4.10 step 3: group compressible
// objects into /ObjStm containers of at most threshold members each, in
// the order they were enqueued (stable, deterministic output). Each group
// is assigned a fresh object number (appended after every BFS-reachable
// object), and returns the mapping from packed object number to
// (container object number, index within it) the xref needs.
func packObjectStreams(members []objStmMember, threshold int, nextNum int) (containers []objStmContainer, location map[int]compressedLocation) {
	location = map[int]compressedLocation{}
	for start := 0; start < len(members); start += threshold {
		end := start + threshold
		if end > len(members) {
			end = len(members)
		}
		group := members[start:end]
		containerNum := nextNum
		nextNum++
		dict, data := buildObjStm(group)
		containers = append(containers, objStmContainer{num: containerNum, dict: dict, data: data})
		for i, m := range group {
			location[m.num] = compressedLocation{streamNum: containerNum, index: i}
		}
	}
	return containers, location
}

type objStmContainer struct {
	num  int
	dict *object.Dict
	data []byte
}

type compressedLocation struct {
	streamNum int
	index     int
}

// buildObjStm renders one group's header ("num1 off1 num2 off2 ...") and
// body (each member's PDFString, space-separated) per PDF 7.5.7, returning
// the stream dictionary (/Type /ObjStm /N /First) and payload bytes.
func buildObjStm(group []objStmMember) (*object.Dict, []byte) {
	var header, body bytes.Buffer
	for i, m := range group {
		if i > 0 {
			body.WriteByte(' ')
		}
		fmt.Fprintf(&header, "%d %d ", m.num, body.Len())
		body.WriteString(m.value.PDFString())
	}

	data := make([]byte, 0, header.Len()+body.Len())
	data = append(data, header.Bytes()...)
	first := header.Len()
	data = append(data, body.Bytes()...)

	dict := object.NewDict()
	dict.Set("Type", object.Name("ObjStm"))
	dict.Set("N", object.Integer(len(group)))
	dict.Set("First", object.Integer(first))
	return dict, data
}
