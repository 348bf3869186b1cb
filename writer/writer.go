package writer

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/holoq/qpdf/crypt"
	"github.com/holoq/qpdf/filter"
	"github.com/holoq/qpdf/object"
)

// Input is what the writer needs from the document being written: a way to
// resolve indirect references, and the trailer's two mandatory entries.
// Root and Info must be object.Reference values (PDF requires /Root, and by
// convention /Info, to be indirect); the zero Reference (object number 0,
// which PDF reserves and never assigns) means "absent" for Info.
type Input struct {
	Source Source
	Root   object.Reference
	Info   object.Reference

	// SourceVersion is the PDF version the source document declared (its
	// header, or a later /Version catalog override), one input to the
	// negotiated output version.
	SourceVersion string

	// FirstPage and PageCount feed Config.Linearize: FirstPage names the
	// page the linearized layout optimizes for (placed, with its content
	// streams, ahead of the rest of the file), and PageCount is the total
	// page count recorded in the linearization dictionary's /N entry. Both
	// are ignored when Config.Linearize is false.
	FirstPage object.Reference
	PageCount int
}

// Write implements spec §4.10 end to end: version/ID/encryption setup,
// breadth-first enqueue and renumbering, optional object-stream
// compaction, object emission with per-stream filter/encryption decisions,
// and a classic or xref-stream trailer.
func Write(dst io.Writer, in Input, cfg Config) error {
	plannedR := 0
	if cfg.Encrypt != nil {
		if cfg.Encrypt.Engine != nil {
			plannedR = cfg.Encrypt.Engine.Params.R
		} else if cfg.Encrypt.New != nil {
			plannedR = cfg.Encrypt.New.R
		}
	}

	version := negotiateVersion(cfg, in.SourceVersion, cfg.ObjectStreams != ObjectStreamsDisable, plannedR)

	e := newEnqueue(in.Source)
	e.seed(in.Root)
	if !in.Info.ObjGen().IsDirect() {
		e.seed(in.Info)
	}
	e.run()

	id := computeID(cfg, in.Root.PDFString(), in.Info.PDFString(), len(e.order))

	var engine *crypt.Engine
	if cfg.Encrypt != nil {
		var err error
		engine, err = resolveEngineWithID(cfg.Encrypt, id[0])
		if err != nil {
			return fmt.Errorf("writer: negotiating encryption: %w", err)
		}
	}

	metadataOg, hasMetadata := rootMetadataOg(in.Source, in.Root)

	rootNum, _ := e.resolveNew(in.Root.ObjGen())
	infoNum := 0
	if !in.Info.ObjGen().IsDirect() {
		infoNum, _ = e.resolveNew(in.Info.ObjGen())
	}

	firstPageSet := map[int]bool{}
	var firstPageOrder []int
	if cfg.Linearize {
		if in.FirstPage.ObjGen().IsDirect() {
			return fmt.Errorf("writer: Config.Linearize is set but Input.FirstPage was not supplied")
		}
		members, err := firstPageMembers(e, in.Source, in.FirstPage.ObjGen())
		if err != nil {
			return fmt.Errorf("writer: %w", err)
		}
		firstPageOrder = members
		for _, n := range members {
			firstPageSet[n] = true
		}
	}

	type pending struct {
		num        int
		isStream   bool
		streamDict *object.Dict
		streamRaw  []byte
		value      object.Object
	}
	byNum := map[int]pending{}

	var compressibleMembers []objStmMember
	packing := cfg.ObjectStreams != ObjectStreamsDisable

	for i, og := range e.order {
		num := i + 1
		raw, ok := in.Source.Resolve(og)
		if !ok {
			raw = object.Null{}
		}
		remapped := remap(e, raw)

		isMetadata := hasMetadata && og == metadataOg
		if stream, isStream := remapped.(*object.Stream); isStream {
			sourceRaw, _ := stream.GetData()
			skipMetaCompress := isMetadata && engine == nil
			dict, data := prepareStreamBytes(stream.Dict, sourceRaw, cfg.DecodeLevel, cfg.CompressStreams, skipMetaCompress, engine, num, 0)
			byNum[num] = pending{num: num, isStream: true, streamDict: dict, streamRaw: data}
			continue
		}

		if packing && !isMetadata && !firstPageSet[num] {
			compressibleMembers = append(compressibleMembers, objStmMember{num: num, value: remapped})
			continue
		}

		if engine != nil {
			remapped = encryptStrings(remapped, num, 0, engine)
		}
		byNum[num] = pending{num: num, value: remapped}
	}

	nextNum := len(e.order) + 1
	var containers []objStmContainer
	location := map[int]compressedLocation{}
	if packing && len(compressibleMembers) > 0 {
		containers, location = packObjectStreams(compressibleMembers, cfg.objectStreamThreshold(), nextNum)
		for _, c := range containers {
			dict, data := finalizeObjStm(c.dict, c.data, cfg.CompressStreams, engine, c.num)
			byNum[c.num] = pending{num: c.num, isStream: true, streamDict: dict, streamRaw: data}
		}
		nextNum += len(containers)
	}

	encryptNum := 0
	if engine != nil {
		encryptNum = nextNum
		nextNum++
		byNum[encryptNum] = pending{num: encryptNum, value: buildEncryptDict(engine)}
	}

	var linNum, hintNum int
	var linTmpl linTemplate
	if cfg.Linearize {
		linNum = nextNum
		nextNum++
		hintNum = nextNum
		nextNum++

		hintDict, hintData := buildHintStream(in.PageCount)
		byNum[hintNum] = pending{num: hintNum, isStream: true, streamDict: hintDict, streamRaw: hintData}

		linTmpl = buildLinTemplate(firstPageOrder[0], in.PageCount, len(hintData))
		byNum[linNum] = pending{num: linNum, value: rawObject(linTmpl.text)}
	}

	maxNum := nextNum - 1

	var header bytes.Buffer
	fmt.Fprintf(&header, "%%PDF-%s\n", version)
	header.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	order := make([]int, 0, maxNum)
	firstPageBlockLen := 0
	if cfg.Linearize {
		order = append(order, linNum, hintNum)
		order = append(order, firstPageOrder...)
		firstPageBlockLen = len(order)
		placed := make(map[int]bool, firstPageBlockLen)
		for _, n := range order {
			placed[n] = true
		}
		for num := 1; num <= maxNum; num++ {
			if !placed[num] {
				order = append(order, num)
			}
		}
	} else {
		for num := 1; num <= maxNum; num++ {
			order = append(order, num)
		}
	}

	var body bytes.Buffer
	offsets := make(map[int]int64, maxNum)
	var endOfFirstPage int64
	for i, num := range order {
		p, ok := byNum[num]
		if !ok {
			continue // packed into an ObjStm; has a type-2 xref entry instead
		}
		offsets[num] = int64(header.Len()) + int64(body.Len())
		fmt.Fprintf(&body, "%d 0 obj\n", num)
		if p.isStream {
			body.WriteString(p.streamDict.PDFString())
			body.WriteString("\nstream\n")
			body.Write(p.streamRaw)
			body.WriteString("\nendstream\nendobj\n")
		} else {
			body.WriteString(p.value.PDFString())
			body.WriteString("\nendobj\n")
		}
		if cfg.Linearize && i == firstPageBlockLen-1 {
			endOfFirstPage = int64(header.Len()) + int64(body.Len())
		}
		if cfg.Progress != nil {
			cfg.Progress(num, maxNum)
		}
	}

	trailer := object.NewDict()
	trailer.Set("Root", object.NewReference(rootNum, 0))
	if infoNum != 0 {
		trailer.Set("Info", object.NewReference(infoNum, 0))
	}
	trailer.Set("ID", object.NewArray(object.NewHexString(id[0]), object.NewHexString(id[1])))
	if engine != nil {
		trailer.Set("Encrypt", object.NewReference(encryptNum, 0))
	}

	var mainXrefOffset int64
	if len(containers) > 0 {
		var err error
		mainXrefOffset, err = writeXRefStream(&body, header.Len(), maxNum, offsets, location, trailer, cfg.CompressStreams)
		if err != nil {
			return err
		}
	} else {
		mainXrefOffset = writeClassicXRef(&body, header.Len(), maxNum, offsets, trailer)
	}

	if cfg.Linearize {
		totalLen := int64(header.Len()) + int64(body.Len())
		buf := body.Bytes()
		linObjStart := int(offsets[linNum]) - header.Len() + len(fmt.Sprintf("%d 0 obj\n", linNum))
		patchDecimal(buf, linObjStart+linTmpl.lPos, totalLen)
		patchDecimal(buf, linObjStart+linTmpl.hOffPos, offsets[hintNum])
		patchDecimal(buf, linObjStart+linTmpl.ePos, endOfFirstPage)
		patchDecimal(buf, linObjStart+linTmpl.tPos, mainXrefOffset)
	}

	if _, err := dst.Write(header.Bytes()); err != nil {
		return err
	}
	if _, err := dst.Write(body.Bytes()); err != nil {
		return err
	}
	return nil
}

// finalizeObjStm applies stream compression/encryption to one /ObjStm
// container: unlike a content stream, it never arrives with an existing
// filter chain to decode, so the decision collapses to "optionally Flate,
// then optionally encrypt."
func finalizeObjStm(dict *object.Dict, data []byte, compress bool, engine *crypt.Engine, num int) (*object.Dict, []byte) {
	out := dict.Clone().(*object.Dict)
	if compress {
		if encoded, err := filter.EncodeFlate(data, -1); err == nil {
			data = encoded
			out.Set("Filter", object.Name("FlateDecode"))
		}
	}
	if engine != nil {
		if encrypted, err := engine.EncryptStreamData(data, num, 0); err == nil {
			data = encrypted
		}
	}
	out.Set("Length", object.Integer(len(data)))
	return out, data
}

// rootMetadataOg resolves the source ObjGen of the catalog's /Metadata
// entry, if any, for the writer's "don't Flate /Metadata when unencrypted"
// rule.
func rootMetadataOg(src Source, root object.Reference) (object.ObjGen, bool) {
	catalogObj, ok := src.Resolve(root.ObjGen())
	if !ok {
		return object.ObjGen{}, false
	}
	catalog, ok := catalogObj.(*object.Dict)
	if !ok {
		return object.ObjGen{}, false
	}
	ref, ok := catalog.Get("Metadata").(object.Reference)
	if !ok {
		return object.ObjGen{}, false
	}
	return ref.ObjGen(), true
}

func buildEncryptDict(e *crypt.Engine) *object.Dict {
	d := object.NewDict()
	d.Set("Filter", object.Name("Standard"))
	d.Set("V", object.Integer(e.Params.V))
	d.Set("R", object.Integer(e.Params.R))
	d.Set("O", object.NewHexString(e.Params.O))
	d.Set("U", object.NewHexString(e.Params.U))
	d.Set("P", object.Integer(e.Params.P))
	if e.Params.V >= 5 {
		d.Set("OE", object.NewHexString(e.Params.OE))
		d.Set("UE", object.NewHexString(e.Params.UE))
		d.Set("Perms", object.NewHexString(e.Params.Perms))
	} else {
		d.Set("Length", object.Integer(e.Params.Length*8))
	}
	if e.Params.R >= 4 {
		d.Set("EncryptMetadata", object.Boolean(e.Params.EncryptMetadata))
		cfName := object.Name("StdCF")
		cf := object.NewDict()
		cfEntry := object.NewDict()
		method := "AESV2"
		if e.Params.V >= 5 {
			method = "AESV3"
		} else if e.Params.StmDefault == crypt.MethodRC4 {
			method = "V2"
		}
		cfEntry.Set("CFM", object.Name(method))
		cfEntry.Set("AuthEvent", object.Name("DocOpen"))
		cfEntry.Set("Length", object.Integer(e.Params.Length))
		cf.Set(cfName, cfEntry)
		d.Set("CF", cf)
		d.Set("StmF", cfName)
		d.Set("StrF", cfName)
	}
	return d
}

func writeClassicXRef(body *bytes.Buffer, headerLen int, maxNum int, offsets map[int]int64, trailer *object.Dict) int64 {
	startxref := int64(headerLen) + int64(body.Len())
	fmt.Fprintf(body, "xref\n0 %d\n", maxNum+1)
	fmt.Fprintf(body, "0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		off, ok := offsets[num]
		if !ok {
			fmt.Fprintf(body, "0000000000 00000 f \n")
			continue
		}
		fmt.Fprintf(body, "%010d 00000 n \n", off)
	}
	trailer.Set("Size", object.Integer(maxNum+1))
	fmt.Fprintf(body, "trailer\n%s\n", trailer.PDFString())
	fmt.Fprintf(body, "startxref\n%d\n%%%%EOF", startxref)
	return startxref
}

func writeXRefStream(body *bytes.Buffer, headerLen int, maxNum int, offsets map[int]int64, location map[int]compressedLocation, trailer *object.Dict, compress bool) (int64, error) {
	xrefNum := maxNum + 1
	// The xref stream object is written immediately after everything
	// already in body, so its own offset is simply the current end of
	// file — fixed before any of its row bytes (which live inside its own
	// stream payload, not before it) are produced.
	xrefObjOffset := int64(headerLen) + int64(body.Len())
	var rows bytes.Buffer
	// Object 0: free list head.
	rows.Write([]byte{0, 0, 0, 0, 0, 0xFF, 0xFF})
	for num := 1; num <= xrefNum; num++ {
		if num == xrefNum {
			writeXRefRow(&rows, 1, uint64(xrefObjOffset), 0)
			continue
		}
		if loc, ok := location[num]; ok {
			writeXRefRow(&rows, 2, uint64(loc.streamNum), uint16(loc.index))
			continue
		}
		if off, ok := offsets[num]; ok {
			writeXRefRow(&rows, 1, uint64(off), 0)
			continue
		}
		rows.Write([]byte{0, 0, 0, 0, 0, 0xFF, 0xFF})
	}

	data := rows.Bytes()
	dict := object.NewDict()
	dict.Set("Type", object.Name("XRef"))
	dict.Set("Size", object.Integer(xrefNum+1))
	dict.Set("W", object.NewArray(object.Integer(1), object.Integer(4), object.Integer(2)))
	dict.Set("Index", object.NewArray(object.Integer(0), object.Integer(xrefNum+1)))
	for _, k := range trailer.Keys() {
		dict.Set(k, trailer.Get(k))
	}
	if compress {
		if encoded, err := filter.EncodeFlate(data, -1); err == nil {
			data = encoded
			dict.Set("Filter", object.Name("FlateDecode"))
		}
	}
	dict.Set("Length", object.Integer(len(data)))

	startxref := int64(headerLen) + int64(body.Len())
	fmt.Fprintf(body, "%d 0 obj\n%s\nstream\n", xrefNum, dict.PDFString())
	body.Write(data)
	fmt.Fprintf(body, "\nendstream\nendobj\n")
	fmt.Fprintf(body, "startxref\n%d\n%%%%EOF", startxref)
	return startxref, nil
}

// writeXRefRow appends one fixed-width (1,4,2)-byte xref-stream row.
func writeXRefRow(w *bytes.Buffer, typ byte, field2 uint64, field3 uint16) {
	w.WriteByte(typ)
	w.WriteByte(byte(field2 >> 24))
	w.WriteByte(byte(field2 >> 16))
	w.WriteByte(byte(field2 >> 8))
	w.WriteByte(byte(field2))
	w.WriteByte(byte(field3 >> 8))
	w.WriteByte(byte(field3))
}

// negotiateVersion implements spec §4.10 step 1's version resolution: the
// max of the caller's floor, the source document's own version, and any
// feature-driven floor (object streams need 1.5; R5 needs 1.7; R6 needs
// 2.0 — this package doesn't track qpdf's separate "extension level"
// concept, so R5 is represented as plain "1.7").
func negotiateVersion(cfg Config, sourceVersion string, usesObjectStreams bool, encryptR int) string {
	maj, min := 1, 4
	if cfg.MinVersion != "" {
		if m, n, ok := parseVersion(cfg.MinVersion); ok {
			maj, min = m, n
		}
	}
	if m, n, ok := parseVersion(sourceVersion); ok {
		maj, min = maxVersion(maj, min, m, n)
	}
	if usesObjectStreams {
		maj, min = maxVersion(maj, min, 1, 5)
	}
	switch {
	case encryptR >= 6:
		maj, min = maxVersion(maj, min, 2, 0)
	case encryptR == 5:
		maj, min = maxVersion(maj, min, 1, 7)
	}
	return strconv.Itoa(maj) + "." + strconv.Itoa(min)
}

func parseVersion(s string) (major, minor int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	maj, err1 := strconv.Atoi(parts[0])
	min, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return maj, min, true
}

func maxVersion(aMaj, aMin, bMaj, bMin int) (int, int) {
	if bMaj > aMaj || (bMaj == aMaj && bMin > aMin) {
		return bMaj, bMin
	}
	return aMaj, aMin
}
