package writer

import (
	"fmt"

	"github.com/holoq/qpdf/pipeline"
)

// computeID implements spec §4.10 step 1's /ID computation: deterministic
// and static modes are exact; the "derived" default mirrors qpdf's own
// approach (hash wall clock, output name, /Info and file size) but takes
// those as Config.DerivedSeed/fileSize instead of touching the OS clock
// itself, keeping this package free of hidden nondeterminism. Write calls
// it before any object is emitted and passes the number of enqueued
// objects as fileSize.
func computeID(cfg Config, rootPDFString, infoPDFString string, fileSize int) [2][]byte {
	if cfg.IDMode == IDStatic {
		return [2][]byte{cfg.StaticID[0], cfg.StaticID[1]}
	}

	h := pipeline.NewMD5Sink(pipeline.DiscardSink{})
	h.Write([]byte(cfg.DerivedSeed))
	if cfg.IDMode == IDDeterministic {
		h.Write([]byte(rootPDFString))
		h.Write([]byte(infoPDFString))
	}
	fmt.Fprintf(md5Writer{h}, "%d", fileSize)
	h.Finish()
	sum := h.Sum()
	id := append([]byte(nil), sum[:]...)
	return [2][]byte{id, id}
}

// md5Writer adapts an MD5Sink to io.Writer for fmt.Fprintf.
type md5Writer struct{ s *pipeline.MD5Sink }

func (w md5Writer) Write(p []byte) (int, error) { return w.s.Write(p) }
