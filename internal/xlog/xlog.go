// Package xlog gives every component of the module a named, leveled logger
// that stays silent until a caller opts in, following the teacher's use of
// github.com/pdfcpu/pdfcpu/pkg/log throughout its reader/writer packages.
package xlog

import "github.com/pdfcpu/pdfcpu/pkg/log"

// Named loggers, one per spec component that emits diagnostics. These alias
// pdfcpu's own package-level loggers (Parse/Read/Debug/Write) rather than
// inventing a parallel logging facility, following the teacher's
// `log.Parse.Printf(...)` call sites verbatim.
var (
	Parse = log.Parse
	Xref  = log.Read
	Crypt = log.Debug
	Write = log.Write
)

// Enabled reports whether any diagnostic logging is currently switched on,
// mirroring pdfcpu's log.WriteEnabled()/log.ReadEnabled() guard pattern so
// callers can skip building an expensive message when nobody is listening.
func Enabled() bool {
	return log.WriteEnabled() || log.ReadEnabled() || log.TraceEnabled()
}

