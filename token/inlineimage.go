package token

// ScanInlineImageEnd consumes inline-image data starting right after the
// "ID" keyword (and its single mandatory separator byte, already skipped by
// the caller) and returns the raw image bytes plus the byte length consumed
// including the terminating "EI".
//
// This implements the documented heuristic from the inline-image Open
// Question: a candidate "EI" is only accepted when it sits at a delimiter
// boundary and the following ten tokens look like a plausible continuation
// of page content (EOF, or tokens whose value is made only of ASCII letters
// and '*', with no control bytes) — otherwise the search resumes forward
// from just past the rejected candidate. This is inherently a heuristic:
// PDF gives no unescaped-length field for inline image data.
func (lx *Lexer) ScanInlineImageEnd() (data []byte, consumed int) {
	start := lx.currentPos
	searchFrom := start
	for {
		idx := indexEI(lx.data, searchFrom)
		if idx < 0 {
			// no EI anywhere: consume to EOF, matching tokenizer totality.
			end := len(lx.data)
			lx.primeAt(end)
			return lx.data[start:end], end - start
		}
		if lx.looksLikePlausibleContinuation(idx + 2) {
			end := idx + 2
			lx.primeAt(end)
			return lx.data[start:idx], end - start
		}
		searchFrom = idx + 2
	}
}

// indexEI finds the next occurrence of "EI" at a delimiter boundary (i.e.
// not a substring of a longer word) starting at or after from.
func indexEI(data []byte, from int) int {
	for i := from; i+1 < len(data); i++ {
		if data[i] != 'E' || data[i+1] != 'I' {
			continue
		}
		if i > 0 && !isDelimiter(data[i-1]) {
			continue
		}
		if i+2 < len(data) && !isDelimiter(data[i+2]) {
			continue
		}
		return i
	}
	// allow EI as the very last two bytes of the file
	if len(data) >= 2 {
		i := len(data) - 2
		if i >= from && data[i] == 'E' && data[i+1] == 'I' && (i == 0 || isDelimiter(data[i-1])) {
			return i
		}
	}
	return -1
}

// looksLikePlausibleContinuation peeks up to ten tokens starting at byte
// offset pos without disturbing the lexer's own lookahead state, accepting
// EOF or tokens built only from letters/'*'.
func (lx *Lexer) looksLikePlausibleContinuation(pos int) bool {
	probe := &Lexer{data: lx.data, mode: Mode{AllowEOF: true}}
	probe.primeAt(pos)
	for i := 0; i < 10; i++ {
		t := probe.Next()
		if t.Kind == EOF {
			return true
		}
		if t.Kind != Word && t.Kind != Bool && t.Kind != Null {
			return false
		}
		for j := 0; j < len(t.Value); j++ {
			c := t.Value[j]
			isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
			if !isAlpha && c != '*' {
				return false
			}
		}
	}
	return true
}
