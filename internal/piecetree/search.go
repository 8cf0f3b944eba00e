package piecetree

// SearchOptions controls a Boyer-Moore search over buffer content.
type SearchOptions struct {
	// CaseSensitive selects exact-byte matching. The zero value (false)
	// folds ASCII letters, so the search ignores case.
	CaseSensitive bool
}

// badChar and goodSfx implement the classic Boyer-Moore-Horspool
// bad-character rule plus a full good-suffix table, so pathological patterns
// (highly self-repetitive, e.g. "aaaa") don't degrade to near-linear
// per-position rescans.
type searcher struct {
	pattern  []byte
	badChar  [256]int
	goodSfx  []int
	caseFold bool
}

func newSearcher(pattern []byte, caseSensitive bool) *searcher {
	s := &searcher{pattern: pattern, caseFold: !caseSensitive}
	if s.caseFold {
		s.pattern = foldBytes(pattern)
	}
	s.buildBadChar()
	s.buildGoodSuffix()
	return s
}

func foldBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

func (s *searcher) buildBadChar() {
	m := len(s.pattern)
	for i := range s.badChar {
		s.badChar[i] = m
	}
	for i := 0; i < m-1; i++ {
		s.badChar[s.pattern[i]] = m - 1 - i
	}
}

// buildGoodSuffix fills goodSfx using the standard two-pass construction
// (case 1: suffix reoccurs elsewhere in the pattern; case 2: a prefix of
// the pattern matches a suffix of the matched suffix).
func (s *searcher) buildGoodSuffix() {
	m := len(s.pattern)
	s.goodSfx = make([]int, m)
	border := make([]int, m+1)

	i, j := m, m+1
	border[i] = j
	for i > 0 {
		for j <= m && s.pattern[i-1] != s.pattern[j-1] {
			if s.goodSfx[j-1] == 0 {
				s.goodSfx[j-1] = j - i
			}
			j = border[j]
		}
		i--
		j--
		border[i] = j
	}

	j = border[0]
	for i = 0; i < m; i++ {
		if s.goodSfx[i] == 0 {
			s.goodSfx[i] = j
		}
		if i+1 == j {
			j = border[j]
		}
	}
}

func (s *searcher) shift(mismatchIdx int, badCharAt byte) int {
	bc := s.badChar[badCharAt] - (len(s.pattern) - 1 - mismatchIdx)
	gs := s.goodSfx[mismatchIdx]
	if bc > gs {
		return bc
	}
	return gs
}

// Match is a single search hit's half-open byte range.
type Match struct {
	Start int64
	End   int64
}

// Search returns every non-overlapping occurrence of pattern at or after
// `from`, scanning forward. It materializes the buffer content once
// (Read is already copy-based) rather than stepping piece by piece, which
// keeps the Boyer-Moore skip tables correct across piece boundaries
// without special-casing them — acceptable because search is not
// expected to run on a hot per-keystroke path the way Insert/Delete are.
func (t *PieceTree) Search(pattern []byte, from int64, opts SearchOptions) []Match {
	if len(pattern) == 0 {
		return nil
	}
	total := t.Len()
	if from < 0 {
		from = 0
	}
	if from >= total {
		return nil
	}
	hay, err := t.Read(from, total-from)
	if err != nil {
		return nil
	}
	s := newSearcher(pattern, opts.CaseSensitive)
	text := hay
	if s.caseFold {
		text = foldBytes(hay)
	}

	var matches []Match
	m := len(s.pattern)
	n := len(text)
	i := m - 1
	for i < n {
		j := m - 1
		k := i
		for j >= 0 && text[k] == s.pattern[j] {
			k--
			j--
		}
		if j < 0 {
			start := k + 1
			matches = append(matches, Match{Start: from + int64(start), End: from + int64(start+m)})
			i += m // non-overlapping: resume scan right after this match
			continue
		}
		i += s.shift(j, text[i])
	}
	return matches
}

// SearchBackward returns the closest match preceding `from`: of the
// matches lying wholly within [0, from), the one that starts last, or
// ok=false if none exists.
func (t *PieceTree) SearchBackward(pattern []byte, from int64, opts SearchOptions) (Match, bool) {
	if len(pattern) == 0 || from <= 0 {
		return Match{}, false
	}
	hay, err := t.Read(0, from)
	if err != nil {
		return Match{}, false
	}
	s := newSearcher(pattern, opts.CaseSensitive)
	text := hay
	if s.caseFold {
		text = foldBytes(hay)
	}

	var best Match
	found := false
	m := len(s.pattern)
	n := len(text)
	i := m - 1
	for i < n {
		j := m - 1
		k := i
		for j >= 0 && text[k] == s.pattern[j] {
			k--
			j--
		}
		if j < 0 {
			start := k + 1
			best = Match{Start: int64(start), End: int64(start + m)}
			found = true
			i++ // overlapping: a later-starting match may still end before from
			continue
		}
		i += s.shift(j, text[i])
	}
	return best, found
}
