package partsearch

// The matching primitive runs inside lane kernels, so it sticks to plain
// byte loops: no allocation, no strings/bytes/unicode calls. A NUL byte or
// the end of the slice terminates both text and pattern.

// Matcher decides whether a record matches a pattern.
type Matcher struct {
	// IgnoreCase folds ASCII letters before comparing.
	IgnoreCase bool
}

// Contains reports whether pattern occurs in text under m's case rule.
func (m Matcher) Contains(text, pattern []byte) bool {
	return contains(text, pattern, m.IgnoreCase)
}

// MatchFields is the record-level predicate over raw field slots:
// label OR value, never the two joined together.
func (m Matcher) MatchFields(label, value, pattern []byte) bool {
	return contains(label, pattern, m.IgnoreCase) || contains(value, pattern, m.IgnoreCase)
}

// Match applies the record-level predicate to r.
func (m Matcher) Match(r *Record, pattern []byte) bool {
	return m.MatchFields(r.Label[:], r.Value[:], pattern)
}

// Contains reports whether pattern occurs as a contiguous substring of text.
func Contains(text, pattern []byte) bool {
	return contains(text, pattern, false)
}

// ContainsFold is Contains with ASCII case folding.
func ContainsFold(text, pattern []byte) bool {
	return contains(text, pattern, true)
}

func contains(text, pattern []byte, fold bool) bool {
	if terminated(pattern, 0) {
		return true
	}

	for i := 0; !terminated(text, i); i++ {
		j := 0
		for !terminated(pattern, j) {
			if terminated(text, i+j) {
				// text ran out before the pattern did; no later offset can fit
				return false
			}
			if !sameByte(text[i+j], pattern[j], fold) {
				break
			}
			j++
		}
		if terminated(pattern, j) {
			return true
		}
	}

	return false
}

func terminated(b []byte, i int) bool {
	return i >= len(b) || b[i] == 0
}

func sameByte(a, b byte, fold bool) bool {
	if a == b {
		return true
	}
	if !fold {
		return false
	}
	return lowerASCII(a) == lowerASCII(b)
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
