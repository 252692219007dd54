// Package classify implements the ordered divergence-classification
// rules of spec.md §4.5. The first matching rule wins; an empty class
// tag means "unclassified" and is what the engine treats as worth
// reporting (spec.md §9 — this direction, not its inverse, is the one
// a predecessor build got backwards).
package classify

// StripASCIIWhitespace removes every byte in {0x09, 0x0A, 0x0D, 0x20}
// from data, in order. It is used both for output-agreement set
// membership (internal/batch) and by the trailing-garbage rule below.
func StripASCIIWhitespace(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case 0x09, 0x0A, 0x0D, 0x20:
			continue
		default:
			out = append(out, b)
		}
	}
	return out
}

func isASCIIDigit(b byte) bool { return b >= '0' && b <= '9' }

// isNumberOnly reports whether input, after stripping leading and
// trailing ASCII whitespace, fully matches the JSON-number grammar
// -?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?
// An integer part of more than one digit that starts with '0' (such as
// "007") does not match.
func isNumberOnly(input []byte) bool {
	s := trimASCIIWhitespace(input)
	i := 0
	n := len(s)
	if i < n && s[i] == '-' {
		i++
	}
	start := i
	switch {
	case i < n && s[i] == '0':
		i++
	case i < n && s[i] >= '1' && s[i] <= '9':
		i++
		for i < n && isASCIIDigit(s[i]) {
			i++
		}
	default:
		return false
	}
	if i == start {
		return false
	}
	if i < n && s[i] == '.' {
		j := i + 1
		for j < n && isASCIIDigit(s[j]) {
			j++
		}
		if j == i+1 {
			return false
		}
		i = j
	}
	if i < n && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < n && (s[j] == '+' || s[j] == '-') {
			j++
		}
		start := j
		for j < n && isASCIIDigit(s[j]) {
			j++
		}
		if j == start {
			return false
		}
		i = j
	}
	return i == n
}

func trimASCIIWhitespace(s []byte) []byte {
	start := 0
	for start < len(s) && isWhitespace(s[start]) {
		start++
	}
	end := len(s)
	for end > start && isWhitespace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isWhitespace(b byte) bool {
	switch b {
	case 0x09, 0x0A, 0x0D, 0x20:
		return true
	default:
		return false
	}
}

// isStringOnly reports whether input has at least two bytes, at least
// two '"' bytes, and the second '"' is the penultimate byte of input —
// i.e. exactly one byte follows the closing quote of the leading
// quoted run.
func isStringOnly(input []byte) bool {
	if len(input) < 2 {
		return false
	}
	second := -1
	seen := 0
	for i, b := range input {
		if b != '"' {
			continue
		}
		seen++
		if seen == 2 {
			second = i
			break
		}
	}
	if second < 0 {
		return false
	}
	return second == len(input)-2
}

// containsUnicodeEscape reports whether input contains a '\' whose
// next byte is 'u', with no further validation of what follows.
func containsUnicodeEscape(input []byte) bool {
	for i := 0; i+1 < len(input); i++ {
		if input[i] == '\\' && input[i+1] == 'u' {
			return true
		}
	}
	return false
}

func countByte(s []byte, b byte) int {
	n := 0
	for _, c := range s {
		if c == b {
			n++
		}
	}
	return n
}

func anyOutput(outputs [][]byte, pred func(out []byte) bool) bool {
	for _, out := range outputs {
		if pred(out) {
			return true
		}
	}
	return false
}

// isTrailingGarbage reports whether out is a strict, proper prefix of
// the whitespace-deleted input — out is shorter, and every byte of out
// matches the next byte of the whitespace-deleted input in order. A
// same-length or longer output is an exact or unrelated comparison,
// never "trailing garbage" left behind.
func isTrailingGarbage(input, out []byte) bool {
	stripped := StripASCIIWhitespace(input)
	if len(out) == 0 || len(out) >= len(stripped) {
		return false
	}
	for i, b := range out {
		if stripped[i] != b {
			return false
		}
	}
	return true
}

// Classify applies spec.md §4.5's seven ordered rules against input
// and the set of accepted outputs, and returns the first matching
// class tag. An empty return means none of the rules fired —
// "unclassified" — the signal the engine reports on.
func Classify(input []byte, accepts [][]byte) string {
	switch {
	case isNumberOnly(input):
		return "number-only"
	case isStringOnly(input):
		return "string-only"
	case anyOutput(accepts, func(out []byte) bool { return countByte(out, ',') > countByte(input, ',') }):
		return "adds-comma"
	case containsUnicodeEscape(input):
		return "contains-unicode-escape"
	case anyOutput(accepts, func(out []byte) bool { return countByte(out, '"') < countByte(input, '"') }):
		return "adds-quotes"
	case anyOutput(accepts, func(out []byte) bool { return countByte(out, ',') < countByte(input, ',') }):
		return "removes-comma"
	case anyOutput(accepts, func(out []byte) bool { return isTrailingGarbage(input, out) }):
		return "trailing-garbage"
	default:
		return ""
	}
}
