package grading

import (
	"strings"
	"unicode"
)

type textMatch int

const (
	noMatch textMatch = iota
	nearMatch
	exactMatch
)

// minFuzzyKeyLen keeps short keys ("cell", "NaCl") from being matched by
// their one-letter neighbours.
const minFuzzyKeyLen = 5

// matchFreeText compares a free-text response against every accepted key
// and returns the best outcome. maxEdit <= 0 disables near matches.
func matchFreeText(keys []string, response string, maxEdit int) textMatch {
	resp := []rune(foldText(response))
	if len(resp) == 0 {
		return noMatch
	}
	best := noMatch
	for _, k := range keys {
		key := []rune(foldText(k))
		if len(key) == 0 {
			continue
		}
		if string(key) == string(resp) {
			return exactMatch
		}
		if maxEdit > 0 && len(key) >= minFuzzyKeyLen && withinEdits(key, resp, maxEdit) {
			best = nearMatch
		}
	}
	return best
}

// foldText lowercases, treats dashes as word breaks, drops other
// punctuation and collapses whitespace. A '.' or ',' between two digits
// survives as '.' so "3.5" and "35" stay distinct.
func foldText(s string) string {
	rs := []rune(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(rs))
	space := false
	for i, r := range rs {
		switch {
		case unicode.IsSpace(r), unicode.Is(unicode.Pd, r):
			space = true
		case (r == '.' || r == ',') && digitAt(rs, i-1) && digitAt(rs, i+1):
			b.WriteRune('.')
		case unicode.IsPunct(r):
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func digitAt(rs []rune, i int) bool { return i >= 0 && i < len(rs) && unicode.IsDigit(rs[i]) }

// withinEdits reports whether a and b are at most k single-rune edits
// apart. It gives up as soon as a whole row of the distance table exceeds k.
func withinEdits(a, b []rune, k int) bool {
	if d := len(a) - len(b); d > k || -d > k {
		return false
	}
	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(a); i++ {
		diag := row[0]
		row[0] = i
		best := row[0]
		for j := 1; j <= len(b); j++ {
			up := row[j]
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			row[j] = min(up+1, row[j-1]+1, diag+cost)
			diag = up
			best = min(best, row[j])
		}
		if best > k {
			return false
		}
	}
	return row[len(b)] <= k
}
