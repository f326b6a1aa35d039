package grading

import (
	"strconv"
	"strings"
	"unicode"
)

// normalize casefolds, drops punctuation and collapses whitespace.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
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

// levenshtein is the unit-cost edit distance over runes.
func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}
	row := make([]int, len(br)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(br); j++ {
			up := row[j]
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			row[j] = min(up+1, row[j-1]+1, diag+cost)
			diag = up
		}
	}
	return row[len(br)]
}

// numericKey recognises keys of the form ["3.14", "tol=0.01"] or
// ["100", "reltol=0.05"]. A bare number without a tolerance entry is graded
// as text.
func numericKey(keys []string) (tolerance, bool) {
	if len(keys) < 2 {
		return tolerance{}, false
	}
	target, ok := parseFloatLoose(keys[0])
	if !ok {
		return tolerance{}, false
	}
	t := tolerance{target: target, abs: -1, rel: -1}
	found := false
	for _, k := range keys[1:] {
		k = strings.ToLower(strings.TrimSpace(k))
		switch {
		case strings.HasPrefix(k, "tol="):
			if v, err := strconv.ParseFloat(strings.TrimPrefix(k, "tol="), 64); err == nil {
				t.abs, found = v, true
			}
		case strings.HasPrefix(k, "reltol="):
			if v, err := strconv.ParseFloat(strings.TrimPrefix(k, "reltol="), 64); err == nil {
				t.rel, found = v, true
			}
		}
	}
	return t, found
}

// parseFloatLoose accepts a number optionally followed by a unit ("9.8 m/s").
func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if f := strings.Fields(s); len(f) > 0 {
		if v, err := strconv.ParseFloat(f[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
