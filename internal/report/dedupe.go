package report

import (
	"strings"
	"unicode"
)

const minSubstringLen = 12

// normalizeProse is the comparison form for near-duplicate detection:
// case-folded with whitespace and punctuation removed.
func normalizeProse(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// nearDuplicate reports whether two prose strings say the same thing:
// identical after normalization, one containing the other past a minimum
// length, or similar beyond the threshold.
func nearDuplicate(a, b string, threshold float64) bool {
	na, nb := normalizeProse(a), normalizeProse(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) >= minSubstringLen && strings.Contains(longer, shorter) {
		return true
	}
	return similarity(na, nb) >= threshold
}

// similarity is 2*LCS/(len(a)+len(b)) over runes, clamped to short inputs so
// pathological recognizer blobs cannot blow the quadratic up.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	const maxLen = 400
	if len(ra) > maxLen {
		ra = ra[:maxLen]
	}
	if len(rb) > maxLen {
		rb = rb[:maxLen]
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}
