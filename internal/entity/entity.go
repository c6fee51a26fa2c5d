// Package entity pulls concrete tokens (paths, URLs, filenames) and
// representative lines out of one observation surface's raw text. Extraction
// is pure: no IO, no state, empty input yields empty output.
package entity

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/johns/daylog/internal/config"
	"github.com/johns/daylog/internal/sanitize"
)

// Entities is the bounded, ranked extraction result for one text blob.
type Entities struct {
	Keywords []string
	Snippets []string
}

// Empty reports whether nothing was extracted.
func (e Entities) Empty() bool {
	return len(e.Keywords) == 0 && len(e.Snippets) == 0
}

var (
	fileTokenRE = regexp.MustCompile(`(?i)\b[\w./~-]+\.(?:py|md|txt|json|jsonl|toml|ya?ml|sh|zsh|bash|ts|js|tsx|jsx|go|rs|swift|java|kt|rb|php)\b`)
	pathRE      = regexp.MustCompile(`(?:~|/Users|/home)?/[\w.-]+(?:/[\w.-]+)+`)
	urlRE       = regexp.MustCompile(`(?i)\b(?:https?://)?(?:[a-z0-9-]+\.)+[a-z]{2,}(?:/[\w./%~#&=?-]*)?`)
	wordRE      = regexp.MustCompile(`[A-Za-z0-9_./-]{4,}`)
	cjkRE       = regexp.MustCompile(`[\p{Hiragana}\p{Katakana}\p{Han}]{2,}`)

	furnitureRE = regexp.MustCompile(`^[•←→\-–—|/\\\s xX✕*=_~.]+$`)
	shortCodeRE = regexp.MustCompile(`^[A-Z0-9]{1,3}$`)
	numberRE    = regexp.MustCompile(`^[\d\s.,:%-]+$`)
	extensionRE = regexp.MustCompile(`\.[A-Za-z0-9]{2,5}\b`)
)

// highValueLiterals are fixed tokens that anchor a line to real work even when
// no path or URL is present.
var highValueLiterals = []string{"README.md", "2>&1", "go.mod", "Makefile"}

// knownHosts reward recognizable work destinations when scoring lines.
var knownHosts = []string{
	"github.com",
	"platform.openai.com",
	"chatgpt.com",
	"openai.com",
	"calendar.google.com",
}

// Extract produces ranked keywords and snippets from one surface's raw text.
// The text is masked first so no secret-like token or email survives into any
// downstream artifact, even if upstream redaction missed it.
func Extract(text string, heur config.HeuristicsConfig, redact config.RedactConfig) Entities {
	if strings.TrimSpace(text) == "" {
		return Entities{}
	}
	text = sanitize.Text(text, redact)

	return Entities{
		Keywords: extractKeywords(text, heur.MaxKeywords),
		Snippets: extractSnippets(text, heur.MaxSnippets),
	}
}

// extractKeywords collects concrete tokens, preferring the longest
// non-truncated candidate when matches overlap, and ranks them by frequency.
func extractKeywords(text string, limit int) []string {
	if limit <= 0 {
		limit = 8
	}
	// OCR splits tokens across line breaks; joining on single spaces lets the
	// regexes see them whole again.
	flat := strings.Join(strings.Fields(text), " ")

	var hits []string
	hits = append(hits, fileTokenRE.FindAllString(flat, -1)...)
	for _, p := range pathRE.FindAllString(flat, -1) {
		// The scheme-relative tail of a URL also looks like a path; the URL
		// pass owns anything whose first component is a domain.
		first := strings.TrimPrefix(strings.TrimPrefix(p, "~"), "/")
		if i := strings.IndexByte(first, '/'); i > 0 && strings.Contains(first[:i], ".") {
			continue
		}
		hits = append(hits, p)
	}
	for _, raw := range urlRE.FindAllString(flat, -1) {
		// Bare filenames also match the URL shape ("main.go"); the file
		// token pass already owns those.
		if !strings.Contains(raw, "/") && fileTokenRE.MatchString(raw) {
			continue
		}
		if u := canonicalURL(raw); u != "" {
			hits = append(hits, u)
		}
	}
	for _, lit := range highValueLiterals {
		if strings.Contains(flat, lit) {
			hits = append(hits, lit)
		}
	}
	if len(hits) == 0 {
		hits = append(hits, wordRE.FindAllString(flat, -1)...)
		hits = append(hits, cjkRE.FindAllString(flat, -1)...)
	}
	if len(hits) == 0 {
		return nil
	}

	hits = dropTruncatedPrefixes(hits)

	counts := make(map[string]int)
	first := make(map[string]int)
	for i, h := range hits {
		counts[h]++
		if _, ok := first[h]; !ok {
			first[h] = i
		}
	}
	uniq := make([]string, 0, len(counts))
	for k := range counts {
		uniq = append(uniq, k)
	}
	sort.Slice(uniq, func(i, j int) bool {
		if counts[uniq[i]] != counts[uniq[j]] {
			return counts[uniq[i]] > counts[uniq[j]]
		}
		return first[uniq[i]] < first[uniq[j]]
	})
	if len(uniq) > limit {
		uniq = uniq[:limit]
	}
	return uniq
}

// dropTruncatedPrefixes removes a candidate that is a strict prefix of a
// longer one with a non-trivial remainder. Line-wrapped OCR produces both the
// truncated and the full form; only the full form is evidence.
func dropTruncatedPrefixes(hits []string) []string {
	byLen := append([]string(nil), hits...)
	sort.Slice(byLen, func(i, j int) bool { return len(byLen[i]) > len(byLen[j]) })

	out := hits[:0]
	for _, h := range hits {
		truncated := false
		for _, longer := range byLen {
			if len(longer) >= len(h)+2 && strings.HasPrefix(longer, h) {
				truncated = true
				break
			}
		}
		if !truncated {
			out = append(out, h)
		}
	}
	return out
}

// canonicalURL reduces a URL-ish token to host+path, dropping query noise.
// Returns "" for tokens that do not parse as a plausible URL.
func canonicalURL(raw string) string {
	raw = strings.TrimRight(raw, ".,;:)」】>")
	s := raw
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	path := strings.TrimRight(u.EscapedPath(), "/")
	return host + path
}

// lineScore rewards concrete evidence and penalizes UI noise. Thresholds here
// are heuristic; they are exercised directly by the package tests.
func lineScore(line string) int {
	t := strings.TrimSpace(line)
	if t == "" || len(t) <= 2 {
		return -10
	}
	if furnitureRE.MatchString(t) {
		return -10
	}
	if shortCodeRE.MatchString(t) {
		return -6
	}
	if numberRE.MatchString(t) {
		return -6
	}

	s := 0
	for _, host := range knownHosts {
		if strings.Contains(t, host) {
			s += 5
			break
		}
	}
	if strings.Contains(t, "github.com") {
		s += 2
	}
	if strings.HasPrefix(t, "/") || strings.HasPrefix(t, "~/") {
		s += 4
	}
	if pathRE.MatchString(t) {
		s += 3
	}
	if extensionRE.MatchString(t) {
		s += 2
	}
	for _, lit := range highValueLiterals {
		if strings.Contains(t, lit) {
			s += 2
			break
		}
	}
	if cjkRE.MatchString(t) {
		s += 2
	}

	if strings.Count(t, "x") >= 6 || strings.Count(t, "✕") >= 3 {
		s -= 4
	}
	if len(t) > 140 {
		s -= 2
	}
	return s
}

// extractSnippets keeps the top-N distinct lines by score, falling back to the
// first non-noise line when nothing scores positively.
func extractSnippets(text string, limit int) []string {
	if limit <= 0 {
		limit = 3
	}

	type scored struct {
		line  string
		score int
		order int
	}
	var candidates []scored
	var fallback string
	seen := make(map[string]bool)

	for i, raw := range strings.Split(text, "\n") {
		line := shorten(raw, 120)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		sc := lineScore(line)
		if sc > -6 && fallback == "" {
			fallback = line
		}
		if sc > 0 {
			candidates = append(candidates, scored{line, sc, i})
		}
	}

	if len(candidates) == 0 {
		if fallback == "" {
			return nil
		}
		return []string{fallback}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].order < candidates[j].order
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.line
	}
	return out
}

// shorten collapses whitespace and truncates to max runes with an ellipsis.
func shorten(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimRight(string(r[:max-1]), " ") + "…"
}
