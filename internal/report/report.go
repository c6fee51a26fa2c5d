// Package report assembles the final markdown document from the segment,
// hour-pack and narrative layers.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/johns/daylog/internal/config"
	"github.com/johns/daylog/internal/hourpack"
	"github.com/johns/daylog/internal/narrative"
	"github.com/johns/daylog/internal/obslog"
	"github.com/johns/daylog/internal/sanitize"
	"github.com/johns/daylog/internal/segment"
)

// jpyPerUSD is display-only; the authoritative figure stays in USD.
const jpyPerUSD = 150.0

// Data holds everything needed to render one day's report.
type Data struct {
	Date         string // YYYY-MM-DD
	RunID        string
	Observations []obslog.Observation
	Segments     []segment.Segment
	Packs        []hourpack.HourPack
	Narrative    *narrative.Outcome
}

// Title returns the document title: the day narrative's title when present.
func (d Data) Title() string {
	if d.Narrative != nil && d.Narrative.Day != nil && strings.TrimSpace(d.Narrative.Day.Title) != "" {
		return strings.TrimSpace(d.Narrative.Day.Title)
	}
	return "Daily Report"
}

// Filename derives the report file name from date and title:
// yy-mm-dd_<sanitized title>.md.
func Filename(date, title string) string {
	short := date
	if len(date) == len("2006-01-02") {
		short = date[2:]
	}
	return short + "_" + sanitizeFilename(title) + ".md"
}

func sanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	out = strings.Trim(out, "-")
	if out == "" {
		out = "report"
	}
	return out
}

// Render produces the full markdown document. The whole text passes the
// masking layer before it is returned.
func Render(d Data, heur config.HeuristicsConfig, redact config.RedactConfig) string {
	var b strings.Builder

	short := d.Date
	if len(short) == len("2006-01-02") {
		short = short[2:]
	}
	fmt.Fprintf(&b, "# %s_%s\n\n", short, d.Title())

	if d.Narrative != nil && len(d.Narrative.Degraded) > 0 {
		b.WriteString("> ⚠ Partial narrative — ")
		b.WriteString(strings.Join(d.Narrative.Degraded, "; "))
		b.WriteString("\n\n")
	}

	if len(d.Observations) == 0 {
		b.WriteString("No activity log for this date.\n")
		return sanitize.Document(b.String(), redact)
	}

	writeHeader(&b, d)
	writeUsage(&b, d)
	writeMainWork(&b, d)
	writeSegments(&b, d)
	writeAppUsage(&b, d)
	writeTimeline(&b, d, heur)

	return sanitize.Document(b.String(), redact)
}

func writeHeader(b *strings.Builder, d Data) {
	total, valid, excluded, errored := 0, 0, 0, 0
	validSec, allSec := 0, 0
	var first, last time.Time
	for _, o := range d.Observations {
		total++
		dur := o.IntervalSec
		if dur <= 0 {
			dur = 300
		}
		allSec += dur
		switch {
		case o.Error:
			errored++
		case o.Excluded:
			excluded++
		default:
			valid++
			validSec += dur
		}
		if o.Time.IsZero() {
			continue
		}
		if first.IsZero() || o.Time.Before(first) {
			first = o.Time
		}
		if last.IsZero() || o.Time.After(last) {
			last = o.Time
		}
	}

	if !first.IsZero() {
		fmt.Fprintf(b, "- Records: %s – %s\n", first.Format("15:04"), last.Format("15:04"))
	}
	fmt.Fprintf(b, "- Captures: %d total / %d valid / %d excluded / %d error\n", total, valid, excluded, errored)
	fmt.Fprintf(b, "- Active time: ~%s (valid) / ~%s (inclusive)\n", formatDuration(validSec), formatDuration(allSec))
	b.WriteString("\n")
}

func writeUsage(b *strings.Builder, d Data) {
	if d.Narrative == nil {
		return
	}
	type row struct {
		site string
		meta *narrative.Meta
	}
	rows := []row{}
	if d.Narrative.Segments != nil {
		rows = append(rows, row{"segment", &d.Narrative.Segments.Meta})
	}
	if d.Narrative.Hour != nil {
		rows = append(rows, row{"hour", &d.Narrative.Hour.Meta})
	}
	if d.Narrative.Day != nil {
		rows = append(rows, row{"day", &d.Narrative.Day.Meta})
	}
	if d.Narrative.Enrich != nil {
		rows = append(rows, row{"hour-enrich", &d.Narrative.Enrich.Meta})
	}
	if len(rows) == 0 {
		return
	}

	b.WriteString("## Narrative usage\n\n")
	b.WriteString("| Call site | Input | Cached | Output | Cost |\n")
	b.WriteString("|-----------|-------|--------|--------|------|\n")
	for _, r := range rows {
		u := r.meta.Usage
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			r.site, comma(u.Input), comma(u.Cached), comma(u.Output), costCell(r.meta.CostUSD))
	}
	tu := d.Narrative.TotalUsage()
	tc := d.Narrative.TotalCostUSD()
	fmt.Fprintf(b, "| **total** | %s | %s | %s | %s |\n",
		comma(tu.Input), comma(tu.Cached), comma(tu.Output), costCell(tc))
	if tc > 0 {
		fmt.Fprintf(b, "\n~¥%.1f at %.0f JPY/USD\n", tc*jpyPerUSD, jpyPerUSD)
	}
	b.WriteString("\n")
}

func costCell(usd float64) string {
	if usd <= 0 {
		return "—"
	}
	return fmt.Sprintf("$%.4f", usd)
}

func writeMainWork(b *strings.Builder, d Data) {
	b.WriteString("## Main work\n\n")

	if d.Narrative != nil && d.Narrative.Day != nil {
		day := d.Narrative.Day
		fmt.Fprintf(b, "%s\n\n", day.Summary)
		n := len(day.Highlights)
		if n > 5 {
			n = 5
		}
		for _, h := range day.Highlights[:n] {
			fmt.Fprintf(b, "- %s\n", h)
		}
		if n > 0 {
			b.WriteString("\n")
		}
		return
	}

	// Rule-based rollup when the day narrative is missing.
	var titles []string
	for _, p := range d.Packs {
		var title string
		if d.Narrative != nil {
			if h := d.Narrative.Hour.Hour(p.StartTS); h != nil {
				title = h.Title
			}
		}
		if title == "" {
			if labels := p.ClusterLabels(); len(labels) > 0 {
				title = labels[0]
			}
		}
		if title != "" && !contains(titles, title) {
			titles = append(titles, title)
		}
	}
	if len(titles) > 0 {
		fmt.Fprintf(b, "%s\n\n", strings.Join(titles, " → "))
	}
	for _, p := range d.Packs {
		if obs := p.Observation(); obs != "" {
			fmt.Fprintf(b, "%s\n\n", obs)
			break
		}
	}
}

func writeSegments(b *strings.Builder, d Data) {
	if d.Narrative == nil || d.Narrative.Segments == nil || len(d.Narrative.Segments.Segments) == 0 {
		return
	}
	b.WriteString("## Segments\n\n")
	for _, s := range d.Narrative.Segments.Segments {
		fmt.Fprintf(b, "- **%s** — %s\n", s.Label, s.Summary)
	}
	b.WriteString("\n")
}

func writeAppUsage(b *strings.Builder, d Data) {
	if len(d.Segments) == 0 {
		return
	}
	type appAcc struct {
		name     string
		seconds  int
		captures int
		labels   map[string]int
	}
	byApp := make(map[string]*appAcc)
	var order []string
	for _, s := range d.Segments {
		app := s.Key.App
		if app == "" {
			app = "(unknown)"
		}
		a := byApp[app]
		if a == nil {
			a = &appAcc{name: app, labels: make(map[string]int)}
			byApp[app] = a
			order = append(order, app)
		}
		a.seconds += s.DurationSec
		a.captures += s.Captures
		a.labels[s.Label] += s.DurationSec
	}

	apps := make([]*appAcc, 0, len(byApp))
	for _, name := range order {
		apps = append(apps, byApp[name])
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].seconds > apps[j].seconds })

	maxSec := apps[0].seconds
	b.WriteString("## App usage\n\n")
	b.WriteString("| App | Time | Captures | Tier | Contexts |\n")
	b.WriteString("|-----|------|----------|------|----------|\n")
	for _, a := range apps {
		fmt.Fprintf(b, "| %s | %s | %d | %s | %s |\n",
			a.name, formatDuration(a.seconds), a.captures, tier(a.seconds, maxSec), topLabels(a.labels, 2))
	}
	b.WriteString("\n")
}

// tier buckets an app's time relative to the busiest app.
func tier(sec, maxSec int) string {
	if maxSec <= 0 {
		return "low"
	}
	switch {
	case sec == maxSec:
		return "most"
	case float64(sec) >= 0.66*float64(maxSec):
		return "high"
	case float64(sec) >= 0.33*float64(maxSec):
		return "medium"
	default:
		return "low"
	}
}

func topLabels(labels map[string]int, n int) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if labels[keys[i]] != labels[keys[j]] {
			return labels[keys[i]] > labels[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return strings.Join(keys, "; ")
}

func writeTimeline(b *strings.Builder, d Data, heur config.HeuristicsConfig) {
	if len(d.Packs) == 0 {
		return
	}
	threshold := heur.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.88
	}

	b.WriteString("## Timeline\n\n")
	for _, p := range d.Packs {
		fmt.Fprintf(b, "### %s\n\n", p.Start.Format("15:04"))

		var base *narrative.HourNarrative
		var enriched *narrative.HourNarrative
		if d.Narrative != nil {
			base = d.Narrative.Hour.Hour(p.StartTS)
			enriched = d.Narrative.Enrich.Hour(p.StartTS)
		}

		title := "(unknown)"
		if base != nil && base.Title != "" {
			title = base.Title
		} else if labels := p.ClusterLabels(); len(labels) > 0 {
			title = labels[0]
		}
		fmt.Fprintf(b, "**%s** (~%s active)\n\n", title, formatDuration(p.ActiveSecEst))

		summary := ""
		if base != nil {
			summary = base.Summary
		}
		if summary == "" {
			summary = p.Observation()
		}
		if summary != "" {
			fmt.Fprintf(b, "%s\n\n", summary)
		}

		if labels := p.ClusterLabels(); len(labels) > 0 {
			n := len(labels)
			if n > 2 {
				n = 2
			}
			fmt.Fprintf(b, "Screens: %s\n\n", strings.Join(labels[:n], "; "))
		}

		if enriched != nil && enriched.Summary != "" {
			if nearDuplicate(enriched.Summary, summary, threshold) {
				b.WriteString("_Enriched reading omitted as near-identical._\n\n")
			} else {
				fmt.Fprintf(b, "Intent: %s\n\n", enriched.Summary)
			}
		}
	}
}

// Write renders and persists the report, returning its path.
func Write(dir string, d Data, heur config.HeuristicsConfig, redact config.RedactConfig) (string, error) {
	content := Render(d, heur, redact)
	path := filepath.Join(dir, Filename(d.Date, d.Title()))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func formatDuration(sec int) string {
	h := sec / 3600
	m := (sec % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// comma renders an int with thousands separators.
func comma(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, ",")
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
