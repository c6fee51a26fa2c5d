package narrative

import (
	"fmt"
	"strings"

	"github.com/johns/daylog/internal/hourpack"
	"github.com/johns/daylog/internal/segment"
)

const (
	maxPromptChars   = 24000
	maxTimelineLines = 12
)

const hourSystemPrompt = `You summarize one person's workstation activity from screen-capture text.

Respond with valid JSON only. No markdown, no explanation. Schema:
{
  "hours": [
    {"hour_start_ts": "copy from input", "title": "short noun phrase", "summary": "1-2 sentences"}
  ]
}

Rules:
- One entry per hour in the input, hour_start_ts copied verbatim.
- title: the hour's main activity as a short noun phrase.
- summary: 1-2 sentences, past tense, concrete. Mention file names, sites or
  topics visible in the text. Never invent activity not in the input.`

const daySystemPrompt = `You roll a day of per-hour workstation activity up into one narrative.

Respond with valid JSON only. No markdown, no explanation. Schema:
{
  "title": "short title for the whole day",
  "summary": "2-4 sentences on the day's arc",
  "highlights": ["up to 5 notable items", ...]
}

Rules:
- title: short, concrete, suitable as a document heading.
- summary: past tense, what the day was mostly about and how it moved.
- highlights: 0-5 specific accomplishments or notable events. Omit if none.`

const enrichSystemPrompt = `You re-read per-hour activity summaries knowing the whole day's narrative, and restate each hour's purpose in that context.

Respond with valid JSON only. No markdown, no explanation. Schema:
{
  "hours": [
    {"hour_start_ts": "copy from input", "title": "purpose-in-context title", "summary": "1 sentence"}
  ]
}

Rules:
- One entry per hour in the input, hour_start_ts copied verbatim.
- Explain what the hour contributed to the day, not what was on screen.
- If the base summary already says everything, repeat it unchanged.`

const segmentSystemPrompt = `You label contiguous work segments from a workstation activity log.

Respond with valid JSON only. No markdown, no explanation. Schema:
{
  "segments": [
    {"segment_id": 0, "label": "short activity label", "summary": "1 sentence"}
  ]
}

Rules:
- One entry per segment in the input, segment_id copied verbatim.
- label: 2-6 words naming the activity.
- summary: 1 sentence, past tense, concrete.`

func buildHourPrompt(date string, packs []hourpack.HourPack) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", date)
	for _, p := range packs {
		fmt.Fprintf(&b, "\n## Hour %s\n", p.StartTS)
		fmt.Fprintf(&b, "- Active time: ~%d min\n", p.ActiveSecEst/60)
		if labels := p.ClusterLabels(); len(labels) > 0 {
			fmt.Fprintf(&b, "- Contexts: %s\n", strings.Join(labels, "; "))
		}
		if len(p.CommonTexts) > 0 {
			n := len(p.CommonTexts)
			if n > 5 {
				n = 5
			}
			fmt.Fprintf(&b, "- Persistent on screen: %s\n", strings.Join(p.CommonTexts[:n], " / "))
		}
		for _, c := range p.Clusters {
			fmt.Fprintf(&b, "- %s:\n", c.Label)
			lines := 0
			for _, e := range c.Timeline {
				if lines >= maxTimelineLines {
					fmt.Fprintf(&b, "  - ... and %d more\n", len(c.Timeline)-lines)
					break
				}
				fmt.Fprintf(&b, "  - %s %s\n", e.TS, e.Text)
				lines++
			}
		}
	}
	return truncatePrompt(b.String(), maxPromptChars)
}

// dayRow is one hour's line in the day rollup prompt. Titles come from the
// hour narrative when available, otherwise from the raw pack.
type dayRow struct {
	HourStartTS string
	Title       string
	Summary     string
	ActiveMin   int
}

func buildDayPrompt(date string, rows []dayRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n\n## Hours\n", date)
	for _, r := range rows {
		fmt.Fprintf(&b, "- %s (~%d min): %s", r.HourStartTS, r.ActiveMin, r.Title)
		if r.Summary != "" {
			fmt.Fprintf(&b, " — %s", r.Summary)
		}
		b.WriteString("\n")
	}
	return truncatePrompt(b.String(), maxPromptChars)
}

func buildEnrichPrompt(date string, day *DayArtifact, hours []HourNarrative) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n\n## Day narrative\n", date)
	fmt.Fprintf(&b, "- Title: %s\n", day.Title)
	fmt.Fprintf(&b, "- Summary: %s\n", day.Summary)
	for _, h := range day.Highlights {
		fmt.Fprintf(&b, "- Highlight: %s\n", h)
	}
	b.WriteString("\n## Hours\n")
	for _, h := range hours {
		fmt.Fprintf(&b, "- %s: %s — %s\n", h.HourStartTS, h.Title, h.Summary)
	}
	return truncatePrompt(b.String(), maxPromptChars)
}

func buildSegmentPrompt(date string, segs []segment.Segment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n\n## Segments\n", date)
	for _, s := range segs {
		fmt.Fprintf(&b, "- id=%d %s (%d min, %d captures)\n", s.ID, s.Label, s.DurationSec/60, s.Captures)
		if len(s.Keywords) > 0 {
			fmt.Fprintf(&b, "  keywords: %s\n", strings.Join(s.Keywords, ", "))
		}
		for _, sn := range s.Snippets {
			fmt.Fprintf(&b, "  snippet: %s\n", sn)
		}
	}
	return truncatePrompt(b.String(), maxPromptChars)
}

func truncatePrompt(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	truncated := text[:maxChars]
	if idx := strings.LastIndex(truncated, "\n"); idx > maxChars/2 {
		truncated = truncated[:idx]
	}
	return truncated + "\n[...truncated]"
}
