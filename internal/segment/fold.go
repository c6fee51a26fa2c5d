// Package segment folds a day's time-ordered observations into contiguous
// activity segments and emits a per-observation trace for later aggregation.
package segment

import (
	"sort"
	"strings"
	"time"

	"github.com/johns/daylog/internal/config"
	"github.com/johns/daylog/internal/entity"
	"github.com/johns/daylog/internal/obslog"
)

// GapThreshold returns the idle gap that splits two same-key observations
// into different segments: generous enough to absorb sampling jitter, small
// enough to split real breaks.
func GapThreshold(intervalSec int) time.Duration {
	if intervalSec <= 0 {
		intervalSec = 300
	}
	gap := time.Duration(float64(intervalSec)*2.5) * time.Second
	if gap < 120*time.Second {
		gap = 120 * time.Second
	}
	return gap
}

// Build folds valid observations into segments. Excluded, errored and
// timestamp-less observations are dropped first. It never fails: zero usable
// observations yield empty results.
func Build(observations []obslog.Observation, defaultIntervalSec int, heur config.HeuristicsConfig, redact config.RedactConfig) ([]Segment, []Trace) {
	if defaultIntervalSec <= 0 {
		defaultIntervalSec = 300
	}
	gap := GapThreshold(defaultIntervalSec)

	var usable []obslog.Observation
	for _, o := range observations {
		if o.Valid() && !o.Time.IsZero() {
			usable = append(usable, o)
		}
	}
	sort.SliceStable(usable, func(i, j int) bool { return usable[i].Time.Before(usable[j].Time) })

	type open struct {
		key      Key
		start    time.Time
		last     time.Time
		lastDur  int
		duration int
		captures int
		keywords map[string]int
		kwOrder  []string
		snippets map[string]int
		snOrder  []string
		obsIDs   []string
	}

	var segs []*open
	var cur *open
	assign := make([]int, len(usable))

	for i, o := range usable {
		dur := o.IntervalSec
		if dur <= 0 {
			dur = defaultIntervalSec
		}
		key := Key{
			App:    strings.TrimSpace(o.App),
			Domain: strings.TrimSpace(o.Domain),
			Title:  shorten(o.Title, 80),
		}

		if cur == nil || key != cur.key || o.Time.Sub(cur.last) > gap {
			cur = &open{
				key:      key,
				start:    o.Time,
				keywords: make(map[string]int),
				snippets: make(map[string]int),
			}
			segs = append(segs, cur)
		}
		assign[i] = len(segs) - 1
		cur.last = o.Time
		cur.lastDur = dur
		cur.duration += dur
		cur.captures++
		cur.obsIDs = append(cur.obsIDs, o.ID)
		for _, s := range o.Surfaces {
			ents := entity.Extract(s.Text, heur, redact)
			for _, k := range ents.Keywords {
				if cur.keywords[k] == 0 {
					cur.kwOrder = append(cur.kwOrder, k)
				}
				cur.keywords[k]++
			}
			for _, sn := range ents.Snippets {
				if cur.snippets[sn] == 0 {
					cur.snOrder = append(cur.snOrder, sn)
				}
				cur.snippets[sn]++
			}
		}
	}

	out := make([]Segment, 0, len(segs))
	for i, s := range segs {
		out = append(out, Segment{
			ID:             i,
			Key:            s.key,
			Start:          s.start,
			End:            s.last.Add(time.Duration(s.lastDur) * time.Second),
			DurationSec:    s.duration,
			Captures:       s.captures,
			Label:          s.key.Label(),
			Keywords:       topByCount(s.keywords, s.kwOrder, heur.MaxKeywords),
			Snippets:       topByCount(s.snippets, s.snOrder, heur.MaxSnippets),
			ObservationIDs: s.obsIDs,
		})
	}

	traces := buildTraces(usable, assign, out, heur, redact)
	return out, traces
}

// buildTraces records, for each usable observation, its segment resolution,
// the per-surface entity breakdown and which surface supplied primary text.
func buildTraces(usable []obslog.Observation, assign []int, segs []Segment, heur config.HeuristicsConfig, redact config.RedactConfig) []Trace {
	traces := make([]Trace, 0, len(usable))
	for i, o := range usable {
		sid := assign[i]
		tr := Trace{
			ObservationID: o.ID,
			TS:            o.TS,
			Time:          o.Time,
			SegmentID:     sid,
			Key:           segs[sid].Key,
			PrimarySource: PrimaryNone,
		}
		for _, s := range o.Surfaces {
			tr.Surfaces = append(tr.Surfaces, SurfaceTrace{
				Surface:  s.Index,
				Primary:  s.Primary,
				Text:     s.Text,
				Entities: entity.Extract(s.Text, heur, redact),
			})
			if s.Primary && strings.TrimSpace(s.Text) != "" {
				tr.PrimarySource = PrimaryActive
			}
		}
		if tr.PrimarySource == PrimaryNone {
			for _, s := range o.Surfaces {
				if strings.TrimSpace(s.Text) != "" {
					tr.PrimarySource = PrimaryPooled
					break
				}
			}
		}
		traces = append(traces, tr)
	}
	return traces
}

// topByCount ranks map keys by count descending, first-seen order as the tie
// break, capped at limit.
func topByCount(counts map[string]int, order []string, limit int) []string {
	if limit <= 0 || len(counts) == 0 {
		return nil
	}
	ranked := append([]string(nil), order...)
	pos := make(map[string]int, len(order))
	for i, k := range order {
		pos[k] = i
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return pos[ranked[i]] < pos[ranked[j]]
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func shorten(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimRight(string(r[:max-1]), " ") + "…"
}
