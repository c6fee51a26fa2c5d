package segment

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/johns/daylog/internal/config"
)

// GroupEvent is one observation's residual text on one surface, after
// within-segment boilerplate has been lifted out.
type GroupEvent struct {
	ObservationID string
	TS            string
	Time          time.Time
	Primary       bool
	Text          string
}

// SurfaceGroup holds one surface's recurring lines and per-observation
// residuals within a segment.
type SurfaceGroup struct {
	Surface     int
	CommonTexts []string
	Events      []GroupEvent
}

// Group is the per-segment, per-surface view consumed by the hour aggregator.
type Group struct {
	SegmentID int
	Key       Key
	StartTS   string
	EndTS     string
	Surfaces  []SurfaceGroup
}

var (
	sentenceSplitRE = regexp.MustCompile(`(?:[。.!?！？])\s+`)
	dedupeStripRE   = regexp.MustCompile(`["'“”‘’（）()【】\[\]<>]|[、。.!?！？・|•▶→]+`)
)

// splitCandidates breaks a surface blob into normalized candidate lines.
// Bullet-ish separators become sentence ends first so recognizer output that
// runs everything together still splits.
func splitCandidates(text string) []string {
	t := strings.Join(strings.Fields(text), " ")
	if t == "" {
		return nil
	}
	for _, sep := range []string{"▶", "→", "・", "|", "•"} {
		t = strings.ReplaceAll(t, sep, "。")
	}
	parts := sentenceSplitRE.Split(t, -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		for _, w := range strings.Fields(t) {
			out = append(out, w)
		}
	}
	return out
}

// NormalizeLine is the dedupe form of a candidate line: lowercased, quotes
// and terminal punctuation stripped, whitespace removed.
func NormalizeLine(s string) string {
	t := strings.ToLower(strings.TrimSpace(strings.Join(strings.Fields(s), " ")))
	if t == "" {
		return ""
	}
	t = dedupeStripRE.ReplaceAllString(t, "")
	t = strings.Join(strings.Fields(t), "")
	// Long recognizer blocks differ only in their tails; a prefix is enough
	// identity to stop tiny diffs from exploding variants.
	r := []rune(t)
	if len(r) > 240 {
		t = string(r[:240])
	}
	return t
}

// Groups re-groups the fold trace per (segment, surface): lines recurring in
// at least minCount observations become the surface's CommonTexts, and each
// observation keeps only its residual lines (first sentence retained as a
// fallback when everything was common).
func Groups(traces []Trace, heur config.HeuristicsConfig) []Group {
	minCount := heur.CommonTextMinCount
	if minCount <= 0 {
		minCount = 2
	}
	maxCommon := heur.CommonTextCap
	if maxCommon <= 0 {
		maxCommon = 20
	}

	type surfaceAcc struct {
		counts  map[string]int
		example map[string]string
		order   []string
	}
	type segAcc struct {
		key      Key
		startTS  string
		endTS    string
		start    time.Time
		end      time.Time
		traces   []Trace
		surfaces map[int]*surfaceAcc
		surfOrd  []int
	}

	bySeg := make(map[int]*segAcc)
	var segOrder []int
	for _, tr := range traces {
		acc := bySeg[tr.SegmentID]
		if acc == nil {
			acc = &segAcc{
				key:      tr.Key,
				startTS:  tr.TS,
				endTS:    tr.TS,
				start:    tr.Time,
				end:      tr.Time,
				surfaces: make(map[int]*surfaceAcc),
			}
			bySeg[tr.SegmentID] = acc
			segOrder = append(segOrder, tr.SegmentID)
		}
		if !tr.Time.IsZero() {
			if acc.start.IsZero() || tr.Time.Before(acc.start) {
				acc.start = tr.Time
				acc.startTS = tr.TS
			}
			if acc.end.IsZero() || tr.Time.After(acc.end) {
				acc.end = tr.Time
				acc.endTS = tr.TS
			}
		}
		acc.traces = append(acc.traces, tr)

		for _, st := range tr.Surfaces {
			if strings.TrimSpace(st.Text) == "" {
				continue
			}
			sa := acc.surfaces[st.Surface]
			if sa == nil {
				sa = &surfaceAcc{counts: make(map[string]int), example: make(map[string]string)}
				acc.surfaces[st.Surface] = sa
				acc.surfOrd = append(acc.surfOrd, st.Surface)
			}
			// Count each normalized line once per observation so a single
			// busy screen cannot inflate frequency on its own.
			seen := make(map[string]bool)
			for _, cand := range splitCandidates(st.Text) {
				norm := NormalizeLine(cand)
				if norm == "" || seen[norm] {
					continue
				}
				seen[norm] = true
				if sa.counts[norm] == 0 {
					sa.order = append(sa.order, norm)
				}
				sa.counts[norm]++
				if _, ok := sa.example[norm]; !ok {
					sa.example[norm] = cand
				}
			}
		}
	}

	sort.Ints(segOrder)

	var out []Group
	for _, sid := range segOrder {
		acc := bySeg[sid]
		g := Group{
			SegmentID: sid,
			Key:       acc.key,
			StartTS:   acc.startTS,
			EndTS:     acc.endTS,
		}
		for _, surf := range acc.surfOrd {
			sa := acc.surfaces[surf]

			common := make(map[string]bool)
			ranked := append([]string(nil), sa.order...)
			sort.SliceStable(ranked, func(i, j int) bool {
				return sa.counts[ranked[i]] > sa.counts[ranked[j]]
			})
			var commonTexts []string
			for _, norm := range ranked {
				if sa.counts[norm] < minCount {
					continue
				}
				common[norm] = true
				if len(commonTexts) < maxCommon {
					commonTexts = append(commonTexts, sa.example[norm])
				}
			}

			seenGlobal := make(map[string]bool)
			var events []GroupEvent
			for _, tr := range acc.traces {
				var st *SurfaceTrace
				for i := range tr.Surfaces {
					if tr.Surfaces[i].Surface == surf {
						st = &tr.Surfaces[i]
						break
					}
				}
				if st == nil || strings.TrimSpace(st.Text) == "" {
					continue
				}
				sentences := splitCandidates(st.Text)
				var fresh []string
				for _, s := range sentences {
					norm := NormalizeLine(s)
					if norm == "" || common[norm] || seenGlobal[norm] {
						continue
					}
					seenGlobal[norm] = true
					fresh = append(fresh, s)
				}
				if len(fresh) == 0 && len(sentences) > 0 {
					// Keep something so the timeline shows the hour was not
					// blank even when every line was boilerplate.
					fresh = []string{sentences[0]}
					if norm := NormalizeLine(sentences[0]); norm != "" {
						seenGlobal[norm] = true
					}
				}
				if len(fresh) == 0 {
					continue
				}
				events = append(events, GroupEvent{
					ObservationID: tr.ObservationID,
					TS:            tr.TS,
					Time:          tr.Time,
					Primary:       st.Primary,
					Text:          strings.Join(fresh, " / "),
				})
			}

			if len(events) > 0 || len(commonTexts) > 0 {
				g.Surfaces = append(g.Surfaces, SurfaceGroup{
					Surface:     surf,
					CommonTexts: commonTexts,
					Events:      events,
				})
			}
		}
		out = append(out, g)
	}
	return out
}
