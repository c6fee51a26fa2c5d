// Package hourpack re-buckets segment-level activity into calendar-hour
// packs, separating the primary-surface timeline from recurring background
// text.
package hourpack

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/johns/daylog/internal/config"
	"github.com/johns/daylog/internal/obslog"
	"github.com/johns/daylog/internal/segment"
)

// TimelineEntry is one deduplicated primary-surface observation in a cluster.
type TimelineEntry struct {
	TS        string `json:"ts"`
	SegmentID int    `json:"segment_id"`
	Text      string `json:"text"`
}

// Cluster groups one segment key's primary-surface activity within an hour.
type Cluster struct {
	Key           segment.Key     `json:"-"`
	Label         string          `json:"label"`
	SegmentIDs    []int           `json:"segment_ids"`
	ActiveSeconds int             `json:"active_seconds"`
	Timeline      []TimelineEntry `json:"timeline"`
}

// HourPack is all activity whose timestamp falls in one wall-clock hour.
type HourPack struct {
	Start        time.Time `json:"-"`
	End          time.Time `json:"-"`
	StartTS      string    `json:"hour_start_ts"`
	EndTS        string    `json:"hour_end_ts"`
	ActiveSecEst int       `json:"active_sec_est"`
	CommonTexts  []string  `json:"common_texts,omitempty"`
	Clusters     []Cluster `json:"clusters,omitempty"`
}

// Observation returns the first concrete text in the pack, for rule-based
// fallbacks when no narrative is available.
func (h HourPack) Observation() string {
	for _, c := range h.Clusters {
		for _, e := range c.Timeline {
			if t := strings.TrimSpace(e.Text); t != "" {
				return shorten(t, 80)
			}
		}
	}
	for _, t := range h.CommonTexts {
		if s := strings.TrimSpace(t); s != "" {
			return shorten(s, 80)
		}
	}
	return ""
}

// ClusterLabels returns the distinct cluster labels in rank order.
func (h HourPack) ClusterLabels() []string {
	var out []string
	for _, c := range h.Clusters {
		dup := false
		for _, seen := range out {
			if seen == c.Label {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c.Label)
		}
	}
	return out
}

func hourStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// Build produces one pack per touched hour. The active-time estimate counts
// every observation's interval, excluded and errored ones included, which is
// deliberately more inclusive than segment duration. Hours with no clusters
// or common text are still returned.
func Build(observations []obslog.Observation, groups []segment.Group, defaultIntervalSec int, heur config.HeuristicsConfig) []HourPack {
	if defaultIntervalSec <= 0 {
		defaultIntervalSec = 300
	}
	maxClusters := heur.MaxClusters
	if maxClusters <= 0 {
		maxClusters = 3
	}
	maxCommon := heur.CommonTextCap
	if maxCommon <= 0 {
		maxCommon = 20
	}

	intervalByObs := make(map[string]int, len(observations))
	for _, o := range observations {
		if o.ID == "" {
			continue
		}
		dur := o.IntervalSec
		if dur <= 0 {
			dur = defaultIntervalSec
		}
		intervalByObs[o.ID] = dur
	}

	type clusterAcc struct {
		key        segment.Key
		segmentIDs map[int]bool
		events     []segment.GroupEvent
		eventSeg   map[string]int
		activeIDs  map[string]bool
		activeSec  int
	}
	type bucket struct {
		activeSecEst int
		commonCounts map[string]int
		commonSample map[string]string
		commonSeen   map[string]bool
		clusters     map[segment.Key]*clusterAcc
	}

	buckets := make(map[time.Time]*bucket)
	getBucket := func(t time.Time) *bucket {
		hs := hourStart(t)
		b := buckets[hs]
		if b == nil {
			b = &bucket{
				commonCounts: make(map[string]int),
				commonSample: make(map[string]string),
				commonSeen:   make(map[string]bool),
				clusters:     make(map[segment.Key]*clusterAcc),
			}
			buckets[hs] = b
		}
		return b
	}

	for _, o := range observations {
		if o.Time.IsZero() {
			continue
		}
		b := getBucket(o.Time)
		dur := o.IntervalSec
		if dur <= 0 {
			dur = defaultIntervalSec
		}
		b.activeSecEst += dur
	}

	for _, g := range groups {
		for _, sg := range g.Surfaces {
			for _, ev := range sg.Events {
				if ev.Time.IsZero() {
					continue
				}
				b := getBucket(ev.Time)

				// A segment's recurring lines count once per hour per
				// (segment, surface, line), so one segment's repetition
				// cannot inflate hour-level frequency.
				for _, text := range sg.CommonTexts {
					norm := segment.NormalizeLine(text)
					if norm == "" {
						continue
					}
					seenKey := commonKey(g.SegmentID, sg.Surface, norm)
					if b.commonSeen[seenKey] {
						continue
					}
					b.commonSeen[seenKey] = true
					b.commonCounts[norm]++
					if _, ok := b.commonSample[norm]; !ok {
						b.commonSample[norm] = text
					}
				}

				// The active timeline only ever contains observations whose
				// own primary flag was set.
				if !ev.Primary {
					continue
				}
				c := b.clusters[g.Key]
				if c == nil {
					c = &clusterAcc{
						key:        g.Key,
						segmentIDs: make(map[int]bool),
						eventSeg:   make(map[string]int),
						activeIDs:  make(map[string]bool),
					}
					b.clusters[g.Key] = c
				}
				c.segmentIDs[g.SegmentID] = true
				c.events = append(c.events, ev)
				c.eventSeg[ev.ObservationID+"\x00"+ev.TS] = g.SegmentID
				if ev.ObservationID != "" && !c.activeIDs[ev.ObservationID] {
					c.activeIDs[ev.ObservationID] = true
					if dur, ok := intervalByObs[ev.ObservationID]; ok {
						c.activeSec += dur
					} else {
						c.activeSec += defaultIntervalSec
					}
				}
			}
		}
	}

	starts := make([]time.Time, 0, len(buckets))
	for hs := range buckets {
		starts = append(starts, hs)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := make([]HourPack, 0, len(starts))
	for _, hs := range starts {
		b := buckets[hs]
		end := hs.Add(59*time.Minute + 59*time.Second)

		norms := make([]string, 0, len(b.commonCounts))
		for n := range b.commonCounts {
			norms = append(norms, n)
		}
		sort.Slice(norms, func(i, j int) bool {
			if b.commonCounts[norms[i]] != b.commonCounts[norms[j]] {
				return b.commonCounts[norms[i]] > b.commonCounts[norms[j]]
			}
			if len(b.commonSample[norms[i]]) != len(b.commonSample[norms[j]]) {
				return len(b.commonSample[norms[i]]) > len(b.commonSample[norms[j]])
			}
			return norms[i] < norms[j]
		})
		var commons []string
		for _, n := range norms {
			if s := strings.TrimSpace(b.commonSample[n]); s != "" {
				commons = append(commons, s)
			}
			if len(commons) >= maxCommon {
				break
			}
		}

		clusters := make([]*clusterAcc, 0, len(b.clusters))
		for _, c := range b.clusters {
			clusters = append(clusters, c)
		}
		sort.Slice(clusters, func(i, j int) bool {
			if clusters[i].activeSec != clusters[j].activeSec {
				return clusters[i].activeSec > clusters[j].activeSec
			}
			return clusters[i].key.Label() < clusters[j].key.Label()
		})
		if len(clusters) > maxClusters {
			clusters = clusters[:maxClusters]
		}

		var clustersOut []Cluster
		for _, c := range clusters {
			sort.SliceStable(c.events, func(i, j int) bool {
				if !c.events[i].Time.Equal(c.events[j].Time) {
					return c.events[i].Time.Before(c.events[j].Time)
				}
				return c.events[i].ObservationID < c.events[j].ObservationID
			})
			seen := make(map[string]bool)
			var timeline []TimelineEntry
			for _, ev := range c.events {
				if ev.ObservationID != "" {
					if seen[ev.ObservationID] {
						continue
					}
					seen[ev.ObservationID] = true
				}
				if strings.TrimSpace(ev.Text) == "" {
					continue
				}
				timeline = append(timeline, TimelineEntry{
					TS:        ev.TS,
					SegmentID: c.eventSeg[ev.ObservationID+"\x00"+ev.TS],
					Text:      ev.Text,
				})
			}
			if len(timeline) == 0 {
				continue
			}
			ids := make([]int, 0, len(c.segmentIDs))
			for id := range c.segmentIDs {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			clustersOut = append(clustersOut, Cluster{
				Key:           c.key,
				Label:         c.key.Label(),
				SegmentIDs:    ids,
				ActiveSeconds: c.activeSec,
				Timeline:      timeline,
			})
		}

		out = append(out, HourPack{
			Start:        hs,
			End:          end,
			StartTS:      hs.Format(time.RFC3339),
			EndTS:        end.Format(time.RFC3339),
			ActiveSecEst: b.activeSecEst,
			CommonTexts:  commons,
			Clusters:     clustersOut,
		})
	}
	return out
}

func commonKey(segmentID, surface int, norm string) string {
	return strconv.Itoa(segmentID) + "\x00" + strconv.Itoa(surface) + "\x00" + norm
}

func shorten(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimRight(string(r[:max-1]), " ") + "…"
}
