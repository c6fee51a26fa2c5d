package hourpack

import (
	"testing"
	"time"

	"github.com/johns/daylog/internal/config"
	"github.com/johns/daylog/internal/obslog"
	"github.com/johns/daylog/internal/segment"
)

func heur() config.HeuristicsConfig { return config.DefaultConfig().Heuristics }
func redact() config.RedactConfig   { return config.DefaultConfig().Redact }

func obsAt(id, ts, app, title, text string, interval int) obslog.Observation {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return obslog.Observation{
		ID:          id,
		TS:          ts,
		Time:        t,
		IntervalSec: interval,
		App:         app,
		Title:       title,
		Surfaces: []obslog.Surface{
			{Index: 1, Text: text, Primary: true},
		},
	}
}

func packsFor(t *testing.T, obs []obslog.Observation) []HourPack {
	t.Helper()
	_, traces := segment.Build(obs, 300, heur(), redact())
	groups := segment.Groups(traces, heur())
	return Build(obs, groups, 300, heur())
}

func TestBuild_ActiveSecondsFromAllObservations(t *testing.T) {
	obs := []obslog.Observation{
		obsAt("e1", "2026-02-07T09:00:00+09:00", "Editor", "main.go", "editing main.go", 300),
		obsAt("e2", "2026-02-07T09:05:00+09:00", "Editor", "main.go", "editing main.go more", 300),
		obsAt("e3", "2026-02-07T09:10:00+09:00", "Editor", "main.go", "still editing", 300),
	}
	packs := packsFor(t, obs)
	if len(packs) != 1 {
		t.Fatalf("expected 1 pack, got %d", len(packs))
	}
	if packs[0].ActiveSecEst < 900 {
		t.Errorf("active_sec_est = %d, want >= 900", packs[0].ActiveSecEst)
	}
}

func TestBuild_ExcludedStillCountsTime(t *testing.T) {
	locked := obsAt("e2", "2026-02-07T09:05:00+09:00", "loginwindow", "", "Lock Screen", 300)
	locked.Excluded = true
	obs := []obslog.Observation{
		obsAt("e1", "2026-02-07T09:00:00+09:00", "Editor", "main.go", "editing", 300),
		locked,
	}
	packs := packsFor(t, obs)
	if len(packs) != 1 {
		t.Fatalf("expected 1 pack, got %d", len(packs))
	}
	// The excluded capture contributes wall-clock time but no cluster events.
	if packs[0].ActiveSecEst != 600 {
		t.Errorf("active_sec_est = %d, want 600", packs[0].ActiveSecEst)
	}
	for _, c := range packs[0].Clusters {
		for _, e := range c.Timeline {
			if e.Text == "Lock Screen" {
				t.Error("excluded observation leaked into the timeline")
			}
		}
	}
}

func TestBuild_HourBoundaries(t *testing.T) {
	obs := []obslog.Observation{
		obsAt("e1", "2026-02-07T09:58:00+09:00", "Editor", "main.go", "editing", 300),
		obsAt("e2", "2026-02-07T10:02:00+09:00", "Editor", "main.go", "editing more", 300),
	}
	packs := packsFor(t, obs)
	if len(packs) != 2 {
		t.Fatalf("expected 2 packs, got %d", len(packs))
	}
	if packs[0].Start.Hour() != 9 || packs[1].Start.Hour() != 10 {
		t.Errorf("hours = %d, %d; want 9, 10", packs[0].Start.Hour(), packs[1].Start.Hour())
	}
	want := packs[0].Start.Add(59*time.Minute + 59*time.Second)
	if !packs[0].End.Equal(want) {
		t.Errorf("hour end = %v, want %v", packs[0].End, want)
	}
	if !packs[0].Start.Before(packs[1].Start) {
		t.Error("packs not in chronological order")
	}
}

func TestBuild_ClusterRankingByActiveSeconds(t *testing.T) {
	var obs []obslog.Observation
	// Editor gets 4 captures, browser 2; editor must rank first.
	times := []string{"09:00", "09:05", "09:10", "09:15"}
	for i, hm := range times {
		obs = append(obs, obsAt(
			"ed"+string(rune('a'+i)),
			"2026-02-07T"+hm+":00+09:00",
			"Editor", "main.go", "unique edit pass "+hm, 300))
	}
	obs = append(obs,
		obsAt("b1", "2026-02-07T09:20:00+09:00", "Browser", "docs", "reading encoding docs", 300),
		obsAt("b2", "2026-02-07T09:25:00+09:00", "Browser", "docs", "reading stdlib docs", 300),
	)
	packs := packsFor(t, obs)
	if len(packs) != 1 {
		t.Fatalf("expected 1 pack, got %d", len(packs))
	}
	cl := packs[0].Clusters
	if len(cl) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(cl))
	}
	if cl[0].Key.App != "Editor" {
		t.Errorf("top cluster = %q, want Editor", cl[0].Label)
	}
	if cl[0].ActiveSeconds != 1200 {
		t.Errorf("editor active seconds = %d, want 1200", cl[0].ActiveSeconds)
	}
	if cl[1].ActiveSeconds != 600 {
		t.Errorf("browser active seconds = %d, want 600", cl[1].ActiveSeconds)
	}
}

func TestBuild_ClusterCap(t *testing.T) {
	apps := []string{"A", "B", "C", "D", "E"}
	var obs []obslog.Observation
	for i, app := range apps {
		hm := time.Date(2026, 2, 7, 9, i*5, 0, 0, time.UTC)
		obs = append(obs, obsAt("o"+app, hm.Format(time.RFC3339), app, "t", "working in "+app, 300))
	}
	packs := packsFor(t, obs)
	if len(packs) != 1 {
		t.Fatalf("expected 1 pack, got %d", len(packs))
	}
	if len(packs[0].Clusters) > heur().MaxClusters {
		t.Errorf("clusters = %d, want <= %d", len(packs[0].Clusters), heur().MaxClusters)
	}
}

func TestBuild_TimelineDedupedAndOrdered(t *testing.T) {
	obs := []obslog.Observation{
		obsAt("e2", "2026-02-07T09:05:00+09:00", "Editor", "main.go", "second pass", 300),
		obsAt("e1", "2026-02-07T09:00:00+09:00", "Editor", "main.go", "first pass", 300),
	}
	packs := packsFor(t, obs)
	cl := packs[0].Clusters
	if len(cl) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(cl))
	}
	tl := cl[0].Timeline
	if len(tl) != 2 {
		t.Fatalf("timeline = %d entries, want 2", len(tl))
	}
	if tl[0].TS >= tl[1].TS {
		t.Errorf("timeline not ordered: %s >= %s", tl[0].TS, tl[1].TS)
	}
	seen := make(map[string]bool)
	for _, e := range tl {
		if seen[e.Text] {
			t.Errorf("duplicate timeline text %q", e.Text)
		}
		seen[e.Text] = true
	}
}

func TestBuild_CommonTextOncePerSegmentSurface(t *testing.T) {
	// The same boilerplate recurs in every capture of one segment; it must
	// appear once in the hour's common list, not once per capture.
	var obs []obslog.Observation
	for i := 0; i < 4; i++ {
		hm := time.Date(2026, 2, 7, 9, i*5, 0, 0, time.UTC)
		obs = append(obs, obsAt(
			"e"+string(rune('a'+i)), hm.Format(time.RFC3339),
			"Editor", "main.go",
			"Menu Bar. File Edit View. distinct work item number "+string(rune('a'+i))+".",
			300))
	}
	packs := packsFor(t, obs)
	if len(packs) != 1 {
		t.Fatalf("expected 1 pack, got %d", len(packs))
	}
	count := 0
	for _, c := range packs[0].CommonTexts {
		if segment.NormalizeLine(c) == segment.NormalizeLine("Menu Bar") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("boilerplate line appears %d times in common texts, want 1", count)
	}
}

func TestBuild_Empty(t *testing.T) {
	packs := Build(nil, nil, 300, heur())
	if len(packs) != 0 {
		t.Errorf("expected no packs, got %d", len(packs))
	}
}

func TestObservationFallback(t *testing.T) {
	obs := []obslog.Observation{
		obsAt("e1", "2026-02-07T09:00:00+09:00", "Editor", "main.go", "refactoring the fold loop", 300),
	}
	packs := packsFor(t, obs)
	if got := packs[0].Observation(); got == "" {
		t.Error("expected a non-empty fallback observation")
	}
}
