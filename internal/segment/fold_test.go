package segment

import (
	"fmt"
	"testing"
	"time"

	"github.com/johns/daylog/internal/config"
	"github.com/johns/daylog/internal/obslog"
)

func heur() config.HeuristicsConfig { return config.DefaultConfig().Heuristics }
func redact() config.RedactConfig   { return config.DefaultConfig().Redact }

func obsAt(id, ts, app, title string, interval int) obslog.Observation {
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
			{Index: 1, Text: "editing " + title, Primary: true},
		},
	}
}

func TestGapThreshold(t *testing.T) {
	if got := GapThreshold(300); got != 750*time.Second {
		t.Errorf("GapThreshold(300) = %v, want 750s", got)
	}
	// Floor absorbs jitter at short intervals.
	if got := GapThreshold(30); got != 120*time.Second {
		t.Errorf("GapThreshold(30) = %v, want 120s", got)
	}
	if got := GapThreshold(0); got != 750*time.Second {
		t.Errorf("GapThreshold(0) = %v, want default-derived 750s", got)
	}
}

func TestBuild_SingleSegment(t *testing.T) {
	obs := []obslog.Observation{
		obsAt("e1", "2026-02-07T09:00:00+09:00", "Editor", "main.go", 300),
		obsAt("e2", "2026-02-07T09:05:00+09:00", "Editor", "main.go", 300),
		obsAt("e3", "2026-02-07T09:10:00+09:00", "Editor", "main.go", 300),
	}
	segs, traces := Build(obs, 300, heur(), redact())
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	s := segs[0]
	if s.DurationSec != 900 {
		t.Errorf("duration = %d, want 900", s.DurationSec)
	}
	wantEnd, _ := time.Parse(time.RFC3339, "2026-02-07T09:15:00+09:00")
	if !s.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", s.End, wantEnd)
	}
	if s.Captures != 3 {
		t.Errorf("captures = %d, want 3", s.Captures)
	}
	if len(traces) != 3 {
		t.Errorf("traces = %d, want 3", len(traces))
	}
}

func TestBuild_GapSplits(t *testing.T) {
	obs := []obslog.Observation{
		obsAt("e1", "2026-02-07T09:00:00+09:00", "Editor", "main.go", 300),
		obsAt("e2", "2026-02-07T09:05:00+09:00", "Editor", "main.go", 300),
		obsAt("e3", "2026-02-07T09:10:00+09:00", "Editor", "main.go", 300),
		// 1800s gap > 750s threshold
		obsAt("e4", "2026-02-07T09:40:00+09:00", "Editor", "main.go", 300),
	}
	segs, _ := Build(obs, 300, heur(), redact())
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	wantStart, _ := time.Parse(time.RFC3339, "2026-02-07T09:40:00+09:00")
	if !segs[1].Start.Equal(wantStart) {
		t.Errorf("second segment start = %v, want %v", segs[1].Start, wantStart)
	}
}

func TestBuild_GapWithinThresholdKeeps(t *testing.T) {
	obs := []obslog.Observation{
		obsAt("e1", "2026-02-07T09:00:00+09:00", "Editor", "main.go", 300),
		// 700s < 750s threshold
		obsAt("e2", "2026-02-07T09:11:40+09:00", "Editor", "main.go", 300),
	}
	segs, _ := Build(obs, 300, heur(), redact())
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
}

func TestBuild_KeyChangeSplits(t *testing.T) {
	obs := []obslog.Observation{
		obsAt("e1", "2026-02-07T09:00:00+09:00", "Editor", "main.go", 300),
		obsAt("e2", "2026-02-07T09:05:00+09:00", "Browser", "docs", 300),
		obsAt("e3", "2026-02-07T09:10:00+09:00", "Editor", "main.go", 300),
	}
	segs, _ := Build(obs, 300, heur(), redact())
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	for i, s := range segs {
		if s.ID != i {
			t.Errorf("ids must be dense 0-based: segs[%d].ID = %d", i, s.ID)
		}
	}
}

func TestBuild_ObservationInExactlyOneSegment(t *testing.T) {
	var obs []obslog.Observation
	for i := 0; i < 10; i++ {
		app := "Editor"
		if i%3 == 0 {
			app = "Browser"
		}
		ts := fmt.Sprintf("2026-02-07T09:%02d:00+09:00", i*5)
		obs = append(obs, obsAt(fmt.Sprintf("e%d", i), ts, app, "t", 300))
	}
	segs, _ := Build(obs, 300, heur(), redact())
	seen := make(map[string]int)
	for _, s := range segs {
		for _, id := range s.ObservationIDs {
			seen[id]++
		}
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("observation %s in %d segments", id, n)
		}
	}
	if len(seen) != len(obs) {
		t.Errorf("%d observations assigned, want %d", len(seen), len(obs))
	}
}

func TestBuild_DropsExcludedErroredAndUnparseable(t *testing.T) {
	bad := obsAt("x1", "2026-02-07T09:05:00+09:00", "Editor", "main.go", 300)
	bad.Excluded = true
	errObs := obsAt("x2", "2026-02-07T09:06:00+09:00", "Editor", "main.go", 300)
	errObs.Error = true
	noTS := obsAt("x3", "2026-02-07T09:07:00+09:00", "Editor", "main.go", 300)
	noTS.Time = time.Time{}

	obs := []obslog.Observation{
		obsAt("e1", "2026-02-07T09:00:00+09:00", "Editor", "main.go", 300),
		bad, errObs, noTS,
	}
	segs, traces := Build(obs, 300, heur(), redact())
	if len(segs) != 1 || segs[0].Captures != 1 {
		t.Fatalf("only the valid observation should fold: %+v", segs)
	}
	if len(traces) != 1 {
		t.Errorf("traces = %d, want 1", len(traces))
	}
}

func TestBuild_Empty(t *testing.T) {
	segs, traces := Build(nil, 300, heur(), redact())
	if len(segs) != 0 || len(traces) != 0 {
		t.Errorf("empty input should yield empty results")
	}
}

func TestBuild_PrimarySource(t *testing.T) {
	active := obsAt("e1", "2026-02-07T09:00:00+09:00", "Editor", "main.go", 300)

	pooled := obsAt("e2", "2026-02-07T09:05:00+09:00", "Editor", "main.go", 300)
	pooled.Surfaces = []obslog.Surface{
		{Index: 1, Text: "", Primary: true},
		{Index: 2, Text: "reference docs", Primary: false},
	}

	none := obsAt("e3", "2026-02-07T09:10:00+09:00", "Editor", "main.go", 300)
	none.Surfaces = nil

	_, traces := Build([]obslog.Observation{active, pooled, none}, 300, heur(), redact())
	if len(traces) != 3 {
		t.Fatalf("traces = %d", len(traces))
	}
	if traces[0].PrimarySource != PrimaryActive {
		t.Errorf("traces[0] = %s, want active", traces[0].PrimarySource)
	}
	if traces[1].PrimarySource != PrimaryPooled {
		t.Errorf("traces[1] = %s, want pooled", traces[1].PrimarySource)
	}
	if traces[2].PrimarySource != PrimaryNone {
		t.Errorf("traces[2] = %s, want none", traces[2].PrimarySource)
	}
}

func TestKeyLabel(t *testing.T) {
	k := Key{App: "Browser", Domain: "github.com", Title: "daylog"}
	if got := k.Label(); got != "Browser / github.com / daylog" {
		t.Errorf("Label = %q", got)
	}
	if got := (Key{}).Label(); got != "(unknown)" {
		t.Errorf("empty Label = %q", got)
	}
	// Repeated parts collapse.
	k = Key{App: "github.com", Domain: "github.com"}
	if got := k.Label(); got != "github.com" {
		t.Errorf("dup Label = %q", got)
	}
}
