package narrative

import (
	"math"
	"testing"
	"time"
)

func TestCostUSD(t *testing.T) {
	u := Usage{Input: 1_000_000, Cached: 0, Output: 1_000_000}
	got := CostUSD(u, "gpt-5-nano")
	want := 0.05 + 0.4
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("CostUSD = %f, want %f", got, want)
	}
}

func TestCostUSD_CachedDiscount(t *testing.T) {
	full := CostUSD(Usage{Input: 1_000_000}, "gpt-5-nano")
	half := CostUSD(Usage{Input: 1_000_000, Cached: 500_000}, "gpt-5-nano")
	if half >= full {
		t.Errorf("cached tokens should cost less: %f >= %f", half, full)
	}
}

func TestCostUSD_UnknownModel(t *testing.T) {
	if got := CostUSD(Usage{Input: 1000, Output: 1000}, "mystery-model"); got != 0 {
		t.Errorf("unknown model cost = %f, want 0", got)
	}
	if Priced("mystery-model") {
		t.Error("unknown model reported as priced")
	}
	if !Priced("gpt-5-nano") {
		t.Error("known model reported as unpriced")
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{Input: 10, Cached: 2, Output: 5}
	u.Add(Usage{Input: 1, Cached: 1, Output: 1})
	if u.Input != 11 || u.Cached != 3 || u.Output != 6 {
		t.Errorf("Add: %+v", u)
	}
}

func TestSeqSource(t *testing.T) {
	now, _ := time.Parse(time.RFC3339, "2026-02-07T14:05:00+09:00")
	var s SeqSource
	if got := s.Next(now); got != "14-05-1" {
		t.Errorf("first id = %q, want 14-05-1", got)
	}
	if got := s.Next(now); got != "14-05-2" {
		t.Errorf("second id = %q, want 14-05-2", got)
	}
}

func TestFixedSource(t *testing.T) {
	s := FixedSource{ID: "09-15-1"}
	if got := s.Next(time.Now()); got != "09-15-1" {
		t.Errorf("fixed id = %q", got)
	}
}
