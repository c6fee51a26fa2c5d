package segment

import (
	"strings"
	"time"

	"github.com/johns/daylog/internal/entity"
)

// Key is the grouping identity of a segment: what was in the foreground.
type Key struct {
	App    string
	Domain string
	Title  string
}

// Label renders the key as "app / domain / title", skipping empty and
// repeated parts.
func (k Key) Label() string {
	var parts []string
	for _, p := range []string{k.App, k.Domain, k.Title} {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		dup := false
		for _, seen := range parts {
			if seen == p {
				dup = true
				break
			}
		}
		if !dup {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "(unknown)"
	}
	return strings.Join(parts, " / ")
}

// Segment is a maximal contiguous run of observations sharing a key within
// the gap threshold. Segments are recomputed each run, never persisted.
type Segment struct {
	ID             int
	Key            Key
	Start          time.Time
	End            time.Time
	DurationSec    int
	Captures       int
	Label          string
	Keywords       []string
	Snippets       []string
	ObservationIDs []string
}

// PrimarySource says which surface supplied an observation's primary text.
type PrimarySource string

const (
	PrimaryActive PrimarySource = "active"  // the flagged primary surface had text
	PrimaryPooled PrimarySource = "pooled"  // fallback to another surface's text
	PrimaryNone   PrimarySource = "none"    // no surface had text
)

// SurfaceTrace is the per-surface entity breakdown for one observation.
type SurfaceTrace struct {
	Surface  int
	Primary  bool
	Text     string
	Entities entity.Entities
}

// Trace is the per-observation resolution record emitted alongside the fold.
type Trace struct {
	ObservationID string
	TS            string
	Time          time.Time
	SegmentID     int
	Key           Key
	Surfaces      []SurfaceTrace
	PrimarySource PrimarySource
}
