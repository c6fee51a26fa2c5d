package obslog

import "time"

// Surface is one per-display text blob attached to an observation.
type Surface struct {
	Index   int    `json:"surface"`
	Text    string `json:"text"`
	Primary bool   `json:"primary"`
}

// Observation is one point-in-time record from the append-only capture log.
// Records are immutable; this package only reads them.
type Observation struct {
	ID             string    `json:"id"`
	TS             string    `json:"ts"`
	IntervalSec    int       `json:"interval_sec"`
	App            string    `json:"app"`
	Domain         string    `json:"domain,omitempty"`
	Title          string    `json:"title,omitempty"`
	Surfaces       []Surface `json:"surfaces,omitempty"`
	Excluded       bool      `json:"excluded,omitempty"`
	ExcludedReason string    `json:"excluded_reason,omitempty"`
	Error          bool      `json:"error,omitempty"`

	// Time is TS parsed as RFC3339; zero when TS is malformed.
	Time time.Time `json:"-"`
}

// Valid reports whether the observation carries usable activity data.
func (o Observation) Valid() bool {
	return !o.Excluded && !o.Error
}

// PrimaryText returns the text of the primary surface, or "" when none is
// flagged. Each observation's own flag is authoritative; continuity across
// observations is never inferred.
func (o Observation) PrimaryText() string {
	for _, s := range o.Surfaces {
		if s.Primary {
			return s.Text
		}
	}
	return ""
}
