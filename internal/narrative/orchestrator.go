package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/johns/daylog/internal/config"
	"github.com/johns/daylog/internal/hourpack"
	"github.com/johns/daylog/internal/segment"
)

// Artifact file names inside the run directory.
const (
	segmentsArtifact = "segments.json"
	hoursArtifact    = "hours.json"
	dayArtifact      = "daily.json"
	enrichArtifact   = "hour_enrich.json"
)

var errNoAPIKey = errors.New("no API key set")

// Outcome is everything the renderer needs from the narrative stage. A nil
// artifact means that granularity is disabled or degraded; Degraded lists the
// granularities that wanted a narrative and did not get one.
type Outcome struct {
	RunID    string
	Hour     *HourArtifact
	Day      *DayArtifact
	Enrich   *EnrichArtifact
	Segments *SegmentArtifact
	Degraded []string
}

// TotalUsage sums token usage across all artifacts.
func (o *Outcome) TotalUsage() Usage {
	var u Usage
	for _, m := range o.metas() {
		u.Add(m.Usage)
	}
	return u
}

// TotalCostUSD sums cost across all artifacts.
func (o *Outcome) TotalCostUSD() float64 {
	var c float64
	for _, m := range o.metas() {
		c += m.CostUSD
	}
	return c
}

func (o *Outcome) metas() []Meta {
	var ms []Meta
	if o.Segments != nil {
		ms = append(ms, o.Segments.Meta)
	}
	if o.Hour != nil {
		ms = append(ms, o.Hour.Meta)
	}
	if o.Day != nil {
		ms = append(ms, o.Day.Meta)
	}
	if o.Enrich != nil {
		ms = append(ms, o.Enrich.Meta)
	}
	return ms
}

// degradeError marks a remote failure that should degrade one granularity
// instead of aborting the run.
type degradeError struct {
	err error
}

func (e *degradeError) Error() string { return e.err.Error() }
func (e *degradeError) Unwrap() error { return e.err }

// Orchestrator drives the layered narrative calls against a run-scoped
// artifact store.
type Orchestrator struct {
	cfg    config.NarrativeConfig
	client *Client
	store  *Store
	now    func() time.Time
}

// New builds an orchestrator. The clock is settable for tests.
func New(cfg config.NarrativeConfig, client *Client, store *Store) *Orchestrator {
	return &Orchestrator{cfg: cfg, client: client, store: store, now: time.Now}
}

// Run performs all enabled narrative passes for one (date, run-id). Remote
// failures degrade their own granularity; only local artifact-write failures
// abort the run.
func (o *Orchestrator) Run(ctx context.Context, date, runID string, packs []hourpack.HourPack, segs []segment.Segment) (*Outcome, error) {
	out := &Outcome{RunID: runID}

	if o.cfg.SegmentEnabled {
		o.runSegments(ctx, date, runID, segs, out)
	}
	if o.cfg.HourEnabled {
		if err := o.runHours(ctx, date, runID, packs, out); err != nil {
			return nil, err
		}
	}
	if o.cfg.DayEnabled {
		if err := o.runDay(ctx, date, runID, packs, out); err != nil {
			return nil, err
		}
	}
	if o.cfg.HourEnrich {
		if err := o.runEnrich(ctx, date, runID, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (o *Orchestrator) meta(date, runID string, usage Usage) Meta {
	return Meta{
		Date:        date,
		RunID:       runID,
		Model:       o.cfg.Model,
		GeneratedAt: o.now().Format(time.RFC3339),
		Usage:       usage,
		CostUSD:     CostUSD(usage, o.cfg.Model),
	}
}

// callJSON performs one retried remote call and decodes the JSON content
// into payload. Every failure path here is a degrade, never an abort.
func (o *Orchestrator) callJSON(ctx context.Context, stage, system, user string, payload any) (Usage, error) {
	var usage Usage
	if !o.client.Enabled() {
		return usage, &degradeError{err: errNoAPIKey}
	}
	var content string
	err := callWithRetry(ctx, stage, o.client.BaseURL(), func() error {
		var err error
		content, usage, err = o.client.Complete(ctx, system, user)
		return err
	})
	if err != nil {
		return usage, &degradeError{err: err}
	}
	if err := decodeContent(content, payload); err != nil {
		return usage, &degradeError{err: err}
	}
	return usage, nil
}

// getArtifact runs the get-or-compute cycle for one artifact and splits
// remote failures (degrade) from local ones (abort).
func (o *Orchestrator) getArtifact(name, granularity string, out *Outcome, target any, compute func() ([]byte, error)) (bool, error) {
	data, _, err := o.store.GetOrCompute(name, compute)
	if err != nil {
		var de *degradeError
		if errors.As(err, &de) {
			log.Printf("[%s] degraded: %v", granularity, de.err)
			out.Degraded = append(out.Degraded, granularity+": "+de.err.Error())
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("decode artifact %s: %w", name, err)
	}
	return true, nil
}

func (o *Orchestrator) runSegments(ctx context.Context, date, runID string, segs []segment.Segment, out *Outcome) {
	if len(segs) == 0 && !o.store.Has(segmentsArtifact) {
		out.Degraded = append(out.Degraded, "segment: no segments")
		return
	}
	var art SegmentArtifact
	ok, err := o.getArtifact(segmentsArtifact, "segment", out, &art, func() ([]byte, error) {
		var payload segmentsJSON
		usage, err := o.callJSON(ctx, "segment-llm", segmentSystemPrompt, buildSegmentPrompt(date, segs), &payload)
		if err != nil {
			return nil, err
		}
		art = SegmentArtifact{Meta: o.meta(date, runID, usage), Segments: payload.Segments}
		return json.MarshalIndent(art, "", "  ")
	})
	// Segment narrative is optional flavor; even a local failure here is
	// worth no more than a degraded line.
	if err != nil {
		log.Printf("[segment] degraded: %v", err)
		out.Degraded = append(out.Degraded, "segment: "+err.Error())
		return
	}
	if ok {
		out.Segments = &art
	}
}

// eligibleHours applies the activity floor and the hour cap, keeping the
// busiest hours but presenting them chronologically.
func (o *Orchestrator) eligibleHours(packs []hourpack.HourPack) []hourpack.HourPack {
	var eligible []hourpack.HourPack
	for _, p := range packs {
		if p.ActiveSecEst >= o.cfg.MinActiveSeconds {
			eligible = append(eligible, p)
		}
	}
	if o.cfg.MaxHours > 0 && len(eligible) > o.cfg.MaxHours {
		sort.SliceStable(eligible, func(i, j int) bool {
			return eligible[i].ActiveSecEst > eligible[j].ActiveSecEst
		})
		eligible = eligible[:o.cfg.MaxHours]
		sort.Slice(eligible, func(i, j int) bool {
			return eligible[i].Start.Before(eligible[j].Start)
		})
	}
	return eligible
}

func (o *Orchestrator) runHours(ctx context.Context, date, runID string, packs []hourpack.HourPack, out *Outcome) error {
	eligible := o.eligibleHours(packs)
	if len(eligible) == 0 && !o.store.Has(hoursArtifact) {
		out.Degraded = append(out.Degraded, "hour: no hour met the activity floor")
		return nil
	}
	var art HourArtifact
	ok, err := o.getArtifact(hoursArtifact, "hour", out, &art, func() ([]byte, error) {
		var payload hourJSON
		usage, err := o.callJSON(ctx, "hour-llm", hourSystemPrompt, buildHourPrompt(date, eligible), &payload)
		if err != nil {
			return nil, err
		}
		art = HourArtifact{Meta: o.meta(date, runID, usage), Hours: payload.Hours}
		return json.MarshalIndent(art, "", "  ")
	})
	if err != nil {
		return err
	}
	if ok {
		out.Hour = &art
	}
	return nil
}

func (o *Orchestrator) runDay(ctx context.Context, date, runID string, packs []hourpack.HourPack, out *Outcome) error {
	if len(packs) == 0 && !o.store.Has(dayArtifact) {
		out.Degraded = append(out.Degraded, "day: no activity recorded")
		return nil
	}
	rows := dayRows(packs, out.Hour)
	var art DayArtifact
	ok, err := o.getArtifact(dayArtifact, "day", out, &art, func() ([]byte, error) {
		var payload dayJSON
		usage, err := o.callJSON(ctx, "day-llm", daySystemPrompt, buildDayPrompt(date, rows), &payload)
		if err != nil {
			return nil, err
		}
		art = DayArtifact{
			Meta:       o.meta(date, runID, usage),
			Title:      payload.Title,
			Summary:    payload.Summary,
			Highlights: payload.Highlights,
		}
		return json.MarshalIndent(art, "", "  ")
	})
	if err != nil {
		return err
	}
	if ok {
		out.Day = &art
	}
	return nil
}

// dayRows builds the rollup rows for the day prompt, preferring the hour
// narrative and falling back to raw pack content.
func dayRows(packs []hourpack.HourPack, hour *HourArtifact) []dayRow {
	rows := make([]dayRow, 0, len(packs))
	for _, p := range packs {
		row := dayRow{HourStartTS: p.StartTS, ActiveMin: p.ActiveSecEst / 60}
		if h := hour.Hour(p.StartTS); h != nil {
			row.Title = h.Title
			row.Summary = h.Summary
		} else {
			if labels := p.ClusterLabels(); len(labels) > 0 {
				row.Title = labels[0]
			} else {
				row.Title = "(unknown)"
			}
			row.Summary = p.Observation()
		}
		rows = append(rows, row)
	}
	return rows
}

func (o *Orchestrator) runEnrich(ctx context.Context, date, runID string, out *Outcome) error {
	if (out.Day == nil || out.Hour == nil) && !o.store.Has(enrichArtifact) {
		out.Degraded = append(out.Degraded, "hour-enrich: requires day and hour narratives")
		return nil
	}
	var art EnrichArtifact
	ok, err := o.getArtifact(enrichArtifact, "hour-enrich", out, &art, func() ([]byte, error) {
		var payload enrichJSON
		usage, err := o.callJSON(ctx, "enrich-llm", enrichSystemPrompt, buildEnrichPrompt(date, out.Day, out.Hour.Hours), &payload)
		if err != nil {
			return nil, err
		}
		art = EnrichArtifact{Meta: o.meta(date, runID, usage), Hours: payload.Hours}
		return json.MarshalIndent(art, "", "  ")
	})
	if err != nil {
		return err
	}
	if ok {
		out.Enrich = &art
	}
	return nil
}
