// Package daily decides which dates need a report run: dates that failed or
// degraded earlier, yesterday when it never completed, and today once the
// day is effectively over.
package daily

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// maxRetries caps how often a stubbornly failing date is re-queued.
const maxRetries = 5

// todayCutoffHour/Minute is when today becomes eligible for its own report.
const (
	todayCutoffHour   = 23
	todayCutoffMinute = 55
)

// State is the persisted retry queue: date → attempts so far.
type State struct {
	Pending map[string]int `json:"pending"`
}

// LoadState reads the pending state; a missing file is an empty queue.
func LoadState(path string) (State, error) {
	s := State{Pending: make(map[string]int)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read daily state: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse daily state: %w", err)
	}
	if s.Pending == nil {
		s.Pending = make(map[string]int)
	}
	return s, nil
}

// Save persists the state atomically.
func (s State) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal daily state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write daily state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write daily state: %w", err)
	}
	return nil
}

// MarkComplete drops a date from the queue.
func (s State) MarkComplete(date string) {
	delete(s.Pending, date)
}

// MarkPending re-queues a date, counting the failed attempt. Returns false
// when the date has exhausted its retries and was dropped instead.
func (s State) MarkPending(date string) bool {
	s.Pending[date]++
	if s.Pending[date] >= maxRetries {
		delete(s.Pending, date)
		return false
	}
	return true
}

// Queue returns the dates to process, oldest first. isComplete reports
// whether a date already has a clean (non-degraded) report; complete dates
// are skipped and removed from the pending set.
func Queue(s State, now time.Time, isComplete func(date string) (bool, error)) ([]string, error) {
	candidates := make(map[string]bool)
	for date := range s.Pending {
		candidates[date] = true
	}

	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")
	candidates[yesterday] = true

	if now.Hour() > todayCutoffHour ||
		(now.Hour() == todayCutoffHour && now.Minute() >= todayCutoffMinute) {
		candidates[now.Format("2006-01-02")] = true
	}

	var out []string
	for date := range candidates {
		done, err := isComplete(date)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", date, err)
		}
		if done {
			s.MarkComplete(date)
			continue
		}
		out = append(out, date)
	}
	sort.Strings(out)
	return out, nil
}
