package obslog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ReadDay reads all observations for a date from dir. It looks for
// <date>.jsonl first and falls back to <date>.jsonl.zst (archived days).
// A missing log is not an error: it returns an empty slice.
func ReadDay(dir, date string) ([]Observation, error) {
	plain := dir + string(os.PathSeparator) + date + ".jsonl"
	if f, err := os.Open(plain); err == nil {
		defer f.Close()
		return Read(f)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open log: %w", err)
	}

	packed := plain + ".zst"
	f, err := os.Open(packed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open archived log: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open zstd reader: %w", err)
	}
	defer dec.Close()
	return Read(dec)
}

// Read parses a JSONL observation stream. Malformed lines are skipped rather
// than failing the whole day.
func Read(r io.Reader) ([]Observation, error) {
	var out []Observation
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB max line

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var obs Observation
		if err := json.Unmarshal([]byte(line), &obs); err != nil {
			continue
		}
		if t, err := time.Parse(time.RFC3339, obs.TS); err == nil {
			obs.Time = t
		}
		out = append(out, obs)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log: %w", err)
	}
	return out, nil
}
