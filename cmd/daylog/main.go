package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/johns/daylog/internal/archive"
	"github.com/johns/daylog/internal/config"
	"github.com/johns/daylog/internal/daily"
	"github.com/johns/daylog/internal/hourpack"
	"github.com/johns/daylog/internal/narrative"
	"github.com/johns/daylog/internal/obslog"
	"github.com/johns/daylog/internal/report"
	"github.com/johns/daylog/internal/runindex"
	"github.com/johns/daylog/internal/segment"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}

	switch os.Args[1] {
	case "report":
		if len(os.Args) < 3 {
			fatal("usage: daylog report <date|today> [--run-id id]")
		}
		date := resolveDate(os.Args[2])
		runID := flagValue(os.Args[3:], "--run-id")
		path, degraded, err := runReport(cfg, date, runID)
		if err != nil {
			fatal("report %s: %v", date, err)
		}
		if degraded {
			fmt.Printf("created (partial): %s\n", path)
		} else {
			fmt.Printf("created: %s\n", path)
		}

	case "daily":
		if err := runDaily(cfg); err != nil {
			fatal("daily: %v", err)
		}

	case "runs":
		if len(os.Args) < 3 {
			fatal("usage: daylog runs <date>")
		}
		if err := listRuns(cfg, resolveDate(os.Args[2])); err != nil {
			fatal("runs: %v", err)
		}

	case "archive":
		if len(os.Args) < 3 {
			fatal("usage: daylog archive <date>")
		}
		date := resolveDate(os.Args[2])
		dest, err := archive.Compress(cfg.Paths.LogDir, date)
		if err != nil {
			fatal("archive %s: %v", date, err)
		}
		fmt.Printf("archived: %s\n", dest)

	case "version":
		fmt.Printf("daylog v%s\n", version)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

// runReport drives the full pipeline for one date. Remote narrative failures
// degrade the document; only local resource errors come back as errors.
func runReport(cfg config.Config, date, runID string) (string, bool, error) {
	obs, err := obslog.ReadDay(cfg.Paths.LogDir, date)
	if err != nil {
		return "", false, err
	}

	interval := cfg.Capture.IntervalSeconds
	segs, traces := segment.Build(obs, interval, cfg.Heuristics, cfg.Redact)
	groups := segment.Groups(traces, cfg.Heuristics)
	packs := hourpack.Build(obs, groups, interval, cfg.Heuristics)

	if runID == "" {
		var src narrative.SeqSource
		runID = src.Next(time.Now())
	}

	store, err := narrative.NewStore(cfg.RunDir(date, runID))
	if err != nil {
		return "", false, err
	}

	orch := narrative.New(cfg.Narrative, narrative.NewClient(cfg.Narrative), store)
	out, err := orch.Run(context.Background(), date, runID, packs, segs)
	if err != nil {
		return "", false, err
	}

	path, err := report.Write(store.Dir(), report.Data{
		Date:         date,
		RunID:        runID,
		Observations: obs,
		Segments:     segs,
		Packs:        packs,
		Narrative:    out,
	}, cfg.Heuristics, cfg.Redact)
	if err != nil {
		return "", false, err
	}

	degraded := len(out.Degraded) > 0
	usage := out.TotalUsage()
	idx, err := runindex.Open(runIndexPath(cfg))
	if err != nil {
		return "", false, err
	}
	defer idx.Close()
	err = idx.Record(context.Background(), runindex.Run{
		Date:         date,
		RunID:        runID,
		ReportPath:   path,
		InputTokens:  usage.Input,
		OutputTokens: usage.Output,
		CostUSD:      out.TotalCostUSD(),
		Degraded:     degraded,
	})
	if err != nil {
		return "", false, err
	}
	return path, degraded, nil
}

func runDaily(cfg config.Config) error {
	idx, err := runindex.Open(runIndexPath(cfg))
	if err != nil {
		return err
	}
	defer idx.Close()

	statePath := filepath.Join(cfg.Paths.StateDir, "daily.json")
	state, err := daily.LoadState(statePath)
	if err != nil {
		return err
	}

	isComplete := func(date string) (bool, error) {
		r, err := idx.Latest(context.Background(), date)
		if err != nil {
			return false, err
		}
		return r != nil && !r.Degraded, nil
	}

	queue, err := daily.Queue(state, time.Now(), isComplete)
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		fmt.Println("nothing to do")
		return state.Save(statePath)
	}

	for _, date := range queue {
		path, degraded, err := runReport(cfg, date, "")
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "daylog: %s failed: %v\n", date, err)
			if !state.MarkPending(date) {
				fmt.Fprintf(os.Stderr, "daylog: %s exhausted retries, dropping\n", date)
			}
		case degraded:
			fmt.Printf("%s partial: %s\n", date, path)
			if !state.MarkPending(date) {
				fmt.Fprintf(os.Stderr, "daylog: %s exhausted retries, dropping\n", date)
			}
		default:
			fmt.Printf("%s done: %s\n", date, path)
			state.MarkComplete(date)
		}
	}
	return state.Save(statePath)
}

func listRuns(cfg config.Config, date string) error {
	idx, err := runindex.Open(runIndexPath(cfg))
	if err != nil {
		return err
	}
	defer idx.Close()

	runs, err := idx.ByDate(context.Background(), date)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Printf("no runs for %s\n", date)
		return nil
	}
	for _, r := range runs {
		status := "ok"
		if r.Degraded {
			status = "partial"
		}
		fmt.Printf("%s  %-8s %-7s in=%d out=%d $%.4f  %s\n",
			r.Date, r.RunID, status, r.InputTokens, r.OutputTokens, r.CostUSD, r.ReportPath)
	}
	return nil
}

func runIndexPath(cfg config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "runs.db")
}

func resolveDate(arg string) string {
	if arg == "today" {
		return time.Now().Format("2006-01-02")
	}
	return arg
}

func usage() {
	fmt.Fprintf(os.Stderr, `daylog v%s — daily activity reports from workstation observation logs

Usage:
  daylog report <date|today> [--run-id id]   Build one day's report
  daylog daily                               Process pending and due dates
  daylog runs <date>                         List recorded runs for a date
  daylog archive <date>                      Compress a finished day's log
  daylog version                             Print version
  daylog help                                Show this help

Configuration: ~/.config/daylog/config.toml
`, version)
}

func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "daylog: "+format+"\n", args...)
	os.Exit(1)
}
