package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/config"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/gribidx"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/logging"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/pipeline"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/s3sync"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/scheduler"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/store"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/transpose"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(cfg *config.Config) error {
	d := cfg.Domain
	logger := logging.New(logging.Options{FilePath: filepath.Join(d.DownloadDirectory, "..", "ingest.log")})

	if cfg.HasTimeInterval {
		return runBackfill(cfg, logger)
	}

	runTime := cfg.Run
	if runTime.IsZero() {
		runTime = currentCycle(d)
	}
	return runOnce(cfg, runTime, logger)
}

// runBackfill repeats runOnce for every run the domain's normal cadence
// would have produced between --timeinterval's FROM and TO dates
// (inclusive), per spec.md §6 and SPEC_FULL.md §4.10. Each run is still
// bounded by its own deadline and is independently --skip-existing safe;
// a failed run aborts the whole backfill rather than silently skipping
// ahead, matching the single-run CLI's fail-fast contract.
func runBackfill(cfg *config.Config, logger *log.Logger) error {
	d := cfg.Domain
	cycleHours := 24
	if d.RunsPerDay > 0 {
		cycleHours = 24 / d.RunsPerDay
	}

	from, to := cfg.TimeIntervalFrom, cfg.TimeIntervalTo
	logger.Printf("download: backfill domain=%s from=%s to=%s", d.Name, from.Format("2006-01-02"), to.Format("2006-01-02"))

	for _, t := range backfillRunTimes(from, to, cycleHours) {
		if err := runOnce(cfg, t, logger); err != nil {
			return fmt.Errorf("backfill run %s: %w", t.Format(time.RFC3339), err)
		}
	}
	return nil
}

// backfillRunTimes enumerates every run time at the domain's cadence
// between from and to inclusive, both taken as whole days: the first run
// starts at 00:00 UTC on from's date, stepping by cycleHours until the
// last run time on to's date.
func backfillRunTimes(from, to time.Time, cycleHours int) []time.Time {
	if cycleHours <= 0 {
		cycleHours = 24
	}
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)

	var times []time.Time
	for t := start; !t.After(end); t = t.Add(time.Duration(cycleHours) * time.Hour) {
		times = append(times, t)
	}
	return times
}

// runOnce executes one complete ingest run (scheduler -> transpose ->
// optional cleanup/S3 sync) for a single run time.
func runOnce(cfg *config.Config, runTime time.Time, logger *log.Logger) error {
	d := cfg.Domain
	logger.Printf("download: domain=%s run=%s", d.Name, runTime.Format(time.RFC3339))

	deadline := time.Duration(d.DeadlineHours*float64(time.Hour)) + 2*time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	if err := os.MkdirAll(d.DownloadDirectory, 0o755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	pl, err := pipeline.New(d)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	var onlyVariables map[string]bool
	if len(cfg.OnlyVariables) > 0 {
		onlyVariables = make(map[string]bool, len(cfg.OnlyVariables))
		for _, tag := range cfg.OnlyVariables {
			onlyVariables[tag] = true
		}
	}

	sched := &scheduler.Scheduler{
		Domain:        d,
		Client:        gribidx.New(),
		Pipeline:      pl,
		DownloadDir:   d.DownloadDirectory,
		Concurrent:    cfg.Concurrent,
		SkipExisting:  cfg.SkipExisting,
		OnlyVariables: onlyVariables,
		UpperLevel:    cfg.UpperLevel,
		SurfaceLevel:  cfg.SurfaceLevel,
		SecondFlush:   cfg.SecondFlush,
		Logger:        logger,
	}

	maxForecastHour := -1
	if cfg.HasMaxForecastHr {
		maxForecastHour = cfg.MaxForecastHour
	}

	result, err := sched.RunOnce(ctx, runTime, maxForecastHour)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	logger.Printf("download: %d space file(s) ready for transpose", len(result.Handles))

	if d.Family == catalogue.GFS025Ensemble || d.Family == catalogue.GFS05Ensemble {
		ensembleHandles, err := runEnsembleAggregation(ctx, d, sched.Client, runTime, maxForecastHour, cfg.SecondFlush, cfg.SkipExisting, d.DownloadDirectory)
		if err != nil {
			return fmt.Errorf("ensemble aggregator: %w", err)
		}
		logger.Printf("download: %d precipitation_probability space file(s) from ensemble aggregator", len(ensembleHandles))
		result.Handles = append(result.Handles, ensembleHandles...)
	}

	cs := store.New(d.ColumnStoreRoot)
	if err := transpose.Run(ctx, d, cs, result.Handles, runTime, cfg.Concurrent); err != nil {
		return fmt.Errorf("transpose: %w", err)
	}
	logger.Printf("download: transpose complete")

	if !cfg.KeepSpaceFiles {
		for _, h := range result.Handles {
			if err := h.Remove(); err != nil {
				logger.Printf("download: removing space file %s: %v", h.Path, err)
			}
		}
	}

	if cfg.UploadS3Bucket != "" {
		syncer, err := s3sync.New(ctx, cfg.UploadS3Bucket, logger)
		if err != nil {
			return fmt.Errorf("s3sync: %w", err)
		}
		syncer.SyncFiles(ctx, chunkPaths(d.ColumnStoreRoot))
	}

	return nil
}

// runEnsembleAggregation drives the Ensemble Probability Aggregator
// (spec.md §4.7) across every forecast hour of this run: it fetches all
// members' cumulative APCP and produces one precipitation_probability
// space file per hour. Hours are processed strictly in run order (not
// fanned out) since the aggregator's deaccumulation state depends on
// having just seen the immediately preceding hour.
func runEnsembleAggregation(ctx context.Context, d *catalogue.Domain, client *gribidx.Client, run time.Time, maxForecastHour int, secondFlush, skipExisting bool, downloadDir string) ([]*store.SpaceFileHandle, error) {
	hours := d.ForecastHours(run.Hour(), secondFlush)
	if maxForecastHour >= 0 {
		bounded := hours[:0]
		for _, h := range hours {
			if h <= maxForecastHour {
				bounded = append(bounded, h)
			}
		}
		hours = bounded
	}

	apcp := catalogue.Surf("precipitation_probability")
	urlFor := func(member, hour int) string { return d.ForecastURL(run, hour, member) }
	agg := pipeline.NewEnsembleAggregator(d)

	var handles []*store.SpaceFileHandle
	for _, h := range hours {
		if h == 0 && apcp.SkipHour0(d) {
			continue
		}

		if skipExisting {
			if handle, ok := store.Exists(downloadDir, apcp, h, 0, ""); ok {
				handles = append(handles, handle)
				continue
			}
		}

		// NCEP reports GEFS APCP as a running total from the start of the
		// forecast, not a per-window bucket, so the selector always starts
		// at 0; EnsembleAggregator.ProcessHour differences it down to the
		// window ending at h itself.
		selector := fmt.Sprintf("0-%d hour acc fcst", h)
		frame, err := agg.ProcessHour(ctx, client, urlFor, h, selector)
		if err != nil {
			return nil, fmt.Errorf("hour %d: %w", h, err)
		}

		handle, err := store.WriteSpaceFrame(downloadDir, apcp, h, 0, "", frame)
		if err != nil {
			return nil, fmt.Errorf("hour %d: %w", h, err)
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

// currentCycle rounds the current UTC time down to the start of the
// domain's current run cycle (which may still be in progress), the way
// the teacher's getCurrentCycle does for its one hardcoded GFS domain,
// generalised across run schedules.
func currentCycle(d *catalogue.Domain) time.Time {
	now := time.Now().UTC()
	if d.RunsPerDay <= 0 {
		return now.Truncate(time.Hour)
	}
	cycleHours := 24 / d.RunsPerDay
	cycle := (now.Hour() / cycleHours) * cycleHours
	return time.Date(now.Year(), now.Month(), now.Day(), cycle, 0, 0, 0, time.UTC)
}

// chunkPaths lists every on-disk column-store chunk file under root, for
// handing to the S3 syncer after a run.
func chunkPaths(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(root, e.Name()))
	}
	return paths
}
