// Package scheduler implements the Download Scheduler from spec.md §4.5:
// for each forecast hour, member, and variable, it resolves a GRIB2 URL,
// invokes the GRIB Index Client, and hands each decoded frame to the
// Semantic Pipeline before persisting it as a space file.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/gribidx"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/pipeline"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/store"
)

// Scheduler drives one ingest run for a single domain.
type Scheduler struct {
	Domain        *catalogue.Domain
	Client        *gribidx.Client
	Pipeline      *pipeline.Pipeline
	DownloadDir   string
	Concurrent    int
	SkipExisting  bool
	OnlyVariables map[string]bool // nil means "all variables"
	UpperLevel    bool
	SurfaceLevel  bool
	SecondFlush   bool
	Logger        *log.Logger
}

// Result collects every space-file handle produced (or skipped-as-already-
// present) during one run, ready for the Transposer.
type Result struct {
	Handles []*store.SpaceFileHandle
}

// RunOnce executes the scheduler contract for one run starting at run,
// bounded by maxForecastHour if >= 0.
func (s *Scheduler) RunOnce(ctx context.Context, run time.Time, maxForecastHour int) (*Result, error) {
	hours := s.Domain.ForecastHours(run.Hour(), s.SecondFlush)
	if maxForecastHour >= 0 {
		bounded := hours[:0]
		for _, h := range hours {
			if h <= maxForecastHour {
				bounded = append(bounded, h)
			}
		}
		hours = bounded
	}

	var (
		mu      sync.Mutex
		handles []*store.SpaceFileHandle
	)

	for _, h := range hours {
		eg, egctx := errgroup.WithContext(ctx)
		eg.SetLimit(s.Concurrent)

		for m := 0; m < s.Domain.EnsembleMembers(); m++ {
			m := m
			eg.Go(func() error {
				hh, err := s.processHourMember(egctx, run, h, m)
				if err != nil {
					return fmt.Errorf("hour %d member %d: %w", h, m, err)
				}
				mu.Lock()
				handles = append(handles, hh...)
				mu.Unlock()
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return nil, fmt.Errorf("scheduler: %w", err)
		}
	}

	return &Result{Handles: handles}, nil
}

// selectedVariables applies the --only-variables/--upper-level/
// --surface-level/skip-hour-0 filters to the domain's catalogue-ordered
// variable list, preserving prerequisite order.
func (s *Scheduler) selectedVariables(h int) []catalogue.Variable {
	var out []catalogue.Variable
	for _, v := range s.Domain.Variables() {
		if s.OnlyVariables != nil && !s.OnlyVariables[v.Tag] {
			continue
		}
		if s.UpperLevel && v.Kind != catalogue.Pressure {
			continue
		}
		if s.SurfaceLevel && v.Kind != catalogue.Surface {
			continue
		}
		if h == 0 && v.SkipHour0(s.Domain) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// processHourMember runs one (forecast hour, member) pass: resolve the
// URL, fetch+decode the selected variables in catalogue order, run each
// through the Semantic Pipeline, and persist a space file per variable
// that isn't cache-only. HRRR's 15-minute domain expands into four
// sub-timestep passes per hour instead of one.
func (s *Scheduler) processHourMember(ctx context.Context, run time.Time, h, member int) ([]*store.SpaceFileHandle, error) {
	if s.Domain.Family == catalogue.HRRR15min {
		return s.processHRRR15minHour(ctx, run, h, member)
	}

	vars := s.selectedVariables(h)
	if len(vars) == 0 {
		return nil, nil
	}

	validTime := run.Add(time.Duration(h) * time.Hour)
	return s.fetchAndPersist(ctx, run, h, member, "", vars, validTime)
}

// processHRRR15minHour enumerates the four 15-minute sub-timesteps for
// hour h (spec.md §4.5), except h=0 which is a single instantaneous step.
func (s *Scheduler) processHRRR15minHour(ctx context.Context, run time.Time, h, member int) ([]*store.SpaceFileHandle, error) {
	vars := s.selectedVariables(h)
	if len(vars) == 0 {
		return nil, nil
	}

	if h == 0 {
		return s.fetchAndPersist(ctx, run, h, member, "", vars, run)
	}

	var all []*store.SpaceFileHandle
	for k := 1; k <= 4; k++ {
		timestep := (h-1)*60 + 15*k
		suffix := fmt.Sprintf("%d", timestep/15)
		validTime := run.Add(time.Duration(timestep) * time.Minute)

		hh, err := s.fetchAndPersist(ctx, run, h, member, suffix, vars, validTime)
		if err != nil {
			return nil, err
		}
		all = append(all, hh...)
	}
	return all, nil
}

// fetchAndPersist resolves the URL for (run, h, member), checks
// --skip-existing for each selected variable, fetches the ones still
// missing via the GRIB Index Client, runs the Semantic Pipeline over each
// in catalogue order, and writes space files for the ones that persist.
func (s *Scheduler) fetchAndPersist(ctx context.Context, run time.Time, h, member int, timestepSuffix string, vars []catalogue.Variable, validTime time.Time) ([]*store.SpaceFileHandle, error) {
	var toFetch []catalogue.Variable
	var handles []*store.SpaceFileHandle

	if s.SkipExisting {
		for _, v := range vars {
			if handle, ok := store.Exists(s.DownloadDir, v, h, member, timestepSuffix); ok {
				handles = append(handles, handle)
				continue
			}
			toFetch = append(toFetch, v)
		}
	} else {
		toFetch = vars
	}

	if len(toFetch) == 0 {
		return handles, nil
	}

	url := s.Domain.ForecastURL(run, h, member)
	selectorFor := func(v catalogue.Variable) string {
		return timestepSelector(s.Domain, h, timestepSuffix, v)
	}

	results, err := s.Client.DownloadIndexed(ctx, url, toFetch, s.Domain, selectorFor, 0)
	if err != nil {
		return nil, fmt.Errorf("gribidx: %w", err)
	}

	pass := s.Pipeline.NewPass()
	for _, res := range results {
		outcome, err := s.Pipeline.Process(pass, pipeline.Frame{
			Variable:  res.Variable,
			Member:    member,
			ValidTime: validTime,
			Grid:      res.Frame,
			Attrs:     res.Attrs,
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		if !outcome.Persist {
			continue
		}

		handle, err := store.WriteSpaceFrame(s.DownloadDir, res.Variable, h, member, timestepSuffix, outcome.Frame)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		handles = append(handles, handle)
	}

	if s.Logger != nil {
		s.Logger.Printf("scheduler: hour %d member %d: wrote %d space file(s)", h, member, len(handles))
	}

	return handles, nil
}

// timestepSelector builds the ".idx" STEP-field substring to match for one
// variable at (domain, hour, sub-timestep). Instantaneous fields match
// "h hour fcst" (or "anl" at hour 0); time-averaged/accumulated fields
// (precipitation, shortwave/diffuse radiation) match the repeating
// "a-b hour ave/acc fcst" window ending at h, per spec.md §3.
func timestepSelector(d *catalogue.Domain, h int, timestepSuffix string, v catalogue.Variable) string {
	if h == 0 && timestepSuffix == "" {
		return "anl"
	}
	if !v.IsWindowed() {
		return fmt.Sprintf("%d hour fcst", h)
	}

	from := previousScheduledHour(d, h)
	kind := "ave"
	if v.IsAccumulated() {
		kind = "acc"
	}
	return fmt.Sprintf("%d-%d hour %s fcst", from, h, kind)
}

// previousScheduledHour returns the forecast hour immediately preceding h
// in this domain's full schedule, or 0 if h is the first hour.
func previousScheduledHour(d *catalogue.Domain, h int) int {
	hours := d.ForecastHours(0, true)
	prev := 0
	for _, hh := range hours {
		if hh >= h {
			break
		}
		prev = hh
	}
	return prev
}
