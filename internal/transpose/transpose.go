// Package transpose implements the Transposer from spec.md §4.8: it takes
// the space files one scheduler run produced and splices them into the
// column store's (location, time) layout, filling the gaps the domain's
// irregular forecast-hour schedule leaves behind.
package transpose

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/store"
)

// Run groups handles by variable and transposes each variable
// independently, bounded to concurrent simultaneous variables.
func Run(ctx context.Context, d *catalogue.Domain, cs *store.ColumnStore, handles []*store.SpaceFileHandle, run time.Time, concurrent int) error {
	byVariable := make(map[string][]*store.SpaceFileHandle)
	var order []string
	for _, h := range handles {
		key := h.Variable.String()
		if _, ok := byVariable[key]; !ok {
			order = append(order, key)
		}
		byVariable[key] = append(byVariable[key], h)
	}

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(concurrent)
	for _, key := range order {
		group := byVariable[key]
		eg.Go(func() error {
			return transposeVariable(d, cs, group, run)
		})
	}
	return eg.Wait()
}

// transposeVariable decodes every space file for one variable, lays them
// out on a dense (location, member, time) cube at the domain's dt, fills
// any gaps per the variable's interpolation kind, and splices the result
// into the column store. It skips the first time cell when this
// variable's skipHour0 rule applies (spec.md §4.8), since that cell has
// no meaningful value to persist even if interpolation could fill it.
func transposeVariable(d *catalogue.Domain, cs *store.ColumnStore, handles []*store.SpaceFileHandle, run time.Time) error {
	if len(handles) == 0 {
		return nil
	}
	v := handles[0].Variable
	totalLocations := 0
	for _, h := range handles {
		if n := h.Ny * h.Nx; n > 0 {
			totalLocations = n
			break
		}
	}
	if totalLocations == 0 {
		return fmt.Errorf("transpose: %s: no handle in this group carries a known grid shape", v)
	}
	members := d.EnsembleMembers()
	dt := int64(d.DTSeconds)

	type sample struct {
		unix   int64
		member int
		values []float64
	}
	samples := make([]sample, 0, len(handles))
	// The time axis always starts at the run itself, so index 0 is the
	// hour-0 cell even when no handle exists for it.
	minUnix, maxUnix := run.Unix(), run.Unix()
	for _, h := range handles {
		values, err := h.ReadFrame()
		if err != nil {
			return fmt.Errorf("transpose: reading %s: %w", h.Path, err)
		}
		u := validTime(d, run, h).Unix()
		if u < minUnix {
			minUnix = u
		}
		if u > maxUnix {
			maxUnix = u
		}
		samples = append(samples, sample{unix: u, member: h.Member, values: values})
	}

	timeStart := time.Unix(minUnix, 0).UTC()
	nTimes := int((maxUnix-minUnix)/dt) + 1

	full := store.NewCube(totalLocations, members, nTimes)
	for _, s := range samples {
		t := int((s.unix - minUnix) / dt)
		for loc, val := range s.values {
			full.Set(loc, s.member, t, val)
		}
	}

	fillGaps(full, v.InterpolationKind())

	skip := 0
	if v.SkipHour0(d) {
		skip = 1
	}

	producer := func(locOffset, locCount int) (*store.Cube, error) {
		c := store.NewCube(locCount, members, nTimes)
		for loc := 0; loc < locCount; loc++ {
			for m := 0; m < members; m++ {
				for t := 0; t < nTimes; t++ {
					c.Set(loc, m, t, full.At(locOffset+loc, m, t))
				}
			}
		}
		return c, nil
	}

	return cs.UpdateFromTimeOrientedStreaming(v, totalLocations, d.LocationsPerChunk(), members, timeStart, d.DTSeconds, nTimes, skip, producer)
}

// validTime resolves the wall-clock valid time for a space file handle:
// HRRR's 15-minute sub-timesteps carry their offset (in quarter-hours
// since the top of the run) in TimestepSuffix, everything else is a
// whole-hour forecast offset from run.
func validTime(d *catalogue.Domain, run time.Time, h *store.SpaceFileHandle) time.Time {
	if d.Family == catalogue.HRRR15min && h.TimestepSuffix != "" {
		quarters, err := strconv.Atoi(h.TimestepSuffix)
		if err == nil {
			return run.Add(time.Duration(quarters) * 15 * time.Minute)
		}
	}
	return run.Add(time.Duration(h.ForecastHour) * time.Hour)
}

// fillGaps interpolates every (location, member) time column's NaN cells
// per the requested interpolation kind, leaving columns with no known
// samples at all untouched (still entirely NaN).
func fillGaps(c *store.Cube, kind catalogue.Interpolation) {
	known := make([]int, 0, c.NTimes)
	for loc := 0; loc < c.NLocations; loc++ {
		for m := 0; m < c.NMembers; m++ {
			known = known[:0]
			for t := 0; t < c.NTimes; t++ {
				if !math.IsNaN(c.At(loc, m, t)) {
					known = append(known, t)
				}
			}
			if len(known) == 0 {
				continue
			}
			for t := 0; t < c.NTimes; t++ {
				if !math.IsNaN(c.At(loc, m, t)) {
					continue
				}
				c.Set(loc, m, t, fillValue(c, loc, m, t, known, kind))
			}
		}
	}
}

func fillValue(c *store.Cube, loc, m, t int, known []int, kind catalogue.Interpolation) float64 {
	switch kind {
	case catalogue.InterpNearest:
		return nearestValue(c, loc, m, t, known)
	case catalogue.InterpHermite:
		return hermiteValue(c, loc, m, t, known)
	case catalogue.InterpSolarBackwardAverage:
		return backwardHoldValue(c, loc, m, t, known)
	default:
		return linearValue(c, loc, m, t, known)
	}
}

// surrounding finds the nearest known time index below (lo) and above
// (hi) t. known is ascending.
func surrounding(known []int, t int) (lo, hi int, hasLo, hasHi bool) {
	lo, hi = -1, -1
	for _, k := range known {
		if k < t {
			lo = k
		}
		if k > t && hi == -1 {
			hi = k
		}
	}
	return lo, hi, lo >= 0, hi >= 0
}

func linearValue(c *store.Cube, loc, m, t int, known []int) float64 {
	lo, hi, hasLo, hasHi := surrounding(known, t)
	switch {
	case hasLo && hasHi:
		vlo, vhi := c.At(loc, m, lo), c.At(loc, m, hi)
		frac := float64(t-lo) / float64(hi-lo)
		return vlo + (vhi-vlo)*frac
	case hasLo:
		return c.At(loc, m, lo)
	case hasHi:
		return c.At(loc, m, hi)
	default:
		return math.NaN()
	}
}

func nearestValue(c *store.Cube, loc, m, t int, known []int) float64 {
	lo, hi, hasLo, hasHi := surrounding(known, t)
	switch {
	case hasLo && hasHi:
		if t-lo <= hi-t {
			return c.At(loc, m, lo)
		}
		return c.At(loc, m, hi)
	case hasLo:
		return c.At(loc, m, lo)
	case hasHi:
		return c.At(loc, m, hi)
	default:
		return math.NaN()
	}
}

// backwardHoldValue holds the most recent known value forward. Used for
// solar-averaged fields, where extrapolating from a future interval back
// in time would smear the wrong sun angle into the gap.
func backwardHoldValue(c *store.Cube, loc, m, t int, known []int) float64 {
	lo, _, hasLo, _ := surrounding(known, t)
	if hasLo {
		return c.At(loc, m, lo)
	}
	return math.NaN()
}

// hermiteValue fits a cubic Hermite segment between the bracketing known
// points, estimating tangents Catmull-Rom style from the nearest known
// points outside the bracket. Falls back to linear interpolation at the
// series' ends, where no outside point exists to estimate a tangent.
func hermiteValue(c *store.Cube, loc, m, t int, known []int) float64 {
	lo, hi, hasLo, hasHi := surrounding(known, t)
	if !hasLo || !hasHi {
		return linearValue(c, loc, m, t, known)
	}

	prevIdx, nextIdx := -1, -1
	for _, k := range known {
		if k < lo {
			prevIdx = k
		}
		if k > hi && nextIdx == -1 {
			nextIdx = k
		}
	}

	p0, p1 := c.At(loc, m, lo), c.At(loc, m, hi)
	pPrev, pNext := p0, p1
	if prevIdx >= 0 {
		pPrev = c.At(loc, m, prevIdx)
	}
	if nextIdx >= 0 {
		pNext = c.At(loc, m, nextIdx)
	}

	x := float64(t-lo) / float64(hi-lo)
	tan0 := (p1 - pPrev) / 2
	tan1 := (pNext - p0) / 2

	x2 := x * x
	x3 := x2 * x
	h00 := 2*x3 - 3*x2 + 1
	h10 := x3 - 2*x2 + x
	h01 := -2*x3 + 3*x2
	h11 := x3 - x2

	return h00*p0 + h10*tan0 + h01*p1 + h11*tan1
}
