package pipeline

import (
	"context"
	"fmt"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/gribidx"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/grid"
)

const (
	ensembleMembers    = 31
	precipThresholdMM  = 0.3
)

// EnsembleAggregator implements the Ensemble Probability Aggregator from
// spec.md §4.7: it produces the surface variable precipitation_probability
// for the 0.25° ensemble by fetching all 31 members' APCP, deaccumulating
// the 3-hour repeating windows, and counting members at or above the
// precipitation threshold.
type EnsembleAggregator struct {
	domain   *catalogue.Domain
	previous map[int]*grid.Array2D // member -> last cumulative frame
	prevHour int
}

// NewEnsembleAggregator returns an aggregator for one ensemble domain and
// one run; its member-cumulative state does not survive across runs.
func NewEnsembleAggregator(d *catalogue.Domain) *EnsembleAggregator {
	return &EnsembleAggregator{domain: d, previous: make(map[int]*grid.Array2D), prevHour: -1}
}

// URLForMember resolves the GRIB2 file URL for one ensemble member at one
// forecast hour.
type URLForMember func(member, hour int) string

// ProcessHour fetches APCP for all 31 members at forecast hour h,
// deaccumulates each member's 3-hour window against this aggregator's
// previous call (when the previous hour processed was h-3), counts
// members whose segment precipitation is at least 0.3mm, and returns the
// resulting probability frame as 100*count/31, clamped to [0, 100].
func (e *EnsembleAggregator) ProcessHour(ctx context.Context, client *gribidx.Client, urlFor URLForMember, h int, timestepSelector string) (*grid.Array2D, error) {
	apcp := catalogue.Surf("precipitation_probability")
	selectorFor := func(catalogue.Variable) string { return timestepSelector }

	segments := make([]*grid.Array2D, ensembleMembers)
	for m := 0; m < ensembleMembers; m++ {
		results, err := client.DownloadIndexed(ctx, urlFor(m, h), []catalogue.Variable{apcp}, e.domain, selectorFor, 0)
		if err != nil {
			return nil, fmt.Errorf("pipeline: ensemble member %d hour %d: %w", m, h, err)
		}
		if len(results) == 0 {
			return nil, fmt.Errorf("pipeline: ensemble member %d hour %d: no APCP message found", m, h)
		}
		frame := results[0].Frame

		prev, hasPrev := e.previous[m]
		segment := frame
		if hasPrev && e.prevHour == h-3 {
			segment = frame.Clone()
			for i := range segment.Data {
				segment.Data[i] = frame.Data[i] - prev.Data[i]
			}
		}
		segments[m] = segment
		e.previous[m] = frame
	}
	e.prevHour = h

	return aggregateProbability(segments), nil
}

// aggregateProbability is the pure counting step, split out so it can be
// tested against synthetic segments without a network round trip.
func aggregateProbability(segments []*grid.Array2D) *grid.Array2D {
	out := grid.New(segments[0].Ny, segments[0].Nx)
	for i := range out.Data {
		count := 0
		for _, seg := range segments {
			if seg.Data[i] >= precipThresholdMM {
				count++
			}
		}
		prob := 100 * float64(count) / float64(len(segments))
		out.Data[i] = clamp(prob, 0, 100)
	}
	return out
}
