package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/grid"
)

// deaverage implements the state machine from spec.md §4.6: states
// {Empty, Held(step, frame)}. On an "avg" frame with stepRange (a, b):
//   - Empty -> Held(b, frame), emitted as-is.
//   - Held(p, _) with p == a -> Held(b, frame), emitted as-is.
//   - Held(p, prev) with p != a -> Held(b, frame), emitted deaveraged:
//     (current*(b-a) - prev*(prev-a)) / (b - prev).
func (p *Pipeline) deaverage(v catalogue.Variable, member int, stepRange string, frame *grid.Array2D) (*grid.Array2D, error) {
	a, b, err := parseStepRange(stepRange)
	if err != nil {
		return nil, fmt.Errorf("pipeline: deaverage %s: %w", v, err)
	}

	key := deaverageKey(v, member)
	prior, ok := p.deaverage.Get(key)

	if !ok || prior.step == a {
		p.deaverage.Add(key, deaverageEntry{step: b, frame: frame})
		return frame, nil
	}

	prev := prior.step
	out := frame.Clone()
	for i := range out.Data {
		out.Data[i] = (frame.Data[i]*float64(b-a) - prior.frame.Data[i]*float64(prev-a)) / float64(b-prev)
	}
	p.deaverage.Add(key, deaverageEntry{step: b, frame: frame})
	return out, nil
}

// deaccumulate implements the accumulated-field counterpart of deaverage
// (spec.md §4.6 step 3) for variables where catalogue.Variable.IsAccumulated
// is true (precipitation, precipitation_probability): NCEP reports these as
// a running total rather than a per-window delta, so recovering the true
// window total needs the same "hold previous, diff against it" shape
// ensemble.go already uses for cross-member APCP differencing, applied here
// per (variable, member) instead of per member of one aggregate fetch.
//
//   - Empty -> Held(b, frame), emitted as-is (first window of the run).
//   - Held(p, _) with p == a -> Held(b, frame), emitted as-is (the message
//     already is a per-window bucket, not a running total).
//   - Held(p, prev) with p != a -> Held(b, frame), emitted as frame-prev.
func (p *Pipeline) deaccumulate(v catalogue.Variable, member int, stepRange string, frame *grid.Array2D) (*grid.Array2D, error) {
	a, b, err := parseStepRange(stepRange)
	if err != nil {
		return nil, fmt.Errorf("pipeline: deaccumulate %s: %w", v, err)
	}

	key := deaverageKey(v, member)
	prior, ok := p.deaccumulate.Get(key)

	if !ok || prior.step == a {
		p.deaccumulate.Add(key, deaccumulateEntry{step: b, frame: frame})
		return frame, nil
	}

	out := frame.Clone()
	for i := range out.Data {
		out.Data[i] = frame.Data[i] - prior.frame.Data[i]
	}
	p.deaccumulate.Add(key, deaccumulateEntry{step: b, frame: frame})
	return out, nil
}

// parseStepRange parses a GRIB "a-b" stepRange string into integer hours.
func parseStepRange(stepRange string) (a, b int, err error) {
	parts := strings.SplitN(stepRange, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed stepRange %q", stepRange)
	}
	a, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed stepRange %q: %w", stepRange, err)
	}
	b, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed stepRange %q: %w", stepRange, err)
	}
	return a, b, nil
}
