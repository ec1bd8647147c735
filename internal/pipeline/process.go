package pipeline

import (
	"fmt"
	"time"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/gribidx"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/grid"
)

// Frame is one decoded, attributed GRIB2 message ready for the Semantic
// Pipeline.
type Frame struct {
	Variable  catalogue.Variable
	Member    int
	ValidTime time.Time
	Grid      *grid.Array2D
	Attrs     gribidx.Attrs
}

// Outcome is the pipeline's verdict on a processed frame: the frame to
// persist, and whether it should be persisted at all (step 9, "drop
// cached-only frames").
type Outcome struct {
	Frame   *grid.Array2D
	Persist bool
}

// Process runs the fixed stage sequence from spec.md §4.6 over one
// decoded frame against pass, the caller's per (forecast hour, member)
// prerequisite cache (see NewPass), so that prerequisite frames
// (temperature_2m, pressure_msl, level temperature) are available when
// later variables in the same pass need them.
func (p *Pipeline) Process(pass *Pass, f Frame) (Outcome, error) {
	v := f.Variable
	g := f.Grid

	// 1. Projection normalise.
	if p.domain.Grid.IsGlobal {
		g.ShiftLongitudeAndFlipLatitude()
	}

	// 2. Deaverage.
	if f.Attrs.StepType == gribidx.StepAvg {
		deav, err := p.deaverage(v, f.Member, f.Attrs.StepRange, g)
		if err != nil {
			return Outcome{}, err
		}
		g = deav
	}

	// 3. Deaccumulate, or reject what this pipeline has no path for.
	if f.Attrs.StepType == gribidx.StepAcc || f.Attrs.StepType == gribidx.StepAccum {
		if !v.IsAccumulated() {
			return Outcome{}, fmt.Errorf("pipeline: %s: accumulated field has no deaccumulation path", v)
		}
		deacc, err := p.deaccumulate(v, f.Member, f.Attrs.StepRange, g)
		if err != nil {
			return Outcome{}, err
		}
		g = deacc
	}

	// 4/5. Specific->relative humidity, pressure-vertical->geometric velocity.
	// Step 5 runs only on domains that cache same-level temperature (see
	// catalogue.Variable.KeepInMemory); elsewhere omega is stored as decoded.
	switch {
	case v.Tag == "relative_humidity_2m" && f.Attrs.ShortName == "2sh":
		converted, err := specificToRelativeHumidity(pass, g)
		if err != nil {
			return Outcome{}, err
		}
		g = converted
	case v.Kind == catalogue.Pressure && v.Tag == "vertical_velocity" &&
		catalogue.Press("temperature", v.Level).KeepInMemory(p.domain):
		converted, err := pressureToGeometricVelocity(pass, v, g)
		if err != nil {
			return Outcome{}, err
		}
		g = converted
	}

	// 6. Solar-flux averaging.
	if isSolarAveraged(p.domain, v) {
		applySolarFactor(p.domain, g, f.ValidTime, float64(p.domain.DTSeconds)/3600)
	}

	// 7. Unit rescale.
	if a, b, ok := v.MultiplyAdd(p.domain); ok {
		g.Scale(a, b)
	}

	// 8. In-memory cache update.
	if v.KeepInMemory(p.domain) {
		pass.put(v, g)
	}

	// 9/10. Drop cached-only frames, else persist.
	return Outcome{Frame: g, Persist: v.PersistToDisk(p.domain)}, nil
}
