package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/gribidx"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/grid"
)

func TestProcessSpecificToRelativeHumidityRequiresPrerequisites(t *testing.T) {
	d := catalogue.Domains["gfs013"]
	p, err := New(d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pass := p.NewPass()

	rh, _ := grid.NewFromFlat(1, 1, []float64{0.008})
	_, err = p.Process(pass, Frame{
		Variable:  catalogue.Surf("relative_humidity_2m"),
		ValidTime: time.Now().UTC(),
		Grid:      rh,
		Attrs:     gribidx.Attrs{ShortName: "2sh", StepType: gribidx.StepInstant},
	})
	if err == nil {
		t.Fatal("expected missing-prerequisite error before temperature_2m/pressure_msl are cached")
	}
}

func TestProcessSpecificToRelativeHumidityEndToEnd(t *testing.T) {
	d := catalogue.Domains["gfs013"]
	p, err := New(d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pass := p.NewPass()

	temp, _ := grid.NewFromFlat(1, 1, []float64{288.15}) // 15C
	if _, err := p.Process(pass, Frame{
		Variable: catalogue.Surf("temperature_2m"), Grid: temp,
		ValidTime: time.Now().UTC(), Attrs: gribidx.Attrs{ShortName: "TMP", StepType: gribidx.StepInstant},
	}); err != nil {
		t.Fatalf("temperature_2m: %v", err)
	}

	pres, _ := grid.NewFromFlat(1, 1, []float64{101325})
	if _, err := p.Process(pass, Frame{
		Variable: catalogue.Surf("pressure_msl"), Grid: pres,
		ValidTime: time.Now().UTC(), Attrs: gribidx.Attrs{ShortName: "PRES", StepType: gribidx.StepInstant},
	}); err != nil {
		t.Fatalf("pressure_msl: %v", err)
	}

	q, _ := grid.NewFromFlat(1, 1, []float64{0.008})
	out, err := p.Process(pass, Frame{
		Variable: catalogue.Surf("relative_humidity_2m"), Grid: q,
		ValidTime: time.Now().UTC(), Attrs: gribidx.Attrs{ShortName: "2sh", StepType: gribidx.StepInstant},
	})
	if err != nil {
		t.Fatalf("relative_humidity_2m: %v", err)
	}
	if out.Frame.Data[0] <= 0 || out.Frame.Data[0] > 100 {
		t.Errorf("expected RH in (0, 100], got %v", out.Frame.Data[0])
	}

	if out2, err := p.Process(pass, Frame{
		Variable: catalogue.Surf("pressure_msl"), Grid: pres.Clone(),
		ValidTime: time.Now().UTC(), Attrs: gribidx.Attrs{ShortName: "PRES", StepType: gribidx.StepInstant},
	}); err != nil || out2.Persist {
		t.Errorf("pressure_msl on GFS013 must not persist, got persist=%v err=%v", out2.Persist, err)
	}
}

func TestProcessPressureVerticalVelocityConversion(t *testing.T) {
	d := catalogue.Domains["hrrr_conus"]
	p, err := New(d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pass := p.NewPass()

	temp, _ := grid.NewFromFlat(1, 1, []float64{253})
	if _, err := p.Process(pass, Frame{
		Variable: catalogue.Press("temperature", 500), Grid: temp,
		ValidTime: time.Now().UTC(), Attrs: gribidx.Attrs{ShortName: "TMP", StepType: gribidx.StepInstant},
	}); err != nil {
		t.Fatalf("temperature: %v", err)
	}

	omega, _ := grid.NewFromFlat(1, 1, []float64{0.5})
	out, err := p.Process(pass, Frame{
		Variable: catalogue.Press("vertical_velocity", 500), Grid: omega,
		ValidTime: time.Now().UTC(), Attrs: gribidx.Attrs{ShortName: "VVEL", StepType: gribidx.StepInstant},
	})
	if err != nil {
		t.Fatalf("vertical_velocity: %v", err)
	}
	// w = -omega * R * T / (p * g); omega > 0 (sinking) should give w < 0.
	if out.Frame.Data[0] >= 0 {
		t.Errorf("expected negative w for positive omega, got %v", out.Frame.Data[0])
	}
}

func TestProcessDeaccumulatesRunningTotalPrecipitation(t *testing.T) {
	d := catalogue.Domains["gfs025"]
	p, err := New(d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pass := p.NewPass()

	first, _ := grid.NewFromFlat(1, 1, []float64{5})
	out1, err := p.Process(pass, Frame{
		Variable: catalogue.Surf("precipitation"), Member: 3, Grid: first,
		ValidTime: time.Now().UTC(),
		Attrs:     gribidx.Attrs{ShortName: "APCP", StepRange: "0-3", StepType: gribidx.StepAcc},
	})
	if err != nil {
		t.Fatalf("first window: %v", err)
	}
	if out1.Frame.Data[0] != 5 {
		t.Errorf("first window in a run has nothing to diff against, expected 5, got %v", out1.Frame.Data[0])
	}

	second, _ := grid.NewFromFlat(1, 1, []float64{8}) // cumulative 0-6 total
	out2, err := p.Process(pass, Frame{
		Variable: catalogue.Surf("precipitation"), Member: 3, Grid: second,
		ValidTime: time.Now().UTC(),
		Attrs:     gribidx.Attrs{ShortName: "APCP", StepRange: "0-6", StepType: gribidx.StepAcc},
	})
	if err != nil {
		t.Fatalf("second window: %v", err)
	}
	if out2.Frame.Data[0] != 3 {
		t.Errorf("expected 3-6 window total of 3 (8-5), got %v", out2.Frame.Data[0])
	}
}

func TestProcessDoesNotDiffAcrossAlreadyWindowedBuckets(t *testing.T) {
	d := catalogue.Domains["gfs025"]
	p, err := New(d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pass := p.NewPass()

	first, _ := grid.NewFromFlat(1, 1, []float64{2})
	if _, err := p.Process(pass, Frame{
		Variable: catalogue.Surf("precipitation"), Grid: first,
		ValidTime: time.Now().UTC(),
		Attrs:     gribidx.Attrs{ShortName: "APCP", StepRange: "0-3", StepType: gribidx.StepAcc},
	}); err != nil {
		t.Fatalf("first window: %v", err)
	}

	second, _ := grid.NewFromFlat(1, 1, []float64{4}) // own 3-6 bucket, not cumulative
	out, err := p.Process(pass, Frame{
		Variable: catalogue.Surf("precipitation"), Grid: second,
		ValidTime: time.Now().UTC(),
		Attrs:     gribidx.Attrs{ShortName: "APCP", StepRange: "3-6", StepType: gribidx.StepAcc},
	})
	if err != nil {
		t.Fatalf("second window: %v", err)
	}
	if out.Frame.Data[0] != 4 {
		t.Errorf("expected the 3-6 bucket emitted as-is (4), got %v", out.Frame.Data[0])
	}
}

func TestProcessRejectsAccumulatedFieldWithNoDeaccumulationPath(t *testing.T) {
	d := catalogue.Domains["gfs025"]
	p, err := New(d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pass := p.NewPass()

	g, _ := grid.NewFromFlat(1, 1, []float64{1})
	_, err = p.Process(pass, Frame{
		Variable: catalogue.Surf("temperature_2m"), Grid: g,
		ValidTime: time.Now().UTC(),
		Attrs:     gribidx.Attrs{ShortName: "TMP", StepRange: "0-3", StepType: gribidx.StepAcc},
	})
	if err == nil {
		t.Fatal("expected an error for an accumulated field this pipeline has no deaccumulation path for")
	}
}

func TestSolarFactorLeavesNightCellsUnchanged(t *testing.T) {
	midnight := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	factor := solarFactor(40, -100, midnight, 1)
	if factor != 1 {
		t.Errorf("expected night factor of 1 (unchanged), got %v", factor)
	}
}

func TestSolarFactorNearNoonIsCloseToOne(t *testing.T) {
	noon := time.Date(2026, 6, 21, 18, 0, 0, 0, time.UTC) // ~local solar noon near -100 lon
	factor := solarFactor(40, -100, noon, 1)
	if math.IsNaN(factor) || math.Abs(factor-1) > 0.1 {
		t.Errorf("expected a finite factor close to 1 near solar noon, got %v", factor)
	}
}
