package transpose

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/grid"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/store"
)

func writeSpaceFile(t *testing.T, dir string, v catalogue.Variable, hour int, value float64) *store.SpaceFileHandle {
	t.Helper()
	frame, err := grid.NewFromFlat(1, 4, []float64{value, value, value, value})
	if err != nil {
		t.Fatalf("NewFromFlat: %v", err)
	}
	handle, err := store.WriteSpaceFrame(dir, v, hour, 0, "", frame)
	if err != nil {
		t.Fatalf("WriteSpaceFrame: %v", err)
	}
	return handle
}

func TestTransposeVariableFillsLinearGap(t *testing.T) {
	dir := t.TempDir()
	d := &catalogue.Domain{
		Family: catalogue.GFS025, DTSeconds: 3600, Members: 1,
		Grid: catalogue.GridSpec{Nx: 4, Ny: 1, IsGlobal: true},
	}
	v := catalogue.Surf("temperature_2m")
	run := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	handles := []*store.SpaceFileHandle{
		writeSpaceFile(t, dir, v, 0, 10),
		writeSpaceFile(t, dir, v, 2, 30),
	}

	storeRoot := filepath.Join(dir, "store")
	cs := store.New(storeRoot)

	if err := Run(context.Background(), d, cs, handles, run, 2); err != nil {
		t.Fatalf("Run: %v", err)
	}

	series, err := cs.Read(v, d.LocationsPerChunk(), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if series.NTimes != 3 {
		t.Fatalf("expected 3 time steps, got %d", series.NTimes)
	}
	if got := series.Values[1]; math.Abs(got-20) > 1e-9 {
		t.Errorf("expected linear-interpolated midpoint 20, got %v", got)
	}
}

func TestTransposeVariableSkipsFirstWhenSkipHour0(t *testing.T) {
	dir := t.TempDir()
	d := &catalogue.Domain{
		Family: catalogue.GFS025, DTSeconds: 3600, Members: 1,
		Grid: catalogue.GridSpec{Nx: 4, Ny: 1, IsGlobal: true},
	}
	v := catalogue.Surf("precipitation")
	run := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	handles := []*store.SpaceFileHandle{
		writeSpaceFile(t, dir, v, 1, 5),
		writeSpaceFile(t, dir, v, 2, 7),
	}

	storeRoot := filepath.Join(dir, "store")
	cs := store.New(storeRoot)

	if err := Run(context.Background(), d, cs, handles, run, 2); err != nil {
		t.Fatalf("Run: %v", err)
	}

	series, err := cs.Read(v, d.LocationsPerChunk(), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !math.IsNaN(series.Values[0]) {
		t.Errorf("expected first time step left as NaN when skipHour0, got %v", series.Values[0])
	}
}

func TestTransposeVariableHandlesSkipExistingResumedHandle(t *testing.T) {
	dir := t.TempDir()
	d := &catalogue.Domain{
		Family: catalogue.GFS025, DTSeconds: 3600, Members: 1,
		Grid: catalogue.GridSpec{Nx: 4, Ny: 1, IsGlobal: true},
	}
	v := catalogue.Surf("temperature_2m")
	run := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	writeSpaceFile(t, dir, v, 0, 10)
	writeSpaceFile(t, dir, v, 1, 20)

	// Simulate a --skip-existing resume: the hour-0 handle comes from
	// store.Exists, not a fresh WriteSpaceFrame, and lands first in the
	// per-variable group.
	resumed, ok := store.Exists(dir, v, 0, 0, "")
	if !ok {
		t.Fatalf("expected hour 0 space file to exist")
	}
	if resumed.Ny*resumed.Nx == 0 {
		t.Fatalf("expected Exists to populate a nonzero grid shape, got Ny=%d Nx=%d", resumed.Ny, resumed.Nx)
	}

	handles := []*store.SpaceFileHandle{resumed, writeSpaceFile(t, dir, v, 1, 20)}

	storeRoot := filepath.Join(dir, "store")
	cs := store.New(storeRoot)

	if err := Run(context.Background(), d, cs, handles, run, 2); err != nil {
		t.Fatalf("Run: %v", err)
	}

	series, err := cs.Read(v, d.LocationsPerChunk(), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := series.Values[0]; math.Abs(got-10) > 1e-9 {
		t.Errorf("expected hour 0 value 10 from the resumed handle, got %v", got)
	}
}

func TestFillGapsNearestPicksClosestKnown(t *testing.T) {
	c := store.NewCube(1, 1, 5)
	c.Set(0, 0, 0, 1)
	c.Set(0, 0, 4, 9)

	fillGaps(c, catalogue.InterpNearest)

	if got := c.At(0, 0, 1); got != 1 {
		t.Errorf("t=1 expected nearest to 1, got %v", got)
	}
	if got := c.At(0, 0, 3); got != 9 {
		t.Errorf("t=3 expected nearest to 9, got %v", got)
	}
}

func TestFillGapsBackwardHoldNeverLooksAhead(t *testing.T) {
	c := store.NewCube(1, 1, 3)
	c.Set(0, 0, 0, 100)
	// t=1, t=2 missing.
	c.Set(0, 0, 2, 400)

	fillGaps(c, catalogue.InterpSolarBackwardAverage)

	if got := c.At(0, 0, 1); got != 100 {
		t.Errorf("expected backward hold of 100, got %v", got)
	}
}

func TestFillGapsLeavesEmptyColumnAsNaN(t *testing.T) {
	c := store.NewCube(1, 1, 3)
	fillGaps(c, catalogue.InterpLinear)
	if !math.IsNaN(c.At(0, 0, 1)) {
		t.Errorf("expected column with no known samples to remain NaN")
	}
}

func TestValidTimeHRRR15minUsesSuffix(t *testing.T) {
	d := &catalogue.Domain{Family: catalogue.HRRR15min}
	run := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := &store.SpaceFileHandle{ForecastHour: 1, TimestepSuffix: "5"}

	got := validTime(d, run, h)
	want := run.Add(75 * time.Minute)
	if !got.Equal(want) {
		t.Errorf("got %v want %v", got, want)
	}
}
