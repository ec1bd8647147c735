package store

import (
	"math"
	"testing"
	"time"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
)

func TestUpdateFromTimeOrientedStreamingThenRead(t *testing.T) {
	dir := t.TempDir()
	cs := New(dir)
	v := catalogue.Surf("temperature_2m")
	start := time.Unix(1_700_000_000, 0).UTC()

	producer := func(locOffset, locCount int) (*Cube, error) {
		cube := NewCube(locCount, 1, 4)
		for loc := 0; loc < locCount; loc++ {
			for tt := 0; tt < 4; tt++ {
				cube.Set(loc, 0, tt, float64(locOffset+loc)*10+float64(tt))
			}
		}
		return cube, nil
	}

	if err := cs.UpdateFromTimeOrientedStreaming(v, 10, 4, 1, start, 3600, 4, 0, producer); err != nil {
		t.Fatalf("update: %v", err)
	}

	series, err := cs.Read(v, 4, 5)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if series.NTimes != 4 {
		t.Fatalf("expected 4 times, got %d", series.NTimes)
	}
	// location 5 is chunk 1 (locOffset=4), local index 1 -> base value (4+1)*10 = 50
	want := []float64{50, 51, 52, 53}
	for i, w := range want {
		got := series.Values[i]
		if math.Abs(got-w) > 1e-6 {
			t.Errorf("t=%d: got %v want %v", i, got, w)
		}
	}
}

func TestUpdateFromTimeOrientedStreamingPreservesExistingOnNaN(t *testing.T) {
	dir := t.TempDir()
	cs := New(dir)
	v := catalogue.Surf("wind_u_10m")
	start := time.Unix(1_700_000_000, 0).UTC()

	first := func(locOffset, locCount int) (*Cube, error) {
		cube := NewCube(locCount, 1, 2)
		for loc := 0; loc < locCount; loc++ {
			cube.Set(loc, 0, 0, 1)
			cube.Set(loc, 0, 1, 2)
		}
		return cube, nil
	}
	if err := cs.UpdateFromTimeOrientedStreaming(v, 2, 2, 1, start, 3600, 2, 0, first); err != nil {
		t.Fatalf("first update: %v", err)
	}

	second := func(locOffset, locCount int) (*Cube, error) {
		cube := NewCube(locCount, 1, 2)
		for loc := 0; loc < locCount; loc++ {
			cube.Set(loc, 0, 0, math.NaN())
			cube.Set(loc, 0, 1, 99)
		}
		return cube, nil
	}
	if err := cs.UpdateFromTimeOrientedStreaming(v, 2, 2, 1, start, 3600, 2, 0, second); err != nil {
		t.Fatalf("second update: %v", err)
	}

	series, err := cs.Read(v, 2, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := series.Values[0]; math.Abs(got-1) > 1e-6 {
		t.Errorf("expected NaN overwrite to preserve existing value 1, got %v", got)
	}
	if got := series.Values[1]; math.Abs(got-99) > 1e-6 {
		t.Errorf("expected non-NaN overwrite to win with 99, got %v", got)
	}
}

func TestUpdateFromTimeOrientedStreamingExtendsTimeRange(t *testing.T) {
	dir := t.TempDir()
	cs := New(dir)
	v := catalogue.Surf("temperature_2m")
	start := time.Unix(1_700_000_000, 0).UTC()

	first := func(locOffset, locCount int) (*Cube, error) {
		cube := NewCube(locCount, 1, 2)
		cube.Set(0, 0, 0, 1)
		cube.Set(0, 0, 1, 2)
		return cube, nil
	}
	if err := cs.UpdateFromTimeOrientedStreaming(v, 1, 1, 1, start, 3600, 2, 0, first); err != nil {
		t.Fatalf("first update: %v", err)
	}

	laterStart := start.Add(2 * time.Hour)
	second := func(locOffset, locCount int) (*Cube, error) {
		cube := NewCube(locCount, 1, 2)
		cube.Set(0, 0, 0, 3)
		cube.Set(0, 0, 1, 4)
		return cube, nil
	}
	if err := cs.UpdateFromTimeOrientedStreaming(v, 1, 1, 1, laterStart, 3600, 2, 0, second); err != nil {
		t.Fatalf("second update: %v", err)
	}

	series, err := cs.Read(v, 1, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if series.NTimes != 4 {
		t.Fatalf("expected union of 4 contiguous hours, got %d", series.NTimes)
	}
	want := []float64{1, 2, 3, 4}
	for i, w := range want {
		if got := series.Values[i]; math.Abs(got-w) > 1e-6 {
			t.Errorf("t=%d: got %v want %v", i, got, w)
		}
	}
}

func TestReadMissingLocationErrors(t *testing.T) {
	dir := t.TempDir()
	cs := New(dir)
	v := catalogue.Surf("temperature_2m")
	if _, err := cs.Read(v, 10, 0); err == nil {
		t.Fatal("expected error reading from an empty store")
	}
}
