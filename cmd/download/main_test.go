package main

import (
	"testing"
	"time"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
)

func TestBackfillRunTimesCoversWholeIntervalAtCadence(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	got := backfillRunTimes(from, to, 6)

	want := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d run times, got %d: %v", len(want), len(got), got)
	}
	for i, rt := range want {
		if !got[i].Equal(rt) {
			t.Errorf("run time %d: expected %v, got %v", i, rt, got[i])
		}
	}
}

func TestBackfillRunTimesSingleDayUsesDomainCadence(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	got := backfillRunTimes(day, day, 24)

	if len(got) != 1 {
		t.Fatalf("expected exactly 1 run time for a single day at 24h cadence, got %d: %v", len(got), got)
	}
	if !got[0].Equal(day) {
		t.Errorf("expected run time %v, got %v", day, got[0])
	}
}

func TestBackfillRunTimesDefaultsZeroCadenceToDaily(t *testing.T) {
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	got := backfillRunTimes(from, to, 0)

	if len(got) != 3 {
		t.Fatalf("expected 3 daily run times, got %d: %v", len(got), got)
	}
}

func TestCurrentCycleTruncatesToDomainCadence(t *testing.T) {
	d := &catalogue.Domain{RunsPerDay: 4}
	got := currentCycle(d)
	if got.Hour()%6 != 0 {
		t.Errorf("expected cycle hour divisible by 6, got %d", got.Hour())
	}
	if got.Minute() != 0 || got.Second() != 0 {
		t.Errorf("expected cycle truncated to the hour, got %v", got)
	}
}
