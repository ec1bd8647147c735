package scheduler

import (
	"testing"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
)

func TestSelectedVariablesOnlyVariablesFilter(t *testing.T) {
	s := &Scheduler{
		Domain:        catalogue.Domains["gfs025"],
		OnlyVariables: map[string]bool{"temperature_2m": true, "wind_u_10m": true},
	}

	vars := s.selectedVariables(6)
	if len(vars) != 2 {
		t.Fatalf("expected 2 variables, got %d: %v", len(vars), vars)
	}
	for _, v := range vars {
		if v.Tag != "temperature_2m" && v.Tag != "wind_u_10m" {
			t.Errorf("unexpected variable in filtered list: %s", v.Tag)
		}
	}
}

func TestSelectedVariablesUpperLevelFilter(t *testing.T) {
	s := &Scheduler{Domain: catalogue.Domains["hrrr_conus"], UpperLevel: true}
	for _, v := range s.selectedVariables(6) {
		if v.Kind != catalogue.Pressure {
			t.Errorf("expected only pressure-level variables, got surface variable %s", v.Tag)
		}
	}
}

func TestSelectedVariablesSurfaceLevelFilter(t *testing.T) {
	s := &Scheduler{Domain: catalogue.Domains["hrrr_conus"], SurfaceLevel: true}
	for _, v := range s.selectedVariables(6) {
		if v.Kind != catalogue.Surface {
			t.Errorf("expected only surface variables, got pressure variable %s", v.Tag)
		}
	}
}

func TestSelectedVariablesSkipsHour0Fields(t *testing.T) {
	s := &Scheduler{Domain: catalogue.Domains["gfs025"]}
	hour0 := s.selectedVariables(0)
	for _, v := range hour0 {
		if v.Tag == "precipitation" {
			t.Errorf("precipitation must be skipped at hour 0")
		}
	}

	hour6 := s.selectedVariables(6)
	found := false
	for _, v := range hour6 {
		if v.Tag == "precipitation" {
			found = true
		}
	}
	if !found {
		t.Errorf("precipitation must be present at hour 6")
	}
}

func TestTimestepSelectorInstantaneous(t *testing.T) {
	d := catalogue.Domains["gfs025"]
	got := timestepSelector(d, 0, "", catalogue.Surf("temperature_2m"))
	if got != "anl" {
		t.Errorf("expected analysis selector at hour 0, got %q", got)
	}

	got = timestepSelector(d, 6, "", catalogue.Surf("temperature_2m"))
	if got != "6 hour fcst" {
		t.Errorf("expected instantaneous forecast selector, got %q", got)
	}
}

func TestTimestepSelectorWindowedAccumulated(t *testing.T) {
	d := catalogue.Domains["gfs025"]
	got := timestepSelector(d, 6, "", catalogue.Surf("precipitation"))
	if got != "5-6 hour acc fcst" {
		t.Errorf("expected accumulated window selector, got %q", got)
	}
}

func TestTimestepSelectorWindowedAveraged(t *testing.T) {
	d := catalogue.Domains["hrrr_conus"]
	got := timestepSelector(d, 21, "", catalogue.Surf("shortwave_radiation"))
	if got != "18-21 hour ave fcst" {
		t.Errorf("expected averaged window selector, got %q", got)
	}
}

func TestPreviousScheduledHourFirstHourIsZero(t *testing.T) {
	d := catalogue.Domains["gfs025"]
	if got := previousScheduledHour(d, 0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}
