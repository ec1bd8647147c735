package catalogue

import (
	"strings"
	"testing"
	"time"
)

func TestLookupKnownDomains(t *testing.T) {
	for _, name := range []string{"gfs025", "gfs013", "hrrr_conus", "hrrr_conus_15min", "gfs025_ensemble", "gfs05_ensemble"} {
		if _, ok := Lookup(name); !ok {
			t.Fatalf("expected domain %q to be in the catalogue", name)
		}
	}
}

func TestForecastHoursIncludeHourZero(t *testing.T) {
	d, _ := Lookup("gfs025")
	hours := d.ForecastHours(0, false)
	if len(hours) == 0 || hours[0] != 0 {
		t.Fatalf("expected hour 0 first, got %v", hours)
	}
}

func TestSecondFlushExtendsEnsembleSchedule(t *testing.T) {
	d, _ := Lookup("gfs025_ensemble")
	normal := d.ForecastHours(0, false)
	extended := d.ForecastHours(0, true)
	if extended[len(extended)-1] <= normal[len(normal)-1] {
		t.Fatalf("expected second flush to extend the schedule: normal ends %d, extended ends %d",
			normal[len(normal)-1], extended[len(extended)-1])
	}
	if extended[len(extended)-1] != 840 {
		t.Fatalf("expected second flush to reach hour 840, got %d", extended[len(extended)-1])
	}
}

func TestGFS013VariableOrderPutsPrerequisitesFirst(t *testing.T) {
	d, _ := Lookup("gfs013")
	vars := d.Variables()
	idx := map[string]int{}
	for i, v := range vars {
		idx[v.Tag] = i
	}
	if idx["temperature_2m"] >= idx["relative_humidity_2m"] {
		t.Fatalf("temperature_2m must precede relative_humidity_2m in the selector list")
	}
	if idx["pressure_msl"] >= idx["relative_humidity_2m"] {
		t.Fatalf("pressure_msl must precede relative_humidity_2m in the selector list")
	}
}

func TestHRRRVariableOrderPutsLevelTemperatureBeforeVerticalVelocity(t *testing.T) {
	d, _ := Lookup("hrrr_conus")
	vars := d.Variables()
	var tIdx, wIdx = -1, -1
	for i, v := range vars {
		if v.Kind == Pressure && v.Tag == "temperature" && v.Level == 850 {
			tIdx = i
		}
		if v.Kind == Pressure && v.Tag == "vertical_velocity" && v.Level == 850 {
			wIdx = i
		}
	}
	if tIdx == -1 || wIdx == -1 {
		t.Fatalf("expected both temperature and vertical_velocity at 850hPa in the selector list")
	}
	if tIdx >= wIdx {
		t.Fatalf("temperature at a level must precede vertical_velocity at that level")
	}
}

func TestPressureMSLNotPersistedOnGFS013(t *testing.T) {
	d, _ := Lookup("gfs013")
	v := Surf("pressure_msl")
	if v.PersistToDisk(d) {
		t.Fatalf("pressure_msl must not be persisted on GFS013 (cache-only prerequisite)")
	}
}

func TestLocationsPerChunkMatchesMembersForEnsembles(t *testing.T) {
	d, _ := Lookup("gfs025_ensemble")
	if d.LocationsPerChunk() != d.Members {
		t.Fatalf("expected ensemble chunk size to equal member count, got %d vs %d", d.LocationsPerChunk(), d.Members)
	}
}

func TestForecastURLEnsembleMemberNaming(t *testing.T) {
	d, _ := Lookup("gfs025_ensemble")
	run := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	control := d.ForecastURL(run, 6, 0)
	if !strings.Contains(control, "gec00") {
		t.Errorf("expected control member URL to contain gec00, got %s", control)
	}
	perturbed := d.ForecastURL(run, 6, 5)
	if !strings.Contains(perturbed, "gep05") {
		t.Errorf("expected perturbation member URL to contain gep05, got %s", perturbed)
	}
}

func TestForecastURLIncludesForecastHour(t *testing.T) {
	d, _ := Lookup("gfs025")
	run := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	url := d.ForecastURL(run, 24, 0)
	if !strings.Contains(url, "f024") {
		t.Errorf("expected forecast hour f024 in URL, got %s", url)
	}
}
