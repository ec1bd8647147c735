package catalogue

import (
	"fmt"
	"math"
	"time"
)

// Family identifies one of the supported NCEP products.
type Family int

const (
	GFS025 Family = iota
	GFS013
	HRRR
	HRRR15min
	GFS025Ensemble
	GFS05Ensemble
)

// GridSpec describes a domain's spatial grid.
type GridSpec struct {
	Nx, Ny     int
	Projection string
	IsGlobal   bool
}

// Domain is the static, long-lived description of one NCEP product, as
// specified in spec.md §3.
type Domain struct {
	Family                 Family
	Name                   string
	Grid                   GridSpec
	DTSeconds              int
	RunsPerDay             int
	Members                int
	Levels                 []int
	MaxForecastHour        int
	SecondFlushMaxHour     int
	DeadlineHours          float64
	WaitAfterLastModified  time.Duration
	DownloadDirectory      string
	ColumnStoreRoot        string
	BaseURL                string
}

// ForecastHours returns the ordered list of forecast-hour offsets to
// download for a run starting at runHour, honouring the domain's normal
// step and any second-flush extension.
func (d *Domain) ForecastHours(runHour int, secondFlush bool) []int {
	switch d.Family {
	case HRRR15min:
		// Caller expands each of these into four 15-minute sub-steps; see
		// the scheduler's processHRRR15minHour.
		max := 18
		var hours []int
		for h := 0; h <= max; h++ {
			hours = append(hours, h)
		}
		return hours
	case HRRR:
		var hours []int
		for h := 0; h <= 18; h++ {
			hours = append(hours, h)
		}
		for h := 21; h <= 48; h += 3 {
			hours = append(hours, h)
		}
		return hours
	case GFS025Ensemble, GFS05Ensemble:
		max := 240
		if secondFlush {
			max = 840
		}
		var hours []int
		for h := 0; h <= 120; h += 3 {
			hours = append(hours, h)
		}
		for h := 123; h <= max; h += 3 {
			hours = append(hours, h)
		}
		return hours
	case GFS013:
		var hours []int
		for h := 0; h <= 120; h++ {
			hours = append(hours, h)
		}
		for h := 123; h <= 384; h += 3 {
			hours = append(hours, h)
		}
		return hours
	default: // GFS025
		var hours []int
		for h := 0; h <= 120; h++ {
			hours = append(hours, h)
		}
		for h := 123; h <= 384; h += 3 {
			hours = append(hours, h)
		}
		return hours
	}
}

// EnsembleMembers returns the member count to iterate for this domain: 1
// for deterministic domains, >1 for ensembles.
func (d *Domain) EnsembleMembers() int {
	if d.Members < 1 {
		return 1
	}
	return d.Members
}

// LocationsPerChunk is the column store's location-chunk size for this
// domain: the member count when the domain is an ensemble (so a whole
// member-fan lands in one chunk), else a tuning constant.
func (d *Domain) LocationsPerChunk() int {
	if d.Members > 1 {
		return d.Members
	}
	return 6000
}

// Variables returns the catalogue-ordered selector list for this domain:
// prerequisites (e.g. temperature_2m, pressure_msl, pressure-level
// temperature) precede the variables that consume them, so the scheduler
// can process one (forecast hour, member) pass strictly in this order.
func (d *Domain) Variables() []Variable {
	switch d.Family {
	case GFS013:
		return []Variable{
			Surf("temperature_2m"),
			Surf("pressure_msl"),
			Surf("relative_humidity_2m"),
			Surf("wind_u_10m"),
			Surf("wind_v_10m"),
			Surf("wind_gust_10m"),
			Surf("precipitation"),
		}
	case HRRR, HRRR15min:
		vars := []Variable{
			Surf("temperature_2m"),
			Surf("wind_u_10m"),
			Surf("wind_v_10m"),
			Surf("wind_gust_10m"),
			Surf("precipitation"),
			Surf("shortwave_radiation"),
			Surf("diffuse_radiation"),
		}
		for _, lvl := range d.Levels {
			vars = append(vars, Press("temperature", lvl), Press("vertical_velocity", lvl))
		}
		return vars
	case GFS025Ensemble, GFS05Ensemble:
		// precipitation_probability is not in this per-member list: it is a
		// cross-member aggregate (spec.md §4.7) produced separately by
		// pipeline.EnsembleAggregator from all members' APCP, not a frame
		// any single member pass decodes and persists on its own.
		vars := []Variable{
			Surf("temperature_2m"),
			Surf("wind_u_10m"),
			Surf("wind_v_10m"),
		}
		for _, lvl := range d.Levels {
			vars = append(vars, Press("temperature", lvl), Press("vertical_velocity", lvl))
		}
		return vars
	default: // GFS025
		return []Variable{
			Surf("temperature_2m"),
			Surf("wind_u_10m"),
			Surf("wind_v_10m"),
			Surf("wind_gust_10m"),
			Surf("precipitation"),
			Surf("cloud_cover"),
		}
	}
}

// Domains is the static catalogue of supported products, keyed by the CLI
// positional domain argument from spec.md §6.
var Domains = map[string]*Domain{
	"gfs025": {
		Family: GFS025, Name: "gfs025",
		Grid:                  GridSpec{Nx: 1440, Ny: 721, Projection: "latlon", IsGlobal: true},
		DTSeconds:              3600,
		RunsPerDay:             4,
		Members:                1,
		MaxForecastHour:        384,
		DeadlineHours:          5,
		WaitAfterLastModified:  20 * time.Minute,
		DownloadDirectory:      "data/gfs025/download",
		ColumnStoreRoot:        "data/gfs025/store",
		BaseURL:                "https://nomads.ncep.noaa.gov/pub/data/nccf/com/gfs/prod",
	},
	"gfs013": {
		Family: GFS013, Name: "gfs013",
		Grid:                  GridSpec{Nx: 3072, Ny: 1536, Projection: "latlon", IsGlobal: true},
		DTSeconds:              3600,
		RunsPerDay:             4,
		Members:                1,
		MaxForecastHour:        384,
		DeadlineHours:          5,
		WaitAfterLastModified:  20 * time.Minute,
		DownloadDirectory:      "data/gfs013/download",
		ColumnStoreRoot:        "data/gfs013/store",
		BaseURL:                "https://nomads.ncep.noaa.gov/pub/data/nccf/com/gfs/prod",
	},
	"hrrr_conus": {
		Family: HRRR, Name: "hrrr_conus",
		Grid:                  GridSpec{Nx: 1799, Ny: 1059, Projection: "lambert", IsGlobal: false},
		DTSeconds:              3600,
		RunsPerDay:             24,
		Members:                1,
		Levels:                 []int{925, 850, 700, 500},
		MaxForecastHour:        48,
		DeadlineHours:          3,
		WaitAfterLastModified:  10 * time.Minute,
		DownloadDirectory:      "data/hrrr/download",
		ColumnStoreRoot:        "data/hrrr/store",
		BaseURL:                "https://nomads.ncep.noaa.gov/pub/data/nccf/com/hrrr/prod",
	},
	"hrrr_conus_15min": {
		Family: HRRR15min, Name: "hrrr_conus_15min",
		Grid:                  GridSpec{Nx: 1799, Ny: 1059, Projection: "lambert", IsGlobal: false},
		DTSeconds:              900,
		RunsPerDay:             24,
		Members:                1,
		MaxForecastHour:        18,
		DeadlineHours:          3,
		WaitAfterLastModified:  10 * time.Minute,
		DownloadDirectory:      "data/hrrr15min/download",
		ColumnStoreRoot:        "data/hrrr15min/store",
		BaseURL:                "https://nomads.ncep.noaa.gov/pub/data/nccf/com/hrrr/prod",
	},
	"gfs025_ensemble": {
		Family: GFS025Ensemble, Name: "gfs025_ensemble",
		Grid:                  GridSpec{Nx: 1440, Ny: 721, Projection: "latlon", IsGlobal: true},
		DTSeconds:              10800,
		RunsPerDay:             4,
		Members:                31,
		Levels:                 []int{850, 500},
		MaxForecastHour:        240,
		SecondFlushMaxHour:     840,
		DeadlineHours:          7,
		WaitAfterLastModified:  30 * time.Minute,
		DownloadDirectory:      "data/gfs025ens/download",
		ColumnStoreRoot:        "data/gfs025ens/store",
		BaseURL:                "https://nomads.ncep.noaa.gov/pub/data/nccf/com/gens/prod",
	},
	"gfs05_ensemble": {
		Family: GFS05Ensemble, Name: "gfs05_ensemble",
		Grid:                  GridSpec{Nx: 720, Ny: 361, Projection: "latlon", IsGlobal: true},
		DTSeconds:              10800,
		RunsPerDay:             4,
		Members:                31,
		Levels:                 []int{850, 500},
		MaxForecastHour:        384,
		SecondFlushMaxHour:     840,
		DeadlineHours:          7,
		WaitAfterLastModified:  30 * time.Minute,
		DownloadDirectory:      "data/gfs05ens/download",
		ColumnStoreRoot:        "data/gfs05ens/store",
		BaseURL:                "https://nomads.ncep.noaa.gov/pub/data/nccf/com/gens/prod",
	},
}

// ApproxLatLon returns the latitude/longitude (degrees) of grid cell
// (row, col) for this domain. Global lat-lon domains compute it exactly
// from the regular grid spacing; the Lambert-projected CONUS domains
// (HRRR) use a linear approximation over their bounding box, which is
// accurate enough for the solar zenith factor in §4.6 (a smooth, slowly
// varying function of position) but must not be used where an exact
// projection is required.
func (d *Domain) ApproxLatLon(row, col int) (lat, lon float64) {
	if d.Grid.IsGlobal {
		lat = 90 - float64(row)*(180/float64(d.Grid.Ny-1))
		lon = float64(col) * (360 / float64(d.Grid.Nx))
		return lat, lon
	}
	const (
		conusLatMin, conusLatMax = 21.0, 53.0
		conusLonMin, conusLonMax = -134.0, -60.0
	)
	lat = conusLatMax - float64(row)*((conusLatMax-conusLatMin)/float64(d.Grid.Ny-1))
	lon = conusLonMin + float64(col)*((conusLonMax-conusLonMin)/float64(d.Grid.Nx-1))
	return lat, lon
}

// NearestLocation returns the flat location index (row*Nx+col) of the
// grid cell closest to (lat, lon) in the layout the column store holds.
// Used by the query layer to resolve a caller's coordinates to a
// column-store row. Global frames are stored after
// ShiftLongitudeAndFlipLatitude, so their rows run south to north from
// -90 and their columns east from -180; the CONUS domains invert
// ApproxLatLon directly.
func (d *Domain) NearestLocation(lat, lon float64) int {
	var row, col int
	if d.Grid.IsGlobal {
		row = int(math.Round((lat + 90) / (180 / float64(d.Grid.Ny-1))))
		col = int(math.Round(math.Mod(lon+540, 360)/(360/float64(d.Grid.Nx)))) % d.Grid.Nx
	} else {
		const (
			conusLatMin, conusLatMax = 21.0, 53.0
			conusLonMin, conusLonMax = -134.0, -60.0
		)
		row = int(math.Round((conusLatMax - lat) / ((conusLatMax - conusLatMin) / float64(d.Grid.Ny-1))))
		col = int(math.Round((lon - conusLonMin) / ((conusLonMax - conusLonMin) / float64(d.Grid.Nx-1))))
	}
	row = clampInt(row, 0, d.Grid.Ny-1)
	col = clampInt(col, 0, d.Grid.Nx-1)
	return row*d.Grid.Nx + col
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ForecastURL returns the GRIB2 file URL for one forecast hour (and, for
// ensembles, one member) of a run, following this family's NOAA
// production bucket layout — the same "baseURL/product.date/cycle/..."
// shape the teacher's downloader hardcodes for GFS025, generalised across
// families.
func (d *Domain) ForecastURL(run time.Time, hour, member int) string {
	date := run.Format("20060102")
	cycle := run.Format("15")

	switch d.Family {
	case GFS013:
		return fmt.Sprintf("%s/gfs.%s/%s/atmos/gfs.t%sz.pgrb2.0p13.f%03d", d.BaseURL, date, cycle, cycle, hour)
	case HRRR:
		return fmt.Sprintf("%s/hrrr.%s/conus/hrrr.t%sz.wrfsfcf%02d.grib2", d.BaseURL, date, cycle, hour)
	case HRRR15min:
		return fmt.Sprintf("%s/hrrr.%s/conus/hrrr.t%sz.wrfsubhf%02d.grib2", d.BaseURL, date, cycle, hour)
	case GFS025Ensemble:
		return fmt.Sprintf("%s/gefs.%s/%s/atmos/pgrb2sp25/%s.t%sz.pgrb2s.0p25.f%03d", d.BaseURL, date, cycle, ensembleMemberName(member), cycle, hour)
	case GFS05Ensemble:
		return fmt.Sprintf("%s/gefs.%s/%s/atmos/pgrb2ap5/%s.t%sz.pgrb2a.0p50.f%03d", d.BaseURL, date, cycle, ensembleMemberName(member), cycle, hour)
	default: // GFS025
		return fmt.Sprintf("%s/gfs.%s/%s/atmos/gfs.t%sz.pgrb2.0p25.f%03d", d.BaseURL, date, cycle, cycle, hour)
	}
}

// ensembleMemberName is NOAA's GEFS naming: the control member is "gec00",
// perturbation members are "gep01".."gep30".
func ensembleMemberName(member int) string {
	if member == 0 {
		return "gec00"
	}
	return fmt.Sprintf("gep%02d", member)
}

// Lookup returns the named domain, and false if it is not in the
// catalogue.
func Lookup(name string) (*Domain, bool) {
	d, ok := Domains[name]
	return d, ok
}
