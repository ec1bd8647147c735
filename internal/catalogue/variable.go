package catalogue

import "fmt"

// Kind distinguishes a surface field from a pressure-level field.
type Kind int

const (
	Surface Kind = iota
	Pressure
)

// Interpolation selects how the Transposer fills gaps in the time axis.
type Interpolation int

const (
	InterpLinear Interpolation = iota
	InterpNearest
	InterpHermite
	InterpSolarBackwardAverage
)

// Variable is the Surface/Pressure tagged union from spec.md §3. Pressure
// variables carry a level in hPa; Surface variables leave Level at zero.
type Variable struct {
	Kind  Kind
	Tag   string // e.g. "temperature_2m", "vertical_velocity"
	Level int    // hPa, only meaningful when Kind == Pressure
}

// Surf builds a surface variable.
func Surf(tag string) Variable { return Variable{Kind: Surface, Tag: tag} }

// Press builds a pressure-level variable.
func Press(tag string, level int) Variable { return Variable{Kind: Pressure, Tag: tag, Level: level} }

// String renders a stable identifier, used for map keys and log lines.
func (v Variable) String() string {
	if v.Kind == Pressure {
		return fmt.Sprintf("%s_%dhPa", v.Tag, v.Level)
	}
	return v.Tag
}

// OmFileName is the base name used for both space files and column-store
// chunk files.
func (v Variable) OmFileName() string {
	return v.String()
}

// attrs holds the per-variable static description that doesn't depend on
// which domain it's being ingested for.
type attrs struct {
	scalefactor   float64
	interpolation Interpolation
}

var variableAttrs = map[string]attrs{
	"temperature_2m":            {scalefactor: 20, interpolation: InterpLinear},   // 0.05 K steps
	"pressure_msl":              {scalefactor: 10, interpolation: InterpLinear},   // deci-Pa
	"relative_humidity_2m":      {scalefactor: 100, interpolation: InterpLinear},
	"wind_u_10m":                {scalefactor: 100, interpolation: InterpLinear},
	"wind_v_10m":                {scalefactor: 100, interpolation: InterpLinear},
	"wind_gust_10m":             {scalefactor: 100, interpolation: InterpLinear},
	"precipitation":             {scalefactor: 10, interpolation: InterpNearest},
	"precipitation_probability": {scalefactor: 1, interpolation: InterpNearest},
	"shortwave_radiation":       {scalefactor: 1, interpolation: InterpSolarBackwardAverage},
	"diffuse_radiation":         {scalefactor: 1, interpolation: InterpSolarBackwardAverage},
	"cloud_cover":               {scalefactor: 1, interpolation: InterpLinear},
	"vertical_velocity":         {scalefactor: 1000, interpolation: InterpLinear},
	"temperature":               {scalefactor: 20, interpolation: InterpLinear}, // pressure-level temperature
	"geopotential_height":       {scalefactor: 1, interpolation: InterpLinear},
}

// Scalefactor is the integer multiplier used to quantise this variable for
// storage: stored = round(value * Scalefactor).
func (v Variable) Scalefactor() float64 {
	if a, ok := variableAttrs[v.Tag]; ok {
		return a.scalefactor
	}
	return 20
}

// InterpolationKind selects how the Transposer fills time-axis gaps for
// this variable.
func (v Variable) InterpolationKind() Interpolation {
	if a, ok := variableAttrs[v.Tag]; ok {
		return a.interpolation
	}
	return InterpLinear
}

// MultiplyAdd returns the unit rescale x <- x*a + b to apply for this
// variable on this domain, if any. ok is false when no rescale is defined
// (the GRIB-native unit is already the stored unit).
func (v Variable) MultiplyAdd(d *Domain) (a, b float64, ok bool) {
	switch v.Tag {
	case "pressure_msl":
		return 1, 0, false // left in Pa
	case "shortwave_radiation", "diffuse_radiation":
		return 1, 0, false // W/m^2 already
	case "precipitation":
		return 1, 0, false // kg/m^2 == mm already
	}
	return 0, 0, false
}

// SkipHour0 reports whether this variable is omitted at forecast hour 0 on
// the given domain. Cumulative/average fields have no meaningful value at
// the analysis hour because there is no preceding interval.
func (v Variable) SkipHour0(d *Domain) bool {
	switch v.Tag {
	case "precipitation", "precipitation_probability", "shortwave_radiation",
		"diffuse_radiation":
		return true
	}
	return false
}

// GribIndexName returns the substring to match against a line of the
// domain's .idx sidecar for this variable at the given timestep selector
// (e.g. "3-6 hour ave fcst"), and whether this variable applies to the
// domain/timestep combination at all.
func (v Variable) GribIndexName(d *Domain, timestepSelector string) (string, bool) {
	short, ok := shortNames[v.Tag]
	if !ok {
		return "", false
	}
	level := ":surface:"
	if v.Kind == Pressure {
		level = fmt.Sprintf(":%d mb:", v.Level)
	}
	return fmt.Sprintf(":%s%s%s", short, level, timestepSelector), true
}

// shortNames maps our variable tags to the GRIB2 shortName used in NCEP
// .idx lines and message metadata.
var shortNames = map[string]string{
	"temperature_2m":            "TMP",
	"temperature":               "TMP",
	"pressure_msl":              "PRES",
	"relative_humidity_2m":      "2sh", // specific humidity, converted downstream
	"wind_u_10m":                "UGRD",
	"wind_v_10m":                "VGRD",
	"wind_gust_10m":             "GUST",
	"precipitation":             "APCP",
	"precipitation_probability": "APCP",
	"shortwave_radiation":       "DSWRF",
	"diffuse_radiation":         "VDDSF",
	"cloud_cover":               "TCDC",
	"vertical_velocity":         "VVEL",
	"geopotential_height":       "HGT",
}

// IsWindowed reports whether this variable's GRIB2 field is a statistical
// process over a repeating time window (time-averaged or accumulated, e.g.
// "3-6 hour ave/acc fcst") rather than an instantaneous field valid at a
// single forecast hour ("6 hour fcst"/"anl").
func (v Variable) IsWindowed() bool {
	switch v.Tag {
	case "precipitation", "precipitation_probability", "shortwave_radiation", "diffuse_radiation":
		return true
	}
	return false
}

// IsAccumulated reports whether this windowed variable is a running total
// (APCP-style "acc") rather than a running mean ("ave"). Only meaningful
// when IsWindowed is true.
func (v Variable) IsAccumulated() bool {
	return v.Tag == "precipitation" || v.Tag == "precipitation_probability"
}

// KeepInMemory reports whether a decoded, post-rescale frame for this
// variable should be cached for downstream conversions within the current
// (forecast hour, member) pass — e.g. temperature_2m and pressure_msl feed
// the relative-humidity conversion; pressure-level temperature feeds the
// vertical-velocity conversion at the same level.
func (v Variable) KeepInMemory(d *Domain) bool {
	switch v.Tag {
	case "temperature_2m", "pressure_msl":
		return d.Family == GFS013
	case "temperature":
		return d.Family == HRRR || d.Family == HRRR15min || d.Family == GFS05Ensemble
	}
	return false
}

// PersistToDisk reports whether this variable, once processed, is written
// to a space file. Some variables (e.g. GFS013's pressure_msl) exist only
// to feed the humidity conversion and are never persisted themselves.
func (v Variable) PersistToDisk(d *Domain) bool {
	if v.Tag == "pressure_msl" && d.Family == GFS013 {
		return false
	}
	return true
}
