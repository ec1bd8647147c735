// Package derived implements the Reader-side Derived Variables from
// spec.md §4.9: pure, stateless functions the query layer composes from
// stored base variables. These mirror the teacher's own inline
// wind-speed/direction block in cmd/ingest/main.go, generalised out of the
// HTTP handler.
package derived

import "math"

// WindSpeed10m returns the scalar wind speed in the same units as u, v
// from the 10m wind components: sqrt(u^2 + v^2).
func WindSpeed10m(u, v float64) float64 {
	return math.Sqrt(u*u + v*v)
}

// WindDirection10m returns the meteorological wind direction in degrees
// [0, 360) the wind is blowing FROM, given the 10m wind components.
func WindDirection10m(u, v float64) float64 {
	deg := math.Atan2(-u, -v) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// RelativeHumidityFromCloudCover is the fallback relative-humidity
// estimate from spec.md §4.9 for domains that never store
// relative_humidity_2m directly: a coarse linear proxy from total cloud
// cover percentage, clamped to [0, 100].
func RelativeHumidityFromCloudCover(cloudCoverPct float64) float64 {
	rh := 40 + 0.5*cloudCoverPct
	if rh < 0 {
		return 0
	}
	if rh > 100 {
		return 100
	}
	return rh
}

// DailyAggregation is the result of collapsing 6-hourly (or hourly)
// samples into one calendar day's summary.
type DailyAggregation struct {
	Max                 float64
	Min                 float64
	Sum                 float64
	PrecipitationHours  float64
	ShortwaveRadiationMJ float64
}

// AggregateDaily collapses a day's worth of samples (4 values per day for
// 6-hourly fields) into max/min/sum, precipitation_hours (count of hours
// with precipitation over 0.001mm), and shortwave_radiation_sum in MJ/m^2
// (sum * 0.0036 * 6), per spec.md §4.9.
func AggregateDaily(samples []float64, precipitation bool, shortwave bool) DailyAggregation {
	var agg DailyAggregation
	if len(samples) == 0 {
		return agg
	}
	agg.Max, agg.Min = samples[0], samples[0]
	for _, s := range samples {
		if s > agg.Max {
			agg.Max = s
		}
		if s < agg.Min {
			agg.Min = s
		}
		agg.Sum += s
		if precipitation && s > 0.001 {
			agg.PrecipitationHours++
		}
	}
	if shortwave {
		agg.ShortwaveRadiationMJ = agg.Sum * 0.0036 * 6
	}
	return agg
}
