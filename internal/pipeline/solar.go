package pipeline

import (
	"math"
	"time"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/grid"
)

// isSolarAveraged reports whether variable v on domain d needs the
// instantaneous-to-interval-average solar conversion from spec.md §4.6
// step 6.
func isSolarAveraged(d *catalogue.Domain, v catalogue.Variable) bool {
	switch d.Family {
	case catalogue.HRRR:
		return v.Tag == "shortwave_radiation" || v.Tag == "diffuse_radiation"
	case catalogue.HRRR15min:
		return v.Tag == "diffuse_radiation"
	}
	return false
}

// applySolarFactor multiplies each cell of g in place by the ratio of its
// mean-over-interval zenith cosine to its instantaneous zenith cosine
// (the "Zensun" model spec.md §4.6 names), leaving cells whose factor is
// below 0.05 unchanged to avoid amplifying near-zero instantaneous values
// around sunrise/sunset.
func applySolarFactor(d *catalogue.Domain, g *grid.Array2D, validTime time.Time, intervalHours float64) {
	for y := 0; y < g.Ny; y++ {
		for x := 0; x < g.Nx; x++ {
			lat, lon := d.ApproxLatLon(y, x)
			factor := solarFactor(lat, lon, validTime, intervalHours)
			if factor < 0.05 {
				continue
			}
			g.Set(y, x, g.At(y, x)*factor)
		}
	}
}

// solarFactor returns the ratio meanCosZenith/instantCosZenith over the
// backward-looking window [validTime-intervalHours, validTime] at
// (lat, lon). Night cells (instantaneous cosine near zero) return 1 (no
// correction — the stored flux should already be ~0 there).
func solarFactor(lat, lon float64, validTime time.Time, intervalHours float64) float64 {
	const eps = 1e-6

	instant := cosZenith(lat, lon, validTime)
	if instant < eps {
		return 1
	}

	const samples = 12
	start := validTime.Add(-time.Duration(intervalHours * float64(time.Hour)))
	step := time.Duration(intervalHours*float64(time.Hour)) / samples

	var sum float64
	t := start
	for i := 0; i < samples; i++ {
		t = t.Add(step)
		if c := cosZenith(lat, lon, t); c > 0 {
			sum += c
		}
	}
	mean := sum / samples

	return mean / instant
}

// cosZenith returns the cosine of the solar zenith angle at (lat, lon) and
// instant t (UTC), using the standard declination/hour-angle
// approximation. Negative values (sun below the horizon) are clamped to
// zero.
func cosZenith(lat, lon float64, t time.Time) float64 {
	t = t.UTC()
	dayOfYear := float64(t.YearDay())
	hourUTC := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600

	declRad := (23.44 * math.Pi / 180) * math.Sin(2*math.Pi*(284+dayOfYear)/365)

	solarHour := hourUTC + lon/15
	hourAngleRad := (math.Pi / 180) * 15 * (solarHour - 12)

	latRad := lat * math.Pi / 180

	cosz := math.Sin(latRad)*math.Sin(declRad) + math.Cos(latRad)*math.Cos(declRad)*math.Cos(hourAngleRad)
	if cosz < 0 {
		return 0
	}
	return cosz
}
