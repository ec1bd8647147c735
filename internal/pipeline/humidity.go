package pipeline

import (
	"fmt"
	"math"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/grid"
)

const (
	gasConstantDryAir = 287.058  // J/(kg*K)
	gravity           = 9.80665  // m/s^2
)

// specificToRelativeHumidity converts specific humidity (kg/kg, as decoded
// from shortName "2sh") to relative humidity in percent, per spec.md §4.6
// step 4: requires temperature_2m and pressure_msl for this (hour, member)
// already cached.
func specificToRelativeHumidity(pass *Pass, q *grid.Array2D) (*grid.Array2D, error) {
	temp, ok := pass.get(catalogue.Surf("temperature_2m"))
	if !ok {
		return nil, fmt.Errorf("pipeline: relative_humidity_2m: temperature_2m not cached for this pass")
	}
	pres, ok := pass.get(catalogue.Surf("pressure_msl"))
	if !ok {
		return nil, fmt.Errorf("pipeline: relative_humidity_2m: pressure_msl not cached for this pass")
	}
	if len(temp.Data) != len(q.Data) || len(pres.Data) != len(q.Data) {
		return nil, fmt.Errorf("pipeline: relative_humidity_2m: grid size mismatch")
	}

	out := q.Clone()
	for i, qKgKg := range q.Data {
		qGKg := qKgKg * 1000 // kg/kg -> g/kg
		tC := temp.Data[i] - 273.15
		pHpa := pres.Data[i] / 100

		es := tetensSaturationVaporPressure(tC)
		e := qGKg * pHpa / (621.97 + qGKg)

		rh := 100 * e / es
		out.Data[i] = clamp(rh, 0, 100)
	}
	return out, nil
}

// tetensSaturationVaporPressure returns the saturation vapor pressure in
// hPa for a temperature in Celsius, via the Tetens (1930) approximation.
func tetensSaturationVaporPressure(tC float64) float64 {
	return 6.1078 * math.Pow(10, 7.5*tC/(237.3+tC))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pressureToGeometricVelocity converts pressure vertical velocity omega
// (Pa/s) into geometric vertical velocity w (m/s), per spec.md §4.6 step
// 5: w = -omega * R * T / (p * g). Requires the same-level temperature
// already cached for this (hour, member).
func pressureToGeometricVelocity(pass *Pass, v catalogue.Variable, omega *grid.Array2D) (*grid.Array2D, error) {
	temp, ok := pass.get(catalogue.Press("temperature", v.Level))
	if !ok {
		return nil, fmt.Errorf("pipeline: %s: same-level temperature not cached for this pass", v)
	}
	if len(temp.Data) != len(omega.Data) {
		return nil, fmt.Errorf("pipeline: %s: grid size mismatch", v)
	}

	pPa := float64(v.Level) * 100
	out := omega.Clone()
	for i, om := range omega.Data {
		out.Data[i] = -om * gasConstantDryAir * temp.Data[i] / (pPa * gravity)
	}
	return out, nil
}
