// Package grid provides a dense 2-D numeric grid and the projection
// mutations the ingestion pipeline applies to NCEP GRIB2 fields.
package grid

import "fmt"

// Array2D is a dense, row-major (ny, nx) grid of float64 values.
//
// Row 0 is whatever latitude the decoder handed back first; callers that
// need north-to-south or south-to-north ordering track that separately
// (see ShiftLongitudeAndFlipLatitude).
type Array2D struct {
	Ny, Nx int
	Data   []float64
}

// New allocates a zeroed (ny, nx) grid.
func New(ny, nx int) *Array2D {
	return &Array2D{Ny: ny, Nx: nx, Data: make([]float64, ny*nx)}
}

// NewFromFlat wraps an existing flat buffer without copying.
func NewFromFlat(ny, nx int, data []float64) (*Array2D, error) {
	if len(data) != ny*nx {
		return nil, fmt.Errorf("grid: expected %d values for (%d, %d), got %d", ny*nx, ny, nx, len(data))
	}
	return &Array2D{Ny: ny, Nx: nx, Data: data}, nil
}

// At returns the value at row y, column x.
func (a *Array2D) At(y, x int) float64 {
	return a.Data[y*a.Nx+x]
}

// Set stores v at row y, column x.
func (a *Array2D) Set(y, x int, v float64) {
	a.Data[y*a.Nx+x] = v
}

// Clone returns an independent copy.
func (a *Array2D) Clone() *Array2D {
	out := &Array2D{Ny: a.Ny, Nx: a.Nx, Data: make([]float64, len(a.Data))}
	copy(out.Data, a.Data)
	return out
}

// Scale applies x <- x*mul + add to every cell in place.
func (a *Array2D) Scale(mul, add float64) {
	for i, v := range a.Data {
		a.Data[i] = v*mul + add
	}
}

// ShiftLongitudeAndFlipLatitude rotates the x-axis by Nx/2 (turning a
// 0..360 longitude grid starting at the prime meridian into a -180..180
// grid) and reverses row order (turning north-to-south latitude ordering
// into south-to-north, or vice versa).
//
// It mutates a in place. For an even Nx, applying it twice to the same
// grid restores the original values exactly, since both the column
// rotation and the row reversal are then their own inverse.
func (a *Array2D) ShiftLongitudeAndFlipLatitude() {
	half := a.Nx / 2
	row := make([]float64, a.Nx)
	for y := 0; y < a.Ny; y++ {
		base := y * a.Nx
		copy(row, a.Data[base:base+a.Nx])
		for x := 0; x < a.Nx; x++ {
			a.Data[base+x] = row[(x+half)%a.Nx]
		}
	}

	for top, bottom := 0, a.Ny-1; top < bottom; top, bottom = top+1, bottom-1 {
		topBase, bottomBase := top*a.Nx, bottom*a.Nx
		for x := 0; x < a.Nx; x++ {
			a.Data[topBase+x], a.Data[bottomBase+x] = a.Data[bottomBase+x], a.Data[topBase+x]
		}
	}
}
