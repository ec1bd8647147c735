package store

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
)

// ColumnStore is the persistent, chunked (location, time) array from
// spec.md §3/§4.3. Each variable's data lives in its own set of
// "<omFileName>_<chunkIndex>.om" files under Root.
type ColumnStore struct {
	Root string
}

// New returns a ColumnStore rooted at dir.
func New(dir string) *ColumnStore {
	return &ColumnStore{Root: dir}
}

func (s *ColumnStore) chunkPath(v catalogue.Variable, chunkIndex int) string {
	return filepath.Join(s.Root, fmt.Sprintf("%s_%d.om", v.OmFileName(), chunkIndex))
}

// chunkFile is the on-disk representation of one location-chunk's full
// time axis for one variable, serialised as a payload.
type chunkFile struct {
	NLocations int
	NMembers   int
	NTimes     int
	StartUnix  int64
	DTSeconds  int
	Values     []float64 // flat, index = (loc*NMembers+member)*NTimes + t
}

func (s *ColumnStore) readChunk(v catalogue.Variable, chunkIndex int) (*chunkFile, error) {
	raw, err := os.ReadFile(s.chunkPath(v, chunkIndex))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading chunk %d for %s: %w", chunkIndex, v, err)
	}

	shape, _, values, err := decodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("store: decoding chunk %d for %s: %w", chunkIndex, v, err)
	}
	if len(shape) != 5 {
		return nil, fmt.Errorf("store: chunk %d for %s has malformed shape header %v", chunkIndex, v, shape)
	}
	return &chunkFile{
		NLocations: shape[0], NMembers: shape[1], NTimes: shape[2],
		StartUnix: int64(shape[3]), DTSeconds: shape[4], Values: values,
	}, nil
}

func (s *ColumnStore) writeChunk(v catalogue.Variable, chunkIndex int, c *chunkFile, scalefactor float64) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("store: creating column store dir %s: %w", s.Root, err)
	}
	shape := []int{c.NLocations, c.NMembers, c.NTimes, int(c.StartUnix), c.DTSeconds}
	encoded, err := encodePayload(shape, scalefactor, c.Values)
	if err != nil {
		return fmt.Errorf("store: encoding chunk %d for %s: %w", chunkIndex, v, err)
	}
	path := s.chunkPath(v, chunkIndex)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("store: writing chunk %d for %s: %w", chunkIndex, v, err)
	}
	return os.Rename(tmp, path)
}

func idx(loc, member, t, nMembers, nTimes int) int {
	return (loc*nMembers+member)*nTimes + t
}

// Cube is the (locations × members × time) block one Transposer slice
// hands to UpdateFromTimeOrientedStreaming for a single location-chunk.
type Cube struct {
	NLocations int
	NMembers   int
	NTimes     int
	Values     []float64 // flat, same layout as chunkFile.Values
}

// NewCube allocates a cube pre-filled with NaN.
func NewCube(nLocations, nMembers, nTimes int) *Cube {
	c := &Cube{NLocations: nLocations, NMembers: nMembers, NTimes: nTimes, Values: make([]float64, nLocations*nMembers*nTimes)}
	for i := range c.Values {
		c.Values[i] = math.NaN()
	}
	return c
}

// At / Set index into the cube's flat layout.
func (c *Cube) At(loc, member, t int) float64 { return c.Values[idx(loc, member, t, c.NMembers, c.NTimes)] }
func (c *Cube) Set(loc, member, t int, v float64) {
	c.Values[idx(loc, member, t, c.NMembers, c.NTimes)] = v
}

// Producer materialises the cube for one location-chunk, given the chunk's
// starting location offset and location count.
type Producer func(locOffset, locCount int) (*Cube, error)

// UpdateFromTimeOrientedStreaming splices producer-supplied cubes into
// the on-disk chunked layout, spec.md §4.3. For each location-chunk
// offset it calls producer, then merges the result into the existing
// on-disk chunk (if any) at the correct time offset: out-of-range or NaN
// producer cells leave existing cells untouched; non-NaN producer cells
// always win.
func (s *ColumnStore) UpdateFromTimeOrientedStreaming(
	v catalogue.Variable,
	totalLocations int,
	locationsPerChunk int,
	members int,
	timeStart time.Time,
	dtSeconds int,
	nTimes int,
	skipFirst int,
	producer Producer,
) error {
	scalefactor := v.Scalefactor()

	for locOffset := 0; locOffset < totalLocations; locOffset += locationsPerChunk {
		locCount := locationsPerChunk
		if locOffset+locCount > totalLocations {
			locCount = totalLocations - locOffset
		}

		cube, err := producer(locOffset, locCount)
		if err != nil {
			return fmt.Errorf("store: producing chunk at location offset %d for %s: %w", locOffset, v, err)
		}
		if cube == nil {
			continue
		}

		chunkIndex := locOffset / locationsPerChunk
		existing, err := s.readChunk(v, chunkIndex)
		if err != nil {
			return err
		}

		merged, err := mergeChunk(existing, cube, members, timeStart, dtSeconds, nTimes, skipFirst)
		if err != nil {
			return fmt.Errorf("store: merging chunk %d for %s: %w", chunkIndex, v, err)
		}

		if err := s.writeChunk(v, chunkIndex, merged, scalefactor); err != nil {
			return fmt.Errorf("store: writing chunk %d for %s: %w", chunkIndex, v, err)
		}
	}

	return nil
}

// mergeChunk unions an existing on-disk chunk's time range with the new
// cube's time range, then overwrites union cells with non-NaN values from
// the new cube, leaving existing (or NaN) values elsewhere.
func mergeChunk(existing *chunkFile, cube *Cube, members int, newStart time.Time, dtSeconds, nTimes, skipFirst int) (*chunkFile, error) {
	newStartUnix := newStart.Unix()

	if existing == nil {
		c := &chunkFile{
			NLocations: cube.NLocations, NMembers: members, NTimes: nTimes,
			StartUnix: newStartUnix, DTSeconds: dtSeconds,
			Values: make([]float64, cube.NLocations*members*nTimes),
		}
		for i := range c.Values {
			c.Values[i] = math.NaN()
		}
		overlayCube(c, cube, skipFirst, 0)
		return c, nil
	}

	if existing.NLocations != cube.NLocations || existing.NMembers != members {
		return nil, fmt.Errorf("shape mismatch: existing (%d,%d) vs new (%d,%d)",
			existing.NLocations, existing.NMembers, cube.NLocations, members)
	}

	unionStart := existing.StartUnix
	if newStartUnix < unionStart {
		unionStart = newStartUnix
	}
	existingEnd := existing.StartUnix + int64(existing.NTimes)*int64(dtSeconds)
	newEnd := newStartUnix + int64(nTimes)*int64(dtSeconds)
	unionEnd := existingEnd
	if newEnd > unionEnd {
		unionEnd = newEnd
	}
	unionTimes := int((unionEnd - unionStart) / int64(dtSeconds))

	merged := &chunkFile{
		NLocations: existing.NLocations, NMembers: existing.NMembers, NTimes: unionTimes,
		StartUnix: unionStart, DTSeconds: dtSeconds,
		Values: make([]float64, existing.NLocations*existing.NMembers*unionTimes),
	}
	for i := range merged.Values {
		merged.Values[i] = math.NaN()
	}

	existingOffset := int((existing.StartUnix - unionStart) / int64(dtSeconds))
	for loc := 0; loc < existing.NLocations; loc++ {
		for m := 0; m < existing.NMembers; m++ {
			for t := 0; t < existing.NTimes; t++ {
				v := existing.Values[idx(loc, m, t, existing.NMembers, existing.NTimes)]
				if !math.IsNaN(v) {
					merged.Values[idx(loc, m, t+existingOffset, merged.NMembers, merged.NTimes)] = v
				}
			}
		}
	}

	newOffset := int((newStartUnix - unionStart) / int64(dtSeconds))
	overlayCube(merged, cube, skipFirst, newOffset)

	return merged, nil
}

// overlayCube writes cube's non-NaN cells into dst at time offset
// baseOffset, skipping the first skipFirst time indices of cube.
func overlayCube(dst *chunkFile, cube *Cube, skipFirst, baseOffset int) {
	for loc := 0; loc < cube.NLocations; loc++ {
		for m := 0; m < cube.NMembers; m++ {
			for t := skipFirst; t < cube.NTimes; t++ {
				v := cube.At(loc, m, t)
				if math.IsNaN(v) {
					continue
				}
				dt := t + baseOffset
				if dt < 0 || dt >= dst.NTimes {
					continue
				}
				dst.Values[idx(loc, m, dt, dst.NMembers, dst.NTimes)] = v
			}
		}
	}
}

// Series is one location's time series for one variable.
type Series struct {
	StartUnix int64
	DTSeconds int
	Members   int
	Values    []float64 // flat, index = member*NTimes + t
	NTimes    int
}

// Read returns the time series at one location (spec.md §4.3 "read").
func (s *ColumnStore) Read(v catalogue.Variable, locationsPerChunk, location int) (*Series, error) {
	chunkIndex := location / locationsPerChunk
	localLoc := location % locationsPerChunk

	chunk, err := s.readChunk(v, chunkIndex)
	if err != nil {
		return nil, err
	}
	if chunk == nil {
		return nil, fmt.Errorf("store: no data for %s at location %d", v, location)
	}
	if localLoc >= chunk.NLocations {
		return nil, fmt.Errorf("store: location %d out of range for chunk %d (%d locations)", location, chunkIndex, chunk.NLocations)
	}

	values := make([]float64, chunk.NMembers*chunk.NTimes)
	for m := 0; m < chunk.NMembers; m++ {
		for t := 0; t < chunk.NTimes; t++ {
			values[m*chunk.NTimes+t] = chunk.Values[idx(localLoc, m, t, chunk.NMembers, chunk.NTimes)]
		}
	}

	return &Series{
		StartUnix: chunk.StartUnix, DTSeconds: chunk.DTSeconds, Members: chunk.NMembers,
		Values: values, NTimes: chunk.NTimes,
	}, nil
}
