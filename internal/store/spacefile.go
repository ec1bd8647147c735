package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/grid"
)

// SpaceFileHandle identifies a staged per-hour, per-variable artifact on
// disk (spec.md §3 "Space File"). Handles are retained by the scheduler
// and handed to the Transposer; they are cheap values, safe to copy.
type SpaceFileHandle struct {
	Path           string
	Variable       catalogue.Variable
	ForecastHour   int
	Member         int
	TimestepSuffix string // HRRR 15-minute sub-timestep key, empty otherwise
	Ny, Nx         int
}

// SpaceFilePath returns the on-disk path for a (variable, forecastHour,
// member, timestepSuffix) space file, matching the
// "<omFileName>_<h>[_m][_suffix].fpg" naming from spec.md §6.
func SpaceFilePath(dir string, v catalogue.Variable, forecastHour, member int, timestepSuffix string) string {
	name := fmt.Sprintf("%s_%d", v.OmFileName(), forecastHour)
	if member > 0 {
		name += fmt.Sprintf("_%d", member)
	}
	if timestepSuffix != "" {
		name += "_" + timestepSuffix
	}
	return filepath.Join(dir, name+".fpg")
}

// WriteSpaceFrame quantises frame with variable.Scalefactor, compresses
// it, and writes it as a standalone space file, overwriting any prior
// file at the same path (spec.md §4.3). The write goes through a temp
// file and rename so a crash mid-write never leaves a corrupt, committed
// file (the same durability idiom the teacher uses for its downloads).
func WriteSpaceFrame(dir string, v catalogue.Variable, forecastHour, member int, timestepSuffix string, frame *grid.Array2D) (*SpaceFileHandle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating space dir %s: %w", dir, err)
	}

	path := SpaceFilePath(dir, v, forecastHour, member, timestepSuffix)
	tmp := path + ".tmp"

	encoded, err := encodePayload([]int{1, frame.Ny * frame.Nx}, v.Scalefactor(), frame.Data)
	if err != nil {
		return nil, fmt.Errorf("store: encoding space frame for %s: %w", v, err)
	}

	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return nil, fmt.Errorf("store: writing temp space file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("store: renaming space file %s: %w", tmp, err)
	}

	return &SpaceFileHandle{
		Path: path, Variable: v, ForecastHour: forecastHour, Member: member,
		TimestepSuffix: timestepSuffix, Ny: frame.Ny, Nx: frame.Nx,
	}, nil
}

// Exists reports whether a space file already exists for this
// (variable, forecastHour, member, timestepSuffix) key — used by the
// scheduler's --skip-existing resume path. The returned handle's Ny/Nx are
// populated by decoding the file's own shape header, not left at zero: the
// Transposer derives its per-variable location count from whichever handle
// happens to be first in a group, and a --skip-existing run can easily put
// one of these handles there.
func Exists(dir string, v catalogue.Variable, forecastHour, member int, timestepSuffix string) (*SpaceFileHandle, bool) {
	path := SpaceFilePath(dir, v, forecastHour, member, timestepSuffix)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, false
	}

	total, err := readTotalLocations(path)
	if err != nil {
		return nil, false
	}

	return &SpaceFileHandle{
		Path: path, Variable: v, ForecastHour: forecastHour, Member: member,
		TimestepSuffix: timestepSuffix, Ny: 1, Nx: total,
	}, true
}

// readTotalLocations decodes a space file's payload header enough to
// recover its flattened location count (shape is always [1, ny*nx] — see
// WriteSpaceFrame), without the caller needing the original Ny/Nx split.
func readTotalLocations(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("store: reading space file %s: %w", path, err)
	}
	shape, _, _, err := decodePayload(raw)
	if err != nil {
		return 0, fmt.Errorf("store: decoding space file %s: %w", path, err)
	}
	total := 1
	for _, s := range shape {
		total *= s
	}
	return total, nil
}

// ReadFrame decodes a space file back into its flat, dequantised value
// slice.
func (h *SpaceFileHandle) ReadFrame() ([]float64, error) {
	raw, err := os.ReadFile(h.Path)
	if err != nil {
		return nil, fmt.Errorf("store: reading space file %s: %w", h.Path, err)
	}
	_, _, values, err := decodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("store: decoding space file %s: %w", h.Path, err)
	}
	return values, nil
}

// Remove deletes the staged space file. Deletion after a successful
// transpose is the caller's choice (see DESIGN.md "Open Question
// decisions"), not automatic.
func (h *SpaceFileHandle) Remove() error {
	if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: removing space file %s: %w", h.Path, err)
	}
	return nil
}
