// Package pipeline implements the Semantic Pipeline from spec.md §4.6: the
// fixed sequence of stateful per-variable transformations applied to a
// decoded frame between the GRIB index client and the column store.
package pipeline

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/grid"
)

// deaverageEntry is the per (variable, member) deaverage state from
// spec.md §4.6: either Empty (absent from the cache) or Held(step, frame).
type deaverageEntry struct {
	step  int
	frame *grid.Array2D
}

// deaccumulateEntry is the per (variable, member) deaccumulation state
// (see deaccumulate in deaverage.go): either Empty or Held(step, frame) —
// the last cumulative running total seen.
type deaccumulateEntry struct {
	step  int
	frame *grid.Array2D
}

// Pass holds the prerequisite frames a single (forecast hour, member)
// pass needs downstream (temperature_2m/pressure_msl for humidity,
// pressure-level temperature for vertical velocity). Its lifetime is one
// pass: callers create a fresh one per (hour, member) via Pipeline.NewPass
// and never share it across goroutines, since the scheduler fans members
// out concurrently.
type Pass struct {
	frames map[string]*grid.Array2D
}

func (c *Pass) put(v catalogue.Variable, frame *grid.Array2D) {
	c.frames[v.String()] = frame
}

func (c *Pass) get(v catalogue.Variable) (*grid.Array2D, bool) {
	f, ok := c.frames[v.String()]
	return f, ok
}

// deaverageCacheSize bounds the run-scoped LRU holding per (variable,
// member) deaverage state. Even the largest ensemble run multiplies at
// most a handful of averaged variables by 31 members; 4096 is comfortably
// above any real working set while still bounding pathological growth.
const deaverageCacheSize = 4096

// Pipeline carries the mutable state the Semantic Pipeline needs across
// calls within one run: the deaverage and deaccumulate LRUs, both shared
// and safe for concurrent use across members since golang-lru/v2 guards
// each with its own mutex.
type Pipeline struct {
	domain       *catalogue.Domain
	deaverage    *lru.Cache[string, deaverageEntry]
	deaccumulate *lru.Cache[string, deaccumulateEntry]
}

// New returns a Pipeline for the given domain.
func New(d *catalogue.Domain) (*Pipeline, error) {
	deav, err := lru.New[string, deaverageEntry](deaverageCacheSize)
	if err != nil {
		return nil, err
	}
	deacc, err := lru.New[string, deaccumulateEntry](deaverageCacheSize)
	if err != nil {
		return nil, err
	}
	return &Pipeline{domain: d, deaverage: deav, deaccumulate: deacc}, nil
}

// NewPass returns a fresh prerequisite cache for one (forecast hour,
// member) pass. Call once per pass before processing that pass's
// variables in catalogue order, per spec.md §4.5's ordering requirement,
// and never share the result across goroutines.
func (p *Pipeline) NewPass() *Pass {
	return &Pass{frames: make(map[string]*grid.Array2D)}
}

func deaverageKey(v catalogue.Variable, member int) string {
	return v.String() + "#" + strconv.Itoa(member)
}
