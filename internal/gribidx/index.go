// Package gribidx implements the GRIB Index Client from spec.md §4.2: it
// consults a NOAA ".idx" sidecar to find byte ranges for selected GRIB2
// messages, issues ranged HTTP GETs, and decodes them with the GRIB2
// decoder this module treats as an external collaborator.
package gribidx

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	grib "github.com/mmp/squall"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/grid"
)

// StepType is the GRIB2 PDS statistical-process kind a message's STEP
// field implies.
type StepType int

const (
	StepInstant StepType = iota
	StepAvg
	StepAcc
	StepAccum
	StepMax
	StepMin
)

// Attrs is the message metadata spec.md §3 requires: shortName, the raw
// stepRange string ("a-b"), and the classified stepType.
type Attrs struct {
	ShortName string
	StepRange string
	StepType  StepType
}

// Result pairs a matched selector with its decoded frame and attributes.
type Result struct {
	Variable catalogue.Variable
	Frame    *grid.Array2D
	Attrs    Attrs
}

// Client fetches and decodes indexed GRIB2 messages. One Client holds a
// single HTTP client and is safe for concurrent use.
type Client struct {
	HTTP *http.Client
}

// New returns a Client with a generous timeout suited to large GRIB2
// ranges on a slow government mirror.
func New() *Client {
	return &Client{HTTP: &http.Client{Timeout: 5 * time.Minute}}
}

type indexLine struct {
	offset int64
	raw    string
}

// TimestepSelector resolves the "timestep" half of a variable's
// gribIndexName substring (spec.md §3): instantaneous fields typically
// want "<h> hour fcst", averaged/accumulated fields want their repeating
// window ("a-b hour ave fcst"). It is per-variable because stepType
// differs by variable within the same (hour, member) pass.
type TimestepSelector func(v catalogue.Variable) string

// DownloadIndexed fetches url+".idx", matches each selector's
// GribIndexName substring against its lines, issues one ranged GET per
// match, decodes the response with the GRIB2 decoder, and returns results
// in the stable order the index lines were matched (spec.md §4.2).
//
// It retries until success, until deadline elapses, or until the index
// stops advancing (its Last-Modified header stops changing) for longer
// than waitAfterLastModified, which is treated as fatal.
func (c *Client) DownloadIndexed(ctx context.Context, url string, vars []catalogue.Variable, d *catalogue.Domain, selectorFor TimestepSelector, deadline time.Duration) ([]Result, error) {
	lines, err := c.fetchIndexWithRetry(ctx, url+".idx", deadline, d.WaitAfterLastModified)
	if err != nil {
		return nil, fmt.Errorf("gribidx: fetching index for %s: %w", url, err)
	}

	type match struct {
		variable catalogue.Variable
		rawLine  string
		start    int64
		end      int64 // -1 means "to EOF"
	}
	var matches []match
	for _, v := range vars {
		needle, ok := v.GribIndexName(d, selectorFor(v))
		if !ok {
			continue
		}
		for i, ln := range lines {
			if !strings.Contains(ln.raw, needle) {
				continue
			}
			end := int64(-1)
			if i+1 < len(lines) {
				end = lines[i+1].offset
			}
			matches = append(matches, match{variable: v, rawLine: ln.raw, start: ln.offset, end: end})
			break
		}
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		body, err := c.fetchRangeWithRetry(ctx, url, m.start, m.end, deadline)
		if err != nil {
			return nil, fmt.Errorf("gribidx: fetching %s: %w", m.variable, err)
		}

		fields, err := grib.Read(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gribidx: decoding %s: %w", m.variable, err)
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("gribidx: no messages decoded for %s", m.variable)
		}
		f := fields[0]

		g, err := grid.NewFromFlat(f.GridNj, f.GridNi, float64Slice(f.Data))
		if err != nil {
			return nil, fmt.Errorf("gribidx: %s: %w", m.variable, err)
		}

		attrs, err := attrsFromIndexLine(m.rawLine, m.variable)
		if err != nil {
			return nil, fmt.Errorf("gribidx: %s: %w", m.variable, err)
		}

		results = append(results, Result{
			Variable: m.variable,
			Frame:    g,
			Attrs:    attrs,
		})
	}

	return results, nil
}

func float64Slice(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// attrsFromIndexLine parses the SHORTNAME and STEP fields of a raw
// ".idx" line ("index:offset:date:SHORTNAME:LEVEL:STEP:...") into the
// shortName/stepRange/stepType triple spec.md §3 requires.
//
// STEP text looks like "anl" or "6 hour fcst" for instantaneous fields,
// "3-6 hour ave fcst" for time-averaged fields, and "0-6 hour acc fcst"
// for accumulated fields.
func attrsFromIndexLine(rawLine string, v catalogue.Variable) (Attrs, error) {
	fields := strings.Split(rawLine, ":")
	if len(fields) < 6 {
		return Attrs{}, fmt.Errorf("malformed index line: %q", rawLine)
	}
	shortName := fields[3]
	step := fields[5]

	st := StepInstant
	switch {
	case strings.Contains(step, "ave"):
		st = StepAvg
	case strings.Contains(step, "accum"):
		st = StepAccum
	case strings.Contains(step, "acc"):
		st = StepAcc
	case strings.Contains(step, "max"):
		st = StepMax
	case strings.Contains(step, "min"):
		st = StepMin
	}

	stepRange := ""
	if idx := strings.IndexByte(step, '-'); idx >= 0 {
		// "a-b hour ..." -> "a-b"
		rest := step[idx+1:]
		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			end = len(rest)
		}
		stepRange = step[:idx] + "-" + rest[:end]
	}

	return Attrs{ShortName: shortName, StepRange: stepRange, StepType: st}, nil
}

// fetchIndexWithRetry downloads and parses the .idx sidecar, retrying
// until the file appears or the index stops being updated for longer than
// waitAfterLastModified.
func (c *Client) fetchIndexWithRetry(ctx context.Context, idxURL string, deadline, waitAfterLastModified time.Duration) ([]indexLine, error) {
	start := time.Now()
	var lastModified string
	var lastModifiedSeen time.Time

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, idxURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.HTTP.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return nil, readErr
			}
			return parseIndex(body)
		}
		if resp != nil {
			lm := resp.Header.Get("Last-Modified")
			resp.Body.Close()
			if lm != "" && lm != lastModified {
				lastModified = lm
				lastModifiedSeen = time.Now()
			}
		}

		if deadline > 0 && time.Since(start) > deadline {
			return nil, fmt.Errorf("gribidx: deadline of %s exceeded waiting for %s", deadline, idxURL)
		}
		if !lastModifiedSeen.IsZero() && time.Since(lastModifiedSeen) > waitAfterLastModified {
			return nil, fmt.Errorf("gribidx: index for %s stalled for %s with no progress", idxURL, waitAfterLastModified)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(30 * time.Second):
		}
	}
}

// fetchRangeWithRetry issues a single ranged GET, retrying transient
// failures (network errors, 5xx, 404) until the deadline.
func (c *Client) fetchRangeWithRetry(ctx context.Context, url string, start, end int64, deadline time.Duration) ([]byte, error) {
	begin := time.Now()
	var lastErr error
	for {
		body, err := c.fetchRange(ctx, url, start, end)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if deadline > 0 && time.Since(begin) > deadline {
			return nil, fmt.Errorf("deadline of %s exceeded: last error: %w", deadline, lastErr)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(15 * time.Second):
		}
	}
}

func (c *Client) fetchRange(ctx context.Context, url string, start, end int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if end >= 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end-1))
	} else {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// parseIndex parses ".idx" lines of the form
// "index:offset:date:SHORTNAME:LEVEL:STEP:..." into offset-ordered
// records, preserving the raw line for selector matching.
func parseIndex(body []byte) ([]indexLine, error) {
	var lines []indexLine
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		raw := sc.Text()
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) < 3 {
			return nil, fmt.Errorf("gribidx: malformed index line: %q", raw)
		}
		offset, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("gribidx: malformed offset in line %q: %w", raw, err)
		}
		lines = append(lines, indexLine{offset: offset, raw: raw})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
