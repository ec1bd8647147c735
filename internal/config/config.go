// Package config assembles the ingest CLI's typed configuration from
// flags, matching the surface in spec.md §6.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
)

// Config is the validated, typed result of parsing the download CLI's
// flags for one invocation.
type Config struct {
	Domain           *catalogue.Domain
	Run              time.Time
	OnlyVariables    []string // empty means all
	TimeIntervalFrom time.Time
	TimeIntervalTo   time.Time
	HasTimeInterval  bool
	Concurrent       int
	MaxForecastHour  int
	HasMaxForecastHr bool
	UploadS3Bucket   string
	SkipExisting     bool
	CreateNetCDF     bool
	SecondFlush      bool
	UpperLevel       bool
	SurfaceLevel     bool
	KeepSpaceFiles   bool
}

// Parse builds a Config from argv (excluding the program name), matching
// the positional `domain` argument and the option/flag surface from
// spec.md §6 plus SPEC_FULL.md §4.10's `--keep-space-files` addition.
func Parse(argv []string) (*Config, error) {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)

	run := fs.String("run", "", "run time, YYYYMMDDHH or an hour offset like -6")
	onlyVariables := fs.String("only-variables", "", "comma-separated variable tags to restrict this run to")
	timeInterval := fs.String("timeinterval", "", "YYYYMMDD-YYYYMMDD backfill window")
	concurrent := fs.Int("concurrent", 4, "bounded concurrency degree for member/variable fan-out")
	maxForecastHour := fs.Int("max-forecast-hour", -1, "cap the forecast-hour schedule; -1 means use the domain default")
	uploadS3Bucket := fs.String("upload-s3-bucket", "", "sync finished column-store chunks to this S3 bucket after the run")
	skipExisting := fs.Bool("skip-existing", false, "skip (hour, member, variable) combinations whose space file already exists")
	createNetCDF := fs.Bool("create-netcdf", false, "accepted and recorded in Config; no NetCDF snapshot is written")
	secondFlush := fs.Bool("second-flush", false, "extend the ensemble forecast-hour schedule to its second-flush horizon")
	upperLevel := fs.Bool("upper-level", false, "restrict to pressure-level variables")
	surfaceLevel := fs.Bool("surface-level", false, "restrict to surface variables")
	keepSpaceFiles := fs.Bool("keep-space-files", false, "do not delete staged space files after a successful transpose")

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}

	if fs.NArg() < 1 {
		return nil, fmt.Errorf("config: missing required positional argument <domain>")
	}
	domainName := fs.Arg(0)
	d, ok := catalogue.Lookup(domainName)
	if !ok {
		return nil, fmt.Errorf("config: unknown domain %q", domainName)
	}

	cfg := &Config{
		Domain:         d,
		Concurrent:     *concurrent,
		UploadS3Bucket: *uploadS3Bucket,
		SkipExisting:   *skipExisting,
		CreateNetCDF:   *createNetCDF,
		SecondFlush:    *secondFlush,
		UpperLevel:     *upperLevel,
		SurfaceLevel:   *surfaceLevel,
		KeepSpaceFiles: *keepSpaceFiles,
	}

	if cfg.Concurrent < 1 {
		return nil, fmt.Errorf("config: --concurrent must be >= 1, got %d", cfg.Concurrent)
	}

	if cfg.SecondFlush && d.SecondFlushMaxHour == 0 {
		return nil, fmt.Errorf("config: --second-flush set but domain %s has no second-flush schedule", d.Name)
	}

	if cfg.UpperLevel && cfg.SurfaceLevel {
		return nil, fmt.Errorf("config: --upper-level and --surface-level are mutually exclusive")
	}

	if *run != "" {
		t, err := parseRun(*run)
		if err != nil {
			return nil, fmt.Errorf("config: --run: %w", err)
		}
		cfg.Run = t
	}

	if *onlyVariables != "" {
		cfg.OnlyVariables = strings.Split(*onlyVariables, ",")
	}

	if *timeInterval != "" {
		from, to, err := parseTimeInterval(*timeInterval)
		if err != nil {
			return nil, fmt.Errorf("config: --timeinterval: %w", err)
		}
		cfg.TimeIntervalFrom, cfg.TimeIntervalTo, cfg.HasTimeInterval = from, to, true
	}

	if *maxForecastHour >= 0 {
		cfg.MaxForecastHour = *maxForecastHour
		cfg.HasMaxForecastHr = true
	}

	return cfg, nil
}

// parseRun accepts either an absolute "YYYYMMDDHH" run time or a relative
// hour offset (e.g. "-6" for 6 hours ago), counted from the current UTC
// time truncated to the whole hour; the result is not aligned to the
// domain's run cadence.
func parseRun(s string) (time.Time, error) {
	if len(s) == 10 {
		t, err := time.Parse("2006010215", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("expected YYYYMMDDHH, got %q: %w", s, err)
		}
		return t.UTC(), nil
	}
	offset, err := strconv.Atoi(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYYMMDDHH or an integer hour offset, got %q", s)
	}
	now := time.Now().UTC()
	rounded := now.Truncate(time.Hour).Add(time.Duration(offset) * time.Hour)
	return rounded, nil
}

func parseTimeInterval(s string) (from, to time.Time, err error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("expected YYYYMMDD-YYYYMMDD, got %q", s)
	}
	from, err = time.Parse("20060102", parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("expected YYYYMMDD-YYYYMMDD, got %q: %w", s, err)
	}
	to, err = time.Parse("20060102", parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("expected YYYYMMDD-YYYYMMDD, got %q: %w", s, err)
	}
	return from.UTC(), to.UTC(), nil
}
