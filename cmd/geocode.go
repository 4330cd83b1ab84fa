package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/yardfinder/internal/config"
	"github.com/sells-group/yardfinder/internal/model"
	"github.com/sells-group/yardfinder/internal/pipeline"
	"github.com/sells-group/yardfinder/internal/resilience"
	"github.com/sells-group/yardfinder/internal/table"
	"github.com/sells-group/yardfinder/pkg/geocode"
)

type geocodeOptions struct {
	Input       string
	Output      string
	Report      string
	KeepFailed  bool
	Concurrency int
	Progress    bool
}

var geocodeFlags geocodeOptions

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode the fuel yard table",
	Long:  "Reads the yard spreadsheet (.xlsx or .csv), geocodes every row through Nominatim at the configured rate, and writes the geocoded CSV used by the query commands.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := geocodeFlags
		if opts.Output == "" {
			opts.Output = cfg.Data.GeocodedPath
		}
		if opts.Concurrency > 0 {
			cfg.Pipeline.Concurrency = opts.Concurrency
		}
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		out, err := runGeocode(ctx, cfg, opts)
		if err != nil {
			return err
		}
		printGeocodeSummary(os.Stdout, opts, out)
		return nil
	},
}

// runGeocode reads the input table, runs the pipeline and writes the outputs.
func runGeocode(ctx context.Context, c *config.Config, opts geocodeOptions) (*pipeline.Output, error) {
	records, err := table.ReadRecords(opts.Input)
	if err != nil {
		return nil, err
	}
	zap.L().Info("geocode: input loaded", zap.String("input", opts.Input), zap.Int("records", len(records)))

	var geocoder geocode.Geocoder = newGeocodeClient(c)
	if c.Geocode.CachePath != "" {
		cache, err := geocode.OpenCache(ctx, c.Geocode.CachePath)
		if err != nil {
			return nil, err
		}
		defer cache.Close() //nolint:errcheck
		geocoder = geocode.Cached(geocoder, cache)
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithConcurrency(c.Pipeline.Concurrency),
		pipeline.WithState(c.Geocode.State),
		pipeline.WithRetry(resilience.NewPolicy(c.Pipeline.RetryAttempts, c.Pipeline.RetryBackoffMs)),
	}
	if opts.Progress && len(records) > 0 {
		bar := progressbar.Default(int64(len(records)), "geocoding")
		defer bar.Finish() //nolint:errcheck
		pipeOpts = append(pipeOpts, pipeline.WithProgress(func(model.GeocodingResult) {
			_ = bar.Add(1)
		}))
	}

	start := time.Now()
	out, err := pipeline.New(geocoder, pipeOpts...).Run(ctx, records)
	if err != nil {
		return nil, err
	}

	rows := out.Table
	if opts.KeepFailed {
		rows = out.AllRows()
	}
	if err := table.SaveGeocoded(opts.Output, rows); err != nil {
		return nil, err
	}

	if opts.Report != "" {
		if err := writeReport(opts.Report, newRunReport(opts, out, start)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// runReport is the YAML summary of one geocoding run.
type runReport struct {
	RunID     string                  `yaml:"run_id"`
	Input     string                  `yaml:"input"`
	Output    string                  `yaml:"output"`
	StartedAt time.Time               `yaml:"started_at"`
	Elapsed   string                  `yaml:"elapsed"`
	Total     int                     `yaml:"total"`
	Succeeded int                     `yaml:"succeeded"`
	Failed    int                     `yaml:"failed"`
	ByReason  map[string]int          `yaml:"failures_by_reason,omitempty"`
	Failures  []model.GeocodingResult `yaml:"failures,omitempty"`
}

func newRunReport(opts geocodeOptions, out *pipeline.Output, start time.Time) runReport {
	r := runReport{
		RunID:     out.RunID,
		Input:     opts.Input,
		Output:    opts.Output,
		StartedAt: start.UTC().Truncate(time.Second),
		Elapsed:   time.Since(start).Round(time.Millisecond).String(),
		Total:     len(out.Results),
		Succeeded: out.Succeeded(),
		Failed:    out.Failed(),
	}
	if counts := out.FailureCounts(); len(counts) > 0 {
		r.ByReason = make(map[string]int, len(counts))
		for reason, n := range counts {
			r.ByReason[string(reason)] = n
		}
	}
	for _, res := range out.Results {
		if !res.Succeeded() {
			r.Failures = append(r.Failures, res)
		}
	}
	return r
}

func writeReport(path string, r runReport) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "geocode: encode report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "geocode: write report")
	}
	return nil
}

func printGeocodeSummary(w io.Writer, opts geocodeOptions, out *pipeline.Output) {
	fmt.Fprintf(w, "Geocoded %d of %d rows -> %s\n", out.Succeeded(), len(out.Results), opts.Output)
	if out.Failed() == 0 {
		return
	}
	counts := out.FailureCounts()
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "  %-28s %d\n", reason, counts[model.FailureReason(reason)])
	}
}

func init() {
	f := geocodeCmd.Flags()
	f.StringVarP(&geocodeFlags.Input, "input", "i", "NJDOT_Fuel_Yards.xlsx", "yard table to geocode (.xlsx or .csv)")
	f.StringVarP(&geocodeFlags.Output, "output", "o", "", "geocoded CSV path (default from config)")
	f.StringVar(&geocodeFlags.Report, "report", "", "write a YAML run report to this path")
	f.BoolVar(&geocodeFlags.KeepFailed, "keep-failed", false, "also write rows that failed to geocode, with empty coordinates")
	f.IntVar(&geocodeFlags.Concurrency, "concurrency", 0, "rows in flight (default from config)")
	f.BoolVar(&geocodeFlags.Progress, "progress", true, "show a progress bar")
	rootCmd.AddCommand(geocodeCmd)
}
