package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/yardfinder/internal/model"
	"github.com/sells-group/yardfinder/internal/resilience"
	"github.com/sells-group/yardfinder/pkg/geocode"
)

// ProgressFunc is called once per finished row, from the worker that
// finished it.
type ProgressFunc func(result model.GeocodingResult)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency sets the number of rows in flight. Upstream calls are still
// admitted one at a time by the geocoder's gate.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithRetry sets the caller-side retry policy. Only timeout and transient
// failures are re-attempted regardless of the policy's own ShouldRetry.
func WithRetry(policy resilience.Policy) Option {
	return func(p *Pipeline) {
		p.retry = policy
	}
}

// WithState sets the state literal used by the normalizer.
func WithState(state string) Option {
	return func(p *Pipeline) {
		p.normalizer = NewNormalizer(state)
	}
}

// WithProgress registers a per-row progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// Pipeline geocodes a table of raw address records.
type Pipeline struct {
	geocoder    geocode.Geocoder
	normalizer  *Normalizer
	concurrency int
	retry       resilience.Policy
	progress    ProgressFunc
}

// New creates a Pipeline over g. By default rows are processed one at a time
// with no retry.
func New(g geocode.Geocoder, opts ...Option) *Pipeline {
	p := &Pipeline{
		geocoder:    g,
		normalizer:  NewNormalizer(DefaultState),
		concurrency: 1,
		retry:       resilience.SingleAttempt(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.retry.ShouldRetry = geocode.IsRetryable
	return p
}

// Output is the result of one pipeline run.
type Output struct {
	RunID string
	// Table holds the successfully geocoded rows in input order.
	Table []model.GeocodedRow
	// Results has one entry per input record, in input order.
	Results []model.GeocodingResult

	records []model.RawAddressRecord
}

// AllRows returns every input row in order, with empty coordinates for rows
// that failed.
func (o *Output) AllRows() []model.GeocodedRow {
	rows := make([]model.GeocodedRow, len(o.records))
	for i, rec := range o.records {
		rows[i] = model.NewGeocodedRow(rec, o.Results[i].Coordinate())
	}
	return rows
}

// Succeeded returns the number of rows that geocoded.
func (o *Output) Succeeded() int {
	return len(o.Table)
}

// Failed returns the number of rows that did not geocode.
func (o *Output) Failed() int {
	return len(o.Results) - len(o.Table)
}

// FailureCounts tallies failed rows by reason.
func (o *Output) FailureCounts() map[model.FailureReason]int {
	counts := make(map[model.FailureReason]int)
	for _, r := range o.Results {
		if !r.Succeeded() {
			counts[r.Reason]++
		}
	}
	return counts
}

// Run geocodes every record. A failing row is recorded in Results and never
// stops the batch; the only error returned is cancellation of ctx.
func (p *Pipeline) Run(ctx context.Context, records []model.RawAddressRecord) (*Output, error) {
	out := &Output{
		RunID:   uuid.NewString(),
		Results: make([]model.GeocodingResult, len(records)),
		records: records,
	}
	log := zap.L().With(zap.String("run_id", out.RunID))
	log.Info("pipeline: starting geocoding run",
		zap.Int("rows", len(records)),
		zap.Int("concurrency", p.concurrency),
		zap.Int("retry_attempts", p.retry.Attempts),
	)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	var failed int64
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := p.process(ctx, records[i])
			if ctx.Err() != nil && !res.Succeeded() {
				return ctx.Err()
			}
			out.Results[i] = res
			if !res.Succeeded() {
				atomic.AddInt64(&failed, 1)
				log.Warn("pipeline: row failed",
					zap.Int("row", res.Row),
					zap.String("yard", res.Yard),
					zap.String("reason", string(res.Reason)),
					zap.String("error", res.Error),
				)
			}
			if p.progress != nil {
				p.progress(res)
			}
			return nil
		})
	}

	waitErr := g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: run cancelled")
	}
	if waitErr != nil {
		return nil, eris.Wrap(waitErr, "pipeline: run")
	}

	out.Table = make([]model.GeocodedRow, 0, len(records)-int(failed))
	for i, rec := range records {
		if c := out.Results[i].Coordinate(); c != nil {
			out.Table = append(out.Table, model.NewGeocodedRow(rec, c))
		}
	}

	log.Info("pipeline: geocoding run complete",
		zap.Int("succeeded", out.Succeeded()),
		zap.Int("failed", out.Failed()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// process normalizes and geocodes one record.
func (p *Pipeline) process(ctx context.Context, rec model.RawAddressRecord) model.GeocodingResult {
	res := model.GeocodingResult{Row: rec.Row, Yard: rec.Yard}

	addr, err := p.normalizer.Normalize(rec)
	if err != nil {
		res.Status = model.ResultFailure
		res.Reason = model.ReasonMissingAddress
		res.Error = err.Error()
		return res
	}
	res.Address = addr

	policy := p.retry
	policy.OnRetry = resilience.LogRetries("geocode", zap.Int("row", rec.Row))
	coord, attempts, err := resilience.Retry(ctx, policy, func(ctx context.Context) (model.Coordinate, error) {
		return p.geocoder.Geocode(ctx, addr)
	})
	res.Attempts = attempts
	if err != nil {
		res.Status = model.ResultFailure
		res.Reason = reasonFor(err)
		res.Error = err.Error()
		return res
	}

	res.Status = model.ResultSuccess
	res.Latitude = coord.Latitude
	res.Longitude = coord.Longitude
	return res
}

// reasonFor maps a geocoder error onto a row failure reason.
func reasonFor(err error) model.FailureReason {
	if geocode.IsNotFound(err) {
		return model.ReasonNotFound
	}
	switch geocode.KindOf(err) {
	case geocode.KindTimeout:
		return model.ReasonTimeout
	case geocode.KindTransient:
		return model.ReasonTransient
	default:
		return model.ReasonUnknown
	}
}
