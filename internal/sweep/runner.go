package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/candidate"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/encoder"
	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/optimizer"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/predictor"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/Meesho/BharatMLStack/policy-sweep/pkg/metric"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Source loads the scoring rows of one date.
type Source interface {
	Load(ctx context.Context, date time.Time) ([]types.ScoringRow, error)
}

// Sink persists the results of one date.
type Sink interface {
	Write(ctx context.Context, date time.Time, results []types.PolicyResult) error
}

type Options struct {
	Grid        []float64
	NumShards   int
	Hash        HashFunc
	Concurrency int
}

type Runner struct {
	predictor   predictor.Predictor
	encoder     *encoder.Encoder
	source      Source
	sink        Sink
	grid        []float64
	numShards   int
	hash        HashFunc
	concurrency int
}

// NewRunner wires a runner. sink may be nil, in which case results are only
// returned and summarised.
func NewRunner(p predictor.Predictor, enc *encoder.Encoder, src Source, sink Sink, opts Options) (*Runner, error) {
	if len(opts.Grid) == 0 {
		return nil, fmt.Errorf("%w: empty grid", sweeperrors.ErrInvalidGrid)
	}
	r := &Runner{
		predictor:   p,
		encoder:     enc,
		source:      src,
		sink:        sink,
		grid:        append([]float64(nil), opts.Grid...),
		numShards:   opts.NumShards,
		hash:        opts.Hash,
		concurrency: opts.Concurrency,
	}
	if r.numShards < 1 {
		r.numShards = 1
	}
	if r.hash == nil {
		r.hash = XXHash
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	return r, nil
}

// RunDay loads and evaluates one date. An empty day yields no results and no
// error.
func (r *Runner) RunDay(ctx context.Context, date time.Time) ([]types.PolicyResult, error) {
	rows, err := r.source.Load(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", date.Format(types.DateLayout), err)
	}
	return r.Evaluate(ctx, rows)
}

// Evaluate sweeps the grid over one day's rows. Results are concatenated in
// shard order; within a shard they follow input order.
func (r *Runner) Evaluate(ctx context.Context, rows []types.ScoringRow) ([]types.PolicyResult, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if err := checkUnique(rows); err != nil {
		return nil, err
	}

	shards := Partition(rows, r.numShards, r.hash)
	results := make([][]types.PolicyResult, len(shards))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range shards {
		i := i
		g.Go(func() error {
			out, err := r.evaluateShard(gctx, shards[i])
			if err != nil {
				return fmt.Errorf("shard %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, s := range results {
		total += len(s)
	}
	out := make([]types.PolicyResult, 0, total)
	for _, s := range results {
		out = append(out, s...)
	}
	return out, nil
}

func (r *Runner) evaluateShard(ctx context.Context, rows []types.ScoringRow) ([]types.PolicyResult, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	baseline := candidate.Baselines(rows)
	if err := optimizer.Score(ctx, r.predictor, r.encoder, baseline); err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cands := candidate.Expand(rows, r.grid)
	if err := optimizer.Score(ctx, r.predictor, r.encoder, cands); err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}
	metric.Count(metric.SweepCandidates, int64(len(cands)), nil)

	return optimizer.Merge(baseline, optimizer.SelectBest(cands)), nil
}

// Run sweeps every date in [start, end] in order. Each non-empty day is
// written before the next one starts; the first failing day stops the run and
// leaves earlier days in place.
func (r *Runner) Run(ctx context.Context, start, end time.Time) ([]types.DayKPI, error) {
	start, end = types.NormalizeDate(start), types.NormalizeDate(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", sweeperrors.ErrInvalidDateRange,
			end.Format(types.DateLayout), start.Format(types.DateLayout))
	}

	var kpis []types.DayKPI
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return kpis, err
		}
		kpi, err := r.runAndWrite(ctx, date)
		if err != nil {
			return kpis, err
		}
		if kpi != nil {
			kpis = append(kpis, *kpi)
		}
	}
	return kpis, nil
}

func (r *Runner) runAndWrite(ctx context.Context, date time.Time) (*types.DayKPI, error) {
	day := date.Format(types.DateLayout)
	tags := metric.BuildTag(metric.NewTag(metric.TagDate, day))
	startTime := time.Now()

	log.Info().Str("date", day).Msg("Sweeping day")
	results, err := r.RunDay(ctx, date)
	if err != nil {
		log.Error().Err(err).Str("date", day).Msg("Day failed")
		return nil, fmt.Errorf("day %s: %w", day, err)
	}
	if len(results) == 0 {
		log.Warn().Str("date", day).Msg("No scoring rows, skipping day")
		metric.Incr(metric.SweepEmptyDays, tags)
		return nil, nil
	}

	if r.sink != nil {
		if err := r.sink.Write(ctx, date, results); err != nil {
			return nil, fmt.Errorf("day %s: write: %w", day, err)
		}
	}

	kpi := types.SummariseDay(date, results)
	metric.Count(metric.SweepRows, int64(kpi.Rows), tags)
	metric.Gauge(metric.SweepBaselineRevenue, kpi.BaselineRevenue, tags)
	metric.Gauge(metric.SweepPolicyRevenue, kpi.PolicyRevenue, tags)
	metric.Timing(metric.SweepDayLatency, time.Since(startTime), tags)
	log.Info().
		Str("date", day).
		Int("rows", kpi.Rows).
		Int("shards", r.numShards).
		Float64("baseline_revenue", kpi.BaselineRevenue).
		Float64("policy_revenue", kpi.PolicyRevenue).
		Float64("uplift", kpi.Uplift()).
		Dur("elapsed", time.Since(startTime)).
		Msg("Day complete")
	return &kpi, nil
}
