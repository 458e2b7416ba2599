package sweep

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/encoder"
	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/frame"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/predictor"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/schema"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	aug1 = time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)
	aug2 = aug1.AddDate(0, 0, 1)
	aug3 = aug1.AddDate(0, 0, 2)
	grid = []float64{0.0, 0.1, 0.2, 0.3, 0.4, 0.5}
)

type memorySource struct {
	days map[time.Time][]types.ScoringRow
	errs map[time.Time]error
}

func (m *memorySource) Load(_ context.Context, date time.Time) ([]types.ScoringRow, error) {
	if err := m.errs[date]; err != nil {
		return nil, err
	}
	return m.days[date], nil
}

type recordingSink struct {
	mu      sync.Mutex
	written map[time.Time][]types.PolicyResult
	order   []time.Time
}

func (s *recordingSink) Write(_ context.Context, date time.Time, results []types.PolicyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written == nil {
		s.written = make(map[time.Time][]types.PolicyResult)
	}
	s.written[date] = results
	s.order = append(s.order, date)
	return nil
}

func newEncoder(t *testing.T) *encoder.Encoder {
	t.Helper()
	v, err := vocab.New(map[string][]string{
		schema.Family:   {"GROCERY I", "DAIRY"},
		schema.Class:    {"1040", "2712"},
		schema.StoreNbr: {"1", "2", "3", "4", "5"},
		schema.Cluster:  {"13", "8"},
	})
	require.NoError(t, err)
	enc, err := encoder.New(schema.Default(), v)
	require.NoError(t, err)
	return enc
}

// demandCurve is a synthetic predictor whose units fall with price and vary by
// store code, so different rows pick different discounts.
func demandCurve() predictor.Predictor {
	return predictor.Func(func(_ context.Context, f *frame.Frame) ([]float64, error) {
		price, _ := f.Lookup(schema.EffectivePrice)
		store, _ := f.Lookup(schema.StoreNbr)
		out := make([]float64, f.Rows())
		for i := range out {
			out[i] = 40 - 3*price.Float64(i) + 2*store.Float64(i)
		}
		return out, nil
	})
}

func dayRows(date time.Time, n int) []types.ScoringRow {
	rows := make([]types.ScoringRow, 0, n)
	for i := 0; i < n; i++ {
		base := 2.0 + float64(i%9)*0.75
		rows = append(rows, types.ScoringRow{
			Date:                   date,
			StoreNbr:               int64(1 + i%6),
			ItemNbr:                int64(100 + i),
			BasePrice:              base,
			TimeToExpiry:           int64(i % 60),
			Lag1LogSales:           0.5,
			Dow:                    int64(date.Weekday()),
			Month:                  int64(date.Month()),
			Year:                   int64(date.Year()),
			Family:                 []string{"GROCERY I", "DAIRY", "PRODUCE"}[i%3],
			Class:                  1040,
			Cluster:                13,
			BaselineDiscountPct:    0.1,
			BaselineEffectivePrice: base * 0.9,
		})
	}
	return rows
}

func newRunner(t *testing.T, src Source, sink Sink, shards, concurrency int, hash HashFunc) *Runner {
	t.Helper()
	r, err := NewRunner(demandCurve(), newEncoder(t), src, sink, Options{
		Grid:        grid,
		NumShards:   shards,
		Hash:        hash,
		Concurrency: concurrency,
	})
	require.NoError(t, err)
	return r
}

func sortedByKey(results []types.PolicyResult) []types.PolicyResult {
	out := append([]types.PolicyResult(nil), results...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].StoreNbr != out[j].StoreNbr {
			return out[i].StoreNbr < out[j].StoreNbr
		}
		return out[i].ItemNbr < out[j].ItemNbr
	})
	return out
}

func TestEvaluateOneResultPerKey(t *testing.T) {
	r := newRunner(t, nil, nil, 1, 1, nil)
	rows := dayRows(aug1, 30)

	results, err := r.Evaluate(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, results, len(rows))
	for i, res := range results {
		assert.Equal(t, rows[i].Key(), res.Key())
		assert.GreaterOrEqual(t, res.PolicyRevenue, 0.0)
	}
}

func TestShardInvariance(t *testing.T) {
	rows := dayRows(aug1, 200)

	single, err := newRunner(t, nil, nil, 1, 1, nil).Evaluate(context.Background(), rows)
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		hash HashFunc
	}{{"xxhash", XXHash}, {"murmur3", Murmur3}, {"xxh3", XXH3}} {
		t.Run(tc.name, func(t *testing.T) {
			sharded, err := newRunner(t, nil, nil, 4, 1, tc.hash).Evaluate(context.Background(), rows)
			require.NoError(t, err)
			assert.Equal(t, sortedByKey(single), sortedByKey(sharded))
		})
	}
}

func TestConcurrentShardsKeepShardOrder(t *testing.T) {
	rows := dayRows(aug1, 120)

	sequential, err := newRunner(t, nil, nil, 4, 1, nil).Evaluate(context.Background(), rows)
	require.NoError(t, err)
	concurrent, err := newRunner(t, nil, nil, 4, 4, nil).Evaluate(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, sequential, concurrent)
}

func TestPartition(t *testing.T) {
	rows := dayRows(aug1, 50)
	shards := Partition(rows, 3, XXHash)
	require.Len(t, shards, 3)

	total := 0
	for s, shard := range shards {
		total += len(shard)
		for _, row := range shard {
			assert.Equal(t, uint64(s), XXHash(row.Key().ShardKey())%3)
		}
	}
	assert.Equal(t, len(rows), total)
	assert.Len(t, Partition(rows, 1, XXHash), 1)
}

func TestHashByName(t *testing.T) {
	h, err := HashByName("murmur3")
	require.NoError(t, err)
	assert.Equal(t, Murmur3("1|100"), h("1|100"))

	h, err = HashByName("")
	require.NoError(t, err)
	assert.Equal(t, XXHash("1|100"), h("1|100"))

	h, err = HashByName("xxh3")
	require.NoError(t, err)
	assert.Equal(t, XXH3("1|100"), h("1|100"))

	_, err = HashByName("fnv")
	assert.True(t, errors.Is(err, sweeperrors.ErrUnsupportedHash))
}

func TestEvaluateEmptyDay(t *testing.T) {
	r := newRunner(t, nil, nil, 4, 2, nil)
	results, err := r.Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEvaluateRejectsDuplicateKeys(t *testing.T) {
	r := newRunner(t, nil, nil, 1, 1, nil)
	rows := dayRows(aug1, 3)
	rows = append(rows, rows[1])

	_, err := r.Evaluate(context.Background(), rows)
	assert.True(t, errors.Is(err, sweeperrors.ErrDuplicateKey))
}

func TestEvaluateRangeErrorAbortsDay(t *testing.T) {
	r := newRunner(t, nil, nil, 2, 2, nil)
	rows := dayRows(aug1, 10)
	rows[7].TimeToExpiry = 100000

	_, err := r.Evaluate(context.Background(), rows)
	var rangeErr *sweeperrors.RangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, schema.TimeToExpiry, rangeErr.Column)
}

func TestEvaluateMissingBasePrice(t *testing.T) {
	rows := dayRows(aug1, 10)
	clean, err := newRunner(t, nil, nil, 2, 2, nil).Evaluate(context.Background(), rows)
	require.NoError(t, err)

	rows[3].BasePrice = math.NaN()
	rows[3].BaselineEffectivePrice = math.NaN()
	results, err := newRunner(t, nil, nil, 2, 2, nil).Evaluate(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, results, len(rows))

	byKey := make(map[types.Key]types.PolicyResult, len(clean))
	for _, res := range clean {
		byKey[res.Key()] = res
	}
	for _, res := range results {
		if res.Key() == rows[3].Key() {
			assert.True(t, math.IsNaN(res.PolicyRevenue))
			assert.True(t, math.IsNaN(res.PolicyEffectivePrice))
			assert.Equal(t, 0.0, res.PolicyDiscountPct)
			continue
		}
		assert.Equal(t, byKey[res.Key()], res)
	}
}

func TestRun(t *testing.T) {
	src := &memorySource{days: map[time.Time][]types.ScoringRow{
		aug1: dayRows(aug1, 12),
		aug3: dayRows(aug3, 5),
	}}
	sink := &recordingSink{}
	r := newRunner(t, src, sink, 2, 1, nil)

	kpis, err := r.Run(context.Background(), aug1, aug3)
	require.NoError(t, err)

	require.Len(t, kpis, 2)
	assert.Equal(t, aug1, kpis[0].Date)
	assert.Equal(t, 12, kpis[0].Rows)
	assert.Equal(t, aug3, kpis[1].Date)
	assert.Equal(t, []time.Time{aug1, aug3}, sink.order)
	assert.Len(t, sink.written[aug3], 5)

	var policy float64
	for _, res := range sink.written[aug1] {
		policy += res.PolicyRevenue
	}
	assert.Equal(t, policy, kpis[0].PolicyRevenue)
}

func TestRunStopsAtFailedDay(t *testing.T) {
	boom := errors.New("warehouse unavailable")
	src := &memorySource{
		days: map[time.Time][]types.ScoringRow{
			aug1: dayRows(aug1, 4),
			aug3: dayRows(aug3, 4),
		},
		errs: map[time.Time]error{aug2: boom},
	}
	sink := &recordingSink{}
	r := newRunner(t, src, sink, 1, 1, nil)

	kpis, err := r.Run(context.Background(), aug1, aug3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Len(t, kpis, 1)
	assert.Equal(t, []time.Time{aug1}, sink.order)
}

func TestRunRejectsReversedRange(t *testing.T) {
	r := newRunner(t, &memorySource{}, nil, 1, 1, nil)
	_, err := r.Run(context.Background(), aug2, aug1)
	assert.True(t, errors.Is(err, sweeperrors.ErrInvalidDateRange))
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRunner(t, &memorySource{}, nil, 1, 1, nil)

	_, err := r.Run(ctx, aug1, aug3)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewRunnerRejectsEmptyGrid(t *testing.T) {
	_, err := NewRunner(demandCurve(), newEncoder(t), nil, nil, Options{})
	assert.True(t, errors.Is(err, sweeperrors.ErrInvalidGrid))
}
