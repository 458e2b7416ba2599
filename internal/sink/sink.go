package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/Meesho/BharatMLStack/policy-sweep/pkg/metric"
)

// Sink persists the results of one date.
type Sink interface {
	Name() string
	Write(ctx context.Context, date time.Time, results []types.PolicyResult) error
}

// Columns is the output layout shared by every sink.
var Columns = []string{
	"date",
	"store_nbr",
	"item_nbr",
	"baseline_discount_pct",
	"baseline_effective_price",
	"pred_units_baseline",
	"baseline_revenue",
	"policy_discount_pct",
	"policy_effective_price",
	"pred_units_policy",
	"policy_revenue",
}

// Multi writes to each sink in order and stops at the first failure. Every
// write is timed per sink.
type Multi []Sink

func (m Multi) Name() string {
	return "multi"
}

func (m Multi) Write(ctx context.Context, date time.Time, results []types.PolicyResult) error {
	day := date.Format(types.DateLayout)
	for _, s := range m {
		start := time.Now()
		if err := s.Write(ctx, date, results); err != nil {
			return fmt.Errorf("%s sink: %w", s.Name(), err)
		}
		metric.Timing(metric.SweepSinkLatency, time.Since(start), metric.BuildTag(
			metric.NewTag(metric.TagDate, day),
			metric.NewTag(metric.TagSink, s.Name()),
		))
	}
	return nil
}

func record(r *types.PolicyResult) []string {
	return []string{
		r.Date.Format(types.DateLayout),
		strconv.FormatInt(r.StoreNbr, 10),
		strconv.FormatInt(r.ItemNbr, 10),
		formatFloat32(r.BaselineDiscountPct),
		formatFloat32(r.BaselineEffectivePrice),
		formatFloat32(r.PredUnitsBaseline),
		formatFloat32(r.BaselineRevenue),
		formatFloat32(r.PolicyDiscountPct),
		formatFloat32(r.PolicyEffectivePrice),
		formatFloat32(r.PredUnitsPolicy),
		formatFloat32(r.PolicyRevenue),
	}
}

// formatFloat32 prints the shortest text that reads back as the same float32,
// the width prices and predictions are computed in.
func formatFloat32(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 32)
}

func checkDate(date time.Time, results []types.PolicyResult) error {
	want := types.NormalizeDate(date)
	for i := range results {
		if !types.NormalizeDate(results[i].Date).Equal(want) {
			return fmt.Errorf("result %d dated %s does not belong to partition %s", i,
				results[i].Date.Format(types.DateLayout), want.Format(types.DateLayout))
		}
	}
	return nil
}
