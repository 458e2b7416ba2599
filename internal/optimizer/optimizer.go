package optimizer

import (
	"context"
	"fmt"
	"math"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/encoder"
	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/predictor"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
)

// Score encodes the candidates, predicts them in a single call and fills in
// PredictedUnits and ExpectedRevenue in single precision.
func Score(ctx context.Context, p predictor.Predictor, enc *encoder.Encoder, candidates []types.CandidateRow) error {
	if len(candidates) == 0 {
		return nil
	}
	f, err := enc.Encode(candidates)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	preds, err := p.Predict(ctx, f)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	if len(preds) != len(candidates) {
		return fmt.Errorf("%w: got %d for %d rows", sweeperrors.ErrPredictionCount, len(preds), len(candidates))
	}
	for i := range candidates {
		units := float32(preds[i])
		candidates[i].PredictedUnits = float64(units)
		candidates[i].ExpectedRevenue = float64(float32(candidates[i].EffectivePrice) * units)
	}
	return nil
}

// SelectBest keeps the revenue maximizing candidate of every key, in order of
// first appearance. Ties go to the lowest grid index and NaN revenue loses to
// any number.
func SelectBest(candidates []types.CandidateRow) []types.CandidateRow {
	index := make(map[types.Key]int)
	best := make([]types.CandidateRow, 0)
	for i := range candidates {
		c := candidates[i]
		k := c.Key()
		j, ok := index[k]
		if !ok {
			index[k] = len(best)
			best = append(best, c)
			continue
		}
		if better(c, best[j]) {
			best[j] = c
		}
	}
	return best
}

func better(a, b types.CandidateRow) bool {
	aNaN, bNaN := math.IsNaN(a.ExpectedRevenue), math.IsNaN(b.ExpectedRevenue)
	switch {
	case aNaN && bNaN:
		return a.GridIndex < b.GridIndex
	case aNaN:
		return false
	case bNaN:
		return true
	case a.ExpectedRevenue != b.ExpectedRevenue:
		return a.ExpectedRevenue > b.ExpectedRevenue
	default:
		return a.GridIndex < b.GridIndex
	}
}

// Merge joins scored baselines with their best candidates. Keys missing from
// either side are dropped; output follows baseline order.
func Merge(baseline, best []types.CandidateRow) []types.PolicyResult {
	byKey := make(map[types.Key]*types.CandidateRow, len(best))
	for i := range best {
		byKey[best[i].Key()] = &best[i]
	}
	out := make([]types.PolicyResult, 0, len(baseline))
	for i := range baseline {
		b := &baseline[i]
		p, ok := byKey[b.Key()]
		if !ok {
			continue
		}
		out = append(out, types.PolicyResult{
			Date:                   b.Row.Date,
			StoreNbr:               b.Row.StoreNbr,
			ItemNbr:                b.Row.ItemNbr,
			BaselineDiscountPct:    b.DiscountPct,
			BaselineEffectivePrice: b.EffectivePrice,
			PredUnitsBaseline:      b.PredictedUnits,
			BaselineRevenue:        b.ExpectedRevenue,
			PolicyDiscountPct:      p.DiscountPct,
			PolicyEffectivePrice:   p.EffectivePrice,
			PredUnitsPolicy:        p.PredictedUnits,
			PolicyRevenue:          p.ExpectedRevenue,
		})
	}
	return out
}
