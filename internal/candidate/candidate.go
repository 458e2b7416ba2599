package candidate

import (
	"math"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/shopspring/decimal"
)

// Price applies discount g to base and rounds to cents, half to even. The
// product is taken in single precision, matching the stored price columns.
// A missing or non-finite base price yields NaN.
func Price(base, g float64) float64 {
	product := float32(base) * float32(1-g)
	if math.IsNaN(float64(product)) || math.IsInf(float64(product), 0) {
		return math.NaN()
	}
	rounded := decimal.NewFromFloat(float64(product)).RoundBank(2)
	return float64(float32(rounded.InexactFloat64()))
}

// Generate returns one candidate per grid value, in grid order.
func Generate(row *types.ScoringRow, grid []float64) []types.CandidateRow {
	out := make([]types.CandidateRow, len(grid))
	for i, g := range grid {
		out[i] = types.CandidateRow{
			Row:            row,
			GridIndex:      i,
			DiscountPct:    float64(float32(g)),
			EffectivePrice: Price(row.BasePrice, g),
		}
	}
	return out
}

// Baseline is the single candidate at the price already in effect.
func Baseline(row *types.ScoringRow) types.CandidateRow {
	return types.CandidateRow{
		Row:            row,
		GridIndex:      types.BaselineGridIndex,
		DiscountPct:    row.BaselineDiscountPct,
		EffectivePrice: row.BaselineEffectivePrice,
	}
}

// Expand generates candidates for every row, row-major.
func Expand(rows []types.ScoringRow, grid []float64) []types.CandidateRow {
	out := make([]types.CandidateRow, 0, len(rows)*len(grid))
	for i := range rows {
		out = append(out, Generate(&rows[i], grid)...)
	}
	return out
}

func Baselines(rows []types.ScoringRow) []types.CandidateRow {
	out := make([]types.CandidateRow, len(rows))
	for i := range rows {
		out[i] = Baseline(&rows[i])
	}
	return out
}
