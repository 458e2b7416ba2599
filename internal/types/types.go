package types

import (
	"strconv"
	"time"
)

const DateLayout = "2006-01-02"

// Key identifies one (date, store, item) observation.
type Key struct {
	Date     time.Time
	StoreNbr int64
	ItemNbr  int64
}

// ShardKey renders the store/item pair used for shard assignment.
func (k Key) ShardKey() string {
	return strconv.FormatInt(k.StoreNbr, 10) + "|" + strconv.FormatInt(k.ItemNbr, 10)
}

func (k Key) String() string {
	return k.Date.Format(DateLayout) + "/" + k.ShardKey()
}

// ScoringRow is one observation awaiting policy evaluation. It is not
// modified after being loaded.
type ScoringRow struct {
	Date     time.Time
	StoreNbr int64
	ItemNbr  int64

	BasePrice    float64
	TimeToExpiry int64

	Lag1LogSales  float64
	Lag7LogSales  float64
	Lag14LogSales float64
	Lag28LogSales float64
	Rm7LogSales   float64
	Rm28LogSales  float64
	PromoInLast7d int64

	Dow   int64
	Month int64
	Year  int64

	Family  string
	Class   int64
	Cluster int64

	BaselineDiscountPct    float64
	BaselineEffectivePrice float64
}

func (r *ScoringRow) Key() Key {
	return Key{Date: r.Date, StoreNbr: r.StoreNbr, ItemNbr: r.ItemNbr}
}

// BaselineGridIndex marks the candidate built from the price already in effect.
const BaselineGridIndex = -1

// CandidateRow pairs a scoring row with one priced candidate. PredictedUnits
// and ExpectedRevenue are filled in by the optimizer.
type CandidateRow struct {
	Row       *ScoringRow
	GridIndex int

	DiscountPct    float64
	EffectivePrice float64

	PredictedUnits  float64
	ExpectedRevenue float64
}

func (c *CandidateRow) Key() Key {
	return c.Row.Key()
}

func (c *CandidateRow) IsBaseline() bool {
	return c.GridIndex == BaselineGridIndex
}

// PolicyResult is the per-key outcome of a sweep and the unit written to sinks.
type PolicyResult struct {
	Date     time.Time
	StoreNbr int64
	ItemNbr  int64

	BaselineDiscountPct    float64
	BaselineEffectivePrice float64
	PredUnitsBaseline      float64
	BaselineRevenue        float64

	PolicyDiscountPct    float64
	PolicyEffectivePrice float64
	PredUnitsPolicy      float64
	PolicyRevenue        float64
}

func (p *PolicyResult) Key() Key {
	return Key{Date: p.Date, StoreNbr: p.StoreNbr, ItemNbr: p.ItemNbr}
}

// DayKPI summarises one date of results.
type DayKPI struct {
	Date            time.Time
	Rows            int
	BaselineRevenue float64
	PolicyRevenue   float64
}

// Uplift is the relative policy revenue gain over baseline; zero when the
// baseline revenue is zero.
func (k DayKPI) Uplift() float64 {
	if k.BaselineRevenue == 0 {
		return 0
	}
	return (k.PolicyRevenue - k.BaselineRevenue) / k.BaselineRevenue
}

func SummariseDay(date time.Time, results []PolicyResult) DayKPI {
	kpi := DayKPI{Date: date, Rows: len(results)}
	for i := range results {
		kpi.BaselineRevenue += results[i].BaselineRevenue
		kpi.PolicyRevenue += results[i].PolicyRevenue
	}
	return kpi
}

// NormalizeDate truncates t to midnight UTC of its calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
