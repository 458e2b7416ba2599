package source

import (
	"math"
	"time"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
)

const (
	ScoringTableName   = "scoring_frame"
	ReferenceTableName = "features_split"
)

// ScoringRecord is one row of the scoring table. Float features may be NULL
// in the warehouse and are read as NaN.
type ScoringRecord struct {
	Date     time.Time `gorm:"column:date;type:date;index:idx_scoring_date_key,priority:1"`
	StoreNbr int64     `gorm:"column:store_nbr;index:idx_scoring_date_key,priority:2"`
	ItemNbr  int64     `gorm:"column:item_nbr;index:idx_scoring_date_key,priority:3"`

	BasePrice    *float64 `gorm:"column:base_price"`
	TimeToExpiry int64    `gorm:"column:time_to_expiry"`

	Lag1LogSales  *float64 `gorm:"column:lag1_log_sales"`
	Lag7LogSales  *float64 `gorm:"column:lag7_log_sales"`
	Lag14LogSales *float64 `gorm:"column:lag14_log_sales"`
	Lag28LogSales *float64 `gorm:"column:lag28_log_sales"`
	Rm7LogSales   *float64 `gorm:"column:rm7_log_sales"`
	Rm28LogSales  *float64 `gorm:"column:rm28_log_sales"`
	PromoInLast7d int64    `gorm:"column:promo_in_last_7d"`

	Dow   int64 `gorm:"column:dow"`
	Month int64 `gorm:"column:month"`
	Year  int64 `gorm:"column:year"`

	Family  string `gorm:"column:family"`
	Class   int64  `gorm:"column:class"`
	Cluster int64  `gorm:"column:cluster"`

	BaselineDiscountPct    *float64 `gorm:"column:baseline_discount_pct"`
	BaselineEffectivePrice *float64 `gorm:"column:baseline_effective_price"`
}

// TableName returns the default table name for ScoringRecord
func (ScoringRecord) TableName() string {
	return ScoringTableName
}

func (r *ScoringRecord) toRow() types.ScoringRow {
	return types.ScoringRow{
		Date:                   types.NormalizeDate(r.Date),
		StoreNbr:               r.StoreNbr,
		ItemNbr:                r.ItemNbr,
		BasePrice:              orNaN(r.BasePrice),
		TimeToExpiry:           r.TimeToExpiry,
		Lag1LogSales:           orNaN(r.Lag1LogSales),
		Lag7LogSales:           orNaN(r.Lag7LogSales),
		Lag14LogSales:          orNaN(r.Lag14LogSales),
		Lag28LogSales:          orNaN(r.Lag28LogSales),
		Rm7LogSales:            orNaN(r.Rm7LogSales),
		Rm28LogSales:           orNaN(r.Rm28LogSales),
		PromoInLast7d:          r.PromoInLast7d,
		Dow:                    r.Dow,
		Month:                  r.Month,
		Year:                   r.Year,
		Family:                 r.Family,
		Class:                  r.Class,
		Cluster:                r.Cluster,
		BaselineDiscountPct:    orNaN(r.BaselineDiscountPct),
		BaselineEffectivePrice: orNaN(r.BaselineEffectivePrice),
	}
}

// NewScoringRecord is the inverse of toRow, used to seed scoring tables.
func NewScoringRecord(row types.ScoringRow) ScoringRecord {
	return ScoringRecord{
		Date:                   types.NormalizeDate(row.Date),
		StoreNbr:               row.StoreNbr,
		ItemNbr:                row.ItemNbr,
		BasePrice:              orNil(row.BasePrice),
		TimeToExpiry:           row.TimeToExpiry,
		Lag1LogSales:           orNil(row.Lag1LogSales),
		Lag7LogSales:           orNil(row.Lag7LogSales),
		Lag14LogSales:          orNil(row.Lag14LogSales),
		Lag28LogSales:          orNil(row.Lag28LogSales),
		Rm7LogSales:            orNil(row.Rm7LogSales),
		Rm28LogSales:           orNil(row.Rm28LogSales),
		PromoInLast7d:          row.PromoInLast7d,
		Dow:                    row.Dow,
		Month:                  row.Month,
		Year:                   row.Year,
		Family:                 row.Family,
		Class:                  row.Class,
		Cluster:                row.Cluster,
		BaselineDiscountPct:    orNil(row.BaselineDiscountPct),
		BaselineEffectivePrice: orNil(row.BaselineEffectivePrice),
	}
}

// ReferenceRecord holds the categorical columns of a training split.
type ReferenceRecord struct {
	Family   string `gorm:"column:family"`
	Class    int64  `gorm:"column:class"`
	StoreNbr int64  `gorm:"column:store_nbr"`
	Cluster  int64  `gorm:"column:cluster"`
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func orNil(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
