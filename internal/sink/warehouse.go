package sink

import (
	"context"
	"fmt"
	"math"
	"time"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/Meesho/BharatMLStack/policy-sweep/pkg/infra"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	ResultTableName  = "policy_eval"
	defaultBatchSize = 1000
)

// PolicyRecord is one row of the result table. Missing values are stored as
// NULL.
type PolicyRecord struct {
	Date     time.Time `gorm:"column:date;type:date;index:idx_policy_date"`
	StoreNbr int64     `gorm:"column:store_nbr"`
	ItemNbr  int64     `gorm:"column:item_nbr"`

	BaselineDiscountPct    *float64 `gorm:"column:baseline_discount_pct"`
	BaselineEffectivePrice *float64 `gorm:"column:baseline_effective_price"`
	PredUnitsBaseline      *float64 `gorm:"column:pred_units_baseline"`
	BaselineRevenue        *float64 `gorm:"column:baseline_revenue"`

	PolicyDiscountPct    *float64 `gorm:"column:policy_discount_pct"`
	PolicyEffectivePrice *float64 `gorm:"column:policy_effective_price"`
	PredUnitsPolicy      *float64 `gorm:"column:pred_units_policy"`
	PolicyRevenue        *float64 `gorm:"column:policy_revenue"`
}

// TableName returns the default table name for PolicyRecord
func (PolicyRecord) TableName() string {
	return ResultTableName
}

func newPolicyRecord(date time.Time, r *types.PolicyResult) PolicyRecord {
	return PolicyRecord{
		Date:                   date,
		StoreNbr:               r.StoreNbr,
		ItemNbr:                r.ItemNbr,
		BaselineDiscountPct:    orNil(r.BaselineDiscountPct),
		BaselineEffectivePrice: orNil(r.BaselineEffectivePrice),
		PredUnitsBaseline:      orNil(r.PredUnitsBaseline),
		BaselineRevenue:        orNil(r.BaselineRevenue),
		PolicyDiscountPct:      orNil(r.PolicyDiscountPct),
		PolicyEffectivePrice:   orNil(r.PolicyEffectivePrice),
		PredUnitsPolicy:        orNil(r.PredUnitsPolicy),
		PolicyRevenue:          orNil(r.PolicyRevenue),
	}
}

func (p *PolicyRecord) ToResult() types.PolicyResult {
	return types.PolicyResult{
		Date:                   types.NormalizeDate(p.Date),
		StoreNbr:               p.StoreNbr,
		ItemNbr:                p.ItemNbr,
		BaselineDiscountPct:    orNaN(p.BaselineDiscountPct),
		BaselineEffectivePrice: orNaN(p.BaselineEffectivePrice),
		PredUnitsBaseline:      orNaN(p.PredUnitsBaseline),
		BaselineRevenue:        orNaN(p.BaselineRevenue),
		PolicyDiscountPct:      orNaN(p.PolicyDiscountPct),
		PolicyEffectivePrice:   orNaN(p.PolicyEffectivePrice),
		PredUnitsPolicy:        orNaN(p.PredUnitsPolicy),
		PolicyRevenue:          orNaN(p.PolicyRevenue),
	}
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

// Warehouse replaces one date partition of the result table per write.
type Warehouse struct {
	db        *gorm.DB
	table     string
	batchSize int
}

func NewWarehouse(connection *infra.SQLConnection, table string, batchSize int) (*Warehouse, error) {
	if !connection.IsLive() {
		return nil, sweeperrors.ErrConnectionRequired
	}
	if table == "" {
		table = ResultTableName
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Warehouse{db: connection.GetMaster(), table: table, batchSize: batchSize}, nil
}

func (w *Warehouse) Name() string {
	return "warehouse"
}

// Migrate creates the result table if it does not exist.
func (w *Warehouse) Migrate() error {
	return w.db.Table(w.table).AutoMigrate(&PolicyRecord{})
}

// Write deletes every row dated date and inserts results in one transaction.
// Either the whole new partition becomes visible or the old one stays.
func (w *Warehouse) Write(ctx context.Context, date time.Time, results []types.PolicyResult) error {
	date = types.NormalizeDate(date)
	if err := checkDate(date, results); err != nil {
		return err
	}
	records := make([]PolicyRecord, len(results))
	for i := range results {
		records[i] = newPolicyRecord(date, &results[i])
	}

	tx := w.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to start transaction: %w", tx.Error)
	}

	deleted := tx.Table(w.table).Where("date = ?", date).Delete(&PolicyRecord{})
	if deleted.Error != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete partition %s: %w", date.Format(types.DateLayout), deleted.Error)
	}

	if len(records) > 0 {
		if err := tx.Table(w.table).CreateInBatches(records, w.batchSize).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert partition %s: %w", date.Format(types.DateLayout), err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	log.Info().
		Str("table", w.table).
		Str("date", date.Format(types.DateLayout)).
		Int64("replaced", deleted.RowsAffected).
		Int("inserted", len(records)).
		Msg("Partition written")
	return nil
}

// Partition reads back the rows of one date ordered by store and item.
func (w *Warehouse) Partition(ctx context.Context, date time.Time) ([]types.PolicyResult, error) {
	var records []PolicyRecord
	err := w.db.WithContext(ctx).
		Table(w.table).
		Where("date = ?", types.NormalizeDate(date)).
		Order("store_nbr, item_nbr").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read partition: %w", err)
	}
	out := make([]types.PolicyResult, len(records))
	for i := range records {
		out[i] = records[i].ToResult()
	}
	return out, nil
}
