package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/schema"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/Meesho/BharatMLStack/policy-sweep/pkg/infra"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Warehouse interface {
	Load(ctx context.Context, date time.Time) ([]types.ScoringRow, error)
	Reference(ctx context.Context, table, split string, fn func(values map[string]string) error) error
}

type warehouse struct {
	db    *gorm.DB
	table string
}

// NewWarehouse reads scoring rows from table, falling back to scoring_frame.
// Reads go to the slave connection when one is configured.
func NewWarehouse(connection *infra.SQLConnection, table string) (Warehouse, error) {
	if !connection.IsLive() {
		return nil, sweeperrors.ErrConnectionRequired
	}
	if table == "" {
		table = ScoringTableName
	}
	return &warehouse{db: connection.GetSlave(), table: table}, nil
}

// Load returns every row of date ordered by store and item.
func (w *warehouse) Load(ctx context.Context, date time.Time) ([]types.ScoringRow, error) {
	var records []ScoringRecord
	err := w.db.WithContext(ctx).
		Table(w.table).
		Where("date = ?", types.NormalizeDate(date)).
		Order("store_nbr, item_nbr").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring rows from %s: %w", w.table, err)
	}

	rows := make([]types.ScoringRow, len(records))
	for i := range records {
		rows[i] = records[i].toRow()
	}
	log.Debug().Str("table", w.table).Str("date", date.Format(types.DateLayout)).Int("rows", len(rows)).Msg("Loaded scoring rows")
	return rows, nil
}

// Reference streams the categorical columns of one split of a training table,
// row by row, keyed by feature name. An empty split reads the whole table.
func (w *warehouse) Reference(ctx context.Context, table, split string, fn func(values map[string]string) error) error {
	if table == "" {
		table = ReferenceTableName
	}
	query := w.db.WithContext(ctx).
		Table(table).
		Select("family, class, store_nbr, cluster")
	if split != "" {
		query = query.Where("split = ?", split)
	}
	rows, err := query.Order("date, store_nbr, item_nbr").Rows()
	if err != nil {
		return fmt.Errorf("failed to query reference table %s: %w", table, err)
	}
	defer rows.Close()

	values := make(map[string]string, 4)
	for rows.Next() {
		var rec ReferenceRecord
		if err := w.db.ScanRows(rows, &rec); err != nil {
			return fmt.Errorf("failed to scan reference row: %w", err)
		}
		values[schema.Family] = rec.Family
		values[schema.Class] = strconv.FormatInt(rec.Class, 10)
		values[schema.StoreNbr] = strconv.FormatInt(rec.StoreNbr, 10)
		values[schema.Cluster] = strconv.FormatInt(rec.Cluster, 10)
		if err := fn(values); err != nil {
			return err
		}
	}
	return rows.Err()
}
