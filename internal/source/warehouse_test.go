package source

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/schema"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/vocab"
	"github.com/Meesho/BharatMLStack/policy-sweep/pkg/infra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	aug1 = time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)
	aug2 = aug1.AddDate(0, 0, 1)
)

func newConnection(t *testing.T) *infra.SQLConnection {
	t.Helper()
	db, err := infra.CreateSQLiteConnection(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	conn := &infra.SQLConnection{Master: db}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func scoringRow(date time.Time, store, item int64) types.ScoringRow {
	return types.ScoringRow{
		Date:                   date,
		StoreNbr:               store,
		ItemNbr:                item,
		BasePrice:              4.25,
		TimeToExpiry:           12,
		Lag1LogSales:           1.5,
		Lag7LogSales:           math.NaN(),
		Dow:                    int64(date.Weekday()),
		Month:                  8,
		Year:                   2017,
		Family:                 "DAIRY",
		Class:                  2712,
		Cluster:                8,
		BaselineDiscountPct:    0,
		BaselineEffectivePrice: 4.25,
	}
}

func TestWarehouseLoad(t *testing.T) {
	conn := newConnection(t)
	require.NoError(t, conn.Master.AutoMigrate(&ScoringRecord{}))

	seed := []ScoringRecord{
		NewScoringRecord(scoringRow(aug1, 2, 10)),
		NewScoringRecord(scoringRow(aug1, 1, 11)),
		NewScoringRecord(scoringRow(aug2, 1, 10)),
		NewScoringRecord(scoringRow(aug1, 1, 10)),
	}
	require.NoError(t, conn.Master.Create(&seed).Error)

	w, err := NewWarehouse(conn, "")
	require.NoError(t, err)

	rows, err := w.Load(context.Background(), aug1)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	keys := make([][2]int64, len(rows))
	for i, r := range rows {
		keys[i] = [2]int64{r.StoreNbr, r.ItemNbr}
		assert.Equal(t, aug1, r.Date)
	}
	assert.Equal(t, [][2]int64{{1, 10}, {1, 11}, {2, 10}}, keys)
	assert.Equal(t, 4.25, rows[0].BasePrice)
	assert.Equal(t, "DAIRY", rows[0].Family)
	assert.Equal(t, int64(12), rows[0].TimeToExpiry)
	assert.True(t, math.IsNaN(rows[0].Lag7LogSales))
}

func TestWarehouseLoadEmptyDay(t *testing.T) {
	conn := newConnection(t)
	require.NoError(t, conn.Master.AutoMigrate(&ScoringRecord{}))
	w, err := NewWarehouse(conn, ScoringTableName)
	require.NoError(t, err)

	rows, err := w.Load(context.Background(), aug2)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWarehouseLoadMissingTable(t *testing.T) {
	w, err := NewWarehouse(newConnection(t), "no_such_table")
	require.NoError(t, err)

	_, err = w.Load(context.Background(), aug1)
	assert.Error(t, err)
}

func TestNewWarehouseRequiresConnection(t *testing.T) {
	_, err := NewWarehouse(nil, "")
	assert.True(t, errors.Is(err, sweeperrors.ErrConnectionRequired))
	_, err = NewWarehouse(&infra.SQLConnection{}, "")
	assert.True(t, errors.Is(err, sweeperrors.ErrConnectionRequired))
}

type featureSplit struct {
	Date     time.Time `gorm:"column:date;type:date"`
	StoreNbr int64     `gorm:"column:store_nbr"`
	ItemNbr  int64     `gorm:"column:item_nbr"`
	Family   string    `gorm:"column:family"`
	Class    int64     `gorm:"column:class"`
	Cluster  int64     `gorm:"column:cluster"`
	Split    string    `gorm:"column:split"`
}

func (featureSplit) TableName() string {
	return ReferenceTableName
}

func TestWarehouseReferenceFitsVocabulary(t *testing.T) {
	conn := newConnection(t)
	require.NoError(t, conn.Master.AutoMigrate(&featureSplit{}))
	seed := []featureSplit{
		{Date: aug1, StoreNbr: 3, ItemNbr: 1, Family: "BEVERAGES", Class: 1, Cluster: 8, Split: "train"},
		{Date: aug1, StoreNbr: 1, ItemNbr: 2, Family: "DAIRY", Class: 2, Cluster: 13, Split: "train"},
		{Date: aug2, StoreNbr: 3, ItemNbr: 1, Family: "BEVERAGES", Class: 1, Cluster: 8, Split: "train"},
		{Date: aug2, StoreNbr: 9, ItemNbr: 1, Family: "MEATS", Class: 7, Cluster: 2, Split: "test"},
	}
	require.NoError(t, conn.Master.Create(&seed).Error)

	w, err := NewWarehouse(conn, "")
	require.NoError(t, err)

	b := vocab.NewBuilder(schema.Default().Categorical())
	err = w.Reference(context.Background(), "", "train", func(values map[string]string) error {
		for name, v := range values {
			b.Observe(name, v)
		}
		return nil
	})
	require.NoError(t, err)

	v, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		schema.Family:   {"DAIRY", "BEVERAGES"},
		schema.Class:    {"2", "1"},
		schema.StoreNbr: {"1", "3"},
		schema.Cluster:  {"13", "8"},
	}, v.Map())
}

func TestWarehouseReferenceStopsOnCallbackError(t *testing.T) {
	conn := newConnection(t)
	require.NoError(t, conn.Master.AutoMigrate(&featureSplit{}))
	require.NoError(t, conn.Master.Create(&[]featureSplit{
		{Date: aug1, StoreNbr: 1, ItemNbr: 1, Family: "A", Split: "train"},
		{Date: aug1, StoreNbr: 1, ItemNbr: 2, Family: "B", Split: "train"},
	}).Error)
	w, err := NewWarehouse(conn, "")
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = w.Reference(context.Background(), ReferenceTableName, "train", func(map[string]string) error {
		calls++
		return stop
	})
	assert.True(t, errors.Is(err, stop))
	assert.Equal(t, 1, calls)
}
