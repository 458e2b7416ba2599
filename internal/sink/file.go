package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/xuri/excelize/v2"
)

// CSV appends results to a local file, writing the header only when the file
// is new or empty. Reruns append duplicate rows.
type CSV struct {
	path string
}

func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Name() string {
	return "csv"
}

func (c *CSV) Write(_ context.Context, _ time.Time, results []types.PolicyResult) error {
	if err := ensureDir(c.path); err != nil {
		return err
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Columns); err != nil {
			f.Close()
			return err
		}
	}
	for i := range results {
		if err := w.Write(record(&results[i])); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	return f.Close()
}

// Workbook appends results to the first sheet of an XLSX file for manual
// inspection. Like CSV it is append only.
type Workbook struct {
	path string
}

func NewWorkbook(path string) *Workbook {
	return &Workbook{path: path}
}

func (b *Workbook) Name() string {
	return "xlsx"
}

func (b *Workbook) Write(_ context.Context, _ time.Time, results []types.PolicyResult) error {
	if err := ensureDir(b.path); err != nil {
		return err
	}
	f, err := excelize.OpenFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		f, err = excelize.NewFile(), nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", b.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	next := len(rows) + 1
	if next == 1 {
		if err := setRow(f, sheet, next, Columns); err != nil {
			return err
		}
		next++
	}
	for i := range results {
		if err := setRow(f, sheet, next, workbookRow(&results[i])); err != nil {
			return err
		}
		next++
	}
	return f.SaveAs(b.path)
}

func workbookRow(r *types.PolicyResult) []interface{} {
	return []interface{}{
		r.Date.Format(types.DateLayout),
		r.StoreNbr,
		r.ItemNbr,
		float32(r.BaselineDiscountPct),
		float32(r.BaselineEffectivePrice),
		float32(r.PredUnitsBaseline),
		float32(r.BaselineRevenue),
		float32(r.PolicyDiscountPct),
		float32(r.PolicyEffectivePrice),
		float32(r.PredUnitsPolicy),
		float32(r.PolicyRevenue),
	}
}

func setRow[T any](f *excelize.File, sheet string, row int, values []T) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
