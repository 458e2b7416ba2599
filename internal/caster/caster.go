package caster

import (
	"fmt"
	"math"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/schema"
	"github.com/x448/float16"
)

// Caster narrows numeric feature values to the widths declared by a schema.
type Caster struct {
	schema schema.Schema
}

func New(s schema.Schema) *Caster {
	return &Caster{schema: s}
}

// Cast rewrites values of the named numeric column in place. Row order and
// length are preserved; the first value that does not fit fails the call.
func (c *Caster) Cast(column string, values []float64) error {
	f, ok := c.schema.Lookup(column)
	if !ok {
		return fmt.Errorf("%w: %s", sweeperrors.ErrUnknownFeature, column)
	}
	if f.Kind != schema.KindNumeric {
		return fmt.Errorf("feature %s is not numeric", column)
	}
	for i, v := range values {
		cast, err := Value(column, i, f.Width, v)
		if err != nil {
			return err
		}
		values[i] = cast
	}
	return nil
}

// Value returns v as it is represented in width, widened back to float64.
// Casting an already cast value returns it unchanged.
func Value(column string, row int, width schema.Width, v float64) (float64, error) {
	switch width {
	case schema.WidthInt8:
		return toInt(column, row, width, v, math.MinInt8, math.MaxInt8)
	case schema.WidthInt16:
		return toInt(column, row, width, v, math.MinInt16, math.MaxInt16)
	case schema.WidthFloat32:
		if isOverflow(v, math.MaxFloat32) {
			return 0, rangeErr(column, row, width, v, "exceeds largest finite value")
		}
		return float64(float32(v)), nil
	case schema.WidthFloat16:
		if math.IsNaN(v) {
			return v, nil
		}
		if isOverflow(v, math.MaxFloat32) {
			return 0, rangeErr(column, row, width, v, "exceeds largest finite value")
		}
		h := float16.Fromfloat32(float32(v))
		out := float64(h.Float32())
		if math.IsInf(out, 0) && !math.IsInf(v, 0) {
			return 0, rangeErr(column, row, width, v, "exceeds largest finite value")
		}
		return out, nil
	default:
		return 0, fmt.Errorf("column %s: unknown width %s", column, width)
	}
}

func toInt(column string, row int, width schema.Width, v float64, lo, hi float64) (float64, error) {
	switch {
	case math.IsNaN(v):
		return 0, rangeErr(column, row, width, v, "missing value")
	case v < lo || v > hi:
		return 0, rangeErr(column, row, width, v, fmt.Sprintf("outside [%v, %v]", lo, hi))
	case v != math.Trunc(v):
		return 0, rangeErr(column, row, width, v, "not integral")
	}
	return v, nil
}

func isOverflow(v, limit float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v) && math.Abs(v) > limit
}

func rangeErr(column string, row int, width schema.Width, v float64, reason string) error {
	return &sweeperrors.RangeError{Column: column, Row: row, Value: v, Width: width.String(), Reason: reason}
}
