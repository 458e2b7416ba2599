package frame

import (
	"fmt"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/schema"
	"github.com/x448/float16"
)

// Column holds one feature for every row of a frame, stored in its declared
// width. Categorical columns hold codes into Levels.
type Column struct {
	Name  string
	Kind  schema.Kind
	Width schema.Width

	f32    []float32
	f16    []float16.Float16
	i8     []int8
	i16    []int16
	codes  []int32
	levels []string
}

func (c *Column) Len() int {
	if c.Kind == schema.KindCategorical {
		return len(c.codes)
	}
	switch c.Width {
	case schema.WidthFloat16:
		return len(c.f16)
	case schema.WidthInt8:
		return len(c.i8)
	case schema.WidthInt16:
		return len(c.i16)
	default:
		return len(c.f32)
	}
}

// Float64 widens the value at row i. Categorical columns return their code.
func (c *Column) Float64(i int) float64 {
	if c.Kind == schema.KindCategorical {
		return float64(c.codes[i])
	}
	switch c.Width {
	case schema.WidthFloat16:
		return float64(c.f16[i].Float32())
	case schema.WidthInt8:
		return float64(c.i8[i])
	case schema.WidthInt16:
		return float64(c.i16[i])
	default:
		return float64(c.f32[i])
	}
}

func (c *Column) Code(i int) int32 {
	return c.codes[i]
}

// Category returns the level a categorical row was encoded to.
func (c *Column) Category(i int) string {
	return c.levels[c.codes[i]]
}

func (c *Column) Levels() []string {
	return c.levels
}

// Frame is a column-oriented batch of encoded model inputs. Column order is
// the schema order the frame was built in.
type Frame struct {
	rows    int
	columns []*Column
	index   map[string]int
}

func New(rows int) *Frame {
	return &Frame{rows: rows, index: make(map[string]int)}
}

func (f *Frame) Rows() int {
	return f.rows
}

func (f *Frame) NumColumns() int {
	return len(f.columns)
}

func (f *Frame) Column(i int) *Column {
	return f.columns[i]
}

func (f *Frame) Lookup(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// AddNumeric appends a numeric column. Values must already be representable
// in width; they are narrowed without further checks.
func (f *Frame) AddNumeric(name string, width schema.Width, values []float64) error {
	if err := f.checkAdd(name, len(values)); err != nil {
		return err
	}
	c := &Column{Name: name, Kind: schema.KindNumeric, Width: width}
	switch width {
	case schema.WidthFloat16:
		c.f16 = make([]float16.Float16, len(values))
		for i, v := range values {
			c.f16[i] = float16.Fromfloat32(float32(v))
		}
	case schema.WidthInt8:
		c.i8 = make([]int8, len(values))
		for i, v := range values {
			c.i8[i] = int8(v)
		}
	case schema.WidthInt16:
		c.i16 = make([]int16, len(values))
		for i, v := range values {
			c.i16[i] = int16(v)
		}
	case schema.WidthFloat32:
		c.f32 = make([]float32, len(values))
		for i, v := range values {
			c.f32[i] = float32(v)
		}
	default:
		return fmt.Errorf("column %s: unknown width %s", name, width)
	}
	f.append(c)
	return nil
}

// AddCategorical appends a categorical column. Every code must index levels.
func (f *Frame) AddCategorical(name string, codes []int32, levels []string) error {
	if err := f.checkAdd(name, len(codes)); err != nil {
		return err
	}
	for i, code := range codes {
		if code < 0 || int(code) >= len(levels) {
			return fmt.Errorf("column %s: code %d at row %d outside %d levels", name, code, i, len(levels))
		}
	}
	f.append(&Column{Name: name, Kind: schema.KindCategorical, codes: codes, levels: levels})
	return nil
}

func (f *Frame) checkAdd(name string, n int) error {
	if n != f.rows {
		return fmt.Errorf("column %s: %d values for %d rows", name, n, f.rows)
	}
	if _, dup := f.index[name]; dup {
		return fmt.Errorf("column %s already present", name)
	}
	return nil
}

func (f *Frame) append(c *Column) {
	f.index[c.Name] = len(f.columns)
	f.columns = append(f.columns, c)
}

// Dense writes rows [start, end) into dst in row-major float64 layout and
// returns it, growing dst when it is too small.
func (f *Frame) Dense(start, end int, dst []float64) []float64 {
	ncols := len(f.columns)
	need := (end - start) * ncols
	if cap(dst) < need {
		dst = make([]float64, need)
	}
	dst = dst[:need]
	for j, c := range f.columns {
		for i := start; i < end; i++ {
			dst[(i-start)*ncols+j] = c.Float64(i)
		}
	}
	return dst
}
