package vocab

import (
	"fmt"
	"sort"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
)

// Sentinel stands in for every categorical value unseen at fit time. Fitted
// vocabularies never contain it.
const Sentinel = "__UNK__"

// Fit returns the distinct values in order of first occurrence, sentinel
// excluded.
func Fit(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	known := make([]string, 0)
	for _, v := range values {
		if v == Sentinel {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		known = append(known, v)
	}
	return known
}

// Apply maps every value missing from known to the sentinel. It never fails.
func Apply(values []string, known []string) []string {
	set := make(map[string]struct{}, len(known))
	for _, k := range known {
		set[k] = struct{}{}
	}
	out := make([]string, len(values))
	for i, v := range values {
		if _, ok := set[v]; ok {
			out[i] = v
		} else {
			out[i] = Sentinel
		}
	}
	return out
}

// Column is the fitted vocabulary of one categorical feature. Codes follow the
// value order; the sentinel takes the code after the last known value.
type Column struct {
	values []string
	codes  map[string]int32
}

func NewColumn(values []string) (*Column, error) {
	codes := make(map[string]int32, len(values))
	for i, v := range values {
		if v == Sentinel {
			return nil, fmt.Errorf("%w: sentinel %q present at position %d", sweeperrors.ErrInvalidVocabulary, Sentinel, i)
		}
		if _, dup := codes[v]; dup {
			return nil, fmt.Errorf("%w: duplicate value %q", sweeperrors.ErrInvalidVocabulary, v)
		}
		codes[v] = int32(i)
	}
	cp := make([]string, len(values))
	copy(cp, values)
	return &Column{values: cp, codes: codes}, nil
}

func (c *Column) Len() int {
	return len(c.values)
}

func (c *Column) Values() []string {
	cp := make([]string, len(c.values))
	copy(cp, c.values)
	return cp
}

// Levels lists every category a value can encode to: the known values
// followed by the sentinel.
func (c *Column) Levels() []string {
	levels := make([]string, 0, len(c.values)+1)
	levels = append(levels, c.values...)
	return append(levels, Sentinel)
}

func (c *Column) Contains(value string) bool {
	_, ok := c.codes[value]
	return ok
}

// Lookup is the first encode step: string to category.
func (c *Column) Lookup(value string) string {
	if c.Contains(value) {
		return value
	}
	return Sentinel
}

// Code is the second encode step: category to integer index.
func (c *Column) Code(category string) int32 {
	if code, ok := c.codes[category]; ok {
		return code
	}
	return c.SentinelCode()
}

func (c *Column) SentinelCode() int32 {
	return int32(len(c.values))
}

// Encode runs both steps.
func (c *Column) Encode(value string) int32 {
	return c.Code(c.Lookup(value))
}

// Vocabulary maps categorical feature names to their fitted columns. It is
// read-only once built.
type Vocabulary struct {
	columns map[string]*Column
}

func New(values map[string][]string) (Vocabulary, error) {
	columns := make(map[string]*Column, len(values))
	for name, vs := range values {
		col, err := NewColumn(vs)
		if err != nil {
			return Vocabulary{}, fmt.Errorf("column %s: %w", name, err)
		}
		columns[name] = col
	}
	return Vocabulary{columns: columns}, nil
}

func (v Vocabulary) Column(name string) (*Column, bool) {
	col, ok := v.columns[name]
	return col, ok
}

func (v Vocabulary) Names() []string {
	names := make([]string, 0, len(v.columns))
	for name := range v.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Require checks that every named categorical feature has a fitted column.
func (v Vocabulary) Require(names []string) error {
	for _, name := range names {
		if _, ok := v.columns[name]; !ok {
			return fmt.Errorf("%w: %s", sweeperrors.ErrMissingVocabulary, name)
		}
	}
	return nil
}

// Map returns the persisted form: name to known values, sentinel excluded.
func (v Vocabulary) Map() map[string][]string {
	out := make(map[string][]string, len(v.columns))
	for name, col := range v.columns {
		out[name] = col.Values()
	}
	return out
}

// Builder fits several categorical columns in a single pass over a reference
// dataset.
type Builder struct {
	order  []string
	seen   map[string]map[string]struct{}
	values map[string][]string
}

func NewBuilder(columns []string) *Builder {
	b := &Builder{
		order:  append([]string(nil), columns...),
		seen:   make(map[string]map[string]struct{}, len(columns)),
		values: make(map[string][]string, len(columns)),
	}
	for _, c := range columns {
		b.seen[c] = make(map[string]struct{})
		b.values[c] = make([]string, 0)
	}
	return b
}

// Observe records one value for column. Unknown columns are ignored.
func (b *Builder) Observe(column, value string) {
	seen, ok := b.seen[column]
	if !ok || value == Sentinel {
		return
	}
	if _, dup := seen[value]; dup {
		return
	}
	seen[value] = struct{}{}
	b.values[column] = append(b.values[column], value)
}

func (b *Builder) Build() (Vocabulary, error) {
	return New(b.values)
}
