package schema

import (
	"fmt"
	"strconv"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
)

type Kind int

const (
	KindNumeric Kind = iota
	KindCategorical
)

// Width is the bounded representation a numeric feature is cast to before
// inference.
type Width int

const (
	WidthFloat32 Width = iota
	WidthFloat16
	WidthInt8
	WidthInt16
)

func (w Width) String() string {
	switch w {
	case WidthFloat32:
		return "float32"
	case WidthFloat16:
		return "float16"
	case WidthInt8:
		return "int8"
	case WidthInt16:
		return "int16"
	default:
		return "width(" + strconv.Itoa(int(w)) + ")"
	}
}

func (w Width) IsInteger() bool {
	return w == WidthInt8 || w == WidthInt16
}

// Feature names as used by the trained models.
const (
	EffectivePrice = "effective_price"
	DiscountPct    = "discount_pct"
	TimeToExpiry   = "time_to_expiry"
	BasePrice      = "base_price"
	Lag1LogSales   = "lag1_log_sales"
	Lag7LogSales   = "lag7_log_sales"
	Lag14LogSales  = "lag14_log_sales"
	Lag28LogSales  = "lag28_log_sales"
	Rm7LogSales    = "rm7_log_sales"
	Rm28LogSales   = "rm28_log_sales"
	PromoInLast7d  = "promo_in_last_7d"
	Dow            = "dow"
	Month          = "month"
	Year           = "year"
	Family         = "family"
	Class          = "class"
	StoreNbr       = "store_nbr"
	Cluster        = "cluster"
)

type Feature struct {
	Name  string
	Kind  Kind
	Width Width

	numeric     func(c *types.CandidateRow) float64
	categorical func(r *types.ScoringRow) string
}

// Numeric reads the feature from a candidate. Price and discount come from the
// candidate, everything else from the underlying scoring row.
func (f Feature) Numeric(c *types.CandidateRow) float64 {
	return f.numeric(c)
}

func (f Feature) Categorical(r *types.ScoringRow) string {
	return f.categorical(r)
}

// Schema is the ordered feature list a model was trained on. Values are
// immutable; modifiers return a copy.
type Schema struct {
	features []Feature
	index    map[string]int
}

func newSchema(features []Feature) Schema {
	index := make(map[string]int, len(features))
	for i, f := range features {
		index[f.Name] = i
	}
	return Schema{features: features, index: index}
}

func Default() Schema {
	return newSchema([]Feature{
		numeric(EffectivePrice, WidthFloat32, func(c *types.CandidateRow) float64 { return c.EffectivePrice }),
		numeric(DiscountPct, WidthFloat32, func(c *types.CandidateRow) float64 { return c.DiscountPct }),
		numeric(TimeToExpiry, WidthInt16, func(c *types.CandidateRow) float64 { return float64(c.Row.TimeToExpiry) }),
		numeric(BasePrice, WidthFloat32, func(c *types.CandidateRow) float64 { return c.Row.BasePrice }),
		numeric(Lag1LogSales, WidthFloat32, func(c *types.CandidateRow) float64 { return c.Row.Lag1LogSales }),
		numeric(Lag7LogSales, WidthFloat32, func(c *types.CandidateRow) float64 { return c.Row.Lag7LogSales }),
		numeric(Lag14LogSales, WidthFloat32, func(c *types.CandidateRow) float64 { return c.Row.Lag14LogSales }),
		numeric(Lag28LogSales, WidthFloat32, func(c *types.CandidateRow) float64 { return c.Row.Lag28LogSales }),
		numeric(Rm7LogSales, WidthFloat32, func(c *types.CandidateRow) float64 { return c.Row.Rm7LogSales }),
		numeric(Rm28LogSales, WidthFloat32, func(c *types.CandidateRow) float64 { return c.Row.Rm28LogSales }),
		numeric(PromoInLast7d, WidthInt8, func(c *types.CandidateRow) float64 { return float64(c.Row.PromoInLast7d) }),
		numeric(Dow, WidthInt8, func(c *types.CandidateRow) float64 { return float64(c.Row.Dow) }),
		numeric(Month, WidthInt8, func(c *types.CandidateRow) float64 { return float64(c.Row.Month) }),
		numeric(Year, WidthInt16, func(c *types.CandidateRow) float64 { return float64(c.Row.Year) }),
		categorical(Family, func(r *types.ScoringRow) string { return r.Family }),
		categorical(Class, func(r *types.ScoringRow) string { return strconv.FormatInt(r.Class, 10) }),
		categorical(StoreNbr, func(r *types.ScoringRow) string { return strconv.FormatInt(r.StoreNbr, 10) }),
		categorical(Cluster, func(r *types.ScoringRow) string { return strconv.FormatInt(r.Cluster, 10) }),
	})
}

func numeric(name string, width Width, fn func(c *types.CandidateRow) float64) Feature {
	return Feature{Name: name, Kind: KindNumeric, Width: width, numeric: fn}
}

func categorical(name string, fn func(r *types.ScoringRow) string) Feature {
	return Feature{Name: name, Kind: KindCategorical, categorical: fn}
}

func (s Schema) Len() int {
	return len(s.features)
}

func (s Schema) Feature(i int) Feature {
	return s.features[i]
}

func (s Schema) Names() []string {
	names := make([]string, len(s.features))
	for i, f := range s.features {
		names[i] = f.Name
	}
	return names
}

func (s Schema) Categorical() []string {
	var names []string
	for _, f := range s.features {
		if f.Kind == KindCategorical {
			names = append(names, f.Name)
		}
	}
	return names
}

func (s Schema) Lookup(name string) (Feature, bool) {
	i, ok := s.index[name]
	if !ok {
		return Feature{}, false
	}
	return s.features[i], true
}

// WithWidth returns a copy of the schema with a float feature re-declared at
// another float width. Integer widths are fixed by the training data.
func (s Schema) WithWidth(name string, width Width) (Schema, error) {
	i, ok := s.index[name]
	if !ok {
		return s, fmt.Errorf("%w: %s", sweeperrors.ErrUnknownFeature, name)
	}
	f := s.features[i]
	if f.Kind != KindNumeric || f.Width.IsInteger() || width.IsInteger() {
		return s, fmt.Errorf("feature %s: cannot change width %s to %s", name, f.Width, width)
	}
	features := make([]Feature, len(s.features))
	copy(features, s.features)
	features[i].Width = width
	return newSchema(features), nil
}
