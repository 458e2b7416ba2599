package encoder

import (
	"fmt"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/caster"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/frame"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/schema"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/vocab"
)

// Encoder turns candidate rows into model input frames the same way the
// training pipeline did: numeric columns are cast to their widths, then
// categorical columns are mapped through the fitted vocabulary.
type Encoder struct {
	schema  schema.Schema
	caster  *caster.Caster
	columns []*vocab.Column
}

func New(s schema.Schema, v vocab.Vocabulary) (*Encoder, error) {
	if err := v.Require(s.Categorical()); err != nil {
		return nil, err
	}
	columns := make([]*vocab.Column, s.Len())
	for i := 0; i < s.Len(); i++ {
		f := s.Feature(i)
		if f.Kind == schema.KindCategorical {
			columns[i], _ = v.Column(f.Name)
		}
	}
	return &Encoder{schema: s, caster: caster.New(s), columns: columns}, nil
}

func (e *Encoder) Schema() schema.Schema {
	return e.schema
}

// Encode builds a frame with one row per candidate, columns in schema order.
// Candidates are not modified.
func (e *Encoder) Encode(candidates []types.CandidateRow) (*frame.Frame, error) {
	n := len(candidates)
	f := frame.New(n)
	scratch := make([]float64, n)

	for i := 0; i < e.schema.Len(); i++ {
		feat := e.schema.Feature(i)
		if feat.Kind == schema.KindNumeric {
			for r := range candidates {
				scratch[r] = feat.Numeric(&candidates[r])
			}
			if err := e.caster.Cast(feat.Name, scratch); err != nil {
				return nil, err
			}
			if err := f.AddNumeric(feat.Name, feat.Width, scratch); err != nil {
				return nil, err
			}
			continue
		}

		vc := e.columns[i]
		codes := make([]int32, n)
		for r := range candidates {
			codes[r] = vc.Encode(feat.Categorical(candidates[r].Row))
		}
		if err := f.AddCategorical(feat.Name, codes, vc.Levels()); err != nil {
			return nil, fmt.Errorf("encode %s: %w", feat.Name, err)
		}
	}
	return f, nil
}
