package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGrid        = errors.New("invalid discount grid")
	ErrInvalidDateRange   = errors.New("invalid date range")
	ErrInvalidVocabulary  = errors.New("invalid vocabulary")
	ErrMissingVocabulary  = errors.New("vocabulary missing for categorical feature")
	ErrPredictionCount    = errors.New("predictor returned unexpected number of predictions")
	ErrDuplicateKey       = errors.New("duplicate scoring key")
	ErrUnsupportedModel   = errors.New("unsupported model type")
	ErrUnsupportedDriver  = errors.New("unsupported warehouse driver")
	ErrUnsupportedFormat  = errors.New("unsupported output format")
	ErrUnsupportedHash    = errors.New("unsupported shard hash")
	ErrFeatureCount       = errors.New("feature count does not match model")
	ErrUnknownFeature     = errors.New("unknown feature")
	ErrConnectionRequired = errors.New("connection cannot be nil")
)

// RangeError reports a numeric value that cannot be represented in the width
// declared for its column.
type RangeError struct {
	Column string
	Row    int
	Value  float64
	Width  string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("value %v for column %s at row %d out of range for %s: %s",
		e.Value, e.Column, e.Row, e.Width, e.Reason)
}
