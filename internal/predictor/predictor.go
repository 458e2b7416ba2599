package predictor

import (
	"context"
	"fmt"
	"strings"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/frame"
)

// Predictor maps an encoded frame to one predicted unit count per row, in row
// order. Implementations must be safe for concurrent use.
type Predictor interface {
	Predict(ctx context.Context, f *frame.Frame) ([]float64, error)
}

// Func adapts a plain function to Predictor.
type Func func(ctx context.Context, f *frame.Frame) ([]float64, error)

func (fn Func) Predict(ctx context.Context, f *frame.Frame) ([]float64, error) {
	return fn(ctx, f)
}

type ModelType string

const (
	LightGBM ModelType = "lightgbm"
	XGBoost  ModelType = "xgboost"
)

func ParseModelType(s string) (ModelType, error) {
	switch t := ModelType(strings.ToLower(strings.TrimSpace(s))); t {
	case LightGBM, XGBoost:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", sweeperrors.ErrUnsupportedModel, s)
	}
}

type Config struct {
	Type ModelType
	Path string
	// NumIterations limits the trees used; 0 uses all of them.
	NumIterations int
	Threads       int
	BatchRows     int
}

// New loads the model described by cfg.
func New(cfg Config) (*Ensemble, error) {
	switch cfg.Type {
	case LightGBM:
		return LoadLightGBM(cfg)
	case XGBoost:
		return LoadXGBoost(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", sweeperrors.ErrUnsupportedModel, cfg.Type)
	}
}
