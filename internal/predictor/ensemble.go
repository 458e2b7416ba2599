package predictor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/frame"
	"github.com/Meesho/BharatMLStack/policy-sweep/pkg/metric"
	"github.com/dmitryikh/leaves"
	"github.com/rs/zerolog/log"
)

const defaultBatchRows = 65536

// treeModel is the scoring surface shared by leaves ensembles and XGBoostJSON.
type treeModel interface {
	Name() string
	NFeatures() int
	NEstimators() int
	NOutputGroups() int
	PredictDense(vals []float64, nrows, ncols int, predictions []float64, nEstimators, nThreads int) error
}

// Ensemble scores frames with a gradient boosted tree model. Frames are
// densified in chunks of batchRows so the float64 copy stays bounded.
type Ensemble struct {
	model       treeModel
	modelType   ModelType
	nEstimators int
	threads     int
	batchRows   int
}

func LoadLightGBM(cfg Config) (*Ensemble, error) {
	model, err := leaves.LGEnsembleFromFile(cfg.Path, false)
	if err != nil {
		return nil, fmt.Errorf("load lightgbm model %s: %w", cfg.Path, err)
	}
	return newEnsemble(model, LightGBM, cfg), nil
}

// LoadXGBoost reads a .json model, categorical splits included, or a legacy
// binary model. UBJSON models have to be re-saved as JSON.
func LoadXGBoost(cfg Config) (*Ensemble, error) {
	switch strings.ToLower(filepath.Ext(cfg.Path)) {
	case ".json":
		model, err := XGBoostJSONFromFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("load xgboost model %s: %w", cfg.Path, err)
		}
		return newEnsemble(model, XGBoost, cfg), nil
	case ".ubj":
		return nil, fmt.Errorf("%w: xgboost UBJSON model %s, save it with a .json extension",
			sweeperrors.ErrUnsupportedModel, cfg.Path)
	}
	model, err := leaves.XGEnsembleFromFile(cfg.Path, false)
	if err != nil {
		return nil, fmt.Errorf("load xgboost model %s: %w", cfg.Path, err)
	}
	return newEnsemble(model, XGBoost, cfg), nil
}

func newEnsemble(model treeModel, modelType ModelType, cfg Config) *Ensemble {
	e := &Ensemble{
		model:       model,
		modelType:   modelType,
		nEstimators: cfg.NumIterations,
		threads:     cfg.Threads,
		batchRows:   cfg.BatchRows,
	}
	if e.threads <= 0 {
		e.threads = 1
	}
	if e.batchRows <= 0 {
		e.batchRows = defaultBatchRows
	}
	log.Info().
		Str("model_type", string(modelType)).
		Str("model", model.Name()).
		Int("features", model.NFeatures()).
		Int("estimators", model.NEstimators()).
		Msg("model loaded")
	return e
}

func (e *Ensemble) NumFeatures() int {
	return e.model.NFeatures()
}

func (e *Ensemble) Predict(ctx context.Context, f *frame.Frame) ([]float64, error) {
	if f.NumColumns() != e.model.NFeatures() {
		return nil, fmt.Errorf("%w: frame has %d columns, model expects %d",
			sweeperrors.ErrFeatureCount, f.NumColumns(), e.model.NFeatures())
	}
	if groups := e.model.NOutputGroups(); groups != 1 {
		return nil, fmt.Errorf("%s model has %d output groups, expected 1", e.modelType, groups)
	}

	startTime := time.Now()
	rows := f.Rows()
	ncols := f.NumColumns()
	out := make([]float64, rows)
	var dense []float64
	for start := 0; start < rows; start += e.batchRows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.batchRows, rows)
		dense = f.Dense(start, end, dense)
		if err := e.model.PredictDense(dense, end-start, ncols, out[start:end], e.nEstimators, e.threads); err != nil {
			return nil, fmt.Errorf("%s predict rows [%d, %d): %w", e.modelType, start, end, err)
		}
	}
	metric.Timing(metric.SweepPredictLatency, time.Since(startTime),
		metric.BuildTag(metric.NewTag(metric.TagModelType, string(e.modelType))))
	return out, nil
}
