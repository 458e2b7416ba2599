package main

import (
	"fmt"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/config"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/encoder"
	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/predictor"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/sink"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/source"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/sweep"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/vocab"
	"github.com/Meesho/BharatMLStack/policy-sweep/pkg/infra"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runCmd sweeps the configured date range
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep the discount grid over a date range",
	Long: `Loads each date of the scoring table, scores the baseline price and every
grid discount, and writes one result per (date, store, item).

Example:
  policy-sweep run --start-date 2017-08-01 --end-date 2017-08-15 \
    --discount-grid "0.0,0.1,0.2,0.3,0.4,0.5" --num-shards 4 --write-warehouse`,
	RunE: runSweep,
}

func init() {
	flags := runCmd.Flags()
	flags.String("start-date", "", "first date to sweep (YYYY-MM-DD)")
	flags.String("end-date", "", "last date to sweep, inclusive (YYYY-MM-DD)")
	flags.String("discount-grid", "", "comma separated discount fractions in [0, 1]")
	flags.Int("num-shards", 0, "split each day into this many hash shards")
	flags.Bool("write-warehouse", false, "replace each date in the warehouse result table")
	flags.String("out-file", "", "append results to this CSV or XLSX file")
	flags.String("model-type", "", "lightgbm or xgboost")
	flags.String("model-path", "", "trained model file")
	flags.String("vocab-path", "", "categorical vocabulary file (json or yaml)")
	flags.String("float16-columns", "", "comma separated float features to score at float16 width")

	bindFlags(runCmd, map[string]string{
		"sweep_start_date":      "start-date",
		"sweep_end_date":        "end-date",
		"sweep_discount_grid":   "discount-grid",
		"sweep_num_shards":      "num-shards",
		"warehouse_write":       "write-warehouse",
		"output_file":           "out-file",
		"model_type":            "model-type",
		"model_path":            "model-path",
		"vocab_path":            "vocab-path",
		"sweep_float16_columns": "float16-columns",
	})
}

func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := cfg.Validate(); err != nil {
		return err
	}
	grid, err := cfg.Grid()
	if err != nil {
		return err
	}
	start, end, err := cfg.DateRange()
	if err != nil {
		return err
	}
	hash, err := sweep.HashByName(cfg.SweepShardHash)
	if err != nil {
		return err
	}

	features, err := cfg.Schema()
	if err != nil {
		return err
	}
	voc, err := vocab.Load(cfg.VocabPath)
	if err != nil {
		return err
	}
	enc, err := encoder.New(features, voc)
	if err != nil {
		return err
	}

	modelType, err := predictor.ParseModelType(cfg.ModelType)
	if err != nil {
		return err
	}
	model, err := predictor.New(predictor.Config{
		Type:          modelType,
		Path:          cfg.ModelPath,
		NumIterations: cfg.ModelNumIterations,
		Threads:       cfg.ModelThreads,
		BatchRows:     cfg.ModelBatchRows,
	})
	if err != nil {
		return err
	}
	if model.NumFeatures() != features.Len() {
		return fmt.Errorf("%w: model has %d features, schema has %d", sweeperrors.ErrFeatureCount,
			model.NumFeatures(), features.Len())
	}

	conn, err := connectWarehouse(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	src, err := source.NewWarehouse(conn, cfg.WarehouseScoringTable)
	if err != nil {
		return err
	}
	out, err := buildSinks(cfg, conn)
	if err != nil {
		return err
	}

	runner, err := sweep.NewRunner(model, enc, src, out, sweep.Options{
		Grid:        grid,
		NumShards:   cfg.SweepNumShards,
		Hash:        hash,
		Concurrency: cfg.SweepShardConcurrency,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("start", start.Format(types.DateLayout)).
		Str("end", end.Format(types.DateLayout)).
		Floats64("grid", grid).
		Int("shards", cfg.SweepNumShards).
		Str("model_type", string(modelType)).
		Msg("Starting sweep")
	kpis, err := runner.Run(cmd.Context(), start, end)
	logTotals(kpis)
	return err
}

// buildSinks orders file sinks before the warehouse so the authoritative
// partition replace is the last write of a day.
func buildSinks(cfg config.Configs, conn *infra.SQLConnection) (sweep.Sink, error) {
	var sinks sink.Multi
	if cfg.OutputFile != "" {
		switch cfg.OutputFormat {
		case config.FormatXLSX:
			sinks = append(sinks, sink.NewWorkbook(cfg.OutputFile))
		case config.FormatCSV:
			sinks = append(sinks, sink.NewCSV(cfg.OutputFile))
		default:
			return nil, fmt.Errorf("%w: %q", sweeperrors.ErrUnsupportedFormat, cfg.OutputFormat)
		}
	}
	if cfg.WarehouseWrite {
		w, err := sink.NewWarehouse(conn, cfg.WarehouseResultTable, cfg.WarehouseInsertBatchSize)
		if err != nil {
			return nil, err
		}
		if err := w.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate result table: %w", err)
		}
		sinks = append(sinks, w)
	}
	if len(sinks) == 0 {
		log.Warn().Msg("No output configured, results are only summarised")
		return nil, nil
	}
	return sinks, nil
}

func logTotals(kpis []types.DayKPI) {
	total := types.DayKPI{}
	for _, k := range kpis {
		total.Rows += k.Rows
		total.BaselineRevenue += k.BaselineRevenue
		total.PolicyRevenue += k.PolicyRevenue
	}
	log.Info().
		Int("days", len(kpis)).
		Int("rows", total.Rows).
		Float64("baseline_revenue", total.BaselineRevenue).
		Float64("policy_revenue", total.PolicyRevenue).
		Float64("uplift", total.Uplift()).
		Msg("Sweep finished")
}
