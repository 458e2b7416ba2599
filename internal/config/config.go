package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/schema"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/spf13/viper"
)

type Configs struct {
	// App configuration
	AppName               string  `mapstructure:"app_name"`
	AppEnv                string  `mapstructure:"app_env"`
	AppLogLevel           string  `mapstructure:"app_log_level"`
	AppMetricSamplingRate float64 `mapstructure:"app_metric_sampling_rate"`
	TelegrafHost          string  `mapstructure:"telegraf_host"`
	TelegrafPort          int     `mapstructure:"telegraf_port"`

	// Model configuration
	ModelType          string `mapstructure:"model_type"`
	ModelPath          string `mapstructure:"model_path"`
	ModelNumIterations int    `mapstructure:"model_num_iterations"`
	ModelThreads       int    `mapstructure:"model_threads"`
	ModelBatchRows     int    `mapstructure:"model_batch_rows"`
	VocabPath          string `mapstructure:"vocab_path"`

	// Sweep configuration
	SweepStartDate        string `mapstructure:"sweep_start_date"`
	SweepEndDate          string `mapstructure:"sweep_end_date"`
	SweepDiscountGrid     string `mapstructure:"sweep_discount_grid"`
	SweepNumShards        int    `mapstructure:"sweep_num_shards"`
	SweepShardHash        string `mapstructure:"sweep_shard_hash"`
	SweepShardConcurrency int    `mapstructure:"sweep_shard_concurrency"`
	SweepFloat16Columns   string `mapstructure:"sweep_float16_columns"`

	// Output configuration
	OutputFile   string `mapstructure:"output_file"`
	OutputFormat string `mapstructure:"output_format"`

	// Warehouse configuration
	WarehouseWrite           bool   `mapstructure:"warehouse_write"`
	WarehouseDriver          string `mapstructure:"warehouse_driver"`
	WarehouseScoringTable    string `mapstructure:"warehouse_scoring_table"`
	WarehouseResultTable     string `mapstructure:"warehouse_result_table"`
	WarehouseInsertBatchSize int    `mapstructure:"warehouse_insert_batch_size"`
	SqlitePath               string `mapstructure:"sqlite_path"`

	// MySQL configuration
	MysqlDbName         string `mapstructure:"mysql_db_name"`
	MysqlMasterHost     string `mapstructure:"mysql_master_host"`
	MysqlMasterPort     int    `mapstructure:"mysql_master_port"`
	MysqlMasterUsername string `mapstructure:"mysql_master_username"`
	MysqlMasterPassword string `mapstructure:"mysql_master_password"`
	MysqlSlaveHost      string `mapstructure:"mysql_slave_host"`
	MysqlSlavePort      int    `mapstructure:"mysql_slave_port"`
	MysqlSlaveUsername  string `mapstructure:"mysql_slave_username"`
	MysqlSlavePassword  string `mapstructure:"mysql_slave_password"`
}

const (
	ShardHashXXHash = "xxhash64"
	ShardHashMurmur = "murmur3"
	ShardHashXXH3   = "xxh3"

	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var defaults = map[string]interface{}{
	"app_name":                    "policy-sweep",
	"app_env":                     "local",
	"app_log_level":               "INFO",
	"app_metric_sampling_rate":    1.0,
	"telegraf_host":               "localhost",
	"telegraf_port":               8125,
	"model_type":                  "lightgbm",
	"model_path":                  "models/lgbm_cat.txt",
	"model_num_iterations":        0,
	"model_threads":               1,
	"model_batch_rows":            65536,
	"vocab_path":                  "models/lgbm_cat_vocab.json",
	"sweep_start_date":            "2017-08-01",
	"sweep_end_date":              "2017-08-15",
	"sweep_discount_grid":         "0.0,0.1,0.2,0.3,0.4,0.5",
	"sweep_num_shards":            1,
	"sweep_shard_hash":            ShardHashXXHash,
	"sweep_shard_concurrency":     1,
	"sweep_float16_columns":       "",
	"output_file":                 "",
	"output_format":               FormatCSV,
	"warehouse_write":             false,
	"warehouse_driver":            DriverMySQL,
	"warehouse_scoring_table":     "scoring_frame",
	"warehouse_result_table":      "policy_eval",
	"warehouse_insert_batch_size": 1000,
	"sqlite_path":                 "policy_sweep.db",
	"mysql_db_name":               "",
	"mysql_master_host":           "",
	"mysql_master_port":           3306,
	"mysql_master_username":       "",
	"mysql_master_password":       "",
	"mysql_slave_host":            "",
	"mysql_slave_port":            0,
	"mysql_slave_username":        "",
	"mysql_slave_password":        "",
}

// Load builds Configs from defaults, an optional config file and the
// environment, in increasing order of precedence. Flags bound to viper keys
// before Load override all three.
func Load(configFile string) (Configs, error) {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return Configs{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	viper.AutomaticEnv()

	var cfg Configs
	if err := viper.Unmarshal(&cfg); err != nil {
		return Configs{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks everything that must hold before any date is processed.
func (c Configs) Validate() error {
	if _, err := ParseGrid(c.SweepDiscountGrid); err != nil {
		return err
	}
	if _, _, err := c.DateRange(); err != nil {
		return err
	}
	if c.SweepNumShards < 1 {
		return fmt.Errorf("sweep_num_shards must be at least 1, got %d", c.SweepNumShards)
	}
	if c.SweepShardConcurrency < 1 {
		return fmt.Errorf("sweep_shard_concurrency must be at least 1, got %d", c.SweepShardConcurrency)
	}
	switch c.SweepShardHash {
	case ShardHashXXHash, ShardHashMurmur, ShardHashXXH3:
	default:
		return fmt.Errorf("%w: %q", sweeperrors.ErrUnsupportedHash, c.SweepShardHash)
	}
	if _, err := c.Schema(); err != nil {
		return err
	}
	switch c.OutputFormat {
	case FormatCSV, FormatXLSX:
	default:
		return fmt.Errorf("%w: %q", sweeperrors.ErrUnsupportedFormat, c.OutputFormat)
	}
	switch c.WarehouseDriver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("%w: %q", sweeperrors.ErrUnsupportedDriver, c.WarehouseDriver)
	}
	return nil
}

// Grid returns the parsed discount grid.
func (c Configs) Grid() ([]float64, error) {
	return ParseGrid(c.SweepDiscountGrid)
}

// Schema returns the default feature schema with every column listed in
// sweep_float16_columns narrowed to float16.
func (c Configs) Schema() (schema.Schema, error) {
	s := schema.Default()
	for _, name := range strings.Split(c.SweepFloat16Columns, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var err error
		if s, err = s.WithWidth(name, schema.WidthFloat16); err != nil {
			return schema.Schema{}, fmt.Errorf("sweep_float16_columns: %w", err)
		}
	}
	return s, nil
}

// DateRange returns the inclusive sweep range.
func (c Configs) DateRange() (time.Time, time.Time, error) {
	start, err := types.ParseDate(c.SweepStartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start date %q: %v", sweeperrors.ErrInvalidDateRange, c.SweepStartDate, err)
	}
	end, err := types.ParseDate(c.SweepEndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date %q: %v", sweeperrors.ErrInvalidDateRange, c.SweepEndDate, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %s before start %s", sweeperrors.ErrInvalidDateRange,
			c.SweepEndDate, c.SweepStartDate)
	}
	return start, end, nil
}

// ParseGrid parses a comma separated list of discount fractions. Every token
// must be a number in [0, 1] and the grid must not be empty.
func ParseGrid(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty grid", sweeperrors.ErrInvalidGrid)
	}
	tokens := strings.Split(s, ",")
	grid := make([]float64, 0, len(tokens))
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		g, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: token %d %q is not a number", sweeperrors.ErrInvalidGrid, i, tok)
		}
		if math.IsNaN(g) || g < 0 || g > 1 {
			return nil, fmt.Errorf("%w: token %d %q outside [0, 1]", sweeperrors.ErrInvalidGrid, i, tok)
		}
		grid = append(grid, g)
	}
	return grid, nil
}
