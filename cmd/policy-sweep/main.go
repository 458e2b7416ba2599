package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/config"
	"github.com/Meesho/BharatMLStack/policy-sweep/pkg/infra"
	"github.com/Meesho/BharatMLStack/policy-sweep/pkg/logger"
	"github.com/Meesho/BharatMLStack/policy-sweep/pkg/metric"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configFile string
	appConfig  config.Configs
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "policy-sweep",
	Short: "Counterfactual discount policy sweep",
	Long: `policy-sweep scores every (date, store, item) of a scoring table at each
discount in a grid with a trained demand model, picks the revenue maximizing
discount and compares it with the price already in effect.

Results are written per date to a warehouse table (replacing the date) and/or
appended to a local CSV or XLSX file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		appConfig = cfg
		logger.Init(appConfig)
		metric.Init(appConfig)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		metric.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (yaml or env)")
	rootCmd.AddCommand(runCmd, fitVocabCmd)
}

// connectWarehouse opens the configured warehouse and logs which one.
func connectWarehouse(cfg config.Configs) (*infra.SQLConnection, error) {
	conn, err := infra.NewSQLConnection(cfg)
	if err != nil {
		return nil, err
	}
	meta, err := conn.GetMeta()
	if err != nil {
		conn.Close()
		return nil, err
	}
	log.Info().
		Interface("db_name", meta["db_name"]).
		Interface("type", meta["type"]).
		Bool("replica", conn.Slave != nil).
		Msg("Warehouse connected")
	return conn, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("policy-sweep failed")
		stop()
		os.Exit(1)
	}
}
