package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-insight-pipeline/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "insight",
	Short:         "Deterministic dataset profiling and dashboard pipeline",
	Long:          "Ingests CSV or XLSX data, infers its schema, cleans and analyzes it, finds drivers of change and renders a dashboard summary.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("command failed", zap.Error(err))
		_ = zap.L().Sync()
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
