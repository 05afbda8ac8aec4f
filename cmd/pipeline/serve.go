package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-insight-pipeline/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := api.NewEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Serve(ctx, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
