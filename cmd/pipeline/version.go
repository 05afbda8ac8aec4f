package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-insight-pipeline/internal/pipeline"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pipeline version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), pipeline.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
