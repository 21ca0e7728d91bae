package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "annotator",
		Short: "Segment annotation server and result tools",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
