package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "adpreplic",
		Short: "Adaptive replication controller for a geo-distributed key-value store",
		Long: "adpreplic runs one replication controller per data center. It decides " +
			"per key, from recent access pressure, whether this DC should hold a " +
			"replica locally, acquire one from a peer, or release its copy.",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the replication controller for this data center",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "./config.yaml", "path to the configuration file")

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
