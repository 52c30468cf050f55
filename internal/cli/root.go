// Package cli implements the lwctl command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	serverURL string
	cfg       *Config
)

var rootCmd = &cobra.Command{
	Use:   "lwctl",
	Short: "LoginWatch CLI",
	Long: `lwctl is the command-line interface for the LoginWatch service.

Submit login events, inspect stored events and per-computer identity
summaries, manage identity lifecycle status, and trigger security reports.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.lwctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides config)")

	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(identitiesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(seedCmd)
}

func initConfig() {
	var err error
	cfg, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = Default()
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
}

func apiClient() *Client {
	return NewClient(cfg.ServerURL)
}
