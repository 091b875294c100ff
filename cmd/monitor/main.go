// Command monitor runs the monitoring engine and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/palmiyeitadmin/monitorsystem/internal/config"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Multi-tenant infrastructure monitoring engine",
	Long: `monitor ingests agent heartbeats, runs HTTP, TCP, ping and DNS checks,
tracks incidents with SLA timers and queues notifications.

Configuration is read from an optional YAML file and MONITOR_ prefixed
environment variables, e.g. MONITOR_DATABASE__URL.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
