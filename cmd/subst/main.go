package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/systmms/subst/cmd/subst/commands"
	"github.com/systmms/subst/internal/config"
	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  string
		noColor     bool
		debug       bool
		metricsAddr string
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "subst",
		Short: "Resolve placeholders from environment, files, and secret stores",
		Long: `subst scans documents for <name:source#key|default> placeholders and
substitutes each one with a value pulled from the configured sources:
environment variables, files, HashiCorp Vault, AWS, Kubernetes, HTTP
endpoints, and more.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)

			if metricsAddr != "" {
				metrics.Init()
				go func() {
					if err := http.ListenAndServe(metricsAddr, promhttp.Handler()); err != nil {
						cfg.Logger.Warn("Metrics endpoint failed: %v", err)
					}
				}()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "subst.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(
		commands.NewResolveCommand(cfg),
		commands.NewProcessCommand(cfg),
		commands.NewSourcesCommand(cfg),
		commands.NewVersionCommand(version, commit, date),
	)

	return rootCmd.Execute()
}
