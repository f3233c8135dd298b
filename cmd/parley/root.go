package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/parley/pkg/cli"
	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile  string
	verbose  bool
	logLevel string
)

// skipConfigAnnotation marks commands that load configuration themselves,
// or not at all.
const skipConfigAnnotation = "parley/skip-config"

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - multi-provider LLM chat client",
	Long: `Parley is a chat client for hosted LLM providers.

It provides:
  - One chat interface over Google AI, DeepSeek and OpenAI
  - Streaming replies with cancellation
  - Automatic failover to a fallback provider on rate limiting
  - A reconnecting websocket channel for realtime events

Configuration is read from parley.yaml when present, then from environment
variables (GOOGLE_API_KEY, DEEPSEEK_API_KEY, OPENAI_API_KEY, PARLEY_*) and
any .env file in the working directory.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command and exits with a code that reflects the
// kind of failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.Describe(err))
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "parley.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// loadConfig initializes the global configuration and logger before any
// command that needs them. The default config path may be absent; an
// explicit --config must exist.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipConfigAnnotation] != "" {
		return nil
	}

	optional := !cmd.Flags().Changed("config")
	if err := config.Initialize(cfgFile, optional); err != nil {
		return err
	}
	cfg := config.GetConfig()

	logCfg := cfg.Telemetry.Logging
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	if verbose {
		logCfg.Level = "debug"
	}
	if _, err := logging.Setup(logging.FromConfig(logCfg, os.Stderr)); err != nil {
		return cli.NewCommandError(cmd.Name(), err)
	}
	return nil
}
