package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"mercator-hq/parley/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file with defaults, .env files and environment
overrides applied, and report every validation error.

Examples:
  # Validate ./parley.yaml
  parley validate

  # Validate another file
  parley validate --config /etc/parley/parley.yaml`,
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE:        runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(cfgFile, false)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(out, "✗ %s has %d error(s):\n", cfgFile, len(verr.Errors))
			for _, fe := range verr.Errors {
				fmt.Fprintf(out, "  - %s\n", fe.Error())
			}
		}
		return err
	}

	fmt.Fprintln(out, "✓ Configuration valid")
	printSummary(out, cfg)
	return nil
}

func printSummary(w io.Writer, cfg *config.Config) {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	slices.Sort(names)

	fmt.Fprintf(w, "  Providers: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(w, "  Default:   %s\n", cfg.Routing.Default)
	if cfg.Routing.Failover() {
		fmt.Fprintf(w, "  Fallback:  %s\n", cfg.Routing.Fallback)
	} else {
		fmt.Fprintln(w, "  Failover:  disabled")
	}
	if cfg.Transport.URL != "" {
		fmt.Fprintf(w, "  Transport: %s\n", cfg.Transport.URL)
	}
}
