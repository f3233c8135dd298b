package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/parley/pkg/cli"
	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/providers"
	"mercator-hq/parley/pkg/telemetry/health"
)

var providersFlags struct {
	check   bool
	timeout time.Duration
	output  string
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers",
	Long: `List the configured providers with their model, routing role and
advisory rate limits.

With --check every provider is probed with a lightweight authenticated
request. The command fails when any provider is unhealthy.

Examples:
  # Show configured providers
  parley providers

  # Probe every provider and print JSON
  parley providers --check --output json`,
	RunE: runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)

	providersCmd.Flags().BoolVar(&providersFlags.check, "check", false, "probe provider health")
	providersCmd.Flags().DurationVar(&providersFlags.timeout, "timeout", 10*time.Second, "timeout for each health probe")
	providersCmd.Flags().StringVarP(&providersFlags.output, "output", "o", "text", "output format: text, json, csv")
}

func runProviders(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(providersFlags.output)
	if err != nil {
		return err
	}

	ctx, cancel := cli.SetupSignalHandler()
	defer cancel()

	a, err := newApp(ctx, config.GetConfig(), appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	var status *health.HealthStatus
	if providersFlags.check {
		checker := health.New(providersFlags.timeout)
		checker.RegisterProviders(a.registry)

		indicator := cli.NewIndicator(cmd.ErrOrStderr())
		indicator.Start("checking providers")
		result := checker.CheckReadiness(ctx)
		indicator.Stop()

		for name, check := range result.Checks {
			a.collector.UpdateProviderHealth(providers.Name(name), check.Status == health.StatusOK)
		}
		status = &result
	}

	table := providersTable(a, status)
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table); err != nil {
		return err
	}

	if status != nil && !status.Healthy() {
		return cli.NewCommandError(cmd.Name(), fmt.Errorf("%d of %d providers unhealthy", unhealthyCount(status), len(status.Checks)))
	}
	return nil
}

// providersTable describes every registered provider. Health columns are
// added when status is set.
func providersTable(a *app, status *health.HealthStatus) *cli.Table {
	headers := []string{"name", "model", "role", "api_key", "rpm", "rpd"}
	if status != nil {
		headers = append(headers, "status", "latency", "message")
	}
	table := &cli.Table{Headers: headers}

	for _, name := range a.registry.Names() {
		pc, err := a.cfg.Provider(name)
		model := pc.Model
		if err != nil {
			model = "-"
		}

		row := []string{
			string(name),
			model,
			role(a, name),
			keyState(pc.APIKey),
			limit(pc.RateLimit.RequestsPerMinute),
			limit(pc.RateLimit.RequestsPerDay),
		}
		if status != nil {
			check := status.Checks[string(name)]
			row = append(row, check.Status, check.Duration.Round(time.Millisecond).String(), check.Message)
		}
		table.AddRow(row...)
	}
	return table
}

func role(a *app, name providers.Name) string {
	switch {
	case name == a.orch.ActiveProvider():
		return "active"
	case name == a.orch.FallbackProvider() && a.orch.FailoverEnabled():
		return "fallback"
	}
	return "-"
}

func keyState(key string) string {
	if key == "" {
		return "missing"
	}
	return "set"
}

func limit(n int) string {
	if n <= 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func unhealthyCount(status *health.HealthStatus) int {
	n := 0
	for _, check := range status.Checks {
		if check.Status != health.StatusOK {
			n++
		}
	}
	return n
}
