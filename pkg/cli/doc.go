/*
Package cli provides helpers shared by the parley commands.

Output Formatting:

Commands print results as text, JSON or CSV. Tabular results use Table:

	table := &cli.Table{Headers: []string{"provider", "status"}}
	table.AddRow("googleai", "ok")
	if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Waiting Indicator:

While a non-streaming reply is pending the chat command shows a spinner:

	indicator := cli.NewIndicator(os.Stderr)
	indicator.Start("thinking")
	reply, err := orch.Chat(ctx, content, history, opts)
	indicator.Stop()

Errors and Exit Codes:

ExitCode maps configuration, credential, rate-limit and cancellation
failures to distinct exit codes; Describe turns provider errors into the
message shown to the user.

Signal Handling:

	ctx, cancel := cli.SetupSignalHandler()
	defer cancel()
*/
package cli
