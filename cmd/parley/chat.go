package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"mercator-hq/parley/pkg/cli"
	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/providers"
	"mercator-hq/parley/pkg/routing"
	"mercator-hq/parley/pkg/telemetry/logging"
)

var chatFlags struct {
	stream      bool
	provider    string
	noFailover  bool
	system      string
	temperature float64
	maxTokens   int
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the active provider",
	Long: `Send a message to the active provider and print the reply.

With a message argument, chat sends it once and exits. Without one it
starts an interactive session that keeps the conversation history; type
/help inside the session for its commands.

When the active provider is rate limited and failover is enabled, the
request is retried once on the fallback provider, which then stays active.

Examples:
  # One question, reply printed when complete
  parley chat "Explain context cancellation in Go"

  # Stream the reply as it is generated
  parley chat --stream "Write a haiku about channels"

  # Interactive session on DeepSeek without failover
  parley chat --provider deepseek --no-failover`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().BoolVarP(&chatFlags.stream, "stream", "s", false, "stream replies as they are generated")
	chatCmd.Flags().StringVarP(&chatFlags.provider, "provider", "p", "", "provider to start with (googleai, deepseek, openai)")
	chatCmd.Flags().BoolVar(&chatFlags.noFailover, "no-failover", false, "disable automatic failover")
	chatCmd.Flags().StringVar(&chatFlags.system, "system", "", "system prompt for the conversation")
	chatCmd.Flags().Float64Var(&chatFlags.temperature, "temperature", 0, "sampling temperature override")
	chatCmd.Flags().IntVar(&chatFlags.maxTokens, "max-tokens", 0, "reply length cap override")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := cli.SetupSignalHandler()
	defer cancel()

	a, err := newApp(ctx, config.GetConfig(), appOptions{
		provider:   chatFlags.provider,
		noFailover: chatFlags.noFailover,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			a.logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	s := newSession(a.orch, cmd.OutOrStdout(), cmd.ErrOrStderr())
	s.stream = chatFlags.stream
	if chatFlags.system != "" {
		s.system = providers.NewMessage(providers.RoleSystem, chatFlags.system)
		s.reset()
	}
	if cmd.Flags().Changed("temperature") {
		s.opts.Temperature = &chatFlags.temperature
	}
	if cmd.Flags().Changed("max-tokens") {
		s.opts.MaxTokens = &chatFlags.maxTokens
	}

	a.orch.OnSwitch(s.announce)

	if len(args) > 0 {
		return s.send(ctx, strings.Join(args, " "))
	}
	return s.repl(ctx, cmd.InOrStdin())
}

// session is one conversation with the orchestrator. It owns the history;
// a turn is appended only after its reply completes.
type session struct {
	orch    *routing.Orchestrator
	out     io.Writer
	status  io.Writer
	stream  bool
	opts    providers.ChatOptions
	system  providers.Message
	history []providers.Message
	id      string
}

func newSession(orch *routing.Orchestrator, out, status io.Writer) *session {
	return &session{
		orch:   orch,
		out:    out,
		status: status,
		id:     uuid.NewString(),
	}
}

// send runs one turn and prints the reply.
func (s *session) send(ctx context.Context, content string) error {
	ctx = logging.WithConversation(logging.NewRequestContext(ctx), s.id)

	var (
		reply string
		err   error
	)
	if s.stream {
		reply, err = s.receive(ctx, content)
	} else {
		indicator := cli.NewIndicator(s.status)
		indicator.Start(fmt.Sprintf("waiting for %s", s.orch.ActiveProvider()))
		reply, err = s.orch.Chat(ctx, content, s.history, s.opts)
		indicator.Stop()
		if err == nil {
			fmt.Fprintln(s.out, reply)
		}
	}
	if err != nil {
		return err
	}

	s.history = append(s.history,
		providers.NewMessage(providers.RoleUser, content),
		providers.NewMessage(providers.RoleAssistant, reply),
	)
	return nil
}

// receive prints chunks as they arrive and returns the assembled reply.
func (s *session) receive(ctx context.Context, content string) (string, error) {
	stream := s.orch.ChatStream(ctx, content, s.history, s.opts)
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			fmt.Fprintln(s.out)
			return reply.String(), nil
		}
		if err != nil {
			if reply.Len() > 0 {
				fmt.Fprintln(s.out)
			}
			return "", err
		}
		reply.WriteString(chunk)
		fmt.Fprint(s.out, chunk)
	}
}

// repl reads lines from in until EOF, /quit or cancellation. Failed turns
// are reported and the session continues.
func (s *session) repl(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(s.status, "Chatting with %s. Type /help for commands.\n", s.orch.ActiveProvider())

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(s.status, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.status)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := s.command(line)
			if err != nil {
				fmt.Fprintln(s.status, "Error:", cli.Describe(err))
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.send(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, providers.ErrCancelled) {
				fmt.Fprintln(s.status, "(cancelled)")
				continue
			}
			fmt.Fprintln(s.status, "Error:", cli.Describe(err))
		}
	}
}

// command handles a slash command and reports whether the session ends.
func (s *session) command(line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprint(s.out, `Commands:
  /provider [name]  show or switch the active provider
  /providers        list available providers
  /stream           toggle streaming replies
  /stats            show request statistics
  /reset            clear the conversation history
  /quit             end the session
`)

	case "/provider":
		if len(fields) < 2 {
			fmt.Fprintf(s.out, "Active provider: %s\n", s.orch.ActiveProvider())
			return false, nil
		}
		name, err := providers.ParseName(fields[1])
		if err != nil {
			return false, err
		}
		return false, s.orch.SetProvider(name)

	case "/providers":
		active := s.orch.ActiveProvider()
		for _, name := range s.orch.AvailableProviders() {
			marker := " "
			if name == active {
				marker = "*"
			}
			fmt.Fprintf(s.out, "%s %s\n", marker, name)
		}

	case "/stream":
		s.stream = !s.stream
		fmt.Fprintf(s.out, "Streaming %s\n", onOff(s.stream))

	case "/stats":
		s.printStats()

	case "/reset":
		s.reset()
		fmt.Fprintln(s.out, "Conversation cleared")

	default:
		return false, fmt.Errorf("unknown command %q (try /help)", fields[0])
	}
	return false, nil
}

// reset clears the history, keeping the system prompt if one is set.
func (s *session) reset() {
	s.history = nil
	if s.system.Content != "" {
		s.history = []providers.Message{s.system}
	}
	s.id = uuid.NewString()
}

func (s *session) printStats() {
	stats := s.orch.Stats()
	fmt.Fprintf(s.out, "Requests:          %d\n", stats.TotalRequests)
	fmt.Fprintf(s.out, "Errors:            %d\n", stats.Errors)
	fmt.Fprintf(s.out, "Cancelled:         %d\n", stats.Cancelled)
	fmt.Fprintf(s.out, "Failovers:         %d\n", stats.Failovers)
	fmt.Fprintf(s.out, "Explicit switches: %d\n", stats.ExplicitSwitches)

	names := make([]providers.Name, 0, len(stats.RequestsPerProvider))
	for name := range stats.RequestsPerProvider {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(s.out, "  %-16s %d\n", name, stats.RequestsPerProvider[name])
	}
}

// announce reports provider switches on the status writer.
func (s *session) announce(event routing.SwitchEvent) {
	if event.Reason == routing.ReasonFailover {
		fmt.Fprintf(s.status, "%s is rate limited, switched to %s\n", event.From, event.To)
		return
	}
	fmt.Fprintf(s.status, "Switched to %s\n", event.To)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
