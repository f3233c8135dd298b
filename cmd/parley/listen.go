package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"mercator-hq/parley/pkg/cli"
	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/telemetry/metrics"
	"mercator-hq/parley/pkg/telemetry/tracing"
	"mercator-hq/parley/pkg/transport"
)

var listenFlags struct {
	url    string
	events []string
	send   []string
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Follow events from the realtime server",
	Long: `Connect to the realtime websocket server and print connection events
and the message types selected with --event until interrupted.

The connection is re-established with exponential backoff after every
drop. The command exits with an error once the configured number of
reconnect attempts has failed.

Examples:
  # Print connection events only
  parley listen --url ws://localhost:3001/ws

  # Follow chat messages and announce ourselves on connect
  parley listen --event message --send 'join={"room":"general"}'`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVar(&listenFlags.url, "url", "", "websocket URL (overrides transport.url)")
	listenCmd.Flags().StringSliceVarP(&listenFlags.events, "event", "e", nil, "inbound message types to print")
	listenCmd.Flags().StringArrayVar(&listenFlags.send, "send", nil, "message sent after each connect, as type=json")
}

// outbound is a message sent after every successful connect.
type outbound struct {
	eventType string
	payload   json.RawMessage
}

// parseOutbound parses type=payload. A payload that is not valid JSON is
// sent as a JSON string.
func parseOutbound(s string) (outbound, error) {
	eventType, payload, _ := strings.Cut(s, "=")
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return outbound{}, fmt.Errorf("invalid --send value %q: want type=payload", s)
	}

	msg := outbound{eventType: eventType}
	switch {
	case payload == "":
	case json.Valid([]byte(payload)):
		msg.payload = json.RawMessage(payload)
	default:
		raw, err := json.Marshal(payload)
		if err != nil {
			return outbound{}, err
		}
		msg.payload = raw
	}
	return msg, nil
}

// transportConfig maps the configuration file onto the transport.
func transportConfig(cfg config.TransportConfig, header http.Header) transport.Config {
	ping := cfg.PingInterval
	if ping < 0 {
		ping = 0
	}
	return transport.Config{
		URL:                  cfg.URL,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		BaseDelay:            cfg.BaseDelay,
		MaxDelay:             cfg.MaxDelay,
		PingInterval:         ping,
		HandshakeTimeout:     cfg.HandshakeTimeout,
		Header:               header,
	}
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()

	url := cfg.Transport.URL
	if listenFlags.url != "" {
		url = listenFlags.url
	}
	if url == "" {
		return cli.NewCommandError(cmd.Name(), errors.New("no websocket URL: set transport.url or pass --url"))
	}

	var sends []outbound
	for _, s := range listenFlags.send {
		msg, err := parseOutbound(s)
		if err != nil {
			return err
		}
		sends = append(sends, msg)
	}

	ctx, cancel := cli.SetupSignalHandler()
	defer cancel()

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	group, groupCtx := errgroup.WithContext(ctx)
	if cfg.Telemetry.Metrics.Enabled && cfg.Telemetry.Metrics.Address != "" {
		group.Go(func() error {
			return collector.Serve(groupCtx, cfg.Telemetry.Metrics.Address)
		})
	}

	spanCtx, span := tracer.Start(ctx, "listen")
	defer span.End()

	header := http.Header{}
	tracing.Inject(spanCtx, header)

	tcfg := transportConfig(cfg.Transport, header)
	tcfg.URL = url
	t := transport.New(tcfg,
		transport.WithObserver(collector),
		transport.WithLogger(slog.Default().With("component", "transport")),
	)

	printer := &eventPrinter{w: cmd.OutOrStdout()}
	fatal := make(chan error, 1)

	t.On(transport.EventConnection, func(ev transport.Event) {
		printer.print(ev)
		var p transport.ConnectionPayload
		if ev.Decode(&p) == nil && p.Status == transport.StatusConnected {
			for _, msg := range sends {
				t.Send(msg.eventType, msg.payload)
			}
		}
	})
	t.On(transport.EventReconnecting, printer.print)
	t.On(transport.EventError, func(ev transport.Event) {
		printer.print(ev)
		if p, ok := ev.Payload.(transport.ErrorPayload); ok && p.Fatal {
			select {
			case fatal <- errors.New(p.Message):
			default:
			}
		}
	})
	for _, eventType := range listenFlags.events {
		t.On(eventType, printer.print)
	}

	slog.Info("connecting", "url", url, "client_id", t.ClientID())
	t.Connect()

	select {
	case <-ctx.Done():
		err = nil
	case err = <-fatal:
		tracing.SetError(span, err)
	}

	t.Disconnect()
	cancel()
	if werr := group.Wait(); werr != nil {
		slog.Warn("metrics server stopped with error", "error", werr)
	}
	return err
}

// eventPrinter writes one line per event. Listeners run on transport
// goroutines, so writes are serialized.
type eventPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *eventPrinter) print(ev transport.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %-12s %s\n", time.Now().Format(time.TimeOnly), ev.Type, describeEvent(ev))
}

// describeEvent renders the payload of ev for humans.
func describeEvent(ev transport.Event) string {
	switch p := ev.Payload.(type) {
	case transport.ConnectionPayload:
		return p.Status
	case transport.ReconnectingPayload:
		return fmt.Sprintf("attempt %d/%d in %s", p.Attempt, p.MaxAttempts, p.NextAttemptIn)
	case transport.ErrorPayload:
		if p.Fatal {
			return "fatal: " + p.Message
		}
		return p.Message
	case json.RawMessage:
		if len(p) == 0 {
			return "-"
		}
		return string(p)
	}

	raw, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Sprintf("%v", ev.Payload)
	}
	return string(raw)
}
