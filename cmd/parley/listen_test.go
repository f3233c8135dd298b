package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/transport"
)

func TestParseOutbound(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantType    string
		wantPayload string
		wantErr     bool
	}{
		{name: "json object", input: `join={"room":"general"}`, wantType: "join", wantPayload: `{"room":"general"}`},
		{name: "plain text", input: "say=hello there", wantType: "say", wantPayload: `"hello there"`},
		{name: "no payload", input: "ping", wantType: "ping"},
		{name: "empty type", input: "=x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := parseOutbound(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.eventType != tt.wantType {
				t.Errorf("expected type %q, got %q", tt.wantType, msg.eventType)
			}
			if string(msg.payload) != tt.wantPayload {
				t.Errorf("expected payload %s, got %s", tt.wantPayload, msg.payload)
			}
		})
	}
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		event transport.Event
		want  string
	}{
		{transport.Event{Type: transport.EventConnection, Payload: transport.ConnectionPayload{Status: transport.StatusConnected}}, "connected"},
		{transport.Event{Type: transport.EventReconnecting, Payload: transport.ReconnectingPayload{Attempt: 2, MaxAttempts: 5, NextAttemptIn: 2 * time.Second}}, "attempt 2/5 in 2s"},
		{transport.Event{Type: transport.EventError, Payload: transport.ErrorPayload{Message: "gone", Fatal: true}}, "fatal: gone"},
		{transport.Event{Type: "message", Payload: json.RawMessage(`{"text":"hi"}`)}, `{"text":"hi"}`},
		{transport.Event{Type: "message", Payload: json.RawMessage(nil)}, "-"},
	}

	for _, tt := range tests {
		if got := describeEvent(tt.event); got != tt.want {
			t.Errorf("describeEvent(%s) = %q, want %q", tt.event.Type, got, tt.want)
		}
	}
}

func TestTransportConfig(t *testing.T) {
	cfg := config.Default().Transport
	cfg.URL = "ws://localhost:3001/ws"
	cfg.PingInterval = -1

	header := http.Header{"X-Test": []string{"1"}}
	got := transportConfig(cfg, header)

	if got.PingInterval != 0 {
		t.Errorf("expected negative ping interval to disable pings, got %s", got.PingInterval)
	}
	if got.MaxReconnectAttempts != config.DefaultMaxReconnectAttempts {
		t.Errorf("expected %d attempts, got %d", config.DefaultMaxReconnectAttempts, got.MaxReconnectAttempts)
	}
	if got.Header.Get("X-Test") != "1" {
		t.Error("expected header to be carried over")
	}
}

func TestRunListen_GivesUpOnUnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	cfg := config.Default()
	cfg.Transport.MaxReconnectAttempts = 2
	cfg.Transport.BaseDelay = time.Millisecond
	cfg.Transport.MaxDelay = 5 * time.Millisecond
	cfg.Transport.HandshakeTimeout = time.Second

	orig := config.GetConfig()
	config.SetConfig(cfg)
	t.Cleanup(func() { config.SetConfig(orig) })

	origURL := listenFlags.url
	listenFlags.url = url
	t.Cleanup(func() { listenFlags.url = origURL })

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	done := make(chan error, 1)
	go func() { done <- runListen(cmd, nil) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error after reconnection gave up")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not give up")
	}

	got := out.String()
	if !strings.Contains(got, "reconnecting") {
		t.Errorf("expected reconnect events, got:\n%s", got)
	}
	if !strings.Contains(got, "fatal:") {
		t.Errorf("expected a fatal error event, got:\n%s", got)
	}
}

func TestRunListen_RequiresURL(t *testing.T) {
	orig := config.GetConfig()
	config.SetConfig(config.Default())
	t.Cleanup(func() { config.SetConfig(orig) })

	origURL := listenFlags.url
	listenFlags.url = ""
	t.Cleanup(func() { listenFlags.url = origURL })

	if err := runListen(&cobra.Command{}, nil); err == nil {
		t.Fatal("expected an error without a URL")
	}
}
