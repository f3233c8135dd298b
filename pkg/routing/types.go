package routing

import (
	"log/slog"
	"time"

	"mercator-hq/parley/pkg/providers"
)

// SwitchReason says why the active provider changed.
type SwitchReason string

const (
	// ReasonExplicit is a switch requested through SetProvider.
	ReasonExplicit SwitchReason = "explicit"

	// ReasonFailover is an automatic switch after a failover-eligible error.
	ReasonFailover SwitchReason = "failover"
)

// SwitchEvent records one change of the active provider.
type SwitchEvent struct {
	From   providers.Name
	To     providers.Name
	Reason SwitchReason

	// Cause is the error that triggered a failover (nil for explicit switches).
	Cause error

	At time.Time
}

// LogValue implements slog.LogValuer.
func (e SwitchEvent) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("from", string(e.From)),
		slog.String("to", string(e.To)),
		slog.String("reason", string(e.Reason)),
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.String("cause", e.Cause.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Options configures an Orchestrator.
type Options struct {
	// Default is the initially active provider.
	Default providers.Name

	// Fallback receives traffic after a failover-eligible error.
	Fallback providers.Name

	// FailoverEnabled turns automatic failover on.
	FailoverEnabled bool

	// Logger receives switch and failure logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Stats is a snapshot of orchestrator counters.
type Stats struct {
	// TotalRequests counts Chat and ChatStream calls.
	TotalRequests int64

	// RequestsPerProvider counts attempts per provider, including the
	// attempt made after a failover.
	RequestsPerProvider map[providers.Name]int64

	// Failovers counts automatic switches.
	Failovers int64

	// ExplicitSwitches counts SetProvider calls that changed the provider.
	ExplicitSwitches int64

	// Errors counts calls that returned an error, cancellations excluded.
	Errors int64

	// Cancelled counts calls that ended with a caller cancellation,
	// including streams closed before they finished.
	Cancelled int64

	// LastResetTime is when statistics were last reset.
	LastResetTime time.Time
}
