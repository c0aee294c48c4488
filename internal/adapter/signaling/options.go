package signaling

import (
	"context"
	"log/slog"
	"sync/atomic"

	"nhooyr.io/websocket"

	"callsignal/internal/domain"
)

// Option configures a Socket.
type Option func(*Socket)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Socket) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReporter sets where failures are reported. Without one, failures are
// only logged.
func WithReporter(r domain.TelemetryReporter) Option {
	return func(s *Socket) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithCallPresence hands the ongoing-call flag to an external owner.
func WithCallPresence(p domain.CallPresence) Option {
	return func(s *Socket) {
		if p != nil {
			s.presence = p
		}
	}
}

// WithDialOptions passes options (headers, HTTP client, subprotocols) to the
// WebSocket dial.
func WithDialOptions(opts *websocket.DialOptions) Option {
	return func(s *Socket) {
		s.dialOpts = opts
	}
}

type discardReporter struct{}

func (discardReporter) Report(context.Context, error, domain.Severity, map[string]string) {}

// memoryPresence is the ongoing-call flag used when no owner is injected.
type memoryPresence struct {
	ongoing atomic.Bool
}

func (p *memoryPresence) SetOngoingCall(ongoing bool) { p.ongoing.Store(ongoing) }
func (p *memoryPresence) OngoingCall() bool           { return p.ongoing.Load() }
