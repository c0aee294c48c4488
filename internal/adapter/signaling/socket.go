// Package signaling implements the call-control signaling channel: one
// WebSocket connection carrying JSON envelopes in both directions.
//
// A Socket is long-lived. Each successful Connect starts a connection
// lifetime that runs until the peer goes away, the transport fails, the
// Connect context is cancelled or Destroy is called. Connect never retries;
// reconnection is the caller's decision.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/sony/gobreaker/v2"
	"nhooyr.io/websocket"

	"callsignal/internal/domain"
)

const subsystem = "signaling"

type dialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// Socket is the signaling endpoint used by call control. All methods are safe
// for concurrent use.
type Socket struct {
	cfg      Config
	logger   *slog.Logger
	reporter domain.TelemetryReporter
	presence domain.CallPresence
	dialOpts *websocket.DialOptions
	dial     dialFunc
	breaker  *gobreaker.CircuitBreaker[*websocket.Conn]

	mu      sync.Mutex
	current *connection
}

// New creates a disconnected Socket. Zero fields of cfg take their defaults.
func New(cfg Config, opts ...Option) *Socket {
	s := &Socket{
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		reporter: discardReporter{},
		presence: &memoryPresence{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
		conn, _, err := websocket.Dial(ctx, url, s.dialOpts)
		return conn, err
	}

	maxAttempts := s.cfg.MaxConnectAttempts
	logger := s.logger
	s.breaker = gobreaker.NewCircuitBreaker[*websocket.Conn](gobreaker.Settings{
		Name:        "signaling:dial",
		MaxRequests: 1, // one trial dial in half-open state
		Timeout:     s.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxAttempts
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// A dial abandoned by the caller says nothing about the server, so
		// it neither closes a half-open breaker nor resets the failure run.
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	})
	return s
}

// Connect makes one attempt to open the signaling connection to host:port.
// On success it returns once OnConnectionEstablished has been queued for
// listener; the connection then runs in the background until it closes.
// Cancelling ctx ends the connection the same way Destroy does.
//
// On failure the error is reported, returned, and wraps
// domain.ErrConnectionFailure (or domain.ErrSessionCancelled when ctx was
// cancelled first).
func (s *Socket) Connect(ctx context.Context, host string, port int, listener domain.SignalListener) error {
	if listener == nil {
		return domain.NewSubSystemError(subsystem, "Socket.Connect", domain.ErrInvalidInput, "nil listener")
	}

	s.mu.Lock()
	if s.current != nil && !s.current.closed() {
		s.mu.Unlock()
		return domain.NewSubSystemError(subsystem, "Socket.Connect", domain.ErrAlreadyConnected, s.current.url)
	}
	c := newConnection(ctx, s.cfg, s.cfg.URL(host, port), listener, s.logger, s.reporter)
	s.current = c
	s.mu.Unlock()

	return c.open(s.breaker, s.dial)
}

// Destroy closes the current connection immediately. Pending outbound data is
// discarded and no listener callback starts after Destroy returns. It is safe
// to call from inside a listener callback and more than once.
func (s *Socket) Destroy() {
	s.mu.Lock()
	c := s.current
	s.mu.Unlock()
	if c != nil {
		c.destroy()
	}
}

// Send serializes message as JSON and queues it for the connection loop.
// Only the most recent unsent message is kept. Send never waits for the
// network and does not confirm delivery.
func (s *Socket) Send(message any) error {
	c := s.live()
	if c == nil {
		return domain.NewSubSystemError(subsystem, "Socket.Send", domain.ErrNotConnected, "")
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return domain.NewSubSystemError(subsystem, "Socket.Send", domain.ErrInvalidInput, "marshal message").WithCause(err)
	}
	if c.mailbox.Put(payload) {
		s.logger.Debug("outbound message superseded", "conn_id", c.id)
	}
	return nil
}

// State reports the state of the current connection lifetime.
func (s *Socket) State() domain.ConnectionState {
	s.mu.Lock()
	c := s.current
	s.mu.Unlock()
	if c == nil {
		return domain.StateDisconnected
	}
	return c.currentState()
}

// Done is closed when the current connection lifetime ends. It is already
// closed when Connect has never been called.
func (s *Socket) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return closedChan
	}
	return s.current.done
}

// Err returns how the last connection lifetime ended: nil while it is running,
// an error wrapping domain.ErrSessionCancelled for Destroy or cancellation,
// and one wrapping domain.ErrConnectionFailure otherwise.
func (s *Socket) Err() error {
	s.mu.Lock()
	c := s.current
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.result()
}

// SetOngoingCall records whether a call is in progress. The socket never
// changes the flag itself.
func (s *Socket) SetOngoingCall(ongoing bool) {
	s.presence.SetOngoingCall(ongoing)
}

// OngoingCall reports the flag last set with SetOngoingCall.
func (s *Socket) OngoingCall() bool {
	return s.presence.OngoingCall()
}

// BreakerState returns the dial circuit breaker state for monitoring.
func (s *Socket) BreakerState() gobreaker.State {
	return s.breaker.State()
}

func (s *Socket) live() *connection {
	s.mu.Lock()
	c := s.current
	s.mu.Unlock()
	if c == nil || c.closed() {
		return nil
	}
	return c
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

var _ domain.CallPresence = (*Socket)(nil)
