// Package callstate keeps the call-control view of the signaling channel.
package callstate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"callsignal/internal/domain"
)

// Tracker listens to the signaling socket, remembers login and call state,
// and republishes every callback on the event bus.
type Tracker struct {
	bus    domain.EventBus
	logger *slog.Logger

	mu       sync.Mutex
	ongoing  bool
	loggedIn bool
	lastBye  domain.CallID
	hasBye   bool
}

// New creates a Tracker publishing to bus.
func New(bus domain.EventBus, logger *slog.Logger) *Tracker {
	return &Tracker{bus: bus, logger: logger}
}

// OnConnectionEstablished implements domain.SignalListener.
func (t *Tracker) OnConnectionEstablished() {
	t.mu.Lock()
	t.loggedIn = false
	t.mu.Unlock()
	t.publish(domain.EventSignalConnected, nil)
}

// OnLoginSuccessful implements domain.SignalListener.
func (t *Tracker) OnLoginSuccessful(env domain.Envelope) {
	t.mu.Lock()
	t.loggedIn = true
	t.mu.Unlock()
	t.publish(domain.EventSignalLogin, env.Raw)
}

// OnOfferReceived implements domain.SignalListener.
func (t *Tracker) OnOfferReceived(env domain.Envelope) {
	t.publish(domain.EventSignalOffer, env.Raw)
}

// OnAnswerReceived implements domain.SignalListener.
func (t *Tracker) OnAnswerReceived(env domain.Envelope) {
	t.publish(domain.EventSignalAnswer, env.Raw)
}

// OnMediaReceived implements domain.SignalListener.
func (t *Tracker) OnMediaReceived(env domain.Envelope) {
	t.publish(domain.EventSignalMedia, env.Raw)
}

// OnByeReceived implements domain.SignalListener.
func (t *Tracker) OnByeReceived(callID domain.CallID) {
	t.mu.Lock()
	t.lastBye = callID
	t.hasBye = true
	t.mu.Unlock()

	// A canonical UUID needs no JSON escaping.
	t.publish(domain.EventSignalBye, json.RawMessage(fmt.Sprintf(`{"callID":%q}`, callID.String())))
}

// OnErrorReceived implements domain.SignalListener. Credential and token
// errors invalidate the login.
func (t *Tracker) OnErrorReceived(env domain.Envelope) {
	t.mu.Lock()
	t.loggedIn = false
	t.mu.Unlock()
	t.publish(domain.EventSignalError, env.Raw)
}

// SetOngoingCall implements domain.CallPresence.
func (t *Tracker) SetOngoingCall(ongoing bool) {
	t.mu.Lock()
	t.ongoing = ongoing
	t.mu.Unlock()
}

// OngoingCall implements domain.CallPresence.
func (t *Tracker) OngoingCall() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ongoing
}

// LoggedIn reports whether the last login succeeded and has not been revoked
// by a credential or token error.
func (t *Tracker) LoggedIn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loggedIn
}

// LastBye returns the call id of the most recent bye.
func (t *Tracker) LastBye() (domain.CallID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastBye, t.hasBye
}

func (t *Tracker) publish(typ domain.EventType, payload json.RawMessage) {
	t.logger.Debug("signal event", "event", string(typ))
	t.bus.Publish(context.Background(), domain.Event{
		Type:      typ,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

var (
	_ domain.SignalListener = (*Tracker)(nil)
	_ domain.CallPresence   = (*Tracker)(nil)
)
