package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ConnectionState is the lifecycle state of one signaling connection.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int32(s))
	}
}

// EnvelopeKind is the classification of an inbound signaling frame.
type EnvelopeKind int

const (
	EnvelopeUnrecognized EnvelopeKind = iota
	EnvelopeResult
	EnvelopeMethodCall
	EnvelopeErrorReport
)

func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeResult:
		return "result"
	case EnvelopeMethodCall:
		return "method"
	case EnvelopeErrorReport:
		return "error"
	default:
		return "unrecognized"
	}
}

// Envelope is one decoded inbound frame.
type Envelope struct {
	Kind   EnvelopeKind
	Raw    json.RawMessage            // frame exactly as received
	Fields map[string]json.RawMessage // top-level members
}

// Field returns the raw value of a top-level member, or nil when absent.
func (e Envelope) Field(name string) json.RawMessage {
	return e.Fields[name]
}

// Method returns the method name of a method-call envelope. ok is false when
// the member is absent or not a JSON string.
func (e Envelope) Method() (name string, ok bool) {
	raw, present := e.Fields["method"]
	if !present {
		return "", false
	}
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", false
	}
	// json.Unmarshal leaves name empty for a null member.
	return name, string(raw) != "null"
}

// CallID identifies a single call.
type CallID uuid.UUID

// canonicalUUIDLen is the length of xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx.
const canonicalUUIDLen = 36

// ParseCallID parses the canonical hyphenated UUID text form of a call
// identifier. The urn:uuid: prefix, braces and the bare 32-hex form that
// uuid.Parse also accepts are rejected.
func ParseCallID(s string) (CallID, error) {
	if len(s) != canonicalUUIDLen {
		return CallID{}, fmt.Errorf("parse call id %q: want %d characters, got %d", s, canonicalUUIDLen, len(s))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return CallID{}, fmt.Errorf("parse call id %q: %w", s, err)
	}
	return CallID(id), nil
}

func (c CallID) String() string {
	return uuid.UUID(c).String()
}

// IsZero reports whether c is the zero identifier.
func (c CallID) IsZero() bool {
	return uuid.UUID(c) == uuid.Nil
}

// Signaling error codes that are surfaced to the listener.
const (
	CodeCredentialError int64 = -32000
	CodeTokenError      int64 = -32001
)

// SignalListener receives routed signaling events. Every method is invoked on
// the socket's delivery goroutine, one at a time and in arrival order.
type SignalListener interface {
	OnConnectionEstablished()
	OnLoginSuccessful(env Envelope)
	OnOfferReceived(env Envelope)
	OnAnswerReceived(env Envelope)
	OnMediaReceived(env Envelope)
	OnByeReceived(callID CallID)
	OnErrorReceived(env Envelope)
}

// CallPresence stores whether a call is in progress. The signaling socket
// only stores and reports the flag; it never changes it on its own.
type CallPresence interface {
	SetOngoingCall(ongoing bool)
	OngoingCall() bool
}
