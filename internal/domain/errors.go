package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrConfigLoad   = fmt.Errorf("failed to load configuration")
)

// Signaling sentinels. Every failure leaving the signaling socket wraps exactly
// one of these.
var (
	// ErrConnectionFailure covers dial and handshake errors, read/write errors
	// and closure of the socket by the peer.
	ErrConnectionFailure = fmt.Errorf("signaling connection failed")

	// ErrSessionCancelled marks a lifetime ended by Destroy or by cancellation
	// of the context it was connected with. It is a normal lifecycle event.
	ErrSessionCancelled = fmt.Errorf("signaling session cancelled")

	// ErrProtocolParse marks one inbound envelope that could not be parsed or
	// routed. The frame is dropped; the connection stays up.
	ErrProtocolParse = fmt.Errorf("signaling envelope malformed")

	ErrNotConnected     = fmt.Errorf("signaling socket not connected")
	ErrAlreadyConnected = fmt.Errorf("signaling socket already connected")
	ErrListenerPanic    = fmt.Errorf("signal listener panicked")
	ErrTelemetryWrite   = fmt.Errorf("telemetry write failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Socket.Connect")
	Err       error  // sentinel
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "signaling"); used for ErrorCode dispatch
	Cause     error  // underlying transport or decode error, if any
}

func (e *DomainError) Error() string {
	msg := e.Op + ": "
	if e.Detail != "" {
		msg += e.Detail + ": "
	}
	msg += e.Err.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *DomainError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WithCause attaches the underlying error and returns e.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsExpectedCancellation reports whether err is the normal end of a session
// rather than a failure.
func IsExpectedCancellation(err error) bool {
	return errors.Is(err, ErrSessionCancelled)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeConnectionFailure ErrorCode = "CONNECTION_FAILURE"
	CodeSessionCancelled  ErrorCode = "SESSION_CANCELLED"
	CodeProtocolParse     ErrorCode = "PROTOCOL_PARSE"
	CodeNotConnected      ErrorCode = "NOT_CONNECTED"
	CodeAlreadyConnected  ErrorCode = "ALREADY_CONNECTED"
	CodeListenerPanic     ErrorCode = "LISTENER_PANIC"
	CodeTelemetryWrite    ErrorCode = "TELEMETRY_WRITE"
	CodeConfigLoad        ErrorCode = "CONFIG_LOAD"

	// Subsystem-specific codes used by subSystemCodeMap.
	CodeInvalidOutbound ErrorCode = "SIGNALING_INVALID_OUTBOUND"

	// Category error codes, the fallback when no subsystem-specific code matches.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrInvalidInput: CodeInvalidInput,
	ErrConfigLoad:   CodeConfigLoad,

	ErrConnectionFailure: CodeConnectionFailure,
	ErrSessionCancelled:  CodeSessionCancelled,
	ErrProtocolParse:     CodeProtocolParse,
	ErrNotConnected:      CodeNotConnected,
	ErrAlreadyConnected:  CodeAlreadyConnected,
	ErrListenerPanic:     CodeListenerPanic,
	ErrTelemetryWrite:    CodeTelemetryWrite,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrInvalidInput: {
		"signaling": CodeInvalidOutbound,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	// Signaling sentinels are checked in a fixed order so a chain carrying
	// more than one resolves deterministically.
	for _, sentinel := range []error{
		ErrSessionCancelled,
		ErrConnectionFailure,
		ErrProtocolParse,
		ErrNotConnected,
		ErrAlreadyConnected,
		ErrListenerPanic,
		ErrTelemetryWrite,
		ErrConfigLoad,
		ErrInvalidInput,
	} {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
