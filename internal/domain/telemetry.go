package domain

import (
	"context"
	"errors"
	"time"
)

// Severity grades a telemetry report.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSeverity is the inverse of Severity.String. Unknown names map to
// SeverityError.
func ParseSeverity(s string) Severity {
	switch s {
	case "info":
		return SeverityInfo
	case "warning":
		return SeverityWarning
	default:
		return SeverityError
	}
}

// SeverityOf grades err: expected cancellation is informational, a single bad
// frame is a warning, everything else is an error.
func SeverityOf(err error) Severity {
	switch {
	case errors.Is(err, ErrSessionCancelled):
		return SeverityInfo
	case errors.Is(err, ErrProtocolParse):
		return SeverityWarning
	default:
		return SeverityError
	}
}

// TelemetryReporter accepts failure reports. Implementations must be safe for
// concurrent use and must not block the caller for long.
type TelemetryReporter interface {
	Report(ctx context.Context, err error, severity Severity, metadata map[string]string)
}

// Report is one persisted telemetry record.
type Report struct {
	ID        string            `json:"id"`
	Severity  Severity          `json:"severity"`
	Code      ErrorCode         `json:"code"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
