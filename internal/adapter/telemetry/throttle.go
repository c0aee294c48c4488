package telemetry

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"

	"callsignal/internal/domain"
)

// Throttled caps the rate of warning-level reports passed to the next
// reporter. Info and error reports always pass: they are rare and each one
// marks the end of a connection.
type Throttled struct {
	next    domain.TelemetryReporter
	limiter *rate.Limiter
	dropped atomic.Int64
}

// NewThrottled wraps next. A perSecond of 0 or less disables the cap.
func NewThrottled(next domain.TelemetryReporter, perSecond float64, burst int) *Throttled {
	t := &Throttled{next: next}
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return t
}

// Report implements domain.TelemetryReporter.
func (t *Throttled) Report(ctx context.Context, err error, severity domain.Severity, metadata map[string]string) {
	if severity == domain.SeverityWarning && t.limiter != nil && !t.limiter.Allow() {
		t.dropped.Add(1)
		return
	}
	t.next.Report(ctx, err, severity, metadata)
}

// Dropped returns how many warnings were suppressed.
func (t *Throttled) Dropped() int64 {
	return t.dropped.Load()
}

// Multi fans a report out to every reporter in order.
type Multi []domain.TelemetryReporter

// Report implements domain.TelemetryReporter.
func (m Multi) Report(ctx context.Context, err error, severity domain.Severity, metadata map[string]string) {
	for _, r := range m {
		r.Report(ctx, err, severity, metadata)
	}
}

var (
	_ domain.TelemetryReporter = (*Throttled)(nil)
	_ domain.TelemetryReporter = Multi(nil)
)
