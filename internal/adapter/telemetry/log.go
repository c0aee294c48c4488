// Package telemetry provides domain.TelemetryReporter implementations.
package telemetry

import (
	"context"
	"log/slog"
	"sort"

	"callsignal/internal/domain"
)

// LogReporter writes each report as one structured log record.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a reporter that logs to logger.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report implements domain.TelemetryReporter.
func (r *LogReporter) Report(ctx context.Context, err error, severity domain.Severity, metadata map[string]string) {
	attrs := make([]slog.Attr, 0, len(metadata)+2)
	attrs = append(attrs,
		slog.String("severity", severity.String()),
		slog.Any("error", err),
	)
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, metadata[k]))
	}
	r.logger.LogAttrs(ctx, levelOf(severity), "telemetry report", attrs...)
}

func levelOf(s domain.Severity) slog.Level {
	switch s {
	case domain.SeverityInfo:
		return slog.LevelInfo
	case domain.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

var _ domain.TelemetryReporter = (*LogReporter)(nil)
