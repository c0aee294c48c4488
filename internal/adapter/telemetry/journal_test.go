package telemetry

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callsignal/internal/domain"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "nested", "reports.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalReportAndList(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.Report(ctx, domain.NewSubSystemError("signaling", "Socket.Connect", domain.ErrConnectionFailure, "dial"),
		domain.SeverityError, map[string]string{"conn_id": "c1"})
	j.Report(ctx, domain.NewSubSystemError("signaling", "Route", domain.ErrProtocolParse, "bye"),
		domain.SeverityWarning, map[string]string{"conn_id": "c1"})
	j.Report(ctx, domain.NewSubSystemError("signaling", "connection.run", domain.ErrSessionCancelled, ""),
		domain.SeverityInfo, nil)

	reports, err := j.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	// Newest first.
	assert.Equal(t, domain.SeverityInfo, reports[0].Severity)
	assert.Equal(t, domain.CodeSessionCancelled, reports[0].Code)
	assert.Nil(t, reports[0].Metadata)

	assert.Equal(t, domain.SeverityWarning, reports[1].Severity)
	assert.Equal(t, domain.CodeProtocolParse, reports[1].Code)

	assert.Equal(t, domain.SeverityError, reports[2].Severity)
	assert.Equal(t, domain.CodeConnectionFailure, reports[2].Code)
	assert.Equal(t, "c1", reports[2].Metadata["conn_id"])
	assert.Contains(t, reports[2].Message, "signaling connection failed")
	assert.NotEmpty(t, reports[2].ID)
	assert.False(t, reports[2].CreatedAt.IsZero())
}

func TestJournalListLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		j.Report(ctx, domain.ErrProtocolParse, domain.SeverityWarning, nil)
	}

	reports, err := j.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	all, err := j.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestJournalCount(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	j.Report(ctx, domain.ErrProtocolParse, domain.SeverityWarning, nil)
	j.Report(ctx, domain.ErrProtocolParse, domain.SeverityWarning, nil)
	j.Report(ctx, domain.ErrConnectionFailure, domain.SeverityError, nil)

	n, err := j.Count(ctx, domain.SeverityWarning)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = j.Count(ctx, domain.SeverityInfo)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJournalReopenKeepsReports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	j, err := OpenJournal(path, logger)
	require.NoError(t, err)
	j.Report(context.Background(), domain.ErrConnectionFailure, domain.SeverityError, nil)
	require.NoError(t, j.Close())

	j, err = OpenJournal(path, logger)
	require.NoError(t, err)
	defer j.Close()
	reports, err := j.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestJournalRecordClosedDB(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.db.Close())

	err := j.Record(context.Background(), &domain.Report{Message: "x"})
	assert.ErrorIs(t, err, domain.ErrTelemetryWrite)
}
