package signaling

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"callsignal/internal/domain"
)

// --- test doubles ---

type listenerCall struct {
	name   string
	env    domain.Envelope
	callID domain.CallID
}

type recordingListener struct {
	mu    sync.Mutex
	calls []listenerCall

	onEstablished func()
	onOffer       func()
}

func (l *recordingListener) record(c listenerCall) {
	l.mu.Lock()
	l.calls = append(l.calls, c)
	l.mu.Unlock()
}

func (l *recordingListener) OnConnectionEstablished() {
	l.record(listenerCall{name: "established"})
	if l.onEstablished != nil {
		l.onEstablished()
	}
}

func (l *recordingListener) OnLoginSuccessful(env domain.Envelope) {
	l.record(listenerCall{name: "login", env: env})
}

func (l *recordingListener) OnOfferReceived(env domain.Envelope) {
	l.record(listenerCall{name: "offer", env: env})
	if l.onOffer != nil {
		l.onOffer()
	}
}

func (l *recordingListener) OnAnswerReceived(env domain.Envelope) {
	l.record(listenerCall{name: "answer", env: env})
}

func (l *recordingListener) OnMediaReceived(env domain.Envelope) {
	l.record(listenerCall{name: "media", env: env})
}

func (l *recordingListener) OnByeReceived(callID domain.CallID) {
	l.record(listenerCall{name: "bye", callID: callID})
}

func (l *recordingListener) OnErrorReceived(env domain.Envelope) {
	l.record(listenerCall{name: "error", env: env})
}

func (l *recordingListener) snapshot() []listenerCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]listenerCall, len(l.calls))
	copy(out, l.calls)
	return out
}

func (l *recordingListener) names() []string {
	calls := l.snapshot()
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.name
	}
	return names
}

type reportCall struct {
	err      error
	severity domain.Severity
	metadata map[string]string
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []reportCall
}

func (r *recordingReporter) Report(_ context.Context, err error, severity domain.Severity, metadata map[string]string) {
	r.mu.Lock()
	r.reports = append(r.reports, reportCall{err: err, severity: severity, metadata: metadata})
	r.mu.Unlock()
}

func (r *recordingReporter) snapshot() []reportCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reportCall, len(r.reports))
	copy(out, r.reports)
	return out
}

func (r *recordingReporter) count(severity domain.Severity) int {
	n := 0
	for _, rep := range r.snapshot() {
		if rep.severity == severity {
			n++
		}
	}
	return n
}

// --- peer server ---

// startPeer runs a WebSocket server that hands each accepted connection to
// handler and returns its host and port.
func startPeer(t *testing.T, handler func(ctx context.Context, ws *websocket.Conn)) (string, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer ws.CloseNow()
		handler(context.Background(), ws)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

// drain reads until the connection closes, so pings are answered and close
// frames are seen.
func drain(ctx context.Context, ws *websocket.Conn) {
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			return
		}
	}
}

// deadAddr returns a local port with nothing listening on it.
func deadAddr(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())
	return "127.0.0.1", addr.Port
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Scheme = "ws"
	cfg.ConnectTimeout = 3 * time.Second
	cfg.RequestTimeout = 3 * time.Second
	return cfg
}

func newTestSocket(t *testing.T, reporter domain.TelemetryReporter, opts ...Option) *Socket {
	t.Helper()
	opts = append([]Option{WithReporter(reporter)}, opts...)
	s := New(testConfig(), opts...)
	t.Cleanup(s.Destroy)
	return s
}

func waitDone(t *testing.T, s *Socket) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not end in time")
	}
}
