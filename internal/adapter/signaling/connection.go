package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/trace"
	"nhooyr.io/websocket"

	"callsignal/internal/domain"
	"callsignal/internal/infra/tracer"
)

// connection is one lifetime of a Socket, from dial to close.
type connection struct {
	id       string
	url      string
	cfg      Config
	logger   *slog.Logger
	reporter domain.TelemetryReporter
	mailbox  *Mailbox
	delivery *deliveryQueue

	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32

	// ws is set before the loop goroutine starts and not changed after.
	ws *websocket.Conn

	finishOnce sync.Once
	err        error
	done       chan struct{}
}

func newConnection(parent context.Context, cfg Config, url string, listener domain.SignalListener, logger *slog.Logger, reporter domain.TelemetryReporter) *connection {
	ctx, cancel := context.WithCancel(parent)
	c := &connection{
		id:       newConnID(),
		url:      url,
		cfg:      cfg,
		logger:   logger,
		reporter: reporter,
		mailbox:  NewMailbox(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.delivery = newDeliveryQueue(listener, c.listenerPanicked)
	c.state.Store(int32(domain.StateConnecting))
	return c
}

func newConnID() string {
	t := time.Now()
	return ulid.MustNew(ulid.Timestamp(t), ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)).String()
}

// open dials once. On success it starts the delivery and loop goroutines.
func (c *connection) open(breaker *gobreaker.CircuitBreaker[*websocket.Conn], dial dialFunc) error {
	ctx, span := tracer.StartSpan(c.ctx, "signaling.connect",
		trace.WithAttributes(
			tracer.StringAttr("signaling.url", c.url),
			tracer.StringAttr("signaling.conn_id", c.id),
		),
	)
	defer span.End()

	ws, err := breaker.Execute(func() (*websocket.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
		return dial(dialCtx, c.url)
	})
	if err == nil && c.ctx.Err() != nil {
		ws.CloseNow()
		err = c.ctx.Err()
	}
	if err != nil {
		err = c.connectError(err)
		tracer.RecordError(span, err)
		c.finish(err)
		return err
	}

	ws.SetReadLimit(c.cfg.ReadLimit)
	c.ws = ws
	c.state.Store(int32(domain.StateConnected))
	tracer.SetOK(span)
	c.logger.Info("signaling connected", "conn_id", c.id, "url", c.url)

	c.delivery.push(func(l domain.SignalListener) { l.OnConnectionEstablished() })
	go c.delivery.run()
	go c.run()
	return nil
}

func (c *connection) connectError(err error) error {
	if c.ctx.Err() != nil {
		return c.cancelled("Socket.Connect", err)
	}
	detail := "dial " + c.url
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		detail = "circuit open for " + c.url
	}
	return domain.NewSubSystemError(subsystem, "Socket.Connect", domain.ErrConnectionFailure, detail).WithCause(err)
}

type loopEventKind int

const (
	eventCancelled loopEventKind = iota
	eventOutbound
	eventFrame
	eventReadError
	eventKeepAlive
	eventPingDone
)

type loopEvent struct {
	kind  loopEventKind
	frame []byte
	err   error
}

// loopInputs are the sources the connection loop waits on besides the
// lifetime context and the mailbox.
type loopInputs struct {
	frames    <-chan []byte
	readErr   <-chan error
	keepAlive <-chan time.Time
	pingDone  <-chan error
}

// next blocks until something is ready. Cancellation wins over everything
// and a pending outbound message wins over inbound frames and timers.
func (c *connection) next(in loopInputs) loopEvent {
	if c.ctx.Err() != nil {
		return loopEvent{kind: eventCancelled}
	}
	select {
	case <-c.mailbox.Ready():
		return loopEvent{kind: eventOutbound}
	default:
	}

	select {
	case <-c.ctx.Done():
		return loopEvent{kind: eventCancelled}
	case <-c.mailbox.Ready():
		return loopEvent{kind: eventOutbound}
	case frame := <-in.frames:
		return loopEvent{kind: eventFrame, frame: frame}
	case err := <-in.readErr:
		return loopEvent{kind: eventReadError, err: err}
	case <-in.keepAlive:
		return loopEvent{kind: eventKeepAlive}
	case err := <-in.pingDone:
		return loopEvent{kind: eventPingDone, err: err}
	}
}

// run is the connection loop. It is the only consumer of the mailbox and of
// inbound frames.
func (c *connection) run() {
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go c.readLoop(frames, readErr)

	keepAlive := time.NewTicker(c.cfg.KeepAliveInterval)
	defer keepAlive.Stop()
	pingDone := make(chan error, 1)
	pinging := false

	in := loopInputs{frames: frames, readErr: readErr, keepAlive: keepAlive.C, pingDone: pingDone}
	for {
		ev := c.next(in)
		switch ev.kind {
		case eventCancelled:
			c.shutdown(c.cancelled("connection.run", c.ctx.Err()))
			return
		case eventOutbound:
			if err := c.flush(); err != nil {
				c.shutdown(err)
				return
			}
		case eventFrame:
			c.handleFrame(ev.frame)
		case eventReadError:
			c.shutdown(c.readError(ev.err))
			return
		case eventKeepAlive:
			if !pinging {
				pinging = true
				go func() { pingDone <- c.ping() }()
			}
		case eventPingDone:
			pinging = false
			if ev.err != nil {
				c.shutdown(c.failure("connection.ping", "keep-alive", ev.err))
				return
			}
		}
	}
}

// readLoop feeds text frames to the loop. Reads are not tied to the lifetime
// context so that closing the socket, not cancellation, ends them.
func (c *connection) readLoop(frames chan<- []byte, readErr chan<- error) {
	readCtx := context.WithoutCancel(c.ctx)
	for {
		typ, data, err := c.ws.Read(readCtx)
		if err != nil {
			readErr <- err
			return
		}
		if typ != websocket.MessageText {
			c.logger.Debug("ignoring binary signaling frame", "conn_id", c.id, "bytes", len(data))
			continue
		}
		select {
		case frames <- data:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *connection) flush() error {
	msg, ok := c.mailbox.Take()
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.RequestTimeout)
	defer cancel()
	if err := c.ws.Write(ctx, websocket.MessageText, msg); err != nil {
		return c.failure("connection.write", "", err)
	}
	return nil
}

func (c *connection) ping() error {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.RequestTimeout)
	defer cancel()
	return c.ws.Ping(ctx)
}

func (c *connection) handleFrame(frame []byte) {
	ctx, span := tracer.StartSpan(c.ctx, "signaling.dispatch",
		trace.WithAttributes(
			tracer.StringAttr("signaling.conn_id", c.id),
			tracer.IntAttr("signaling.frame_bytes", len(frame)),
		),
	)
	defer span.End()

	d, err := c.route(frame, span)
	if err != nil {
		tracer.RecordError(span, err)
		c.logger.Warn("dropping signaling frame", "conn_id", c.id, "error", err)
		c.report(ctx, err)
		return
	}
	tracer.SetOK(span)
	if d == nil {
		c.logger.Debug("signaling frame ignored", "conn_id", c.id)
		return
	}
	c.delivery.push(d)
}

func (c *connection) route(frame []byte, span trace.Span) (Delivery, error) {
	env, err := ParseEnvelope(frame)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.StringAttr("signaling.kind", env.Kind.String()))
	return Route(env)
}

func (c *connection) readError(err error) error {
	if status := websocket.CloseStatus(err); status != -1 {
		return c.failure("connection.read", "closed by peer with status "+strconv.Itoa(int(status)), err)
	}
	return c.failure("connection.read", "", err)
}

// failure classifies a transport error. Errors caused by our own cancellation
// are expected; everything else is a connection failure.
func (c *connection) failure(op, detail string, err error) error {
	if c.ctx.Err() != nil {
		return c.cancelled(op, err)
	}
	return domain.NewSubSystemError(subsystem, op, domain.ErrConnectionFailure, detail).WithCause(err)
}

func (c *connection) cancelled(op string, cause error) error {
	return domain.NewSubSystemError(subsystem, op, domain.ErrSessionCancelled, "").WithCause(cause)
}

// shutdown ends a running lifetime. Cancellation drops undelivered callbacks
// and closes politely; on failure queued callbacks still run.
func (c *connection) shutdown(err error) {
	c.cancel()
	if domain.IsExpectedCancellation(err) {
		c.delivery.stop()
		ws := c.ws
		go func() { _ = ws.Close(websocket.StatusNormalClosure, "") }()
	} else {
		c.delivery.finish()
		_ = c.ws.CloseNow()
	}
	c.finish(err)
}

// destroy stops the lifetime and waits for the loop to exit.
func (c *connection) destroy() {
	c.delivery.stop()
	c.mailbox.Discard()
	c.cancel()
	<-c.done
}

func (c *connection) finish(err error) {
	c.finishOnce.Do(func() {
		c.err = err
		c.state.Store(int32(domain.StateClosed))
		c.cancel()
		if domain.IsExpectedCancellation(err) {
			c.logger.Info("signaling session closed", "conn_id", c.id)
		} else {
			c.logger.Error("signaling connection failed", "conn_id", c.id, "url", c.url, "error", err)
		}
		c.report(context.WithoutCancel(c.ctx), err)
		close(c.done)
	})
}

func (c *connection) listenerPanicked(r any) {
	err := domain.NewSubSystemError(subsystem, "SignalListener", domain.ErrListenerPanic, fmt.Sprint(r))
	c.logger.Error("signal listener panicked", "conn_id", c.id, "panic", r)
	c.reporter.Report(context.WithoutCancel(c.ctx), err, domain.SeverityError, c.metadata())
}

func (c *connection) report(ctx context.Context, err error) {
	c.reporter.Report(ctx, err, domain.SeverityOf(err), c.metadata())
}

func (c *connection) metadata() map[string]string {
	return map[string]string{
		"subsystem": subsystem,
		"conn_id":   c.id,
		"url":       c.url,
		"state":     c.currentState().String(),
	}
}

func (c *connection) currentState() domain.ConnectionState {
	return domain.ConnectionState(c.state.Load())
}

func (c *connection) closed() bool {
	return c.currentState() == domain.StateClosed || c.ctx.Err() != nil
}

func (c *connection) result() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}
