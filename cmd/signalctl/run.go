package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"callsignal/internal/adapter/signaling"
	"callsignal/internal/adapter/telemetry"
	"callsignal/internal/domain"
	"callsignal/internal/infra/config"
	"callsignal/internal/infra/logger"
	"callsignal/internal/infra/tracer"
	"callsignal/internal/usecase/callstate"
	"callsignal/internal/usecase/eventbus"
)

func run(args []string) error {
	// 1. Config
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath(flags))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if flags.Host != "" {
		cfg.Signaling.Host = flags.Host
	}
	if flags.Port != 0 {
		cfg.Signaling.Port = flags.Port
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Telemetry
	reporter, reporterCloser, err := initTelemetry(cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer reporterCloser()

	// 4. Event bus & call state
	bus := eventbus.New(log)
	defer bus.Close()
	bus.SubscribeAll(printEvent(os.Stdout))
	tracker := callstate.New(bus, log)

	// 5. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 6. Connect
	sock := signaling.New(signaling.FromConfig(cfg.Signaling),
		signaling.WithLogger(log),
		signaling.WithReporter(reporter),
		signaling.WithCallPresence(tracker),
	)
	if err := sock.Connect(ctx, cfg.Signaling.Host, cfg.Signaling.Port, tracker); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer sock.Destroy()

	if cfg.Signaling.Token != "" {
		login, err := domain.NewRequest("login", map[string]string{"token": cfg.Signaling.Token})
		if err != nil {
			return err
		}
		if err := sock.Send(login); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	return relay(ctx, sock, os.Stdin, log)
}

// relay sends each input line as a request until input ends, ctx is
// cancelled, or the connection closes.
func relay(ctx context.Context, sock *signaling.Socket, in io.Reader, log *slog.Logger) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sock.Done():
			if err := sock.Err(); err != nil && !domain.IsExpectedCancellation(err) {
				return err
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			req, err := parseLine(line)
			if err != nil {
				log.Warn("skipping input line", "error", err)
				continue
			}
			if err := sock.Send(req); err != nil {
				return err
			}
		}
	}
}

// parseLine turns `method {json params}` into a request. Params are optional.
func parseLine(line string) (domain.Request, error) {
	method, params, _ := strings.Cut(strings.TrimSpace(line), " ")
	params = strings.TrimSpace(params)
	if params == "" {
		return domain.NewRequest(method, nil)
	}
	return domain.NewRequest(method, json.RawMessage(params))
}

func initTelemetry(cfg config.TelemetryConfig, log *slog.Logger) (domain.TelemetryReporter, func() error, error) {
	reporters := telemetry.Multi{telemetry.NewLogReporter(log)}
	closer := func() error { return nil }

	if cfg.JournalPath != "" {
		journal, err := telemetry.OpenJournal(cfg.JournalPath, log)
		if err != nil {
			return nil, nil, err
		}
		reporters = append(reporters, journal)
		closer = journal.Close
	}
	return telemetry.NewThrottled(reporters, cfg.WarningsPerSecond, cfg.WarningBurst), closer, nil
}

func printEvent(w io.Writer) domain.EventHandler {
	return func(_ context.Context, e domain.Event) {
		if len(e.Payload) == 0 {
			fmt.Fprintf(w, "%s\n", e.Type)
			return
		}
		fmt.Fprintf(w, "%s %s\n", e.Type, e.Payload)
	}
}
