package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"callsignal/internal/domain"
	"callsignal/internal/infra/config"
	"callsignal/internal/infra/logger"
	"callsignal/internal/infra/middleware"
)

const defaultEchoAddr = "127.0.0.1:8765"

var echoHandshakeLimit = middleware.HandshakeLimit{PerMinute: 120, Burst: 20}

type echoResult struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id,omitempty"`
	Result  any    `json:"result"`
}

type echoCall struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func runEcho(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	addr := flags.Addr
	if addr == "" {
		addr = defaultEchoAddr
	}

	log, logCloser, err := logger.New(config.Defaults().Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.LimitHandshakes(ctx, echoHandshakeLimit, log)(echoHandler(log)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("echo server listening", "addr", "ws://"+addr+"/")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// echoHandler answers "login" with a logged-in result and sends every other
// request back as a method call with the same name and params.
func echoHandler(log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Warn("echo accept failed", "error", err)
			return
		}
		defer c.CloseNow()
		log.Info("echo client connected", "remote", r.RemoteAddr)

		ctx := r.Context()
		for {
			var req domain.Request
			if err := wsjson.Read(ctx, c, &req); err != nil {
				log.Info("echo client gone", "remote", r.RemoteAddr, "status", websocket.CloseStatus(err))
				return
			}

			var reply any
			if req.Method == "login" {
				reply = echoResult{
					JSONRPC: "2.0",
					ID:      req.ID,
					Result:  map[string]string{"message": "logged in"},
				}
			} else {
				reply = echoCall{JSONRPC: "2.0", Method: req.Method, Params: req.Params}
			}
			if err := wsjson.Write(ctx, c, reply); err != nil {
				log.Warn("echo write failed", "error", err)
				return
			}
		}
	})
}
