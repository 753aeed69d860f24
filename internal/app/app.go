// Package app wires the relay server: configuration from the
// environment, structured logging, the room registry, and the HTTP
// surface carrying the websocket endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"batupuz/internal/net/ws"
	"batupuz/internal/relay"
)

// Config is parsed from the environment.
type Config struct {
	Addr     string `env:"ADDR" envDefault:":8082"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Relay relay.Config
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Run starts the relay and serves until the context is cancelled or the
// listener fails.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	registry := relay.NewRegistry(cfg.Relay, logger)
	handler := ws.NewHandler(registry, ws.HandlerConfig{Logger: logger})

	srv := &http.Server{Addr: cfg.Addr, Handler: newRouter(registry, handler)}

	errs := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	logger.Info().Str("addr", cfg.Addr).Msg("relay listening")

	select {
	case err := <-errs:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func newRouter(registry *relay.Registry, handler *ws.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	r.Get("/diagnostics", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","serverTime":%d,"rooms":%d}`, time.Now().UnixMilli(), registry.RoomCount())
	})

	r.Get("/ws", handler.Handle)

	return r
}
