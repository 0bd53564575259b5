// Package runtime hosts an invocation handler behind an HTTP surface:
// POST /invocations streams newline-delimited JSON units, GET /ping answers
// health probes. The App owns server lifecycle including graceful shutdown
// and registered release hooks.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hupe1980/agenthost/core"
	"github.com/hupe1980/agenthost/logging"
)

// InvocationHandler processes one inbound payload and returns the unit
// stream to relay. Matches agenthost.Host.Invoke.
type InvocationHandler func(ctx context.Context, payload core.InvocationPayload) (<-chan core.StreamUnit, <-chan error, error)

// Options configures an App.
type Options struct {
	// Addr is the listen address.
	Addr string
	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration
	// Logger receives request and lifecycle diagnostics.
	Logger logging.Logger
}

// App hosts an InvocationHandler over HTTP.
type App struct {
	handler         InvocationHandler
	router          chi.Router
	logger          logging.Logger
	addr            string
	shutdownTimeout time.Duration
	hooks           []func() error
}

// NewApp wires the router around handler.
func NewApp(handler InvocationHandler, optFns ...func(o *Options)) *App {
	opts := Options{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	app := &App{
		handler:         handler,
		logger:          opts.Logger,
		addr:            opts.Addr,
		shutdownTimeout: opts.ShutdownTimeout,
	}

	r := chi.NewRouter()
	r.Use(app.requestLogger)
	r.Get("/ping", app.handlePing)
	r.Post("/invocations", app.handleInvocations)
	app.router = r

	return app
}

// Handler exposes the routed handler, mainly for tests.
func (a *App) Handler() http.Handler { return a.router }

// OnShutdown registers fn to run after the HTTP server has drained. Hooks
// run in registration order; all run even if earlier ones fail.
func (a *App) OnShutdown(fn func() error) {
	a.hooks = append(a.hooks, fn)
}

// Run serves until ctx is cancelled, then shuts down gracefully and runs
// the registered hooks.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.addr,
		Handler: a.router,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return a.runHooks()
	case <-ctx.Done():
	}

	a.logger.Info("http server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if hookErr := a.runHooks(); err == nil {
		err = hookErr
	}
	return err
}

func (a *App) runHooks() error {
	var firstErr error
	for _, fn := range a.hooks {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// handleInvocations decodes the payload, starts the invocation and relays
// each stream unit as one NDJSON line, flushing per line so clients observe
// units as they are produced.
func (a *App) handleInvocations(w http.ResponseWriter, r *http.Request) {
	var payload core.InvocationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return
	}

	units, errs, err := a.handler(r.Context(), payload)
	if err != nil {
		a.logger.Error("invocation rejected", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	for u := range units {
		if err := enc.Encode(u); err != nil {
			a.logger.Error("client write failed", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	// A mid-stream failure is appended as a terminal error line; the status
	// code is already committed.
	if err := <-errs; err != nil {
		a.logger.Error("invocation failed mid-stream", "error", err)
		_ = enc.Encode(map[string]any{"error": err.Error()})
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (a *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		a.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	})
}
