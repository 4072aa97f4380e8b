// Package server manages the HTTP server lifecycle: start, graceful stop and
// signal-driven shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	httpopts "github.com/kart-io/revdiff/pkg/options/http"
)

// Runnable is a component with a managed lifecycle, started alongside the
// HTTP server and stopped before it.
type Runnable interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager owns the gin engine, the http.Server and any auxiliary Runnables.
type Manager struct {
	opts    *httpopts.Options
	engine  *gin.Engine
	httpSrv *http.Server
	extras  []Runnable

	mu      sync.Mutex
	started bool
}

// NewManager creates a server manager around a fresh gin engine.
func NewManager(opts *httpopts.Options) *Manager {
	gin.SetMode(opts.Mode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Manager{
		opts:   opts,
		engine: engine,
		httpSrv: &http.Server{
			Addr:         opts.Addr,
			Handler:      engine,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			IdleTimeout:  opts.IdleTimeout,
		},
	}
}

// Engine exposes the gin engine for route registration.
func (m *Manager) Engine() *gin.Engine {
	return m.engine
}

// AddRunnable attaches an auxiliary component to the manager's lifecycle.
func (m *Manager) AddRunnable(r Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extras = append(m.extras, r)
}

// Start starts the auxiliary components and then the HTTP listener.
// It returns once the listener is accepting connections; serve errors are
// reported through the returned channel.
func (m *Manager) Start(ctx context.Context) (<-chan error, error) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil, fmt.Errorf("server manager already started")
	}
	m.started = true
	extras := m.extras
	m.mu.Unlock()

	for _, r := range extras {
		if err := r.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start %s: %w", r.Name(), err)
		}
		logger.Infow("Component started", "name", r.Name())
	}

	errCh := make(chan error, 1)
	go func() {
		if err := m.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infow("HTTP server started", "addr", m.opts.Addr)

	return errCh, nil
}

// Stop stops the auxiliary components and then shuts the HTTP server down
// gracefully within ctx's deadline.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	extras := m.extras
	m.mu.Unlock()

	var errs []error
	for i := len(extras) - 1; i >= 0; i-- {
		if err := extras[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", extras[i].Name(), err))
		}
	}

	if err := m.httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
	}
	logger.Infow("HTTP server stopped")

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}

// Run starts everything and blocks until SIGINT/SIGTERM or a serve error,
// then performs a graceful shutdown.
func (m *Manager) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh, err := m.Start(ctx)
	if err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Infow("Shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), m.opts.ShutdownTimeout)
	defer shutdownCancel()

	return m.Stop(shutdownCtx)
}
