// Package app wires together mechaway's subsystems: tenant storage, the
// workflow store, the compiled-workflow registry, the node dispatcher, the
// cron scheduler, and the HTTP server.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/insanalamin/mechaway/internal/cron"
	"github.com/insanalamin/mechaway/internal/dispatch"
	"github.com/insanalamin/mechaway/internal/httpapi"
	"github.com/insanalamin/mechaway/internal/registry"
	"github.com/insanalamin/mechaway/internal/store"
	"github.com/insanalamin/mechaway/internal/tenant"
	"github.com/insanalamin/mechaway/pkg/config"
	"github.com/insanalamin/mechaway/pkg/logger"
)

const defaultTenantSlug = "default"

// App owns every long-lived subsystem and the HTTP server fronting them.
type App struct {
	cfg *config.Config
	log logger.Logger

	tenants   *tenant.Manager
	store     *store.Store
	registry  *registry.Registry
	scheduler *cron.Scheduler
	router    http.Handler

	httpServer   *http.Server
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New wires every subsystem but does not start the scheduler or listener.
func New(cfg *config.Config, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewLogger(nil)
	}

	tenants := tenant.New(cfg.DataDir)
	workflowStore := store.New(tenants)
	reg := registry.New(workflowStore)

	ctx := context.Background()
	if _, err := tenants.ProjectPool(ctx, defaultTenantSlug); err != nil {
		return nil, fmt.Errorf("failed to open default tenant pool: %w", err)
	}
	if err := reg.InitFromStore(ctx); err != nil {
		return nil, fmt.Errorf("failed to load workflow registry: %w", err)
	}

	dispatcher := dispatch.New(tenants).WithLogger(log.With("component", "dispatch"))
	scheduler := cron.New(reg, dispatcher, log.With("component", "cron"))

	workflowAPI := &httpapi.WorkflowAPI{Store: workflowStore, Registry: reg, Scheduler: scheduler}
	webhookAPI := &httpapi.WebhookAPI{Registry: reg, Executor: dispatcher, Log: log.With("component", "webhook")}
	router := httpapi.New(workflowAPI, webhookAPI, log.With("component", "http"))

	return &App{
		cfg:        cfg,
		log:        log,
		tenants:    tenants,
		store:      workflowStore,
		registry:   reg,
		scheduler:  scheduler,
		router:     router,
		shutdownCh: make(chan struct{}),
	}, nil
}

// Run starts the cron scheduler and the HTTP server, blocking until a
// shutdown signal arrives or the server fails, then shuts both down.
func (a *App) Run(ctx context.Context) error {
	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start cron scheduler: %w", err)
	}
	defer a.scheduler.Stop()

	addr := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port)
	a.httpServer = &http.Server{
		Addr:        addr,
		Handler:     a.router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting HTTP server", "address", "http://"+addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
			return
		}
		errCh <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		a.log.Info("received shutdown signal")
	case <-a.shutdownCh:
		a.log.Info("received programmatic shutdown signal")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.log.Info("server shutdown completed")
	return nil
}

// Shutdown requests a graceful stop from outside the process's own signal
// handling, e.g. from a test harness.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		select {
		case a.shutdownCh <- struct{}{}:
		default:
		}
	})
}
