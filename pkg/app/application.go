package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"haulbid/internal/finalizer/handler"
	"haulbid/internal/finalizer/service"
	"haulbid/pkg/config"
	"haulbid/pkg/middleware"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Application ties the finalizer worker to its operational HTTP surface
// and owns graceful shutdown for both.
type Application struct {
	cfg        *config.Config
	server     *http.Server
	worker     service.FinalizerService
	onShutdown []func() error
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// OnShutdown registers a cleanup function run during graceful shutdown,
// after the worker and HTTP server have stopped. Hooks run in
// registration order; failures are logged, not fatal.
func (a *Application) OnShutdown(fn func() error) {
	a.onShutdown = append(a.onShutdown, fn)
}

func (a *Application) SetApp(worker service.FinalizerService) {
	a.worker = worker

	router := httprouter.New()
	healthHandler := handler.NewHealthHandler(a.cfg.Client.Mongo, a.cfg.Log)
	healthHandler.RegisterRoutes(router)
	workerHandler := handler.NewWorkerHandler(worker, a.cfg.Log)
	workerHandler.RegisterRoutes(router)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	var httpHandler http.Handler = router
	httpHandler = middleware.RequestLogging(a.cfg.Log)(httpHandler)
	httpHandler = middleware.Recovery(a.cfg.Log)(httpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	a.worker.Start()

	serverErrors := make(chan error, 1)
	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	// Stop the timer first; in-flight bookings finish their
	// transactions before the worker reports stopped.
	a.worker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	for _, fn := range a.onShutdown {
		if err := fn(); err != nil {
			a.cfg.Log.Error("Shutdown hook failed", "error", err)
		}
	}

	a.cfg.GracefulShutdown()
	a.cfg.Log.Info("Server stopped gracefully")
}
