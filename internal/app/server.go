package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erg0nix/chatdesk/internal/bridge"
	"github.com/erg0nix/chatdesk/internal/config"
	"github.com/erg0nix/chatdesk/internal/httpapi"
	"github.com/erg0nix/chatdesk/internal/rpc"
)

const drainTimeout = 5 * time.Second

// RunServer starts the gRPC and HTTP listeners and blocks until a signal or a
// shutdown request arrives.
func RunServer(cfg config.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return Serve(ctx, cfg, bridge.NewService(cfg), logger)
}

// Serve runs the daemon until ctx is done or a client calls Shutdown.
func Serve(ctx context.Context, cfg config.Config, svc *bridge.Service, logger *slog.Logger) error {
	startTime := time.Now()

	listener, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", cfg.Bind, err)
	}

	httpListener, err := net.Listen("tcp", cfg.HTTPBind)
	if err != nil {
		listener.Close()
		return fmt.Errorf("server: listen %s: %w", cfg.HTTPBind, err)
	}

	pidFile := PIDFile(cfg.DataDir)
	if err := writePIDFile(pidFile); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer os.Remove(pidFile)

	shutdownCh := make(chan struct{}, 1)
	handler := &rpc.Handler{
		Bridge:    svc,
		Config:    cfg,
		StartTime: startTime,
		StopFunc: func() {
			select {
			case shutdownCh <- struct{}{}:
			default:
			}
		},
	}

	grpcServer := rpc.NewServer(handler, logger)
	httpServer := &http.Server{
		Handler:           httpapi.NewRouter(svc, cfg.WebDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := grpcServer.Serve(listener); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	logger.Info("server listening", "grpc", listener.Addr().String(), "http", httpListener.Addr().String())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case <-shutdownCh:
		logger.Info("shutdown requested via rpc")
	case runErr = <-errCh:
		logger.Error("listener failed", "error", runErr)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := httpServer.Shutdown(drainCtx); err != nil {
		logger.Warn("http drain failed", "error", err)
	}

	done := make(chan struct{})
	go func() { grpcServer.GracefulStop(); close(done) }()

	select {
	case <-done:
	case <-drainCtx.Done():
		logger.Warn("drain timeout, forcing shutdown")
		grpcServer.Stop()
	}

	return runErr
}
