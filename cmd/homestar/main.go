package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ipvm-wg/homestar/cmd/homestar/routes"
	"github.com/ipvm-wg/homestar/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "homestar")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap homestar: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(context.Background())

	if components.Runner != nil {
		if err := components.Runner.Start(ctx); err != nil {
			components.Logger.Error("failed to start runner", "error", err)
			os.Exit(1)
		}
	}

	e := setupEcho()
	setupMiddleware(e)
	routes.Register(e, components)

	startServer(e, components)
}

// setupEcho initializes the Echo server with basic configuration.
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures standard middleware for the Echo server.
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
}

// startServer runs the Echo server until an interrupt/SIGTERM arrives,
// then gives in-flight requests (notably the notification stream) time
// to wind down before returning.
func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("starting homestar", "port", port, "peer_id", peerID(components))

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- e.Start(fmt.Sprintf(":%d", port))
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		components.Logger.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		components.Logger.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := e.Shutdown(ctx); err != nil {
			components.Logger.Error("graceful http shutdown failed", "error", err)
		}
		components.Logger.Info("shutdown complete")
	}
}

func peerID(components *bootstrap.Components) string {
	if components.Network == nil {
		return ""
	}
	return components.Network.PeerID()
}
