// Package bootstrap wires one node's components together the way the
// teacher's common/bootstrap package does: a single ordered Setup call
// that loads config, then logging, then the durable store, the event
// queue, the sandbox, the network host, and finally the runner that
// ties them together — with LIFO cleanup on Shutdown.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/ipvm-wg/homestar/internal/config"
	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/logging"
	"github.com/ipvm-wg/homestar/internal/network"
	"github.com/ipvm-wg/homestar/internal/runner"
	"github.com/ipvm-wg/homestar/internal/sandbox"
	"github.com/ipvm-wg/homestar/internal/store"
)

// Components holds every initialized node dependency.
type Components struct {
	Config *config.Config
	Logger *logging.Logger

	DB    *store.DB
	Repo  *store.Repository
	Cache *store.ReceiptCache

	Queue  runner.Queue
	Signer invocation.Signer

	Engine  *sandbox.Engine
	Sandbox *sandbox.Sandbox

	NetworkBus *network.Bus
	Network    *network.Host // nil when the network is disabled

	Runner *runner.Runner

	cleanupFuncs []func() error
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown runs every registered cleanup in reverse order (LIFO), the
// mirror image of the order Setup brought components up in.
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "err", err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks the durable store's reachability, the one component
// whose failure should fail a node's health check outright.
func (c *Components) Health(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Health(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
	}
	return nil
}
