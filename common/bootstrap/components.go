package bootstrap

import (
	"context"
	"fmt"

	"github.com/loandesk/loanengine/common/cache"
	"github.com/loandesk/loanengine/common/config"
	"github.com/loandesk/loanengine/common/db"
	"github.com/loandesk/loanengine/common/logger"
	"github.com/loandesk/loanengine/common/queue"
	"github.com/loandesk/loanengine/common/telemetry"
)

// Components holds the shared dependencies Setup wires for the loan
// engine: config, logging, the Postgres pool, the ledger event queue,
// the optional in-memory view cache, and telemetry.
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.DB
	Queue     queue.Queue
	Cache     cache.Cache
	Telemetry *telemetry.Telemetry

	cleanupFuncs []func() error
}

// Shutdown tears components down in reverse setup order (LIFO).
// Call with defer right after Setup().
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health reports whether the service can take booking traffic. Only
// the database gates health: the queue and cache are in-process and
// the engine serves reads without them.
func (c *Components) Health(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Health(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
	}
	return nil
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
