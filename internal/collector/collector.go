package collector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/service"
)

// Syncer runs one mirror pass.
type Syncer interface {
	Sync(ctx context.Context) (*service.SyncResult, error)
}

// Collector periodically mirrors chats and messages into the database.
type Collector struct {
	syncer   Syncer
	interval time.Duration
	logger   *zap.Logger
}

// NewCollector creates a new Collector instance.
func NewCollector(syncer Syncer, interval time.Duration, logger *zap.Logger) *Collector {
	return &Collector{
		syncer:   syncer,
		interval: interval,
		logger:   logger,
	}
}

// Run syncs every interval until ctx is cancelled. Failed passes are
// logged and retried on the next tick.
func (c *Collector) Run(ctx context.Context) {
	c.logger.Info("Starting mirror collector", zap.Duration("interval", c.interval))
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Mirror collector stopped")
			return
		case <-ticker.C:
			res, err := c.syncer.Sync(ctx)
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("Mirror sync failed", zap.Error(err))
				}
				continue
			}
			c.logger.Debug("Mirror sync done",
				zap.Int("chats", res.Chats),
				zap.Int("messages", res.Messages),
			)
		}
	}
}

// Start runs the collector in the background. The returned channel is
// closed once Run has returned, including any sync pass in flight.
func (c *Collector) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	return done
}
