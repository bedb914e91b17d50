package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
)

// FeedConfig tunes reconnects and the periodic catch-up read
type FeedConfig struct {
	Resync     time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func (c FeedConfig) withDefaults() FeedConfig {
	if c.Resync <= 0 {
		c.Resync = 30 * time.Second
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = time.Second
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = 30 * time.Second
	}
	return c
}

// DriverFeed keeps a DriverView current: it subscribes, reads the pending list
// on every (re)connect, applies live events and re-reads on a timer so a
// missed event heals within one resync period.
type DriverFeed struct {
	client *Client
	view   *DriverView
	cfg    FeedConfig
	logger *slog.Logger
}

func NewDriverFeed(c *Client, view *DriverView, cfg FeedConfig, logger *slog.Logger) *DriverFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriverFeed{client: c, view: view, cfg: cfg.withDefaults(), logger: logger}
}

// Run blocks until ctx is cancelled
func (f *DriverFeed) Run(ctx context.Context) error {
	backoff := f.cfg.MinBackoff
	for {
		connected, err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = f.cfg.MinBackoff
		}
		f.logger.Warn("driver feed disconnected", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > f.cfg.MaxBackoff {
			backoff = f.cfg.MaxBackoff
		}
	}
}

func (f *DriverFeed) session(ctx context.Context) (bool, error) {
	stream, err := f.client.Dial(ctx)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	// subscribed first, so nothing published during the read is lost
	if err := f.resync(ctx); err != nil {
		return false, err
	}

	events := make(chan Event)
	readErr := make(chan error, 1)
	go func() {
		for {
			ev, err := stream.Next()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(f.cfg.Resync)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case err := <-readErr:
			return true, errors.Wrap(err, "read stream")
		case ev := <-events:
			if err := f.view.Apply(ev); err != nil {
				f.logger.Warn("dropping malformed event", "type", ev.Type, "error", err)
			}
		case <-ticker.C:
			if err := f.resync(ctx); err != nil {
				f.logger.Warn("periodic resync failed", "error", err)
			}
		}
	}
}

func (f *DriverFeed) resync(ctx context.Context) error {
	pending, err := f.client.Pending(ctx)
	if err != nil {
		return errors.Wrap(err, "catch-up read")
	}
	f.view.Reconcile(pending)
	f.view.Prune(f.view.now())
	return nil
}
