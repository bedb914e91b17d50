package dispatch

import (
	"context"
	"log/slog"
	"time"
)

// SweepExpired writes EXPIRED on lapsed PENDING requests and tells the owners
// and the driver pools. Lazy expiry already hides these requests from claims
// and listings; the sweep only makes the stored status and the clients catch up.
func (c *Coordinator) SweepExpired(ctx context.Context) (int, error) {
	now := c.clock.Now()
	expired, err := c.store.ExpireStale(ctx, now, c.cfg.SweepBatch)
	for i := range expired {
		p := &expired[i]
		c.emit(ctx, CustomerRoom(p.CustomerID), EventStatus, p.Payload(now))
		c.emit(ctx, DriversRoom(p.OrgID), EventRemoved, RemovalPayload{ID: p.ID, Status: p.Status})
	}
	return len(expired), err
}

// RunExpirySweeper calls SweepExpired every interval until ctx is done
func (c *Coordinator) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		c.log.Info("expiry sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.SweepExpired(ctx)
			if err != nil {
				c.log.ErrorContext(ctx, "expiry sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				c.log.InfoContext(ctx, "expired stale pickups", slog.Int("count", n))
			}
		}
	}
}
