package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.create(t, customer)
	f.clock.Add(5 * time.Minute)
	fresh := f.create(t, stranger)

	n, err := f.coord.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Set(t0.Add(601 * time.Second))
	n, err = f.coord.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events := f.bus.take()
	require.Len(t, events, 2)
	assert.Equal(t, "customer:c1", events[0].room)
	assert.Equal(t, EventStatus, events[0].event)
	assert.Equal(t, models.PickupStatusExpired, events[0].payload.(models.PickupPayload).Status)
	assert.Equal(t, published{"drivers", EventRemoved, RemovalPayload{ID: stale.ID, Status: models.PickupStatusExpired}}, events[1])

	got, err := f.coord.Get(ctx, stale.ID, customer)
	require.NoError(t, err)
	assert.Equal(t, models.PickupStatusExpired, got.Status)

	got, err = f.coord.Get(ctx, fresh.ID, stranger)
	require.NoError(t, err)
	assert.Equal(t, models.PickupStatusPending, got.Status)

	// swept rows are not announced twice
	n, err = f.coord.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.bus.take())
}

func TestRunExpirySweeperStops(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.coord.RunExpirySweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	f.create(t, customer)
	f.clock.Add(time.Hour)
	require.Eventually(t, func() bool {
		for _, ev := range f.bus.take() {
			if ev.event == EventRemoved {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRunExpirySweeperDisabled(t *testing.T) {
	f := newFixture(t)
	done := make(chan struct{})
	go func() {
		f.coord.RunExpirySweeper(context.Background(), 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper should return immediately")
	}
}
