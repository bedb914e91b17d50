package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a real server: REDIS_TEST_URL=redis://localhost:6379/0
func TestRedisRelayRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	sink := &recordingSink{}
	relay := NewRedisRelay(client, "pickup:events:test:"+uuid.NewString(), sink, nil)
	go relay.Run(ctx)

	msg, err := EncodeMessage("pickup:created", map[string]string{"id": "p1"})
	require.NoError(t, err)

	// the subscription is established asynchronously; keep publishing until one lands
	require.Eventually(t, func() bool {
		_ = relay.Deliver(ctx, "drivers", msg)
		return len(sink.delivered()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "drivers", sink.rooms[0])
	assert.Equal(t, "pickup:created", sink.types[0])
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
