package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"pizzachallenge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectingPublisher struct {
	mu      sync.Mutex
	events  []models.ChangeEvent
	fail    bool
	block   chan struct{}
	pingErr error
}

func (c *collectingPublisher) Publish(_ context.Context, event models.ChangeEvent) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("redis unavailable")
	}
	c.events = append(c.events, event)
	return nil
}

func (c *collectingPublisher) Ping(_ context.Context) error {
	return c.pingErr
}

func (c *collectingPublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func userEvent() models.ChangeEvent {
	return models.ChangeEvent{Collection: models.CollectionUsers, Kind: models.ChangeUpdate}
}

func TestWorkerPool_DrainsOnShutdown(t *testing.T) {
	downstream := &collectingPublisher{}
	pool := NewWorkerPool(2, 16, downstream)
	pool.Start()

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Publish(context.Background(), userEvent()))
	}

	require.NoError(t, pool.Shutdown(2*time.Second))
	assert.Equal(t, 10, downstream.count())

	metrics := pool.GetMetrics()
	assert.Equal(t, int64(10), metrics.Processed)
	assert.Zero(t, metrics.Failed)

	assert.Error(t, pool.Publish(context.Background(), userEvent()))
	// A second shutdown is a no-op
	assert.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_Backpressure(t *testing.T) {
	downstream := &collectingPublisher{block: make(chan struct{})}
	pool := NewWorkerPool(1, 1, downstream)
	pool.Start()

	require.NoError(t, pool.Submit(PublishTask{Event: userEvent()}))
	// The single worker holds the first task; wait until the queue is free again
	require.Eventually(t, func() bool { return pool.GetMetrics().QueueLength == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, pool.Submit(PublishTask{Event: userEvent()}))

	err := pool.Submit(PublishTask{Event: userEvent()})
	assert.ErrorContains(t, err, "backpressure")
	assert.Equal(t, int64(1), pool.GetMetrics().Backpressure)

	close(downstream.block)
	require.NoError(t, pool.Shutdown(2*time.Second))
	assert.Equal(t, 2, downstream.count())
}

func TestWorkerPool_CountsFailures(t *testing.T) {
	downstream := &collectingPublisher{fail: true}
	pool := NewWorkerPool(1, 4, downstream)
	pool.Start()

	require.NoError(t, pool.Publish(context.Background(), userEvent()))
	require.NoError(t, pool.Shutdown(2*time.Second))

	metrics := pool.GetMetrics()
	assert.Equal(t, int64(1), metrics.Failed)
	assert.Zero(t, metrics.Processed)
}

func TestWorkerPool_KeepsOrderPerRow(t *testing.T) {
	downstream := &collectingPublisher{}
	pool := NewWorkerPool(4, 256, downstream)
	pool.Start()

	for coins := 0; coins < 50; coins++ {
		for _, id := range []uint{1, 2, 3} {
			event, err := models.NewChangeEvent(models.CollectionUsers, models.ChangeUpdate, models.User{ID: id, Coins: coins})
			require.NoError(t, err)
			require.NoError(t, pool.Publish(context.Background(), event))
		}
	}
	require.NoError(t, pool.Shutdown(2*time.Second))
	require.Equal(t, 150, downstream.count())

	last := map[uint]int{1: -1, 2: -1, 3: -1}
	for _, event := range downstream.events {
		var user models.User
		require.NoError(t, json.Unmarshal(event.Row, &user))
		assert.Greater(t, user.Coins, last[user.ID], "user %d", user.ID)
		last[user.ID] = user.Coins
	}
}

func TestPublishTask_Key(t *testing.T) {
	event, err := models.NewChangeEvent(models.CollectionPurchases, models.ChangeInsert, models.PurchaseRecord{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, "purchases:7", PublishTask{Event: event}.Key())
	assert.Equal(t, "users:0", PublishTask{Event: userEvent()}.Key())
}

func TestWorkerPool_PingReachesDownstream(t *testing.T) {
	downstream := &collectingPublisher{pingErr: errors.New("down")}
	pool := NewWorkerPool(1, 1, downstream)

	assert.EqualError(t, pool.Ping(context.Background()), "down")
	downstream.pingErr = nil
	assert.NoError(t, pool.Ping(context.Background()))
}
