package notify

import (
	"context"
	"testing"

	"pizzachallenge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_DeliversPerCollection(t *testing.T) {
	b := NewBroker()
	ctx := context.Background()

	users, err := b.Subscribe(ctx, models.CollectionUsers)
	require.NoError(t, err)
	slices, err := b.Subscribe(ctx, models.CollectionSlices)
	require.NoError(t, err)
	assert.Equal(t, 2, b.SubscriberCount())

	require.NoError(t, b.Publish(ctx, models.ChangeEvent{Collection: models.CollectionUsers, Kind: models.ChangeInsert}))
	require.NoError(t, b.Publish(ctx, models.ChangeEvent{Collection: models.CollectionUsers, Kind: models.ChangeUpdate}))

	first := <-users.Events()
	second := <-users.Events()
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, int64(2), second.Version)
	assert.Equal(t, models.ChangeUpdate, second.Kind)
	assert.Empty(t, slices.Events())
}

func TestBroker_CloseIsIdempotent(t *testing.T) {
	b := NewBroker()
	sub, err := b.Subscribe(context.Background(), models.CollectionUsers)
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Zero(t, b.SubscriberCount())

	_, ok := <-sub.Events()
	assert.False(t, ok)

	// Publishing after close must not reach the closed channel
	assert.NoError(t, b.Publish(context.Background(), models.ChangeEvent{Collection: models.CollectionUsers}))
}

func TestBroker_FullSubscriberDropsEvents(t *testing.T) {
	b := NewBroker()
	sub, err := b.Subscribe(context.Background(), models.CollectionSlices)
	require.NoError(t, err)

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, b.Publish(context.Background(), models.ChangeEvent{Collection: models.CollectionSlices}))
	}
	assert.Len(t, sub.Events(), subscriberBuffer)
}
