package gateway

import (
	"context"
	"testing"
	"time"

	"pizzachallenge/internal/models"
	"pizzachallenge/internal/notify"
	"pizzachallenge/internal/repository"
	"pizzachallenge/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SubscribeSeesServiceChanges(t *testing.T) {
	ctx := context.Background()
	broker := notify.NewBroker()
	svc := service.NewPizzaService(repository.NewMemoryRepository(), broker, service.Options{StartingCoins: 100})
	gw := NewLocal(svc, broker)

	sub, err := gw.Subscribe(ctx, models.CollectionUsers)
	require.NoError(t, err)
	defer sub.Close()

	user, err := gw.CreateUser(ctx, models.CreateUserRequest{Name: "Alice", Age: 20, Gender: models.GenderFemale})
	require.NoError(t, err)

	select {
	case event := <-sub.Events():
		assert.Equal(t, models.CollectionUsers, event.Collection)
		assert.Equal(t, models.ChangeInsert, event.Kind)
		assert.Equal(t, int64(1), event.Version)

		var row models.User
		require.NoError(t, event.DecodeRow(&row))
		assert.Equal(t, user.ID, row.ID)
	case <-time.After(time.Second):
		t.Fatal("no change event")
	}

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, open := <-sub.Events()
	assert.False(t, open)
}
