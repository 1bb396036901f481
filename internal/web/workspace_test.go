package web

import (
	"context"
	"testing"
	"time"

	"pizzachallenge/internal/gateway"
	"pizzachallenge/internal/notify"
	"pizzachallenge/internal/repository"
	"pizzachallenge/internal/screens"
	"pizzachallenge/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	broker := notify.NewBroker()
	svc := service.NewPizzaService(repository.NewMemoryRepository(), broker, service.Options{StartingCoins: 100})
	return NewRegistry(gateway.NewLocal(svc, broker), screens.PlayersOptions{PollInterval: time.Hour})
}

func TestRegistry_GetReusesWorkspace(t *testing.T) {
	r := newTestRegistry()

	first := r.Get("a")
	assert.Same(t, first, r.Get("a"))
	assert.NotSame(t, first, r.Get("b"))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_SweepDropsIdleWorkspaces(t *testing.T) {
	r := newTestRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }

	idle := r.Get("idle")
	idle.Players.Mount(context.Background())
	require.True(t, idle.Players.Mounted())

	watched := r.Get("watched")
	watched.live.Add(1)

	now = now.Add(20 * time.Minute)
	r.Get("fresh")

	dropped, err := r.Sweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 2, r.Len())
	assert.False(t, idle.Players.Mounted())

	assert.NotSame(t, idle, r.Get("idle"))
}

func TestRegistry_ChangeSignalCoalesces(t *testing.T) {
	r := newTestRegistry()
	ws := r.Get("a")

	ws.Players.Mount(context.Background())
	defer ws.Players.Unmount()

	select {
	case <-ws.Changes():
	case <-time.After(time.Second):
		t.Fatal("first load did not signal a change")
	}

	ws.settle()
	select {
	case <-ws.Changes():
		t.Fatal("settled workspace still signalled")
	default:
	}
}

func TestRegistry_CloseAllUnmounts(t *testing.T) {
	r := newTestRegistry()
	ws := r.Get("a")
	ws.Players.Mount(context.Background())

	r.CloseAll()
	assert.False(t, ws.Players.Mounted())
	assert.Equal(t, 0, r.Len())
}
