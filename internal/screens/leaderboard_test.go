package screens

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"pizzachallenge/internal/models"
	"pizzachallenge/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (f *fixture) eat(t *testing.T, user *models.User, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		_, err := f.repo.IncrementEaten(context.Background(), user.ID)
		require.NoError(t, err)
	}
}

func TestLeaderboard_SequentialRanks(t *testing.T) {
	f := newFixture(t, 100)
	f.eat(t, f.addUser(t, "Ann"), 5)
	f.eat(t, f.addUser(t, "Cat"), 3)
	f.eat(t, f.addUser(t, "Bob"), 3)
	f.addUser(t, "Dan")

	screen := NewLeaderboard(f.gw, false)
	screen.Mount(context.Background())
	defer screen.Unmount()

	view := screen.View()
	require.Equal(t, LeaderboardLoaded, view.State)
	require.Len(t, view.Rows, 4)

	want := []struct {
		rank  int
		name  string
		eaten int
		medal string
	}{
		{1, "Ann", 5, "gold"},
		{2, "Bob", 3, "silver"},
		{3, "Cat", 3, "bronze"},
		{4, "Dan", 0, ""},
	}
	for i, w := range want {
		row := view.Rows[i]
		assert.Equal(t, w.rank, row.Rank)
		assert.Equal(t, w.name, row.Name)
		assert.Equal(t, w.eaten, row.NumberOfPizzaEaten)
		assert.Equal(t, w.medal, row.Medal)
	}
}

func TestLeaderboard_ExcludeZero(t *testing.T) {
	f := newFixture(t, 100)
	f.eat(t, f.addUser(t, "Ann"), 2)
	f.addUser(t, "Dan")

	screen := NewLeaderboard(f.gw, true)
	screen.Mount(context.Background())
	defer screen.Unmount()

	view := screen.View()
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "Ann", view.Rows[0].Name)
}

func TestLeaderboard_States(t *testing.T) {
	t.Run("loading before mount", func(t *testing.T) {
		screen := NewLeaderboard(new(mockGateway), true)
		view := screen.View()
		assert.Equal(t, LeaderboardLoading, view.State)
		assert.Empty(t, view.Rows)
		assert.Empty(t, view.Error)
		assert.Empty(t, view.Empty)
	})

	t.Run("empty", func(t *testing.T) {
		f := newFixture(t, 100)
		screen := NewLeaderboard(f.gw, true)
		screen.Mount(context.Background())
		defer screen.Unmount()

		view := screen.View()
		assert.Equal(t, LeaderboardLoaded, view.State)
		assert.Equal(t, "No rankings available yet. Start eating some pizza!", view.Empty)
		assert.Empty(t, view.Error)
	})

	t.Run("error", func(t *testing.T) {
		gw := new(mockGateway)
		gw.On("Subscribe", mock.Anything, models.CollectionUsers).Return(nil, errors.New("push unavailable"))
		gw.On("Leaderboard", mock.Anything, true).Return(nil, errors.New("backend down"))

		screen := NewLeaderboard(gw, true)
		screen.Mount(context.Background())
		defer screen.Unmount()

		view := screen.View()
		assert.Equal(t, LeaderboardError, view.State)
		assert.Equal(t, "Failed to load rankings. Please try again later.", view.Error)
		assert.Empty(t, view.Rows)
		assert.Empty(t, view.Empty)
	})
}

func TestLeaderboard_PushTriggersRefetch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10, models.PizzaSlice{Name: "Margherita", Price: 4})
	user := f.addUser(t, "Alice")
	slice := f.slice(t, "Margherita")

	screen := NewLeaderboard(f.gw, true)
	views := make(chan LeaderboardView, 16)
	screen.OnChange(func(view LeaderboardView) {
		select {
		case views <- view:
		default:
		}
	})
	screen.Mount(ctx)
	defer screen.Unmount()

	initial := <-views
	assert.Equal(t, LeaderboardLoaded, initial.State)
	assert.Empty(t, initial.Rows)

	result, err := f.svc.Purchase(ctx, models.PurchaseRequest{
		UserID: user.ID,
		Items:  []models.PurchaseItem{{SliceID: slice.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = f.svc.MarkEaten(ctx, models.MarkEatenRequest{ID: result.Records[0].ID, UserID: user.ID})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rows := screen.View().Rows
		return len(rows) == 1 && rows[0].NumberOfPizzaEaten == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLeaderboard_UnmountClosesSubscriptionOnce(t *testing.T) {
	f := newFixture(t, 100)
	screen := NewLeaderboard(f.gw, true)

	screen.Mount(context.Background())
	assert.Equal(t, 1, f.broker.SubscriberCount())

	screen.Unmount()
	screen.Unmount()
	assert.Equal(t, 0, f.broker.SubscriberCount())

	// Changes after unmount are not fetched
	f.eat(t, f.addUser(t, "Ann"), 1)
	screen.Refresh(context.Background())
	assert.Empty(t, screen.View().Rows)
}

func TestLeaderboard_ResubscribesAfterStreamDrops(t *testing.T) {
	ctx := context.Background()
	broker := notify.NewBroker()
	first, err := broker.Subscribe(ctx, models.CollectionUsers)
	require.NoError(t, err)
	second, err := broker.Subscribe(ctx, models.CollectionUsers)
	require.NoError(t, err)

	var fetches, subscribes atomic.Int32
	gw := new(mockGateway)
	gw.On("Subscribe", mock.Anything, models.CollectionUsers).
		Run(func(mock.Arguments) { subscribes.Add(1) }).Return(first, nil).Once()
	gw.On("Subscribe", mock.Anything, models.CollectionUsers).
		Run(func(mock.Arguments) { subscribes.Add(1) }).Return(second, nil)
	gw.On("Leaderboard", mock.Anything, true).
		Run(func(mock.Arguments) { fetches.Add(1) }).Return([]models.LeaderboardEntry{}, nil)

	screen := NewLeaderboard(gw, true)
	screen.retry = 20 * time.Millisecond
	screen.Mount(ctx)
	defer screen.Unmount()
	require.Equal(t, int32(1), fetches.Load())

	// The backend connection goes away
	require.NoError(t, first.Close())

	require.Eventually(t, func() bool {
		return subscribes.Load() == 2 && fetches.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	// Pushes on the new stream trigger a re-fetch again
	seen := fetches.Load()
	require.NoError(t, broker.Publish(ctx, models.ChangeEvent{Collection: models.CollectionUsers, Kind: models.ChangeUpdate}))
	require.Eventually(t, func() bool {
		return fetches.Load() > seen
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), subscribes.Load())
}

func TestLeaderboard_PollsWithoutStream(t *testing.T) {
	var fetches atomic.Int32
	gw := new(mockGateway)
	gw.On("Subscribe", mock.Anything, models.CollectionUsers).Return(nil, errors.New("push unavailable"))
	gw.On("Leaderboard", mock.Anything, true).
		Run(func(mock.Arguments) { fetches.Add(1) }).Return([]models.LeaderboardEntry{}, nil)

	screen := NewLeaderboard(gw, true)
	screen.retry = 20 * time.Millisecond
	screen.Mount(context.Background())
	defer screen.Unmount()

	require.Eventually(t, func() bool {
		return fetches.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, LeaderboardLoaded, screen.View().State)
}

func TestLeaderboard_LoadDoesNotSubscribe(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Leaderboard", mock.Anything, true).Return([]models.LeaderboardEntry{
		{Rank: 1, Name: "Ann", NumberOfPizzaEaten: 2},
	}, nil)

	view := NewLeaderboard(gw, true).Load(context.Background())
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "gold", view.Rows[0].Medal)
	gw.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
}

func TestMedal(t *testing.T) {
	assert.Equal(t, "gold", Medal(1))
	assert.Equal(t, "silver", Medal(2))
	assert.Equal(t, "bronze", Medal(3))
	assert.Empty(t, Medal(4))
	assert.Empty(t, Medal(0))
}
