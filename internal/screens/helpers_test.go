package screens

import (
	"context"
	"testing"

	"pizzachallenge/internal/gateway"
	"pizzachallenge/internal/models"
	"pizzachallenge/internal/notify"
	"pizzachallenge/internal/repository"
	"pizzachallenge/internal/service"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo   *repository.MemoryRepository
	broker *notify.Broker
	svc    *service.PizzaService
	gw     *gateway.Local
}

func newFixture(t *testing.T, startingCoins int, catalog ...models.PizzaSlice) *fixture {
	t.Helper()

	repo := repository.NewMemoryRepository()
	broker := notify.NewBroker()
	svc := service.NewPizzaService(repo, broker, service.Options{
		StartingCoins:          startingCoins,
		LeaderboardExcludeZero: true,
	})
	if len(catalog) > 0 {
		require.NoError(t, svc.SeedCatalog(context.Background(), catalog))
	}
	return &fixture{repo: repo, broker: broker, svc: svc, gw: gateway.NewLocal(svc, broker)}
}

func (f *fixture) addUser(t *testing.T, name string) *models.User {
	t.Helper()
	user, err := f.svc.CreateUser(context.Background(), models.CreateUserRequest{
		Name:   name,
		Age:    20,
		Gender: models.GenderFemale,
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) slice(t *testing.T, name string) models.PizzaSlice {
	t.Helper()
	slices, err := f.svc.ListSlices(context.Background())
	require.NoError(t, err)
	for _, slice := range slices {
		if slice.Name == name {
			return slice
		}
	}
	t.Fatalf("slice %q not seeded", name)
	return models.PizzaSlice{}
}

// mockGateway is a gateway.Gateway driven by testify expectations
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockGateway) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockGateway) DeleteUser(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockGateway) ListSlices(ctx context.Context) ([]models.PizzaSlice, error) {
	args := m.Called(ctx)
	slices, _ := args.Get(0).([]models.PizzaSlice)
	return slices, args.Error(1)
}

func (m *mockGateway) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*models.PurchaseResult)
	return result, args.Error(1)
}

func (m *mockGateway) History(ctx context.Context, userID uint) ([]models.PurchaseRecord, error) {
	args := m.Called(ctx, userID)
	records, _ := args.Get(0).([]models.PurchaseRecord)
	return records, args.Error(1)
}

func (m *mockGateway) MarkEaten(ctx context.Context, req models.MarkEatenRequest) (*models.MarkEatenResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*models.MarkEatenResult)
	return result, args.Error(1)
}

func (m *mockGateway) Leaderboard(ctx context.Context, excludeZero bool) ([]models.LeaderboardEntry, error) {
	args := m.Called(ctx, excludeZero)
	entries, _ := args.Get(0).([]models.LeaderboardEntry)
	return entries, args.Error(1)
}

func (m *mockGateway) Subscribe(ctx context.Context, collection models.Collection) (gateway.Subscription, error) {
	args := m.Called(ctx, collection)
	sub, _ := args.Get(0).(gateway.Subscription)
	return sub, args.Error(1)
}
