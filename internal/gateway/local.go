package gateway

import (
	"context"

	"pizzachallenge/internal/models"
	"pizzachallenge/internal/notify"
	"pizzachallenge/internal/service"
)

// Local calls the service in-process and subscribes through the in-process
// broker. Used for single-binary demos and for screen tests.
type Local struct {
	svc    *service.PizzaService
	broker *notify.Broker
}

// NewLocal creates a local gateway. broker must be the publisher the
// service was built with for subscriptions to see its changes.
func NewLocal(svc *service.PizzaService, broker *notify.Broker) *Local {
	return &Local{svc: svc, broker: broker}
}

func (l *Local) ListUsers(ctx context.Context) ([]models.User, error) {
	return l.svc.ListUsers(ctx)
}

func (l *Local) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	return l.svc.CreateUser(ctx, req)
}

func (l *Local) DeleteUser(ctx context.Context, id uint) error {
	return l.svc.DeleteUser(ctx, id)
}

func (l *Local) ListSlices(ctx context.Context) ([]models.PizzaSlice, error) {
	return l.svc.ListSlices(ctx)
}

func (l *Local) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	return l.svc.Purchase(ctx, req)
}

func (l *Local) History(ctx context.Context, userID uint) ([]models.PurchaseRecord, error) {
	return l.svc.History(ctx, userID)
}

func (l *Local) MarkEaten(ctx context.Context, req models.MarkEatenRequest) (*models.MarkEatenResult, error) {
	return l.svc.MarkEaten(ctx, req)
}

func (l *Local) Leaderboard(ctx context.Context, excludeZero bool) ([]models.LeaderboardEntry, error) {
	return l.svc.Leaderboard(ctx, excludeZero)
}

func (l *Local) Subscribe(ctx context.Context, collection models.Collection) (Subscription, error) {
	sub, err := l.broker.Subscribe(ctx, collection)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
