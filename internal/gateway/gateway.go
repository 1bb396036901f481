// Package gateway is the data access boundary of the screens. Screens only
// see Gateway; the transport behind it is chosen at startup.
package gateway

import (
	"context"

	"pizzachallenge/internal/models"
)

// Gateway is everything a screen can ask of the backend
type Gateway interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, id uint) error

	ListSlices(ctx context.Context) ([]models.PizzaSlice, error)

	Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error)
	History(ctx context.Context, userID uint) ([]models.PurchaseRecord, error)
	MarkEaten(ctx context.Context, req models.MarkEatenRequest) (*models.MarkEatenResult, error)

	Leaderboard(ctx context.Context, excludeZero bool) ([]models.LeaderboardEntry, error)

	// Subscribe opens an independent change stream for one collection
	Subscribe(ctx context.Context, collection models.Collection) (Subscription, error)
}

// Subscription is an open change stream. Close is idempotent and closes Events.
type Subscription interface {
	Events() <-chan models.ChangeEvent
	Close() error
}
