package service

import (
	"context"
	"fmt"
	"time"

	"pizzachallenge/internal/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Store is the persistence the service needs. Implementations enforce the
// balance and eaten-once rules themselves with conditional updates.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	DeleteUser(ctx context.Context, id uint) error
	DebitCoins(ctx context.Context, id uint, amount int) (*models.User, error)
	IncrementEaten(ctx context.Context, id uint) (*models.User, error)

	ListSlices(ctx context.Context) ([]models.PizzaSlice, error)
	GetSlicesByID(ctx context.Context, ids []uint) ([]models.PizzaSlice, error)
	UpsertSlices(ctx context.Context, slices []models.PizzaSlice) error

	InsertPurchases(ctx context.Context, records []models.PurchaseRecord) error
	ListPurchases(ctx context.Context, userID uint) ([]models.PurchaseRecord, error)
	GetPurchase(ctx context.Context, id uint) (*models.PurchaseRecord, error)
	MarkPurchaseEaten(ctx context.Context, id uint, at time.Time) error

	Ping(ctx context.Context) error
}

// Publisher delivers change notifications to subscribers
type Publisher interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes service behavior
type Options struct {
	StartingCoins          int
	LeaderboardExcludeZero bool
}

// PizzaService handles business logic for users, purchases and the leaderboard
type PizzaService struct {
	store     Store
	publisher Publisher
	validator *validator.Validate
	opts      Options
	now       func() time.Time
}

// NewPizzaService creates a new pizza service
func NewPizzaService(store Store, publisher Publisher, opts Options) *PizzaService {
	return &PizzaService{
		store:     store,
		publisher: publisher,
		validator: validator.New(),
		opts:      opts,
		now:       time.Now,
	}
}

// LeaderboardExcludeZero is the configured default for the zero-count filter.
func (s *PizzaService) LeaderboardExcludeZero() bool {
	return s.opts.LeaderboardExcludeZero
}

// HealthCheck checks the health of the store and, when it can be pinged,
// the change channel
func (s *PizzaService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if p, ok := s.publisher.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("notifications: %w", err)
		}
	}
	return nil
}

// notify publishes a change. Delivery is best effort: a failed notification
// never fails the mutation that caused it.
func (s *PizzaService) notify(ctx context.Context, collection models.Collection, kind models.ChangeKind, row any) {
	if s.publisher == nil {
		return
	}
	event, err := models.NewChangeEvent(collection, kind, row)
	if err != nil {
		zap.L().Warn("failed to encode change event", zap.String("collection", string(collection)), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		zap.L().Warn("failed to publish change event",
			zap.String("collection", string(collection)),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
