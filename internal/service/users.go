package service

import (
	"context"
	"fmt"
	"strings"

	"pizzachallenge/internal/apperr"
	"pizzachallenge/internal/models"

	"go.uber.org/zap"
)

// CreateUser registers a user with the starting balance and zero eaten count
func (s *PizzaService) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	user := &models.User{
		Name:   req.Name,
		Age:    req.Age,
		Gender: req.Gender,
		Coins:  s.opts.StartingCoins,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	zap.L().Info("user registered", zap.Uint("user_id", user.ID), zap.String("name", user.Name))
	s.notify(ctx, models.CollectionUsers, models.ChangeInsert, user)
	return user, nil
}

// ListUsers returns every user ordered by name
func (s *PizzaService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// DeleteUser removes a user. Purchase records are left in place.
func (s *PizzaService) DeleteUser(ctx context.Context, id uint) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}

	zap.L().Info("user deleted", zap.Uint("user_id", id))
	s.notify(ctx, models.CollectionUsers, models.ChangeDelete, models.User{ID: id})
	return nil
}
