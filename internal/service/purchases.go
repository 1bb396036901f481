package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"pizzachallenge/internal/apperr"
	"pizzachallenge/internal/models"

	"go.uber.org/zap"
)

// Purchase buys slices for a user.
//
// The effect is two separate store calls: the balance is debited with a
// conditional update, then one record per unit is inserted. If the insert
// fails after the debit succeeded the coins are NOT refunded and
// ErrPurchaseIncomplete is returned.
func (s *PizzaService) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	if len(req.Items) == 0 {
		return nil, apperr.ErrEmptyCart
	}
	if err := s.validator.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	items := mergeItems(req.Items)
	units := 0
	for _, item := range items {
		units += item.Quantity
	}
	if units > models.MaxPurchaseUnits {
		return nil, fmt.Errorf("%w: at most %d slices per purchase", apperr.ErrInvalidInput, models.MaxPurchaseUnits)
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.SliceID)
	}
	found, err := s.store.GetSlicesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load pizza slices: %w", err)
	}
	slices := make(map[uint]models.PizzaSlice, len(found))
	for _, slice := range found {
		slices[slice.ID] = slice
	}

	total := 0
	for _, item := range items {
		slice, ok := slices[item.SliceID]
		if !ok {
			return nil, fmt.Errorf("%w: id %d", apperr.ErrSliceNotFound, item.SliceID)
		}
		if slice.Price < 0 || (slice.Price > 0 && item.Quantity > (math.MaxInt-total)/slice.Price) {
			return nil, fmt.Errorf("%w: purchase total out of range", apperr.ErrInvalidInput)
		}
		total += slice.Price * item.Quantity
	}

	// Optimistic check; the store re-checks when debiting.
	if user.Coins < total {
		return nil, apperr.ErrInsufficientCoins
	}

	updated, err := s.store.DebitCoins(ctx, user.ID, total)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, models.CollectionUsers, models.ChangeUpdate, updated)

	now := s.now().UTC()
	records := make([]models.PurchaseRecord, 0)
	for _, item := range items {
		slice := slices[item.SliceID]
		for i := 0; i < item.Quantity; i++ {
			records = append(records, models.PurchaseRecord{
				UserID:      user.ID,
				SliceID:     slice.ID,
				SliceName:   slice.Name,
				PurchasedAt: now,
			})
		}
	}

	if err := s.store.InsertPurchases(ctx, records); err != nil {
		zap.L().Warn("coins debited but purchase records were not saved",
			zap.Uint("user_id", user.ID),
			zap.Int("amount", total),
			zap.Int("records", len(records)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", apperr.ErrPurchaseIncomplete, err)
	}

	for _, record := range records {
		s.notify(ctx, models.CollectionPurchases, models.ChangeInsert, record)
	}

	zap.L().Info("purchase completed",
		zap.Uint("user_id", user.ID),
		zap.Int("total", total),
		zap.Int("slices", len(records)),
		zap.Int("coins_left", updated.Coins),
	)

	return &models.PurchaseResult{
		Message: "Purchase successful",
		Coins:   updated.Coins,
		Records: records,
	}, nil
}

// History returns a user's purchase records, newest first
func (s *PizzaService) History(ctx context.Context, userID uint) ([]models.PurchaseRecord, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	records, err := s.store.ListPurchases(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user history: %w", err)
	}
	if records == nil {
		records = []models.PurchaseRecord{}
	}
	return records, nil
}

// MarkEaten logs one purchase record as eaten and bumps the owner's eaten
// count by exactly one. A record can only be marked once.
func (s *PizzaService) MarkEaten(ctx context.Context, req models.MarkEatenRequest) (*models.MarkEatenResult, error) {
	if err := s.validator.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	record, err := s.store.GetPurchase(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if record.UserID != req.UserID {
		return nil, apperr.ErrNotOwner
	}
	if record.Eaten() {
		return nil, apperr.ErrAlreadyEaten
	}

	eatenAt := s.now().UTC()
	if err := s.store.MarkPurchaseEaten(ctx, record.ID, eatenAt); err != nil {
		return nil, err
	}
	record.EatenAt = &eatenAt
	s.notify(ctx, models.CollectionPurchases, models.ChangeUpdate, record)

	user, err := s.store.IncrementEaten(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to increment eaten count: %w", err)
	}
	s.notify(ctx, models.CollectionUsers, models.ChangeUpdate, user)

	zap.L().Info("pizza slice logged as eaten",
		zap.Uint("purchase_id", record.ID),
		zap.Uint("user_id", user.ID),
		zap.Int("eaten", user.NumberOfPizzaEaten),
	)

	return &models.MarkEatenResult{
		Message:            "Pizza slice logged as eaten!",
		Record:             *record,
		NumberOfPizzaEaten: user.NumberOfPizzaEaten,
	}, nil
}

// mergeItems folds repeated slice ids into one line, keeping first-seen order
func mergeItems(items []models.PurchaseItem) []models.PurchaseItem {
	merged := make([]models.PurchaseItem, 0, len(items))
	index := make(map[uint]int, len(items))
	for _, item := range items {
		if i, ok := index[item.SliceID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.SliceID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
