package service

import (
	"context"
	"fmt"

	"pizzachallenge/internal/models"
)

// ListSlices returns the catalog
func (s *PizzaService) ListSlices(ctx context.Context) ([]models.PizzaSlice, error) {
	slices, err := s.store.ListSlices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pizza slices: %w", err)
	}
	if slices == nil {
		slices = []models.PizzaSlice{}
	}
	return slices, nil
}

// SeedCatalog inserts or refreshes catalog slices by name
func (s *PizzaService) SeedCatalog(ctx context.Context, slices []models.PizzaSlice) error {
	if err := s.store.UpsertSlices(ctx, slices); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	for _, slice := range slices {
		s.notify(ctx, models.CollectionSlices, models.ChangeUpdate, slice)
	}
	return nil
}

// DefaultCatalog is the menu seeded into an empty store
func DefaultCatalog() []models.PizzaSlice {
	return []models.PizzaSlice{
		{Name: "Margherita", Price: 10, Description: "Tomato, mozzarella and basil"},
		{Name: "Pepperoni", Price: 12, Description: "Spicy pepperoni over mozzarella"},
		{Name: "Hawaiian", Price: 12, Description: "Ham and pineapple"},
		{Name: "Veggie", Price: 11, Description: "Peppers, onions, olives and mushrooms"},
		{Name: "BBQ Chicken", Price: 14, Description: "Grilled chicken with smoky barbecue sauce"},
		{Name: "Four Cheese", Price: 13, Description: "Mozzarella, gorgonzola, parmesan and fontina"},
	}
}
