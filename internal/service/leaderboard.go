package service

import (
	"context"
	"fmt"
	"sort"

	"pizzachallenge/internal/models"
)

// Leaderboard ranks users by slices eaten
func (s *PizzaService) Leaderboard(ctx context.Context, excludeZero bool) ([]models.LeaderboardEntry, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve leaderboard: %w", err)
	}
	return RankUsers(users, excludeZero), nil
}

// RankUsers orders users by eaten count descending, then by name, and
// assigns sequential 1-based ranks. Ties are not merged: counts [5,3,3,0]
// rank as [1,2,3,4].
func RankUsers(users []models.User, excludeZero bool) []models.LeaderboardEntry {
	candidates := make([]models.User, 0, len(users))
	for _, user := range users {
		if excludeZero && user.NumberOfPizzaEaten <= 0 {
			continue
		}
		candidates = append(candidates, user)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].NumberOfPizzaEaten != candidates[j].NumberOfPizzaEaten {
			return candidates[i].NumberOfPizzaEaten > candidates[j].NumberOfPizzaEaten
		}
		return candidates[i].Name < candidates[j].Name
	})

	entries := make([]models.LeaderboardEntry, 0, len(candidates))
	for i, user := range candidates {
		entries = append(entries, models.LeaderboardEntry{
			Rank:               i + 1,
			Name:               user.Name,
			NumberOfPizzaEaten: user.NumberOfPizzaEaten,
		})
	}
	return entries
}
