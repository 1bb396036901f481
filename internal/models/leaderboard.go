package models

// LeaderboardEntry represents a single entry in the leaderboard
type LeaderboardEntry struct {
	Rank               int    `json:"rank"`
	Name               string `json:"name"`
	NumberOfPizzaEaten int    `json:"number_of_pizza_eaten"`
}
