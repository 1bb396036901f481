package screens

// LandingCard links the landing page to one of the other screens
type LandingCard struct {
	Path  string
	Title string
	Blurb string
}

// Landing returns the landing page cards
func Landing() []LandingCard {
	return []LandingCard{
		{Path: "/new-user", Title: "New User", Blurb: "Join the pizza eating challenge"},
		{Path: "/leaderboard", Title: "Leaderboard", Blurb: "See who's eating the most pizza"},
		{Path: "/manage-players", Title: "Manage Players", Blurb: "Buy and log pizzas for players"},
	}
}
