// Package screens holds the state and behavior of the front end screens.
// Rendering lives in internal/web; screens only talk to a gateway.Gateway.
package screens

// Route is one entry of the navigation shell
type Route struct {
	Path  string
	Label string
}

// Routes is the fixed route table, in display order
var Routes = []Route{
	{Path: "/", Label: "Home"},
	{Path: "/new-user", Label: "New User"},
	{Path: "/manage-players", Label: "Manage Players"},
	{Path: "/leaderboard", Label: "Leaderboard"},
}

// NavLink is a rendered navigation link
type NavLink struct {
	Path   string
	Label  string
	Active bool
}

// Nav returns one link per route. A link is active only when its path equals
// current exactly.
func Nav(current string) []NavLink {
	links := make([]NavLink, len(Routes))
	for i, route := range Routes {
		links[i] = NavLink{
			Path:   route.Path,
			Label:  route.Label,
			Active: route.Path == current,
		}
	}
	return links
}
