package web

import (
	"strconv"
	"strings"

	"pizzachallenge/internal/screens"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const playersPath = "/manage-players"

func (s *Server) home(c *fiber.Ctx) error {
	return c.Render("index", fiber.Map{
		"Title": "Pizza Challenge",
		"Nav":   screens.Nav("/"),
		"Cards": screens.Landing(),
	})
}

func (s *Server) newUser(c *fiber.Ctx) error {
	return c.Render("new_user", fiber.Map{
		"Title": "New User",
		"Nav":   screens.Nav("/new-user"),
		"View":  currentWorkspace(c).Registration.View(),
	})
}

func (s *Server) createUser(c *fiber.Ctx) error {
	// An unparsable age stays 0, which the form rejects
	age, _ := strconv.Atoi(strings.TrimSpace(c.FormValue("age")))
	form := screens.RegistrationForm{
		Name:   c.FormValue("name"),
		Age:    age,
		Gender: c.FormValue("gender"),
	}

	if _, err := currentWorkspace(c).Registration.Submit(c.UserContext(), form); err != nil {
		zap.L().Debug("registration not completed", zap.Error(err))
	}
	return c.Redirect("/new-user", fiber.StatusSeeOther)
}

func (s *Server) managePlayers(c *fiber.Ctx) error {
	ws := currentWorkspace(c)
	ws.Players.Mount(c.UserContext())
	view := ws.Players.View()
	ws.settle()

	return c.Render("manage_players", fiber.Map{
		"Title": "Manage Players",
		"Nav":   screens.Nav(playersPath),
		"View":  view,
	})
}

// action runs one player management action and redirects back to the page.
// Failures the user should see are already turned into notices.
func (s *Server) action(c *fiber.Ctx, name string, fn func(*screens.Players) error) error {
	if err := fn(currentWorkspace(c).Players); err != nil {
		zap.L().Debug("player action not completed", zap.String("action", name), zap.Error(err))
	}
	return c.Redirect(playersPath, fiber.StatusSeeOther)
}

// pathID reads a positive numeric path parameter
func pathID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

func (s *Server) openPurchase(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	return s.action(c, "open purchase", func(p *screens.Players) error {
		return p.OpenPurchase(id)
	})
}

func (s *Server) addToCart(c *fiber.Ctx) error {
	id, err := pathID(c, "slice")
	if err != nil {
		return err
	}
	return s.action(c, "add to cart", func(p *screens.Players) error {
		return p.AddToCart(id)
	})
}

func (s *Server) removeFromCart(c *fiber.Ctx) error {
	id, err := pathID(c, "slice")
	if err != nil {
		return err
	}
	return s.action(c, "remove from cart", func(p *screens.Players) error {
		return p.RemoveFromCart(id)
	})
}

func (s *Server) completePurchase(c *fiber.Ctx) error {
	return s.action(c, "complete purchase", func(p *screens.Players) error {
		_, err := p.CompletePurchase(c.UserContext())
		return err
	})
}

func (s *Server) closePurchase(c *fiber.Ctx) error {
	return s.action(c, "close purchase", func(p *screens.Players) error {
		p.ClosePurchase()
		return nil
	})
}

func (s *Server) openHistory(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	return s.action(c, "open history", func(p *screens.Players) error {
		return p.OpenHistory(c.UserContext(), id)
	})
}

func (s *Server) closeHistory(c *fiber.Ctx) error {
	return s.action(c, "close history", func(p *screens.Players) error {
		p.CloseHistory()
		return nil
	})
}

func (s *Server) markEaten(c *fiber.Ctx) error {
	id, err := pathID(c, "record")
	if err != nil {
		return err
	}
	return s.action(c, "mark eaten", func(p *screens.Players) error {
		return p.MarkEaten(c.UserContext(), id)
	})
}

func (s *Server) requestDelete(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	return s.action(c, "request delete", func(p *screens.Players) error {
		return p.RequestDelete(id)
	})
}

func (s *Server) confirmDelete(c *fiber.Ctx) error {
	return s.action(c, "confirm delete", func(p *screens.Players) error {
		return p.ConfirmDelete(c.UserContext())
	})
}

func (s *Server) cancelDelete(c *fiber.Ctx) error {
	return s.action(c, "cancel delete", func(p *screens.Players) error {
		p.CancelDelete()
		return nil
	})
}

// leaderboard renders a snapshot of the rankings. The page then follows
// /live/leaderboard for pushed updates.
func (s *Server) leaderboard(c *fiber.Ctx) error {
	view := screens.NewLeaderboard(s.opts.Gateway, s.opts.ExcludeZero).Load(c.UserContext())

	return c.Render("leaderboard", fiber.Map{
		"Title": "Leaderboard",
		"Nav":   screens.Nav("/leaderboard"),
		"View":  view,
	})
}
