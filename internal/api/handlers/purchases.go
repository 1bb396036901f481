package handlers

import (
	"pizzachallenge/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListSlices handles GET /api/v1/pizza_slices
// @Summary List the pizza slice catalog
// @Produce json
// @Success 200 {array} models.PizzaSlice
// @Router /api/v1/pizza_slices [get]
func (h *PizzaHandler) ListSlices(c *fiber.Ctx) error {
	slices, err := h.service.ListSlices(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(slices)
}

// BuyPizza handles POST /api/v1/buy_pizza
// @Summary Buy slices for a user
// @Accept json
// @Produce json
// @Param request body models.PurchaseRequest true "Cart"
// @Success 201 {object} models.PurchaseResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/buy_pizza [post]
func (h *PizzaHandler) BuyPizza(c *fiber.Ctx) error {
	var req models.PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	result, err := h.service.Purchase(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// UserHistory handles GET /api/v1/user_history/:id
// @Summary A user's purchase records, newest first
// @Produce json
// @Param id path int true "User id"
// @Success 200 {array} models.PurchaseRecord
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/user_history/{id} [get]
func (h *PizzaHandler) UserHistory(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user id")
	}
	records, err := h.service.History(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(records)
}

// LogPizza handles POST /api/v1/log_pizza
// @Summary Log a purchased slice as eaten
// @Accept json
// @Produce json
// @Param request body models.MarkEatenRequest true "Record and owner"
// @Success 200 {object} models.MarkEatenResult
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/log_pizza [post]
func (h *PizzaHandler) LogPizza(c *fiber.Ctx) error {
	var req models.MarkEatenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	result, err := h.service.MarkEaten(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// GetLeaderboard handles GET /api/v1/leaderboard
// @Summary Users ranked by slices eaten
// @Produce json
// @Param exclude_zero query bool false "Hide users with no eaten slices"
// @Success 200 {array} models.LeaderboardEntry
// @Router /api/v1/leaderboard [get]
func (h *PizzaHandler) GetLeaderboard(c *fiber.Ctx) error {
	excludeZero := c.QueryBool("exclude_zero", h.service.LeaderboardExcludeZero())

	entries, err := h.service.Leaderboard(c.UserContext(), excludeZero)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(entries)
}
