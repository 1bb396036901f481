package handlers

import (
	"pizzachallenge/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /api/v1/users
// @Summary List users
// @Produce json
// @Success 200 {array} models.User
// @Router /api/v1/users [get]
func (h *PizzaHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(users)
}

// CreateUser handles POST /api/v1/users
// @Summary Register a user
// @Accept json
// @Produce json
// @Param request body models.CreateUserRequest true "New user"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/users [post]
func (h *PizzaHandler) CreateUser(c *fiber.Ctx) error {
	var req models.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	user, err := h.service.CreateUser(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// DeleteUser handles DELETE /api/v1/users/:id
// @Summary Delete a user
// @Param id path int true "User id"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/users/{id} [delete]
func (h *PizzaHandler) DeleteUser(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user id")
	}
	if err := h.service.DeleteUser(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HealthCheck handles GET /api/v1/health
// @Summary Health check
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} models.ErrorResponse
// @Router /api/v1/health [get]
func (h *PizzaHandler) HealthCheck(c *fiber.Ctx) error {
	if err := h.service.HealthCheck(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Health check failed: " + err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":            "healthy",
		"websocket_clients": h.ClientCount(),
	})
}
