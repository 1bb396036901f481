package handlers

import (
	"pizzachallenge/internal/apperr"
	"pizzachallenge/internal/models"
	"pizzachallenge/internal/service"
	"pizzachallenge/internal/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// PizzaHandler handles HTTP requests for the pizza challenge backend
type PizzaHandler struct {
	service   *service.PizzaService
	hub       *websocket.Hub
	validator *validator.Validate
}

// NewPizzaHandler creates a new handler. hub may be nil when push is not served.
func NewPizzaHandler(service *service.PizzaService, hub *websocket.Hub) *PizzaHandler {
	return &PizzaHandler{
		service:   service,
		hub:       hub,
		validator: validator.New(),
	}
}

// Routes mounts the REST endpoints on router
func (h *PizzaHandler) Routes(router fiber.Router) {
	router.Get("/users", h.ListUsers)
	router.Post("/users", h.CreateUser)
	router.Delete("/users/:id", h.DeleteUser)
	router.Get("/pizza_slices", h.ListSlices)
	router.Post("/buy_pizza", h.BuyPizza)
	router.Get("/user_history/:id", h.UserHistory)
	router.Post("/log_pizza", h.LogPizza)
	router.Get("/leaderboard", h.GetLeaderboard)
	router.Get("/health", h.HealthCheck)
}

// HandleWebSocket serves one push subscriber until it disconnects
func (h *PizzaHandler) HandleWebSocket(c *fiberws.Conn) {
	websocket.ServeWS(h.hub, c)
}

// ClientCount returns the number of connected push subscribers
func (h *PizzaHandler) ClientCount() int {
	if h.hub == nil {
		return 0
	}
	return h.hub.GetClientCount()
}

// fail writes the mapped error body for err
func fail(c *fiber.Ctx, err error) error {
	httpErr := apperr.MapErrorToHTTP(err)
	return c.Status(httpErr.StatusCode).JSON(models.ErrorResponse{
		Error: httpErr.Message,
		Code:  httpErr.Code,
	})
}

// badRequest writes a 400 with the invalid-input code
func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error: message,
		Code:  apperr.CodeInvalidInput,
	})
}

// parseID reads a positive numeric path parameter
func parseID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}
