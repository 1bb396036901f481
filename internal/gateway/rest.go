package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"pizzachallenge/internal/apperr"
	"pizzachallenge/internal/models"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	apiPrefix      = "/api/v1"
	defaultTimeout = 10 * time.Second
	eventBuffer    = 32
)

// RequestError is a non-success response from the backend. It unwraps to
// the matching apperr sentinel when the response carried a known code.
type RequestError struct {
	Status  int
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("backend returned %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *RequestError) Unwrap() error {
	return apperr.FromCode(e.Code)
}

// REST talks to the backend REST API and receives change notifications over
// its WebSocket endpoint
type REST struct {
	baseURL string
	wsURL   string
	timeout time.Duration
	dialer  *websocket.Dialer
}

// NewREST creates a REST gateway for a backend at baseURL (http or https)
func NewREST(baseURL string) *REST {
	baseURL = strings.TrimRight(baseURL, "/")
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"

	return &REST{
		baseURL: baseURL + apiPrefix,
		wsURL:   wsURL,
		timeout: defaultTimeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
	}
}

func (r *REST) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.do(ctx, fiber.Get(r.baseURL+"/users"), fiber.StatusOK, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *REST) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	var user models.User
	if err := r.do(ctx, fiber.Post(r.baseURL+"/users").JSON(req), fiber.StatusCreated, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *REST) DeleteUser(ctx context.Context, id uint) error {
	return r.do(ctx, fiber.Delete(fmt.Sprintf("%s/users/%d", r.baseURL, id)), fiber.StatusNoContent, nil)
}

func (r *REST) ListSlices(ctx context.Context) ([]models.PizzaSlice, error) {
	var slices []models.PizzaSlice
	if err := r.do(ctx, fiber.Get(r.baseURL+"/pizza_slices"), fiber.StatusOK, &slices); err != nil {
		return nil, err
	}
	return slices, nil
}

func (r *REST) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	var result models.PurchaseResult
	if err := r.do(ctx, fiber.Post(r.baseURL+"/buy_pizza").JSON(req), fiber.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *REST) History(ctx context.Context, userID uint) ([]models.PurchaseRecord, error) {
	var records []models.PurchaseRecord
	url := fmt.Sprintf("%s/user_history/%d", r.baseURL, userID)
	if err := r.do(ctx, fiber.Get(url), fiber.StatusOK, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *REST) MarkEaten(ctx context.Context, req models.MarkEatenRequest) (*models.MarkEatenResult, error) {
	var result models.MarkEatenResult
	if err := r.do(ctx, fiber.Post(r.baseURL+"/log_pizza").JSON(req), fiber.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *REST) Leaderboard(ctx context.Context, excludeZero bool) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	url := fmt.Sprintf("%s/leaderboard?exclude_zero=%t", r.baseURL, excludeZero)
	if err := r.do(ctx, fiber.Get(url), fiber.StatusOK, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// do sends the request and decodes a want-status response into out. The
// agent is released by Bytes.
func (r *REST) do(ctx context.Context, agent *fiber.Agent, want int, out any) error {
	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return context.DeadlineExceeded
		}
	}
	agent.Timeout(timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("request failed: %w", errs[0])
	}

	if code != want {
		var resp models.ErrorResponse
		if err := json.Unmarshal(body, &resp); err != nil || resp.Error == "" {
			resp.Error = strings.TrimSpace(string(body))
		}
		return &RequestError{Status: code, Code: resp.Code, Message: resp.Error}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Subscribe dials a dedicated WebSocket connection for one collection
func (r *REST) Subscribe(ctx context.Context, collection models.Collection) (Subscription, error) {
	conn, _, err := r.dialer.DialContext(ctx, r.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", r.wsURL, err)
	}

	if err := conn.WriteJSON(models.ClientMessage{
		Action:     models.ActionSubscribe,
		Collection: collection,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", collection, err)
	}

	sub := &restSubscription{
		conn:       conn,
		collection: collection,
		events:     make(chan models.ChangeEvent, eventBuffer),
		done:       make(chan struct{}),
	}
	go sub.readLoop()
	return sub, nil
}

// restSubscription owns one WebSocket connection. readLoop is the only
// writer of events and closes it when the connection ends.
type restSubscription struct {
	conn       *websocket.Conn
	collection models.Collection
	events     chan models.ChangeEvent
	done       chan struct{}
	once       sync.Once
}

func (s *restSubscription) Events() <-chan models.ChangeEvent {
	return s.events
}

func (s *restSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = s.conn.Close()
	})
	return err
}

func (s *restSubscription) readLoop() {
	defer close(s.events)

	for {
		var msg models.PushMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.done:
			default:
				zap.L().Warn("change subscription ended",
					zap.String("collection", string(s.collection)),
					zap.Error(err),
				)
			}
			return
		}

		switch msg.Type {
		case models.MessageChange, models.MessageVersion:
			if msg.Collection != s.collection {
				continue
			}
		case models.MessageError:
			zap.L().Warn("backend rejected subscription message", zap.String("error", msg.Error))
			continue
		default:
			continue
		}

		select {
		case s.events <- msg.Event():
		case <-s.done:
			return
		}
	}
}
