package web

import (
	"bytes"
	"context"
	"sync"

	"pizzachallenge/internal/screens"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const leaderboardRows = "partials/leaderboard_rows"

func (s *Server) requireUpgrade(c *fiber.Ctx) error {
	if fiberws.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// liveLeaderboard mounts one leaderboard per connection and sends the
// re-rendered rows after every fetch.
func (s *Server) liveLeaderboard() fiber.Handler {
	return fiberws.New(func(conn *fiberws.Conn) {
		var writeMu sync.Mutex
		send := func(view screens.LeaderboardView) {
			var buf bytes.Buffer
			if err := s.engine.Render(&buf, leaderboardRows, fiber.Map{"View": view}); err != nil {
				zap.L().Error("failed to render rankings", zap.Error(err))
				return
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := conn.WriteMessage(fiberws.TextMessage, buf.Bytes()); err != nil {
				zap.L().Debug("live leaderboard write failed", zap.Error(err))
			}
		}

		board := screens.NewLeaderboard(s.opts.Gateway, s.opts.ExcludeZero)
		board.OnChange(send)
		board.Mount(context.Background())
		defer board.Unmount()

		drain(conn)
	})
}

// livePlayers tells the page to reload when the player list changed
// behind it.
func (s *Server) livePlayers() fiber.Handler {
	return fiberws.New(func(conn *fiberws.Conn) {
		ws, ok := conn.Locals(localsWorkspace).(*Workspace)
		if !ok {
			return
		}
		ws.live.Add(1)
		defer ws.live.Add(-1)

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			drain(conn)
		}()

		for {
			select {
			case <-closed:
				return
			case <-ws.Changes():
				if err := conn.WriteMessage(fiberws.TextMessage, []byte("refresh")); err != nil {
					return
				}
			}
		}
	})
}

// drain reads until the peer goes away
func drain(conn *fiberws.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if fiberws.IsUnexpectedCloseError(err, fiberws.CloseGoingAway, fiberws.CloseNormalClosure) {
				zap.L().Debug("live feed closed", zap.Error(err))
			}
			return
		}
	}
}
