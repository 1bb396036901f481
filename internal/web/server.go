// Package web serves the screens as server-rendered pages. Every browser
// session gets its own workspace of screens; actions are plain form posts
// answered with a redirect back to the page.
package web

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"time"

	"pizzachallenge/internal/gateway"
	"pizzachallenge/internal/jobs"
	"pizzachallenge/internal/screens"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/template/html/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed views
var views embed.FS

const (
	workspaceKey    = "workspace"
	localsWorkspace = "workspace"
)

// Options configures the web front end
type Options struct {
	Gateway            gateway.Gateway
	PollInterval       time.Duration
	IncrementalUpdates bool
	ExcludeZero        bool
	SessionIdle        time.Duration
	// RequestLogger is mounted first when set
	RequestLogger fiber.Handler
}

// Server is the web front end
type Server struct {
	app        *fiber.App
	engine     *html.Engine
	opts       Options
	sessions   *session.Store
	workspaces *Registry
	janitor    *jobs.PeriodicJob
}

// New builds the front end app and its routes
func New(opts Options) (*Server, error) {
	if opts.SessionIdle <= 0 {
		opts.SessionIdle = 30 * time.Minute
	}

	sub, err := fs.Sub(views, "views")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("stamp", stamp)
	if err := engine.Load(); err != nil {
		return nil, err
	}

	s := &Server{
		engine: engine,
		opts:   opts,
		sessions: session.New(session.Config{
			Expiration: opts.SessionIdle,
		}),
		workspaces: NewRegistry(opts.Gateway, screens.PlayersOptions{
			PollInterval: opts.PollInterval,
			Incremental:  opts.IncrementalUpdates,
		}),
	}

	s.janitor = jobs.NewPeriodicJob(jobs.JobConfig{
		Name:     "workspace janitor",
		Interval: time.Minute,
	}, func(ctx context.Context) (int, error) {
		return s.workspaces.Sweep(ctx, s.opts.SessionIdle)
	})

	s.app = fiber.New(fiber.Config{
		AppName:               "Pizza Challenge",
		DisableStartupMessage: true,
		Views:                 engine,
		ViewsLayout:           "layouts/main",
		ErrorHandler:          s.errorPage,
	})
	s.app.Use(recover.New())
	if opts.RequestLogger != nil {
		s.app.Use(opts.RequestLogger)
	}
	s.routes()

	return s, nil
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Workspaces returns the session workspace registry
func (s *Server) Workspaces() *Registry {
	return s.workspaces
}

// Start launches the background janitor
func (s *Server) Start(ctx context.Context) error {
	return s.janitor.Start(ctx)
}

// Listen serves on addr until the app is shut down
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops serving, stops the janitor and unmounts every screen
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.janitor.Stop()
	s.workspaces.CloseAll()
	return err
}

func (s *Server) routes() {
	s.app.Use(s.workspace)

	s.app.Get("/", s.home)

	s.app.Get("/new-user", s.newUser)
	s.app.Post("/new-user", s.createUser)

	players := s.app.Group("/manage-players")
	players.Get("/", s.managePlayers)
	players.Post("/users/:id/purchase", s.openPurchase)
	players.Post("/users/:id/history", s.openHistory)
	players.Post("/users/:id/delete", s.requestDelete)
	players.Post("/cart/:slice/add", s.addToCart)
	players.Post("/cart/:slice/remove", s.removeFromCart)
	players.Post("/purchase/complete", s.completePurchase)
	players.Post("/purchase/close", s.closePurchase)
	players.Post("/history/close", s.closeHistory)
	players.Post("/history/:record/eaten", s.markEaten)
	players.Post("/delete/confirm", s.confirmDelete)
	players.Post("/delete/cancel", s.cancelDelete)

	s.app.Get("/leaderboard", s.leaderboard)

	live := s.app.Group("/live", s.requireUpgrade)
	live.Get("/leaderboard", s.liveLeaderboard())
	live.Get("/players", s.livePlayers())
}

// workspace resolves the session's workspace and stores it in locals
func (s *Server) workspace(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}

	id, _ := sess.Get(workspaceKey).(string)
	if id == "" {
		id = uuid.NewString()
		sess.Set(workspaceKey, id)
	}
	if err := sess.Save(); err != nil {
		return err
	}

	c.Locals(localsWorkspace, s.workspaces.Get(id))
	return c.Next()
}

func currentWorkspace(c *fiber.Ctx) *Workspace {
	ws, _ := c.Locals(localsWorkspace).(*Workspace)
	return ws
}

func (s *Server) errorPage(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	if code >= fiber.StatusInternalServerError {
		zap.L().Error("page failed", zap.String("path", c.Path()), zap.Error(err))
	}

	return c.Status(code).Render("error", fiber.Map{
		"Title":   "Error",
		"Nav":     screens.Nav(""),
		"Status":  code,
		"Message": err.Error(),
	})
}

// stamp formats purchase and eaten times
func stamp(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		return t.Local().Format("2006-01-02 15:04")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Local().Format("2006-01-02 15:04")
	default:
		return ""
	}
}
