package web

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pizzachallenge/internal/gateway"
	"pizzachallenge/internal/screens"

	"go.uber.org/zap"
)

// Workspace holds the screens of one browser session
type Workspace struct {
	ID           string
	Registration *screens.Registration
	Players      *screens.Players

	// changed is signalled when the player list moved in the background
	changed chan struct{}
	live    atomic.Int32

	mu       sync.Mutex
	lastSeen time.Time
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.lastSeen)
}

// Changes is signalled after the player list or catalog changed
func (w *Workspace) Changes() <-chan struct{} {
	return w.changed
}

// settle drops a pending change signal once the page has been rendered
func (w *Workspace) settle() {
	select {
	case <-w.changed:
	default:
	}
}

// Registry keeps one workspace per session id
type Registry struct {
	gateway gateway.Gateway
	players screens.PlayersOptions
	now     func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewRegistry(gw gateway.Gateway, players screens.PlayersOptions) *Registry {
	return &Registry{
		gateway:    gw,
		players:    players,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
}

// Get returns the workspace of id, creating it on first use
func (r *Registry) Get(id string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.workspaces[id]
	if !ok {
		ws = &Workspace{
			ID:           id,
			Registration: screens.NewRegistration(r.gateway),
			Players:      screens.NewPlayers(r.gateway, r.players),
			changed:      make(chan struct{}, 1),
		}
		ws.Players.OnChange(func() {
			select {
			case ws.changed <- struct{}{}:
			default:
			}
		})
		r.workspaces[id] = ws
	}
	ws.touch(r.now())
	return ws
}

// Len returns the number of live workspaces
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Sweep unmounts and drops workspaces idle for longer than idle. Workspaces
// with an open live feed are kept.
func (r *Registry) Sweep(_ context.Context, idle time.Duration) (int, error) {
	now := r.now()

	r.mu.Lock()
	var expired []*Workspace
	for id, ws := range r.workspaces {
		if ws.live.Load() > 0 || ws.idleSince(now) <= idle {
			continue
		}
		expired = append(expired, ws)
		delete(r.workspaces, id)
	}
	r.mu.Unlock()

	for _, ws := range expired {
		ws.Players.Unmount()
	}
	if len(expired) > 0 {
		zap.L().Debug("idle workspaces dropped", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

// CloseAll unmounts every workspace
func (r *Registry) CloseAll() {
	r.mu.Lock()
	workspaces := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, ws := range workspaces {
		ws.Players.Unmount()
	}
}
