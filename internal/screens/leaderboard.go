package screens

import (
	"context"
	"sync"
	"time"

	"pizzachallenge/internal/gateway"
	"pizzachallenge/internal/models"

	"go.uber.org/zap"
)

const (
	msgNoRankings     = "No rankings available yet. Start eating some pizza!"
	msgRankingsFailed = "Failed to load rankings. Please try again later."

	medalGold   = "gold"
	medalSilver = "silver"
	medalBronze = "bronze"

	// DefaultResubscribeInterval is how often a leaderboard without a live
	// change stream re-fetches and retries the subscription
	DefaultResubscribeInterval = 5 * time.Second
)

// LeaderboardState is the display state of the leaderboard. Exactly one
// holds at a time; loading is the initial one.
type LeaderboardState string

const (
	LeaderboardLoading LeaderboardState = "loading"
	LeaderboardError   LeaderboardState = "error"
	LeaderboardLoaded  LeaderboardState = "loaded"
)

// Medal returns the visual treatment of a rank. Only the top three get one.
func Medal(rank int) string {
	switch rank {
	case 1:
		return medalGold
	case 2:
		return medalSilver
	case 3:
		return medalBronze
	default:
		return ""
	}
}

// RankRow is one rendered leaderboard row
type RankRow struct {
	models.LeaderboardEntry
	Medal string
}

// LeaderboardView is what the leaderboard page renders
type LeaderboardView struct {
	State LeaderboardState
	Rows  []RankRow
	Empty string
	Error string
}

// Leaderboard shows users ranked by slices eaten. It re-fetches on every
// change notification of the users collection. Without a change stream it
// polls and keeps trying to subscribe again.
type Leaderboard struct {
	gateway     gateway.Gateway
	excludeZero bool
	retry       time.Duration

	mu sync.Mutex
	lifecycle
	state    LeaderboardState
	entries  []models.LeaderboardEntry
	onChange func(LeaderboardView)
}

func NewLeaderboard(gw gateway.Gateway, excludeZero bool) *Leaderboard {
	return &Leaderboard{
		gateway:     gw,
		excludeZero: excludeZero,
		retry:       DefaultResubscribeInterval,
		state:       LeaderboardLoading,
	}
}

// OnChange registers a callback receiving every view produced by a fetch
func (l *Leaderboard) OnChange(fn func(LeaderboardView)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Mount subscribes to user changes and fetches the rankings
func (l *Leaderboard) Mount(ctx context.Context) {
	l.mu.Lock()
	gen, loopCtx, ok := l.begin()
	if !ok {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	sub := l.connect(loopCtx, gen)
	l.refresh(ctx, gen)

	go l.listen(loopCtx, gen, sub)
}

// Unmount closes the subscription exactly once
func (l *Leaderboard) Unmount() {
	l.mu.Lock()
	subs := l.end()
	l.mu.Unlock()

	closeSubscriptions(subs)
}

// connect opens the users stream for gen. It returns nil when the stream is
// unavailable or the screen went away.
func (l *Leaderboard) connect(ctx context.Context, gen uint64) gateway.Subscription {
	sub := subscribe(ctx, l.gateway, models.CollectionUsers)
	if sub == nil {
		return nil
	}
	l.mu.Lock()
	kept := l.attach(gen, sub)
	l.mu.Unlock()
	if !kept {
		closeSubscriptions([]gateway.Subscription{sub})
		return nil
	}
	return sub
}

func (l *Leaderboard) listen(ctx context.Context, gen uint64, sub gateway.Subscription) {
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	var events <-chan models.ChangeEvent
	if sub != nil {
		events = sub.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-events:
			if !ok {
				zap.L().Warn("leaderboard change stream closed, polling until it is back")
				l.release(sub)
				sub, events = nil, nil
				ticker.Reset(l.retry)
				continue
			}
			l.refresh(ctx, gen)

		case <-ticker.C:
			if events != nil {
				continue
			}
			if sub = l.connect(ctx, gen); sub != nil {
				events = sub.Events()
			}
			l.refresh(ctx, gen)
		}
	}
}

// release forgets a dropped subscription and closes it
func (l *Leaderboard) release(sub gateway.Subscription) {
	l.mu.Lock()
	l.detach(sub)
	l.mu.Unlock()
	closeSubscriptions([]gateway.Subscription{sub})
}

// Refresh re-fetches the rankings now
func (l *Leaderboard) Refresh(ctx context.Context) {
	l.mu.Lock()
	gen := l.generation
	l.mu.Unlock()
	l.refresh(ctx, gen)
}

func (l *Leaderboard) refresh(ctx context.Context, gen uint64) {
	reqCtx, cancel := dispatchContext(ctx)
	defer cancel()
	entries, err := l.gateway.Leaderboard(reqCtx, l.excludeZero)

	l.mu.Lock()
	if !l.current(gen) {
		l.mu.Unlock()
		return
	}
	l.apply(entries, err)
	view := l.view()
	fn := l.onChange
	l.mu.Unlock()

	if fn != nil {
		fn(view)
	}
}

// Load fetches the rankings once without mounting or subscribing
func (l *Leaderboard) Load(ctx context.Context) LeaderboardView {
	reqCtx, cancel := dispatchContext(ctx)
	defer cancel()
	entries, err := l.gateway.Leaderboard(reqCtx, l.excludeZero)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.apply(entries, err)
	return l.view()
}

func (l *Leaderboard) apply(entries []models.LeaderboardEntry, err error) {
	if err != nil {
		zap.L().Warn("failed to fetch rankings", zap.Error(err))
		l.state = LeaderboardError
		return
	}
	l.state = LeaderboardLoaded
	l.entries = entries
}

// View returns the current display state
func (l *Leaderboard) View() LeaderboardView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.view()
}

func (l *Leaderboard) view() LeaderboardView {
	view := LeaderboardView{State: l.state}
	switch l.state {
	case LeaderboardError:
		view.Error = msgRankingsFailed
	case LeaderboardLoaded:
		view.Rows = make([]RankRow, len(l.entries))
		for i, entry := range l.entries {
			view.Rows[i] = RankRow{LeaderboardEntry: entry, Medal: Medal(entry.Rank)}
		}
		if len(view.Rows) == 0 {
			view.Empty = msgNoRankings
		}
	}
	return view
}
