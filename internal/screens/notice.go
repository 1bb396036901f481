package screens

import (
	"context"
	"time"

	"pizzachallenge/internal/gateway"
	"pizzachallenge/internal/models"

	"go.uber.org/zap"
)

// requestTimeout bounds every gateway call a screen dispatches
const requestTimeout = 10 * time.Second

// NoticeKind styles a notice
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message shown once on the next render
type Notice struct {
	Kind NoticeKind
	Text string
}

type notices struct {
	pending *Notice
}

func (n *notices) success(text string) {
	n.pending = &Notice{Kind: NoticeSuccess, Text: text}
}

func (n *notices) failure(text string) {
	n.pending = &Notice{Kind: NoticeError, Text: text}
}

// take returns the pending notice and clears it
func (n *notices) take() *Notice {
	notice := n.pending
	n.pending = nil
	return notice
}

// lifecycle tracks whether a screen is mounted. Every async result carries the
// generation it was dispatched under and is dropped unless that generation is
// still mounted. Callers hold the screen lock.
type lifecycle struct {
	mounted    bool
	generation uint64
	cancel     context.CancelFunc
	subs       []gateway.Subscription
}

// begin mounts a new generation. ok is false when already mounted.
func (l *lifecycle) begin() (gen uint64, ctx context.Context, ok bool) {
	if l.mounted {
		return l.generation, nil, false
	}
	l.mounted = true
	l.generation++
	ctx, l.cancel = context.WithCancel(context.Background())
	return l.generation, ctx, true
}

func (l *lifecycle) current(gen uint64) bool {
	return l.mounted && l.generation == gen
}

// attach keeps sub for closing on unmount. It reports false, and the caller
// must close sub, when gen is no longer mounted.
func (l *lifecycle) attach(gen uint64, sub gateway.Subscription) bool {
	if !l.current(gen) {
		return false
	}
	l.subs = append(l.subs, sub)
	return true
}

// detach forgets sub, which the caller closes
func (l *lifecycle) detach(sub gateway.Subscription) {
	for i, kept := range l.subs {
		if kept == sub {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return
		}
	}
}

// end unmounts and hands back the subscriptions to close outside the lock
func (l *lifecycle) end() []gateway.Subscription {
	if !l.mounted {
		return nil
	}
	l.mounted = false
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	subs := l.subs
	l.subs = nil
	return subs
}

func closeSubscriptions(subs []gateway.Subscription) {
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			zap.L().Warn("failed to close change subscription", zap.Error(err))
		}
	}
}

// subscribe opens a change stream. A failed subscription leaves the screen
// on polling until a retry succeeds, so it is logged and not returned.
func subscribe(ctx context.Context, gw gateway.Gateway, collection models.Collection) gateway.Subscription {
	sub, err := gw.Subscribe(ctx, collection)
	if err != nil {
		zap.L().Warn("change subscription unavailable",
			zap.String("collection", string(collection)),
			zap.Error(err),
		)
		return nil
	}
	return sub
}

// dispatchContext detaches a request from its caller. Dispatched requests run
// to completion; their results are discarded if the screen went away.
func dispatchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), requestTimeout)
}
