// Package notify is an in-process change notification broker. It serves the
// local gateway, where screens and the service share one process.
package notify

import (
	"context"
	"sync"

	"pizzachallenge/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const subscriberBuffer = 32

// Broker fans published events out to per-collection subscribers
type Broker struct {
	mu       sync.RWMutex
	subs     map[string]*Subscription
	versions map[models.Collection]int64
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{
		subs:     make(map[string]*Subscription),
		versions: make(map[models.Collection]int64),
	}
}

// Subscription receives the events of one collection
type Subscription struct {
	id         string
	collection models.Collection
	events     chan models.ChangeEvent
	broker     *Broker
	once       sync.Once
}

// Events returns the event stream. It is closed by Close.
func (s *Subscription) Events() <-chan models.ChangeEvent {
	return s.events
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		s.broker.mu.Unlock()
		close(s.events)
	})
	return nil
}

// Subscribe registers interest in a collection
func (b *Broker) Subscribe(_ context.Context, collection models.Collection) (*Subscription, error) {
	sub := &Subscription{
		id:         uuid.NewString(),
		collection: collection,
		events:     make(chan models.ChangeEvent, subscriberBuffer),
		broker:     b,
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub, nil
}

// Publish stamps the event with the next collection version and delivers it
// to every matching subscriber. A subscriber with a full buffer misses the
// event; the next one triggers its re-fetch anyway.
func (b *Broker) Publish(_ context.Context, event models.ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.versions[event.Collection]++
	event.Version = b.versions[event.Collection]

	for _, sub := range b.subs {
		if sub.collection != event.Collection {
			continue
		}
		select {
		case sub.events <- event:
		default:
			zap.L().Warn("subscriber buffer full, dropping change event",
				zap.String("collection", string(event.Collection)),
				zap.String("subscription", sub.id),
			)
		}
	}
	return nil
}

// SubscriberCount returns the number of open subscriptions
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
