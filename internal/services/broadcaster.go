package services

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dexbot/goswap/internal/events"
	"github.com/dexbot/goswap/internal/metrics"
)

var broadcastLog = logrus.WithField("component", "broadcaster")

// subscriberBuffer bounds each observer channel. A slow observer loses
// events rather than stalling the pipeline: delivery is best-effort,
// at-most-once.
const subscriberBuffer = 16

// Subscriber is one live observer of an order's status stream.
type Subscriber struct {
	ch chan []byte
}

// C yields events serialized as JSON. The channel is closed when the
// subscriber is removed from the registry.
func (s *Subscriber) C() <-chan []byte { return s.ch }

// Broadcaster owns the order→observer-set registry and fans every
// published event out to the order's live observers. Late subscribers
// receive no history.
type Broadcaster struct {
	mu        sync.RWMutex
	observers map[string]map[*Subscriber]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		observers: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new observer for an order.
func (b *Broadcaster) Subscribe(orderID string) *Subscriber {
	sub := &Subscriber{ch: make(chan []byte, subscriberBuffer)}
	b.mu.Lock()
	set, ok := b.observers[orderID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.observers[orderID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes an observer and closes its channel. The registry
// entry is deleted once its set empties, so memory stays bounded by orders
// with live observers.
func (b *Broadcaster) Unsubscribe(orderID string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.observers[orderID]
	if !ok {
		return
	}
	if _, member := set[sub]; !member {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(b.observers, orderID)
	}
}

// Publish serializes the event once and sends it to every current
// observer. An observer whose buffer is full is skipped.
func (b *Broadcaster) Publish(ev events.OrderEvent) {
	b.mu.RLock()
	set := b.observers[ev.OrderID]
	if len(set) == 0 {
		b.mu.RUnlock()
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		b.mu.RUnlock()
		broadcastLog.Errorf("marshal event: order=%s err=%v", ev.OrderID, err)
		return
	}
	for sub := range set {
		select {
		case sub.ch <- payload:
			metrics.BroadcastsSent.Add(1)
		default:
			metrics.BroadcastsDropped.Add(1)
		}
	}
	b.mu.RUnlock()
}

// ObserverCount reports the live observers for an order.
func (b *Broadcaster) ObserverCount(orderID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers[orderID])
}

// HasEntry reports whether the registry still holds a mapping entry for
// the order. Used by tests to check memory is released.
func (b *Broadcaster) HasEntry(orderID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.observers[orderID]
	return ok
}
