package wizard

import (
	"sync"

	"github.com/draftforge/draftforge/internal/util"
	"github.com/draftforge/draftforge/pkg/api"
)

type (
	// Notifier fans coordinator events out to subscribers. Delivery is
	// best effort: a subscriber that stops draining loses events rather
	// than stalling the coordinator
	Notifier struct {
		subs util.Set[chan *api.Event]
		mu   sync.Mutex
	}
)

const subscriberBuffer = 16

func NewNotifier() *Notifier {
	return &Notifier{
		subs: util.Set[chan *api.Event]{},
	}
}

// Subscribe registers an event channel. The returned func unsubscribes
// and closes the channel
func (n *Notifier) Subscribe() (<-chan *api.Event, func()) {
	ch := make(chan *api.Event, subscriberBuffer)

	n.mu.Lock()
	n.subs.Add(ch)
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.subs.Contains(ch) {
			n.subs.Remove(ch)
			close(ch)
		}
	}
}

// Publish delivers an event to every subscriber without blocking
func (n *Notifier) Publish(event *api.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close unsubscribes and closes every remaining channel
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		n.subs.Remove(ch)
		close(ch)
	}
}
