package testutil

import (
	"context"
	"sync"

	"github.com/templui/vaultgate/internal/activity"
)

// Notifier captures recorded events.
type Notifier struct {
	mu     sync.Mutex
	events []activity.Event
}

func (n *Notifier) Record(ctx context.Context, e activity.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *Notifier) Events() []activity.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]activity.Event(nil), n.events...)
}

// ByAction returns the recorded events with the given action.
func (n *Notifier) ByAction(action string) []activity.Event {
	var out []activity.Event
	for _, e := range n.Events() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
