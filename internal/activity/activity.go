// Package activity is the write-only audit sink. Recording never fails the
// caller: every adapter logs its own errors and returns.
package activity

import (
	"context"
	"time"
)

type Event struct {
	UserID     string         `json:"user_id,omitempty"` // empty for system events
	Action     string         `json:"action"`
	TargetType string         `json:"target_type,omitempty"`
	TargetID   string         `json:"target_id,omitempty"`
	TargetName string         `json:"target_name,omitempty"`
	Severity   string         `json:"severity"`
	Details    map[string]any `json:"details,omitempty"`
	At         time.Time      `json:"at"`
}

type Notifier interface {
	Record(ctx context.Context, e Event)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(ctx context.Context, e Event)

func (f NotifierFunc) Record(ctx context.Context, e Event) {
	f(ctx, e)
}

type fanout []Notifier

// Fanout records every event on each notifier in turn.
func Fanout(notifiers ...Notifier) Notifier {
	var live fanout
	for _, n := range notifiers {
		if n != nil {
			live = append(live, n)
		}
	}
	if len(live) == 1 {
		return live[0]
	}
	return live
}

func (f fanout) Record(ctx context.Context, e Event) {
	for _, n := range f {
		n.Record(ctx, e)
	}
}

// Discard drops every event.
var Discard Notifier = NotifierFunc(func(context.Context, Event) {})
