// Package notifytest provides an in-memory notify.Notifier for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/park285/duel-arena/internal/domain"
)

type Kind string

const (
	KindStarted Kind = "started"
	KindResumed Kind = "resumed"
	KindMove    Kind = "move"
	KindOver    Kind = "over"
	KindInvalid Kind = "invalid"
)

type Event struct {
	Kind     Kind
	PlayerID string
	Snapshot domain.MatchSnapshot
	Move     domain.Move
	Err      error
}

// Recorder keeps every notification in arrival order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *Recorder) MatchStarted(_ context.Context, snap domain.MatchSnapshot) {
	r.add(Event{Kind: KindStarted, Snapshot: snap})
}

func (r *Recorder) MatchResumed(_ context.Context, playerID string, snap domain.MatchSnapshot) {
	r.add(Event{Kind: KindResumed, PlayerID: playerID, Snapshot: snap})
}

func (r *Recorder) MovePlayed(_ context.Context, snap domain.MatchSnapshot, mv domain.Move) {
	r.add(Event{Kind: KindMove, Snapshot: snap, Move: mv})
}

func (r *Recorder) MatchOver(_ context.Context, snap domain.MatchSnapshot) {
	r.add(Event{Kind: KindOver, Snapshot: snap})
}

func (r *Recorder) InvalidRequest(_ context.Context, playerID string, err error) {
	r.add(Event{Kind: KindInvalid, PlayerID: playerID, Err: err})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Of returns recorded events of the given kind.
func (r *Recorder) Of(kind Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
