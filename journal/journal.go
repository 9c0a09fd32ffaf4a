// Package journal provides sinks for the domain events the escrow
// ledger emits: an in-memory recorder for tests and tooling, and a
// durable Postgres journal for deployments that need an audit trail.
package journal

import (
	"context"
	"sync"

	"github.com/keeperd/keeper/x/escrow"
)

// Recorder is an in-memory event sink capturing everything emitted.
type Recorder struct {
	mu     sync.Mutex
	events []escrow.Event
}

var _ escrow.Emitter = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(ctx context.Context, ev escrow.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a snapshot of everything recorded so far, in emission
// order.
func (r *Recorder) Events() []escrow.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]escrow.Event, len(r.events))
	copy(out, r.events)
	return out
}

type multi []escrow.Emitter

// Multi fans every event out to all given sinks, in order.
func Multi(sinks ...escrow.Emitter) escrow.Emitter {
	return multi(sinks)
}

func (m multi) Emit(ctx context.Context, ev escrow.Event) {
	for _, sink := range m {
		sink.Emit(ctx, ev)
	}
}
