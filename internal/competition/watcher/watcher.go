// Package watcher re-derives competition statuses at their lifecycle
// boundaries and reports kind changes to a callback.
package watcher

import (
	"context"
	"sync"
	"time"

	"alchemy/internal/competition/status"
	"alchemy/pkg/utils/logger"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ChangeFunc receives the new status of a competition whose kind changed.
// It is called without the watcher lock held.
type ChangeFunc func(id string, s status.Status)

type tracked struct {
	descriptor status.Descriptor
	status     status.Status
	timer      *clock.Timer
	generation uint64
}

// Watcher owns the last derived status of each tracked competition and at
// most one pending fire-once timer per competition.
type Watcher struct {
	clock    clock.Clock
	onChange ChangeFunc

	mu         sync.Mutex
	entries    map[string]*tracked
	generation uint64
	stopped    bool
}

// New creates a watcher. A nil clock uses the wall clock.
func New(clk clock.Clock, onChange ChangeFunc) *Watcher {
	if clk == nil {
		clk = clock.New()
	}
	if onChange == nil {
		onChange = func(string, status.Status) {}
	}
	return &Watcher{
		clock:    clk,
		onChange: onChange,
		entries:  make(map[string]*tracked),
	}
}

// Track replaces the descriptor for d.ID, derives its status now and arms a
// timer for the next boundary. The callback fires when the competition is new
// or its kind differs from the last known one.
func (w *Watcher) Track(d status.Descriptor) status.Status {
	w.mu.Lock()
	now := w.clock.Now()
	s := status.Derive(now, d)
	if w.stopped {
		w.mu.Unlock()
		return s
	}

	prev, exists := w.entries[d.ID]
	if exists && prev.timer != nil {
		prev.timer.Stop()
	}
	changed := !exists || prev.status.Kind != s.Kind

	w.generation++
	e := &tracked{descriptor: d, status: s, generation: w.generation}
	w.entries[d.ID] = e
	w.arm(e)
	w.mu.Unlock()

	if changed {
		w.onChange(d.ID, s)
	}
	return s
}

// Untrack cancels the pending timer for id and forgets it.
func (w *Watcher) Untrack(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[id]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(w.entries, id)
	return true
}

// Status returns the last derived status for id.
func (w *Watcher) Status(id string) (status.Status, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[id]
	if !ok {
		return status.Status{}, false
	}
	return e.status, true
}

// Descriptor returns the descriptor currently tracked for id.
func (w *Watcher) Descriptor(id string) (status.Descriptor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[id]
	if !ok {
		return status.Descriptor{}, false
	}
	return e.descriptor, true
}

// Snapshot returns every tracked competition with its last derived status,
// sorted for display.
func (w *Watcher) Snapshot() []status.Entry {
	w.mu.Lock()
	out := make([]status.Entry, 0, len(w.entries))
	for _, e := range w.entries {
		s := e.status
		out = append(out, status.Entry{Descriptor: e.descriptor, Status: &s})
	}
	w.mu.Unlock()
	status.Sort(out)
	return out
}

// Len returns the number of tracked competitions.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Stop cancels all pending timers. Later Track calls still derive a status
// but nothing is scheduled or reported.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	for _, e := range w.entries {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
}

// arm schedules the next boundary for e. Caller holds w.mu.
func (w *Watcher) arm(e *tracked) {
	e.timer = nil
	at, ok := reevaluateAt(e.status, e.descriptor)
	if !ok {
		return
	}
	id, gen := e.descriptor.ID, e.generation
	e.timer = w.clock.AfterFunc(at.Sub(e.status.EvaluatedAt), func() {
		w.fire(id, gen)
	})
}

func (w *Watcher) fire(id string, gen uint64) {
	w.mu.Lock()
	e, ok := w.entries[id]
	if !ok || w.stopped || e.generation != gen {
		w.mu.Unlock()
		return
	}
	prev := e.status.Kind
	e.status = status.Derive(w.clock.Now(), e.descriptor)
	w.arm(e)
	s := e.status
	w.mu.Unlock()

	if s.Kind == prev {
		return
	}
	logger.Debug(context.Background(), "competition status changed",
		zap.String("competition_id", id),
		zap.String("from", prev.String()),
		zap.String("to", s.Kind.String()),
	)
	w.onChange(id, s)
}

// reevaluateAt is the next instant the kind of s can change. It follows
// NextBoundary, except that EndingNoSubmissions still turns into
// EndedNoSubmissions at EndTime even though it shows no countdown.
func reevaluateAt(s status.Status, d status.Descriptor) (time.Time, bool) {
	if at, ok := status.NextBoundary(s, d); ok {
		return at, true
	}
	if s.Kind == status.EndingNoSubmissions {
		return d.EndTime, true
	}
	return time.Time{}, false
}
