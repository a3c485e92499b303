package datasette

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces the per-instance courtesy delay: consecutive requests to
// the same instance are spaced at least the instance's CourtesyDelay apart.
// Instances never throttle each other.
type Throttle struct {
	mu    sync.Mutex
	slots map[string]*throttleSlot
}

// throttleSlot tracks when the next request to one instance may start. Each
// slot has its own lock so the reservation step never serializes across
// instances.
type throttleSlot struct {
	mu   sync.Mutex
	next time.Time
}

// NewThrottle creates an empty throttle.
func NewThrottle() *Throttle {
	return &Throttle{slots: make(map[string]*throttleSlot)}
}

// Wait blocks until a request to inst may start. The reservation of the next
// start time is atomic per instance, so two concurrent calls can never both
// observe an expired delay; the sleep itself happens outside any lock.
func (t *Throttle) Wait(ctx context.Context, inst *Instance) error {
	delay := inst.CourtesyDelay
	if delay <= 0 {
		return nil
	}

	s := t.slot(inst.ID)

	s.mu.Lock()
	now := time.Now()
	at := s.next
	if at.Before(now) {
		at = now
	}
	s.next = at.Add(delay)
	s.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Throttle) slot(id string) *throttleSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[id]
	if !ok {
		s = &throttleSlot{}
		t.slots[id] = s
	}
	return s
}
