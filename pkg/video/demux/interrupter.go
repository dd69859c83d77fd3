package demux

import (
	"context"
	"sync"
	"time"
)

type reason int

const (
	reasonNone reason = iota
	reasonAbort
	reasonTimeout
)

// interrupter decides whether a blocking native call should give up. It
// is polled by the native library through the input and by the watchdog.
type interrupter struct {
	mu      sync.Mutex
	now     func() time.Time
	ctx     context.Context
	aborted bool
	start   time.Time
	budget  time.Duration
	fired   reason
}

func newInterrupter(now func() time.Time) *interrupter {
	return &interrupter{now: now, ctx: context.Background()}
}

// begin starts a blocking phase with a fresh budget.
func (i *interrupter) begin(budget time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.start = i.now()
	i.budget = budget
	i.fired = reasonNone
}

// end leaves the blocking phase, time spent between phases never counts.
func (i *interrupter) end() reason {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.budget = 0
	r := i.fired
	i.fired = reasonNone
	return r
}

func (i *interrupter) abort() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.aborted = true
}

func (i *interrupter) isAborted() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.aborted || i.ctx.Err() != nil
}

func (i *interrupter) poll() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.decide()
}

// fire polls and, when the call should give up, runs interrupt before the
// phase can end. A late interrupt could otherwise land after the next
// phase resumed the input and kill an unrelated read.
func (i *interrupter) fire(interrupt func()) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.decide() {
		return false
	}
	interrupt()
	return true
}

func (i *interrupter) decide() bool {
	if i.fired != reasonNone {
		return true
	}

	switch {
	case i.aborted, i.ctx.Err() != nil:
		i.fired = reasonAbort
	case i.budget > 0 && i.now().Sub(i.start) > i.budget:
		i.fired = reasonTimeout
	default:
		return false
	}
	return true
}
