package geocoding

import (
	"context"
	"sync"
	"time"
)

type pendingCall struct {
	id     uint64
	cancel context.CancelFunc
}

// Debouncer delays work per key and cancels the previous call for that key
// whenever a newer one arrives, both while it waits and while it runs.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	seq     uint64
	pending map[string]pendingCall
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window, pending: make(map[string]pendingCall)}
}

// Do waits for the debounce window and then runs fn. It returns true when
// the call was superseded (or ctx ended) and whatever fn produced must be discarded.
func (d *Debouncer) Do(ctx context.Context, key string, fn func(ctx context.Context)) (stale bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	d.seq++
	id := d.seq
	if prev, ok := d.pending[key]; ok {
		prev.cancel()
	}
	d.pending[key] = pendingCall{id: id, cancel: cancel}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if cur, ok := d.pending[key]; ok && cur.id == id {
			delete(d.pending, key)
		}
		d.mu.Unlock()
	}()

	if d.window > 0 {
		timer := time.NewTimer(d.window)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return true
		case <-timer.C:
		}
	}

	fn(ctx)
	return ctx.Err() != nil
}
