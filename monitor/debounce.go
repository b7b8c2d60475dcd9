package monitor

import (
	"sync"
	"time"
)

// keyedDebouncer coalesces bursts of work per key with cancel-and-replace
// scheduling: a new event under an in-flight key discards the pending
// timer and starts a fresh window, so only the last schedule within a
// burst runs. Keys are (form, field, kind) strings.
type keyedDebouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timers  map[string]*time.Timer
	stopped bool
}

func newKeyedDebouncer(window time.Duration) *keyedDebouncer {
	return &keyedDebouncer{
		window: window,
		timers: make(map[string]*time.Timer),
	}
}

// schedule (re)arms the key's timer. fn runs once after the window expires
// with no further schedule calls for the key.
func (d *keyedDebouncer) schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// flush runs fn immediately, cancelling any pending timer for the key.
func (d *keyedDebouncer) flush(key string, fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
	d.mu.Unlock()
	fn()
}

// cancel drops any pending work for the key.
func (d *keyedDebouncer) cancel(key string) {
	d.mu.Lock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
	d.mu.Unlock()
}

// cancelPrefix drops all pending work whose key starts with prefix.
// Used when a form is unregistered.
func (d *keyedDebouncer) cancelPrefix(prefix string) {
	d.mu.Lock()
	for k, t := range d.timers {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			t.Stop()
			delete(d.timers, k)
		}
	}
	d.mu.Unlock()
}

// stop cancels everything and rejects further scheduling. Callbacks that
// already fired but have not run yet observe stopped and become no-ops.
func (d *keyedDebouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	for k, t := range d.timers {
		t.Stop()
		delete(d.timers, k)
	}
	d.mu.Unlock()
}

// pending reports the number of armed timers (test hook).
func (d *keyedDebouncer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
