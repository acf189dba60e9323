// Package debounce runs keyed actions after a quiescence window.
package debounce

import (
	"sort"
	"sync"
	"time"
)

// DefaultDelay is the quiescence window used for form edits.
const DefaultDelay = 150 * time.Millisecond

type entry struct {
	timer *time.Timer
	fn    func()
	seq   uint64
}

// Debouncer delays actions per key. Triggering a key again before its
// window elapses cancels the pending action and restarts the window, so
// only the last action runs.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64
	stopped bool

	// running counts actions whose timers fired and that have not
	// returned yet; idle is signalled when it drops to zero.
	running int
	idle    *sync.Cond
}

// New creates a Debouncer with the given window.
func New(delay time.Duration) *Debouncer {
	d := &Debouncer{
		delay:   delay,
		entries: make(map[string]*entry),
	}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Trigger schedules fn for key, replacing any pending action for key.
// Triggers after Stop are ignored.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if e, ok := d.entries[key]; ok {
		e.timer.Stop()
	}

	d.seq++
	e := &entry{fn: fn, seq: d.seq}
	e.timer = time.AfterFunc(d.delay, func() { d.fire(key, e.seq) })
	d.entries[key] = e
}

func (d *Debouncer) fire(key string, seq uint64) {
	d.mu.Lock()
	e, ok := d.entries[key]
	if !ok || e.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)
	d.running++
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running--
		if d.running == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}()
	e.fn()
}

// Cancel drops the pending action for key and reports whether one was
// pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(d.entries, key)
	return true
}

// Pending reports whether an action is scheduled for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key]
	return ok
}

// Flush runs every pending action now, in the caller's goroutine, and
// waits for actions whose timers already fired. It must not be called
// from inside an action.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	pending := make([]*entry, 0, len(d.entries))
	for key, e := range d.entries {
		e.timer.Stop()
		pending = append(pending, e)
		delete(d.entries, key)
	}
	d.mu.Unlock()

	// Keep trigger order.
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	for _, e := range pending {
		e.fn()
	}

	d.mu.Lock()
	for d.running > 0 {
		d.idle.Wait()
	}
	d.mu.Unlock()
}

// Stop cancels every pending action and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for key, e := range d.entries {
		e.timer.Stop()
		delete(d.entries, key)
	}
}
