package markup

import (
	"errors"
	"sync"
	"time"
)

// ErrStale is returned for results superseded by a newer request.
var ErrStale = errors.New("result superseded by newer request")

// Ticket identifies one request within an editing session.
type Ticket struct {
	key string
	seq uint64
}

// Tracker implements "latest request wins": only result of the most recent
// request for a key may be shown, older ones are discarded when they
// complete out of order. Keys are kept only while requests are in flight.
type Tracker struct {
	mu   sync.Mutex
	seq  uint64
	last map[string]uint64
}

func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]uint64)}
}

// Begin registers new request for key superseding all previous ones.
// Sequence is shared by all keys so a ticket never matches a later session
// reusing the key.
func (t *Tracker) Begin(key string) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.last[key] = t.seq
	return Ticket{key: key, seq: t.seq}
}

// Current reports whether ticket still belongs to the latest request.
func (t *Tracker) Current(tk Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last[tk.key] == tk.seq
}

// Finish completes request and reports whether it was the latest one. Key
// is released once its latest request finishes.
func (t *Tracker) Finish(tk Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last[tk.key] != tk.seq {
		return false
	}
	delete(t.last, tk.key)
	return true
}

// Forget drops session state.
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, key)
}

// Sessions returns number of keys with requests in flight.
func (t *Tracker) Sessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

// Latest runs fn for key and returns ErrStale when another request for the
// same key was started before fn completed.
func Latest[T any](t *Tracker, key string, fn func() (T, error)) (T, error) {
	tk := t.Begin(key)
	res, err := fn()
	if !t.Finish(tk) {
		var zero T
		return zero, ErrStale
	}
	return res, err
}

// Debouncer delays action until calls stop arriving for the configured
// interval. Every Trigger supersedes pending action (last write wins).
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn replacing previously scheduled action. Ignored after
// Stop.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := gen == d.gen && !d.stopped
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Stop cancels pending action, Debouncer cannot be used afterwards.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
}
