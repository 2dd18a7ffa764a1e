package preview

import (
	"errors"
	"fmt"
	"sync"
)

var ErrFullscreenPending = errors.New("fullscreen change already requested")

// Viewer keeps fullscreen state of the deck. Requesting a change never
// flips the state by itself, only confirmation from the display side does.
// Safe for concurrent use.
type Viewer struct {
	mu         sync.Mutex
	fullscreen bool
	pending    bool
}

func (v *Viewer) Fullscreen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fullscreen
}

// Pending reports whether change was requested but not yet confirmed.
func (v *Viewer) Pending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending
}

// RequestFullscreen asks display to enter fullscreen (or leave it when
// already there) through request. Returned error is meant to be shown to
// the user, state stays unchanged in that case.
func (v *Viewer) RequestFullscreen(request func(enter bool) error) error {
	v.mu.Lock()
	if v.pending {
		v.mu.Unlock()
		return ErrFullscreenPending
	}
	enter := !v.fullscreen
	v.pending = true
	v.mu.Unlock()

	if err := request(enter); err != nil {
		v.mu.Lock()
		v.pending = false
		v.mu.Unlock()
		if enter {
			return fmt.Errorf("unable to enter fullscreen: %w", err)
		}
		return fmt.Errorf("unable to exit fullscreen: %w", err)
	}
	return nil
}

// FullscreenChanged records confirmed display state.
func (v *Viewer) FullscreenChanged(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fullscreen = on
	v.pending = false
}
