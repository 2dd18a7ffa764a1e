package preview

import (
	"context"
	"fmt"
)

// Sink receives deck pages during export. Show must return only when page
// is fully laid out, Capture then serializes it. Calls are strictly
// sequential: Begin, Show/Capture for every page, then End on success or
// Abort on failure or cancellation.
type Sink interface {
	Begin(total int) error
	Show(ctx context.Context, p Page) error
	Capture(ctx context.Context, p Page) error
	End() error
	Abort(err error)
}

// Export runs show then capture for every page in order. Cancelling ctx
// stops export before the next page.
func Export(ctx context.Context, pages []Page, sink Sink) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sink.Begin(len(pages)); err != nil {
		return fmt.Errorf("unable to begin export: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export panicked: %v", r)
		}
		if err != nil {
			sink.Abort(err)
		}
	}()

	nav := NewNavigator(len(pages))
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		nav.Go(i)
		p := pages[nav.Index()]
		if err := sink.Show(ctx, p); err != nil {
			return fmt.Errorf("unable to show page %d: %w", p.Number, err)
		}
		if err := sink.Capture(ctx, p); err != nil {
			return fmt.Errorf("unable to capture page %d: %w", p.Number, err)
		}
	}

	if err := sink.End(); err != nil {
		return fmt.Errorf("unable to finish export: %w", err)
	}
	return nil
}
