package scraper

import (
	"context"
	"time"
)

// Delays are the fixed settle waits used in place of load-completion
// signals, which the map interface does not expose.
type Delays struct {
	// FirstPaint follows the initial navigation.
	FirstPaint time.Duration
	// Scroll follows each scroll of the results list.
	Scroll time.Duration
	// Select follows opening a list entry.
	Select time.Duration
}

// DefaultDelays returns the production settle waits.
func DefaultDelays() Delays {
	return Delays{
		FirstPaint: 4 * time.Second,
		Scroll:     1600 * time.Millisecond,
		Select:     2200 * time.Millisecond,
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
