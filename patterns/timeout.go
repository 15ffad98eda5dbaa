package patterns

import (
	"context"
	"time"
)

// DefaultTxTimeout bounds a unit of work when none is configured.
const DefaultTxTimeout = 5 * time.Second

// WithTimeout derives a context that gives up after d, falling back to
// DefaultTxTimeout for non-positive values.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTxTimeout
	}
	return context.WithTimeout(parent, d)
}
