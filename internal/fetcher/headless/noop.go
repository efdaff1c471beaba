package headless

import (
	"context"
	"errors"
)

// Noop implements lot.Fetcher but always errors, for builds and tests
// where no browser is available.
type Noop struct{}

// NewNoop creates a Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ string) (string, error) {
	return "", errors.New("headless fetcher not configured")
}

// Close is a no-op.
func (Noop) Close() {}
