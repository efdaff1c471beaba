package lot

import "context"

// Fetcher retrieves a page and returns its rendered markup. Implementations
// are stateful sessions (cookies, browser context) and must not be shared
// across workers.
type Fetcher interface {
	// Fetch blocks until the page is rendered or the session's timeout
	// elapses. A timeout surfaces as an error; callers decide whether it
	// ends pagination or just skips an item.
	Fetch(ctx context.Context, url string) (string, error)
	// Close releases the session's resources. Safe to call more than once.
	Close()
}

// SessionFactory builds one isolated Fetcher. The engine calls it once for
// the discovery phase and once per worker.
type SessionFactory func(ctx context.Context) (Fetcher, error)
