// Package headless implements lot.Fetcher on top of a real browser via
// chromedp, for catalogs that render listings client-side.
package headless

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"bankrot/harvester/internal/auth"
)

// Config controls one browser session.
type Config struct {
	// BaseURL of the target site; its hostname scopes the auth cookies.
	BaseURL string
	// Headless hides the browser window. Visible runs help when the site
	// fingerprints automation.
	Headless bool
	// UserAgent overrides the browser default.
	UserAgent string
	// WaitSelector is awaited after navigation before the DOM snapshot is
	// taken. Empty means "body".
	WaitSelector string
	// NavTimeout bounds a whole navigation including the selector wait.
	NavTimeout time.Duration
	// Settle is an extra pause after the selector appears, giving lazy
	// content a chance to land.
	Settle time.Duration
	// Cookies are applied to the browser before the first fetch.
	Cookies []auth.Cookie
}

// Session is one isolated browser context. It lives for a whole shard and
// must not be shared across workers.
type Session struct {
	cfg          Config
	allocCancel  context.CancelFunc
	browserCtx   context.Context
	browserStop  context.CancelFunc
	cookieDomain string
}

// NewSession launches a browser and applies auth cookies.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 25 * time.Second
	}
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = "body"
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1400, 900),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:          cfg,
		allocCancel:  allocCancel,
		browserCtx:   browserCtx,
		browserStop:  browserStop,
		cookieDomain: hostnameOf(cfg.BaseURL),
	}

	// Start the browser eagerly so cookie application failures surface at
	// construction, before any work is sharded onto this session.
	if err := chromedp.Run(browserCtx, s.cookieActions()...); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser session: %w", err)
	}
	return s, nil
}

// Fetch navigates and returns the rendered DOM once the wait selector is
// present. Timeouts surface as errors; the walker treats them as end of
// pagination and workers as a per-item skip.
func (s *Session) Fetch(ctx context.Context, pageURL string) (string, error) {
	runCtx, cancel := mergeContext(s.browserCtx, ctx, s.cfg.NavTimeout)
	defer cancel()

	settle := s.cfg.Settle
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(s.cfg.WaitSelector, chromedp.ByQuery),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return html, nil
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() {
	s.browserStop()
	s.allocCancel()
}

func (s *Session) cookieActions() []chromedp.Action {
	actions := []chromedp.Action{network.Enable()}
	for _, c := range s.cfg.Cookies {
		c := c
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			domain := c.Domain
			if domain == "" {
				domain = s.cookieDomain
			}
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
			return nil
		}))
	}
	return actions
}

// mergeContext derives a run context from the browser context that is
// also canceled when the caller's context or the timeout fires. chromedp
// actions must run on the browser context chain to reach the target.
func mergeContext(browserCtx, callerCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	stop := context.AfterFunc(callerCtx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return strings.TrimPrefix(rawURL, "www.")
	}
	return u.Hostname()
}
