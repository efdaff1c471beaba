// Package collyhttp implements lot.Fetcher with a plain HTTP client via
// gocolly, for catalogs that render server-side. No JavaScript runs; the
// markup returned is the raw response body.
package collyhttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"bankrot/harvester/internal/auth"
)

// Config controls one HTTP session.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Cookies   []auth.Cookie
	// Transport overrides the HTTP transport, used by tests to inject a
	// mock. Nil means a pooled default.
	Transport http.RoundTripper
}

// Session is one cookie-isolated HTTP fetch context. Items within a
// session are fetched sequentially; the session must not be shared.
type Session struct {
	cfg       Config
	collector *colly.Collector

	mu   sync.Mutex
	body string
	err  error
}

// NewSession builds the collector and seeds it with auth cookies.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	c.WithTransport(transport)

	if len(cfg.Cookies) > 0 {
		httpCookies := make([]*http.Cookie, 0, len(cfg.Cookies))
		for _, ck := range cfg.Cookies {
			httpCookies = append(httpCookies, &http.Cookie{
				Name:     ck.Name,
				Value:    ck.Value,
				Path:     ck.Path,
				Domain:   ck.Domain,
				Secure:   ck.Secure,
				HttpOnly: ck.HTTPOnly,
			})
		}
		if err := c.SetCookies(cfg.BaseURL, httpCookies); err != nil {
			return nil, fmt.Errorf("seed session cookies: %w", err)
		}
	}

	s := &Session{cfg: cfg, collector: c}

	c.OnResponse(func(r *colly.Response) {
		s.mu.Lock()
		s.body = string(r.Body)
		s.mu.Unlock()
	})
	c.OnError(func(r *colly.Response, err error) {
		s.mu.Lock()
		if r != nil && r.StatusCode != 0 {
			s.err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		} else {
			s.err = err
		}
		s.mu.Unlock()
	})

	return s, nil
}

// Fetch performs a single GET and returns the body.
func (s *Session) Fetch(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	s.body, s.err = "", nil
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			return "", fmt.Errorf("visit %s: %w", url, err)
		}
		if s.err != nil {
			return "", fmt.Errorf("fetch %s: %w", url, s.err)
		}
		return s.body, nil
	}
}

// Close releases nothing for the HTTP session; it exists to satisfy
// lot.Fetcher.
func (s *Session) Close() {}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
