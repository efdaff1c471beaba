// Package listing walks the paginated catalog and accumulates normalized
// lot identifiers.
package listing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"bankrot/harvester/internal/lot"
	"bankrot/harvester/internal/metrics"
)

// lotLinkSelector recognizes item-detail anchors on a listing page.
const lotLinkSelector = `a[href*='/lot/']`

// Config controls walker behavior.
type Config struct {
	BaseURL      string
	MaxPages     int
	PageDelayMin time.Duration
	PageDelayMax time.Duration
}

// Walker paginates a catalog endpoint single-threaded, strictly before any
// fan-out, so the duplicate-page stop rule sees a fully materialized set.
type Walker struct {
	fetcher lot.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// NewWalker builds a Walker on top of one fetch session.
func NewWalker(fetcher lot.Fetcher, cfg Config, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Discover accumulates distinct normalized identifiers page by page until
// the target count is reached, a page times out or renders no item
// anchors (end of pagination), or a page contributes nothing new
// (duplicate-page loop guard). Fetch failures end pagination rather than
// failing the run; only context cancellation returns an error, together
// with whatever was collected so far.
func (w *Walker) Discover(ctx context.Context, catalogURL string, target int) ([]string, error) {
	var ids []string
	dedup := map[string]struct{}{}

	for page := 1; w.cfg.MaxPages <= 0 || page <= w.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return ids, err
		}

		url := PageURL(catalogURL, page)
		w.logger.Info("fetching listing page", zap.Int("page", page), zap.String("url", url))

		html, err := w.fetcher.Fetch(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return ids, ctx.Err()
			}
			metrics.ObservePage("listing", "timeout")
			w.logger.Info("listing page did not render, stopping pagination",
				zap.Int("page", page), zap.Error(err))
			break
		}
		metrics.ObservePage("listing", "ok")

		links, err := extractLotLinks(html, w.cfg.BaseURL)
		if err != nil {
			w.logger.Warn("listing page unparseable, stopping pagination",
				zap.Int("page", page), zap.Error(err))
			break
		}
		if len(links) == 0 {
			w.logger.Info("no lot links on page, end of listing", zap.Int("page", page))
			break
		}

		before := len(ids)
		for _, id := range links {
			if len(ids) >= target {
				break
			}
			if _, dup := dedup[id]; dup {
				continue
			}
			dedup[id] = struct{}{}
			ids = append(ids, id)
		}
		w.logger.Info("listing page processed",
			zap.Int("page", page),
			zap.Int("links", len(links)),
			zap.Int("distinct_total", len(ids)),
		)

		if len(ids) >= target {
			break
		}
		if len(ids) == before {
			w.logger.Info("page contributed no new lots, stopping", zap.Int("page", page))
			break
		}

		if err := lot.SleepJitter(ctx, w.cfg.PageDelayMin, w.cfg.PageDelayMax); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

// PageURL appends the page parameter, keeping any existing query string.
func PageURL(catalogURL string, page int) string {
	sep := "?"
	if strings.Contains(catalogURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", catalogURL, sep, page)
}

// Normalize converts a raw anchor href into the canonical identifier:
// absolute URL with any fragment stripped, so textual variants of the
// same lot collapse to one key. The second return is false for hrefs that
// do not address a page (empty or fragment-only).
func Normalize(baseURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	full := href
	if !strings.HasPrefix(href, "http") {
		full = strings.TrimRight(baseURL, "/") + href
	}
	if i := strings.IndexByte(full, '#'); i >= 0 {
		full = full[:i]
	}
	return full, true
}

func extractLotLinks(html, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	var links []string
	doc.Find(lotLinkSelector).Each(func(_ int, a *goquery.Selection) {
		if id, ok := Normalize(baseURL, a.AttrOr("href", "")); ok {
			links = append(links, id)
		}
	})
	return links, nil
}
