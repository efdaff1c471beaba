// Package harvest wires discovery, extraction and export into one run:
// walk the listing, drop already-seen lots, shard the rest across
// isolated sessions, extract in parallel, export once, then persist the
// seen set.
package harvest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bankrot/harvester/internal/lot"
	"bankrot/harvester/internal/metrics"
	"bankrot/harvester/internal/shard"
)

// Config controls one run.
type Config struct {
	CatalogURL   string
	TargetCount  int
	Workers      int
	ItemDelayMin time.Duration
	ItemDelayMax time.Duration
}

// Walker discovers lot identifiers from the catalog.
type Walker interface {
	Discover(ctx context.Context, catalogURL string, target int) ([]string, error)
}

// Sink appends extracted records to the destination table.
type Sink interface {
	Append(records []*lot.Record) (int, error)
}

// SeenSet is the durable set of already-recorded identifiers.
type SeenSet interface {
	Load()
	Contains(id string) bool
	AddMany(ids []string)
	Len() int
	Save() error
}

// Limiter gates fetches per domain.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// ParseFunc turns rendered markup into a record.
type ParseFunc func(html, sourceURL string) (*lot.Record, error)

// Deps are the collaborators the engine orchestrates.
type Deps struct {
	Store     SeenSet
	Sessions  lot.SessionFactory
	NewWalker func(f lot.Fetcher) Walker
	Sink      Sink
	Limiter   Limiter
	Parse     ParseFunc
	Logger    *zap.Logger
}

// Summary reports the counts of one completed run.
type Summary struct {
	RunID      string
	Discovered int
	New        int
	Extracted  int
	Appended   int
	SeenTotal  int
}

// Engine executes the pipeline. One Engine per run.
type Engine struct {
	cfg  Config
	deps Deps
}

// New validates collaborators and builds an Engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("engine requires a seen store")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("engine requires a session factory")
	case deps.NewWalker == nil:
		return nil, fmt.Errorf("engine requires a walker factory")
	case deps.Sink == nil:
		return nil, fmt.Errorf("engine requires a sink")
	case deps.Parse == nil:
		return nil, fmt.Errorf("engine requires a parse function")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{cfg: cfg, deps: deps}, nil
}

type shardResult struct {
	records []*lot.Record
	ids     []string
}

// Run executes one full harvest. Per-item failures are contained inside
// workers; only discovery, export and seen-set persistence failures abort.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	log := e.deps.Logger.With(zap.String("run_id", summary.RunID))

	e.deps.Store.Load()
	log.Info("seen store loaded", zap.Int("seen", e.deps.Store.Len()))

	ids, err := e.discover(ctx, log)
	summary.Discovered = len(ids)
	if err != nil {
		return summary, err
	}

	pending := make([]string, 0, len(ids))
	for _, id := range ids {
		if !e.deps.Store.Contains(id) {
			pending = append(pending, id)
		}
	}
	summary.New = len(pending)
	summary.SeenTotal = e.deps.Store.Len()
	log.Info("discovery finished",
		zap.Int("discovered", summary.Discovered),
		zap.Int("new", summary.New),
		zap.Int("already_seen", summary.Discovered-summary.New),
	)
	if len(pending) == 0 {
		log.Info("nothing new to harvest")
		return summary, nil
	}

	records, okIDs := e.fanOut(ctx, pending, log)
	summary.Extracted = len(records)

	appended, err := e.deps.Sink.Append(records)
	summary.Appended = appended
	if err != nil {
		return summary, fmt.Errorf("append records: %w", err)
	}

	// Only successfully extracted identifiers become seen; failures are
	// retried by the next scheduled run.
	e.deps.Store.AddMany(okIDs)
	if err := e.deps.Store.Save(); err != nil {
		return summary, fmt.Errorf("save seen set: %w", err)
	}
	summary.SeenTotal = e.deps.Store.Len()

	log.Info("run finished",
		zap.Int("discovered", summary.Discovered),
		zap.Int("new", summary.New),
		zap.Int("extracted", summary.Extracted),
		zap.Int("appended", summary.Appended),
		zap.Int("seen_total", summary.SeenTotal),
	)
	return summary, nil
}

// discover runs the single-threaded listing walk on its own session. The
// pending set must be fully materialized before fan-out or the
// duplicate-page stop rule cannot hold.
func (e *Engine) discover(ctx context.Context, log *zap.Logger) ([]string, error) {
	session, err := e.deps.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("open discovery session: %w", err)
	}
	defer session.Close()

	ids, err := e.deps.NewWalker(session).Discover(ctx, e.cfg.CatalogURL, e.cfg.TargetCount)
	if err != nil {
		return ids, fmt.Errorf("discover listings: %w", err)
	}
	return ids, nil
}

// fanOut shards pending identifiers round-robin and processes each shard
// on its own session, sequentially within the shard.
func (e *Engine) fanOut(ctx context.Context, pending []string, log *zap.Logger) ([]*lot.Record, []string) {
	shards := shard.Split(pending, e.cfg.Workers)

	results := make(chan shardResult, len(shards))
	var wg sync.WaitGroup
	started := 0
	for i, ids := range shards {
		if len(ids) == 0 {
			continue
		}
		wg.Add(1)
		started++
		go e.runShard(ctx, i, ids, log, &wg, results)
	}
	log.Info("fan-out started", zap.Int("workers", started), zap.Int("pending", len(pending)))

	wg.Wait()
	close(results)

	var records []*lot.Record
	var okIDs []string
	for res := range results {
		records = append(records, res.records...)
		okIDs = append(okIDs, res.ids...)
	}
	return records, okIDs
}

func (e *Engine) runShard(
	ctx context.Context,
	idx int,
	ids []string,
	log *zap.Logger,
	wg *sync.WaitGroup,
	results chan<- shardResult,
) {
	defer wg.Done()
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	log = log.With(zap.Int("shard", idx))

	session, err := e.deps.Sessions(ctx)
	if err != nil {
		log.Error("worker session failed, shard skipped",
			zap.Int("items", len(ids)), zap.Error(err))
		results <- shardResult{}
		return
	}
	defer session.Close()

	var res shardResult
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if rec, ok := e.processItem(ctx, session, id, log); ok {
			res.records = append(res.records, rec)
			res.ids = append(res.ids, id)
		}
		if err := lot.SleepJitter(ctx, e.cfg.ItemDelayMin, e.cfg.ItemDelayMax); err != nil {
			break
		}
	}
	results <- res
}

// processItem contains every per-item failure mode: a bad item is logged
// and skipped, never aborting the shard.
func (e *Engine) processItem(ctx context.Context, session lot.Fetcher, id string, log *zap.Logger) (*lot.Record, bool) {
	if e.deps.Limiter != nil {
		if err := e.deps.Limiter.Wait(ctx, id); err != nil {
			log.Warn("rate limit wait aborted", zap.String("lot", id), zap.Error(err))
			return nil, false
		}
	}

	html, err := session.Fetch(ctx, id)
	if err != nil {
		metrics.ObservePage("detail", "error")
		metrics.ObserveSkipped("fetch")
		log.Warn("lot fetch failed, skipping", zap.String("lot", id), zap.Error(err))
		return nil, false
	}
	metrics.ObservePage("detail", "ok")

	rec, err := e.deps.Parse(html, id)
	if err != nil {
		metrics.ObserveSkipped("parse")
		log.Warn("lot page unparseable, skipping", zap.String("lot", id), zap.Error(err))
		return nil, false
	}
	if rec.Empty() {
		metrics.ObserveSkipped("empty")
		log.Info("lot has neither price nor address, skipping", zap.String("lot", id))
		return nil, false
	}

	metrics.ObserveExtracted()
	return rec, true
}
