package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bankrot/harvester/internal/auth"
	"bankrot/harvester/internal/config"
	"bankrot/harvester/internal/export"
	"bankrot/harvester/internal/extract"
	"bankrot/harvester/internal/fetcher/collyhttp"
	"bankrot/harvester/internal/fetcher/headless"
	"bankrot/harvester/internal/harvest"
	"bankrot/harvester/internal/listing"
	"bankrot/harvester/internal/lot"
	"bankrot/harvester/internal/metrics"
	"bankrot/harvester/internal/ratelimit"
	"bankrot/harvester/internal/seen"
)

// newHarvestCmd creates and configures the 'harvest' subcommand.
func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Run one incremental harvest",
		Long: `Walks the configured catalog, extracts lots whose identifiers are not
yet in the seen file, and appends them to the output workbook. Exits
cleanly when nothing new is found.`,
		RunE: runHarvestCommand,
	}
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	env, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	cfg, log := env.Cfg, env.Logger

	cookies, err := auth.LoadCookies(cfg.Auth.CookiesFile)
	if err != nil {
		return fmt.Errorf("load auth cookies: %w", err)
	}
	if len(cookies) == 0 {
		if cfg.Auth.Required {
			return fmt.Errorf("no auth cookies at %s; export a logged-in session there or set auth.required to false", cfg.Auth.CookiesFile)
		}
		log.Warn("proceeding without auth cookies, gated fields may read as missing",
			zap.String("path", cfg.Auth.CookiesFile))
	}

	sessions, err := sessionFactory(cfg, cookies)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.Init()
		go serveMetrics(cfg.Metrics.Port, log)
	}

	pageMin, pageMax := cfg.PageDelayBounds()
	itemMin, itemMax := cfg.ItemDelayBounds()

	engine, err := harvest.New(harvest.Config{
		CatalogURL:   cfg.CatalogURL,
		TargetCount:  cfg.MaxLots,
		Workers:      cfg.Workers,
		ItemDelayMin: itemMin,
		ItemDelayMax: itemMax,
	}, harvest.Deps{
		Store:    seen.NewStore(cfg.SeenFile, log),
		Sessions: sessions,
		NewWalker: func(f lot.Fetcher) harvest.Walker {
			return listing.NewWalker(f, listing.Config{
				BaseURL:      cfg.BaseURL,
				MaxPages:     cfg.MaxPages,
				PageDelayMin: pageMin,
				PageDelayMax: pageMax,
			}, log)
		},
		Sink:    export.NewSink(cfg.OutputFile, log),
		Limiter: ratelimit.New(ratelimit.Config{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst}),
		Parse:   extract.Parse,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	sum, err := engine.Run(cmd.Context())
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("harvest: %w", err)
	}

	log.Info("harvest command finished",
		zap.String("run_id", sum.RunID),
		zap.Int("discovered", sum.Discovered),
		zap.Int("new", sum.New),
		zap.Int("appended", sum.Appended),
		zap.Int("seen_total", sum.SeenTotal),
	)
	return nil
}

// sessionFactory picks the transport. Headless renders client-side pages
// in a real browser; http fetches raw markup and is mostly useful against
// mirrors and in scripted environments.
func sessionFactory(cfg config.Config, cookies []auth.Cookie) (lot.SessionFactory, error) {
	switch cfg.Fetch.Mode {
	case config.FetchModeHeadless:
		hcfg := headless.Config{
			BaseURL:    cfg.BaseURL,
			Headless:   !cfg.Fetch.ShowBrowser,
			UserAgent:  cfg.Fetch.UserAgent,
			NavTimeout: cfg.NavTimeout(),
			Cookies:    cookies,
		}
		return func(ctx context.Context) (lot.Fetcher, error) {
			return headless.NewSession(ctx, hcfg)
		}, nil
	case config.FetchModeHTTP:
		ccfg := collyhttp.Config{
			BaseURL:   cfg.BaseURL,
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   cfg.WaitTimeout(),
			Cookies:   cookies,
		}
		return func(context.Context) (lot.Fetcher, error) {
			return collyhttp.NewSession(ccfg)
		}, nil
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", cfg.Fetch.Mode)
	}
}

func serveMetrics(port int, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics endpoint stopped", zap.Error(err))
	}
}
