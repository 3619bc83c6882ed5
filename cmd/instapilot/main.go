// @title         Instapilot API
// @version       0.1.0
// @description   Instagram webhook intake, adaptive polling and reply automation

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"instapilot/internal/adapters/instagram"
	"instapilot/internal/core/ratebudget"
	"instapilot/internal/modkit"
	"instapilot/internal/modkit/httpkit"
	"instapilot/internal/platform/config"
	"instapilot/internal/platform/logger"
	"instapilot/internal/platform/metrics"
	phttp "instapilot/internal/platform/net/http"
	"instapilot/internal/platform/store"
	"instapilot/internal/platform/store/migrate"

	"instapilot/internal/services/api"
	pollmod "instapilot/internal/services/poller/module"
)

// lifecycle is a module with background work
type lifecycle interface {
	Start(ctx context.Context) error
	Stop()
}

func main() {
	fMode := flag.String("mode", "serve", "serve | poller | migrate")
	flag.Parse()

	root := config.New()
	apiCfg := root.Prefix("INSTAPILOT_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chURL := chCfg.MayString("DBURL", "")
	st, err := store.Open(ctx, store.Config{
		AppName: "instapilot-" + *fMode,
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 8)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled: chURL != "",
			URL:     chURL,
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if *fMode == "migrate" {
		applied, err := migrate.PG(ctx, st.PG)
		if err != nil {
			l.Fatal().Err(err).Msg("postgres migration failed")
		}
		l.Info().Strs("applied", applied).Msg("postgres schema up to date")
		if st.CH != nil {
			n, err := migrate.CH(ctx, st.CH)
			if err != nil {
				l.Fatal().Err(err).Msg("clickhouse migration failed")
			}
			l.Info().Int("statements", n).Msg("clickhouse schema up to date")
		}
		return
	}

	// one budget per process: polls and replies spend from the same hourly ceiling
	reg := metrics.Default()
	budget := ratebudget.New(root.Prefix("POLLER_").MayInt("HOURLY_CEILING", ratebudget.DefaultCeiling))
	graph := instagram.NewClient(instagram.OptionsFromConfig(root))

	srv := phttp.NewServer(apiCfg)

	var app lifecycle
	switch *fMode {
	case "serve":
		a, err := api.Mount(srv.Router(), api.Options{
			Config:         root,
			Store:          st,
			Logger:         l,
			Metrics:        reg,
			Budget:         budget,
			Graph:          graph,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
		})
		if err != nil {
			l.Panic().Err(err).Msg("api mount failed")
		}
		app = a
	case "poller":
		p, err := pollmod.New(modkit.Deps{Cfg: root, PG: st.PG, Log: *l}, modkit.WithPorts(pollmod.Needs{
			Budget: budget, Graph: graph, Metrics: reg,
		}))
		if err != nil {
			l.Panic().Err(err).Msg("poller init failed")
		}
		r := srv.Router()
		r.Handle("/metrics", reg.Handler())
		httpkit.MountAPIV1(r, append(httpkit.CommonStack(), reg.Instrument), p.MountRoutes)
		app = p
	default:
		l.Panic().Str("mode", *fMode).Msg("unknown -mode (expected: serve | poller | migrate)")
	}

	if err := app.Start(ctx); err != nil {
		l.Panic().Err(err).Msg("start failed")
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	select {
	case <-ctx.Done():
		l.Info().Msg("shutting down")
	case err := <-errc:
		if err != nil {
			l.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("http shutdown failed")
	}
	app.Stop()
}
