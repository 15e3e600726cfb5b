package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_agent/internal/adapters/feed"
	server "hotel_agent/internal/adapters/http_server"
	"hotel_agent/internal/adapters/observability"
	"hotel_agent/internal/app"
	"hotel_agent/internal/bootstrap"
	"hotel_agent/internal/shared"
	"hotel_agent/internal/supervisor"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("agent setup failed")
	}

	// http
	reg := observability.InitRegistry()
	srv := server.New(cfg.CORSOrigins)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Posts:             agent.Queries,
		Cycles:            agent.Orchestrator,
		Scrape:            agent.Acquirer,
		Chat:              app.NewChatService(nil),
		Feed:              feed.NewRelay(agent.Bus, feed.TopicMobilePosts, cfg.CORSOrigins),
		TriggersPerMinute: cfg.TriggerPerMinute,
		PostsLimit:        cfg.RecentPostsLimit,
	})

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.JobsShutdownTimeout = bootstrap.StopBudget(cfg)
	tree := supervisor.NewTree(log.Logger, treeCfg)
	tree.AddAPIService(supervisor.NewHTTPService("api", srv.HTTPServer(cfg.HTTPAddr), 10*time.Second))
	if ms := observability.NewMetricsServer(cfg.MetricsAddr, reg); ms != nil {
		tree.AddAPIService(supervisor.NewHTTPService("metrics", ms, 5*time.Second))
	}
	sched := app.NewScheduler(agent.Orchestrator, cfg.RunOnStart, app.DefaultTriggers(cfg.RegularEvery, cfg.VarietyEvery)...)
	tree.AddJobService(sched)

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("store", cfg.StoreDriver).
		Str("source", cfg.SourceMode).
		Dur("regular_every", cfg.RegularEvery).
		Dur("variety_every", cfg.VarietyEvery).
		Strs("channels", agent.Distributor.Channels()).
		Msg("agent starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("supervisor stopped")
	}

	// The scheduler may have been abandoned mid-cycle; do not pull the store
	// out from under it.
	sctx, cancel := context.WithTimeout(context.Background(), bootstrap.StopBudget(cfg))
	defer cancel()
	if err := agent.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("close failed")
	}
	log.Info().Msg("agent stopped")
}
