package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hotel_agent/internal/adapters/channels"
	"hotel_agent/internal/adapters/feed"
	redisad "hotel_agent/internal/adapters/redis"
	"hotel_agent/internal/adapters/source"
	"hotel_agent/internal/adapters/synth"
	"hotel_agent/internal/app"
	"hotel_agent/internal/domain"
	"hotel_agent/internal/shared"
	mysqlrepo "hotel_agent/internal/storage/mysql"
	"hotel_agent/internal/storage/postgres"
)

// CachePrefix namespaces the agent's redis keys.
const CachePrefix = "hotel_agent:"

// Agent holds the assembled publishing pipeline.
type Agent struct {
	Config       shared.Config
	Bus          *feed.Bus
	Acquirer     *app.Acquirer
	Distributor  *app.Distributor
	Orchestrator *app.Orchestrator
	Queries      *app.QueryService

	closers []func() error
}

// Open connects the configured store and cache, then assembles the agent.
func Open(ctx context.Context, cfg shared.Config) (*Agent, error) {
	repo, closeRepo, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cache, closeCache := openCache(ctx, cfg)

	src, err := source.New(cfg)
	if err != nil {
		_ = closeRepo()
		return nil, err
	}

	a := Assemble(cfg, src, repo, cache)
	a.closers = append(a.closers, closeRepo)
	if closeCache != nil {
		a.closers = append(a.closers, closeCache)
	}
	return a, nil
}

// Assemble wires the pipeline around the given source, store and cache. A nil
// cache disables caching.
func Assemble(cfg shared.Config, src domain.CardSource, repo domain.PostRepository, cache domain.Cache) *Agent {
	bus := feed.NewBus()

	chs := []domain.Channel{channels.NewMobileApp(bus, feed.TopicMobilePosts)}
	chs = append(chs, channels.NewSocials(cfg.SocialPlatforms)...)

	sel := app.NewLocationSelector(cfg.Locations, cfg.Buckets, cfg.Location(), nil)
	acq := app.NewAcquirer(src, app.AcquirerOptions{Timeout: cfg.SourceTimeout, MaxResults: cfg.SourceMaxResults})
	dist := app.NewDistributor(chs, cfg.ChannelTimeout, cfg.ChannelParallelism)
	orch := app.NewOrchestrator(sel, acq, synth.NewTemplate(cfg.SocialPlatforms), repo, dist, cache)

	return &Agent{
		Config:       cfg,
		Bus:          bus,
		Acquirer:     acq,
		Distributor:  dist,
		Orchestrator: orch,
		Queries:      app.NewQueryService(repo, cache, cfg.CacheTTL),
		closers:      []func() error{bus.Close},
	}
}

// Shutdown waits for an in-flight cycle to finish, bounded by ctx, then
// closes the agent. The store and bus are closed either way.
func (a *Agent) Shutdown(ctx context.Context) error {
	if err := a.Orchestrator.WaitIdle(ctx); err != nil {
		log.Warn().Err(err).Msg("cycle still running at shutdown")
	}
	return a.Close()
}

// StopBudget is how long a cycle may need to finish once started: the live
// fetch and channel bounds plus a margin for synthesis and persistence.
func StopBudget(cfg shared.Config) time.Duration {
	return cfg.SourceTimeout + cfg.ChannelTimeout + 15*time.Second
}

// AddCloser registers fn to run on Close.
func (a *Agent) AddCloser(fn func() error) { a.closers = append(a.closers, fn) }

// Close releases everything Open acquired, newest first.
func (a *Agent) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg shared.Config) (domain.PostRepository, func() error, error) {
	switch cfg.StoreDriver {
	case "postgres":
		st, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("driver", "postgres").Msg("database connection ok")
		return st, st.Close, nil
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("sql.Open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("db.Ping: %w", err)
		}
		log.Info().Str("driver", "mysql").Msg("database connection ok")
		return mysqlrepo.New(db), db.Close, nil
	}
}

// openCache returns a nil cache when redis is not configured or unreachable;
// reads then go straight to the store.
func openCache(ctx context.Context, cfg shared.Config) (domain.Cache, func() error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	c := redisad.New(redisad.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB, Prefix: CachePrefix})
	if err := c.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; caching disabled")
		_ = c.Close()
		return nil, nil
	}
	return c, c.Close
}
