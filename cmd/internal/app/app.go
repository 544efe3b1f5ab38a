// Package app wires the bot runtime: config, logging, storage, the interactions endpoint, the
// gateway session and the background janitor.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/lucashicks1/cssebot/cmd/internal/bot"
	"github.com/lucashicks1/cssebot/cmd/internal/cache"
	"github.com/lucashicks1/cssebot/cmd/internal/codehost"
	"github.com/lucashicks1/cssebot/cmd/internal/discord"
	"github.com/lucashicks1/cssebot/cmd/internal/member"
	"github.com/lucashicks1/cssebot/cmd/internal/metrics"
	"github.com/lucashicks1/cssebot/cmd/internal/setup"
	"github.com/lucashicks1/cssebot/cmd/internal/sprint"
	"github.com/lucashicks1/cssebot/cmd/internal/studio"
)

// stores groups the persistence backends.
type stores struct {
	studios studio.Store
	members member.Store
	sprints sprint.Store
}

// App is the bot runtime. It owns the HTTP server, the gateway session and the pool lifecycle.
type App struct {
	cfg Config
	log Logger

	pool    *pgxpool.Pool
	metrics *metrics.Registry
	router  *discord.Router
	gateway *discord.Gateway
	bot     *bot.Bot
	code    *codehost.Host

	sweepers map[string]func() int
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	key, err := discord.ParsePublicKey(cfg.DiscordPublicKey)
	if err != nil {
		return nil, err
	}

	st, pool, err := newStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	reg := metrics.New()
	cacheOpts := func(name string) []cache.Option {
		return []cache.Option{cache.WithTTL(cfg.CacheTTL), cache.WithMetrics(reg.Cache(name))}
	}
	httpClient := &http.Client{Timeout: 15 * time.Second}

	guilds := studio.NewGuildCache(st.studios, cacheOpts("guild")...)
	rec, err := studio.NewReconciler(st.studios, guilds, studio.WithLogger(log), studio.WithObserver(reg))
	if err != nil {
		return nil, closeOnErr(pool, err)
	}

	members, err := member.NewDirectory(st.members, log, cacheOpts("member")...)
	if err != nil {
		return nil, closeOnErr(pool, err)
	}

	var (
		code      *codehost.Host
		checkRepo setup.RepoChecker
	)
	if cfg.GitHubOrg != "" {
		code, err = codehost.NewHost(codehost.NewGitHubAPI(httpClient, cfg.GitHubToken), cfg.GitHubOrg,
			cacheOpts("github"), codehost.WithLogger(log))
		if err != nil {
			return nil, closeOnErr(pool, err)
		}
		checkRepo = func(_ context.Context, name string) (bool, error) {
			_, ok, err := code.Repo(name)
			return ok, err
		}
	}

	flow, err := setup.New(rec, setup.Config{
		NumStudios: cfg.NumStudios,
		Org:        cfg.GitHubOrg,
		Timeout:    cfg.WizardTimeout,
		CheckRepo:  checkRepo,
		Logger:     log,
		Observer:   reg.Wizard("setup"),
	})
	if err != nil {
		return nil, closeOnErr(pool, err)
	}

	restOpts := []discord.RESTOption{}
	if cfg.DiscordAPIBase != "" {
		restOpts = append(restOpts, discord.WithAPIBase(cfg.DiscordAPIBase))
	}
	rest, err := discord.NewREST(httpClient, cfg.DiscordToken, cfg.DiscordAppID, restOpts...)
	if err != nil {
		return nil, closeOnErr(pool, err)
	}

	deps := bot.Deps{
		Studios:       rec,
		Setup:         flow,
		Members:       members,
		Sprints:       st.sprints,
		API:           rest,
		Course:        bot.Course{StudentRole: cfg.StudentRole, TutorRoles: cfg.TutorRoles, TeamPrefix: cfg.TeamPrefix},
		CommandGuilds: cfg.CommandGuilds,
		Cooldown:      cfg.Cooldown,
		Logger:        log,
	}
	if code != nil {
		deps.Code = code
	}
	b, err := bot.New(deps)
	if err != nil {
		return nil, closeOnErr(pool, err)
	}

	router, err := discord.NewRouter(key, discord.WithRouterLogger(log), discord.WithInteractionObserver(reg))
	if err != nil {
		return nil, closeOnErr(pool, err)
	}
	b.Register(router)

	var gw *discord.Gateway
	if cfg.GatewayEnabled {
		gw, err = discord.NewGateway(cfg.DiscordToken, discordgo.IntentsGuilds|discordgo.IntentsGuildMembers,
			rest.GatewayURL, b.OnEvent,
			discord.WithGatewayLogger(log), discord.WithEventObserver(reg))
		if err != nil {
			return nil, closeOnErr(pool, err)
		}
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		pool:    pool,
		metrics: reg,
		router:  router,
		gateway: gw,
		bot:     b,
		code:    code,
		sweepers: map[string]func() int{
			"guild_cache":  guilds.Sweep,
			"member_cache": members.Cache().Sweep,
			"setup":        flow.Sweep,
			"cooldown":     func() int { return b.Sweep(time.Now()) },
		},
	}
	if code != nil {
		a.sweepers["github_cache"] = code.Sweep
	}
	return a, nil
}

func closeOnErr(pool *pgxpool.Pool, err error) error {
	if pool != nil {
		pool.Close()
	}
	return err
}

// newStores decides between Postgres-backed persistence and the in-memory dev stores.
func newStores(ctx context.Context, cfg Config, log Logger) (stores, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return stores{
			studios: studio.NewInMemoryStore(),
			members: member.NewInMemoryStore(),
			sprints: sprint.NewInMemoryStore(),
		}, nil, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return stores{}, nil, err
	}
	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)

	// The app owns the pool; store Close is a no-op.
	studios, err := studio.NewPostgresStore(pool, studio.WithSchema(cfg.DBSchema))
	if err != nil {
		return stores{}, nil, closeOnErr(pool, err)
	}
	members, err := member.NewPostgresStore(pool, member.WithSchema(cfg.DBSchema))
	if err != nil {
		return stores{}, nil, closeOnErr(pool, err)
	}
	sprints, err := sprint.NewPostgresStore(pool, sprint.WithSchema(cfg.DBSchema))
	if err != nil {
		return stores{}, nil, closeOnErr(pool, err)
	}
	return stores{studios: studios, members: members, sprints: sprints}, pool, nil
}

// Handler returns the HTTP surface with middleware applied.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.pool, a.gateway, a.metrics, a.router)
	return WithRequestLogging(WithSecurityHeaders(mux), a.log)
}

// Run serves HTTP, holds the gateway session and sweeps caches until ctx is cancelled or a
// component fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.pool != nil, "gateway_enabled", a.gateway != nil)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	if a.gateway != nil {
		g.Go(func() error { return a.gateway.Run(gctx) })
	}
	g.Go(func() error {
		a.janitor(gctx)
		return nil
	})
	g.Go(func() error {
		a.warmUp(gctx)
		return nil
	})

	err := g.Wait()
	if a.pool != nil {
		a.pool.Close()
	}
	a.log.Info("server.stopped", "err", err)
	return err
}

// warmUp runs the one-off startup tasks. Failures are logged; the bot keeps serving.
func (a *App) warmUp(ctx context.Context) {
	if a.code != nil {
		n, err := a.code.Refresh(ctx)
		if err != nil {
			a.log.Warn("github.members.refresh.fail", "err", err)
		} else {
			a.log.Info("github.members.refreshed", "count", n)
		}
	}
	if a.cfg.SyncOnStart {
		n, err := a.bot.Sync(ctx)
		if err != nil {
			a.log.Error("discord.commands.sync.fail", "err", err)
			return
		}
		a.log.Info("discord.commands.synced", "count", n)
	}
}

// janitor evicts expired cache entries, sessions and cooldown keys on every tick.
func (a *App) janitor(ctx context.Context) {
	t := time.NewTicker(nonZeroDuration(a.cfg.SweepInterval, time.Minute))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.sweep()
		}
	}
}

func (a *App) sweep() map[string]int {
	out := make(map[string]int, len(a.sweepers))
	for name, fn := range a.sweepers {
		out[name] = fn()
	}
	a.log.Debug("janitor.sweep", "removed", out)
	return out
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
