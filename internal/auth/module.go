package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/nalonix/better-auth/internal/auth/dispatch"
	"github.com/nalonix/better-auth/internal/auth/event"
	"github.com/nalonix/better-auth/internal/auth/inbound"
	"github.com/nalonix/better-auth/internal/auth/plugin"
	"github.com/nalonix/better-auth/internal/auth/store"
	"github.com/nalonix/better-auth/internal/auth/usecase"
	"github.com/nalonix/better-auth/internal/pkg/pkgconfig"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
	"github.com/nalonix/better-auth/internal/pkg/pkgrouter"
	"github.com/nalonix/better-auth/internal/pkg/pkgroutine"
	"github.com/nalonix/better-auth/internal/pkg/pkguid"
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context

	// Plugins are appended after the first-party plugins, so they can
	// override any endpoint including the built-ins.
	Plugins []dispatch.Plugin
}

// New wires the auth module onto the shared router and returns a closer for
// the storage drivers it opened.
func New(dep Dependency) (func(context.Context) error, error) {
	secret := dep.Config.GetString("auth.secret")
	if secret == "" {
		return nil, pkgerror.NewServer(errors.New("auth.secret is required"))
	}

	stores, closer, err := buildStores(dep.Context, dep.Config)
	if err != nil {
		return nil, err
	}

	userID, err := pkguid.NewSnowflake()
	if err != nil {
		return nil, pkgerror.NewServer(err)
	}

	bus := event.NewBus(int(dep.Config.GetInt("auth.audit.buffer")))
	consumer := event.NewAuditConsumer(bus, event.LogRecorder{}, event.ConsumerConfig{
		Workers: int(dep.Config.GetInt("auth.audit.workers")),
	})
	consumer.Start()

	uc := usecase.New(usecase.Dependency{
		Users:         stores.users,
		Sessions:      stores.sessions,
		Verifications: stores.verifications,
		Runner:        dep.Goroutine,
		Trail:         bus,
		Token:         pkguid.NewToken(32),
		UserID:        userID,
		RootCtx:       dep.Context,
		SessionTTL:    dep.Config.GetDuration("auth.session.ttl"),
		ResetTTL:      dep.Config.GetDuration("auth.reset.ttl"),
		BcryptCost:    int(dep.Config.GetInt("auth.bcrypt_cost")),
	})

	builtins := inbound.Endpoints(uc, inbound.Config{
		CookieSecure: dep.Config.GetBool("auth.session.cookie_secure"),
	})

	plugins := make([]dispatch.Plugin, 0, 3+len(dep.Plugins))
	if dep.Config.GetBool("auth.bearer.enabled") {
		plugins = append(plugins, plugin.Bearer([]byte(secret), uc.SessionTTL()))
	}
	if dep.Config.GetBool("auth.rate_limit.enabled") {
		plugins = append(plugins, plugin.RateLimit(plugin.RateLimitConfig{
			RPS:   dep.Config.GetFloat("auth.rate_limit.rps"),
			Burst: int(dep.Config.GetInt("auth.rate_limit.burst")),
		}))
	}
	if dep.Config.GetBool("metrics.enabled") {
		plugins = append(plugins, plugin.Metrics(prometheus.DefaultRegisterer))
	}
	plugins = append(plugins, dep.Plugins...)

	basePath := dep.Config.GetString("auth.base_path")
	if basePath == "" {
		basePath = "/api/auth"
	}

	ambient := &dispatch.Ambient{
		BasePath: basePath,
		Values: map[string]any{
			"base_path":      basePath,
			"session_cookie": inbound.SessionCookie,
		},
	}

	table := dispatch.Assemble(ambient, builtins, plugins)
	dispatcher := dispatch.NewDispatcher(table, dispatch.WithAuditProbe(auditDeleteUser))
	classifier := dispatch.NewClassifier(slog.Default(), dep.Config.GetBool("auth.disable_log"))

	dispatch.BuildRouter(dep.Router, dispatcher, dispatch.CollectMiddlewares(ambient, plugins), dispatch.RouterConfig{
		BasePath:       basePath,
		Ambient:        ambient,
		Classifier:     classifier,
		TrustedOrigins: dep.Config.GetArray("auth.trusted_origins"),
	})

	return func(cctx context.Context) error {
		return errors.Join(consumer.Stop(cctx), closer(cctx))
	}, nil
}

// auditDeleteUser is the diagnostic probe for the account deletion
// operation. It only records that a destructive request arrived; the
// operation itself still runs afterwards.
func auditDeleteUser(ctx *dispatch.Context) (any, error) {
	slog.WarnContext(ctx.Context, "account deletion requested",
		"ip", ctx.Headers.Get("X-Forwarded-For"),
		"user_agent", ctx.Headers.Get("User-Agent"),
	)
	return nil, nil
}

type storeSet struct {
	users         usecase.UserStore
	sessions      usecase.SessionStore
	verifications usecase.VerificationStore
}

// buildStores selects the primary driver, optionally swaps session and
// verification storage onto Redis, and optionally fronts sessions with the
// in-process cache.
func buildStores(ctx context.Context, cfg pkgconfig.Config) (storeSet, func(context.Context) error, error) {
	var closers []func(context.Context) error
	closer := func(cctx context.Context) error {
		var errs []error
		for _, fn := range closers {
			errs = append(errs, fn(cctx))
		}
		return errors.Join(errs...)
	}

	var set storeSet

	switch driver := cfg.GetString("auth.store.driver"); driver {
	case "", "memory":
		memory := store.NewMemory()
		set = storeSet{users: memory, sessions: memory, verifications: memory}

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.GetString("auth.postgres.dsn"))
		if err != nil {
			return storeSet{}, nil, pkgerror.NewServer(err)
		}
		pg := store.NewPostgres(pool)
		closers = append(closers, func(context.Context) error { return pg.Close() })
		set = storeSet{users: pg, sessions: pg, verifications: pg}

	default:
		return storeSet{}, nil, pkgerror.NewServer(errors.New("unknown auth.store.driver: " + driver))
	}

	if cfg.GetBool("auth.redis.enabled") {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.GetString("auth.redis.address"),
			Password: cfg.GetString("auth.redis.password"),
			DB:       int(cfg.GetInt("auth.redis.db")),
		})
		rs := store.NewRedis(client)
		closers = append(closers, func(context.Context) error { return rs.Close() })
		set.sessions = rs
		set.verifications = rs
	}

	if cfg.GetBool("auth.store.cache") {
		cached, err := store.NewSessionCache(set.sessions, cfg.GetInt("auth.store.cache_size"))
		if err != nil {
			_ = closer(ctx)
			return storeSet{}, nil, pkgerror.NewServer(err)
		}
		closers = append(closers, func(context.Context) error { return cached.Close() })
		set.sessions = cached
	}

	return set, closer, nil
}
