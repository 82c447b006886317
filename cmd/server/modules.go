package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/fitfusion/admin-console/internal/config"
	"github.com/fitfusion/admin-console/internal/database"
	"github.com/fitfusion/admin-console/internal/handler"
	"github.com/fitfusion/admin-console/internal/identity"
	"github.com/fitfusion/admin-console/internal/middleware"
	"github.com/fitfusion/admin-console/internal/queue"
	"github.com/fitfusion/admin-console/internal/repository"
	"github.com/fitfusion/admin-console/internal/router"
	"github.com/fitfusion/admin-console/internal/service"
	"github.com/fitfusion/admin-console/internal/store"
	"github.com/fitfusion/admin-console/internal/utils"
)

var logger = log.New("console")

var configModule = fx.Provide(
	config.Load,
	config.LoadStoreConfig,
	config.LoadPushConfig,
	config.LoadRateLimitConfig,
)

var storageModule = fx.Provide(provideRedis, provideStore)

var identityModule = fx.Provide(provideCredentialStore, provideHasher, provideIdentity)

var consoleModule = fx.Provide(
	providePublisher,
	provideOrchestrator,
	provideSessions,
	service.NewAuth,
)

var httpModule = fx.Provide(provideEcho)

// provideRedis connects when Redis is needed by the store; otherwise it tries
// once for the login limiter and gives up quietly.
func provideRedis(lc fx.Lifecycle, sc config.StoreConfig) (*redis.Client, error) {
	rdb, err := config.NewRedisClient(context.Background())
	if err != nil {
		if sc.Backend == "redis" {
			return nil, errors.Wrap(err, "redis")
		}
		logger.Warnf("redis unavailable, login rate limit disabled: %v", err)
		return nil, nil
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return rdb.Close() }})
	return rdb, nil
}

func provideStore(sc config.StoreConfig, rdb *redis.Client) (store.Store, error) {
	switch sc.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		return store.NewRedisStore(rdb, sc.Prefix), nil
	}
	return nil, errors.Errorf("unknown STORE_BACKEND %q", sc.Backend)
}

func provideCredentialStore(lc fx.Lifecycle, cfg config.Config) (repository.CredentialStore, error) {
	if cfg.IdentityBackend != config.IdentityMySQL {
		return repository.NewMemoryCredentialRepo(), nil
	}
	db, err := database.Open(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "mysql")
	}
	repo := repository.NewCredentialRepo(db)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return repo.EnsureSchema(ctx) },
		OnStop:  func(context.Context) error { return db.Close() },
	})
	return repo, nil
}

func provideHasher(cfg config.Config) utils.Hasher {
	return utils.NewBcryptHasher(cfg.BcryptCost)
}

func provideIdentity(cfg config.Config, repo repository.CredentialStore, h utils.Hasher) identity.Provider {
	return identity.NewLocal(repo, h, cfg.JWTSecret, cfg.SessionTTLMin)
}

func providePublisher(pc config.PushConfig) service.Publisher {
	if !pc.Enabled {
		return service.NopPublisher{}
	}
	return service.NewAMQPPublisher(pc.URL, pc.Queue)
}

func provideOrchestrator(cfg config.Config, s store.Store, idp identity.Provider, h utils.Hasher, pub service.Publisher) *service.Orchestrator {
	o := service.NewOrchestrator(s, idp, h, pub)
	loc := cfg.Location()
	o.SetClock(func() time.Time { return time.Now().In(loc) })
	return o
}

func provideSessions(lc fx.Lifecycle, cfg config.Config, s store.Store, o *service.Orchestrator) *service.Sessions {
	sessions := service.NewSessions(s, o, cfg.NoticeTTL)
	sessions.SetTokenCheck(func(token string) (time.Time, bool) {
		exp, err := utils.SessionExpiry(cfg.JWTSecret, token)
		return exp, err == nil
	})
	sessions.SetIdleTTL(time.Duration(cfg.SessionTTLMin) * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go sessions.Run(ctx, time.Minute)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			sessions.CloseAll()
			return nil
		},
	})
	return sessions
}

func provideEcho(cfg config.Config, rl config.RateLimitConfig, rdb *redis.Client, s store.Store,
	auth *service.Auth, sessions *service.Sessions, o *service.Orchestrator) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.INFO)
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(middleware.NewGate(cfg.LoginPath).Middleware(cfg.SessionCookie))

	router.RegisterRoutes(e, s)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, auth, sessions), middleware.NewTokenBucket(rl, rdb))
	router.RegisterScreens(e, handler.NewScreenHandler(sessions, o.Now))
	return e
}

// bootstrapAdmin creates the first admin when BOOTSTRAP_ADMIN_EMAIL is set
// and no admin exists yet.
func bootstrapAdmin(lc fx.Lifecycle, cfg config.Config, auth *service.Auth) {
	if cfg.BootstrapEmail == "" {
		return
	}
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		created, err := auth.Bootstrap(ctx, cfg.BootstrapName, cfg.BootstrapEmail, cfg.BootstrapSecret)
		if err != nil {
			return errors.Wrap(err, "bootstrap admin")
		}
		if created {
			logger.Infof("bootstrap admin %s created", cfg.BootstrapEmail)
		}
		return nil
	}})
}

func startPushConsumer(lc fx.Lifecycle, pc config.PushConfig) {
	if !pc.Enabled {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := queue.StartPushConsumer(ctx, pc.URL, pc.Queue, pc.LogPath); err != nil && !errors.Is(err, context.Canceled) {
					logger.Errorf("push consumer stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, cfg config.Config, e *echo.Echo) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			addr := ":" + cfg.Port
			logger.Infof("listening on %s (env=%s)", addr, cfg.Env)
			go func() {
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatalf("server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}
