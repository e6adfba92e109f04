package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdeck/internal/bookmarks"
	"github.com/MrSnakeDoc/linkdeck/internal/config"
	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/feed"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/identity"
	"github.com/MrSnakeDoc/linkdeck/internal/index"
	"github.com/MrSnakeDoc/linkdeck/internal/livelist"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/redis"
	"github.com/MrSnakeDoc/linkdeck/internal/scheduler"
	"github.com/MrSnakeDoc/linkdeck/internal/store"
	redisstore "github.com/MrSnakeDoc/linkdeck/internal/store/redis"
	sqlstore "github.com/MrSnakeDoc/linkdeck/internal/store/sql"
	"github.com/MrSnakeDoc/linkdeck/internal/utils"
	"github.com/MrSnakeDoc/linkdeck/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	store       store.Store
	sessions    *index.MemoryIndex
	resyncer    *scheduler.Resyncer
	janitor     *scheduler.Janitor
	importer    *scheduler.Importer
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Redis carries the change feed and the revocation list, whatever the
	// record store is. Fail fast if unavailable.
	redisClient, err := redis.New(context.Background(), redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
		ClientName:     "linkdeck",
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	changeFeed := feed.New(redisClient, loggerClient.Named("feed"))

	recordStore, err := openStore(cfg, redisClient, changeFeed, loggerClient.Named("store"))
	if err != nil {
		loggerClient.Errorf("Failed to open %s store: %v", cfg.StoreBackend, err)
		utils.CloseLogged(redisClient, "redis", loggerClient)
		os.Exit(1)
	}
	loggerClient.Info("record store ready", logger.String("backend", recordStore.Backend()))

	// One live list per owner with an open view
	listLogger := loggerClient.Named("livelist")
	sessions := index.NewMemoryIndex(func(ownerID string) *livelist.Synchronizer {
		return livelist.New(recordStore, ownerID, listLogger)
	})

	svc := bookmarks.NewService(recordStore, sessions, loggerClient.Named("bookmarks"))
	svc.OnAdded = func(b domain.Bookmark) {
		loggerClient.Debug("bookmark added",
			logger.String("owner", b.OwnerID),
			logger.String("bookmark_id", b.ID))
	}

	revocations := identity.NewRevocations(redisClient)
	verifier := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, revocations)

	// Manual resync trigger (POST /reload)
	resyncTrigger := make(chan struct{}, 1)

	resyncer := scheduler.NewResyncer(sessions, loggerClient, cfg.ResyncInterval, resyncTrigger)
	janitor := scheduler.NewJanitor(sessions, loggerClient, cfg.JanitorInterval, cfg.IdleSessionTTL)

	var importer *scheduler.Importer
	if cfg.ImportFile != "" {
		loggerClient.Info("import file configured",
			logger.String("file", cfg.ImportFile),
			logger.String("owner", cfg.ImportOwner))
		importer = scheduler.NewImporter(cfg.ImportFile, cfg.ImportOwner, recordStore, loggerClient)
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxy,
		RequestTimeout: cfg.RequestTimeout,
		ReadyWait:      cfg.ReadyWait,
		RateBurst:      cfg.RateLimitBurst,
		RatePerMin:     cfg.RateLimitPerMin,
		RedisClient:    redisClient,
		Store:          recordStore,
		Sessions:       sessions,
		Bookmarks:      svc,
		Verifier:       verifier,
		Revocations:    revocations,
		ResyncTrigger:  resyncTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		store:       recordStore,
		sessions:    sessions,
		resyncer:    resyncer,
		janitor:     janitor,
		importer:    importer,
	}
}

func openStore(cfg *config.Config, client *goredis.Client, f *feed.Feed, log logger.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return redisstore.NewStore(client, f, log), nil
	case config.BackendPostgres, config.BackendSQLite:
		return sqlstore.Open(cfg.StoreBackend, cfg.DatabaseDSN, f, log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting LinkDeck v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String("linkdeck"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Seed bookmarks before serving; a bad file must not keep the server down
	if a.importer != nil {
		if _, err := a.importer.Import(ctx); err != nil {
			a.logger.Warn("homepage import failed", logger.Error(err))
		}
	}

	a.resyncer.Start(ctx)
	a.logger.Info("resyncer started",
		logger.Duration("interval", a.cfg.ResyncInterval))

	a.janitor.Start(ctx)
	a.logger.Info("janitor started",
		logger.Duration("interval", a.cfg.JanitorInterval),
		logger.Duration("idle_ttl", a.cfg.IdleSessionTTL))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.closeBackends()
		return err
	}

	a.resyncer.Stop()
	a.janitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.closeBackends()
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.closeBackends()
	a.logger.Info("✅ LinkDeck stopped cleanly")
	return nil
}

// closeBackends releases live lists first so no subscription outlives the store or redis.
func (a *App) closeBackends() {
	if n := a.sessions.CloseAll(); n > 0 {
		a.logger.Info("closed live lists", logger.Int("count", n))
	}

	utils.CloseLogged(a.store, a.store.Backend()+" store", a.logger)

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
	_ = a.logger.Sync()
}
