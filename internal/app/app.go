package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/redcache/redcache"
	"github.com/redcache/redcache/internal/server"
	"github.com/redcache/redcache/internal/shared/config"
	"github.com/redcache/redcache/internal/shared/logger"
	"github.com/redcache/redcache/internal/shared/store"
	"github.com/redcache/redcache/internal/utils/metrics"
)

// App wires the cache engine, its Redis client and the HTTP facade
// together from configuration.
type App struct {
	cfg       *config.Config
	logger    *logger.Logger
	zapLogger *zap.Logger
	client    redis.UniversalClient
	manager   *redcache.Manager
	server    *server.Server
}

// LoadConfig loads application configuration.
func LoadConfig() (*config.Config, error) {
	return config.Load()
}

// New creates the application.
func New(cfg *config.Config) (*App, error) {
	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}
	log := logger.New(logCfg)

	// Initialize zap logger for the app layer
	zapLog, err := logger.NewZapLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init zap logger: %w", err)
	}

	client, err := store.NewRedisClient(context.Background(), &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	m := metrics.New("redcache")

	manager := redcache.NewManager(client, &redcache.ManagerConfig{
		DefaultTTL: cfg.Cache.DefaultTTL,
		TTLs:       cfg.Cache.TTLs,
		UsePrefix:  cfg.Cache.UsePrefix,
		KeyCodec:   redcache.StringCodec{},
		ValueCodec: redcache.JSONCodec{},
		PageSize:   cfg.Cache.PageSize,
		LockWait:   cfg.Cache.LockWait,
		Logger:     log,
		Metrics:    m,
	})

	srv := server.New(manager, client, log, m)

	zapLog.Info("application initialized",
		zap.String("redis", cfg.Redis.Address),
		zap.Duration("default_ttl", cfg.Cache.DefaultTTL),
		zap.Bool("use_prefix", cfg.Cache.UsePrefix),
	)

	return &App{
		cfg:       cfg,
		logger:    log,
		zapLogger: zapLog,
		client:    client,
		manager:   manager,
		server:    srv,
	}, nil
}

// Router returns the HTTP handler.
func (a *App) Router() http.Handler {
	return a.server.Router()
}

// Stop releases application resources.
func (a *App) Stop() {
	if err := store.Close(a.client); err != nil {
		a.zapLogger.Warn("close redis client", zap.Error(err))
	}
	_ = a.zapLogger.Sync()
}
