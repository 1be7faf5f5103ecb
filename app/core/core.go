package core

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lapomascherj/atmo-core/app/store"
	"github.com/lapomascherj/atmo-core/app/store/sqlstore"
	"github.com/lapomascherj/atmo-core/pkg/extractor"
	"github.com/lapomascherj/atmo-core/pkg/utils"
)

type Core struct {
	cfg CoreConfig

	stores    store.Provider
	extractor extractor.Extractor
	redis     redis.UniversalClient

	httpClient *http.Client
	httpEngine *gin.Engine

	metrics *Metrics

	jwtPublicKey  []byte
	jwtPrivateKey []byte

	// deferred reconcile producer, attached by the process host
	reconcileEnqueue func(ctx context.Context, entityIDs []string) error
}

func MustSetupCore(cfg CoreConfig) *Core {
	{
		var writer io.Writer = os.Stdout
		if cfg.Log.Path != "" {
			writer = &lumberjack.Logger{
				Filename:   cfg.Log.Path,
				MaxSize:    500, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
		}
		l := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: cfg.Log.SlogLevel(),
		}))
		slog.SetDefault(l)
	}

	utils.SetupIDWorker(1)

	core := &Core{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Second * 3},
		metrics:    NewMetrics("atmo", "core"),
		httpEngine: gin.New(),
	}

	provider := sqlstore.MustSetup(cfg.Postgres)()
	if err := provider.Install(); err != nil {
		panic(err)
	}
	core.stores = provider

	core.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	core.extractor = extractor.New(cfg.AI.Token, cfg.AI.Endpoint, cfg.AI.Model)

	if cfg.Security.PublicKeyPath != "" {
		raw, err := os.ReadFile(cfg.Security.PublicKeyPath)
		if err != nil {
			panic(err)
		}
		core.jwtPublicKey = raw
	}
	if cfg.Security.PrivateKeyPath != "" {
		raw, err := os.ReadFile(cfg.Security.PrivateKeyPath)
		if err != nil {
			panic(err)
		}
		core.jwtPrivateKey = raw
	}

	return core
}

// New wires a core from explicit dependencies. Used by tests and by
// embedders that bring their own store or extractor.
func New(cfg CoreConfig, provider store.Provider, ext extractor.Extractor) *Core {
	return &Core{
		cfg:        cfg,
		stores:     provider,
		extractor:  ext,
		httpClient: &http.Client{Timeout: time.Second * 3},
		httpEngine: gin.New(),
	}
}

func (c *Core) Cfg() CoreConfig {
	return c.cfg
}

func (c *Core) Store() store.Provider {
	return c.stores
}

func (c *Core) Extractor() extractor.Extractor {
	return c.extractor
}

func (c *Core) HttpEngine() *gin.Engine {
	return c.httpEngine
}

func (c *Core) Redis() redis.UniversalClient {
	return c.redis
}

func (c *Core) Metrics() *Metrics {
	return c.metrics
}

func (c *Core) JWTPublicKey() []byte {
	return c.jwtPublicKey
}

func (c *Core) JWTPrivateKey() []byte {
	return c.jwtPrivateKey
}

func (c *Core) SetReconcileEnqueue(fn func(ctx context.Context, entityIDs []string) error) {
	c.reconcileEnqueue = fn
}

// EnqueueReconcile hands entity ids to the background worker. Returns false
// when no worker is attached; callers fall back to the cron sweep.
func (c *Core) EnqueueReconcile(ctx context.Context, entityIDs []string) (bool, error) {
	if c.reconcileEnqueue == nil {
		return false, nil
	}
	return true, c.reconcileEnqueue(ctx, entityIDs)
}

const lockTTL = time.Minute * 5

// TryLock takes a short redis lock, used to squash duplicate extractor
// requests for the same session. Held locks expire on their own so a
// crashed holder cannot wedge the session.
func (c *Core) TryLock(ctx context.Context, key string) (bool, error) {
	if c.redis == nil {
		return true, nil
	}
	key = c.cfg.Redis.KeyPrefix + ":lock:" + key
	return c.redis.SetNX(ctx, key, time.Now().Unix(), lockTTL).Result()
}

func (c *Core) Unlock(ctx context.Context, key string) error {
	if c.redis == nil {
		return nil
	}
	key = c.cfg.Redis.KeyPrefix + ":lock:" + key
	return c.redis.Del(ctx, key).Err()
}
