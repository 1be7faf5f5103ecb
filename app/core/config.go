package core

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/lapomascherj/atmo-core/pkg/config"
)

func MustLoadBaseConfig(path string) CoreConfig {
	if path == "" {
		return LoadBaseConfigFromENV()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	conf := &CoreConfig{}
	if err = toml.Unmarshal(raw, conf); err != nil {
		panic(err)
	}
	conf.applyEnvToggles()

	return *conf
}

func LoadBaseConfigFromENV() CoreConfig {
	// .env is optional, the real environment always wins
	godotenv.Load()

	var c CoreConfig
	c.FromENV()
	return c
}

type CoreConfig struct {
	Addr      string          `toml:"addr"`
	Log       Log             `toml:"log"`
	Postgres  PGConfig        `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	Chat      ChatConfig      `toml:"chat"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	AI        AIConfig        `toml:"ai"`
	Security  Security        `toml:"security"`
}

type ChatConfig struct {
	// Enabled turns the whole chat capability on or off.
	Enabled bool `toml:"enabled"`
	// HistoryLimit bounds the recent messages handed to the extractor.
	HistoryLimit int `toml:"history_limit"`
	// ExtractTimeout bounds the extractor call, in seconds.
	ExtractTimeout int `toml:"extract_timeout"`
	// SyncReconcile reconciles just-inserted entities inside submit; when
	// false they wait for the sweep.
	SyncReconcile bool `toml:"sync_reconcile"`
}

func (c ChatConfig) ExtractTimeoutOrDefault() int {
	if c.ExtractTimeout <= 0 {
		return 60
	}
	return c.ExtractTimeout
}

func (c ChatConfig) HistoryLimitOrDefault() int {
	if c.HistoryLimit <= 0 {
		return 20
	}
	return c.HistoryLimit
}

type ReconcileConfig struct {
	DryRun    bool   `toml:"dry_run"`
	BatchSize uint64 `toml:"batch_size"`
	// CronSpec schedules the recurring sweep, default every minute.
	CronSpec string `toml:"cron_spec"`
}

func (c ReconcileConfig) CronSpecOrDefault() string {
	if c.CronSpec == "" {
		return "@every 1m"
	}
	return c.CronSpec
}

type AIConfig struct {
	Token    string `toml:"token"`
	Endpoint string `toml:"endpoint"`
	Model    string `toml:"model"`
}

type Security struct {
	// PEM key pair for the JWT auth tokens.
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
	Appid          string `toml:"appid"`
}

func (c *CoreConfig) FromENV() {
	c.Addr = config.GetEnv("ATMO_API_SERVICE_ADDRESS", ":8080")
	c.Log.FromENV()
	c.Postgres.FromENV()
	c.Redis.FromENV()
	c.AI.FromENV()
	c.Security.FromENV()
	c.Chat.Enabled = config.GetEnvBool("ATMO_CHAT_ENABLED", true)
	c.Chat.SyncReconcile = config.GetEnvBool("ATMO_CHAT_SYNC_RECONCILE", true)
	c.Reconcile.DryRun = config.GetEnvBool("ATMO_RECONCILE_DRY_RUN", false)
}

// applyEnvToggles lets the two operational toggles override file config,
// so staging can force dry-run without editing the toml.
func (c *CoreConfig) applyEnvToggles() {
	if v := os.Getenv("ATMO_CHAT_ENABLED"); v != "" {
		c.Chat.Enabled = config.GetEnvBool("ATMO_CHAT_ENABLED", c.Chat.Enabled)
	}
	if v := os.Getenv("ATMO_RECONCILE_DRY_RUN"); v != "" {
		c.Reconcile.DryRun = config.GetEnvBool("ATMO_RECONCILE_DRY_RUN", c.Reconcile.DryRun)
	}
}

type PGConfig struct {
	DSN string `toml:"dsn"`
}

func (m *PGConfig) FromENV() {
	m.DSN = os.Getenv("ATMO_API_POSTGRESQL_DSN")
}

func (c PGConfig) FormatDSN() string {
	return c.DSN
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`

	KeyPrefix string `toml:"key_prefix"`
}

func (r *RedisConfig) FromENV() {
	r.Addr = os.Getenv("ATMO_REDIS_ADDR")
	r.Password = os.Getenv("ATMO_REDIS_PASSWORD")
	if dbStr := os.Getenv("ATMO_REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			r.DB = db
		}
	}
}

func (a *AIConfig) FromENV() {
	a.Token = os.Getenv("ATMO_AI_TOKEN")
	a.Endpoint = os.Getenv("ATMO_AI_ENDPOINT")
	a.Model = os.Getenv("ATMO_AI_MODEL")
}

func (s *Security) FromENV() {
	s.PublicKeyPath = os.Getenv("ATMO_JWT_PUBLIC_KEY")
	s.PrivateKeyPath = os.Getenv("ATMO_JWT_PRIVATE_KEY")
	s.Appid = config.GetEnv("ATMO_APPID", "atmo")
}

type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

func (l *Log) FromENV() {
	l.Level = os.Getenv("ATMO_API_LOG_LEVEL")
	l.Path = os.Getenv("ATMO_API_LOG_PATH")
}

func (l *Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
