package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Prefix is prepended to every variable name, e.g. DOCAI_API_URL.
const Prefix = "DOCAI_"

// Storage backends for the session keys.
const (
	StorageBolt   = "bolt"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type Config struct {
	APIURL        string        `env:"API_URL,        default=http://localhost:8000"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT,   default=30s"`
	RateLimit     float64       `env:"RATE_LIMIT,     default=5"`
	CaptureToken  bool          `env:"CAPTURE_TOKEN,  default=true"`
	UploadWorkers int           `env:"UPLOAD_WORKERS, default=3"`
	LogLevel      string        `env:"LOG_LEVEL,      default=info"`
	LogPretty     bool          `env:"LOG_PRETTY,     default=true"`
	Storage       string        `env:"STORAGE,        default=bolt"`

	Bolt  BoltConfig
	Redis RedisConfig
	Mongo MongoConfig
	Agent AgentConfig
	Stub  StubConfig
}

type BoltConfig struct {
	// Path defaults to <user config dir>/docai/session.db.
	Path string `env:"BOLT_PATH"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,       default=0"`
	Prefix   string        `env:"REDIS_PREFIX,   default=docai:session"`
	TTL      time.Duration `env:"REDIS_TTL,      default=0s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=docai"`
}

type AgentConfig struct {
	Addr string `env:"AGENT_ADDR, default=127.0.0.1:8787"`
}

type StubConfig struct {
	Addr      string        `env:"STUB_ADDR,      default=:8000"`
	JWTSecret string        `env:"JWT_SECRET,     default=dev-secret"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,      default=24h"`
	Users     string        `env:"STUB_USERS,     default=memory"`
}

// Load reads a .env file when present, then the DOCAI_* environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith resolves configuration from an arbitrary lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(Prefix, l),
	}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}

	switch cfg.Storage {
	case StorageBolt, StorageRedis, StorageMongo, StorageMemory:
	default:
		return nil, fmt.Errorf("config: unknown storage backend %q", cfg.Storage)
	}
	switch cfg.Stub.Users {
	case StorageMemory, StorageMongo:
	default:
		return nil, fmt.Errorf("config: unknown stub user store %q", cfg.Stub.Users)
	}

	if cfg.Bolt.Path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.Bolt.Path = filepath.Join(dir, "docai", "session.db")
	}
	return &cfg, nil
}
