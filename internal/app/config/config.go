package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	StorageJSON     = "json"
	StorageBolt     = "bolt"
	StoragePostgres = "postgres"

	SessionMemory = "memory"
	SessionRedis  = "redis"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Session  SessionConfig
	Redis    RedisConfig
	Events   EventsConfig

	SecretKey  string `env:"APP_SECRET_KEY,default=ChangeMe"`
	BcryptCost int    `env:"BCRYPT_COST,default=10"`
	LogVerbose bool   `env:"APP_VERBOSE,default=0"`
	LogPretty  bool   `env:"APP_PRETTY,default=0"`
}

type ServerConfig struct {
	Listen       string        `env:"RUN_ADDRESS,default=localhost:3000"`
	TimeoutRead  time.Duration `env:"SERVER_TIMEOUT_READ,default=5s"`
	TimeoutWrite time.Duration `env:"SERVER_TIMEOUT_WRITE,default=10s"`
	TimeoutIdle  time.Duration `env:"SERVER_TIMEOUT_IDLE,default=1m"`
}

type StorageConfig struct {
	Driver   string `env:"STORAGE_DRIVER,default=json"`
	DataDir  string `env:"DATA_DIR,default=data"`
	BoltPath string `env:"BOLT_PATH,default=data/fintech.db"`
}

type DatabaseConfig struct {
	DSN string `env:"DATABASE_URI,default="`
}

type SessionConfig struct {
	Backend  string        `env:"SESSION_BACKEND,default=memory"`
	Lifetime time.Duration `env:"SESSION_LIFETIME,default=1h"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD,default="`
	DB       int    `env:"REDIS_DB,default=0"`
}

type EventsConfig struct {
	NatsURL string `env:"NATS_URL,default="`
}

// New config constructor
func New() Config {
	return Config{}
}

// Load config from environment and from .env file (if exists) and from command line args
func (cfg *Config) Load(args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".env load: %w", err)
	}

	if err := envdecode.StrictDecode(cfg); err != nil {
		return fmt.Errorf("env decode: %w", err)
	}

	name := "fintech"
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}

	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.StringVarP(&cfg.Server.Listen, "listen-addr", "a", cfg.Server.Listen, "Server address to listen on")
	flags.StringVarP(&cfg.Storage.Driver, "storage", "s", cfg.Storage.Driver, "Storage driver: json, bolt or postgres")
	flags.StringVar(&cfg.Storage.DataDir, "data-dir", cfg.Storage.DataDir, "Directory of the JSON data files")
	flags.StringVar(&cfg.Storage.BoltPath, "bolt-path", cfg.Storage.BoltPath, "Bolt database file")
	flags.StringVarP(&cfg.Database.DSN, "database-uri", "d", cfg.Database.DSN, "Database URI")
	flags.StringVar(&cfg.Session.Backend, "session", cfg.Session.Backend, "Session backend: memory or redis")
	flags.StringVar(&cfg.Events.NatsURL, "nats-url", cfg.Events.NatsURL, "NATS server URL for transfer events")
	flags.BoolVarP(&cfg.LogVerbose, "verbose", "v", cfg.LogVerbose, "Verbose output")
	flags.BoolVarP(&cfg.LogPretty, "pretty", "p", cfg.LogPretty, "Pretty output")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("flags parse: %w", err)
	}

	return cfg.validate()
}

func (cfg *Config) validate() error {
	switch cfg.Storage.Driver {
	case StorageJSON, StorageBolt:
	case StoragePostgres:
		if cfg.Database.DSN == "" {
			return errors.New("database uri is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	switch cfg.Session.Backend {
	case SessionMemory, SessionRedis:
	default:
		return fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	return nil
}
