// Package config loads armlab settings: built-in defaults, then an optional
// YAML file, then ARMLAB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/armtemiy/armlab/internal/logging"
	"github.com/armtemiy/armlab/pkg/persistence/middleware"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. ARMLAB_HTTP_ADDR.
const EnvPrefix = "ARMLAB_"

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	AdminIDs []string       `mapstructure:"admin_ids" yaml:"admin_ids"`
	Stars    StarsConfig    `mapstructure:"stars" yaml:"stars"`
	Payment  PaymentConfig  `mapstructure:"payment" yaml:"payment"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	SQL      SQLConfig      `mapstructure:"sql" yaml:"sql"`
	Tree     TreeConfig     `mapstructure:"tree" yaml:"tree"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	AllowAnonymous  bool          `mapstructure:"allow_anonymous" yaml:"allow_anonymous"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text | json
}

type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token" yaml:"bot_token"`
	ProviderToken  string        `mapstructure:"provider_token" yaml:"provider_token"`
	APIURL         string        `mapstructure:"api_url" yaml:"api_url"`
	InitDataMaxAge time.Duration `mapstructure:"init_data_max_age" yaml:"init_data_max_age"`
	Poll           bool          `mapstructure:"poll" yaml:"poll"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
}

type StarsConfig struct {
	ItemSlug string `mapstructure:"item_slug" yaml:"item_slug"`
	Price    int    `mapstructure:"price" yaml:"price"`
}

type PaymentConfig struct {
	InvoiceTimeout time.Duration `mapstructure:"invoice_timeout" yaml:"invoice_timeout"`
	// ClaimTTL is how long a client-reported payment unlocks premium content
	// before the bot confirms it.
	ClaimTTL time.Duration `mapstructure:"claim_ttl" yaml:"claim_ttl"`
}

// StorageConfig selects where wizard sessions live.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // memory | redis

	// EncryptionKey is a base64 AES-256 key; when set, session states are
	// sealed before they reach the driver.
	EncryptionKey string   `mapstructure:"encryption_key" yaml:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	LockTTL  time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

// SQLConfig points at the sqlite database holding users, results,
// purchases and the tree override. An empty DSN keeps them in memory.
type SQLConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type TreeConfig struct {
	File   string `mapstructure:"file" yaml:"file"`
	Strict bool   `mapstructure:"strict" yaml:"strict"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Telegram: TelegramConfig{
			InitDataMaxAge: 24 * time.Hour,
			PollTimeout:    10 * time.Second,
		},
		Stars:   StarsConfig{ItemSlug: "premium-branch", Price: 1},
		Payment: PaymentConfig{InvoiceTimeout: 10 * time.Second, ClaimTTL: 15 * time.Minute},
		Storage: StorageConfig{Driver: "memory"},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Prefix:  "armlab:session:",
			TTL:     7 * 24 * time.Hour,
			LockTTL: 30 * time.Second,
		},
		SQL:  SQLConfig{DSN: "data/armlab.db"},
		Tree: TreeConfig{Strict: true},
	}
}

// envKeys lists the dotted keys that may be overridden from the environment.
var envKeys = []string{
	"http.addr", "http.allow_anonymous", "http.shutdown_timeout",
	"log.level", "log.format",
	"telegram.bot_token", "telegram.provider_token", "telegram.api_url",
	"telegram.init_data_max_age", "telegram.poll", "telegram.poll_timeout",
	"admin_ids",
	"stars.item_slug", "stars.price",
	"payment.invoice_timeout", "payment.claim_ttl",
	"storage.driver", "storage.encryption_key", "storage.fallback_keys",
	"redis.addr", "redis.password", "redis.db", "redis.prefix", "redis.ttl", "redis.lock_ttl",
	"sql.dsn",
	"tree.file", "tree.strict",
}

// EnvName returns the environment variable that overrides a dotted key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	raw := make(map[string]any)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = make(map[string]any)
		}
	}

	for _, key := range envKeys {
		if v, ok := lookup(EnvName(key)); ok {
			setPath(raw, key, v)
		}
	}

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setPath(m map[string]any, key, value string) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[p] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	switch c.Storage.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if c.Storage.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Storage.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("storage.encryption_key: %w", err))
		}
	}
	for i, k := range c.Storage.FallbackKeys {
		if _, err := middleware.ParseKey(k); err != nil {
			errs = append(errs, fmt.Errorf("storage.fallback_keys[%d]: %w", i, err))
		}
	}
	if c.Stars.Price <= 0 {
		errs = append(errs, fmt.Errorf("stars.price: must be positive, got %d", c.Stars.Price))
	}
	if c.Telegram.Poll && c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram.poll: requires telegram.bot_token"))
	}
	return errors.Join(errs...)
}
