package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	SourceKite  = "kite"
	SourceKafka = "kafka"
	SourceMongo = "mongo"

	StoreFile  = "file"
	StoreRedis = "redis"
)

// Config is the top-level struct that holds all configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Kite      KiteConfig      `yaml:"kite"`
	Stream    StreamConfig    `yaml:"stream"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Watchlist WatchlistConfig `yaml:"watchlist"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Registry  RegistryConfig  `yaml:"registry"`
	Auth      AuthConfig      `yaml:"auth"`
	Export    ExportConfig    `yaml:"export"`
	MongoDB   MongoDBConfig   `yaml:"mongodb"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the HTTP export endpoint settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           string        `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// KiteConfig holds the broker endpoints. Credentials come from the environment.
type KiteConfig struct {
	APIBaseURL  string `yaml:"api_base_url"`
	TickerURL   string `yaml:"ticker_url"`
	Mode        string `yaml:"mode"`
	APIKey      string `yaml:"-"`
	AccessToken string `yaml:"-"`
}

// StreamConfig selects the tick source and its reconnect policy.
// MaxRetries of 0 retries forever.
type StreamConfig struct {
	Source         string        `yaml:"source"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
}

// KafkaConfig holds the configuration for the Kafka tick relay.
type KafkaConfig struct {
	BrokerURL string `yaml:"broker_url"`
	Topic     string `yaml:"topic"`
	GroupID   string `yaml:"group_id"`
}

// WatchlistConfig points at the spreadsheet listing instruments to track.
type WatchlistConfig struct {
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet"`
}

// CatalogConfig selects where instrument names are resolved.
type CatalogConfig struct {
	Source     string `yaml:"source"`
	Collection string `yaml:"collection"`
}

type RegistryConfig struct {
	MergePartialTicks     bool `yaml:"merge_partial_ticks"`
	MaxTicksPerInstrument int  `yaml:"max_ticks_per_instrument"`
}

// AuthConfig selects where the daily access token is cached.
type AuthConfig struct {
	Store         string `yaml:"store"`
	TokenFile     string `yaml:"token_file"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisKey      string `yaml:"redis_key"`
	RedisPassword string `yaml:"-"`
}

type ExportConfig struct {
	Timezone  string `yaml:"timezone"`
	SheetName string `yaml:"sheet_name"`
}

type MongoDBConfig struct {
	URL          string `yaml:"-"`
	DatabaseName string `yaml:"database_name"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used for any key the file leaves out.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: "5000", RequestTimeout: 5 * time.Second},
		Kite: KiteConfig{
			APIBaseURL: "https://api.kite.trade",
			TickerURL:  "wss://ws.kite.trade",
			Mode:       "full",
		},
		Stream: StreamConfig{
			Source:         SourceKite,
			MaxRetries:     50,
			InitialBackoff: time.Second,
			MaxBackoff:     60 * time.Second,
			ReadTimeout:    10 * time.Second,
		},
		Kafka:     KafkaConfig{BrokerURL: "localhost:9092", Topic: "kite-ticks", GroupID: "live-tick-excel"},
		Watchlist: WatchlistConfig{Path: "instruments_to_track.xlsx", Sheet: "Symbols"},
		Catalog:   CatalogConfig{Source: SourceKite, Collection: "instruments"},
		Registry:  RegistryConfig{MaxTicksPerInstrument: 1},
		Auth:      AuthConfig{Store: StoreFile, TokenFile: "token.yml", RedisAddr: "localhost:6379", RedisKey: "kite:access_token"},
		Export:    ExportConfig{Timezone: "Local", SheetName: "live_prices"},
		MongoDB:   MongoDBConfig{DatabaseName: "kite"},
		Log:       LogConfig{Level: "info"},
	}
}

// LoadConfig reads the configuration file from the given path on top of
// Default, then fills secrets from the environment (and a .env file when
// present).
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}

	// A missing .env is fine; the variables may already be set.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Kite.APIKey = os.Getenv("KITE_API_KEY")
	c.Kite.AccessToken = os.Getenv("KITE_ACCESS_TOKEN")
	c.MongoDB.URL = os.Getenv("MONGO_URL")
	c.Auth.RedisPassword = os.Getenv("REDIS_PASSWORD")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("empty server port")
	}
	if c.Registry.MaxTicksPerInstrument != 1 {
		return fmt.Errorf("registry.max_ticks_per_instrument=%d: only 1 is supported",
			c.Registry.MaxTicksPerInstrument)
	}
	switch c.Stream.Source {
	case SourceKite:
		if c.Kite.APIKey == "" {
			return fmt.Errorf("stream source kite needs KITE_API_KEY")
		}
	case SourceKafka:
		if c.Kafka.BrokerURL == "" || c.Kafka.Topic == "" {
			return fmt.Errorf("stream source kafka needs kafka.broker_url and kafka.topic")
		}
	default:
		return fmt.Errorf("unknown stream source %q", c.Stream.Source)
	}
	switch c.Kite.Mode {
	case "ltp", "quote", "full":
	default:
		return fmt.Errorf("unknown kite mode %q", c.Kite.Mode)
	}
	if c.Stream.MaxRetries < 0 {
		return fmt.Errorf("stream.max_retries must not be negative")
	}
	if c.Stream.InitialBackoff <= 0 || c.Stream.MaxBackoff <= 0 {
		return fmt.Errorf("stream.initial_backoff and stream.max_backoff must be positive")
	}
	if c.Stream.InitialBackoff > c.Stream.MaxBackoff {
		return fmt.Errorf("stream.initial_backoff %s exceeds stream.max_backoff %s",
			c.Stream.InitialBackoff, c.Stream.MaxBackoff)
	}
	switch c.Catalog.Source {
	case SourceKite:
		if c.Kite.APIKey == "" {
			return fmt.Errorf("catalog source kite needs KITE_API_KEY")
		}
	case SourceMongo:
		if c.MongoDB.URL == "" {
			return fmt.Errorf("catalog source mongo needs MONGO_URL")
		}
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	switch c.Auth.Store {
	case StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown auth store %q", c.Auth.Store)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves export.timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Export.Timezone == "" || c.Export.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Export.Timezone)
	if err != nil {
		return nil, fmt.Errorf("export.timezone %q: %w", c.Export.Timezone, err)
	}
	return loc, nil
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}
