package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QUIZ_REDIS_ADDR.
const EnvPrefix = "QUIZ"

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL  string `yaml:"ttl"`
		File string `yaml:"file"`
	} `yaml:"quiz"`
	Game struct {
		Countdown      string `yaml:"countdown"`
		BufferCapacity int    `yaml:"bufferCapacity" split_words:"true"`
		ArchiveTimeout string `yaml:"archiveTimeout" split_words:"true"`
	} `yaml:"game"`
	Archive struct {
		BadgerPath string `yaml:"badgerPath" split_words:"true"`
		RedisMax   int64  `yaml:"redisMax" split_words:"true"`
		Firestore  struct {
			ProjectID  string `yaml:"projectId" split_words:"true"`
			APIKey     string `yaml:"apiKey" split_words:"true"`
			Collection string `yaml:"collection"`
		} `yaml:"firestore"`
	} `yaml:"archive"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Redis.TTL = "10m"
	cfg.Quiz.TTL = "10m"
	cfg.Game.Countdown = "3s"
	cfg.Game.BufferCapacity = 50
	cfg.Game.ArchiveTimeout = "10s"
	cfg.Archive.RedisMax = 1000
	cfg.Archive.Firestore.Collection = "games"
	return cfg
}

// Load reads YAML config from path on top of the defaults. A missing file is not
// an error. Environment variables (and a .env file, if present) override the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays QUIZ_* environment variables, loading .env first when it exists.
func ApplyEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("env config: %w", err)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func (c Config) RedisTTL() time.Duration       { return TTLDuration(c.Redis.TTL, 10*time.Minute) }
func (c Config) QuizTTL() time.Duration        { return TTLDuration(c.Quiz.TTL, 10*time.Minute) }
func (c Config) Countdown() time.Duration      { return TTLDuration(c.Game.Countdown, 3*time.Second) }
func (c Config) ArchiveTimeout() time.Duration { return TTLDuration(c.Game.ArchiveTimeout, 10*time.Second) }
