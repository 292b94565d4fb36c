package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Score backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Quiz struct {
		QuestionCount int    `yaml:"question_count"`
		TimeLimit     string `yaml:"time_limit"`
		Tick          string `yaml:"tick"`
		Retention     string `yaml:"retention"`
	} `yaml:"quiz"`
	Source struct {
		URL        string `yaml:"url"`
		Timeout    string `yaml:"timeout"`
		Category   int    `yaml:"category"`
		Difficulty string `yaml:"difficulty"`
	} `yaml:"source"`
	Score struct {
		Backend    string `yaml:"backend"`
		Key        string `yaml:"key"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"score"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Quiz.QuestionCount = 5
	cfg.Quiz.TimeLimit = "30s"
	cfg.Quiz.Tick = "1s"
	cfg.Quiz.Retention = "5m"
	cfg.Source.URL = "https://opentdb.com/api.php"
	cfg.Source.Timeout = "5s"
	cfg.Score.Backend = BackendSQLite
	cfg.Score.Key = "highScore"
	cfg.Score.SQLitePath = "quiz.db"
	cfg.Redis.TTL = "10m"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// .env is optional.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"PORT":          &c.Server.Port,
		"REDIS_ADDR":    &c.Redis.Addr,
		"POSTGRES_URL":  &c.Postgres.URL,
		"SCORE_BACKEND": &c.Score.Backend,
		"LOG_LEVEL":     &c.Log.Level,
		"OPENTDB_URL":   &c.Source.URL,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
	if v := os.Getenv("QUESTION_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Quiz.QuestionCount = n
		}
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Score.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("score backend redis requires redis.addr")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("score backend postgres requires postgres.url")
		}
	default:
		return fmt.Errorf("unknown score backend %q", c.Score.Backend)
	}
	if c.Quiz.QuestionCount <= 0 {
		return fmt.Errorf("quiz.question_count must be positive, got %d", c.Quiz.QuestionCount)
	}
	if c.TimeLimitSeconds() <= 0 {
		return fmt.Errorf("quiz.time_limit must be at least 1s, got %q", c.Quiz.TimeLimit)
	}
	if c.Score.Key == "" {
		return errors.New("score.key cannot be empty")
	}
	return nil
}

// TimeLimitSeconds is the per-question countdown in whole seconds.
func (c Config) TimeLimitSeconds() int {
	return int(TTLDuration(c.Quiz.TimeLimit, 30*time.Second) / time.Second)
}

// TickInterval is the wall time of one countdown second.
func (c Config) TickInterval() time.Duration {
	return TTLDuration(c.Quiz.Tick, time.Second)
}

// SessionRetention is how long a finished session stays readable.
func (c Config) SessionRetention() time.Duration {
	return TTLDuration(c.Quiz.Retention, 5*time.Minute)
}

// SessionIdleTimeout drops active sessions without player intents. It shares
// redis.ttl so the in-process entry and its Redis liveness key expire together.
func (c Config) SessionIdleTimeout() time.Duration {
	return TTLDuration(c.Redis.TTL, 10*time.Minute)
}

// FetchTimeout bounds one remote question fetch.
func (c Config) FetchTimeout() time.Duration {
	return TTLDuration(c.Source.Timeout, 5*time.Second)
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
