package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "BGQUEUE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.secret", "")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "data/bgqueue.db")
	v.SetDefault("store.prefix", "bgqueue")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("lock.driver", "sqlite")
	v.SetDefault("lock.dir", "data/locks")
	v.SetDefault("lock.ttl", 90*time.Second)

	v.SetDefault("runner.batch_size", 50)
	v.SetDefault("runner.time_limit", 20*time.Second)
	v.SetDefault("runner.memory_limit", 0)
	v.SetDefault("runner.memory_threshold", 0.9)
	v.SetDefault("runner.max_attempts", 15)

	v.SetDefault("supervisor.interval", 5*time.Minute)

	v.SetDefault("dispatch.path", "/dispatch")
	v.SetDefault("dispatch.timeout", time.Second)
	v.SetDefault("dispatch.token_ttl", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from path, when given, and BGQUEUE_* environment
// variables. Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make([]string, 0, len(validationErrors))
			for _, fe := range validationErrors {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Queues))
	for _, q := range cfg.Queues {
		if seen[q.Name] {
			return fmt.Errorf("invalid config: queue %q declared twice", q.Name)
		}
		seen[q.Name] = true
	}
	if cfg.Lock.TTL <= cfg.Runner.TimeLimit {
		return fmt.Errorf("invalid config: lock.ttl (%s) must exceed runner.time_limit (%s)", cfg.Lock.TTL, cfg.Runner.TimeLimit)
	}
	if cfg.Lock.TTL >= cfg.Supervisor.Interval {
		return fmt.Errorf("invalid config: lock.ttl (%s) must be shorter than supervisor.interval (%s)", cfg.Lock.TTL, cfg.Supervisor.Interval)
	}
	return nil
}
