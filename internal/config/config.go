package config

import "time"

// Config holds all bgqueue configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Lock       LockConfig       `mapstructure:"lock"`
	Runner     RunnerConfig     `mapstructure:"runner"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Queues     []QueueConfig    `mapstructure:"queues" validate:"dive"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
	// BaseURL is where the dispatcher reaches this process. Empty means
	// invocations run in process.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	Secret  string `mapstructure:"secret" validate:"required,min=32"`
}

type StoreConfig struct {
	Driver     string `mapstructure:"driver" validate:"required,oneof=sqlite redis"`
	SQLitePath string `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
	Prefix     string `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

type LockConfig struct {
	Driver string        `mapstructure:"driver" validate:"required,oneof=redis file sqlite"`
	Dir    string        `mapstructure:"dir" validate:"required_if=Driver file"`
	TTL    time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

type RunnerConfig struct {
	BatchSize       int           `mapstructure:"batch_size" validate:"gt=0"`
	TimeLimit       time.Duration `mapstructure:"time_limit" validate:"gt=0"`
	MemoryLimit     uint64        `mapstructure:"memory_limit"`
	MemoryThreshold float64       `mapstructure:"memory_threshold" validate:"gt=0,lte=1"`
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"gt=0"`
}

type SupervisorConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}

type DispatchConfig struct {
	Path     string        `mapstructure:"path" validate:"required,startswith=/"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	TokenTTL time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
}

type QueueConfig struct {
	Name            string `mapstructure:"name" validate:"required"`
	Kind            string `mapstructure:"kind" validate:"required,oneof=media image gallery metadata"`
	MaxAttempts     int    `mapstructure:"max_attempts" validate:"gte=0"`
	BatchSize       int    `mapstructure:"batch_size" validate:"gte=0"`
	Endpoint        string `mapstructure:"endpoint" validate:"required,url"`
	FailureEndpoint string `mapstructure:"failure_endpoint" validate:"omitempty,url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}
