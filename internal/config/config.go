// Package config loads and validates application configuration.
package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage"   validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// StorageConfig contains file and cover storage settings.
type StorageConfig struct {
	BasePath   string `mapstructure:"base_path"   validate:"required"`
	CoversPath string `mapstructure:"covers_path" validate:"required"`
}

// SchedulerConfig contains background task scheduler settings.
type SchedulerConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"        validate:"required,gt=0"`
	MaxConcurrentTasks int           `mapstructure:"max_concurrent_tasks" validate:"required,gt=0"`
	TaskTimeout        time.Duration `mapstructure:"task_timeout"         validate:"required,gt=0"`
	BatchSize          int           `mapstructure:"batch_size"           validate:"required,gt=0"`
}
