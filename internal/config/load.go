package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file. Returns a populated Config
// or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults keep the server bootable with only SHELFSYNC_DATABASE_URL set.
	v.SetDefault("server.port", 8080)
	// Empty default registers the key so AutomaticEnv can fill it in;
	// required validation still rejects a missing URL.
	v.SetDefault("database.url", "")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("storage.base_path", "data/files")
	v.SetDefault("storage.covers_path", "data/covers")
	v.SetDefault("scheduler.poll_interval", 5*time.Second)
	v.SetDefault("scheduler.max_concurrent_tasks", 4)
	v.SetDefault("scheduler.task_timeout", 5*time.Minute)
	v.SetDefault("scheduler.batch_size", 10)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; everything can come from env.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SHELFSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate runs struct validation over the loaded config and reports every
// failing field in a single error.
func validate(cfg *Config) error {
	v := validator.New()

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
	}

	return fmt.Errorf("config validation failed: %w", err)
}
