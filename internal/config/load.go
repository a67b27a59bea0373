package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load,
// e.g. SLIDEGEN_LLM_RETRY_CYCLES.
const EnvPrefix = "SLIDEGEN"

// Load reads configuration from an optional config.yaml in the working
// directory and from environment variables. Environment variables take
// precedence over values from the file.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given config file instead of
// searching the working directory. A missing explicit file is an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of a loaded configuration.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.submit_rate", 2.0)
	v.SetDefault("server.submit_burst", 5)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.migrations_table", "schema_migrations")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("llm.default_provider", "auto")
	v.SetDefault("llm.retry_cycles", 3)
	v.SetDefault("llm.min_retry_delay_remote", "15s")
	v.SetDefault("llm.min_retry_delay_local", "1s")
	v.SetDefault("llm.cycle_pause", "1s")
	v.SetDefault("llm.poll_interval", "500ms")
	v.SetDefault("llm.default_temperature", 0.7)
	v.SetDefault("llm.request_timeout", "300s")
	v.SetDefault("llm.cancel_marker", "cancel_signal.flag")

	for _, p := range []string{"gemini", "openai", "anthropic", "ollama", "litellm"} {
		v.SetDefault("llm."+p+".api_keys", []string{})
		v.SetDefault("llm."+p+".models", []string{})
		v.SetDefault("llm."+p+".base_url", "")
		v.SetDefault("llm."+p+".timeout", "0s")
	}
	v.SetDefault("llm.ollama.base_url", "http://localhost:11444/v1")
	v.SetDefault("llm.ollama.timeout", "600s")
	v.SetDefault("llm.litellm.base_url", "http://localhost:4000")

	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.stuck_task_age_minutes", 30)
}
