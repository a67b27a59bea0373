package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	MaxUploadMB     int           `mapstructure:"max_upload_mb"    validate:"gt=0,lte=500"`
	SubmitRate      float64       `mapstructure:"submit_rate"      validate:"gt=0"`
	SubmitBurst     int           `mapstructure:"submit_burst"     validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL selects the in-memory job store.
type DatabaseConfig struct {
	URL             string `mapstructure:"url"              validate:"omitempty,url"`
	MigrationsTable string `mapstructure:"migrations_table" validate:"required"`
}

// AuthConfig contains API authentication settings. Authentication is
// disabled when JWTSecret is empty.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}

// Enabled reports whether bearer authentication is required.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// LLMConfig contains the retry engine settings and per-provider credentials.
type LLMConfig struct {
	DefaultProvider     string        `mapstructure:"default_provider"       validate:"required,oneof=auto gemini openai anthropic ollama litellm"`
	RetryCycles         int           `mapstructure:"retry_cycles"           validate:"gte=1,lte=50"`
	MinRetryDelayRemote time.Duration `mapstructure:"min_retry_delay_remote" validate:"gte=0"`
	MinRetryDelayLocal  time.Duration `mapstructure:"min_retry_delay_local"  validate:"gte=0"`
	CyclePause          time.Duration `mapstructure:"cycle_pause"            validate:"gte=0"`
	PollInterval        time.Duration `mapstructure:"poll_interval"          validate:"gte=0"`
	DefaultTemperature  float64       `mapstructure:"default_temperature"    validate:"gte=0,lte=2"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"        validate:"gt=0"`
	CancelMarker        string        `mapstructure:"cancel_marker"          validate:"required"`

	Gemini    ProviderSettings `mapstructure:"gemini"`
	OpenAI    ProviderSettings `mapstructure:"openai"`
	Anthropic ProviderSettings `mapstructure:"anthropic"`
	Ollama    ProviderSettings `mapstructure:"ollama"`
	LiteLLM   ProviderSettings `mapstructure:"litellm"`
}

// Provider returns the settings block for a provider name.
func (c LLMConfig) Provider(name string) ProviderSettings {
	switch name {
	case "gemini":
		return c.Gemini
	case "openai":
		return c.OpenAI
	case "anthropic":
		return c.Anthropic
	case "ollama":
		return c.Ollama
	case "litellm":
		return c.LiteLLM
	default:
		return ProviderSettings{}
	}
}

// ProviderSettings configures one backend. Empty Models selects the
// adapter's built-in priority list.
type ProviderSettings struct {
	APIKeys []string      `mapstructure:"api_keys"`
	Models  []string      `mapstructure:"models"`
	BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"gte=0"`
}

// TaskConfig contains background job processing settings.
type TaskConfig struct {
	WorkerCount         int `mapstructure:"worker_count"           validate:"gte=1,lte=64"`
	QueueSize           int `mapstructure:"queue_size"             validate:"gte=1"`
	StuckTaskAgeMinutes int `mapstructure:"stuck_task_age_minutes" validate:"gte=1"`
}
