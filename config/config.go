// Package config loads the adviser configuration from file and
// environment. Every tunable of the pipeline is settable here without
// code changes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fairplaylabs/adviser/model"
)

// ModelsConfig carries per-role model parameters. Roles not configured
// fall back to the default model.
type ModelsConfig struct {
	// Provider is "openai" or "anthropic". Credentials come from the
	// provider's standard environment variables.
	Provider string `mapstructure:"provider"`

	Default     model.Config `mapstructure:"default"`
	Classifier  model.Config `mapstructure:"classifier"`
	Planner     model.Config `mapstructure:"planner"`
	Synthesizer model.Config `mapstructure:"synthesizer"`
	Quality     model.Config `mapstructure:"quality"`
	Escalate    model.Config `mapstructure:"escalate"`
	Summarizer  model.Config `mapstructure:"summarizer"`
}

// RetrievalConfig tunes hybrid retrieval and expansion.
type RetrievalConfig struct {
	K                   int     `mapstructure:"k"`
	VectorWeight        float64 `mapstructure:"vector_weight"`
	RRFK                int     `mapstructure:"rrf_k"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	ConfidenceTopN      int     `mapstructure:"confidence_top_n"`
	MaxReformulations   int     `mapstructure:"max_reformulations"`

	// IndexPath is the SQLite full-text index location.
	IndexPath string `mapstructure:"index_path"`
}

// QualityConfig tunes the review loop.
type QualityConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

// DeadlineConfig bounds runs at step boundaries.
type DeadlineConfig struct {
	Invoke time.Duration `mapstructure:"invoke"`
	Stream time.Duration `mapstructure:"stream"`
}

// BreakerConfig tunes the circuit breakers wrapped around every external
// dependency.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
}

// WebConfig configures the optional live web search fallback.
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Limit   int    `mapstructure:"limit"`
}

// StoreConfig selects the persistence backends.
type StoreConfig struct {
	// RedisAddr enables the Redis summary store when non-empty; otherwise
	// summaries stay in process memory.
	RedisAddr string `mapstructure:"redis_addr"`

	// CheckpointPath enables SQLite run checkpoints when non-empty.
	CheckpointPath string `mapstructure:"checkpoint_path"`

	// SummaryTTL bounds summary retention.
	SummaryTTL time.Duration `mapstructure:"summary_ttl"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Config is the full adviser configuration.
type Config struct {
	Models    ModelsConfig    `mapstructure:"models"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Quality   QualityConfig   `mapstructure:"quality"`
	Deadlines DeadlineConfig  `mapstructure:"deadlines"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Web       WebConfig       `mapstructure:"web"`
	Stores    StoreConfig     `mapstructure:"stores"`
	Log       LogConfig       `mapstructure:"log"`
}

// Load reads configuration from the given file (optional) layered under
// ADVISER_* environment variables, on top of the built-in defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ADVISER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("models.provider", "openai")
	v.SetDefault("models.default.name", "gpt-4o-mini")
	v.SetDefault("models.default.temperature", 0.2)
	v.SetDefault("models.default.max_tokens", 1024)
	v.SetDefault("models.synthesizer.name", "gpt-4o")
	v.SetDefault("models.synthesizer.max_tokens", 2048)

	v.SetDefault("retrieval.k", 5)
	v.SetDefault("retrieval.vector_weight", 0.5)
	v.SetDefault("retrieval.rrf_k", 60)
	v.SetDefault("retrieval.confidence_threshold", 0.6)
	v.SetDefault("retrieval.confidence_top_n", 3)
	v.SetDefault("retrieval.max_reformulations", 3)
	v.SetDefault("retrieval.index_path", "adviser.db")

	v.SetDefault("quality.max_retries", 2)

	v.SetDefault("deadlines.invoke", "60s")
	v.SetDefault("deadlines.stream", "120s")

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 2)
	v.SetDefault("breaker.reset_timeout", "30s")
	v.SetDefault("breaker.request_timeout", "20s")

	v.SetDefault("web.enabled", false)
	v.SetDefault("web.limit", 4)

	v.SetDefault("stores.summary_ttl", "24h")

	v.SetDefault("log.level", "info")
}

// Role returns the model parameters for a role, falling back to the
// default model for unset roles.
func (m ModelsConfig) Role(role model.Config) model.Config {
	if role.Name == "" {
		return m.Default
	}
	if role.MaxTokens == 0 {
		role.MaxTokens = m.Default.MaxTokens
	}
	return role
}
