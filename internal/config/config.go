// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. The pipeline treats it as
// immutable once a run starts.
type Config struct {
	Book      BookConfig      `yaml:"book" mapstructure:"book"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// BookConfig configures generation behavior for a run.
type BookConfig struct {
	OutDir         string `yaml:"out_dir" mapstructure:"out_dir"`
	PagesTotal     int    `yaml:"pages_total" mapstructure:"pages_total"`
	WordsPerPage   int    `yaml:"words_per_page" mapstructure:"words_per_page"`
	MaxWorkers     int    `yaml:"max_workers" mapstructure:"max_workers"`
	SampleChapters int    `yaml:"sample_chapters" mapstructure:"sample_chapters"`
	Resume         bool   `yaml:"resume" mapstructure:"resume"`
	DryRun         bool   `yaml:"dry_run" mapstructure:"dry_run"`
	StrictJSON     bool   `yaml:"strict_json" mapstructure:"strict_json"`

	// MinChapters pads a thin TOC up to this many entries; DefaultChapters is
	// the size of a fully synthesized TOC. DefaultChapterPages seeds page
	// counts before rebalancing.
	MinChapters         int `yaml:"min_chapters" mapstructure:"min_chapters"`
	DefaultChapters     int `yaml:"default_chapters" mapstructure:"default_chapters"`
	DefaultChapterPages int `yaml:"default_chapter_pages" mapstructure:"default_chapter_pages"`

	// PromptsFile optionally overrides the built-in prompt templates.
	PromptsFile string `yaml:"prompts_file" mapstructure:"prompts_file"`
}

// AnthropicConfig holds settings for the structured-stage backend.
type AnthropicConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// OpenAIConfig holds settings for the heavy free-text backend.
type OpenAIConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	Model   string  `yaml:"model" mapstructure:"model"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// RetryConfig configures retry behavior for generation calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// StoreConfig configures the run-history ledger.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and BOOKGEN_* environment
// variables, applying defaults for everything else.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BOOKGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("book.out_dir", "./book_out")
	v.SetDefault("book.pages_total", 200)
	v.SetDefault("book.words_per_page", 350)
	v.SetDefault("book.max_workers", 4)
	v.SetDefault("book.sample_chapters", 0)
	v.SetDefault("book.min_chapters", 1)
	v.SetDefault("book.default_chapters", 10)
	v.SetDefault("book.default_chapter_pages", 10)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.rps", 2.0)
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.rps", 2.0)
	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 8000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("store.path", "bookgen.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
