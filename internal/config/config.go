package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "ARTICLE_INBOX_CONFIG"
	databasePathEnv  = "DATABASE_PATH"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	llmAPIKeyEnv     = "LLM_API_KEY"
	llmModelEnv      = "LLM_MODEL"

	defaultFlushWindow = 2 * time.Second
	defaultRetention   = time.Minute
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	LLM        LLMConfig        `yaml:"llm"`
	Images     ImagesConfig     `yaml:"images"`
	HTTP       HTTPConfig       `yaml:"http"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Language   LanguageConfig   `yaml:"language"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the SQLite file location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TelegramConfig wires the bot transport.
type TelegramConfig struct {
	BotToken    string `yaml:"botToken"`
	PollTimeout int    `yaml:"pollTimeout"`
}

// LLMConfig defines how to contact the chat-completions API.
type LLMConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"apiKey"`
	MaxConcurrent int    `yaml:"maxConcurrent"`
}

// ImagesConfig describes the shared image store.
type ImagesConfig struct {
	Dir          string `yaml:"dir"`
	PublicPrefix string `yaml:"publicPrefix"`
}

// HTTPConfig configures the read-side API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// PipelineConfig carries the ingestion thresholds.
type PipelineConfig struct {
	MinTextLen int     `yaml:"minTextLen"`
	LinkRatio  float64 `yaml:"linkRatio"`
	TitleMax   int     `yaml:"titleMax"`
	DescMax    int     `yaml:"descMax"`
	TagCap     int     `yaml:"tagCap"`
}

// LanguageConfig drives detection and translation. MetaMarkers is the phrase
// list used to spot meta-responses in translation output; it is configuration
// data, not logic.
type LanguageConfig struct {
	Target      string   `yaml:"target"`
	MetaMarkers []string `yaml:"metaMarkers"`
}

// AggregatorConfig bounds media-group reassembly in time. Durations are
// strings ("2s", "1m") to keep the YAML readable.
type AggregatorConfig struct {
	Window    string `yaml:"window"`
	Retention string `yaml:"retention"`
}

// FlushWindow resolves the aggregation window string to a duration.
func (a AggregatorConfig) FlushWindow() time.Duration {
	if d, err := time.ParseDuration(a.Window); err == nil && d > 0 {
		return d
	}
	return defaultFlushWindow
}

// RetentionWindow resolves the completed-buffer retention string to a duration.
func (a AggregatorConfig) RetentionWindow() time.Duration {
	if d, err := time.ParseDuration(a.Retention); err == nil && d > 0 {
		return d
	}
	return defaultRetention
}

// Load reads YAML configuration from path (or the env-provided path when
// empty) and applies environment overrides.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.PollTimeout > 0 {
		base.Telegram.PollTimeout = override.Telegram.PollTimeout
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.MaxConcurrent > 0 {
		base.LLM.MaxConcurrent = override.LLM.MaxConcurrent
	}

	if override.Images.Dir != "" {
		base.Images.Dir = override.Images.Dir
	}
	if override.Images.PublicPrefix != "" {
		base.Images.PublicPrefix = override.Images.PublicPrefix
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}

	if override.Pipeline.MinTextLen > 0 {
		base.Pipeline.MinTextLen = override.Pipeline.MinTextLen
	}
	if override.Pipeline.LinkRatio > 0 {
		base.Pipeline.LinkRatio = override.Pipeline.LinkRatio
	}
	if override.Pipeline.TitleMax > 0 {
		base.Pipeline.TitleMax = override.Pipeline.TitleMax
	}
	if override.Pipeline.DescMax > 0 {
		base.Pipeline.DescMax = override.Pipeline.DescMax
	}
	if override.Pipeline.TagCap > 0 {
		base.Pipeline.TagCap = override.Pipeline.TagCap
	}

	if override.Language.Target != "" {
		base.Language.Target = override.Language.Target
	}
	if len(override.Language.MetaMarkers) > 0 {
		base.Language.MetaMarkers = override.Language.MetaMarkers
	}

	if override.Aggregator.Window != "" {
		base.Aggregator.Window = override.Aggregator.Window
	}
	if override.Aggregator.Retention != "" {
		base.Aggregator.Retention = override.Aggregator.Retention
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Path: "articles.db"},
		Telegram: TelegramConfig{PollTimeout: 30},
		LLM: LLMConfig{
			Endpoint:      "https://api.x.ai/v1/chat/completions",
			Model:         "grok-2-latest",
			MaxConcurrent: 5,
		},
		Images: ImagesConfig{Dir: "./public/images", PublicPrefix: "/images"},
		HTTP:   HTTPConfig{Addr: ":8080"},
		Pipeline: PipelineConfig{
			MinTextLen: 10,
			LinkRatio:  0.7,
			TitleMax:   100,
			DescMax:    200,
			TagCap:     10,
		},
		Language: LanguageConfig{
			Target: "ru",
			MetaMarkers: []string{
				"предоставьте",
				"вот перевод",
				"понял, перевожу",
				"перевод:",
				"here's the translation",
				"got it, translating",
				"translation:",
				"please provide",
			},
		},
		Aggregator: AggregatorConfig{Window: "2s", Retention: "1m"},
	}
}
