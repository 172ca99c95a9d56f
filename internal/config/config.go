package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Whisper   WhisperConfig   `yaml:"whisper" mapstructure:"whisper"`
	VPIC      VPICConfig      `yaml:"vpic" mapstructure:"vpic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Intake    IntakeConfig    `yaml:"intake" mapstructure:"intake"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string       `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, dynamo
	DatabaseURL string       `yaml:"database_url" mapstructure:"database_url"`
	Dynamo      DynamoConfig `yaml:"dynamo" mapstructure:"dynamo"`
}

// DynamoConfig holds DynamoDB backend settings.
type DynamoConfig struct {
	Region      string `yaml:"region" mapstructure:"region"`
	TablePrefix string `yaml:"table_prefix" mapstructure:"table_prefix"`
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"` // local development only
}

// AnthropicConfig holds Anthropic API settings for vision extraction and
// summary synthesis.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	VisionModel  string `yaml:"vision_model" mapstructure:"vision_model"`
	SummaryModel string `yaml:"summary_model" mapstructure:"summary_model"`
	MaxTokens    int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// WhisperConfig holds audio transcription API settings.
type WhisperConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// VPICConfig holds NHTSA vehicle registry settings.
type VPICConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig configures one background intake run. Each external call
// gets its own bounded timeout; no budget spans the whole run.
type PipelineConfig struct {
	CallTimeoutSecs int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	// RetryAttempts is the attempt count per external call. The intake
	// contract is no-retry; raising this is an operator override.
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// IntakeConfig configures the intake surfaces.
type IntakeConfig struct {
	MaxUploadMB   int `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"` // batch intake only
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	// Optional .env for local development; ignore absence.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WORKORDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "workorders.db")
	v.SetDefault("store.dynamo.region", "us-east-1")
	v.SetDefault("store.dynamo.table_prefix", "workorder_")
	v.SetDefault("anthropic.vision_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.summary_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("whisper.base_url", "https://api.openai.com/v1")
	v.SetDefault("whisper.model", "whisper-1")
	v.SetDefault("vpic.base_url", "https://vpic.nhtsa.dot.gov/api")
	v.SetDefault("pipeline.call_timeout_secs", 30)
	v.SetDefault("pipeline.retry_attempts", 1)
	v.SetDefault("intake.max_upload_mb", 32)
	v.SetDefault("intake.max_concurrent", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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

// Validate checks that the keys the pipeline commands need are present.
// Store-only commands (migrate, orders) skip this.
func (c *Config) Validate() error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic API key is required (WORKORDER_ANTHROPIC_KEY)")
	}
	if c.Whisper.Key == "" {
		return eris.New("config: whisper API key is required (WORKORDER_WHISPER_KEY)")
	}
	return nil
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
