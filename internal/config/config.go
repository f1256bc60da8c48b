package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Research  ResearchConfig  `yaml:"research" mapstructure:"research"`
	Merge     MergeConfig     `yaml:"merge" mapstructure:"merge"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ResearchConfig locates the research documents.
type ResearchConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	BaseFile   string `yaml:"base_file" mapstructure:"base_file"`
	UpdateFile string `yaml:"update_file" mapstructure:"update_file"`
}

// MergeConfig configures the document merger.
type MergeConfig struct {
	ChunkSize         int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	BackupSuffix      string  `yaml:"backup_suffix" mapstructure:"backup_suffix"`
	BackupEnabled     bool    `yaml:"backup_enabled" mapstructure:"backup_enabled"`
	OracleTimeoutSecs int     `yaml:"oracle_timeout_secs" mapstructure:"oracle_timeout_secs"`
	OracleRPS         float64 `yaml:"oracle_rps" mapstructure:"oracle_rps"`
}

// SyncConfig configures the field reconciler.
type SyncConfig struct {
	AutoApplyThreshold     float64 `yaml:"auto_apply_threshold" mapstructure:"auto_apply_threshold"`
	RequireReviewThreshold float64 `yaml:"require_review_threshold" mapstructure:"require_review_threshold"`
	BatchSize              int     `yaml:"batch_size" mapstructure:"batch_size"`
	DryRun                 bool    `yaml:"dry_run" mapstructure:"dry_run"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig configures the review API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FUSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "research/fusion_research.db")
	v.SetDefault("research.dir", "research")
	v.SetDefault("research.base_file", "Fusion_Research.md")
	v.SetDefault("research.update_file", "Fusion_Research_UPDATE.md")
	v.SetDefault("merge.chunk_size", 4000)
	v.SetDefault("merge.backup_suffix", ".backup")
	v.SetDefault("merge.backup_enabled", true)
	v.SetDefault("merge.oracle_timeout_secs", 120)
	v.SetDefault("merge.oracle_rps", 1.0)
	v.SetDefault("sync.auto_apply_threshold", 0.90)
	v.SetDefault("sync.require_review_threshold", 0.70)
	v.SetDefault("sync.batch_size", 10)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
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

	if err := cfg.Sync.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects threshold configurations that would make the
// confidence routing partition ambiguous.
func (c SyncConfig) Validate() error {
	if c.AutoApplyThreshold <= c.RequireReviewThreshold {
		return eris.Errorf("config: auto_apply_threshold (%.2f) must exceed require_review_threshold (%.2f)",
			c.AutoApplyThreshold, c.RequireReviewThreshold)
	}
	if c.AutoApplyThreshold > 1 || c.RequireReviewThreshold < 0 {
		return eris.New("config: sync thresholds must lie in [0,1]")
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
