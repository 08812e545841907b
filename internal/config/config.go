// Package config loads the application configuration from file and
// environment and initializes the global logger.
package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Snapshot         SnapshotConfig         `yaml:"snapshot" mapstructure:"snapshot"`
	Anthropic        AnthropicConfig        `yaml:"anthropic" mapstructure:"anthropic"`
	Diavgeia         DiavgeiaConfig         `yaml:"diavgeia" mapstructure:"diavgeia"`
	EnterpriseGreece EnterpriseGreeceConfig `yaml:"enterprise_greece" mapstructure:"enterprise_greece"`
	Revision         RevisionConfig         `yaml:"revision" mapstructure:"revision"`
	Geocode          GeocodeConfig          `yaml:"geocode" mapstructure:"geocode"`
	Server           ServerConfig           `yaml:"server" mapstructure:"server"`
	Log              LogConfig              `yaml:"log" mapstructure:"log"`
}

// SnapshotConfig configures the persisted dataset location.
type SnapshotConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings. The haiku model serves the
// cheap classification shims, the sonnet model serves extraction.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// DiavgeiaConfig configures the decision registry client.
type DiavgeiaConfig struct {
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	PageSize        int    `yaml:"page_size" mapstructure:"page_size"`
	RequestsPerSec  int    `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	OrganizationUID string `yaml:"organization_uid" mapstructure:"organization_uid"`
}

// EnterpriseGreeceConfig configures the curated project list source.
type EnterpriseGreeceConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// RevisionConfig configures revision keyword matching. Keywords are matched
// case-sensitively against decision subjects; KeywordsFile, when set, points
// at a YAML list that replaces the built-in defaults.
type RevisionConfig struct {
	Keywords     []string `yaml:"keywords" mapstructure:"keywords"`
	KeywordsFile string   `yaml:"keywords_file" mapstructure:"keywords_file"`
}

// GeocodeConfig configures the location lookup client.
type GeocodeConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent  string `yaml:"user_agent" mapstructure:"user_agent"`
	CachePath  string `yaml:"cache_path" mapstructure:"cache_path"`
	ThrottleMS int    `yaml:"throttle_ms" mapstructure:"throttle_ms"`
}

// ServerConfig configures the read-only HTTP API.
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
	v.SetEnvPrefix("INVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("snapshot.path", "data/investments.json")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("diavgeia.base_url", "https://diavgeia.gov.gr/opendata")
	v.SetDefault("diavgeia.page_size", 100)
	v.SetDefault("diavgeia.requests_per_sec", 5)
	v.SetDefault("enterprise_greece.url", "https://www.enterprisegreece.gov.gr/api/strategic-investments")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "strategic-investments-gr/1.0")
	v.SetDefault("geocode.cache_path", "data/geocode-cache.db")
	v.SetDefault("geocode.throttle_ms", 200)
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

	if cfg.Revision.KeywordsFile != "" {
		keywords, err := loadKeywordsFile(cfg.Revision.KeywordsFile)
		if err != nil {
			return nil, err
		}
		cfg.Revision.Keywords = keywords
	}

	return &cfg, nil
}

// loadKeywordsFile reads a YAML list of revision keywords.
func loadKeywordsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "config: read keywords file")
	}
	var keywords []string
	if err := yaml.Unmarshal(data, &keywords); err != nil {
		return nil, eris.Wrap(err, "config: parse keywords file")
	}
	if len(keywords) == 0 {
		return nil, eris.New("config: keywords file is empty")
	}
	return keywords, nil
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
