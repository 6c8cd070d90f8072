package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig   `yaml:"server" mapstructure:"server"`
	AI        AIConfig       `yaml:"ai" mapstructure:"ai"`
	Gemini    ProviderConfig `yaml:"gemini" mapstructure:"gemini"`
	OpenAI    ProviderConfig `yaml:"openai" mapstructure:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Store     StoreConfig    `yaml:"store" mapstructure:"store"`
	Database  DatabaseConfig `yaml:"database" mapstructure:"database"`
	Minio     MinioConfig    `yaml:"minio" mapstructure:"minio"`
	Client    ClientConfig   `yaml:"client" mapstructure:"client"`
	Log       LogConfig      `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Port        int        `yaml:"port" mapstructure:"port"`
	StaticDir   string     `yaml:"static_dir" mapstructure:"static_dir"`
	BodyLimitMB int        `yaml:"body_limit_mb" mapstructure:"body_limit_mb"`
	RateLimit   RateConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateConfig limits /api/analyze per client address. RPS 0 disables it.
type RateConfig struct {
	RPS   float64 `yaml:"rps" mapstructure:"rps"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
}

// AIConfig picks the analysis provider: gemini, openai or anthropic.
type AIConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

type ProviderConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// StoreConfig: driver sqlite, mysql atau postgres.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DatabaseConfig dipakai kalau database_url kosong untuk mysql/postgres.
type DatabaseConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Name     string `yaml:"name" mapstructure:"name"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey  string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey  string `yaml:"secret_key" mapstructure:"secret_key"`
	BucketName string `yaml:"bucket_name" mapstructure:"bucket_name"`
	Region     string `yaml:"region" mapstructure:"region"`
	UseSSL     bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	ServerURL   string `yaml:"server_url" mapstructure:"server_url"`
	StateFile   string `yaml:"state_file" mapstructure:"state_file"`
	Transcripts string `yaml:"transcripts" mapstructure:"transcripts"`
	Speech      bool   `yaml:"speech" mapstructure:"speech"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional file and the environment. An
// empty path searches ./config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RESOLVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 3001)
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.body_limit_mb", 50)
	v.SetDefault("server.rate_limit.rps", 1.0)
	v.SetDefault("server.rate_limit.burst", 5)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.timeout_seconds", 120)
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "resolve")
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket_name", "resolve-media")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("client.server_url", "http://127.0.0.1:3001")
	v.SetDefault("client.state_file", "")
	v.SetDefault("client.transcripts", "")
	v.SetDefault("client.speech", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// env bawaan yang dipakai deployment lama
	_ = v.BindEnv("server.port", "RESOLVE_SERVER_PORT", "PORT")
	_ = v.BindEnv("gemini.key", "RESOLVE_GEMINI_KEY", "GEMINI_API_KEY", "VITE_GEMINI_API_KEY")
	_ = v.BindEnv("openai.key", "RESOLVE_OPENAI_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("anthropic.key", "RESOLVE_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")

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

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Store.DatabaseURL != "" {
		return c.Store.DatabaseURL
	}
	switch c.Store.Driver {
	case "mysql":
		return c.MySQLDSN()
	case "postgres", "postgresql":
		return c.PostgresDSN()
	}
	return "resolve.db"
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Provider returns the settings of the selected provider.
func (c *Config) Provider() ProviderConfig {
	switch strings.ToLower(c.AI.Provider) {
	case "openai":
		return c.OpenAI
	case "anthropic", "claude":
		return c.Anthropic
	}
	return c.Gemini
}

// Redacted returns a copy safe for printing.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Gemini.Key = mask(c.Gemini.Key)
	c.OpenAI.Key = mask(c.OpenAI.Key)
	c.Anthropic.Key = mask(c.Anthropic.Key)
	c.Database.Password = mask(c.Database.Password)
	c.Minio.SecretKey = mask(c.Minio.SecretKey)
	return c
}

// WriteYAML dumps the redacted config.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Redacted()); err != nil {
		return eris.Wrap(err, "config: encode yaml")
	}
	return enc.Close()
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

// InitFileLogger sends logs to a file; the TUI owns the terminal.
func InitFileLogger(cfg LogConfig, path string) error {
	zapCfg := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)
	zapCfg.OutputPaths = []string{path}
	zapCfg.ErrorOutputPaths = []string{path}
	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
