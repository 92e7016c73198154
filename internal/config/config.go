// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface is the view of the configuration that commands depend on. The setters
// cover the sections that command line flags override.
type Interface interface {
	Logger() LoggerConfig
	Model() ModelConfig
	ImageHost() ImageHostConfig
	Server() ServerConfig
	Browser() BrowserConfig

	SetServerAddr(string)
	SetBrowserHeadless(bool)
}

// Config holds the entire application configuration.
// Sections are read through the Interface getters.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	ModelCfg     ModelConfig     `mapstructure:"model" yaml:"model"`
	ImageHostCfg ImageHostConfig `mapstructure:"image_host" yaml:"image_host"`
	ServerCfg    ServerConfig    `mapstructure:"server" yaml:"server"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Model() ModelConfig         { return c.ModelCfg }
func (c *Config) ImageHost() ImageHostConfig { return c.ImageHostCfg }
func (c *Config) Server() ServerConfig       { return c.ServerCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetServerAddr(addr string) { c.ServerCfg.Addr = addr }
func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LLMProvider defines the supported vision model providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// ModelConfig defines the vision model used for decisions.
type ModelConfig struct {
	Provider LLMProvider `mapstructure:"provider" yaml:"provider"`
	Model    string      `mapstructure:"model" yaml:"model"`
	APIKey   string      `mapstructure:"api_key" yaml:"-"`
	// Endpoint overrides the provider's base URL (proxies, tests).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// APITimeout bounds a single invocation, including fetching the screenshot.
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
	// AllowPrivateImageHosts lets a provider that downloads the screenshot itself reach
	// loopback, private and link-local addresses. Off by default.
	AllowPrivateImageHosts bool `mapstructure:"allow_private_image_hosts" yaml:"allow_private_image_hosts"`
}

// ImageHostConfig defines the GitHub repository used to host screenshots.
type ImageHostConfig struct {
	Token     string `mapstructure:"token" yaml:"-"`
	RepoOwner string `mapstructure:"repo_owner" yaml:"repo_owner"`
	RepoName  string `mapstructure:"repo_name" yaml:"repo_name"`
	Branch    string `mapstructure:"branch" yaml:"branch"`
	// Directory is the path prefix inside the repository; empty means the root.
	Directory     string        `mapstructure:"directory" yaml:"directory"`
	CommitMessage string        `mapstructure:"commit_message" yaml:"commit_message"`
	APIBaseURL    string        `mapstructure:"api_base_url" yaml:"api_base_url"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes" yaml:"max_image_bytes"`
}

// ServerConfig tunes the HTTP front door.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// RateLimit is requests per second across all clients; zero disables limiting.
	RateLimit    float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst    int     `mapstructure:"rate_burst" yaml:"rate_burst"`
	MaxBodyBytes int64   `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// BrowserConfig holds settings for the capture browser.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	DisableGPU        bool          `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagepilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Model --
	v.SetDefault("model.provider", string(ProviderGemini))
	v.SetDefault("model.model", "gemini-2.5-flash")
	v.SetDefault("model.api_timeout", "60s")
	v.SetDefault("model.temperature", 0.0)
	v.SetDefault("model.max_tokens", 300)
	v.SetDefault("model.allow_private_image_hosts", false)

	// -- Image Host --
	v.SetDefault("image_host.branch", "main")
	v.SetDefault("image_host.directory", "screenshots")
	v.SetDefault("image_host.commit_message", "Upload image")
	v.SetDefault("image_host.timeout", "30s")
	v.SetDefault("image_host.max_image_bytes", 10<<20)

	// -- Server --
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.max_body_bytes", 12<<20)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.post_load_wait", "2s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("model.api_key", "PAGEPILOT_MODEL_API_KEY")
	v.BindEnv("image_host.token", "PAGEPILOT_IMAGE_HOST_TOKEN")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Fall back to the provider's conventional variable if nothing else set a key.
	if cfg.ModelCfg.APIKey == "" {
		switch cfg.ModelCfg.Provider {
		case ProviderGemini:
			cfg.ModelCfg.APIKey = os.Getenv("GEMINI_API_KEY")
		case ProviderOpenAI:
			cfg.ModelCfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Secrets are checked by the
// components that need them, so commands that never call a provider still run.
func (c *Config) Validate() error {
	if err := c.ModelCfg.Validate(); err != nil {
		return fmt.Errorf("model configuration invalid: %w", err)
	}
	if err := c.ServerCfg.Validate(); err != nil {
		return fmt.Errorf("server configuration invalid: %w", err)
	}
	if c.ImageHostCfg.Timeout <= 0 {
		return fmt.Errorf("image_host.timeout must be a positive duration")
	}
	if c.BrowserCfg.ViewportWidth <= 0 || c.BrowserCfg.ViewportHeight <= 0 {
		return fmt.Errorf("browser.viewport_width and browser.viewport_height must be positive integers")
	}
	return nil
}

// Validate checks the ModelConfig settings.
func (m *ModelConfig) Validate() error {
	switch m.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported provider '%s'. Supported: [%s, %s]", m.Provider, ProviderGemini, ProviderOpenAI)
	}
	if m.Model == "" {
		return fmt.Errorf("model.model is required")
	}
	if m.APITimeout <= 0 {
		return fmt.Errorf("model.api_timeout must be a positive duration")
	}
	if m.MaxTokens <= 0 {
		return fmt.Errorf("model.max_tokens must be a positive integer")
	}
	return nil
}

// Validate checks the ImageHostConfig for the fields an upload needs.
func (g *ImageHostConfig) Validate() error {
	if g.RepoOwner == "" || g.RepoName == "" || g.Branch == "" {
		return fmt.Errorf("image_host.repo_owner, image_host.repo_name, and image_host.branch are required")
	}
	if g.Token == "" {
		return fmt.Errorf("image host token is required but not found. Ensure PAGEPILOT_IMAGE_HOST_TOKEN is set")
	}
	return nil
}

// Validate checks the ServerConfig settings.
func (s *ServerConfig) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if s.RateLimit > 0 && s.RateBurst <= 0 {
		return fmt.Errorf("server.rate_burst must be a positive integer when rate limiting is enabled")
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be a positive integer")
	}
	return nil
}
