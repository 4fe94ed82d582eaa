// Package config handles configuration loading and management for quill.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/quill/pkg/models"
)

// Config holds all configuration for quill.
type Config struct {
	Providers ProvidersConfig           `mapstructure:"providers"`
	Actors    map[string]ActorSettings  `mapstructure:"actors"`
	Engine    EngineConfig              `mapstructure:"engine"`
	Store     StoreConfig               `mapstructure:"store"`
	Kernels   map[string]KernelSettings `mapstructure:"kernels"`
	Logging   LoggingConfig             `mapstructure:"logging"`
}

// ProvidersConfig holds credentials for the text-generation providers.
type ProvidersConfig struct {
	Default   string          `mapstructure:"default"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// UseBedrock routes requests through AWS Bedrock instead of the direct API.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OpenAIConfig holds OpenAI (or compatible) API settings.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// ActorSettings holds the file-level settings of one actor kind.
type ActorSettings struct {
	Enabled      bool    `mapstructure:"enabled"`
	Provider     string  `mapstructure:"provider"`
	Model        string  `mapstructure:"model"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	Safety       string  `mapstructure:"safety"`
	Instructions string  `mapstructure:"instructions"`
}

// EngineConfig holds scheduling and pacing settings.
type EngineConfig struct {
	// MinCallInterval is the minimum gap between two generation calls, process-wide.
	MinCallInterval time.Duration `mapstructure:"min_call_interval"`
	// TaskPacing is the delay inserted before every task start after the first in a run.
	TaskPacing time.Duration `mapstructure:"task_pacing"`
	// MaxCodeAttempts bounds the retry loop for coder tasks.
	MaxCodeAttempts int `mapstructure:"max_code_attempts"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is "sqlite" (pure Go, default) or "sqlite3" (cgo).
	Driver string `mapstructure:"driver"`
	// Path is the database file. Empty means the XDG data dir.
	Path string `mapstructure:"path"`
}

// KernelSettings describes how to run code for one language.
type KernelSettings struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Env entries ("K=V") are added to the interpreter's environment.
	Env []string `mapstructure:"env"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Actor returns the effective file-level config for an actor kind.
// Kinds missing from the file fall back to built-in defaults.
func (c *Config) Actor(t models.ActorType) models.ActorConfig {
	def := defaultActorSettings(t)
	s, ok := c.Actors[string(t)]
	if !ok {
		s = def
	}
	provider := s.Provider
	if provider == "" {
		provider = c.Providers.Default
	}
	if provider == "" {
		provider = def.Provider
	}
	return models.ActorConfig{
		ActorType:    t,
		Enabled:      s.Enabled,
		Provider:     provider,
		Model:        s.Model,
		Temperature:  s.Temperature,
		MaxTokens:    s.MaxTokens,
		Safety:       s.Safety,
		Instructions: s.Instructions,
	}
}

// Credential returns the API credential configured for a provider.
func (c *Config) Credential(provider string) string {
	switch strings.ToLower(provider) {
	case "anthropic":
		return expandEnv(c.Providers.Anthropic.APIKey)
	case "openai":
		return expandEnv(c.Providers.OpenAI.APIKey)
	default:
		return ""
	}
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY, QUILL_*)
// 2. Project config (.quill.yaml in current directory or parent)
// 3. User config (~/.config/quill/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing and live reload).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)

	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("QUILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("providers.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("providers.openai.api_key", "OPENAI_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Providers.Anthropic.APIKey = expandEnv(cfg.Providers.Anthropic.APIKey)
	cfg.Providers.OpenAI.APIKey = expandEnv(cfg.Providers.OpenAI.APIKey)
	if cfg.Engine.MaxCodeAttempts < 1 {
		cfg.Engine.MaxCodeAttempts = 1
	}
	return cfg, nil
}

// Save writes the persisted subset of cfg to the user config file.
// Secrets are written as given; callers decide whether to store them.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("providers.default", cfg.Providers.Default)
	v.Set("providers.anthropic.api_key", cfg.Providers.Anthropic.APIKey)
	v.Set("providers.anthropic.use_bedrock", cfg.Providers.Anthropic.UseBedrock)
	v.Set("providers.anthropic.aws_region", cfg.Providers.Anthropic.AWSRegion)
	v.Set("providers.anthropic.aws_profile", cfg.Providers.Anthropic.AWSProfile)
	v.Set("providers.openai.api_key", cfg.Providers.OpenAI.APIKey)
	v.Set("providers.openai.base_url", cfg.Providers.OpenAI.BaseURL)
	v.Set("engine.min_call_interval", cfg.Engine.MinCallInterval.String())
	v.Set("engine.task_pacing", cfg.Engine.TaskPacing.String())
	v.Set("engine.max_code_attempts", cfg.Engine.MaxCodeAttempts)
	v.Set("store.driver", cfg.Store.Driver)
	v.Set("store.path", cfg.Store.Path)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.file", cfg.Logging.File)
	for name, a := range cfg.Actors {
		prefix := "actors." + name + "."
		v.Set(prefix+"enabled", a.Enabled)
		v.Set(prefix+"provider", a.Provider)
		v.Set(prefix+"model", a.Model)
		v.Set(prefix+"temperature", a.Temperature)
		v.Set(prefix+"max_tokens", a.MaxTokens)
		v.Set(prefix+"safety", a.Safety)
	}

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// DefaultDBPath returns the default database location under XDG_DATA_HOME.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "quill", "quill.db")
}

// DBPath returns the configured database path or the default.
func (c *Config) DBPath() string {
	if c.Store.Path != "" {
		return expandEnv(c.Store.Path)
	}
	return DefaultDBPath()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("providers.default", "anthropic")
	v.SetDefault("providers.anthropic.api_key", "")
	v.SetDefault("providers.anthropic.use_bedrock", false)
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")

	for _, t := range models.AllActorTypes() {
		s := defaultActorSettings(t)
		prefix := "actors." + string(t) + "."
		v.SetDefault(prefix+"enabled", s.Enabled)
		v.SetDefault(prefix+"provider", s.Provider)
		v.SetDefault(prefix+"model", s.Model)
		v.SetDefault(prefix+"temperature", s.Temperature)
		v.SetDefault(prefix+"max_tokens", s.MaxTokens)
		v.SetDefault(prefix+"safety", s.Safety)
	}

	v.SetDefault("engine.min_call_interval", "1s")
	v.SetDefault("engine.task_pacing", "1s")
	v.SetDefault("engine.max_code_attempts", 3)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "")

	for lang, k := range defaultKernels() {
		prefix := "kernels." + lang + "."
		v.SetDefault(prefix+"command", k.Command)
		v.SetDefault(prefix+"args", k.Args)
		v.SetDefault(prefix+"timeout", k.Timeout.String())
		v.SetDefault(prefix+"env", k.Env)
	}

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}

func defaultActorSettings(t models.ActorType) ActorSettings {
	s := ActorSettings{
		Enabled:     true,
		Provider:    "anthropic",
		Temperature: 0.7,
		MaxTokens:   4096,
		Safety:      "standard",
	}
	switch t {
	case models.ActorPlanner:
		s.Temperature = 0.2
	case models.ActorCoder:
		s.Temperature = 0.2
		s.MaxTokens = 8192
	case models.ActorWriter:
		s.MaxTokens = 8192
	}
	return s
}

func defaultKernels() map[string]KernelSettings {
	return map[string]KernelSettings{
		"python": {
			Command: "python3",
			Args:    []string{"-"},
			Timeout: 60 * time.Second,
			Env:     []string{"PYTHONUNBUFFERED=1", "PYTHONIOENCODING=utf-8"},
		},
		"shell":      {Command: "sh", Args: []string{"-s"}, Timeout: 60 * time.Second},
		"javascript": {Command: "node", Args: []string{"-"}, Timeout: 60 * time.Second},
	}
}

// getUserConfigDir returns the XDG config directory for quill.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "quill")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "quill")
	}
	return filepath.Join(home, ".config", "quill")
}

// findProjectConfig searches for .quill.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".quill.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	actors := make(map[string]ActorSettings)
	for _, t := range models.AllActorTypes() {
		actors[string(t)] = defaultActorSettings(t)
	}
	return &Config{
		Providers: ProvidersConfig{
			Default: "anthropic",
			OpenAI:  OpenAIConfig{BaseURL: "https://api.openai.com/v1"},
		},
		Actors: actors,
		Engine: EngineConfig{
			MinCallInterval: time.Second,
			TaskPacing:      time.Second,
			MaxCodeAttempts: 3,
		},
		Store:   StoreConfig{Driver: "sqlite"},
		Kernels: defaultKernels(),
		Logging: LoggingConfig{Level: "info"},
	}
}
