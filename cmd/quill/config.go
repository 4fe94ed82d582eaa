package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quill/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify quill configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/quill/config.yaml
Project-specific overrides can be placed in .quill.yaml
Per-actor settings are managed with 'quill actor set'.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("Set %s = %s\n", args[0], args[1])
			return nil
		}
	},
}

var configKeys = []string{
	"providers.default",
	"providers.anthropic.api_key",
	"providers.anthropic.use_bedrock",
	"providers.anthropic.aws_region",
	"providers.anthropic.aws_profile",
	"providers.openai.api_key",
	"providers.openai.base_url",
	"engine.min_call_interval",
	"engine.task_pacing",
	"engine.max_code_attempts",
	"store.driver",
	"store.path",
	"logging.level",
	"logging.file",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
	fmt.Printf("database: %s\n", cfg.DBPath())
}

// getConfigValue retrieves a configuration value by dot-notation key.
// API keys are masked.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "providers.default":
		return cfg.Providers.Default, nil
	case "providers.anthropic.api_key":
		return maskedKey(cfg, "anthropic"), nil
	case "providers.anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Providers.Anthropic.UseBedrock), nil
	case "providers.anthropic.aws_region":
		return cfg.Providers.Anthropic.AWSRegion, nil
	case "providers.anthropic.aws_profile":
		return cfg.Providers.Anthropic.AWSProfile, nil
	case "providers.openai.api_key":
		return maskedKey(cfg, "openai"), nil
	case "providers.openai.base_url":
		return cfg.Providers.OpenAI.BaseURL, nil
	case "engine.min_call_interval":
		return cfg.Engine.MinCallInterval.String(), nil
	case "engine.task_pacing":
		return cfg.Engine.TaskPacing.String(), nil
	case "engine.max_code_attempts":
		return strconv.Itoa(cfg.Engine.MaxCodeAttempts), nil
	case "store.driver":
		return cfg.Store.Driver, nil
	case "store.path":
		return cfg.Store.Path, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.file":
		return cfg.Logging.File, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "providers.default":
		cfg.Providers.Default = value
	case "providers.anthropic.api_key":
		if err := config.ValidateAPIKey("anthropic", value); err != nil {
			return err
		}
		cfg.Providers.Anthropic.APIKey = value
	case "providers.anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for use_bedrock: %w", err)
		}
		cfg.Providers.Anthropic.UseBedrock = b
	case "providers.anthropic.aws_region":
		cfg.Providers.Anthropic.AWSRegion = value
	case "providers.anthropic.aws_profile":
		cfg.Providers.Anthropic.AWSProfile = value
	case "providers.openai.api_key":
		if err := config.ValidateAPIKey("openai", value); err != nil {
			return err
		}
		cfg.Providers.OpenAI.APIKey = value
	case "providers.openai.base_url":
		cfg.Providers.OpenAI.BaseURL = value
	case "engine.min_call_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for min_call_interval: %w", err)
		}
		cfg.Engine.MinCallInterval = d
	case "engine.task_pacing":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for task_pacing: %w", err)
		}
		cfg.Engine.TaskPacing = d
	case "engine.max_code_attempts":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid value for max_code_attempts: %q", value)
		}
		cfg.Engine.MaxCodeAttempts = n
	case "store.driver":
		if value != "sqlite" && value != "sqlite3" {
			return fmt.Errorf("invalid store driver %q: must be sqlite or sqlite3", value)
		}
		cfg.Store.Driver = value
	case "store.path":
		cfg.Store.Path = value
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.file":
		cfg.Logging.File = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
