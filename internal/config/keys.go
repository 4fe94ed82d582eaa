// Package config provides API key management utilities.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for a provider.
var ErrNoAPIKey = errors.New("no API key configured")

// providerEnv maps provider ids to the environment variable holding their key.
var providerEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
}

// GetAPIKey returns the API key for provider.
// It checks in order: environment variable, config file.
// Bedrock-backed Anthropic needs no key and returns "" with a nil error.
func GetAPIKey(cfg *Config, provider string) (string, error) {
	provider = strings.ToLower(provider)
	if env, ok := providerEnv[provider]; ok {
		if key := os.Getenv(env); key != "" {
			return key, nil
		}
	}

	if cfg != nil {
		if provider == "anthropic" && cfg.Providers.Anthropic.UseBedrock {
			return "", nil
		}
		key := cfg.Credential(provider)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", fmt.Errorf("%w for provider %q", ErrNoAPIKey, provider)
}

// ValidateAPIKey performs basic format validation on an API key.
// It does not verify the key with the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	switch strings.ToLower(provider) {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid API key format: expected 'sk-ant-' prefix")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return errors.New("invalid API key format: expected 'sk-' prefix")
		}
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the API key for provider was sourced from.
func GetAPIKeySource(cfg *Config, provider string) KeySource {
	if env, ok := providerEnv[strings.ToLower(provider)]; ok && os.Getenv(env) != "" {
		return KeySourceEnv
	}

	if cfg != nil {
		key := cfg.Credential(provider)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
