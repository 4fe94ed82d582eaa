package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAPIKey(t *testing.T) {
	t.Run("environment wins", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env-123456789")
		cfg := Default()
		cfg.Providers.Anthropic.APIKey = "sk-ant-from-config-123456"

		key, err := GetAPIKey(cfg, "anthropic")
		require.NoError(t, err)
		assert.Equal(t, "sk-ant-from-env-123456789", key)
		assert.Equal(t, KeySourceEnv, GetAPIKeySource(cfg, "anthropic"))
	})

	t.Run("config fallback", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		cfg := Default()
		cfg.Providers.OpenAI.APIKey = "sk-openai-config-key-12"

		key, err := GetAPIKey(cfg, "openai")
		require.NoError(t, err)
		assert.Equal(t, "sk-openai-config-key-12", key)
		assert.Equal(t, KeySourceConfig, GetAPIKeySource(cfg, "openai"))
	})

	t.Run("unresolved reference", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		cfg := Default()
		cfg.Providers.Anthropic.APIKey = "${UNSET_QUILL_KEY}"

		_, err := GetAPIKey(cfg, "anthropic")
		assert.True(t, errors.Is(err, ErrNoAPIKey))
		assert.Equal(t, KeySourceNone, GetAPIKeySource(cfg, "anthropic"))
	})

	t.Run("bedrock needs no key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		cfg := Default()
		cfg.Providers.Anthropic.UseBedrock = true

		key, err := GetAPIKey(cfg, "anthropic")
		require.NoError(t, err)
		assert.Empty(t, key)
	})
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		provider string
		key      string
		wantErr  bool
	}{
		{"anthropic", "", true},
		{"anthropic", "sk-ant-REDACTED", false},
		{"anthropic", "sk-openai-abcdefghijklmnop", true},
		{"anthropic", "sk-ant-short", true},
		{"openai", "sk-proj-abcdefghijklmnopqr", false},
		{"openai", "pk-abcdefghijklmnopqrstu", true},
	}

	for _, tt := range tests {
		err := ValidateAPIKey(tt.provider, tt.key)
		if tt.wantErr {
			assert.Error(t, err, "%s/%q", tt.provider, tt.key)
		} else {
			assert.NoError(t, err, "%s/%q", tt.provider, tt.key)
		}
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "(not set)", MaskAPIKey(""))
	assert.Equal(t, "***", MaskAPIKey("short"))
	assert.Equal(t, "sk-ant-...wxyz", MaskAPIKey("sk-ant-api03-abcdefghwxyz"))
}
