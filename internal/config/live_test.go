package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/quill/pkg/models"
)

func TestLiveSetNotifies(t *testing.T) {
	live := NewLive(nil)
	var seen *Config
	live.OnChange(func(c *Config) { seen = c })

	next := Default()
	next.Engine.MaxCodeAttempts = 7
	live.Set(next)

	assert.Same(t, next, live.Get())
	assert.Same(t, next, seen)
}

func TestLiveActorDefaults(t *testing.T) {
	cfg := Default()
	cfg.Actors["analyst"] = ActorSettings{Enabled: false, Model: "m"}
	live := NewLive(cfg)

	got := live.ActorDefaults(models.ActorAnalyst)
	assert.False(t, got.Enabled)
	assert.Equal(t, "m", got.Model)
	assert.Equal(t, "anthropic", got.Provider, "provider falls back to providers.default")
}

func TestLiveWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_code_attempts: 2\n"), 0644))

	initial, err := LoadFromPath(path)
	require.NoError(t, err)

	live := NewLive(initial)
	if err := live.Watch(path); err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer live.Close()

	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_code_attempts: 4\n"), 0644))

	assert.Eventually(t, func() bool {
		return live.Get().Engine.MaxCodeAttempts == 4
	}, 5*time.Second, 20*time.Millisecond)
}
