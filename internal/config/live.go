package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/quill/pkg/models"
)

// Live holds the current configuration and swaps it when the config file changes.
// Actors read it on every execution so long-lived processes pick up edits.
type Live struct {
	mu       sync.RWMutex
	cfg      *Config
	path     string
	reload   func(path string) (*Config, error)
	watcher  *fsnotify.Watcher
	done     chan struct{}
	onChange []func(*Config)
	lastErr  error
}

// NewLive wraps a fixed configuration without watching anything.
func NewLive(cfg *Config) *Live {
	if cfg == nil {
		cfg = Default()
	}
	return &Live{cfg: cfg, reload: LoadFromPath, done: make(chan struct{})}
}

// Get returns the current configuration.
func (l *Live) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Set replaces the current configuration and notifies subscribers.
func (l *Live) Set(cfg *Config) {
	l.mu.Lock()
	l.cfg = cfg
	subs := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
}

// OnChange registers fn to run after every successful reload.
func (l *Live) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// ActorDefaults returns the file-level configuration of an actor kind.
func (l *Live) ActorDefaults(t models.ActorType) models.ActorConfig {
	return l.Get().Actor(t)
}

// Credential returns the API credential for a provider from the current config.
func (l *Live) Credential(provider string) string {
	key, _ := GetAPIKey(l.Get(), provider)
	return key
}

// LastError returns the error from the most recent failed reload, if any.
func (l *Live) LastError() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// Watch starts reloading from path whenever it is written or recreated.
// The parent directory is watched so editors that replace the file are handled.
// A missing watcher backend is not fatal; the config simply stays static.
func (l *Live) Watch(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	l.mu.Lock()
	l.path = path
	l.watcher = watcher
	l.mu.Unlock()

	go l.watchLoop()
	return nil
}

func (l *Live) watchLoop() {
	target := filepath.Clean(l.path)
	for {
		select {
		case <-l.done:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := l.reload(target)
			if err != nil {
				l.mu.Lock()
				l.lastErr = err
				l.mu.Unlock()
				continue
			}
			l.mu.Lock()
			l.lastErr = nil
			l.mu.Unlock()
			l.Set(cfg)
		case <-l.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// Close stops watching.
func (l *Live) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.done:
		return nil
	default:
		close(l.done)
	}
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}
