package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ShayCichocki/quill/internal/actor"
	"github.com/ShayCichocki/quill/internal/composer"
	"github.com/ShayCichocki/quill/internal/config"
	"github.com/ShayCichocki/quill/internal/exec"
	"github.com/ShayCichocki/quill/internal/gateway"
	"github.com/ShayCichocki/quill/internal/kernel"
	"github.com/ShayCichocki/quill/internal/logging"
	"github.com/ShayCichocki/quill/internal/ratequeue"
	"github.com/ShayCichocki/quill/internal/state"
)

// engine bundles everything a command needs to run actors.
type engine struct {
	live     *config.Live
	db       *state.DB
	logger   *logging.Logger
	router   *gateway.Router
	queue    *ratequeue.Queue
	registry *actor.Registry
	composer *composer.Composer
}

// loadConfig reads --config when given, otherwise the layered user and project files.
func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFromPath(flagConfig)
	}
	return config.Load()
}

// openStore opens and migrates the configured database.
func openStore(cfg *config.Config) (*state.DB, error) {
	path := cfg.DBPath()
	if flagDB != "" {
		path = flagDB
	}
	db, err := state.OpenDriver(cfg.Store.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level := cfg.Logging.Level
	if flagVerbose || os.Getenv("QUILL_DEBUG") != "" {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, File: cfg.Logging.File})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logging.SetDefault(logger)
	return logger, nil
}

// openEngine wires config, logging, store, gateway, queue, kernels and the
// actor registry. The caller must Close it.
func openEngine() (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := openStore(cfg)
	if err != nil {
		logger.Close()
		return nil, err
	}

	live := config.NewLive(cfg)
	if path := watchPath(); path != "" {
		if err := live.Watch(path); err != nil {
			logger.Warnf("config live reload disabled: %v", err)
		}
	}

	router := gateway.NewRouter(
		gateway.NewAnthropic(gateway.AnthropicOptions{
			UseBedrock: cfg.Providers.Anthropic.UseBedrock,
			AWSRegion:  cfg.Providers.Anthropic.AWSRegion,
			AWSProfile: cfg.Providers.Anthropic.AWSProfile,
		}),
		gateway.NewOpenAI(cfg.Providers.OpenAI.BaseURL, ""),
	)
	if cfg.Providers.Default != "" {
		router.SetDefault(cfg.Providers.Default)
	}

	queue := ratequeue.New(cfg.Engine.MinCallInterval, logger)
	live.OnChange(func(c *config.Config) {
		queue.SetInterval(c.Engine.MinCallInterval)
		logger.Infof("config reloaded")
	})

	runner := exec.NewRunner()
	registry := actor.NewRegistry(actor.Deps{
		Store:   db,
		Gateway: router,
		Queue:   queue,
		Config:  live,
		Backend: kernel.NewLocalBackend(runner),
		Kernels: kernel.NewConfigResolver(live, runner),
		Logger:  logger,
	})
	composer.Register(registry)

	return &engine{
		live:     live,
		db:       db,
		logger:   logger,
		router:   router,
		queue:    queue,
		registry: registry,
		composer: composer.New(registry),
	}, nil
}

// watchPath is the config file to watch: --config, or the user config when it exists.
func watchPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	path := config.GetUserConfigPath()
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (e *engine) Close() {
	e.live.Close()
	e.db.Close()
	e.logger.Close()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
