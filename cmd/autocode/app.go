package main

import (
	"errors"
	"io/fs"

	"github.com/autocode-ai/autocode/pkg/backend"
	cachepkg "github.com/autocode-ai/autocode/pkg/cache/sqlite"
	"github.com/autocode-ai/autocode/pkg/config"
	"github.com/autocode-ai/autocode/pkg/scheduler"
	"github.com/autocode-ai/autocode/pkg/tracker"
)

// loadConfig reads the config file, falling back to defaults when the default
// path does not exist. An explicit path must exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && path == config.DefaultPath {
		return config.Default(), nil
	}
	return cfg, err
}

// app bundles the long-lived pieces a command needs.
type app struct {
	cfg    *config.Config
	client *backend.Client
	sched  *scheduler.Scheduler

	cache *cachepkg.Cache
	track *tracker.SQLiteTracker
}

func (a *app) Close() {
	if a.track != nil {
		a.track.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
}

// openApp wires the gated client: adapter, response cache, call tracker, and
// the scheduler over the state file.
func openApp(cfg *config.Config) (*app, error) {
	b, err := backend.Open(cfg.Backend.Name, cfg.Backend.Options)
	if err != nil {
		return nil, err
	}
	if cfg.Backend.RateLimit != nil {
		b = backend.WithRateLimit(b, *cfg.Backend.RateLimit)
	}

	a := &app{cfg: cfg}

	var rc backend.ResponseCache
	if cfg.Cache.Enabled {
		c, err := cachepkg.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.cache = c
		rc = c
	}

	tr, err := tracker.New(cfg.DBPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.track = tr

	a.client = backend.NewClient(b, rc, tr)
	a.sched = scheduler.New(scheduler.NewStore(cfg.StatePath), cfg.Audit.Threshold)
	return a, nil
}
