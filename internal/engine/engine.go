// Package engine wires the store, the cache, the provider and the notification transports
// into the progress engine, the hierarchy loader and the favorites service, and runs the
// background jobs.
package engine

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/showtrack/internal/cache"
	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/jon4hz/showtrack/internal/favorites"
	"github.com/jon4hz/showtrack/internal/loader"
	"github.com/jon4hz/showtrack/internal/notify"
	"github.com/jon4hz/showtrack/internal/notify/ntfy"
	"github.com/jon4hz/showtrack/internal/notify/webpush"
	"github.com/jon4hz/showtrack/internal/notify/websocket"
	"github.com/jon4hz/showtrack/internal/progress"
	"github.com/jon4hz/showtrack/internal/provider"
	"github.com/jon4hz/showtrack/internal/provider/tmdb"
	"github.com/jon4hz/showtrack/internal/scheduler"
)

// Engine is the main engine for showtrack. It owns every long lived component and runs
// the refresh job periodically.
type Engine struct {
	cfg       *config.Config
	db        database.DB
	cache     *cache.Cache
	provider  provider.ContentProvider
	hub       *websocket.Hub
	webpush   *webpush.Client
	progress  *progress.Engine
	loader    *loader.Loader
	favorites *favorites.Service
	scheduler *scheduler.Scheduler
}

// Option customizes the engine.
type Option func(*Engine)

// WithProvider replaces the TMDb client.
func WithProvider(p provider.ContentProvider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// New creates a new Engine instance.
func New(cfg *config.Config, db database.DB, opts ...Option) (*Engine, error) {
	sched, err := scheduler.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	c, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		db:        db,
		cache:     c,
		hub:       websocket.NewHub(),
		scheduler: sched,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.provider == nil {
		tmdbCfg := cfg.TMDB
		if tmdbCfg == nil {
			tmdbCfg = &config.TMDBConfig{}
		}
		if tmdbCfg.APIKey == "" {
			log.Warn("TMDb API key is missing, requests for new content will fail")
		}
		e.provider = tmdb.New(tmdbCfg)
	}

	transports := []notify.Notifier{e.hub}
	if cfg.WebPush != nil && cfg.WebPush.Enabled {
		e.webpush = webpush.NewClient(cfg.WebPush)
		if err := e.webpush.ValidateConfig(); err != nil {
			return nil, fmt.Errorf("invalid webpush config: %w", err)
		}
		transports = append(transports, e.pushTransport(e.webpush, cfg.WebPush.OfflineDelivery))
	}
	if cfg.Ntfy != nil && cfg.Ntfy.Enabled {
		transports = append(transports, e.pushTransport(ntfy.NewClient(cfg.Ntfy), cfg.Ntfy.OfflineDelivery))
	}

	e.progress = progress.New(db, c)
	e.loader = loader.New(db, e.provider, notify.NewFanout(transports...), c, cfg.Loader)
	e.favorites = favorites.New(db, e.provider, e.loader, e.progress)

	if err := e.setupJobs(); err != nil {
		return nil, fmt.Errorf("failed to setup jobs: %w", err)
	}
	return e, nil
}

// pushTransport limits a push transport to accounts with a live session unless offline
// delivery is enabled.
func (e *Engine) pushTransport(n notify.Notifier, offline bool) notify.Notifier {
	if offline {
		return n
	}
	return notify.WhileConnected(e.hub, n)
}

// Progress returns the status engine.
func (e *Engine) Progress() *progress.Engine { return e.progress }

// Favorites returns the favorites service.
func (e *Engine) Favorites() *favorites.Service { return e.favorites }

// Loader returns the hierarchy loader.
func (e *Engine) Loader() *loader.Loader { return e.loader }

// Hub returns the websocket session registry.
func (e *Engine) Hub() *websocket.Hub { return e.hub }

// WebPush returns the webpush client, nil if webpush is disabled.
func (e *Engine) WebPush() *webpush.Client { return e.webpush }

// Scheduler returns the scheduler instance for API access.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.scheduler }

// Run starts the background jobs and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.scheduler.Start()
	<-ctx.Done()
	return nil
}

// Close stops the jobs, closes live sessions and waits for running hierarchy loads.
func (e *Engine) Close() error {
	err := e.scheduler.Stop()
	e.hub.Close()
	e.loader.Wait()
	return err
}
