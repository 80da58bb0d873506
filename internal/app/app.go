// Package app wires the simulation components together and runs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"iot-traffic-sim/internal/alerts"
	"iot-traffic-sim/internal/analytics"
	"iot-traffic-sim/internal/cache"
	"iot-traffic-sim/internal/config"
	"iot-traffic-sim/internal/events"
	"iot-traffic-sim/internal/handlers"
	"iot-traffic-sim/internal/log"
	"iot-traffic-sim/internal/models"
	"iot-traffic-sim/internal/registry"
	"iot-traffic-sim/internal/rng"
	"iot-traffic-sim/internal/traffic"
)

const (
	redisKeyPrefix  = "iot-sim:"
	shutdownTimeout = 30 * time.Second
)

// App owns every long-lived component.
type App struct {
	cfg *config.Config
	now func() time.Time

	Store     cache.Store
	Bus       *events.Bus
	Registry  *registry.Registry
	Simulator *traffic.Simulator
	Alerts    *alerts.Scheduler
	Analytics *analytics.Engine
	Hub       *handlers.Hub
}

// Option configures an App.
type Option func(*App)

// WithClock replaces the wall clock, e.g. for headless runs.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithStore uses store instead of opening the configured backend.
func WithStore(store cache.Store) Option {
	return func(a *App) { a.Store = store }
}

// OpenStore connects the configured persistence backend.
func OpenStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redisKeyPrefix)
	case config.BackendSQLite:
		return cache.NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.BackendMemory:
		return cache.NewMemoryStore(0), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// New builds the component graph. Nothing is started.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}

	if a.Store == nil {
		store, err := OpenStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
		}
		a.Store = store
	}
	log.Info("Device store ready", "backend", cfg.StoreBackend)

	src := rng.New(cfg.Seed)
	a.Bus = events.NewBus()
	a.Registry = registry.New(ctx, a.Store, registry.WithRandom(src), registry.WithPublisher(a.Bus))
	a.Simulator = traffic.NewSimulator(
		a.Registry,
		traffic.NewGenerator(src, a.now),
		traffic.NewLog(cfg.LogCapacity),
		src,
		a.Bus,
		cfg.TrafficInterval,
	)
	a.Alerts = alerts.NewScheduler(a.Registry, src, a.Bus, alerts.Options{
		Interval:         cfg.AlertInterval,
		RescheduleOnMiss: cfg.AlertRescheduleOnMiss,
		Now:              a.now,
	})
	a.Analytics = analytics.NewEngine(a.Registry, a.Simulator.Log(), src, a.Bus, analytics.Options{
		Interval:         cfg.AnalyticsInterval,
		HistoryPoints:    cfg.HistoryPoints,
		AnomalyThreshold: cfg.AnomalyThreshold,
		CostPerKWh:       cfg.CostPerKWh,
		Now:              a.now,
	})
	a.Hub = handlers.NewHub()
	return a, nil
}

// Handler returns the HTTP API bound to ctx.
func (a *App) Handler(ctx context.Context) http.Handler {
	return handlers.NewHandler(handlers.Deps{
		BaseContext: ctx,
		Registry:    a.Registry,
		Simulator:   a.Simulator,
		Alerts:      a.Alerts,
		Analytics:   a.Analytics,
		Store:       a.Store,
		Hub:         a.Hub,
		CostPerKWh:  a.cfg.CostPerKWh,
		Now:         a.now,
	}).Router()
}

// Run starts the loops and serves HTTP until ctx is cancelled, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	hubSub := a.Bus.Subscribe(64)
	alertSub := a.Bus.Subscribe(16, events.TypeAlert)
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Hub.Run(runCtx, hubSub)
	}()
	go func() {
		defer wg.Done()
		a.Analytics.Watch(runCtx, alertSub)
	}()

	a.Simulator.Start(runCtx)
	a.Alerts.Start(runCtx)
	a.Analytics.Start(runCtx)

	server := &http.Server{
		Addr:         a.cfg.ListenAddr,
		Handler:      a.Handler(runCtx),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", a.cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	log.Info("Shutting down server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = fmt.Errorf("server shutdown: %w", shutdownErr)
	}

	a.Simulator.Stop()
	a.Alerts.Stop()
	a.Analytics.Stop()
	a.Hub.Close()
	hubSub.Close()
	alertSub.Close()
	cancel()
	wg.Wait()

	log.Info("Server stopped gracefully")
	return err
}

// Report is the outcome of a headless run.
type Report struct {
	Ticks            int                 `json:"ticks"`
	Packets          int                 `json:"packets"`
	TotalTransferred int64               `json:"totalTransferred"`
	Alerts           []models.Alert      `json:"alerts"`
	Stats            models.TrafficStats `json:"stats"`
	Snapshot         analytics.Snapshot  `json:"snapshot"`
}

// Simulate drives ticks synchronously without timers. advance is called
// after every tick so a virtual clock can move forward.
func (a *App) Simulate(ctx context.Context, ticks int, advance func()) Report {
	var rep Report
	for i := 0; i < ticks; i++ {
		if ctx.Err() != nil {
			break
		}
		res := a.Simulator.Tick(ctx)
		rep.Ticks++
		rep.Packets += len(res.Packets)

		if alert, ok := a.Alerts.Check(); ok {
			a.Analytics.RecordAlert(alert)
			rep.Alerts = append(rep.Alerts, alert)
		}
		if advance != nil {
			advance()
		}
	}

	rep.TotalTransferred = a.Simulator.Log().TotalTransferred()
	rep.Stats = a.Simulator.Log().Stats()
	rep.Snapshot = a.Analytics.Refresh()
	return rep
}

// Close releases the store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
