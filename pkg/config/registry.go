package config

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rtftp/rtftpd/internal/adminhttp"
	"github.com/rtftp/rtftpd/internal/listener"
	"github.com/rtftp/rtftpd/internal/logger"
	"github.com/rtftp/rtftpd/internal/nbdconfig"
	"github.com/rtftp/rtftpd/internal/session"
	"github.com/rtftp/rtftpd/internal/transfer"
	"github.com/rtftp/rtftpd/internal/vfs"
	"github.com/rtftp/rtftpd/pkg/metrics"
	"github.com/rtftp/rtftpd/pkg/metrics/prometheus"
	"github.com/rtftp/rtftpd/pkg/warmpool"
)

// Daemon holds every long-lived component InitializeDaemon wires together:
// the config store and its filesystem watcher, the guest session registry
// and its idle sweeper, the proactive-warming pool, the TFTP listener, and
// the admin HTTP server. Run drives all of them until ctx is cancelled.
type Daemon struct {
	cfg *Config

	Store    *nbdconfig.Store
	Watcher  *nbdconfig.Watcher
	Sessions *session.Registry
	WarmPool *warmpool.Pool
	Listener *listener.Listener
	Admin    *adminhttp.Server

	scanComplete atomic.Bool
}

// InitializeDaemon builds every component described by cfg but does not
// start any of them: the config store's initial scan has not yet run, the
// listener's socket is bound but not yet serving traffic, and no goroutines
// are running. Call Run to start everything and block until ctx is
// cancelled.
func InitializeDaemon(cfg *Config) (*Daemon, error) {
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("metrics enabled")
	} else {
		logger.Info("metrics disabled")
	}

	cache, err := session.NewStatCache(cfg.Cache.Path, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("opening stat cache: %w", err)
	}

	var sessionMetrics metrics.SessionMetrics
	if metrics.IsEnabled() {
		sessionMetrics = prometheus.NewSessionMetrics()
	}

	sessions := session.NewRegistry(cache, sessionMetrics)

	store := nbdconfig.NewStore(cfg.Server.TFTPRoot)
	resolver := vfs.New(cfg.Server.TFTPRoot, store, sessions)

	d := &Daemon{
		cfg:      cfg,
		Store:    store,
		Sessions: sessions,
	}

	pool := warmpool.New(func(ctx context.Context, nbdCfg *nbdconfig.NbdConfig) error {
		_, err := sessions.GetOrAttach(ctx, nbdCfg)
		return err
	}, warmpool.Config{
		Workers:   cfg.Server.WarmPool.Workers,
		QueueSize: cfg.Server.WarmPool.QueueSize,
	})
	d.WarmPool = pool

	var warmFn nbdconfig.WarmFunc
	if cfg.Server.ProactiveWarming {
		warmFn = func(nbdCfg *nbdconfig.NbdConfig) {
			if !pool.Enqueue(nbdCfg) {
				logger.Warn("warm pool queue full, dropping proactive attach", logger.URL(nbdCfg.URL))
			}
		}
	}
	drainFn := func(url string) { sessions.MarkDraining(url) }

	watcher, err := nbdconfig.NewWatcher(store, cfg.Server.ConfigDebounce, warmFn, drainFn)
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	d.Watcher = watcher

	var transferMetrics metrics.TransferMetrics
	if metrics.IsEnabled() {
		transferMetrics = prometheus.NewTransferMetrics()
	}

	listenerCfg := transfer.Config{
		RetryBudget:   cfg.Server.RetryBudget,
		PacketTimeout: cfg.Server.PacketTimeout,
		Metrics:       transferMetrics,
	}

	ln, err := listener.New(cfg.Server.ListenAddress, resolver, listenerCfg)
	if err != nil {
		return nil, fmt.Errorf("binding tftp listener: %w", err)
	}
	d.Listener = ln

	if cfg.Admin.Enabled {
		admin, err := adminhttp.NewServer(cfg.Admin.ListenAddress, adminhttp.Deps{
			Sessions: sessions,
			Configs:  store,
			Ready:    d.ready,
		})
		if err != nil {
			return nil, fmt.Errorf("binding admin http server: %w", err)
		}
		d.Admin = admin
	}

	return d, nil
}

// ready reports whether the daemon is ready to serve traffic usefully: the
// initial config scan has completed. The listener socket is already bound
// by the time InitializeDaemon returns, so only the scan gates readiness.
func (d *Daemon) ready() (bool, string) {
	if !d.scanComplete.Load() {
		return false, "initial config scan not yet complete"
	}
	return true, ""
}

// Run performs the initial config scan, then starts the watcher, the warm
// pool, the idle sweeper, the TFTP listener, and (if enabled) the admin
// HTTP server, blocking until ctx is cancelled or a component fails.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Store.Scan(); err != nil {
		return fmt.Errorf("scanning tftp root: %w", err)
	}
	d.scanComplete.Store(true)
	logger.Info("initial config scan complete", "configs", len(d.Store.Snapshot()))

	d.WarmPool.Start(ctx)
	defer d.WarmPool.Stop(5 * time.Second)

	go d.Watcher.Run(ctx)

	sweepInterval := d.cfg.Server.IdleTimeout / 4
	if sweepInterval <= 0 || sweepInterval > time.Second {
		sweepInterval = time.Second
	}
	go d.Sessions.RunSweeper(ctx, sweepInterval, d.cfg.Server.IdleTimeout)
	defer d.Sessions.CloseAll()

	errCh := make(chan error, 2)

	go func() {
		errCh <- d.Listener.Serve(ctx)
	}()

	if d.Admin != nil {
		go func() {
			errCh <- d.Admin.Start(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		_ = d.Listener.Close()
		if d.Admin != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = d.Admin.Stop(shutdownCtx)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
