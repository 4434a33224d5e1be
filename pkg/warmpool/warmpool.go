// Package warmpool implements a bounded background queue of proactive NBD
// attach requests, decoupling disk attach/mount latency from the first RRQ
// a client happens to send once its config file appears.
package warmpool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rtftp/rtftpd/internal/logger"
	"github.com/rtftp/rtftpd/internal/nbdconfig"
)

// AttachFunc performs (or coalesces into an in-flight) attach for cfg. A
// failed proactive attach is not an error state: the real attach is retried
// lazily on the first RRQ against that config, so AttachFunc's return value
// is only used for logging here, never for retry scheduling.
type AttachFunc func(ctx context.Context, cfg *nbdconfig.NbdConfig) error

// attachRequest is a single queued warm-up.
type attachRequest struct {
	cfg *nbdconfig.NbdConfig
}

// Pool processes proactive attach requests on a fixed number of background
// workers, so a burst of newly-discovered *.nbd files doesn't serialize
// behind one slow guest attach.
type Pool struct {
	attach AttachFunc

	queue chan attachRequest

	workers   int
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu        sync.Mutex
	started   bool
	pending   int
	completed int
	failed    int
}

// Config holds Pool sizing.
type Config struct {
	// QueueSize is the maximum number of pending attach requests.
	QueueSize int

	// Workers is the number of concurrent attach workers.
	Workers int
}

// DefaultConfig returns sensible defaults, matching pkg/config's
// WarmPoolConfig defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize: 64,
		Workers:   4,
	}
}

// New creates a Pool that calls attach for each queued request.
func New(attach AttachFunc, cfg Config) *Pool {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return &Pool{
		attach:    attach,
		queue:     make(chan attachRequest, cfg.QueueSize),
		workers:   cfg.Workers,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start launches the worker goroutines. Calling Start more than once is a
// no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	logger.Info("starting warm pool", slog.Int("workers", p.workers))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	go func() {
		p.wg.Wait()
		close(p.stoppedCh)
	}()
}

// Stop signals workers to drain the queue and exit, waiting up to timeout.
func (p *Pool) Stop(timeout time.Duration) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	logger.Info("stopping warm pool", slog.Int("pending", p.Pending()))

	close(p.stopCh)

	select {
	case <-p.stoppedCh:
		logger.Info("warm pool stopped")
	case <-time.After(timeout):
		logger.Warn("warm pool stop timed out", slog.Int("pending", p.Pending()))
	}
}

// Enqueue submits cfg for proactive attach. Returns false without blocking
// if the queue is full; the caller should treat this as "warming skipped,"
// not as an error, since the attach will still happen lazily on first RRQ.
func (p *Pool) Enqueue(cfg *nbdconfig.NbdConfig) bool {
	select {
	case p.queue <- attachRequest{cfg: cfg}:
		p.mu.Lock()
		p.pending++
		p.mu.Unlock()
		return true
	default:
		logger.Warn("warm pool queue full, skipping proactive attach", logger.URL(cfg.URL))
		return false
	}
}

// Pending returns the number of queued-but-not-yet-processed requests.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Stats returns pending, completed, and failed attach counts.
func (p *Pool) Stats() (pending, completed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending, p.completed, p.failed
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			p.drainQueue(ctx)
			return

		case <-ctx.Done():
			return

		case req, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, req)
		}
	}
}

func (p *Pool) drainQueue(ctx context.Context) {
	for {
		select {
		case req, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, req)
		default:
			return
		}
	}
}

func (p *Pool) process(ctx context.Context, req attachRequest) {
	attachCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	err := p.attach(attachCtx, req.cfg)

	p.mu.Lock()
	p.pending--
	if err != nil {
		p.failed++
		logger.Warn("proactive attach failed, will retry lazily on first request",
			logger.URL(req.cfg.URL), logger.Err(err))
	} else {
		p.completed++
		logger.Debug("proactive attach completed", logger.URL(req.cfg.URL))
	}
	p.mu.Unlock()
}
