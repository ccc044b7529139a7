// Package tasks runs fire-and-forget background jobs on a small worker pool.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatcher closed")

// ErrQueueFull is returned when a job could not be queued in time.
var ErrQueueFull = errors.New("task queue full")

// Job is one unit of background work. Its error is logged, never returned.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Stats are counters for the dispatcher's lifetime.
type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Submitted     uint64 `json:"submitted"`
	Succeeded     uint64 `json:"succeeded"`
	Failed        uint64 `json:"failed"`
	Dropped       uint64 `json:"dropped"`
}

// Dispatcher queues jobs for a fixed set of workers.
type Dispatcher struct {
	jobs        chan Job
	enqueueWait time.Duration
	jobTimeout  time.Duration
	wg          sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// Config sizes a Dispatcher. Zero values fall back to defaults.
type Config struct {
	Workers       int
	QueueCapacity int
	EnqueueWait   time.Duration
	JobTimeout    time.Duration
}

// New starts a dispatcher and its workers.
func New(cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 64
	}
	if cfg.EnqueueWait <= 0 {
		cfg.EnqueueWait = 25 * time.Millisecond
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		jobs:        make(chan Job, cfg.QueueCapacity),
		enqueueWait: cfg.EnqueueWait,
		jobTimeout:  cfg.JobTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				d.runOne(job)
			}
		}()
	}
	return d
}

// Submit queues a job without blocking the caller for longer than the
// enqueue wait.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	d.submitted.Add(1)

	select {
	case d.jobs <- job:
		return nil
	default:
	}

	timer := time.NewTimer(d.enqueueWait)
	defer timer.Stop()
	select {
	case d.jobs <- job:
		return nil
	case <-timer.C:
		d.dropped.Add(1)
		slog.Warn("task dropped", "job", job.Name, "reason", "queue_saturated")
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
	d.cancel()
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		QueueDepth:    len(d.jobs),
		QueueCapacity: cap(d.jobs),
		Submitted:     d.submitted.Load(),
		Succeeded:     d.succeeded.Load(),
		Failed:        d.failed.Load(),
		Dropped:       d.dropped.Load(),
	}
}

func (d *Dispatcher) runOne(job Job) {
	ctx, cancel := context.WithTimeout(d.ctx, d.jobTimeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.New("job panicked")
				slog.Error("task panic", "job", job.Name, "panic", r)
			}
		}()
		return job.Run(ctx)
	}()
	if err != nil {
		d.failed.Add(1)
		slog.Warn("task failed", "job", job.Name, "error", err, "elapsed", time.Since(start))
		return
	}
	d.succeeded.Add(1)
	slog.Debug("task done", "job", job.Name, "elapsed", time.Since(start))
}
