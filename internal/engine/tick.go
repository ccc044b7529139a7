// Runner - the optional auto-advance loop. Without it the world only moves
// when a client calls Advance or ApplyPolicy.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner advances a simulation on a fixed interval.
type Runner struct {
	Sim      *Simulation
	Interval time.Duration // Base interval between ticks

	// OnOutcome is called after every finished tick, skipped or not.
	OnOutcome func(out *Outcome)

	mu      sync.Mutex
	speed   float64 // 1.0 = one tick per Interval, 0 = paused
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRunner creates a runner with a default interval of one minute.
func NewRunner(sim *Simulation, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{Sim: sim, Interval: interval, speed: 1.0}
}

// Run starts the loop. Blocks until Stop is called or ctx is done.
func (r *Runner) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		cancel()
		return
	}
	r.running = true
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		cancel()
		close(done)
	}()

	slog.Info("runner started", "interval", r.Interval, "speed", r.Speed())
	for ctx.Err() == nil {
		speed := r.Speed()
		if speed <= 0 {
			// Paused, check again shortly.
			if !sleep(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()
		r.step(ctx)

		// Sleep for the remainder of the interval, adjusted for speed.
		target := time.Duration(float64(r.Interval) / speed)
		if elapsed := time.Since(start); elapsed < target {
			if !sleep(ctx, target-elapsed) {
				break
			}
		}
	}
	slog.Info("runner stopped")
}

// Stop halts the loop and waits for the current tick to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Speed returns the current speed multiplier.
func (r *Runner) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speed
}

// SetSpeed changes the speed multiplier. 0 pauses.
func (r *Runner) SetSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	r.mu.Lock()
	r.speed = speed
	r.mu.Unlock()
	slog.Info("runner speed changed", "speed", speed)
}

// step runs one tick if the world is ready.
func (r *Runner) step(ctx context.Context) {
	if !r.Sim.Initialized() {
		return
	}
	out, err := r.Sim.Advance(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("auto-advance failed", "error", err)
		}
		return
	}
	if r.OnOutcome != nil {
		r.OnOutcome(out)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
