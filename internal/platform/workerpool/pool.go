// Package workerpool provides bounded worker pools with explicit rejection
// policies and a registry that owns the process-wide pools used by the
// notification subsystem.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrSaturated is returned by Submit when a pool using PolicyReject has no
// queue slot and no worker capacity left.
var ErrSaturated = errors.New("worker pool saturated")

// ErrShutdown is returned by Submit after Shutdown has been called.
var ErrShutdown = errors.New("worker pool shut down")

// RejectionPolicy decides what happens to a task submitted to a saturated pool.
type RejectionPolicy int

const (
	// PolicyCallerRuns executes the task on the submitting goroutine. The
	// submitter absorbs the latency, which applies backpressure upstream
	// instead of dropping work.
	PolicyCallerRuns RejectionPolicy = iota
	// PolicyReject refuses the task and Submit returns ErrSaturated.
	PolicyReject
)

func (p RejectionPolicy) String() string {
	switch p {
	case PolicyCallerRuns:
		return "caller-runs"
	case PolicyReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Config describes a single pool. It is immutable after the pool is built.
type Config struct {
	Name          string
	Core          int // workers that run for the pool lifetime
	Max           int // upper bound including surge workers
	QueueCapacity int
	Policy        RejectionPolicy
	// KeepAlive is how long a surge worker waits for more work before
	// exiting. Zero means surge workers exit as soon as the queue is empty.
	KeepAlive time.Duration
}

// Validate reports configuration errors. Pools are built at process start,
// so a bad configuration should stop the process before it serves traffic.
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("workerpool: name is required")
	}
	if c.Core < 1 {
		return fmt.Errorf("workerpool %q: core size must be >= 1, got %d", c.Name, c.Core)
	}
	if c.Max < c.Core {
		return fmt.Errorf("workerpool %q: max size %d must be >= core size %d", c.Name, c.Max, c.Core)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("workerpool %q: queue capacity must be >= 0, got %d", c.Name, c.QueueCapacity)
	}
	return nil
}

// Pool is a bounded worker pool. Core workers are started eagerly; surge
// workers up to Max are started only when the queue is full, and exit again
// after KeepAlive of idleness.
type Pool struct {
	cfg    Config
	logger zerolog.Logger

	tasks   chan func()
	wg      sync.WaitGroup
	workers atomic.Int64

	mu     sync.Mutex
	closed bool
}

// New builds and starts a pool. The configuration is validated first.
func New(cfg Config, logger zerolog.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}

	p := &Pool{
		cfg:    cfg,
		logger: logger.With().Str("pool", cfg.Name).Logger(),
		tasks:  make(chan func(), cfg.QueueCapacity),
	}
	for i := 0; i < cfg.Core; i++ {
		p.workers.Add(1)
		p.wg.Add(1)
		go p.coreWorker()
	}
	return p, nil
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.cfg.Name }

// Submit schedules task for execution. It never blocks: when the queue is
// full it first tries to start a surge worker, then falls back to the
// configured rejection policy.
func (p *Pool) Submit(task func()) error {
	if task == nil {
		return errors.New("workerpool: nil task")
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrShutdown
	}

	select {
	case p.tasks <- task:
		p.mu.Unlock()
		return nil
	default:
	}

	// Queue is full. Start a surge worker if we are below max; the worker
	// is handed the task directly so it cannot be rejected.
	if int(p.workers.Load()) < p.cfg.Max {
		p.workers.Add(1)
		p.wg.Add(1)
		go p.surgeWorker(task)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	switch p.cfg.Policy {
	case PolicyCallerRuns:
		p.logger.Warn().Msg("pool saturated, running task on caller goroutine")
		p.run(task)
		return nil
	default:
		p.logger.Warn().Msg("pool saturated, task rejected")
		return ErrSaturated
	}
}

func (p *Pool) coreWorker() {
	defer p.wg.Done()
	defer p.workers.Add(-1)
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) surgeWorker(first func()) {
	defer p.wg.Done()
	defer p.workers.Add(-1)
	p.run(first)

	idle := time.NewTimer(p.cfg.KeepAlive)
	defer idle.Stop()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(task)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.cfg.KeepAlive)
		case <-idle.C:
			return
		}
	}
}

// run executes one task, containing panics so a bad task cannot kill a
// worker or the submitting goroutine under caller-runs.
func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("panic in pool task")
		}
	}()
	task()
}

// Shutdown stops accepting work and waits for queued and in-flight tasks to
// finish, up to the deadline on ctx. Tasks still running at the deadline are
// abandoned; Go provides no way to force-stop a goroutine.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info().Msg("pool drained")
		return nil
	case <-ctx.Done():
		p.logger.Warn().
			Int64("workers", p.workers.Load()).
			Msg("pool shutdown grace period expired, abandoning in-flight tasks")
		return ctx.Err()
	}
}
