// Package workerpool runs background work on an ants goroutine pool. A job
// that fails is retried with backoff; a job that panics is logged and never
// takes its siblings or the pool down with it.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/pitabwire/lingua/config"
)

const meterName = "github.com/pitabwire/lingua/workerpool"

var ErrPoolClosed = errors.New("worker pool is shut down")

// Options defines configurable options for the pool.
type Options struct {
	PoolCount          int
	SinglePoolCapacity int
	Concurrency        int
	ExpiryDuration     time.Duration
	Nonblocking        bool
	PreAlloc           bool
	PanicHandler       func(any)
	Logger             *util.LogEntry
	DisablePurge       bool
}

// Option defines a function that configures pool options.
type Option func(*Options)

// WithPoolCount sets the number of underlying pools.
func WithPoolCount(count int) Option {
	return func(opts *Options) {
		opts.PoolCount = count
	}
}

// WithSinglePoolCapacity sets the worker capacity of each pool.
func WithSinglePoolCapacity(capacity int) Option {
	return func(opts *Options) {
		opts.SinglePoolCapacity = capacity
	}
}

// WithConcurrency caps the number of tasks waiting for a worker.
func WithConcurrency(concurrency int) Option {
	return func(opts *Options) {
		opts.Concurrency = concurrency
	}
}

// WithPoolExpiryDuration sets how long an idle worker lives.
func WithPoolExpiryDuration(duration time.Duration) Option {
	return func(opts *Options) {
		opts.ExpiryDuration = duration
	}
}

// WithPoolNonblocking makes Submit fail instead of wait when the pool is full.
func WithPoolNonblocking(nonblocking bool) Option {
	return func(opts *Options) {
		opts.Nonblocking = nonblocking
	}
}

// WithPoolPanicHandler replaces the logging panic handler.
func WithPoolPanicHandler(handler func(any)) Option {
	return func(opts *Options) {
		opts.PanicHandler = handler
	}
}

func defaultOptions(cfg config.ConfigurationWorkerPool, log *util.LogEntry) *Options {
	opts := &Options{
		Concurrency:        runtime.NumCPU() * 10,
		SinglePoolCapacity: 100,
		PoolCount:          1,
		ExpiryDuration:     time.Second,
		Nonblocking:        false,
		Logger:             log,
	}
	if cfg != nil {
		if cfg.GetCPUFactor() > 0 {
			opts.Concurrency = runtime.NumCPU() * cfg.GetCPUFactor()
		}
		if cfg.GetCapacity() > 0 {
			opts.SinglePoolCapacity = cfg.GetCapacity()
		}
		if cfg.GetCount() > 0 {
			opts.PoolCount = cfg.GetCount()
		}
		opts.ExpiryDuration = cfg.GetExpiryDuration()
	}
	return opts
}

// pool is what the Manager needs from ants.Pool and ants.MultiPool.
type pool interface {
	Submit(task func()) error
	release()
}

type singlePool struct{ p *ants.Pool }

func (w singlePool) Submit(task func()) error { return w.p.Submit(task) }
func (w singlePool) release()                 { w.p.Release() }

type multiPool struct{ p *ants.MultiPool }

func (w multiPool) Submit(task func()) error { return w.p.Submit(task) }
func (w multiPool) release()                 { _ = w.p.ReleaseTimeout(time.Second) }

// Manager owns the goroutine pool.
type Manager struct {
	pool   pool
	closed atomic.Bool

	submitted metric.Int64Counter
	panics    metric.Int64Counter
}

// NewManager builds a pool sized from cfg. cfg may be nil for defaults.
func NewManager(ctx context.Context, cfg config.ConfigurationWorkerPool, opts ...Option) (*Manager, error) {
	log := util.Log(ctx).WithField("component", "workerpool")

	o := defaultOptions(cfg, log)
	for _, opt := range opts {
		opt(o)
	}

	m := &Manager{}
	meter := otel.Meter(meterName)
	m.submitted, _ = meter.Int64Counter("lingua/workerpool/submitted",
		metric.WithDescription("Tasks accepted by the worker pool"))
	m.panics, _ = meter.Int64Counter("lingua/workerpool/panics",
		metric.WithDescription("Tasks that panicked"))

	if o.PanicHandler == nil {
		o.PanicHandler = func(p any) {
			m.panics.Add(context.Background(), 1)
			log.WithField("panic", fmt.Sprint(p)).Error("worker task panicked")
		}
	}

	antsOpts := []ants.Option{
		ants.WithNonblocking(o.Nonblocking),
		ants.WithPanicHandler(o.PanicHandler),
		ants.WithLogger(o.Logger),
		ants.WithDisablePurge(o.DisablePurge),
	}
	if o.ExpiryDuration > 0 {
		antsOpts = append(antsOpts, ants.WithExpiryDuration(o.ExpiryDuration))
	}
	if o.PreAlloc {
		antsOpts = append(antsOpts, ants.WithPreAlloc(true))
	}
	if o.Concurrency > 0 && !o.Nonblocking {
		antsOpts = append(antsOpts, ants.WithMaxBlockingTasks(o.Concurrency))
	}

	if o.PoolCount <= 1 {
		p, err := ants.NewPool(o.SinglePoolCapacity, antsOpts...)
		if err != nil {
			return nil, fmt.Errorf("create worker pool: %w", err)
		}
		m.pool = singlePool{p: p}
		return m, nil
	}

	mp, err := ants.NewMultiPool(o.PoolCount, o.SinglePoolCapacity, ants.LeastTasks, antsOpts...)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	m.pool = multiPool{p: mp}
	return m, nil
}

// Submit schedules task on the pool.
func (m *Manager) Submit(ctx context.Context, task func()) error {
	if m == nil || m.pool == nil || m.closed.Load() {
		return ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.pool.Submit(task); err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	m.submitted.Add(ctx, 1)
	return nil
}

// Shutdown releases the workers. Calling it again is a no-op.
func (m *Manager) Shutdown(_ context.Context) error {
	if m == nil || m.pool == nil || !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.pool.release()
	return nil
}
