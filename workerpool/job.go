package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/xid"
)

const defaultResultBufferSize = 10

var ErrJobClosed = errors.New("worker job is already closed")

// JobResult is either a value of type T or an error.
type JobResult[T any] interface {
	IsError() bool
	Error() error
	Item() T
}

type jobResult[T any] struct {
	item T
	err  error
}

func (j *jobResult[T]) IsError() bool { return j.err != nil }
func (j *jobResult[T]) Error() error  { return j.err }
func (j *jobResult[T]) Item() T       { return j.item }

// ResultPipe is how a running job reports to whoever submitted it.
type ResultPipe[T any] interface {
	WriteResult(ctx context.Context, val T) error
	WriteError(ctx context.Context, err error) error
}

// ProcessFunc is the body of a job.
type ProcessFunc[T any] func(ctx context.Context, results ResultPipe[T]) error

// Job is a unit of work with bounded retries and a result channel that is
// closed once the job has finished for good.
type Job[T any] struct {
	id      string
	name    string
	retries int
	runs    atomic.Int64
	process ProcessFunc[T]

	results chan JobResult[T]
	done    atomic.Bool
}

// JobOption configures a Job.
type JobOption func(*jobConfig)

type jobConfig struct {
	name    string
	retries int
	buffer  int
}

// WithRetries allows n further runs after a failed one.
func WithRetries(n int) JobOption {
	return func(c *jobConfig) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithResultBuffer sets the result channel capacity.
func WithResultBuffer(size int) JobOption {
	return func(c *jobConfig) {
		if size >= 0 {
			c.buffer = size
		}
	}
}

// WithJobName labels the job in logs.
func WithJobName(name string) JobOption {
	return func(c *jobConfig) {
		c.name = name
	}
}

// NewJob creates a job around process.
func NewJob[T any](process ProcessFunc[T], opts ...JobOption) *Job[T] {
	cfg := jobConfig{buffer: defaultResultBufferSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Job[T]{
		id:      xid.New().String(),
		name:    cfg.name,
		retries: cfg.retries,
		process: process,
		results: make(chan JobResult[T], cfg.buffer),
	}
}

func (j *Job[T]) ID() string   { return j.id }
func (j *Job[T]) Name() string { return j.name }
func (j *Job[T]) Runs() int    { return int(j.runs.Load()) }

// CanRun reports whether another run is allowed.
func (j *Job[T]) CanRun() bool {
	return j.Runs() <= j.retries
}

// ResultChan yields what the job writes; it is closed when the job finishes.
func (j *Job[T]) ResultChan() <-chan JobResult[T] {
	return j.results
}

func (j *Job[T]) WriteResult(ctx context.Context, val T) error {
	return j.write(ctx, &jobResult[T]{item: val})
}

func (j *Job[T]) WriteError(ctx context.Context, err error) error {
	return j.write(ctx, &jobResult[T]{err: err})
}

func (j *Job[T]) write(ctx context.Context, res JobResult[T]) error {
	if j.done.Load() {
		return ErrJobClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled while writing job result: %w", ctx.Err())
	case j.results <- res:
		return nil
	}
}

// ReadResult blocks for the next result. ok is false once the job is closed
// or ctx ends.
func (j *Job[T]) ReadResult(ctx context.Context) (JobResult[T], bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case res, ok := <-j.results:
		return res, ok
	}
}

func (j *Job[T]) close() {
	if j.done.CompareAndSwap(false, true) {
		close(j.results)
	}
}

// ConsumeResults hands every item to consumer until the job closes. The
// first error result stops consumption and is returned.
func ConsumeResults[T any](ctx context.Context, job *Job[T], consumer func(T)) error {
	for {
		res, ok := job.ReadResult(ctx)
		if !ok {
			return ctx.Err()
		}
		if res.IsError() {
			return res.Error()
		}
		consumer(res.Item())
	}
}

// Await waits for job to finish, discarding items, and returns the first
// error it reported.
func Await[T any](ctx context.Context, job *Job[T]) error {
	return ConsumeResults(ctx, job, func(T) {})
}
