package workerpool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pitabwire/util"
)

const (
	retryBaseDelay = 100 * time.Millisecond
	retryMaxDelay  = 30 * time.Second
	retryMaxShift  = 10
)

func retryDelay(run int) time.Duration {
	if run < 1 {
		run = 1
	}
	if run > retryMaxShift {
		run = retryMaxShift
	}
	delay := retryBaseDelay * time.Duration(1<<(run-1))
	if delay > retryMaxDelay {
		return retryMaxDelay
	}
	return delay
}

func finished(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrJobClosed)
}

// Submit schedules job on m. The caller may follow the outcome on the job's
// result channel.
func Submit[T any](ctx context.Context, m *Manager, job *Job[T]) error {
	if m == nil {
		return ErrPoolClosed
	}
	return m.Submit(ctx, run(ctx, m, job))
}

func run[T any](ctx context.Context, m *Manager, job *Job[T]) func() {
	return func() {
		log := util.Log(ctx).
			WithField("job", job.ID()).
			WithField("run", job.Runs())
		if job.Name() != "" {
			log = log.WithField("job_name", job.Name())
		}

		if job.process == nil {
			_ = job.WriteError(ctx, errors.New("job has no process function"))
			job.close()
			return
		}

		job.runs.Add(1)
		err := execute(ctx, job)
		if finished(err) {
			job.close()
			return
		}

		log = log.WithError(err).WithField("can_retry", job.CanRun())
		if !job.CanRun() {
			log.Error("job failed, retries exhausted")
			_ = job.WriteError(ctx, err)
			job.close()
			return
		}

		log.Warn("job failed, retrying")
		go resubmit(ctx, m, job, retryDelay(job.Runs()), err)
	}
}

// execute runs the job body, turning a panic into an error so the job is
// still closed and its waiter released.
func execute[T any](ctx context.Context, job *Job[T]) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return job.process(ctx, job)
}

func resubmit[T any](ctx context.Context, m *Manager, job *Job[T], delay time.Duration, cause error) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		job.close()
		return
	case <-timer.C:
	}

	if err := Submit(ctx, m, job); err != nil {
		util.Log(ctx).WithError(err).WithField("job", job.ID()).Error("could not resubmit job")
		_ = job.WriteError(ctx, fmt.Errorf("resubmit job: %w", cause))
		job.close()
	}
}
