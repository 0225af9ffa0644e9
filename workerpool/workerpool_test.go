package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/lingua/config"
	"github.com/pitabwire/lingua/workerpool"
)

type WorkerPoolSuite struct {
	suite.Suite

	ctx     context.Context
	manager *workerpool.Manager
}

func TestWorkerPoolSuite(t *testing.T) {
	suite.Run(t, new(WorkerPoolSuite))
}

func (s *WorkerPoolSuite) SetupTest() {
	s.ctx = context.Background()
	m, err := workerpool.NewManager(s.ctx, &config.ConfigurationDefault{
		WorkerPoolCapacity: 8,
		WorkerPoolCount:    1,
	})
	s.Require().NoError(err)
	s.manager = m
}

func (s *WorkerPoolSuite) TearDownTest() {
	s.NoError(s.manager.Shutdown(s.ctx))
}

func (s *WorkerPoolSuite) TestJobDeliversResults() {
	job := workerpool.NewJob(func(ctx context.Context, results workerpool.ResultPipe[int]) error {
		for i := 1; i <= 3; i++ {
			if err := results.WriteResult(ctx, i); err != nil {
				return err
			}
		}
		return nil
	})
	s.Require().NoError(workerpool.Submit(s.ctx, s.manager, job))

	var got []int
	s.Require().NoError(workerpool.ConsumeResults(s.ctx, job, func(v int) {
		got = append(got, v)
	}))
	s.Equal([]int{1, 2, 3}, got)
	s.Equal(1, job.Runs())
}

func (s *WorkerPoolSuite) TestRetriesUntilSuccess() {
	var attempts atomic.Int32
	job := workerpool.NewJob(func(_ context.Context, _ workerpool.ResultPipe[struct{}]) error {
		if attempts.Add(1) < 3 {
			return errors.New("not yet")
		}
		return nil
	}, workerpool.WithRetries(3), workerpool.WithJobName("flaky"))

	s.Require().NoError(workerpool.Submit(s.ctx, s.manager, job))
	s.Require().NoError(workerpool.Await(s.ctx, job))
	s.Equal(int32(3), attempts.Load())
	s.Equal("flaky", job.Name())
	s.NotEmpty(job.ID())
}

func (s *WorkerPoolSuite) TestRetriesExhausted() {
	cause := errors.New("always broken")
	var attempts atomic.Int32
	job := workerpool.NewJob(func(_ context.Context, _ workerpool.ResultPipe[struct{}]) error {
		attempts.Add(1)
		return cause
	}, workerpool.WithRetries(1))

	s.Require().NoError(workerpool.Submit(s.ctx, s.manager, job))
	s.ErrorIs(workerpool.Await(s.ctx, job), cause)
	s.Equal(int32(2), attempts.Load())
	s.False(job.CanRun())
}

func (s *WorkerPoolSuite) TestPanickingJobDoesNotHurtSiblings() {
	bad := workerpool.NewJob(func(_ context.Context, _ workerpool.ResultPipe[string]) error {
		panic("boom")
	})
	good := workerpool.NewJob(func(ctx context.Context, results workerpool.ResultPipe[string]) error {
		return results.WriteResult(ctx, "ok")
	})

	s.Require().NoError(workerpool.Submit(s.ctx, s.manager, bad))
	s.Require().NoError(workerpool.Submit(s.ctx, s.manager, good))

	err := workerpool.Await(s.ctx, bad)
	s.Require().Error(err)
	s.Contains(err.Error(), "boom")

	var got []string
	s.Require().NoError(workerpool.ConsumeResults(s.ctx, good, func(v string) { got = append(got, v) }))
	s.Equal([]string{"ok"}, got)
}

func (s *WorkerPoolSuite) TestPanickingTaskIsRecoveredByPool() {
	var wg sync.WaitGroup
	wg.Add(1)
	s.Require().NoError(s.manager.Submit(s.ctx, func() {
		defer wg.Done()
		panic("raw task")
	}))
	wg.Wait()

	done := make(chan struct{})
	s.Require().NoError(s.manager.Submit(s.ctx, func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.Fail("pool stopped running tasks after a panic")
	}
}

func (s *WorkerPoolSuite) TestAwaitHonoursContext() {
	release := make(chan struct{})
	defer close(release)

	job := workerpool.NewJob(func(_ context.Context, _ workerpool.ResultPipe[int]) error {
		<-release
		return nil
	})
	s.Require().NoError(workerpool.Submit(s.ctx, s.manager, job))

	ctx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
	defer cancel()
	s.ErrorIs(workerpool.Await(ctx, job), context.DeadlineExceeded)
}

func (s *WorkerPoolSuite) TestWriteAfterCloseFails() {
	job := workerpool.NewJob(func(_ context.Context, _ workerpool.ResultPipe[int]) error {
		return nil
	})
	s.Require().NoError(workerpool.Submit(s.ctx, s.manager, job))
	s.Require().NoError(workerpool.Await(s.ctx, job))

	s.ErrorIs(job.WriteResult(s.ctx, 1), workerpool.ErrJobClosed)
}

func (s *WorkerPoolSuite) TestSubmitAfterShutdown() {
	s.Require().NoError(s.manager.Shutdown(s.ctx))
	s.Require().NoError(s.manager.Shutdown(s.ctx))

	err := s.manager.Submit(s.ctx, func() {})
	s.ErrorIs(err, workerpool.ErrPoolClosed)

	job := workerpool.NewJob(func(_ context.Context, _ workerpool.ResultPipe[int]) error { return nil })
	s.ErrorIs(workerpool.Submit(s.ctx, s.manager, job), workerpool.ErrPoolClosed)
}

func (s *WorkerPoolSuite) TestSubmitWithCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	s.ErrorIs(s.manager.Submit(ctx, func() {}), context.Canceled)
}

func (s *WorkerPoolSuite) TestMultiPool() {
	m, err := workerpool.NewManager(s.ctx, nil, workerpool.WithPoolCount(3), workerpool.WithSinglePoolCapacity(2))
	s.Require().NoError(err)
	defer func() { s.NoError(m.Shutdown(s.ctx)) }()

	var wg sync.WaitGroup
	var ran atomic.Int32
	for range 6 {
		wg.Add(1)
		s.Require().NoError(m.Submit(s.ctx, func() {
			defer wg.Done()
			ran.Add(1)
		}))
	}
	wg.Wait()
	s.Equal(int32(6), ran.Load())
}
