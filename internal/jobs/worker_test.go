package jobs

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dtorrez/rentora-api/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.Setup("test")
	os.Exit(m.Run())
}

func TestWorker_Enqueue_ProcessesJob(t *testing.T) {
	worker := NewWorker(1)
	defer worker.Shutdown()

	done := make(chan struct{})
	worker.Enqueue(func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job was not processed")
	}
}

func TestWorker_Enqueue_FallsBackToSyncWhenQueueFull(t *testing.T) {
	// No workers drain the queue, so the buffer fills up
	worker := NewWorker(0)
	defer worker.Shutdown()

	for i := 0; i < 100; i++ {
		worker.Enqueue(func(ctx context.Context) error { return nil })
	}
	assert.Equal(t, 100, worker.GetStats().QueueLength)

	// The next job cannot be queued and runs on the calling goroutine
	ran := false
	worker.Enqueue(func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran)
}

func TestWorker_EnqueueAsync_RunsJob(t *testing.T) {
	worker := NewWorker(0)
	defer worker.Shutdown()

	done := make(chan struct{})
	worker.EnqueueAsync(func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async job did not run")
	}
}

func TestWorker_EnqueueAsync_RecoversPanic(t *testing.T) {
	worker := NewWorker(0)

	worker.EnqueueAsync(func(ctx context.Context) error {
		panic("boom")
	})

	// Give the goroutine time to start, then wait for it
	time.Sleep(50 * time.Millisecond)
	worker.Shutdown()

	stats := worker.GetStats()
	assert.Equal(t, int64(1), stats.FailedJobs)
	assert.Equal(t, int64(1), stats.CompletedJobs, "a panicked job still counts as finished")
	assert.Equal(t, 0, stats.ActiveJobs)
}

func TestWorker_EnqueueAsync_CountsFailures(t *testing.T) {
	worker := NewWorker(0)

	worker.EnqueueAsync(func(ctx context.Context) error {
		return errors.New("transient")
	})
	worker.EnqueueAsync(func(ctx context.Context) error {
		return nil
	})

	time.Sleep(50 * time.Millisecond)
	worker.Shutdown()

	stats := worker.GetStats()
	assert.Equal(t, int64(2), stats.CompletedJobs)
	assert.Equal(t, int64(1), stats.FailedJobs)
}

func TestWorker_ScheduleEvery_FirstRunWaitsForInterval(t *testing.T) {
	worker := NewWorker(0)
	defer worker.Shutdown()

	var runs atomic.Int32
	worker.ScheduleEvery("tick", 30*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	// No run at startup
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	// Ticks accumulate afterwards
	time.Sleep(100 * time.Millisecond)
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestWorker_ScheduleEveryImmediate_RunsAtStartup(t *testing.T) {
	worker := NewWorker(0)
	defer worker.Shutdown()

	var runs atomic.Int32
	worker.ScheduleEveryImmediate("boot", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestWorker_Schedules_TracksOutcomePerJob(t *testing.T) {
	worker := NewWorker(0)
	defer worker.Shutdown()

	worker.ScheduleEveryImmediate("nightly", time.Hour, func(ctx context.Context) error {
		return errors.New("smtp down")
	})
	worker.ScheduleEvery("waiting", time.Hour, func(ctx context.Context) error {
		return nil
	})

	time.Sleep(50 * time.Millisecond)
	schedules := worker.Schedules()

	nightly := schedules["nightly"]
	assert.Equal(t, int64(1), nightly.Runs)
	assert.Equal(t, "smtp down", nightly.LastError)
	assert.NotNil(t, nightly.LastRunAt)

	// Registered jobs show up before their first run
	waiting := schedules["waiting"]
	assert.Equal(t, int64(0), waiting.Runs)
	assert.Nil(t, waiting.LastRunAt)
}

func TestWorker_Schedules_ErrorClearsOnSuccess(t *testing.T) {
	worker := NewWorker(0)
	defer worker.Shutdown()

	var calls atomic.Int32
	worker.ScheduleEvery("flaky", 20*time.Millisecond, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	// Wait for at least two runs
	deadline := time.Now().Add(time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// Let the second run finish recording
	time.Sleep(20 * time.Millisecond)

	flaky := worker.Schedules()["flaky"]
	assert.GreaterOrEqual(t, flaky.Runs, int64(2))
	assert.Empty(t, flaky.LastError, "a later clean run must clear the error")
}

func TestUntilNextDaily(t *testing.T) {
	loc := time.UTC
	morning := time.Date(2025, 3, 10, 6, 30, 0, 0, loc)

	// Later the same day
	assert.Equal(t, 90*time.Minute, untilNextDaily(morning, 8, 0))

	// Already past, so tomorrow
	assert.Equal(t, 19*time.Hour+30*time.Minute, untilNextDaily(morning, 2, 0))

	// Exactly on the mark schedules the following day
	assert.Equal(t, 24*time.Hour, untilNextDaily(morning, 6, 30))
}

func TestWorker_Shutdown_WaitsForRunningJobs(t *testing.T) {
	worker := NewWorker(0)

	var finished atomic.Bool
	worker.EnqueueAsync(func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	// Let the goroutine register itself before shutting down
	time.Sleep(20 * time.Millisecond)
	worker.Shutdown()

	assert.True(t, finished.Load(), "shutdown must wait for in-flight jobs")
	assert.Error(t, worker.Context().Err())
}

func TestWorker_GetStats_ReportsConcurrencyLimit(t *testing.T) {
	worker := NewWorker(0)
	defer worker.Shutdown()
	assert.Equal(t, 10, worker.GetStats().MaxConcurrent, "floor of ten async slots")

	big := NewWorker(8)
	defer big.Shutdown()
	assert.Equal(t, 16, big.GetStats().MaxConcurrent)
}
