package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dtorrez/rentora-api/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// Worker manages background jobs and the recurring billing schedules
type Worker struct {
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	queue         chan Job
	asyncSem      chan struct{}
	maxConcurrent int
	stats         WorkerStats
	statsMu       sync.RWMutex
	schedules     map[string]*ScheduleStatus
	schedMu       sync.RWMutex
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int   `json:"active_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	QueueLength   int   `json:"queue_length"`
	MaxConcurrent int   `json:"max_concurrent"`
}

// ScheduleStatus describes the last outcome of a named recurring job, so an
// operator can tell from /jobs/status whether last night's billing cycle ran
// and whether it failed.
type ScheduleStatus struct {
	Runs         int64      `json:"runs"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	LastDuration string     `json:"last_duration,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// NewWorker creates a worker with N concurrent processors
func NewWorker(numWorkers int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	// Allow 2x workers for async jobs
	asyncLimit := numWorkers * 2
	if asyncLimit < 10 {
		asyncLimit = 10
	}

	w := &Worker{
		ctx:           ctx,
		cancel:        cancel,
		queue:         make(chan Job, 100),
		asyncSem:      make(chan struct{}, asyncLimit),
		maxConcurrent: asyncLimit,
		schedules:     make(map[string]*ScheduleStatus),
	}

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}

	return w
}

// Enqueue adds a job to be processed by the worker pool
func (w *Worker) Enqueue(job Job) {
	select {
	case w.queue <- job:
	default:
		logger.Warn("[Worker] Queue full, running job synchronously")
		if err := job(w.ctx); err != nil {
			logger.Error(fmt.Sprintf("[Worker] Job error: %v", err))
		}
	}
}

// EnqueueAsync runs a job in a new goroutine (fire-and-forget), bounded by semaphore
func (w *Worker) EnqueueAsync(job Job) {
	go func() {
		// Acquire semaphore to limit concurrency
		w.asyncSem <- struct{}{}
		defer func() { <-w.asyncSem }()

		// Track in waitgroup
		w.wg.Add(1)
		defer w.wg.Done()

		w.trackJobStart()
		defer w.trackJobEnd()

		// Recover from panics
		defer func() {
			if r := recover(); r != nil {
				logger.Error(fmt.Sprintf("[Worker] Async job panic: %v", r))
				w.trackJobFailure()
			}
		}()

		if err := job(w.ctx); err != nil {
			logger.Error(fmt.Sprintf("[Worker] Async job error: %v", err))
			w.trackJobFailure()
		}
	}()
}

// process handles jobs from the queue
func (w *Worker) process(workerID int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case job, ok := <-w.queue:
			if !ok {
				return
			}
			w.trackJobStart()
			start := time.Now()
			if err := job(w.ctx); err != nil {
				logger.Error(fmt.Sprintf("[Worker %d] Job error: %v", workerID, err))
				w.trackJobFailure()
			} else {
				logger.Info(fmt.Sprintf("[Worker %d] Job completed in %v", workerID, time.Since(start)))
			}
			w.trackJobEnd()
		}
	}
}

// ScheduleEvery runs a named job at fixed intervals. The first run happens
// after the interval (not at startup).
func (w *Worker) ScheduleEvery(name string, interval time.Duration, job Job) {
	w.registerSchedule(name)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.runScheduledJob(name, job)
			}
		}
	}()
}

// ScheduleEveryImmediate runs a named job once at startup, then at fixed
// intervals. Use this when the process may restart so jobs run soon after
// start instead of waiting for the first interval.
func (w *Worker) ScheduleEveryImmediate(name string, interval time.Duration, job Job) {
	w.registerSchedule(name)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runScheduledJob(name, job)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.runScheduledJob(name, job)
			}
		}
	}()
}

// ScheduleDaily runs a named job every day at the given local time. Jobs that
// mail people run at a civil hour this way, not at whatever hour the process
// happened to start.
func (w *Worker) ScheduleDaily(name string, hour, minute int, job Job) {
	w.registerSchedule(name)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		timer := time.NewTimer(untilNextDaily(time.Now(), hour, minute))
		defer timer.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-timer.C:
				w.runScheduledJob(name, job)
				timer.Reset(untilNextDaily(time.Now(), hour, minute))
			}
		}
	}()
}

// untilNextDaily returns the wait until the next occurrence of hour:minute in
// now's location. A tick exactly on the mark schedules the following day.
func untilNextDaily(now time.Time, hour, minute int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

func (w *Worker) runScheduledJob(name string, job Job) {
	w.trackJobStart()
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			logger.Error(fmt.Sprintf("[Scheduler] %s failed: %v", name, err))
			w.trackJobFailure()
		} else {
			logger.Info(fmt.Sprintf("[Scheduler] %s completed in %v", name, time.Since(start)))
		}
		w.trackJobEnd()
		w.recordScheduledRun(name, start, time.Since(start), err)
	}()
	err = job(w.ctx)
}

func (w *Worker) registerSchedule(name string) {
	w.schedMu.Lock()
	defer w.schedMu.Unlock()
	if _, ok := w.schedules[name]; !ok {
		w.schedules[name] = &ScheduleStatus{}
	}
}

func (w *Worker) recordScheduledRun(name string, ranAt time.Time, took time.Duration, err error) {
	w.schedMu.Lock()
	defer w.schedMu.Unlock()
	st, ok := w.schedules[name]
	if !ok {
		st = &ScheduleStatus{}
		w.schedules[name] = st
	}
	st.Runs++
	at := ranAt
	st.LastRunAt = &at
	st.LastDuration = took.Round(time.Millisecond).String()
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
	}
}

// Schedules returns a snapshot of every named recurring job and its last outcome.
func (w *Worker) Schedules() map[string]ScheduleStatus {
	w.schedMu.RLock()
	defer w.schedMu.RUnlock()
	out := make(map[string]ScheduleStatus, len(w.schedules))
	for name, st := range w.schedules {
		s := *st
		if st.LastRunAt != nil {
			at := *st.LastRunAt
			s.LastRunAt = &at
		}
		out[name] = s
	}
	return out
}

// Shutdown gracefully stops all workers
func (w *Worker) Shutdown() {
	w.cancel()
	close(w.queue)
	w.wg.Wait()
}

// Context returns the worker's context for checking cancellation
func (w *Worker) Context() context.Context {
	return w.ctx
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	stats := w.stats
	stats.QueueLength = len(w.queue)
	stats.MaxConcurrent = w.maxConcurrent
	return stats
}

func (w *Worker) trackJobStart() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs++
}

func (w *Worker) trackJobEnd() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs--
	w.stats.CompletedJobs++
}

func (w *Worker) trackJobFailure() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	// CompletedJobs counts every finished job (trackJobEnd always runs);
	// FailedJobs is the subset that returned an error or panicked.
	w.stats.FailedJobs++
}
