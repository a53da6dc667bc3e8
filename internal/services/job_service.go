package services

import (
	"context"

	"github.com/dtorrez/rentora-api/internal/jobs"
)

// JobService exposes worker stats and lets admins trigger the scheduled
// billing jobs on demand instead of waiting for the next tick.
type JobService struct {
	worker       *jobs.Worker
	invoiceSvc   *InvoiceService
	leaseSvc     *LeaseService
	scoreSvc     *PaymentScoreService
	analyticsSvc *AnalyticsService
}

func NewJobService(worker *jobs.Worker, invoiceSvc *InvoiceService, leaseSvc *LeaseService, scoreSvc *PaymentScoreService, analyticsSvc *AnalyticsService) *JobService {
	return &JobService{
		worker:       worker,
		invoiceSvc:   invoiceSvc,
		leaseSvc:     leaseSvc,
		scoreSvc:     scoreSvc,
		analyticsSvc: analyticsSvc,
	}
}

func (s *JobService) GetStatus() map[string]interface{} {
	stats := s.worker.GetStats()
	return map[string]interface{}{
		"active_jobs":    stats.ActiveJobs,
		"completed_jobs": stats.CompletedJobs,
		"failed_jobs":    stats.FailedJobs,
		"queue_length":   stats.QueueLength,
		"max_concurrent": stats.MaxConcurrent,
		"schedules":      s.worker.Schedules(),
	}
}

// TriggerBillingCycle enqueues an immediate billing cycle run
func (s *JobService) TriggerBillingCycle() {
	s.worker.Enqueue(func(ctx context.Context) error {
		return s.invoiceSvc.RunBillingCycle(ctx)
	})
}

// TriggerReminders enqueues the overdue and upcoming invoice reminders
func (s *JobService) TriggerReminders() {
	s.worker.Enqueue(func(ctx context.Context) error {
		if err := s.invoiceSvc.SendOverdueReminders(ctx); err != nil {
			return err
		}
		return s.invoiceSvc.SendUpcomingReminders(ctx)
	})
}

// TriggerLeaseExpiry enqueues an immediate pass over ended leases
func (s *JobService) TriggerLeaseExpiry() {
	s.worker.Enqueue(func(ctx context.Context) error {
		return s.leaseSvc.ExpireEndedLeases(ctx)
	})
}

// TriggerScoreRefresh enqueues a recalculation of all tenant payment scores
func (s *JobService) TriggerScoreRefresh() {
	s.worker.Enqueue(func(ctx context.Context) error {
		return s.scoreSvc.UpdateAllScores(ctx)
	})
}

// TriggerAnalyticsRefresh enqueues an analytics cache rebuild
func (s *JobService) TriggerAnalyticsRefresh() {
	s.worker.Enqueue(func(ctx context.Context) error {
		return s.analyticsSvc.RefreshCache(ctx)
	})
}
