package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/pkg/logger"
)

// PaymentScoreService scores tenants on how punctually they settle their
// invoices. The score feeds the lease overview so staff can spot chronic
// late payers.
type PaymentScoreService struct {
	userRepo    repository.UserRepository
	leaseRepo   repository.LeaseRepository
	invoiceRepo repository.InvoiceRepository
	paymentRepo repository.PaymentRepository
}

func NewPaymentScoreService(userRepo repository.UserRepository, leaseRepo repository.LeaseRepository, invoiceRepo repository.InvoiceRepository, paymentRepo repository.PaymentRepository) *PaymentScoreService {
	return &PaymentScoreService{
		userRepo:    userRepo,
		leaseRepo:   leaseRepo,
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
	}
}

// UpdateScore calculates and updates the payment score for a single tenant
func (s *PaymentScoreService) UpdateScore(ctx context.Context, userID uint) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	score := s.calculatePaymentScore(ctx, userID)

	user.PaymentScore = score
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update payment score: %w", err)
	}

	logger.Info(fmt.Sprintf("[PaymentScoreService] Updated payment score for user %d: %d", userID, score))
	return nil
}

// UpdateAllScores updates payment scores for all users
func (s *PaymentScoreService) UpdateAllScores(ctx context.Context) error {
	logger.Info("[PaymentScoreService] Updating all tenant payment scores...")

	// Process users in batches
	page := 1
	pageSize := 100
	totalProcessed := 0

	for {
		query := repository.NewListQuery()
		query.Page = page
		query.PerPage = pageSize

		users, total, err := s.userRepo.List(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to fetch users page %d: %w", page, err)
		}

		if len(users) == 0 {
			break
		}

		for _, user := range users {
			if user.Role != models.RoleTenant {
				continue
			}
			if err := s.UpdateScore(ctx, user.ID); err != nil {
				logger.Error(fmt.Sprintf("[PaymentScoreService] Error updating score for user %d: %v", user.ID, err))
				continue
			}
			totalProcessed++
		}

		if int64(page*pageSize) >= total || len(users) < pageSize {
			break
		}

		page++
	}

	logger.Info(fmt.Sprintf("[PaymentScoreService] Updated payment scores for %d tenants", totalProcessed))
	return nil
}

// calculatePaymentScore scores a tenant from their invoice payment history
func (s *PaymentScoreService) calculatePaymentScore(ctx context.Context, userID uint) int {
	baseScore := 500 // Starting score

	leases, err := s.leaseRepo.FindByTenant(ctx, userID)
	if err != nil {
		return baseScore
	}

	today := time.Now()

	for _, lease := range leases {
		invoices, err := s.invoiceRepo.FindByLease(ctx, lease.ID)
		if err != nil {
			continue
		}

		allSettled := len(invoices) > 0
		for i := range invoices {
			invoice := &invoices[i]

			switch invoice.Status {
			case models.InvoiceStatusPaid:
				if invoice.DueDate == nil {
					baseScore += 5
					continue
				}
				daysLate := s.daysLate(ctx, invoice)

				if daysLate <= 0 {
					// On-time payment: +5 points
					baseScore += 5
				} else if daysLate <= 7 {
					// 1-7 days late: -2 points
					baseScore -= 2
				} else if daysLate <= 30 {
					// 8-30 days late: -5 points
					baseScore -= 5
				} else {
					// 30+ days late: -10 points
					baseScore -= 10
				}
			case models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid:
				allSettled = false
				// Penalize invoices sitting overdue right now
				if invoice.DueDate != nil && invoice.DueDate.Before(today) {
					baseScore -= 5
				}
			}
		}

		// Bonus for leases that ended with everything settled
		if lease.Status != models.LeaseStatusActive && allSettled {
			baseScore += 50
		}
	}

	// Ensure score stays within reasonable bounds
	if baseScore < 300 {
		baseScore = 300
	}
	if baseScore > 850 {
		baseScore = 850
	}

	return baseScore
}

// daysLate measures how far past the due date an invoice was fully settled,
// using the date of the last completed payment.
func (s *PaymentScoreService) daysLate(ctx context.Context, invoice *models.Invoice) int {
	payments, err := s.paymentRepo.FindByInvoice(ctx, invoice.ID)
	if err != nil {
		return 0
	}

	var settledAt time.Time
	for i := range payments {
		if payments[i].Status != models.PaymentStatusCompleted {
			continue
		}
		if payments[i].PaymentDate.After(settledAt) {
			settledAt = payments[i].PaymentDate
		}
	}
	if settledAt.IsZero() {
		return 0
	}

	return int(settledAt.Sub(dateOnly(*invoice.DueDate)).Hours() / 24)
}
