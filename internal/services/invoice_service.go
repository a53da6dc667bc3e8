package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dtorrez/rentora-api/internal/config"
	"github.com/dtorrez/rentora-api/internal/jobs"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/internal/statemachine"
	"github.com/dtorrez/rentora-api/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// dueSoonWindowDays controls how far ahead the upcoming-due reminder looks.
const dueSoonWindowDays = 3

// InvoiceService generates invoices from lease charges and drives them
// through their lifecycle (draft, issued, paid, voided).
type InvoiceService struct {
	repos           *repository.Repositories
	prorationSvc    *ProrationService
	notificationSvc *NotificationService
	emailSvc        *EmailService
	auditSvc        *AuditService
	worker          *jobs.Worker
	cfg             *config.Config
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	repos *repository.Repositories,
	prorationSvc *ProrationService,
	notificationSvc *NotificationService,
	emailSvc *EmailService,
	auditSvc *AuditService,
	worker *jobs.Worker,
	cfg *config.Config,
) *InvoiceService {
	return &InvoiceService{
		repos:           repos,
		prorationSvc:    prorationSvc,
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		auditSvc:        auditSvc,
		worker:          worker,
		cfg:             cfg,
	}
}

// FindByID returns an invoice with its lease, lines and payments loaded.
func (s *InvoiceService) FindByID(ctx context.Context, id uint) (*models.Invoice, error) {
	invoice, err := s.repos.Invoice.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return invoice, nil
}

// FindByGUID returns an invoice looked up by its public identifier.
func (s *InvoiceService) FindByGUID(ctx context.Context, guid string) (*models.Invoice, error) {
	invoice, err := s.repos.Invoice.FindByGUID(ctx, guid)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return invoice, nil
}

// List returns invoices matching the query with the total count.
func (s *InvoiceService) List(ctx context.Context, query *repository.InvoiceQuery) ([]models.Invoice, int64, error) {
	return s.repos.Invoice.List(ctx, query)
}

// FindByLease returns every invoice of a lease, newest period first.
func (s *InvoiceService) FindByLease(ctx context.Context, leaseID uint) ([]models.Invoice, error) {
	return s.repos.Invoice.FindByLease(ctx, leaseID)
}

// GetStats returns invoice counts per status for an organization.
func (s *InvoiceService) GetStats(ctx context.Context, orgID uint) (*repository.InvoiceStats, error) {
	return s.repos.Invoice.GetStats(ctx, orgID)
}

// GetMonthlyStats returns the current month's billing totals for an organization.
func (s *InvoiceService) GetMonthlyStats(ctx context.Context, orgID uint) (*repository.BillingStats, error) {
	return s.repos.Invoice.GetMonthlyStats(ctx, orgID)
}

// Generate creates the invoice of a lease for one billing period, or rebuilds
// the existing draft for that same period. Regenerating is idempotent: the
// draft keeps its id and number, its lines are replaced and its totals
// recomputed. Once any non-draft invoice exists for the period (issued, paid
// or voided) the period is closed and generation is refused.
func (s *InvoiceService) Generate(ctx context.Context, leaseID uint, periodStart, periodEnd time.Time, actorID uint, ip, userAgent string) (*models.Invoice, error) {
	periodStart = dateOnly(periodStart)
	periodEnd = dateOnly(periodEnd)
	if periodEnd.Before(periodStart) {
		return nil, fmt.Errorf("%w: el período de facturación termina antes de empezar", ErrInvalidArgument)
	}

	lease, err := s.repos.Lease.FindByIDWithDetails(ctx, leaseID)
	if err != nil {
		return nil, translateRepoError(err)
	}

	lines, subtotal, taxAmount, total, err := s.buildLines(lease, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: el contrato #%d no tiene cargos facturables en el período", ErrBusinessRule, lease.ID)
	}

	var invoice *models.Invoice
	err = s.repos.Atomically(ctx, func(tx *repository.Repositories) error {
		existing, err := tx.Invoice.FindForPeriod(ctx, lease.ID, periodStart, periodEnd)
		if err != nil {
			return err
		}

		var draft *models.Invoice
		for i := range existing {
			if existing[i].Status != models.InvoiceStatusDraft {
				return fmt.Errorf("%w: ya existe la factura %s (%s) para este período",
					ErrInvalidState, invoiceRef(&existing[i]), existing[i].Status)
			}
			draft = &existing[i]
		}

		if draft != nil {
			draft.Subtotal = subtotal
			draft.TaxAmount = taxAmount
			draft.TotalAmount = total
			draft.BalanceAmount = roundMoney(decimal.NewFromFloat(total).
				Sub(decimal.NewFromFloat(draft.PaidAmount)).InexactFloat64())
			if err := tx.Invoice.UpdateWithLock(ctx, draft); err != nil {
				return translateRepoError(err)
			}
			if err := tx.Invoice.ReplaceLines(ctx, draft.ID, lines); err != nil {
				return err
			}
			invoice = draft
			return nil
		}

		seq, err := tx.Sequence.Next(ctx, lease.OrgID, models.SequenceTypeInvoice)
		if err != nil {
			return fmt.Errorf("failed to reserve invoice number: %w", err)
		}
		number := models.FormatSequenceNumber(models.SequenceTypeInvoice, seq)
		dueDate := periodStart.AddDate(0, 0, lease.DueDays)

		created := &models.Invoice{
			GUID:          uuid.NewString(),
			OrgID:         lease.OrgID,
			LeaseID:       lease.ID,
			InvoiceNumber: &number,
			PeriodStart:   periodStart,
			PeriodEnd:     periodEnd,
			Status:        models.InvoiceStatusDraft,
			Subtotal:      subtotal,
			TaxAmount:     taxAmount,
			TotalAmount:   total,
			PaidAmount:    0,
			BalanceAmount: total,
			Currency:      lease.Currency,
			DueDate:       &dueDate,
		}
		if err := tx.Invoice.Create(ctx, created); err != nil {
			return translateRepoError(err)
		}
		if err := tx.Invoice.ReplaceLines(ctx, created.ID, lines); err != nil {
			return err
		}
		invoice = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	invoice.Lines = lines

	if actorID != 0 {
		s.auditSvc.Log(ctx, actorID, "GENERATE", "Invoice", invoice.ID,
			fmt.Sprintf("Factura %s generada para contrato #%d (período %s a %s)",
				invoiceRef(invoice), lease.ID,
				periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02")), ip, userAgent)
	}

	return invoice, nil
}

// buildLines turns the lease charges effective in the period into invoice
// lines. The usage window of each charge is the overlap of the lease
// occupancy with the charge's own effective range; charges that never touch
// the period produce no line.
func (s *InvoiceService) buildLines(lease *models.Lease, periodStart, periodEnd time.Time) ([]models.InvoiceLine, float64, float64, float64, error) {
	occupancyStart := dateOnly(lease.StartDate)
	occupancyEnd := periodEnd
	if end := lease.OccupancyEnd(); end != nil {
		occupancyEnd = dateOnly(*end)
	}

	var lines []models.InvoiceLine
	subtotal := decimal.Zero
	taxTotal := decimal.Zero

	for i := range lease.Charges {
		charge := &lease.Charges[i]
		if !charge.EffectiveIn(periodStart, periodEnd) {
			continue
		}

		usageStart := occupancyStart
		if charge.EffectiveFrom != nil && dateOnly(*charge.EffectiveFrom).After(usageStart) {
			usageStart = dateOnly(*charge.EffectiveFrom)
		}
		usageEnd := occupancyEnd
		if charge.EffectiveTo != nil && dateOnly(*charge.EffectiveTo).Before(usageEnd) {
			usageEnd = dateOnly(*charge.EffectiveTo)
		}
		if usageEnd.Before(usageStart) {
			continue
		}

		amount, prorated, err := s.prorationSvc.ProrateCharge(charge, usageStart, usageEnd, periodStart, periodEnd)
		if err != nil {
			return nil, 0, 0, 0, err
		}
		if amount == 0 {
			continue
		}

		serviceStart, serviceEnd, _ := overlapWindow(usageStart, usageEnd, periodStart, periodEnd)

		lineAmount := decimal.NewFromFloat(amount)
		lineTax := lineAmount.Mul(decimal.NewFromFloat(charge.TaxRate)).
			Div(decimal.NewFromInt(100)).Round(2)

		lines = append(lines, models.InvoiceLine{
			ChargeType:   charge.ChargeType,
			Description:  charge.Description,
			Quantity:     1,
			UnitAmount:   charge.Amount,
			Amount:       amount,
			TaxRate:      charge.TaxRate,
			TaxAmount:    lineTax.InexactFloat64(),
			ServiceStart: serviceStart,
			ServiceEnd:   serviceEnd,
			Prorated:     prorated,
		})

		subtotal = subtotal.Add(lineAmount)
		taxTotal = taxTotal.Add(lineTax)
	}

	total := subtotal.Add(taxTotal)
	return lines,
		subtotal.Round(2).InexactFloat64(),
		taxTotal.Round(2).InexactFloat64(),
		total.Round(2).InexactFloat64(),
		nil
}

// Issue moves a draft invoice to issued, stamps the issue time and makes
// sure it carries a document number and a due date.
func (s *InvoiceService) Issue(ctx context.Context, id uint, lockVersion int, actorID uint, ip, userAgent string) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.repos.Atomically(ctx, func(tx *repository.Repositories) error {
		inv, err := tx.Invoice.FindByID(ctx, id)
		if err != nil {
			return translateRepoError(err)
		}
		if lockVersion > 0 && inv.LockVersion != lockVersion {
			return fmt.Errorf("%w: la factura fue modificada, recarga e intenta de nuevo", ErrConcurrencyConflict)
		}

		fsm := statemachine.NewInvoiceFSM(inv)
		if err := fsm.Issue(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}

		now := time.Now()
		inv.IssuedAt = &now
		if inv.InvoiceNumber == nil {
			seq, err := tx.Sequence.Next(ctx, inv.OrgID, models.SequenceTypeInvoice)
			if err != nil {
				return fmt.Errorf("failed to reserve invoice number: %w", err)
			}
			number := models.FormatSequenceNumber(models.SequenceTypeInvoice, seq)
			inv.InvoiceNumber = &number
		}
		if inv.DueDate == nil {
			due := dateOnly(now).AddDate(0, 0, s.cfg.DueDays)
			inv.DueDate = &due
		}

		if err := tx.Invoice.UpdateWithLock(ctx, inv); err != nil {
			return translateRepoError(err)
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Notify tenant
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		full, err := s.repos.Invoice.FindByIDWithDetails(ctx, invoice.ID)
		if err != nil {
			return err
		}
		if err := s.notificationSvc.NotifyUser(ctx, full.Lease.TenantUserID,
			"Factura emitida",
			fmt.Sprintf("Tu factura %s por L%.2f vence el %s",
				invoiceRef(full), full.TotalAmount, full.DueDate.Format("2006-01-02")),
			models.NotificationTypeInvoiceIssued); err != nil {
			return err
		}
		return s.emailSvc.SendInvoiceIssued(ctx, full)
	})

	if actorID != 0 {
		s.auditSvc.Log(ctx, actorID, "ISSUE", "Invoice", invoice.ID,
			fmt.Sprintf("Factura %s emitida por L%.2f", invoiceRef(invoice), invoice.TotalAmount), ip, userAgent)
	}

	return invoice, nil
}

// Void cancels an invoice that has no money applied. A reason is mandatory
// so the gap in the number sequence stays explainable.
func (s *InvoiceService) Void(ctx context.Context, id uint, lockVersion int, reason string, actorID uint, ip, userAgent string) (*models.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: se requiere el motivo de anulación", ErrInvalidArgument)
	}

	var invoice *models.Invoice
	err := s.repos.Atomically(ctx, func(tx *repository.Repositories) error {
		inv, err := tx.Invoice.FindByID(ctx, id)
		if err != nil {
			return translateRepoError(err)
		}
		if lockVersion > 0 && inv.LockVersion != lockVersion {
			return fmt.Errorf("%w: la factura fue modificada, recarga e intenta de nuevo", ErrConcurrencyConflict)
		}

		fsm := statemachine.NewInvoiceFSM(inv)
		if err := fsm.Void(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}

		now := time.Now()
		inv.VoidedAt = &now
		inv.VoidReason = &reason

		if err := tx.Invoice.UpdateWithLock(ctx, inv); err != nil {
			return translateRepoError(err)
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Notify tenant
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		full, err := s.repos.Invoice.FindByIDWithDetails(ctx, invoice.ID)
		if err != nil {
			return err
		}
		return s.notificationSvc.NotifyUser(ctx, full.Lease.TenantUserID,
			"Factura anulada",
			fmt.Sprintf("La factura %s fue anulada", invoiceRef(full)),
			models.NotificationTypeInvoiceVoided)
	})

	if actorID != 0 {
		s.auditSvc.Log(ctx, actorID, "VOID", "Invoice", invoice.ID,
			fmt.Sprintf("Factura %s anulada: %s", invoiceRef(invoice), reason), ip, userAgent)
	}

	return invoice, nil
}

// RunBillingCycle generates the current period's invoice for every active
// lease. Periods already invoiced are skipped, so the job can run daily
// without producing duplicates.
func (s *InvoiceService) RunBillingCycle(ctx context.Context) error {
	leases, err := s.repos.Lease.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active leases: %w", err)
	}

	generated, issued, skipped, failed := 0, 0, 0, 0
	now := time.Now()

	for i := range leases {
		lease := &leases[i]
		periodStart, periodEnd := currentBillingPeriod(lease, now)

		// Occupancy that never touches the period produces nothing
		if dateOnly(lease.StartDate).After(periodEnd) {
			skipped++
			continue
		}
		if end := lease.OccupancyEnd(); end != nil && dateOnly(*end).Before(periodStart) {
			skipped++
			continue
		}

		invoice, err := s.Generate(ctx, lease.ID, periodStart, periodEnd, 0, "", "")
		if err != nil {
			if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrBusinessRule) {
				skipped++
				continue
			}
			failed++
			logger.Warn(fmt.Sprintf("[Billing cycle] Failed to generate invoice for lease %d: %v", lease.ID, err))
			continue
		}
		generated++

		if s.cfg.AutoIssueInvoices && invoice.Status == models.InvoiceStatusDraft {
			if _, err := s.Issue(ctx, invoice.ID, 0, 0, "", ""); err != nil {
				logger.Warn(fmt.Sprintf("[Billing cycle] Failed to auto-issue invoice %d: %v", invoice.ID, err))
				continue
			}
			issued++
		}
	}

	logger.Info(fmt.Sprintf("[Billing cycle] Generated %d invoice(s), auto-issued %d, skipped %d, failed %d",
		generated, issued, skipped, failed))
	return nil
}

// SendOverdueReminders emails each tenant a digest of their overdue invoices
// and records the send, so a tenant is nagged at most once a week per invoice.
func (s *InvoiceService) SendOverdueReminders(ctx context.Context) error {
	invoices, err := s.repos.Invoice.FindOverdueForActiveLeases(ctx)
	if err != nil {
		return fmt.Errorf("failed to find overdue invoices: %w", err)
	}
	if len(invoices) == 0 {
		logger.Info("[Overdue reminder] No overdue invoices found")
		return nil
	}

	invoicesByUser := make(map[uint][]models.Invoice)
	for _, invoice := range invoices {
		invoicesByUser[invoice.Lease.TenantUserID] = append(invoicesByUser[invoice.Lease.TenantUserID], invoice)
	}

	sent, failed := 0, 0
	for userID, userInvoices := range invoicesByUser {
		user, err := s.repos.User.FindByID(ctx, userID)
		if err != nil {
			failed++
			logger.Warn(fmt.Sprintf("[Overdue reminder] Failed to load user %d: %v", userID, err))
			continue
		}

		if err := s.emailSvc.SendOverdueInvoicesReminder(ctx, user, userInvoices); err != nil {
			failed++
			logger.Warn(fmt.Sprintf("[Overdue reminder] Failed to email user %d: %v", userID, err))
			continue
		}

		s.notificationSvc.NotifyUser(ctx, userID,
			"Facturas vencidas",
			fmt.Sprintf("Tienes %d factura(s) vencida(s) pendientes de pago", len(userInvoices)),
			models.NotificationTypeInvoiceOverdue)

		ids := make([]uint, 0, len(userInvoices))
		for _, invoice := range userInvoices {
			ids = append(ids, invoice.ID)
		}
		if err := s.repos.Invoice.MarkOverdueReminderSent(ctx, ids); err != nil {
			logger.Warn(fmt.Sprintf("[Overdue reminder] Failed to mark invoices as reminded for user %d: %v", userID, err))
		}
		sent++
	}

	logger.Info(fmt.Sprintf("[Overdue reminder] Sent %d reminder email(s), %d failed", sent, failed))
	return nil
}

// SendUpcomingReminders emails each tenant a digest of invoices due within
// the next few days, once per invoice.
func (s *InvoiceService) SendUpcomingReminders(ctx context.Context) error {
	invoices, err := s.repos.Invoice.FindDueSoonForActiveLeases(ctx, dueSoonWindowDays)
	if err != nil {
		return fmt.Errorf("failed to find upcoming invoices: %w", err)
	}
	if len(invoices) == 0 {
		logger.Info("[Upcoming reminder] No invoices due soon")
		return nil
	}

	invoicesByUser := make(map[uint][]models.Invoice)
	for _, invoice := range invoices {
		invoicesByUser[invoice.Lease.TenantUserID] = append(invoicesByUser[invoice.Lease.TenantUserID], invoice)
	}

	sent, failed := 0, 0
	for userID, userInvoices := range invoicesByUser {
		user, err := s.repos.User.FindByID(ctx, userID)
		if err != nil {
			failed++
			logger.Warn(fmt.Sprintf("[Upcoming reminder] Failed to load user %d: %v", userID, err))
			continue
		}

		if err := s.emailSvc.SendUpcomingInvoicesReminder(ctx, user, userInvoices); err != nil {
			failed++
			logger.Warn(fmt.Sprintf("[Upcoming reminder] Failed to email user %d: %v", userID, err))
			continue
		}

		s.notificationSvc.NotifyUser(ctx, userID,
			"Facturas por vencer",
			fmt.Sprintf("Tienes %d factura(s) que vencen pronto", len(userInvoices)),
			models.NotificationTypeInvoiceDueSoon)

		ids := make([]uint, 0, len(userInvoices))
		for _, invoice := range userInvoices {
			ids = append(ids, invoice.ID)
		}
		if err := s.repos.Invoice.MarkUpcomingReminderSent(ctx, ids); err != nil {
			logger.Warn(fmt.Sprintf("[Upcoming reminder] Failed to mark invoices as reminded for user %d: %v", userID, err))
		}
		sent++
	}

	logger.Info(fmt.Sprintf("[Upcoming reminder] Sent %d reminder email(s), %d failed", sent, failed))
	return nil
}

// applyPaymentToInvoice credits an amount against an invoice and advances
// its status. Every code path that settles money runs through here; nothing
// else may touch PaidAmount or BalanceAmount.
func applyPaymentToInvoice(ctx context.Context, invoice *models.Invoice, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: el monto debe ser mayor que cero", ErrInvalidArgument)
	}
	if !invoice.MayApplyPayment() {
		return fmt.Errorf("%w: la factura %s no acepta pagos en estado %s",
			ErrInvalidState, invoiceRef(invoice), invoice.Status)
	}

	balance := decimal.NewFromFloat(invoice.BalanceAmount)
	credit := decimal.NewFromFloat(amount)
	if credit.GreaterThan(balance) {
		return fmt.Errorf("%w: el pago de L%s excede el saldo de L%s",
			ErrBusinessRule, credit.StringFixed(2), balance.StringFixed(2))
	}

	paid := decimal.NewFromFloat(invoice.PaidAmount).Add(credit)
	newBalance := decimal.NewFromFloat(invoice.TotalAmount).Sub(paid)

	fsm := statemachine.NewInvoiceFSM(invoice)
	if newBalance.IsZero() {
		if err := fsm.PayFull(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
	} else {
		if err := fsm.PayPartial(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
	}

	invoice.PaidAmount = paid.Round(2).InexactFloat64()
	invoice.BalanceAmount = newBalance.Round(2).InexactFloat64()
	return nil
}

// invoiceRef names an invoice for messages, preferring its document number.
func invoiceRef(invoice *models.Invoice) string {
	if invoice.InvoiceNumber != nil {
		return *invoice.InvoiceNumber
	}
	return fmt.Sprintf("#%d", invoice.ID)
}

// currentBillingPeriod anchors a monthly period on the lease's billing day.
// The day is clamped to short months, so billing day 31 starts a period on
// Feb 28 (or 29). Consecutive periods never overlap and leave no gaps.
func currentBillingPeriod(lease *models.Lease, now time.Time) (time.Time, time.Time) {
	today := dateOnly(now)

	start := billingAnchor(today.Year(), today.Month(), lease.BillingDay)
	if start.After(today) {
		start = billingAnchor(today.Year(), today.Month()-1, lease.BillingDay)
	}
	end := billingAnchor(start.Year(), start.Month()+1, lease.BillingDay).AddDate(0, 0, -1)
	return start, end
}

// billingAnchor returns the billing day within a month, clamped to its last
// day. Out-of-range months normalize (month 0 is December of the prior year).
func billingAnchor(year int, month time.Month, day int) time.Time {
	if day < 1 {
		day = 1
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	if last := first.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
