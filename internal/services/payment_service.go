package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dtorrez/rentora-api/internal/config"
	"github.com/dtorrez/rentora-api/internal/jobs"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/internal/statemachine"
)

// PaymentService registers money received against invoices. Cash settles
// immediately; gateway payments stay pending until the gateway callback
// finalizes them.
type PaymentService struct {
	repos           *repository.Repositories
	notificationSvc *NotificationService
	emailSvc        *EmailService
	auditSvc        *AuditService
	worker          *jobs.Worker
	cfg             *config.Config
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	repos *repository.Repositories,
	notificationSvc *NotificationService,
	emailSvc *EmailService,
	auditSvc *AuditService,
	worker *jobs.Worker,
	cfg *config.Config,
) *PaymentService {
	return &PaymentService{
		repos:           repos,
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		auditSvc:        auditSvc,
		worker:          worker,
		cfg:             cfg,
	}
}

// RecordPaymentInput carries everything needed to register a payment.
type RecordPaymentInput struct {
	InvoiceID      uint
	Amount         float64
	PaymentMode    string
	PaymentDate    time.Time
	TransactionRef string
	PayerName      string
	Notes          string
	GatewayTxnID   string
	GatewayName    string
}

// FindByID returns a payment with its invoice and lease loaded.
func (s *PaymentService) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	payment, err := s.repos.Payment.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return payment, nil
}

// List returns payments matching the query with the total count.
func (s *PaymentService) List(ctx context.Context, query *repository.PaymentQuery) ([]models.Payment, int64, error) {
	return s.repos.Payment.List(ctx, query)
}

// FindByInvoice returns every payment recorded against an invoice.
func (s *PaymentService) FindByInvoice(ctx context.Context, invoiceID uint) ([]models.Payment, error) {
	return s.repos.Payment.FindByInvoice(ctx, invoiceID)
}

// FindByTenant returns every payment on the tenant's leases.
func (s *PaymentService) FindByTenant(ctx context.Context, tenantUserID uint) ([]models.Payment, error) {
	return s.repos.Payment.FindByTenant(ctx, tenantUserID)
}

// RecordPayment registers a payment against an invoice. Cash (and non-cash
// without a gateway transaction) is created completed and applied to the
// invoice on the spot; a non-cash payment that carries a gateway transaction
// id is created pending and leaves the invoice untouched until
// FinalizeGatewayPayment runs.
func (s *PaymentService) RecordPayment(ctx context.Context, input RecordPaymentInput, actorID uint, ip, userAgent string) (*models.Payment, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: el monto debe ser mayor que cero", ErrInvalidArgument)
	}
	if !models.ValidPaymentMode(input.PaymentMode) {
		return nil, fmt.Errorf("%w: modo de pago desconocido %q", ErrInvalidArgument, input.PaymentMode)
	}
	if input.PaymentMode != models.PaymentModeCash && strings.TrimSpace(input.TransactionRef) == "" {
		return nil, fmt.Errorf("%w: los pagos que no son en efectivo requieren referencia de transacción", ErrInvalidArgument)
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = time.Now()
	}

	gatewayTxnID := strings.TrimSpace(input.GatewayTxnID)
	settleNow := input.PaymentMode == models.PaymentModeCash || gatewayTxnID == ""

	var payment *models.Payment
	err := s.repos.Atomically(ctx, func(tx *repository.Repositories) error {
		// The balance is validated against a fresh read inside the
		// transaction, never against a value the caller saw earlier.
		invoice, err := tx.Invoice.FindByID(ctx, input.InvoiceID)
		if err != nil {
			return translateRepoError(err)
		}
		if !invoice.MayApplyPayment() {
			return fmt.Errorf("%w: la factura %s no acepta pagos en estado %s",
				ErrInvalidState, invoiceRef(invoice), invoice.Status)
		}
		if input.Amount > invoice.BalanceAmount {
			return fmt.Errorf("%w: el pago de L%.2f excede el saldo de L%.2f",
				ErrBusinessRule, input.Amount, invoice.BalanceAmount)
		}

		p := &models.Payment{
			OrgID:       invoice.OrgID,
			InvoiceID:   invoice.ID,
			LeaseID:     invoice.LeaseID,
			Amount:      roundMoney(input.Amount),
			PaymentDate: dateOnly(input.PaymentDate),
			PaymentMode: input.PaymentMode,
			Status:      models.PaymentStatusPending,
		}
		if ref := strings.TrimSpace(input.TransactionRef); ref != "" {
			p.TransactionRef = &ref
		}
		if name := strings.TrimSpace(input.PayerName); name != "" {
			p.PayerName = &name
		}
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			p.Notes = &notes
		}
		if gatewayTxnID != "" {
			p.GatewayTxnID = &gatewayTxnID
			if name := strings.TrimSpace(input.GatewayName); name != "" {
				p.GatewayName = &name
			}
		}
		if actorID != 0 {
			recordedBy := actorID
			p.RecordedByID = &recordedBy
		}

		if settleNow {
			now := time.Now()
			p.Status = models.PaymentStatusCompleted
			p.CompletedAt = &now

			seq, err := tx.Sequence.Next(ctx, invoice.OrgID, models.SequenceTypeReceipt)
			if err != nil {
				return fmt.Errorf("failed to reserve receipt number: %w", err)
			}
			receipt := models.FormatSequenceNumber(models.SequenceTypeReceipt, seq)
			p.ReceiptNumber = &receipt

			if err := applyPaymentToInvoice(ctx, invoice, p.Amount); err != nil {
				return err
			}
			if err := tx.Invoice.UpdateWithLock(ctx, invoice); err != nil {
				return translateRepoError(err)
			}
		}

		if err := tx.Payment.Create(ctx, p); err != nil {
			return err
		}
		p.Invoice = *invoice
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusCompleted {
		s.notifySettledPayment(payment.ID)
	}

	if actorID != 0 {
		s.auditSvc.Log(ctx, actorID, "RECORD", "Payment", payment.ID,
			fmt.Sprintf("Pago de L%.2f (%s) registrado para factura %s",
				payment.Amount, payment.PaymentMode, invoiceRef(&payment.Invoice)), ip, userAgent)
	}

	return payment, nil
}

// FinalizeGatewayPayment settles or fails a pending gateway payment once the
// gateway reports the outcome. On success the amount is applied against the
// invoice's fresh balance; if the balance shrank below the amount while the
// gateway was settling, the call fails and the payment stays pending for
// manual review.
func (s *PaymentService) FinalizeGatewayPayment(ctx context.Context, id uint, success bool, failureReason string, actorID uint, ip, userAgent string) (*models.Payment, error) {
	var payment *models.Payment
	err := s.repos.Atomically(ctx, func(tx *repository.Repositories) error {
		p, err := tx.Payment.FindByID(ctx, id)
		if err != nil {
			return translateRepoError(err)
		}

		fsm := statemachine.NewPaymentFSM(p)

		if !success {
			if err := fsm.Fail(ctx); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidState, err)
			}
			if reason := strings.TrimSpace(failureReason); reason != "" {
				p.FailureReason = &reason
			}
			if err := tx.Payment.UpdateWithLock(ctx, p); err != nil {
				return translateRepoError(err)
			}
			payment = p
			return nil
		}

		if !p.MayComplete() {
			return fmt.Errorf("%w: el pago #%d ya fue procesado (%s)", ErrInvalidState, p.ID, p.Status)
		}

		invoice, err := tx.Invoice.FindByID(ctx, p.InvoiceID)
		if err != nil {
			return translateRepoError(err)
		}
		if err := applyPaymentToInvoice(ctx, invoice, p.Amount); err != nil {
			return err
		}
		if err := fsm.Complete(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}

		now := time.Now()
		p.CompletedAt = &now

		seq, err := tx.Sequence.Next(ctx, invoice.OrgID, models.SequenceTypeReceipt)
		if err != nil {
			return fmt.Errorf("failed to reserve receipt number: %w", err)
		}
		receipt := models.FormatSequenceNumber(models.SequenceTypeReceipt, seq)
		p.ReceiptNumber = &receipt

		if err := tx.Invoice.UpdateWithLock(ctx, invoice); err != nil {
			return translateRepoError(err)
		}
		if err := tx.Payment.UpdateWithLock(ctx, p); err != nil {
			return translateRepoError(err)
		}
		p.Invoice = *invoice
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusCompleted {
		s.notifySettledPayment(payment.ID)
	} else {
		s.notifyFailedPayment(payment.ID)
	}

	if actorID != 0 {
		outcome := "confirmado"
		if !success {
			outcome = "marcado como fallido"
		}
		s.auditSvc.Log(ctx, actorID, "FINALIZE", "Payment", payment.ID,
			fmt.Sprintf("Pago de L%.2f %s por la pasarela", payment.Amount, outcome), ip, userAgent)
	}

	return payment, nil
}

// UpdateReceiptPath stores the path of the generated receipt document.
func (s *PaymentService) UpdateReceiptPath(ctx context.Context, id uint, path string) error {
	payment, err := s.repos.Payment.FindByID(ctx, id)
	if err != nil {
		return translateRepoError(err)
	}
	payment.ReceiptPath = &path
	return s.repos.Payment.Update(ctx, payment)
}

// notifySettledPayment tells the tenant their payment settled and emails the
// receipt.
func (s *PaymentService) notifySettledPayment(paymentID uint) {
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		payment, err := s.repos.Payment.FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		invoice, err := s.repos.Invoice.FindByIDWithDetails(ctx, payment.InvoiceID)
		if err != nil {
			return err
		}
		if err := s.notificationSvc.NotifyUser(ctx, invoice.Lease.TenantUserID,
			"Pago recibido",
			fmt.Sprintf("Recibimos tu pago de L%.2f para la factura %s. Saldo restante: L%.2f",
				payment.Amount, invoiceRef(invoice), invoice.BalanceAmount),
			models.NotificationTypePaymentReceived); err != nil {
			return err
		}
		payment.Invoice = *invoice
		return s.emailSvc.SendPaymentReceived(ctx, payment)
	})
}

// notifyFailedPayment tells the tenant their gateway payment did not settle.
func (s *PaymentService) notifyFailedPayment(paymentID uint) {
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		payment, err := s.repos.Payment.FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		invoice, err := s.repos.Invoice.FindByIDWithDetails(ctx, payment.InvoiceID)
		if err != nil {
			return err
		}
		reason := "la pasarela rechazó la transacción"
		if payment.FailureReason != nil {
			reason = *payment.FailureReason
		}
		return s.notificationSvc.NotifyUser(ctx, invoice.Lease.TenantUserID,
			"Pago fallido",
			fmt.Sprintf("Tu pago de L%.2f para la factura %s no pudo procesarse: %s",
				payment.Amount, invoiceRef(invoice), reason),
			models.NotificationTypePaymentFailed)
	})
}
