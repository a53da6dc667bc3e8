package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/dtorrez/rentora-api/internal/config"
	"github.com/dtorrez/rentora-api/internal/jobs"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/internal/statemachine"
	"github.com/dtorrez/rentora-api/internal/storage"
	"github.com/dtorrez/rentora-api/pkg/logger"
)

// ConfirmationService manages tenant-submitted payment confirmation
// requests: a tenant claims to have paid an invoice outside the system and
// staff confirm or reject the claim after reviewing the proof.
type ConfirmationService struct {
	repos           *repository.Repositories
	storage         *storage.LocalStorage
	imageSvc        *ImageService
	notificationSvc *NotificationService
	emailSvc        *EmailService
	auditSvc        *AuditService
	worker          *jobs.Worker
	cfg             *config.Config
}

// NewConfirmationService creates a new confirmation service
func NewConfirmationService(
	repos *repository.Repositories,
	storage *storage.LocalStorage,
	imageSvc *ImageService,
	notificationSvc *NotificationService,
	emailSvc *EmailService,
	auditSvc *AuditService,
	worker *jobs.Worker,
	cfg *config.Config,
) *ConfirmationService {
	return &ConfirmationService{
		repos:           repos,
		storage:         storage,
		imageSvc:        imageSvc,
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		auditSvc:        auditSvc,
		worker:          worker,
		cfg:             cfg,
	}
}

// CreateConfirmationInput carries a tenant's payment claim.
type CreateConfirmationInput struct {
	InvoiceID     uint
	Amount        float64
	PaymentDate   time.Time
	ReceiptNumber string
	Notes         string
}

// FindByID returns a confirmation request with its invoice and reviewers loaded.
func (s *ConfirmationService) FindByID(ctx context.Context, id uint) (*models.PaymentConfirmationRequest, error) {
	request, err := s.repos.Confirmation.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return request, nil
}

// List returns confirmation requests matching the query with the total count.
func (s *ConfirmationService) List(ctx context.Context, query *repository.ConfirmationQuery) ([]models.PaymentConfirmationRequest, int64, error) {
	return s.repos.Confirmation.List(ctx, query)
}

// FindByInvoice returns every confirmation request submitted for an invoice.
func (s *ConfirmationService) FindByInvoice(ctx context.Context, invoiceID uint) ([]models.PaymentConfirmationRequest, error) {
	return s.repos.Confirmation.FindByInvoice(ctx, invoiceID)
}

// CountPending returns how many requests await review in an organization.
func (s *ConfirmationService) CountPending(ctx context.Context, orgID uint) (int64, error) {
	return s.repos.Confirmation.CountPending(ctx, orgID)
}

// Create registers a tenant's claim of having paid an invoice. The claim is
// validated against the invoice's current balance but nothing is applied
// until staff confirm it. An optional proof file (image or PDF) is stored
// alongside the request.
func (s *ConfirmationService) Create(ctx context.Context, input CreateConfirmationInput, proof multipart.File, proofHeader *multipart.FileHeader, submitterID uint, ip, userAgent string) (*models.PaymentConfirmationRequest, error) {
	if input.PaymentDate.IsZero() {
		input.PaymentDate = time.Now()
	}

	var proofPath, proofThumbPath string
	if proofHeader != nil {
		var err error
		proofPath, proofThumbPath, err = s.saveProof(proof, proofHeader)
		if err != nil {
			return nil, err
		}
	}

	var request *models.PaymentConfirmationRequest
	err := s.repos.Atomically(ctx, func(tx *repository.Repositories) error {
		invoice, err := tx.Invoice.FindByID(ctx, input.InvoiceID)
		if err != nil {
			return translateRepoError(err)
		}
		if !invoice.MayApplyPayment() {
			return fmt.Errorf("%w: la factura %s no acepta pagos en estado %s",
				ErrInvalidState, invoiceRef(invoice), invoice.Status)
		}
		if input.Amount <= 0 {
			return fmt.Errorf("%w: el monto debe ser mayor que cero", ErrBusinessRule)
		}
		if input.Amount > invoice.BalanceAmount {
			return fmt.Errorf("%w: el monto de L%.2f excede el saldo de L%.2f",
				ErrBusinessRule, input.Amount, invoice.BalanceAmount)
		}

		req := &models.PaymentConfirmationRequest{
			OrgID:         invoice.OrgID,
			InvoiceID:     invoice.ID,
			Amount:        roundMoney(input.Amount),
			PaymentDate:   dateOnly(input.PaymentDate),
			Status:        models.ConfirmationStatusPending,
			SubmittedByID: submitterID,
		}
		if receipt := strings.TrimSpace(input.ReceiptNumber); receipt != "" {
			req.ReceiptNumber = &receipt
		}
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			req.Notes = &notes
		}
		if proofPath != "" {
			req.ProofPath = &proofPath
		}
		if proofThumbPath != "" {
			req.ProofThumbPath = &proofThumbPath
		}

		if err := tx.Confirmation.Create(ctx, req); err != nil {
			return err
		}
		req.Invoice = *invoice
		request = req
		return nil
	})
	if err != nil {
		s.discardProof(proofPath, proofThumbPath)
		return nil, err
	}

	// Tell the organization's reviewers there is work waiting
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.NotifyOrgStaff(ctx, request.OrgID,
			"Nueva solicitud de confirmación de pago",
			fmt.Sprintf("Se reportó un pago de L%.2f para la factura %s, pendiente de revisión",
				request.Amount, invoiceRef(&request.Invoice)),
			models.NotificationTypeConfirmationSubmitted)
	})

	s.auditSvc.Log(ctx, submitterID, "SUBMIT", "PaymentConfirmationRequest", request.ID,
		fmt.Sprintf("Solicitud de confirmación de pago de L%.2f para factura %s",
			request.Amount, invoiceRef(&request.Invoice)), ip, userAgent)

	return request, nil
}

// Confirm accepts a pending request. The amount is re-validated against the
// invoice's balance at confirmation time, since other payments may have
// landed while the request sat in the queue. Creating the payment, applying
// it to the invoice and closing the request commit as one transaction.
func (s *ConfirmationService) Confirm(ctx context.Context, id uint, lockVersion int, reviewResponse string, reviewerID uint, ip, userAgent string) (*models.PaymentConfirmationRequest, error) {
	reviewResponse = strings.TrimSpace(reviewResponse)

	var request *models.PaymentConfirmationRequest
	err := s.repos.Atomically(ctx, func(tx *repository.Repositories) error {
		req, err := tx.Confirmation.FindByID(ctx, id)
		if err != nil {
			return translateRepoError(err)
		}
		if lockVersion > 0 && req.LockVersion != lockVersion {
			return fmt.Errorf("%w: la solicitud fue modificada, recarga e intenta de nuevo", ErrConcurrencyConflict)
		}

		fsm := statemachine.NewConfirmationFSM(req)
		if err := fsm.Confirm(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}

		invoice, err := tx.Invoice.FindByID(ctx, req.InvoiceID)
		if err != nil {
			return translateRepoError(err)
		}
		// Fresh balance, not the one seen at submission time
		if err := applyPaymentToInvoice(ctx, invoice, req.Amount); err != nil {
			return err
		}

		now := time.Now()
		seq, err := tx.Sequence.Next(ctx, invoice.OrgID, models.SequenceTypeReceipt)
		if err != nil {
			return fmt.Errorf("failed to reserve receipt number: %w", err)
		}
		receipt := models.FormatSequenceNumber(models.SequenceTypeReceipt, seq)

		payment := &models.Payment{
			OrgID:          invoice.OrgID,
			InvoiceID:      invoice.ID,
			LeaseID:        invoice.LeaseID,
			Amount:         req.Amount,
			PaymentDate:    req.PaymentDate,
			PaymentMode:    models.PaymentModeCash,
			Status:         models.PaymentStatusCompleted,
			TransactionRef: req.ReceiptNumber,
			ReceiptNumber:  &receipt,
			CompletedAt:    &now,
		}
		reviewer := reviewerID
		payment.RecordedByID = &reviewer

		if err := tx.Invoice.UpdateWithLock(ctx, invoice); err != nil {
			return translateRepoError(err)
		}
		if err := tx.Payment.Create(ctx, payment); err != nil {
			return err
		}

		req.ReviewedByID = &reviewer
		req.ReviewedAt = &now
		if reviewResponse != "" {
			req.ReviewResponse = &reviewResponse
		}
		req.PaymentID = &payment.ID
		if err := tx.Confirmation.UpdateWithLock(ctx, req); err != nil {
			return translateRepoError(err)
		}

		req.Invoice = *invoice
		req.Payment = payment
		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Notify tenant
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		if err := s.notificationSvc.NotifyUser(ctx, request.SubmittedByID,
			"Pago confirmado",
			fmt.Sprintf("Tu pago de L%.2f para la factura %s fue confirmado",
				request.Amount, invoiceRef(&request.Invoice)),
			models.NotificationTypeConfirmationConfirmed); err != nil {
			return err
		}
		return s.emailSvc.SendConfirmationReviewed(ctx, request)
	})

	s.auditSvc.Log(ctx, reviewerID, "CONFIRM", "PaymentConfirmationRequest", request.ID,
		fmt.Sprintf("Pago de L%.2f confirmado para factura %s",
			request.Amount, invoiceRef(&request.Invoice)), ip, userAgent)

	return request, nil
}

// Reject declines a pending request. The reviewer must say why; the invoice
// is not touched.
func (s *ConfirmationService) Reject(ctx context.Context, id uint, lockVersion int, reviewResponse string, reviewerID uint, ip, userAgent string) (*models.PaymentConfirmationRequest, error) {
	reviewResponse = strings.TrimSpace(reviewResponse)
	if reviewResponse == "" {
		return nil, fmt.Errorf("%w: una solicitud rechazada debe llevar un motivo", ErrInvalidArgument)
	}

	var request *models.PaymentConfirmationRequest
	err := s.repos.Atomically(ctx, func(tx *repository.Repositories) error {
		req, err := tx.Confirmation.FindByID(ctx, id)
		if err != nil {
			return translateRepoError(err)
		}
		if lockVersion > 0 && req.LockVersion != lockVersion {
			return fmt.Errorf("%w: la solicitud fue modificada, recarga e intenta de nuevo", ErrConcurrencyConflict)
		}

		fsm := statemachine.NewConfirmationFSM(req)
		if err := fsm.Reject(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}

		now := time.Now()
		reviewer := reviewerID
		req.ReviewedByID = &reviewer
		req.ReviewedAt = &now
		req.ReviewResponse = &reviewResponse

		if err := tx.Confirmation.UpdateWithLock(ctx, req); err != nil {
			return translateRepoError(err)
		}
		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Notify tenant
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		full, err := s.repos.Confirmation.FindByID(ctx, request.ID)
		if err != nil {
			return err
		}
		if err := s.notificationSvc.NotifyUser(ctx, full.SubmittedByID,
			"Solicitud de pago rechazada",
			fmt.Sprintf("Tu reporte de pago de L%.2f fue rechazado: %s", full.Amount, reviewResponse),
			models.NotificationTypeConfirmationRejected); err != nil {
			return err
		}
		return s.emailSvc.SendConfirmationReviewed(ctx, full)
	})

	s.auditSvc.Log(ctx, reviewerID, "REJECT", "PaymentConfirmationRequest", request.ID,
		fmt.Sprintf("Solicitud de pago de L%.2f rechazada: %s", request.Amount, reviewResponse), ip, userAgent)

	return request, nil
}

// ProofFilePath resolves the stored proof file of a request for download.
func (s *ConfirmationService) ProofFilePath(ctx context.Context, id uint) (string, error) {
	request, err := s.repos.Confirmation.FindByID(ctx, id)
	if err != nil {
		return "", translateRepoError(err)
	}
	if !request.HasProof() {
		return "", fmt.Errorf("%w: la solicitud no tiene comprobante adjunto", ErrNotFound)
	}
	full, err := s.storage.SafeFullPath(*request.ProofPath)
	if err != nil {
		return "", fmt.Errorf("%w: comprobante no disponible", ErrNotFound)
	}
	return full, nil
}

// saveProof stores the uploaded proof file. Images get a thumbnail for the
// review queue; PDFs are stored as-is.
func (s *ConfirmationService) saveProof(proof multipart.File, header *multipart.FileHeader) (string, string, error) {
	if header.Size > storage.MaxFileSize() {
		return "", "", fmt.Errorf("%w: el comprobante no puede superar %d MB",
			ErrInvalidArgument, storage.MaxFileSize()/(1024*1024))
	}

	switch ext := strings.ToLower(filepath.Ext(header.Filename)); ext {
	case ".jpg", ".jpeg", ".png":
		proofPath, thumbPath, err := s.imageSvc.ProcessAndSaveProofImage(proof, header)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return proofPath, thumbPath, nil
	case ".pdf":
		proofPath, err := s.storage.Upload(proof, header, "proofs")
		if err != nil {
			return "", "", fmt.Errorf("failed to store proof file: %w", err)
		}
		return proofPath, "", nil
	default:
		return "", "", fmt.Errorf("%w: formato de comprobante no soportado (JPG, PNG o PDF)", ErrInvalidArgument)
	}
}

// discardProof removes stored proof files after a failed submission.
func (s *ConfirmationService) discardProof(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := s.storage.Delete(path); err != nil {
			logger.Warn(fmt.Sprintf("Failed to remove orphaned proof file %s: %v", path, err))
		}
	}
}
