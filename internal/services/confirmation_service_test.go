package services

import (
	"context"
	"testing"
	"time"

	"github.com/dtorrez/rentora-api/internal/config"
	"github.com/dtorrez/rentora-api/internal/jobs"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/stretchr/testify/assert"
)

// Mock ConfirmationRepository
type mockConfirmationRepository struct {
	repository.ConfirmationRepository
	mockFindByID       func(ctx context.Context, id uint) (*models.PaymentConfirmationRequest, error)
	mockCreate         func(ctx context.Context, request *models.PaymentConfirmationRequest) error
	mockUpdateWithLock func(ctx context.Context, request *models.PaymentConfirmationRequest) error
}

func (m *mockConfirmationRepository) FindByID(ctx context.Context, id uint) (*models.PaymentConfirmationRequest, error) {
	return m.mockFindByID(ctx, id)
}
func (m *mockConfirmationRepository) Create(ctx context.Context, request *models.PaymentConfirmationRequest) error {
	if m.mockCreate != nil {
		return m.mockCreate(ctx, request)
	}
	return nil
}
func (m *mockConfirmationRepository) UpdateWithLock(ctx context.Context, request *models.PaymentConfirmationRequest) error {
	if m.mockUpdateWithLock != nil {
		return m.mockUpdateWithLock(ctx, request)
	}
	return nil
}

type confirmationFixture struct {
	confirmations *mockConfirmationRepository
	invoices      *mockInvoiceRepository
	payments      *mockPaymentRepository
	seqs          *mockSequenceRepository
	notifs        *mockNotificationRepository
	users         *mockUserRepository
	worker        *jobs.Worker
	service       *ConfirmationService
}

// newConfirmationFixture builds the service without storage or image
// handling; the tests here never attach a proof file.
func newConfirmationFixture() *confirmationFixture {
	cfg := &config.Config{}
	f := &confirmationFixture{
		confirmations: &mockConfirmationRepository{},
		invoices:      &mockInvoiceRepository{},
		payments:      &mockPaymentRepository{},
		seqs:          &mockSequenceRepository{},
		notifs:        &mockNotificationRepository{},
		users:         &mockUserRepository{},
		worker:        jobs.NewWorker(0), // 0 workers, but EnqueueAsync spawns its own goroutines
	}
	repos := &repository.Repositories{
		User:         f.users,
		Invoice:      f.invoices,
		Payment:      f.payments,
		Confirmation: f.confirmations,
		Sequence:     f.seqs,
		Notification: f.notifs,
	}
	notifSvc := NewNotificationService(f.notifs, f.users)
	f.service = NewConfirmationService(repos, nil, nil, notifSvc, NewEmailService(cfg), nil, f.worker, cfg)
	return f
}

// pendingRequest builds a claim awaiting review.
func pendingRequest() *models.PaymentConfirmationRequest {
	receipt := "BAC-445566"
	return &models.PaymentConfirmationRequest{
		ID:            20,
		OrgID:         1,
		InvoiceID:     10,
		Amount:        400,
		PaymentDate:   date(2026, time.February, 3),
		ReceiptNumber: &receipt,
		Status:        models.ConfirmationStatusPending,
		SubmittedByID: 5,
		LockVersion:   1,
		SubmittedBy:   models.User{ID: 5, FullName: "Laura Mejía", Email: "laura@example.com"},
	}
}

func TestConfirmationService_Create_RegistersPendingClaim(t *testing.T) {
	f := newConfirmationFixture()
	defer f.worker.Shutdown()

	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return payableInvoice(), nil
	}
	var created *models.PaymentConfirmationRequest
	f.confirmations.mockCreate = func(ctx context.Context, request *models.PaymentConfirmationRequest) error {
		request.ID = 20
		created = request
		return nil
	}
	f.users.mockFindStaffByOrg = func(ctx context.Context, orgID uint) ([]models.User, error) {
		assert.Equal(t, uint(1), orgID)
		return []models.User{{ID: 2, OrgID: 1, Role: models.RoleManager}}, nil
	}
	var notified *models.Notification
	f.notifs.mockCreate = func(ctx context.Context, notification *models.Notification) error {
		notified = notification
		return nil
	}

	request, err := f.service.Create(context.Background(), CreateConfirmationInput{
		InvoiceID:     10,
		Amount:        400,
		PaymentDate:   date(2026, time.February, 3),
		ReceiptNumber: "BAC-445566",
		Notes:         "transferencia desde BAC",
	}, nil, nil, 5, "", "")

	assert.NoError(t, err)
	assert.NotNil(t, created)
	assert.Equal(t, models.ConfirmationStatusPending, request.Status)
	assert.Equal(t, 400.00, request.Amount)
	assert.Equal(t, uint(5), request.SubmittedByID)
	assert.Equal(t, "BAC-445566", *request.ReceiptNumber)
	assert.Nil(t, request.PaymentID, "no payment until a reviewer confirms")

	// Wait a bit for the async notification
	time.Sleep(100 * time.Millisecond)
	if assert.NotNil(t, notified, "org staff should be notified") {
		assert.Equal(t, uint(2), notified.UserID)
		assert.Equal(t, "Nueva solicitud de confirmación de pago", notified.Title)
	}
}

func TestConfirmationService_Create_RejectsNonPayableInvoice(t *testing.T) {
	f := newConfirmationFixture()
	defer f.worker.Shutdown()

	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return &models.Invoice{ID: 10, Status: models.InvoiceStatusVoided}, nil
	}

	_, err := f.service.Create(context.Background(), CreateConfirmationInput{
		InvoiceID: 10,
		Amount:    400,
	}, nil, nil, 5, "", "")

	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestConfirmationService_Create_RejectsInvalidAmounts(t *testing.T) {
	f := newConfirmationFixture()
	defer f.worker.Shutdown()

	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return payableInvoice(), nil
	}
	createCalled := false
	f.confirmations.mockCreate = func(ctx context.Context, request *models.PaymentConfirmationRequest) error {
		createCalled = true
		return nil
	}

	_, err := f.service.Create(context.Background(), CreateConfirmationInput{
		InvoiceID: 10, Amount: 0,
	}, nil, nil, 5, "", "")
	assert.ErrorIs(t, err, ErrBusinessRule, "zero amount")

	_, err = f.service.Create(context.Background(), CreateConfirmationInput{
		InvoiceID: 10, Amount: 1200,
	}, nil, nil, 5, "", "")
	assert.ErrorIs(t, err, ErrBusinessRule, "amount above invoice balance")

	assert.False(t, createCalled)
}

func TestConfirmationService_Confirm_SettlesInvoiceAndCreatesPayment(t *testing.T) {
	f := newConfirmationFixture()
	defer f.worker.Shutdown()

	invoice := payableInvoice()
	req := pendingRequest()
	f.confirmations.mockFindByID = func(ctx context.Context, id uint) (*models.PaymentConfirmationRequest, error) {
		return req, nil
	}
	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return invoice, nil
	}
	f.seqs.mockNext = func(ctx context.Context, orgID uint, sequenceType string) (int64, error) {
		assert.Equal(t, models.SequenceTypeReceipt, sequenceType)
		return 8, nil
	}

	invoiceUpdated := false
	f.invoices.mockUpdateWithLock = func(ctx context.Context, inv *models.Invoice) error {
		invoiceUpdated = true
		return nil
	}
	var payment *models.Payment
	f.payments.mockCreate = func(ctx context.Context, p *models.Payment) error {
		p.ID = 700
		payment = p
		return nil
	}
	requestUpdated := false
	f.confirmations.mockUpdateWithLock = func(ctx context.Context, request *models.PaymentConfirmationRequest) error {
		requestUpdated = true
		return nil
	}
	var notified *models.Notification
	f.notifs.mockCreate = func(ctx context.Context, notification *models.Notification) error {
		notified = notification
		return nil
	}

	request, err := f.service.Confirm(context.Background(), 20, 1, "comprobante verificado", 2, "", "")

	assert.NoError(t, err)
	assert.Equal(t, models.ConfirmationStatusConfirmed, request.Status)
	assert.Equal(t, uint(2), *request.ReviewedByID)
	assert.NotNil(t, request.ReviewedAt)
	assert.Equal(t, uint(700), *request.PaymentID)
	assert.True(t, requestUpdated)

	// The confirmed claim became a completed cash payment
	if assert.NotNil(t, payment) {
		assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
		assert.Equal(t, models.PaymentModeCash, payment.PaymentMode)
		assert.Equal(t, 400.00, payment.Amount)
		assert.Equal(t, "RCT-000008", *payment.ReceiptNumber)
		assert.Equal(t, "BAC-445566", *payment.TransactionRef)
		assert.Equal(t, uint(2), *payment.RecordedByID)
	}
	assert.True(t, invoiceUpdated)
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, invoice.Status)
	assert.Equal(t, 600.00, invoice.BalanceAmount)

	// Wait a bit for the async notification
	time.Sleep(100 * time.Millisecond)
	if assert.NotNil(t, notified, "submitter should be notified") {
		assert.Equal(t, uint(5), notified.UserID)
		assert.Equal(t, "Pago confirmado", notified.Title)
	}
}

func TestConfirmationService_Confirm_StaleLockVersion(t *testing.T) {
	f := newConfirmationFixture()
	defer f.worker.Shutdown()

	req := pendingRequest()
	req.LockVersion = 4
	f.confirmations.mockFindByID = func(ctx context.Context, id uint) (*models.PaymentConfirmationRequest, error) {
		return req, nil
	}

	_, err := f.service.Confirm(context.Background(), 20, 2, "", 2, "", "")

	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func TestConfirmationService_Confirm_AlreadyReviewed(t *testing.T) {
	f := newConfirmationFixture()
	defer f.worker.Shutdown()

	req := pendingRequest()
	req.Status = models.ConfirmationStatusConfirmed
	f.confirmations.mockFindByID = func(ctx context.Context, id uint) (*models.PaymentConfirmationRequest, error) {
		return req, nil
	}

	_, err := f.service.Confirm(context.Background(), 20, 0, "", 2, "", "")

	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestConfirmationService_Confirm_RejectsWhenBalanceShrank(t *testing.T) {
	f := newConfirmationFixture()
	defer f.worker.Shutdown()

	// Another payment landed first and the open balance no longer covers
	// the claimed amount
	invoice := payableInvoice()
	invoice.Status = models.InvoiceStatusPartiallyPaid
	invoice.PaidAmount = 700
	invoice.BalanceAmount = 300

	f.confirmations.mockFindByID = func(ctx context.Context, id uint) (*models.PaymentConfirmationRequest, error) {
		return pendingRequest(), nil
	}
	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return invoice, nil
	}
	paymentCreated := false
	f.payments.mockCreate = func(ctx context.Context, p *models.Payment) error {
		paymentCreated = true
		return nil
	}

	_, err := f.service.Confirm(context.Background(), 20, 1, "", 2, "", "")

	assert.ErrorIs(t, err, ErrBusinessRule)
	assert.False(t, paymentCreated)
	assert.Equal(t, 300.00, invoice.BalanceAmount, "invoice untouched on rejection")
}

func TestConfirmationService_Reject_RequiresReason(t *testing.T) {
	f := newConfirmationFixture()
	defer f.worker.Shutdown()

	_, err := f.service.Reject(context.Background(), 20, 1, "   ", 2, "", "")

	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestConfirmationService_Reject_ClosesRequestWithoutTouchingInvoice(t *testing.T) {
	f := newConfirmationFixture()
	defer f.worker.Shutdown()

	req := pendingRequest()
	f.confirmations.mockFindByID = func(ctx context.Context, id uint) (*models.PaymentConfirmationRequest, error) {
		return req, nil
	}
	invoiceLoaded := false
	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		invoiceLoaded = true
		return payableInvoice(), nil
	}
	var notified *models.Notification
	f.notifs.mockCreate = func(ctx context.Context, notification *models.Notification) error {
		notified = notification
		return nil
	}

	request, err := f.service.Reject(context.Background(), 20, 1, "el comprobante no coincide con el monto", 2, "", "")

	assert.NoError(t, err)
	assert.Equal(t, models.ConfirmationStatusRejected, request.Status)
	assert.Equal(t, uint(2), *request.ReviewedByID)
	assert.Equal(t, "el comprobante no coincide con el monto", *request.ReviewResponse)
	assert.Nil(t, request.PaymentID)
	assert.False(t, invoiceLoaded, "rejection must not touch the invoice")

	// Wait a bit for the async notification
	time.Sleep(100 * time.Millisecond)
	if assert.NotNil(t, notified) {
		assert.Equal(t, uint(5), notified.UserID)
		assert.Equal(t, "Solicitud de pago rechazada", notified.Title)
	}
}
