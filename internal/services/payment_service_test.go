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

// Mock PaymentRepository
type mockPaymentRepository struct {
	repository.PaymentRepository
	mockFindByID             func(ctx context.Context, id uint) (*models.Payment, error)
	mockCreate               func(ctx context.Context, payment *models.Payment) error
	mockUpdateWithLock       func(ctx context.Context, payment *models.Payment) error
	mockFindCompletedByMonth func(ctx context.Context, orgID uint, month, year int) ([]models.Payment, error)
}

func (m *mockPaymentRepository) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	return m.mockFindByID(ctx, id)
}
func (m *mockPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if m.mockCreate != nil {
		return m.mockCreate(ctx, payment)
	}
	return nil
}
func (m *mockPaymentRepository) UpdateWithLock(ctx context.Context, payment *models.Payment) error {
	if m.mockUpdateWithLock != nil {
		return m.mockUpdateWithLock(ctx, payment)
	}
	return nil
}
func (m *mockPaymentRepository) FindCompletedByMonth(ctx context.Context, orgID uint, month, year int) ([]models.Payment, error) {
	if m.mockFindCompletedByMonth != nil {
		return m.mockFindCompletedByMonth(ctx, orgID, month, year)
	}
	return nil, nil
}

type paymentFixture struct {
	payments *mockPaymentRepository
	invoices *mockInvoiceRepository
	seqs     *mockSequenceRepository
	notifs   *mockNotificationRepository
	users    *mockUserRepository
	worker   *jobs.Worker
	service  *PaymentService
}

func newPaymentFixture() *paymentFixture {
	cfg := &config.Config{}
	f := &paymentFixture{
		payments: &mockPaymentRepository{},
		invoices: &mockInvoiceRepository{},
		seqs:     &mockSequenceRepository{},
		notifs:   &mockNotificationRepository{},
		users:    &mockUserRepository{},
		worker:   jobs.NewWorker(0), // 0 workers, but EnqueueAsync spawns its own goroutines
	}
	repos := &repository.Repositories{
		User:         f.users,
		Invoice:      f.invoices,
		Payment:      f.payments,
		Sequence:     f.seqs,
		Notification: f.notifs,
	}
	notifSvc := NewNotificationService(f.notifs, f.users)
	f.service = NewPaymentService(repos, notifSvc, NewEmailService(cfg), nil, f.worker, cfg)
	return f
}

// payableInvoice builds an issued invoice with an open balance.
func payableInvoice() *models.Invoice {
	number := "INV-000010"
	due := date(2026, time.February, 10)
	return &models.Invoice{
		ID:            10,
		OrgID:         1,
		LeaseID:       1,
		InvoiceNumber: &number,
		Status:        models.InvoiceStatusIssued,
		TotalAmount:   1000,
		PaidAmount:    0,
		BalanceAmount: 1000,
		DueDate:       &due,
		LockVersion:   1,
		Lease: models.Lease{
			ID:           1,
			TenantUserID: 5,
			TenantUser:   models.User{ID: 5, FullName: "Laura Mejía", Email: "laura@example.com"},
		},
	}
}

func TestPaymentService_RecordPayment_CashSettlesImmediately(t *testing.T) {
	f := newPaymentFixture()
	defer f.worker.Shutdown()

	invoice := payableInvoice()
	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return invoice, nil
	}
	f.invoices.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return invoice, nil
	}
	f.seqs.mockNext = func(ctx context.Context, orgID uint, sequenceType string) (int64, error) {
		assert.Equal(t, models.SequenceTypeReceipt, sequenceType)
		return 3, nil
	}

	invoiceUpdated := false
	f.invoices.mockUpdateWithLock = func(ctx context.Context, inv *models.Invoice) error {
		invoiceUpdated = true
		return nil
	}
	var created *models.Payment
	f.payments.mockCreate = func(ctx context.Context, payment *models.Payment) error {
		payment.ID = 500
		created = payment
		return nil
	}
	f.payments.mockFindByID = func(ctx context.Context, id uint) (*models.Payment, error) {
		return created, nil
	}
	var notified *models.Notification
	f.notifs.mockCreate = func(ctx context.Context, notification *models.Notification) error {
		notified = notification
		return nil
	}

	payment, err := f.service.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:   10,
		Amount:      400,
		PaymentMode: models.PaymentModeCash,
		PayerName:   "Laura Mejía",
	}, 0, "", "")

	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.NotNil(t, payment.CompletedAt)
	assert.Equal(t, "RCT-000003", *payment.ReceiptNumber)
	assert.Equal(t, 400.00, payment.Amount)

	// The invoice moved along with the payment
	assert.True(t, invoiceUpdated)
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, invoice.Status)
	assert.Equal(t, 400.00, invoice.PaidAmount)
	assert.Equal(t, 600.00, invoice.BalanceAmount)

	// Wait a bit for the async notification
	time.Sleep(100 * time.Millisecond)
	if assert.NotNil(t, notified, "tenant should be notified") {
		assert.Equal(t, uint(5), notified.UserID)
		assert.Equal(t, "Pago recibido", notified.Title)
	}
}

func TestPaymentService_RecordPayment_FullPaymentClosesInvoice(t *testing.T) {
	f := newPaymentFixture()
	defer f.worker.Shutdown()

	invoice := payableInvoice()
	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return invoice, nil
	}
	f.invoices.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return invoice, nil
	}
	f.payments.mockFindByID = func(ctx context.Context, id uint) (*models.Payment, error) {
		return &models.Payment{ID: id, InvoiceID: 10, Amount: 1000, Status: models.PaymentStatusCompleted}, nil
	}

	payment, err := f.service.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:   10,
		Amount:      1000,
		PaymentMode: models.PaymentModeCash,
	}, 0, "", "")

	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
	assert.Equal(t, 0.00, invoice.BalanceAmount)

	time.Sleep(100 * time.Millisecond)
}

func TestPaymentService_RecordPayment_RejectsOverpayment(t *testing.T) {
	f := newPaymentFixture()
	defer f.worker.Shutdown()

	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return payableInvoice(), nil
	}
	createCalled := false
	f.payments.mockCreate = func(ctx context.Context, payment *models.Payment) error {
		createCalled = true
		return nil
	}

	_, err := f.service.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:   10,
		Amount:      1200,
		PaymentMode: models.PaymentModeCash,
	}, 0, "", "")

	assert.ErrorIs(t, err, ErrBusinessRule)
	assert.False(t, createCalled)
}

func TestPaymentService_RecordPayment_RejectsNonPayableInvoice(t *testing.T) {
	f := newPaymentFixture()
	defer f.worker.Shutdown()

	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return &models.Invoice{ID: 10, Status: models.InvoiceStatusDraft, TotalAmount: 1000, BalanceAmount: 1000}, nil
	}

	_, err := f.service.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:   10,
		Amount:      100,
		PaymentMode: models.PaymentModeCash,
	}, 0, "", "")

	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPaymentService_RecordPayment_ValidatesInput(t *testing.T) {
	f := newPaymentFixture()
	defer f.worker.Shutdown()

	_, err := f.service.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID: 10, Amount: 0, PaymentMode: models.PaymentModeCash,
	}, 0, "", "")
	assert.ErrorIs(t, err, ErrInvalidArgument, "zero amount")

	_, err = f.service.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID: 10, Amount: 100, PaymentMode: "cheque",
	}, 0, "", "")
	assert.ErrorIs(t, err, ErrInvalidArgument, "unknown payment mode")

	_, err = f.service.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID: 10, Amount: 100, PaymentMode: models.PaymentModeBankTransfer,
	}, 0, "", "")
	assert.ErrorIs(t, err, ErrInvalidArgument, "non-cash payment without a transaction reference")
}

func TestPaymentService_RecordPayment_GatewayStaysPending(t *testing.T) {
	f := newPaymentFixture()
	defer f.worker.Shutdown()

	invoice := payableInvoice()
	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return invoice, nil
	}
	invoiceUpdated := false
	f.invoices.mockUpdateWithLock = func(ctx context.Context, inv *models.Invoice) error {
		invoiceUpdated = true
		return nil
	}
	seqCalled := false
	f.seqs.mockNext = func(ctx context.Context, orgID uint, sequenceType string) (int64, error) {
		seqCalled = true
		return 1, nil
	}

	payment, err := f.service.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:      10,
		Amount:         400,
		PaymentMode:    models.PaymentModeCard,
		TransactionRef: "ch_99",
		GatewayTxnID:   "txn_123",
		GatewayName:    "stripe",
	}, 0, "", "")

	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Nil(t, payment.CompletedAt)
	assert.Nil(t, payment.ReceiptNumber)
	assert.Equal(t, "txn_123", *payment.GatewayTxnID)
	assert.Equal(t, "stripe", *payment.GatewayName)

	// The invoice waits for the gateway callback
	assert.False(t, invoiceUpdated)
	assert.False(t, seqCalled)
	assert.Equal(t, 1000.00, invoice.BalanceAmount)
	assert.Equal(t, models.InvoiceStatusIssued, invoice.Status)
}

func TestPaymentService_FinalizeGatewayPayment_Success(t *testing.T) {
	f := newPaymentFixture()
	defer f.worker.Shutdown()

	invoice := payableInvoice()
	pending := &models.Payment{
		ID:          500,
		OrgID:       1,
		InvoiceID:   10,
		LeaseID:     1,
		Amount:      400,
		PaymentMode: models.PaymentModeCard,
		Status:      models.PaymentStatusPending,
		LockVersion: 1,
	}
	f.payments.mockFindByID = func(ctx context.Context, id uint) (*models.Payment, error) {
		return pending, nil
	}
	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return invoice, nil
	}
	f.invoices.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return invoice, nil
	}

	invoiceUpdated := false
	f.invoices.mockUpdateWithLock = func(ctx context.Context, inv *models.Invoice) error {
		invoiceUpdated = true
		return nil
	}
	paymentUpdated := false
	f.payments.mockUpdateWithLock = func(ctx context.Context, p *models.Payment) error {
		paymentUpdated = true
		return nil
	}
	var notified *models.Notification
	f.notifs.mockCreate = func(ctx context.Context, notification *models.Notification) error {
		notified = notification
		return nil
	}

	payment, err := f.service.FinalizeGatewayPayment(context.Background(), 500, true, "", 0, "", "")

	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.NotNil(t, payment.CompletedAt)
	assert.NotNil(t, payment.ReceiptNumber)
	assert.True(t, invoiceUpdated)
	assert.True(t, paymentUpdated)
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, invoice.Status)
	assert.Equal(t, 600.00, invoice.BalanceAmount)

	// Wait a bit for the async notification
	time.Sleep(100 * time.Millisecond)
	if assert.NotNil(t, notified) {
		assert.Equal(t, "Pago recibido", notified.Title)
	}
}

func TestPaymentService_FinalizeGatewayPayment_Failure(t *testing.T) {
	f := newPaymentFixture()
	defer f.worker.Shutdown()

	invoice := payableInvoice()
	pending := &models.Payment{
		ID:          500,
		InvoiceID:   10,
		Amount:      400,
		PaymentMode: models.PaymentModeCard,
		Status:      models.PaymentStatusPending,
		LockVersion: 1,
	}
	f.payments.mockFindByID = func(ctx context.Context, id uint) (*models.Payment, error) {
		return pending, nil
	}
	f.invoices.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return invoice, nil
	}
	invoiceLoaded := false
	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		invoiceLoaded = true
		return invoice, nil
	}
	var notified *models.Notification
	f.notifs.mockCreate = func(ctx context.Context, notification *models.Notification) error {
		notified = notification
		return nil
	}

	payment, err := f.service.FinalizeGatewayPayment(context.Background(), 500, false, "fondos insuficientes", 0, "", "")

	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "fondos insuficientes", *payment.FailureReason)
	assert.Nil(t, payment.CompletedAt)
	assert.False(t, invoiceLoaded, "a failed payment must not touch the invoice")

	// Wait a bit for the async notification
	time.Sleep(100 * time.Millisecond)
	if assert.NotNil(t, notified) {
		assert.Equal(t, "Pago fallido", notified.Title)
		assert.Contains(t, notified.Message, "fondos insuficientes")
	}
}

func TestPaymentService_FinalizeGatewayPayment_AlreadySettled(t *testing.T) {
	f := newPaymentFixture()
	defer f.worker.Shutdown()

	f.payments.mockFindByID = func(ctx context.Context, id uint) (*models.Payment, error) {
		return &models.Payment{ID: 500, InvoiceID: 10, Amount: 400, Status: models.PaymentStatusCompleted}, nil
	}

	_, err := f.service.FinalizeGatewayPayment(context.Background(), 500, true, "", 0, "", "")

	assert.ErrorIs(t, err, ErrInvalidState)
}
