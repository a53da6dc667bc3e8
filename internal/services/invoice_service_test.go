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
	"gorm.io/gorm"
)

// Mock InvoiceRepository (using embedding to avoid implementing all methods)
type mockInvoiceRepository struct {
	repository.InvoiceRepository
	mockFindByID            func(ctx context.Context, id uint) (*models.Invoice, error)
	mockFindByIDWithDetails func(ctx context.Context, id uint) (*models.Invoice, error)
	mockFindForPeriod       func(ctx context.Context, leaseID uint, periodStart, periodEnd time.Time) ([]models.Invoice, error)
	mockCreate              func(ctx context.Context, invoice *models.Invoice) error
	mockUpdateWithLock      func(ctx context.Context, invoice *models.Invoice) error
	mockReplaceLines        func(ctx context.Context, invoiceID uint, lines []models.InvoiceLine) error
	mockFindOverdue         func(ctx context.Context) ([]models.Invoice, error)
	mockMarkOverdueSent     func(ctx context.Context, invoiceIDs []uint) error
}

func (m *mockInvoiceRepository) FindByID(ctx context.Context, id uint) (*models.Invoice, error) {
	return m.mockFindByID(ctx, id)
}
func (m *mockInvoiceRepository) FindByIDWithDetails(ctx context.Context, id uint) (*models.Invoice, error) {
	return m.mockFindByIDWithDetails(ctx, id)
}
func (m *mockInvoiceRepository) FindForPeriod(ctx context.Context, leaseID uint, periodStart, periodEnd time.Time) ([]models.Invoice, error) {
	if m.mockFindForPeriod != nil {
		return m.mockFindForPeriod(ctx, leaseID, periodStart, periodEnd)
	}
	return nil, nil
}
func (m *mockInvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	if m.mockCreate != nil {
		return m.mockCreate(ctx, invoice)
	}
	return nil
}
func (m *mockInvoiceRepository) UpdateWithLock(ctx context.Context, invoice *models.Invoice) error {
	if m.mockUpdateWithLock != nil {
		return m.mockUpdateWithLock(ctx, invoice)
	}
	return nil
}
func (m *mockInvoiceRepository) ReplaceLines(ctx context.Context, invoiceID uint, lines []models.InvoiceLine) error {
	if m.mockReplaceLines != nil {
		return m.mockReplaceLines(ctx, invoiceID, lines)
	}
	return nil
}
func (m *mockInvoiceRepository) FindOverdueForActiveLeases(ctx context.Context) ([]models.Invoice, error) {
	if m.mockFindOverdue != nil {
		return m.mockFindOverdue(ctx)
	}
	return nil, nil
}
func (m *mockInvoiceRepository) MarkOverdueReminderSent(ctx context.Context, invoiceIDs []uint) error {
	if m.mockMarkOverdueSent != nil {
		return m.mockMarkOverdueSent(ctx, invoiceIDs)
	}
	return nil
}

// Mock LeaseRepository
type mockLeaseRepository struct {
	repository.LeaseRepository
	mockFindByID            func(ctx context.Context, id uint) (*models.Lease, error)
	mockFindByIDWithDetails func(ctx context.Context, id uint) (*models.Lease, error)
	mockFindActive          func(ctx context.Context) ([]models.Lease, error)
	mockHasActiveForUnit    func(ctx context.Context, unitID uint) (bool, error)
	mockCreate              func(ctx context.Context, lease *models.Lease) error
	mockUpdate              func(ctx context.Context, lease *models.Lease) error
	mockUpdateWithLock      func(ctx context.Context, lease *models.Lease) error
}

func (m *mockLeaseRepository) FindByID(ctx context.Context, id uint) (*models.Lease, error) {
	return m.mockFindByID(ctx, id)
}
func (m *mockLeaseRepository) FindByIDWithDetails(ctx context.Context, id uint) (*models.Lease, error) {
	return m.mockFindByIDWithDetails(ctx, id)
}
func (m *mockLeaseRepository) FindActive(ctx context.Context) ([]models.Lease, error) {
	return m.mockFindActive(ctx)
}
func (m *mockLeaseRepository) HasActiveLeaseForUnit(ctx context.Context, unitID uint) (bool, error) {
	if m.mockHasActiveForUnit != nil {
		return m.mockHasActiveForUnit(ctx, unitID)
	}
	return false, nil
}
func (m *mockLeaseRepository) Create(ctx context.Context, lease *models.Lease) error {
	if m.mockCreate != nil {
		return m.mockCreate(ctx, lease)
	}
	return nil
}
func (m *mockLeaseRepository) Update(ctx context.Context, lease *models.Lease) error {
	if m.mockUpdate != nil {
		return m.mockUpdate(ctx, lease)
	}
	return nil
}
func (m *mockLeaseRepository) UpdateWithLock(ctx context.Context, lease *models.Lease) error {
	if m.mockUpdateWithLock != nil {
		return m.mockUpdateWithLock(ctx, lease)
	}
	return nil
}

// Mock SequenceRepository
type mockSequenceRepository struct {
	mockNext func(ctx context.Context, orgID uint, sequenceType string) (int64, error)
}

func (m *mockSequenceRepository) Next(ctx context.Context, orgID uint, sequenceType string) (int64, error) {
	if m.mockNext != nil {
		return m.mockNext(ctx, orgID, sequenceType)
	}
	return 1, nil
}

// Mock NotificationRepository
type mockNotificationRepository struct {
	repository.NotificationRepository
	mockFindByID func(ctx context.Context, id uint) (*models.Notification, error)
	mockCreate   func(ctx context.Context, notification *models.Notification) error
	mockUpdate   func(ctx context.Context, notification *models.Notification) error
}

func (m *mockNotificationRepository) FindByID(ctx context.Context, id uint) (*models.Notification, error) {
	if m.mockFindByID != nil {
		return m.mockFindByID(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if m.mockCreate != nil {
		return m.mockCreate(ctx, notification)
	}
	return nil
}
func (m *mockNotificationRepository) Update(ctx context.Context, notification *models.Notification) error {
	if m.mockUpdate != nil {
		return m.mockUpdate(ctx, notification)
	}
	return nil
}

// Mock UserRepository (the auth tests carry their own narrower mock)
type mockUserRepository struct {
	repository.UserRepository
	mockFindByID       func(ctx context.Context, id uint) (*models.User, error)
	mockFindAdmins     func(ctx context.Context) ([]models.User, error)
	mockFindStaffByOrg func(ctx context.Context, orgID uint) ([]models.User, error)
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	if m.mockFindByID != nil {
		return m.mockFindByID(ctx, id)
	}
	return &models.User{ID: id, Status: models.StatusActive}, nil
}
func (m *mockUserRepository) FindAdmins(ctx context.Context) ([]models.User, error) {
	if m.mockFindAdmins != nil {
		return m.mockFindAdmins(ctx)
	}
	return nil, nil
}
func (m *mockUserRepository) FindStaffByOrg(ctx context.Context, orgID uint) ([]models.User, error) {
	if m.mockFindStaffByOrg != nil {
		return m.mockFindStaffByOrg(ctx, orgID)
	}
	return nil, nil
}

// invoiceFixture wires an InvoiceService over mock repositories. The bundle
// carries no database handle, so Atomically runs its callback directly and
// the audit service drops entries.
type invoiceFixture struct {
	invoices *mockInvoiceRepository
	leases   *mockLeaseRepository
	seqs     *mockSequenceRepository
	notifs   *mockNotificationRepository
	users    *mockUserRepository
	worker   *jobs.Worker
	service  *InvoiceService
}

func newInvoiceFixture(cfg *config.Config) *invoiceFixture {
	f := &invoiceFixture{
		invoices: &mockInvoiceRepository{},
		leases:   &mockLeaseRepository{},
		seqs:     &mockSequenceRepository{},
		notifs:   &mockNotificationRepository{},
		users:    &mockUserRepository{},
		worker:   jobs.NewWorker(0), // 0 workers, but EnqueueAsync spawns its own goroutines
	}
	repos := &repository.Repositories{
		User:         f.users,
		Lease:        f.leases,
		Invoice:      f.invoices,
		Sequence:     f.seqs,
		Notification: f.notifs,
	}
	notifSvc := NewNotificationService(f.notifs, f.users)
	f.service = NewInvoiceService(repos, NewProrationService(), notifSvc, NewEmailService(cfg), nil, f.worker, cfg)
	return f
}

// billableLease builds a lease starting mid-January with a prorated rent
// charge and a flat parking charge.
func billableLease() *models.Lease {
	return &models.Lease{
		ID:           1,
		OrgID:        1,
		UnitID:       3,
		TenantUserID: 5,
		StartDate:    date(2026, time.January, 15),
		BillingDay:   1,
		DueDays:      10,
		Status:       models.LeaseStatusActive,
		Currency:     "HNL",
		Charges: []models.LeaseCharge{
			{
				ID:              1,
				ChargeType:      models.ChargeTypeRent,
				Description:     "Alquiler mensual",
				Amount:          10000,
				ProrationMethod: models.ProrationActualDays,
			},
			{
				ID:              2,
				ChargeType:      models.ChargeTypeParking,
				Description:     "Parqueo",
				Amount:          500,
				ProrationMethod: models.ProrationNone,
			},
		},
	}
}

func TestInvoiceService_Generate_CreatesDraftWithProratedLines(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	lease := billableLease()
	f.leases.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Lease, error) {
		return lease, nil
	}
	f.seqs.mockNext = func(ctx context.Context, orgID uint, sequenceType string) (int64, error) {
		assert.Equal(t, models.SequenceTypeInvoice, sequenceType)
		return 7, nil
	}

	var created *models.Invoice
	f.invoices.mockCreate = func(ctx context.Context, invoice *models.Invoice) error {
		invoice.ID = 99
		created = invoice
		return nil
	}
	var replacedID uint
	f.invoices.mockReplaceLines = func(ctx context.Context, invoiceID uint, lines []models.InvoiceLine) error {
		replacedID = invoiceID
		return nil
	}

	invoice, err := f.service.Generate(context.Background(), 1,
		date(2026, time.January, 1), date(2026, time.January, 31), 0, "", "")

	assert.NoError(t, err)
	assert.NotNil(t, created)
	assert.Equal(t, uint(99), replacedID)
	assert.Equal(t, models.InvoiceStatusDraft, invoice.Status)
	assert.Equal(t, "INV-000007", *invoice.InvoiceNumber)
	assert.NotEmpty(t, invoice.GUID)
	assert.Equal(t, date(2026, time.January, 11), *invoice.DueDate, "due date is period start plus the lease's due days")

	// Rent is prorated 17/31 days, parking bills flat
	assert.Len(t, invoice.Lines, 2)
	assert.Equal(t, 5483.87, invoice.Lines[0].Amount)
	assert.True(t, invoice.Lines[0].Prorated)
	assert.Equal(t, date(2026, time.January, 15), invoice.Lines[0].ServiceStart)
	assert.Equal(t, date(2026, time.January, 31), invoice.Lines[0].ServiceEnd)
	assert.Equal(t, 500.00, invoice.Lines[1].Amount)
	assert.False(t, invoice.Lines[1].Prorated)

	assert.Equal(t, 5983.87, invoice.Subtotal)
	assert.Equal(t, 0.0, invoice.TaxAmount)
	assert.Equal(t, 5983.87, invoice.TotalAmount)
	assert.Equal(t, 5983.87, invoice.BalanceAmount)
}

func TestInvoiceService_Generate_AppliesChargeTax(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	lease := billableLease()
	lease.StartDate = date(2025, time.June, 1) // full occupancy
	lease.Charges = []models.LeaseCharge{{
		ChargeType:      models.ChargeTypeRent,
		Description:     "Alquiler mensual",
		Amount:          10000,
		TaxRate:         15,
		ProrationMethod: models.ProrationActualDays,
	}}
	f.leases.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Lease, error) {
		return lease, nil
	}

	invoice, err := f.service.Generate(context.Background(), 1,
		date(2026, time.January, 1), date(2026, time.January, 31), 0, "", "")

	assert.NoError(t, err)
	assert.Equal(t, 10000.00, invoice.Subtotal)
	assert.Equal(t, 1500.00, invoice.TaxAmount)
	assert.Equal(t, 11500.00, invoice.TotalAmount)
	assert.Equal(t, 1500.00, invoice.Lines[0].TaxAmount)
}

func TestInvoiceService_Generate_RegenerateKeepsIDAndNumber(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	lease := billableLease()
	f.leases.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Lease, error) {
		return lease, nil
	}

	number := "INV-000001"
	f.invoices.mockFindForPeriod = func(ctx context.Context, leaseID uint, periodStart, periodEnd time.Time) ([]models.Invoice, error) {
		return []models.Invoice{{
			ID:            42,
			LeaseID:       1,
			InvoiceNumber: &number,
			Status:        models.InvoiceStatusDraft,
			TotalAmount:   123.45, // stale totals from an earlier generation
			BalanceAmount: 123.45,
			LockVersion:   3,
		}}, nil
	}

	updateCalled := false
	f.invoices.mockUpdateWithLock = func(ctx context.Context, invoice *models.Invoice) error {
		updateCalled = true
		return nil
	}
	var replacedID uint
	f.invoices.mockReplaceLines = func(ctx context.Context, invoiceID uint, lines []models.InvoiceLine) error {
		replacedID = invoiceID
		return nil
	}
	createCalled := false
	f.invoices.mockCreate = func(ctx context.Context, invoice *models.Invoice) error {
		createCalled = true
		return nil
	}
	seqCalled := false
	f.seqs.mockNext = func(ctx context.Context, orgID uint, sequenceType string) (int64, error) {
		seqCalled = true
		return 2, nil
	}

	invoice, err := f.service.Generate(context.Background(), 1,
		date(2026, time.January, 1), date(2026, time.January, 31), 0, "", "")

	assert.NoError(t, err)
	assert.Equal(t, uint(42), invoice.ID, "draft keeps its id")
	assert.Equal(t, "INV-000001", *invoice.InvoiceNumber, "draft keeps its number")
	assert.True(t, updateCalled)
	assert.Equal(t, uint(42), replacedID)
	assert.False(t, createCalled, "no second invoice for the period")
	assert.False(t, seqCalled, "no new number reserved on regeneration")
	assert.Equal(t, 5983.87, invoice.TotalAmount, "totals recomputed from current charges")
	assert.Equal(t, 5983.87, invoice.BalanceAmount)
}

func TestInvoiceService_Generate_RefusesClosedPeriod(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	lease := billableLease()
	f.leases.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Lease, error) {
		return lease, nil
	}
	f.invoices.mockFindForPeriod = func(ctx context.Context, leaseID uint, periodStart, periodEnd time.Time) ([]models.Invoice, error) {
		return []models.Invoice{{ID: 42, Status: models.InvoiceStatusIssued}}, nil
	}
	createCalled := false
	f.invoices.mockCreate = func(ctx context.Context, invoice *models.Invoice) error {
		createCalled = true
		return nil
	}

	_, err := f.service.Generate(context.Background(), 1,
		date(2026, time.January, 1), date(2026, time.January, 31), 0, "", "")

	assert.ErrorIs(t, err, ErrInvalidState)
	assert.False(t, createCalled)
}

func TestInvoiceService_Generate_NoBillableCharges(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	// The only charge expired before the billing period
	expired := date(2025, time.June, 30)
	lease := billableLease()
	lease.Charges = []models.LeaseCharge{{
		ChargeType:      models.ChargeTypeRent,
		Description:     "Alquiler mensual",
		Amount:          10000,
		ProrationMethod: models.ProrationActualDays,
		EffectiveTo:     &expired,
	}}
	f.leases.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Lease, error) {
		return lease, nil
	}

	_, err := f.service.Generate(context.Background(), 1,
		date(2026, time.January, 1), date(2026, time.January, 31), 0, "", "")

	assert.ErrorIs(t, err, ErrBusinessRule)
}

func TestInvoiceService_Generate_RejectsInvertedPeriod(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	_, err := f.service.Generate(context.Background(), 1,
		date(2026, time.January, 31), date(2026, time.January, 1), 0, "", "")

	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInvoiceService_Issue_StampsNumberAndDueDate(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	draft := &models.Invoice{
		ID:          7,
		OrgID:       1,
		LeaseID:     1,
		Status:      models.InvoiceStatusDraft,
		TotalAmount: 5000,
		LockVersion: 2,
	}
	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return draft, nil
	}
	f.seqs.mockNext = func(ctx context.Context, orgID uint, sequenceType string) (int64, error) {
		return 12, nil
	}
	updateCalled := false
	f.invoices.mockUpdateWithLock = func(ctx context.Context, invoice *models.Invoice) error {
		updateCalled = true
		return nil
	}

	// The async notification reloads the invoice with details
	f.invoices.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Invoice, error) {
		full := *draft
		full.Lease = models.Lease{
			ID:           1,
			TenantUserID: 5,
			TenantUser:   models.User{ID: 5, FullName: "Laura Mejía", Email: "laura@example.com"},
		}
		return &full, nil
	}
	var notified *models.Notification
	f.notifs.mockCreate = func(ctx context.Context, notification *models.Notification) error {
		notified = notification
		return nil
	}

	invoice, err := f.service.Issue(context.Background(), 7, 2, 0, "", "")

	assert.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusIssued, invoice.Status)
	assert.NotNil(t, invoice.IssuedAt)
	assert.Equal(t, "INV-000012", *invoice.InvoiceNumber)
	expectedDue := dateOnly(time.Now()).AddDate(0, 0, 10)
	assert.Equal(t, expectedDue, *invoice.DueDate)
	assert.True(t, updateCalled)

	// Wait a bit for the async notification
	time.Sleep(100 * time.Millisecond)
	if assert.NotNil(t, notified, "tenant should be notified") {
		assert.Equal(t, uint(5), notified.UserID)
		assert.Equal(t, "Factura emitida", notified.Title)
	}
}

func TestInvoiceService_Issue_RejectsNonDraft(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return &models.Invoice{ID: 7, Status: models.InvoiceStatusIssued, LockVersion: 1}, nil
	}

	_, err := f.service.Issue(context.Background(), 7, 0, 0, "", "")

	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestInvoiceService_Issue_StaleLockVersion(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return &models.Invoice{ID: 7, Status: models.InvoiceStatusDraft, LockVersion: 5}, nil
	}

	_, err := f.service.Issue(context.Background(), 7, 3, 0, "", "")

	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func TestInvoiceService_Void_RequiresReason(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	_, err := f.service.Void(context.Background(), 7, 0, "   ", 0, "", "")

	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInvoiceService_Void_RefusesInvoiceWithPayments(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return &models.Invoice{
			ID:            7,
			Status:        models.InvoiceStatusPartiallyPaid,
			TotalAmount:   5000,
			PaidAmount:    2000,
			BalanceAmount: 3000,
			LockVersion:   1,
		}, nil
	}

	_, err := f.service.Void(context.Background(), 7, 0, "generada por error", 0, "", "")

	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestInvoiceService_Void_MarksInvoiceVoided(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	f.invoices.mockFindByID = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return &models.Invoice{ID: 7, Status: models.InvoiceStatusIssued, LockVersion: 1}, nil
	}
	f.invoices.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Invoice, error) {
		return &models.Invoice{ID: 7, Status: models.InvoiceStatusVoided, Lease: models.Lease{TenantUserID: 5}}, nil
	}

	invoice, err := f.service.Void(context.Background(), 7, 0, "generada por error", 0, "", "")

	assert.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusVoided, invoice.Status)
	assert.NotNil(t, invoice.VoidedAt)
	assert.Equal(t, "generada por error", *invoice.VoidReason)

	time.Sleep(100 * time.Millisecond)
}

func TestApplyPaymentToInvoice_PartialThenFull(t *testing.T) {
	invoice := &models.Invoice{
		Status:        models.InvoiceStatusIssued,
		TotalAmount:   1000,
		PaidAmount:    0,
		BalanceAmount: 1000,
	}

	err := applyPaymentToInvoice(context.Background(), invoice, 400)
	assert.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, invoice.Status)
	assert.Equal(t, 400.00, invoice.PaidAmount)
	assert.Equal(t, 600.00, invoice.BalanceAmount)

	err = applyPaymentToInvoice(context.Background(), invoice, 600)
	assert.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
	assert.Equal(t, 1000.00, invoice.PaidAmount)
	assert.Equal(t, 0.00, invoice.BalanceAmount)
}

func TestApplyPaymentToInvoice_RejectsOverpayment(t *testing.T) {
	invoice := &models.Invoice{
		Status:        models.InvoiceStatusPartiallyPaid,
		TotalAmount:   1000,
		PaidAmount:    400,
		BalanceAmount: 600,
	}

	err := applyPaymentToInvoice(context.Background(), invoice, 600.01)
	assert.ErrorIs(t, err, ErrBusinessRule)
	assert.Equal(t, 400.00, invoice.PaidAmount, "invoice untouched on rejection")
}

func TestApplyPaymentToInvoice_RejectsClosedInvoice(t *testing.T) {
	draft := &models.Invoice{Status: models.InvoiceStatusDraft, TotalAmount: 1000, BalanceAmount: 1000}
	assert.ErrorIs(t, applyPaymentToInvoice(context.Background(), draft, 100), ErrInvalidState)

	voided := &models.Invoice{Status: models.InvoiceStatusVoided}
	assert.ErrorIs(t, applyPaymentToInvoice(context.Background(), voided, 100), ErrInvalidState)

	issued := &models.Invoice{Status: models.InvoiceStatusIssued, TotalAmount: 1000, BalanceAmount: 1000}
	assert.ErrorIs(t, applyPaymentToInvoice(context.Background(), issued, 0), ErrInvalidArgument)
}

func TestCurrentBillingPeriod_AnchorsOnBillingDay(t *testing.T) {
	lease := &models.Lease{BillingDay: 1}
	start, end := currentBillingPeriod(lease, date(2026, time.January, 15))
	assert.Equal(t, date(2026, time.January, 1), start)
	assert.Equal(t, date(2026, time.January, 31), end)

	// On the billing day itself the period starts today
	start, end = currentBillingPeriod(lease, date(2026, time.January, 1))
	assert.Equal(t, date(2026, time.January, 1), start)
	assert.Equal(t, date(2026, time.January, 31), end)

	// Before the billing day the period is the previous month's
	lease = &models.Lease{BillingDay: 15}
	start, end = currentBillingPeriod(lease, date(2026, time.February, 10))
	assert.Equal(t, date(2026, time.January, 15), start)
	assert.Equal(t, date(2026, time.February, 14), end)
}

func TestCurrentBillingPeriod_ClampsShortMonths(t *testing.T) {
	lease := &models.Lease{BillingDay: 31}

	// Billing day 31 in February clamps to the month's last day
	start, end := currentBillingPeriod(lease, date(2026, time.February, 15))
	assert.Equal(t, date(2026, time.January, 31), start)
	assert.Equal(t, date(2026, time.February, 27), end)

	// The next period picks up exactly where the clamped one ended
	start, end = currentBillingPeriod(lease, date(2026, time.March, 1))
	assert.Equal(t, date(2026, time.February, 28), start)
	assert.Equal(t, date(2026, time.March, 30), end)
}

func TestInvoiceService_RunBillingCycle_SkipsInvoicedPeriods(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	lease := *billableLease()
	lease.StartDate = date(2025, time.June, 1)
	f.leases.mockFindActive = func(ctx context.Context) ([]models.Lease, error) {
		return []models.Lease{lease}, nil
	}
	f.leases.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Lease, error) {
		l := lease
		return &l, nil
	}
	f.invoices.mockFindForPeriod = func(ctx context.Context, leaseID uint, periodStart, periodEnd time.Time) ([]models.Invoice, error) {
		return []models.Invoice{{ID: 1, Status: models.InvoiceStatusIssued}}, nil
	}
	createCalled := false
	f.invoices.mockCreate = func(ctx context.Context, invoice *models.Invoice) error {
		createCalled = true
		return nil
	}

	err := f.service.RunBillingCycle(context.Background())

	assert.NoError(t, err)
	assert.False(t, createCalled, "already-invoiced period must be skipped")
}

func TestInvoiceService_RunBillingCycle_GeneratesCurrentPeriod(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10}) // AutoIssueInvoices off
	defer f.worker.Shutdown()

	lease := *billableLease()
	lease.StartDate = date(2025, time.June, 1)
	f.leases.mockFindActive = func(ctx context.Context) ([]models.Lease, error) {
		return []models.Lease{lease}, nil
	}
	f.leases.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Lease, error) {
		l := lease
		return &l, nil
	}
	var created *models.Invoice
	f.invoices.mockCreate = func(ctx context.Context, invoice *models.Invoice) error {
		invoice.ID = 50
		created = invoice
		return nil
	}

	err := f.service.RunBillingCycle(context.Background())

	assert.NoError(t, err)
	if assert.NotNil(t, created) {
		assert.Equal(t, models.InvoiceStatusDraft, created.Status, "stays draft without auto-issue")
		expectedStart, expectedEnd := currentBillingPeriod(&lease, time.Now())
		assert.Equal(t, expectedStart, created.PeriodStart)
		assert.Equal(t, expectedEnd, created.PeriodEnd)
	}
}

func TestInvoiceService_SendOverdueReminders_MarksPerTenant(t *testing.T) {
	f := newInvoiceFixture(&config.Config{DueDays: 10})
	defer f.worker.Shutdown()

	due := date(2026, time.January, 10)
	number1, number2 := "INV-000001", "INV-000002"
	overdue := []models.Invoice{
		{ID: 1, InvoiceNumber: &number1, BalanceAmount: 5000, DueDate: &due,
			Lease: models.Lease{TenantUserID: 5}},
		{ID: 2, InvoiceNumber: &number2, BalanceAmount: 300, DueDate: &due,
			Lease: models.Lease{TenantUserID: 5}},
	}
	f.invoices.mockFindOverdue = func(ctx context.Context) ([]models.Invoice, error) {
		return overdue, nil
	}
	f.users.mockFindByID = func(ctx context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, FullName: "Laura Mejía", Email: "laura@example.com"}, nil
	}

	var notified *models.Notification
	f.notifs.mockCreate = func(ctx context.Context, notification *models.Notification) error {
		notified = notification
		return nil
	}
	var markedIDs []uint
	f.invoices.mockMarkOverdueSent = func(ctx context.Context, invoiceIDs []uint) error {
		markedIDs = invoiceIDs
		return nil
	}

	err := f.service.SendOverdueReminders(context.Background())

	assert.NoError(t, err)
	if assert.NotNil(t, notified) {
		assert.Equal(t, uint(5), notified.UserID)
		assert.Equal(t, "Facturas vencidas", notified.Title)
	}
	assert.ElementsMatch(t, []uint{1, 2}, markedIDs, "both invoices recorded as reminded")
}
