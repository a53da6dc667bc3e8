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

// Mock UnitRepository
type mockUnitRepository struct {
	repository.UnitRepository
	mockFindByID func(ctx context.Context, id uint) (*models.Unit, error)
	mockUpdate   func(ctx context.Context, unit *models.Unit) error
}

func (m *mockUnitRepository) FindByID(ctx context.Context, id uint) (*models.Unit, error) {
	return m.mockFindByID(ctx, id)
}
func (m *mockUnitRepository) Update(ctx context.Context, unit *models.Unit) error {
	if m.mockUpdate != nil {
		return m.mockUpdate(ctx, unit)
	}
	return nil
}

// Mock LeaseChargeRepository
type mockLeaseChargeRepository struct {
	repository.LeaseChargeRepository
	mockFindByID func(ctx context.Context, id uint) (*models.LeaseCharge, error)
	mockCreate   func(ctx context.Context, charge *models.LeaseCharge) error
	mockUpdate   func(ctx context.Context, charge *models.LeaseCharge) error
	mockDelete   func(ctx context.Context, id uint) error
}

func (m *mockLeaseChargeRepository) FindByID(ctx context.Context, id uint) (*models.LeaseCharge, error) {
	return m.mockFindByID(ctx, id)
}
func (m *mockLeaseChargeRepository) Create(ctx context.Context, charge *models.LeaseCharge) error {
	if m.mockCreate != nil {
		return m.mockCreate(ctx, charge)
	}
	return nil
}
func (m *mockLeaseChargeRepository) Update(ctx context.Context, charge *models.LeaseCharge) error {
	if m.mockUpdate != nil {
		return m.mockUpdate(ctx, charge)
	}
	return nil
}
func (m *mockLeaseChargeRepository) Delete(ctx context.Context, id uint) error {
	if m.mockDelete != nil {
		return m.mockDelete(ctx, id)
	}
	return nil
}

type leaseFixture struct {
	leases  *mockLeaseRepository
	charges *mockLeaseChargeRepository
	units   *mockUnitRepository
	users   *mockUserRepository
	notifs  *mockNotificationRepository
	worker  *jobs.Worker
	service *LeaseService
}

func newLeaseFixture() *leaseFixture {
	f := &leaseFixture{
		leases:  &mockLeaseRepository{},
		charges: &mockLeaseChargeRepository{},
		units:   &mockUnitRepository{},
		users:   &mockUserRepository{},
		notifs:  &mockNotificationRepository{},
		worker:  jobs.NewWorker(0), // 0 workers, but EnqueueAsync spawns its own goroutines
	}
	notifSvc := NewNotificationService(f.notifs, f.users)
	f.service = NewLeaseService(f.leases, f.charges, f.units, f.users,
		notifSvc, NewEmailService(&config.Config{}), nil, f.worker)
	return f
}

func availableUnit() *models.Unit {
	return &models.Unit{
		ID:          3,
		PropertyID:  1,
		Label:       "A-101",
		Status:      models.UnitStatusAvailable,
		MonthlyRent: 10000,
	}
}

func TestLeaseService_Create_SeedsRentChargeAndOccupiesUnit(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	unit := availableUnit()
	f.units.mockFindByID = func(ctx context.Context, id uint) (*models.Unit, error) {
		return unit, nil
	}
	unitUpdated := false
	f.units.mockUpdate = func(ctx context.Context, u *models.Unit) error {
		unitUpdated = true
		return nil
	}
	f.leases.mockCreate = func(ctx context.Context, lease *models.Lease) error {
		lease.ID = 1
		return nil
	}
	var notified *models.Notification
	f.notifs.mockCreate = func(ctx context.Context, notification *models.Notification) error {
		notified = notification
		return nil
	}

	lease := &models.Lease{
		OrgID:        1,
		UnitID:       3,
		TenantUserID: 5,
		StartDate:    date(2026, time.March, 1),
		BillingDay:   1,
		DueDays:      10,
	}
	err := f.service.Create(context.Background(), lease, 0, "", "")

	assert.NoError(t, err)
	assert.Equal(t, models.LeaseStatusActive, lease.Status)

	// A rent charge was seeded from the unit
	if assert.Len(t, lease.Charges, 1) {
		charge := lease.Charges[0]
		assert.Equal(t, models.ChargeTypeRent, charge.ChargeType)
		assert.Equal(t, 10000.00, charge.Amount)
		assert.Equal(t, models.ProrationActualDays, charge.ProrationMethod)
		assert.Contains(t, charge.Description, "A-101")
	}

	assert.Equal(t, models.UnitStatusOccupied, unit.Status)
	assert.True(t, unitUpdated)

	// Wait a bit for the async notification
	time.Sleep(100 * time.Millisecond)
	if assert.NotNil(t, notified) {
		assert.Equal(t, uint(5), notified.UserID)
		assert.Equal(t, "Contrato de alquiler creado", notified.Title)
	}
}

func TestLeaseService_Create_ValidatesTerms(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	base := func() *models.Lease {
		return &models.Lease{
			UnitID:       3,
			TenantUserID: 5,
			StartDate:    date(2026, time.March, 1),
			BillingDay:   1,
		}
	}

	lease := base()
	lease.StartDate = time.Time{}
	assert.ErrorIs(t, f.service.Create(context.Background(), lease, 0, "", ""), ErrInvalidArgument, "missing start date")

	lease = base()
	end := date(2026, time.February, 1)
	lease.EndDate = &end
	assert.ErrorIs(t, f.service.Create(context.Background(), lease, 0, "", ""), ErrInvalidArgument, "end before start")

	lease = base()
	lease.BillingDay = 0
	assert.ErrorIs(t, f.service.Create(context.Background(), lease, 0, "", ""), ErrInvalidArgument, "billing day below range")

	lease = base()
	lease.BillingDay = 32
	assert.ErrorIs(t, f.service.Create(context.Background(), lease, 0, "", ""), ErrInvalidArgument, "billing day above range")

	lease = base()
	lease.DueDays = -1
	assert.ErrorIs(t, f.service.Create(context.Background(), lease, 0, "", ""), ErrInvalidArgument, "negative due days")
}

func TestLeaseService_Create_RejectsTakenUnit(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	lease := &models.Lease{
		UnitID:       3,
		TenantUserID: 5,
		StartDate:    date(2026, time.March, 1),
		BillingDay:   1,
	}

	// 1. Unit under maintenance
	f.units.mockFindByID = func(ctx context.Context, id uint) (*models.Unit, error) {
		return &models.Unit{ID: 3, Label: "A-101", Status: models.UnitStatusMaintenance}, nil
	}
	err := f.service.Create(context.Background(), lease, 0, "", "")
	assert.ErrorIs(t, err, ErrBusinessRule)

	// 2. Unit available but already under an active lease
	f.units.mockFindByID = func(ctx context.Context, id uint) (*models.Unit, error) {
		return availableUnit(), nil
	}
	f.leases.mockHasActiveForUnit = func(ctx context.Context, unitID uint) (bool, error) {
		return true, nil
	}
	err = f.service.Create(context.Background(), lease, 0, "", "")
	assert.ErrorIs(t, err, ErrBusinessRule)
}

func TestLeaseService_Create_RejectsInvalidCharge(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	f.units.mockFindByID = func(ctx context.Context, id uint) (*models.Unit, error) {
		return availableUnit(), nil
	}
	createCalled := false
	f.leases.mockCreate = func(ctx context.Context, lease *models.Lease) error {
		createCalled = true
		return nil
	}

	lease := &models.Lease{
		UnitID:       3,
		TenantUserID: 5,
		StartDate:    date(2026, time.March, 1),
		BillingDay:   1,
		Charges: []models.LeaseCharge{{
			ChargeType:  "cable",
			Description: "TV por cable",
			Amount:      300,
		}},
	}
	err := f.service.Create(context.Background(), lease, 0, "", "")

	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, createCalled)
}

func TestLeaseService_Terminate_BoundsOccupancy(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	lease := &models.Lease{
		ID:           1,
		UnitID:       3,
		TenantUserID: 5,
		StartDate:    date(2026, time.January, 15),
		BillingDay:   1,
		Status:       models.LeaseStatusActive,
		LockVersion:  1,
	}
	f.leases.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Lease, error) {
		return lease, nil
	}
	updated := false
	f.leases.mockUpdateWithLock = func(ctx context.Context, l *models.Lease) error {
		updated = true
		return nil
	}
	unit := &models.Unit{ID: 3, Label: "A-101", Status: models.UnitStatusOccupied}
	f.units.mockFindByID = func(ctx context.Context, id uint) (*models.Unit, error) {
		return unit, nil
	}

	effective := date(2026, time.June, 20)
	result, err := f.service.Terminate(context.Background(), 1, 1, &effective, "mudanza", 0, "", "")

	assert.NoError(t, err)
	assert.Equal(t, models.LeaseStatusTerminated, result.Status)
	assert.Equal(t, date(2026, time.June, 20), *result.TerminatedAt)
	assert.Equal(t, "mudanza", *result.Note)
	assert.True(t, updated)
	assert.Equal(t, models.UnitStatusAvailable, unit.Status, "unit released for the next tenant")

	// The final invoice prorates up to the effective date
	assert.Equal(t, date(2026, time.June, 20), *result.OccupancyEnd())

	time.Sleep(100 * time.Millisecond)
}

func TestLeaseService_Terminate_RejectsDateBeforeStart(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	f.leases.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Lease, error) {
		return &models.Lease{
			ID:          1,
			StartDate:   date(2026, time.January, 15),
			Status:      models.LeaseStatusActive,
			LockVersion: 1,
		}, nil
	}

	effective := date(2026, time.January, 10)
	_, err := f.service.Terminate(context.Background(), 1, 0, &effective, "", 0, "", "")

	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLeaseService_Terminate_RejectsNonActiveLease(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	f.leases.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Lease, error) {
		return &models.Lease{ID: 1, Status: models.LeaseStatusTerminated, LockVersion: 1}, nil
	}

	_, err := f.service.Terminate(context.Background(), 1, 0, nil, "", 0, "", "")

	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLeaseService_Terminate_StaleLockVersion(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	f.leases.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Lease, error) {
		return &models.Lease{ID: 1, Status: models.LeaseStatusActive, LockVersion: 3}, nil
	}

	_, err := f.service.Terminate(context.Background(), 1, 2, nil, "", 0, "", "")

	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func TestLeaseService_ExpireEndedLeases(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	past := date(2026, time.January, 31)
	f.leases.mockFindActive = func(ctx context.Context) ([]models.Lease, error) {
		return []models.Lease{
			{ID: 1, UnitID: 3, Status: models.LeaseStatusActive, EndDate: &past},
			{ID: 2, UnitID: 4, Status: models.LeaseStatusActive}, // open ended, stays active
		}, nil
	}

	var expiredIDs []uint
	f.leases.mockUpdate = func(ctx context.Context, lease *models.Lease) error {
		expiredIDs = append(expiredIDs, lease.ID)
		assert.Equal(t, models.LeaseStatusExpired, lease.Status)
		return nil
	}
	unit := &models.Unit{ID: 3, Status: models.UnitStatusOccupied}
	f.units.mockFindByID = func(ctx context.Context, id uint) (*models.Unit, error) {
		return unit, nil
	}

	err := f.service.ExpireEndedLeases(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []uint{1}, expiredIDs)
	assert.Equal(t, models.UnitStatusAvailable, unit.Status)
}

func TestLeaseService_AddCharge_RequiresActiveLease(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	f.leases.mockFindByID = func(ctx context.Context, id uint) (*models.Lease, error) {
		return &models.Lease{ID: 1, Status: models.LeaseStatusTerminated}, nil
	}

	err := f.service.AddCharge(context.Background(), 1, &models.LeaseCharge{
		ChargeType:  models.ChargeTypeWater,
		Description: "Agua",
		Amount:      250,
	}, 0, "", "")

	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLeaseService_AddCharge_AttachesToLease(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	f.leases.mockFindByID = func(ctx context.Context, id uint) (*models.Lease, error) {
		return &models.Lease{ID: 1, Status: models.LeaseStatusActive}, nil
	}
	var created *models.LeaseCharge
	f.charges.mockCreate = func(ctx context.Context, charge *models.LeaseCharge) error {
		created = charge
		return nil
	}

	charge := &models.LeaseCharge{
		ChargeType:  models.ChargeTypeWater,
		Description: "Agua",
		Amount:      250,
	}
	err := f.service.AddCharge(context.Background(), 1, charge, 0, "", "")

	assert.NoError(t, err)
	if assert.NotNil(t, created) {
		assert.Equal(t, uint(1), created.LeaseID)
		assert.Equal(t, models.ProrationActualDays, created.ProrationMethod, "empty method defaults to daily proration")
	}
}

func TestLeaseService_UpdateCharge_ChecksOwnership(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	f.charges.mockFindByID = func(ctx context.Context, id uint) (*models.LeaseCharge, error) {
		return &models.LeaseCharge{ID: 9, LeaseID: 2}, nil
	}

	err := f.service.UpdateCharge(context.Background(), 1, 9, &models.LeaseCharge{
		ChargeType:  models.ChargeTypeWater,
		Description: "Agua",
		Amount:      300,
	}, 0, "", "")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaseService_RemoveCharge_ChecksOwnership(t *testing.T) {
	f := newLeaseFixture()
	defer f.worker.Shutdown()

	f.charges.mockFindByID = func(ctx context.Context, id uint) (*models.LeaseCharge, error) {
		return &models.LeaseCharge{ID: 9, LeaseID: 2}, nil
	}
	deleteCalled := false
	f.charges.mockDelete = func(ctx context.Context, id uint) error {
		deleteCalled = true
		return nil
	}

	err := f.service.RemoveCharge(context.Background(), 1, 9, 0, "", "")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, deleteCalled)
}
