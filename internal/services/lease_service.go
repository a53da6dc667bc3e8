package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dtorrez/rentora-api/internal/jobs"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/internal/statemachine"
	"github.com/dtorrez/rentora-api/pkg/logger"
)

// LeaseService manages leases and their recurring charges.
type LeaseService struct {
	repo            repository.LeaseRepository
	chargeRepo      repository.LeaseChargeRepository
	unitRepo        repository.UnitRepository
	userRepo        repository.UserRepository
	notificationSvc *NotificationService
	emailSvc        *EmailService
	auditSvc        *AuditService
	worker          *jobs.Worker
}

// NewLeaseService creates a new lease service
func NewLeaseService(
	repo repository.LeaseRepository,
	chargeRepo repository.LeaseChargeRepository,
	unitRepo repository.UnitRepository,
	userRepo repository.UserRepository,
	notificationSvc *NotificationService,
	emailSvc *EmailService,
	auditSvc *AuditService,
	worker *jobs.Worker,
) *LeaseService {
	return &LeaseService{
		repo:            repo,
		chargeRepo:      chargeRepo,
		unitRepo:        unitRepo,
		userRepo:        userRepo,
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		auditSvc:        auditSvc,
		worker:          worker,
	}
}

// FindByID gets a lease by ID
func (s *LeaseService) FindByID(ctx context.Context, id uint) (*models.Lease, error) {
	lease, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return lease, nil
}

// FindByIDWithDetails gets a lease by ID with all nested associations preloaded
func (s *LeaseService) FindByIDWithDetails(ctx context.Context, id uint) (*models.Lease, error) {
	lease, err := s.repo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return lease, nil
}

func (s *LeaseService) List(ctx context.Context, query *repository.LeaseQuery) ([]models.Lease, int64, error) {
	return s.repo.List(ctx, query)
}

func (s *LeaseService) FindByTenant(ctx context.Context, tenantUserID uint) ([]models.Lease, error) {
	return s.repo.FindByTenant(ctx, tenantUserID)
}

// Create opens a lease on an available unit. When no charges are supplied, a
// monthly rent charge is seeded from the unit's rent so the first billing
// cycle has something to invoice.
func (s *LeaseService) Create(ctx context.Context, lease *models.Lease, actorID uint, ip, userAgent string) error {
	if err := validateLeaseTerms(lease); err != nil {
		return err
	}

	unit, err := s.unitRepo.FindByID(ctx, lease.UnitID)
	if err != nil {
		return translateRepoError(err)
	}
	if !unit.IsAvailable() {
		return fmt.Errorf("%w: la unidad %s no está disponible", ErrBusinessRule, unit.Label)
	}
	taken, err := s.repo.HasActiveLeaseForUnit(ctx, unit.ID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: la unidad %s ya tiene un contrato activo", ErrBusinessRule, unit.Label)
	}

	tenant, err := s.userRepo.FindByID(ctx, lease.TenantUserID)
	if err != nil {
		return translateRepoError(err)
	}

	lease.Status = models.LeaseStatusActive
	lease.StartDate = dateOnly(lease.StartDate)
	if lease.EndDate != nil {
		endDate := dateOnly(*lease.EndDate)
		lease.EndDate = &endDate
	}

	if len(lease.Charges) == 0 {
		lease.Charges = []models.LeaseCharge{{
			ChargeType:      models.ChargeTypeRent,
			Description:     fmt.Sprintf("Alquiler mensual - %s", unit.Label),
			Amount:          unit.MonthlyRent,
			ProrationMethod: models.ProrationActualDays,
		}}
	}
	for i := range lease.Charges {
		if err := validateCharge(&lease.Charges[i]); err != nil {
			return err
		}
	}

	if err := s.repo.Create(ctx, lease); err != nil {
		return err
	}

	// Mark the unit occupied
	unit.Status = models.UnitStatusOccupied
	s.unitRepo.Update(ctx, unit)

	// Notify tenant asynchronously
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.NotifyUser(ctx, lease.TenantUserID,
			"Contrato de alquiler creado",
			fmt.Sprintf("Se creó tu contrato de alquiler para la unidad %s", unit.Label),
			models.NotificationTypeLeaseCreated)
	})

	s.auditSvc.Log(ctx, actorID, "CREATE", "Lease", lease.ID,
		fmt.Sprintf("Contrato creado para la unidad %s, inquilino %s, inicio %s",
			unit.Label, tenant.FullName, lease.StartDate.Format("2006-01-02")), ip, userAgent)

	return nil
}

func (s *LeaseService) Update(ctx context.Context, lease *models.Lease) error {
	if err := validateLeaseTerms(lease); err != nil {
		return err
	}
	if err := s.repo.UpdateWithLock(ctx, lease); err != nil {
		return translateRepoError(err)
	}
	return nil
}

// Terminate ends an active lease. The effective date bounds the occupancy,
// so the period's final invoice prorates up to it.
func (s *LeaseService) Terminate(ctx context.Context, id uint, lockVersion int, effectiveDate *time.Time, note string, actorID uint, ip, userAgent string) (*models.Lease, error) {
	lease, err := s.repo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if lockVersion > 0 && lease.LockVersion != lockVersion {
		return nil, fmt.Errorf("%w: el contrato fue modificado, recarga e intenta de nuevo", ErrConcurrencyConflict)
	}

	fsm := statemachine.NewLeaseFSM(lease)
	if err := fsm.Terminate(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	terminatedAt := time.Now()
	if effectiveDate != nil {
		terminatedAt = dateOnly(*effectiveDate)
		if terminatedAt.Before(dateOnly(lease.StartDate)) {
			return nil, fmt.Errorf("%w: la fecha de terminación no puede ser anterior al inicio del contrato", ErrInvalidArgument)
		}
	}
	lease.TerminatedAt = &terminatedAt
	if note = strings.TrimSpace(note); note != "" {
		lease.Note = &note
	}

	if err := s.repo.UpdateWithLock(ctx, lease); err != nil {
		return nil, translateRepoError(err)
	}

	// Release the unit
	unit, _ := s.unitRepo.FindByID(ctx, lease.UnitID)
	if unit != nil {
		unit.Status = models.UnitStatusAvailable
		s.unitRepo.Update(ctx, unit)
	}

	// Notify tenant
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.NotifyUser(ctx, lease.TenantUserID,
			"Contrato terminado",
			fmt.Sprintf("Tu contrato de alquiler termina el %s", terminatedAt.Format("2006-01-02")),
			models.NotificationTypeLeaseTerminated)
	})

	s.auditSvc.Log(ctx, actorID, "TERMINATE", "Lease", lease.ID,
		fmt.Sprintf("Contrato #%d terminado con efecto %s", lease.ID, terminatedAt.Format("2006-01-02")), ip, userAgent)

	return lease, nil
}

// ExpireEndedLeases flips active leases whose end date has passed to
// expired and releases their units. Meant to run daily.
func (s *LeaseService) ExpireEndedLeases(ctx context.Context) error {
	leases, err := s.repo.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active leases: %w", err)
	}

	today := dateOnly(time.Now())
	expired := 0
	for i := range leases {
		lease := &leases[i]
		if lease.EndDate == nil || !dateOnly(*lease.EndDate).Before(today) {
			continue
		}

		fsm := statemachine.NewLeaseFSM(lease)
		if err := fsm.Expire(ctx); err != nil {
			continue
		}
		if err := s.repo.Update(ctx, lease); err != nil {
			logger.Warn(fmt.Sprintf("[Lease expiry] Failed to expire lease %d: %v", lease.ID, err))
			continue
		}
		expired++

		unit, _ := s.unitRepo.FindByID(ctx, lease.UnitID)
		if unit != nil {
			unit.Status = models.UnitStatusAvailable
			s.unitRepo.Update(ctx, unit)
		}
	}

	if expired > 0 {
		logger.Info(fmt.Sprintf("[Lease expiry] Expired %d lease(s)", expired))
	}
	return nil
}

// AddCharge attaches a recurring charge to a lease.
func (s *LeaseService) AddCharge(ctx context.Context, leaseID uint, charge *models.LeaseCharge, actorID uint, ip, userAgent string) error {
	lease, err := s.repo.FindByID(ctx, leaseID)
	if err != nil {
		return translateRepoError(err)
	}
	if !lease.IsActive() {
		return fmt.Errorf("%w: no se pueden agregar cargos a un contrato %s", ErrInvalidState, lease.Status)
	}
	if err := validateCharge(charge); err != nil {
		return err
	}

	charge.LeaseID = lease.ID
	if err := s.chargeRepo.Create(ctx, charge); err != nil {
		return err
	}

	s.auditSvc.Log(ctx, actorID, "ADD_CHARGE", "Lease", lease.ID,
		fmt.Sprintf("Cargo %s de L%.2f agregado al contrato #%d", charge.ChargeType, charge.Amount, lease.ID), ip, userAgent)

	return nil
}

// UpdateCharge modifies a recurring charge. Already-issued invoices keep the
// lines they were generated with; only future generations see the change.
func (s *LeaseService) UpdateCharge(ctx context.Context, leaseID, chargeID uint, charge *models.LeaseCharge, actorID uint, ip, userAgent string) error {
	existing, err := s.chargeRepo.FindByID(ctx, chargeID)
	if err != nil {
		return translateRepoError(err)
	}
	if existing.LeaseID != leaseID {
		return fmt.Errorf("%w: el cargo no pertenece al contrato #%d", ErrNotFound, leaseID)
	}
	if err := validateCharge(charge); err != nil {
		return err
	}

	existing.ChargeType = charge.ChargeType
	existing.Description = charge.Description
	existing.Amount = charge.Amount
	existing.TaxRate = charge.TaxRate
	existing.ProrationMethod = charge.ProrationMethod
	existing.EffectiveFrom = charge.EffectiveFrom
	existing.EffectiveTo = charge.EffectiveTo

	if err := s.chargeRepo.Update(ctx, existing); err != nil {
		return err
	}

	s.auditSvc.Log(ctx, actorID, "UPDATE_CHARGE", "Lease", leaseID,
		fmt.Sprintf("Cargo #%d (%s) actualizado a L%.2f", existing.ID, existing.ChargeType, existing.Amount), ip, userAgent)

	return nil
}

// RemoveCharge deletes a recurring charge from a lease.
func (s *LeaseService) RemoveCharge(ctx context.Context, leaseID, chargeID uint, actorID uint, ip, userAgent string) error {
	existing, err := s.chargeRepo.FindByID(ctx, chargeID)
	if err != nil {
		return translateRepoError(err)
	}
	if existing.LeaseID != leaseID {
		return fmt.Errorf("%w: el cargo no pertenece al contrato #%d", ErrNotFound, leaseID)
	}

	if err := s.chargeRepo.Delete(ctx, chargeID); err != nil {
		return err
	}

	s.auditSvc.Log(ctx, actorID, "REMOVE_CHARGE", "Lease", leaseID,
		fmt.Sprintf("Cargo #%d (%s) eliminado del contrato #%d", existing.ID, existing.ChargeType, leaseID), ip, userAgent)

	return nil
}

// validateLeaseTerms checks the billing fields a lease cannot live without.
func validateLeaseTerms(lease *models.Lease) error {
	if lease.StartDate.IsZero() {
		return fmt.Errorf("%w: se requiere la fecha de inicio", ErrInvalidArgument)
	}
	if lease.EndDate != nil && lease.EndDate.Before(lease.StartDate) {
		return fmt.Errorf("%w: la fecha de fin es anterior al inicio", ErrInvalidArgument)
	}
	if lease.BillingDay < 1 || lease.BillingDay > 31 {
		return fmt.Errorf("%w: el día de facturación debe estar entre 1 y 31", ErrInvalidArgument)
	}
	if lease.DueDays < 0 {
		return fmt.Errorf("%w: los días de vencimiento no pueden ser negativos", ErrInvalidArgument)
	}
	return nil
}

// validateCharge checks a recurring charge before it is saved.
func validateCharge(charge *models.LeaseCharge) error {
	if !models.ValidChargeType(charge.ChargeType) {
		return fmt.Errorf("%w: tipo de cargo desconocido %q", ErrInvalidArgument, charge.ChargeType)
	}
	if charge.Amount < 0 {
		return fmt.Errorf("%w: el monto del cargo no puede ser negativo", ErrInvalidArgument)
	}
	if charge.TaxRate < 0 || charge.TaxRate > 100 {
		return fmt.Errorf("%w: la tasa de impuesto debe estar entre 0 y 100", ErrInvalidArgument)
	}
	if charge.ProrationMethod == "" {
		charge.ProrationMethod = models.ProrationActualDays
	}
	if !models.ValidProrationMethod(charge.ProrationMethod) {
		return fmt.Errorf("%w: método de prorrateo desconocido %q", ErrInvalidArgument, charge.ProrationMethod)
	}
	if charge.EffectiveFrom != nil && charge.EffectiveTo != nil && charge.EffectiveTo.Before(*charge.EffectiveFrom) {
		return fmt.Errorf("%w: la vigencia del cargo termina antes de empezar", ErrInvalidArgument)
	}
	if strings.TrimSpace(charge.Description) == "" {
		return fmt.Errorf("%w: se requiere la descripción del cargo", ErrInvalidArgument)
	}
	return nil
}
