package repository

import (
	"context"
	"errors"

	"github.com/dtorrez/rentora-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleObject is returned by UpdateWithLock implementations when the
// supplied lock version no longer matches the stored row.
var ErrStaleObject = errors.New("stale object: lock version mismatch")

// LeaseRepository defines the interface for lease data access
type LeaseRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Lease, error)
	FindByIDWithDetails(ctx context.Context, id uint) (*models.Lease, error)
	FindByTenant(ctx context.Context, tenantUserID uint) ([]models.Lease, error)
	FindActive(ctx context.Context) ([]models.Lease, error)
	FindActiveByUnit(ctx context.Context, unitID uint) (*models.Lease, error)
	HasActiveLeaseForUnit(ctx context.Context, unitID uint) (bool, error)
	Create(ctx context.Context, lease *models.Lease) error
	Update(ctx context.Context, lease *models.Lease) error
	UpdateWithLock(ctx context.Context, lease *models.Lease) error
	List(ctx context.Context, query *LeaseQuery) ([]models.Lease, int64, error)
}

// LeaseQuery extends ListQuery with lease-specific filters
type LeaseQuery struct {
	*ListQuery
	OrgID        uint
	TenantUserID uint
	UnitID       uint
	PropertyID   uint
	Status       string
}

type leaseRepository struct {
	db *gorm.DB
}

// NewLeaseRepository creates a new lease repository
func NewLeaseRepository(db *gorm.DB) LeaseRepository {
	return &leaseRepository{db: db}
}

func (r *leaseRepository) FindByID(ctx context.Context, id uint) (*models.Lease, error) {
	var lease models.Lease
	err := r.db.WithContext(ctx).First(&lease, id).Error
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (r *leaseRepository) FindByIDWithDetails(ctx context.Context, id uint) (*models.Lease, error) {
	var lease models.Lease
	// Load lease + Unit, Property, TenantUser, Creator in one query via Joins;
	// Charges are one-to-many so they stay a Preload.
	err := r.db.WithContext(ctx).
		Joins("Unit").
		Joins("Unit.Property").
		Joins("TenantUser").
		Joins("Creator").
		Preload("Charges", func(db *gorm.DB) *gorm.DB {
			return db.Order("charge_type ASC, created_at ASC")
		}).
		First(&lease, id).Error
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (r *leaseRepository) FindByTenant(ctx context.Context, tenantUserID uint) ([]models.Lease, error) {
	var leases []models.Lease
	err := r.db.WithContext(ctx).
		Where("tenant_user_id = ?", tenantUserID).
		Preload("Unit.Property").
		Preload("Charges").
		Find(&leases).Error
	return leases, err
}

// FindActive returns the active leases of all organizations with the
// associations the billing cycle needs.
func (r *leaseRepository) FindActive(ctx context.Context) ([]models.Lease, error) {
	var leases []models.Lease
	err := r.db.WithContext(ctx).
		Where("leases.status = ?", models.LeaseStatusActive).
		Preload("Unit.Property").
		Preload("TenantUser").
		Preload("Charges").
		Order("leases.id ASC").
		Find(&leases).Error
	return leases, err
}

func (r *leaseRepository) FindActiveByUnit(ctx context.Context, unitID uint) (*models.Lease, error) {
	var lease models.Lease
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND status = ?", unitID, models.LeaseStatusActive).
		First(&lease).Error
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (r *leaseRepository) HasActiveLeaseForUnit(ctx context.Context, unitID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Lease{}).
		Where("unit_id = ? AND status = ?", unitID, models.LeaseStatusActive).
		Count(&count).Error
	return count > 0, err
}

func (r *leaseRepository) Create(ctx context.Context, lease *models.Lease) error {
	return r.db.WithContext(ctx).Create(lease).Error
}

func (r *leaseRepository) Update(ctx context.Context, lease *models.Lease) error {
	return r.db.WithContext(ctx).Save(lease).Error
}

func (r *leaseRepository) UpdateWithLock(ctx context.Context, lease *models.Lease) error {
	currentVersion := lease.LockVersion
	lease.LockVersion++
	result := r.db.WithContext(ctx).
		Model(&models.Lease{}).
		Where("id = ? AND lock_version = ?", lease.ID, currentVersion).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Updates(lease)
	if result.Error != nil {
		lease.LockVersion = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		lease.LockVersion = currentVersion
		return ErrStaleObject
	}
	return nil
}

func (r *leaseRepository) List(ctx context.Context, query *LeaseQuery) ([]models.Lease, int64, error) {
	var leases []models.Lease
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Lease{})

	if query.OrgID > 0 {
		db = db.Where("leases.org_id = ?", query.OrgID)
	}

	if query.Status != "" {
		db = db.Where("leases.status = ?", query.Status)
	}

	if query.TenantUserID > 0 {
		db = db.Where("leases.tenant_user_id = ?", query.TenantUserID)
	}

	if query.UnitID > 0 {
		db = db.Where("leases.unit_id = ?", query.UnitID)
	}

	if query.PropertyID > 0 {
		db = db.Joins("JOIN units AS fu ON fu.id = leases.unit_id").
			Where("fu.property_id = ?", query.PropertyID)
	}

	// Apply search (JOINs only for filtering; associations loaded via Preload below)
	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Joins("LEFT JOIN users ON users.id = leases.tenant_user_id").
			Joins("LEFT JOIN units ON units.id = leases.unit_id").
			Joins("LEFT JOIN properties ON properties.id = units.property_id").
			Where("users.full_name ILIKE ? OR users.email ILIKE ? OR units.label ILIKE ? OR properties.name ILIKE ?",
				search, search, search, search)
	}

	// Count total using a separate session so the main query is not altered by Count()
	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply sorting
	if query.SortBy != "" {
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("leases.created_at DESC")
	}

	// Apply pagination
	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.
		Preload("Unit.Property").
		Preload("TenantUser").
		Preload("Creator").
		Preload("Charges").
		Find(&leases).Error
	if err != nil {
		return nil, 0, err
	}

	return leases, total, nil
}

// LeaseChargeRepository defines the interface for lease charge data access
type LeaseChargeRepository interface {
	FindByID(ctx context.Context, id uint) (*models.LeaseCharge, error)
	FindByLease(ctx context.Context, leaseID uint) ([]models.LeaseCharge, error)
	Create(ctx context.Context, charge *models.LeaseCharge) error
	Update(ctx context.Context, charge *models.LeaseCharge) error
	Delete(ctx context.Context, id uint) error
}

type leaseChargeRepository struct {
	db *gorm.DB
}

// NewLeaseChargeRepository creates a new lease charge repository
func NewLeaseChargeRepository(db *gorm.DB) LeaseChargeRepository {
	return &leaseChargeRepository{db: db}
}

func (r *leaseChargeRepository) FindByID(ctx context.Context, id uint) (*models.LeaseCharge, error) {
	var charge models.LeaseCharge
	err := r.db.WithContext(ctx).First(&charge, id).Error
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func (r *leaseChargeRepository) FindByLease(ctx context.Context, leaseID uint) ([]models.LeaseCharge, error) {
	var charges []models.LeaseCharge
	err := r.db.WithContext(ctx).
		Where("lease_id = ?", leaseID).
		Order("charge_type ASC, created_at ASC").
		Find(&charges).Error
	return charges, err
}

func (r *leaseChargeRepository) Create(ctx context.Context, charge *models.LeaseCharge) error {
	return r.db.WithContext(ctx).Create(charge).Error
}

func (r *leaseChargeRepository) Update(ctx context.Context, charge *models.LeaseCharge) error {
	return r.db.WithContext(ctx).Save(charge).Error
}

func (r *leaseChargeRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.LeaseCharge{}, id).Error
}

// OrganizationRepository defines the interface for organization data access
type OrganizationRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Organization, error)
	Create(ctx context.Context, org *models.Organization) error
	Update(ctx context.Context, org *models.Organization) error
	FindAll(ctx context.Context) ([]models.Organization, error)
}

type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) FindByID(ctx context.Context, id uint) (*models.Organization, error) {
	var org models.Organization
	err := r.db.WithContext(ctx).First(&org, id).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) Create(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *organizationRepository) Update(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Save(org).Error
}

func (r *organizationRepository) FindAll(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	err := r.db.WithContext(ctx).Order("name ASC").Find(&orgs).Error
	return orgs, err
}
