package repository

import (
	"context"
	"strings"

	"github.com/dtorrez/rentora-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfirmationRepository defines the interface for payment confirmation request data access
type ConfirmationRepository interface {
	FindByID(ctx context.Context, id uint) (*models.PaymentConfirmationRequest, error)
	FindByInvoice(ctx context.Context, invoiceID uint) ([]models.PaymentConfirmationRequest, error)
	Create(ctx context.Context, request *models.PaymentConfirmationRequest) error
	Update(ctx context.Context, request *models.PaymentConfirmationRequest) error
	UpdateWithLock(ctx context.Context, request *models.PaymentConfirmationRequest) error
	List(ctx context.Context, query *ConfirmationQuery) ([]models.PaymentConfirmationRequest, int64, error)
	CountPending(ctx context.Context, orgID uint) (int64, error)
}

// ConfirmationQuery extends ListQuery with confirmation-specific filters
type ConfirmationQuery struct {
	*ListQuery
	OrgID     uint
	UserID    uint
	IsAdmin   bool
	Status    string
	InvoiceID uint
}

type confirmationRepository struct {
	db *gorm.DB
}

// NewConfirmationRepository creates a new confirmation repository
func NewConfirmationRepository(db *gorm.DB) ConfirmationRepository {
	return &confirmationRepository{db: db}
}

func (r *confirmationRepository) FindByID(ctx context.Context, id uint) (*models.PaymentConfirmationRequest, error) {
	var request models.PaymentConfirmationRequest
	err := r.db.WithContext(ctx).
		Preload("Invoice.Lease.Unit.Property").
		Preload("Invoice.Lease.TenantUser").
		Preload("SubmittedBy").
		Preload("ReviewedBy").
		Preload("Payment").
		First(&request, id).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *confirmationRepository) FindByInvoice(ctx context.Context, invoiceID uint) ([]models.PaymentConfirmationRequest, error) {
	var requests []models.PaymentConfirmationRequest
	err := r.db.WithContext(ctx).
		Preload("SubmittedBy").
		Preload("ReviewedBy").
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

func (r *confirmationRepository) Create(ctx context.Context, request *models.PaymentConfirmationRequest) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(request).Error
}

func (r *confirmationRepository) Update(ctx context.Context, request *models.PaymentConfirmationRequest) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(request).Error
}

func (r *confirmationRepository) UpdateWithLock(ctx context.Context, request *models.PaymentConfirmationRequest) error {
	currentVersion := request.LockVersion
	request.LockVersion++
	result := r.db.WithContext(ctx).
		Model(&models.PaymentConfirmationRequest{}).
		Where("id = ? AND lock_version = ?", request.ID, currentVersion).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Updates(request)
	if result.Error != nil {
		request.LockVersion = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		request.LockVersion = currentVersion
		return ErrStaleObject
	}
	return nil
}

func (r *confirmationRepository) List(ctx context.Context, query *ConfirmationQuery) ([]models.PaymentConfirmationRequest, int64, error) {
	var requests []models.PaymentConfirmationRequest
	var total int64

	db := r.db.WithContext(ctx).Model(&models.PaymentConfirmationRequest{})

	if query.OrgID > 0 {
		db = db.Where("payment_confirmation_requests.org_id = ?", query.OrgID)
	}

	// Tenants only see their own submissions
	if !query.IsAdmin && query.UserID > 0 {
		db = db.Where("payment_confirmation_requests.submitted_by_id = ?", query.UserID)
	}

	if query.InvoiceID > 0 {
		db = db.Where("payment_confirmation_requests.invoice_id = ?", query.InvoiceID)
	}

	// Apply status filter
	statusFilter := query.Status
	if statusFilter == "" && query.Filters != nil {
		statusFilter = query.Filters["status"]
	}
	if statusFilter != "" {
		if strings.Contains(statusFilter, ",") {
			statuses := strings.Split(statusFilter, ",")
			for i, s := range statuses {
				statuses[i] = strings.TrimSpace(s)
			}
			db = db.Where("payment_confirmation_requests.status IN ?", statuses)
		} else {
			db = db.Where("payment_confirmation_requests.status = ?", statusFilter)
		}
	}

	// Apply search (JOINs only for filtering; associations loaded via Preload below)
	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Joins("LEFT JOIN invoices ON invoices.id = payment_confirmation_requests.invoice_id").
			Joins("LEFT JOIN users ON users.id = payment_confirmation_requests.submitted_by_id").
			Where("users.full_name ILIKE ? OR users.email ILIKE ? OR COALESCE(invoices.invoice_number, '') ILIKE ? OR "+
				"COALESCE(payment_confirmation_requests.receipt_number, '') ILIKE ?",
				search, search, search, search)
	}

	// Count total using a separate session so the main query is not altered by Count()
	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply sorting: pending requests first so reviewers see actionable items on top
	pendingFirst := "(CASE WHEN payment_confirmation_requests.status = '" + models.ConfirmationStatusPending + "' THEN 0 ELSE 1 END) ASC"
	db = db.Order(pendingFirst)
	if query.SortBy != "" {
		order := "payment_confirmation_requests." + query.SortBy
		if strings.ToLower(query.SortDir) == "desc" {
			order += " DESC"
		} else {
			order += " ASC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("payment_confirmation_requests.created_at DESC")
	}

	// Apply pagination
	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.
		Select("payment_confirmation_requests.*").
		Preload("Invoice.Lease.Unit.Property").
		Preload("Invoice.Lease.TenantUser").
		Preload("SubmittedBy").
		Preload("ReviewedBy").
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *confirmationRepository) CountPending(ctx context.Context, orgID uint) (int64, error) {
	var count int64
	db := r.db.WithContext(ctx).Model(&models.PaymentConfirmationRequest{})
	if orgID > 0 {
		db = db.Where("org_id = ?", orgID)
	}
	err := db.Where("status = ?", models.ConfirmationStatusPending).Count(&count).Error
	return count, err
}
