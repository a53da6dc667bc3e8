package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dtorrez/rentora-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateDraft is returned when a draft invoice already exists for the
// same lease and billing period. The database enforces this with a partial
// unique index, so concurrent generators race safely.
var ErrDuplicateDraft = errors.New("duplicate draft invoice for billing period")

// InvoiceRepository defines the interface for invoice data access
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Invoice, error)
	FindByIDWithDetails(ctx context.Context, id uint) (*models.Invoice, error)
	FindByGUID(ctx context.Context, guid string) (*models.Invoice, error)
	FindByLease(ctx context.Context, leaseID uint) ([]models.Invoice, error)
	FindForPeriod(ctx context.Context, leaseID uint, periodStart, periodEnd time.Time) ([]models.Invoice, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	Update(ctx context.Context, invoice *models.Invoice) error
	UpdateWithLock(ctx context.Context, invoice *models.Invoice) error
	ReplaceLines(ctx context.Context, invoiceID uint, lines []models.InvoiceLine) error
	List(ctx context.Context, query *InvoiceQuery) ([]models.Invoice, int64, error)
	FindOverdueForActiveLeases(ctx context.Context) ([]models.Invoice, error)
	FindDueSoonForActiveLeases(ctx context.Context, days int) ([]models.Invoice, error)
	MarkOverdueReminderSent(ctx context.Context, invoiceIDs []uint) error
	MarkUpcomingReminderSent(ctx context.Context, invoiceIDs []uint) error
	GetStats(ctx context.Context, orgID uint) (*InvoiceStats, error)
	GetMonthlyStats(ctx context.Context, orgID uint) (*BillingStats, error)
}

// InvoiceQuery extends ListQuery with invoice-specific filters
type InvoiceQuery struct {
	*ListQuery
	OrgID      uint
	UserID     uint
	IsAdmin    bool
	Status     string
	LeaseID    uint
	PropertyID uint
}

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).Preload("Lines").First(&invoice, id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDWithDetails(ctx context.Context, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	// Load invoice + Lease, Unit, TenantUser in one query via Joins (avoids 3 separate Preload round-trips).
	// Lines and Payments are one-to-many so they stay Preloads.
	err := r.db.WithContext(ctx).
		Joins("Lease").
		Joins("Lease.Unit").
		Joins("Lease.TenantUser").
		Preload("Lease.Unit.Property").
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("service_start ASC, id ASC")
		}).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_date ASC, id ASC")
		}).
		First(&invoice, id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByGUID(ctx context.Context, guid string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Lease.Unit.Property").
		Preload("Lease.TenantUser").
		Preload("Lines").
		Where("guid = ?", guid).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByLease(ctx context.Context, leaseID uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("lease_id = ?", leaseID).
		Preload("Lines").
		Order("period_start DESC, id DESC").
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) FindForPeriod(ctx context.Context, leaseID uint, periodStart, periodEnd time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("lease_id = ? AND period_start = ? AND period_end = ?",
			leaseID, periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02")).
		Preload("Lines").
		Order("id ASC").
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(invoice).Error
	if isDuplicateKeyError(err, "idx_invoices_one_draft_per_period") {
		return ErrDuplicateDraft
	}
	return err
}

func (r *invoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(invoice).Error
}

func (r *invoiceRepository) UpdateWithLock(ctx context.Context, invoice *models.Invoice) error {
	currentVersion := invoice.LockVersion
	invoice.LockVersion++
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND lock_version = ?", invoice.ID, currentVersion).
		Select("*").
		Omit("id", "guid", "created_at", clause.Associations).
		Updates(invoice)
	if result.Error != nil {
		invoice.LockVersion = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		invoice.LockVersion = currentVersion
		return ErrStaleObject
	}
	return nil
}

// ReplaceLines swaps the full line set of a draft invoice. Lines are never
// edited individually; regeneration rebuilds them wholesale.
func (r *invoiceRepository) ReplaceLines(ctx context.Context, invoiceID uint, lines []models.InvoiceLine) error {
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Delete(&models.InvoiceLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].ID = 0
		lines[i].InvoiceID = invoiceID
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *invoiceRepository) List(ctx context.Context, query *InvoiceQuery) ([]models.Invoice, int64, error) {
	var invoices []models.Invoice
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Invoice{})

	if query.OrgID > 0 {
		db = db.Where("invoices.org_id = ?", query.OrgID)
	}

	// Tenants only see invoices of their own leases
	if !query.IsAdmin && query.UserID > 0 {
		db = db.Joins("JOIN leases AS scope_l ON scope_l.id = invoices.lease_id").
			Where("scope_l.tenant_user_id = ?", query.UserID)
	}

	if query.LeaseID > 0 {
		db = db.Where("invoices.lease_id = ?", query.LeaseID)
	}

	if query.PropertyID > 0 {
		db = db.Joins("JOIN leases AS fp_l ON fp_l.id = invoices.lease_id").
			Joins("JOIN units AS fp_u ON fp_u.id = fp_l.unit_id").
			Where("fp_u.property_id = ?", query.PropertyID)
	}

	// Apply status filter
	statusFilter := query.Status
	if statusFilter == "" && query.Filters != nil {
		statusFilter = query.Filters["status"]
	}
	if statusFilter != "" {
		if strings.HasPrefix(statusFilter, "[") && strings.HasSuffix(statusFilter, "]") {
			// Handle format [issued|partially_paid]
			inner := statusFilter[1 : len(statusFilter)-1]
			statuses := strings.Split(inner, "|")
			db = db.Where("invoices.status IN ?", statuses)
		} else if strings.Contains(statusFilter, ",") {
			// Handle comma-separated list
			statuses := strings.Split(statusFilter, ",")
			for i, s := range statuses {
				statuses[i] = strings.TrimSpace(s)
			}
			db = db.Where("invoices.status IN ?", statuses)
		} else if statusFilter == "overdue" {
			// Handle virtual "overdue" status
			db = db.Where("invoices.status IN ? AND invoices.due_date < CURRENT_DATE",
				[]string{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid})
		} else {
			db = db.Where("invoices.status = ?", statusFilter)
		}
	}

	// Apply billing period and created_at date filters
	if query.Filters != nil {
		if val, ok := query.Filters["period_from"]; ok && val != "" {
			db = db.Where("invoices.period_start >= ?", val)
		}
		if val, ok := query.Filters["period_to"]; ok && val != "" {
			db = db.Where("invoices.period_start <= ?", val)
		}
		if val, ok := query.Filters["start_date"]; ok && val != "" {
			db = db.Where("invoices.created_at >= ?", val)
		}
		if val, ok := query.Filters["end_date"]; ok && val != "" {
			// Ensure we include the full day if only date is provided
			if len(val) == 10 { // YYYY-MM-DD
				val += " 23:59:59"
			}
			db = db.Where("invoices.created_at <= ?", val)
		}
		if val, ok := query.Filters["guid"]; ok && val != "" {
			db = db.Where("invoices.guid = ?", val)
		}
	}

	// Apply search (JOINs only for filtering; associations loaded via Preload below)
	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Joins("LEFT JOIN leases ON leases.id = invoices.lease_id").
			Joins("LEFT JOIN users ON users.id = leases.tenant_user_id").
			Joins("LEFT JOIN units ON units.id = leases.unit_id").
			Joins("LEFT JOIN properties ON properties.id = units.property_id").
			Where("users.full_name ILIKE ? OR users.email ILIKE ? OR units.label ILIKE ? OR properties.name ILIKE ? OR "+
				"COALESCE(invoices.invoice_number, '') ILIKE ? OR invoices.guid ILIKE ?",
				search, search, search, search, search, search)
	}

	// Count total using a separate session so the main query is not altered by Count()
	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply sorting
	if query.SortBy != "" {
		field := query.SortBy
		switch field {
		case "updated_at", "created_at", "due_date", "period_start", "total_amount", "balance_amount", "status":
			field = "invoices." + field
		case "tenant":
			// Sort by the tenant's full name via lease → user join
			db = db.Joins("LEFT JOIN leases AS sort_l ON sort_l.id = invoices.lease_id").
				Joins("LEFT JOIN users AS sort_u ON sort_u.id = sort_l.tenant_user_id")
			field = "sort_u.full_name"
		}

		order := field
		if strings.ToLower(query.SortDir) == "desc" {
			order += " DESC"
		} else {
			order += " ASC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("invoices.period_start DESC, invoices.created_at DESC")
	}

	// Apply pagination
	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.
		Select("invoices.*"). // Ensure we select only invoice fields, especially when joining
		Preload("Lease.Unit.Property").
		Preload("Lease.TenantUser").
		Preload("Lines").
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

// FindOverdueForActiveLeases returns unpaid invoices past their due date for active
// leases and active tenants. Excludes invoices that had a reminder sent in the last
// 7 days to avoid spamming. Preloads lease, unit and tenant for email templates.
func (r *invoiceRepository) FindOverdueForActiveLeases(ctx context.Context) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Joins("JOIN leases ON leases.id = invoices.lease_id AND leases.status = ?", models.LeaseStatusActive).
		Joins("JOIN users ON users.id = leases.tenant_user_id AND users.status = ? AND users.discarded_at IS NULL",
			models.StatusActive).
		Where("invoices.status IN ? AND invoices.due_date < CURRENT_DATE",
			[]string{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid}).
		Where("(invoices.overdue_reminder_sent_at IS NULL OR invoices.overdue_reminder_sent_at < CURRENT_TIMESTAMP - INTERVAL '7 days')").
		Preload("Lease.Unit.Property").
		Preload("Lease.TenantUser").
		Order("invoices.due_date ASC").
		Find(&invoices).Error
	return invoices, err
}

// FindDueSoonForActiveLeases returns unpaid invoices whose due date falls within the
// next N days, for active leases and active tenants, that have not yet had an
// upcoming reminder sent.
func (r *invoiceRepository) FindDueSoonForActiveLeases(ctx context.Context, days int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	interval := fmt.Sprintf("%d days", days)
	err := r.db.WithContext(ctx).
		Joins("JOIN leases ON leases.id = invoices.lease_id AND leases.status = ?", models.LeaseStatusActive).
		Joins("JOIN users ON users.id = leases.tenant_user_id AND users.status = ? AND users.discarded_at IS NULL",
			models.StatusActive).
		Where("invoices.status IN ? AND invoices.due_date >= CURRENT_DATE AND invoices.due_date <= CURRENT_DATE + INTERVAL '"+interval+"'",
			[]string{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid}).
		Where("invoices.upcoming_reminder_sent_at IS NULL").
		Preload("Lease.Unit.Property").
		Preload("Lease.TenantUser").
		Order("invoices.due_date ASC").
		Find(&invoices).Error
	return invoices, err
}

// MarkOverdueReminderSent sets overdue_reminder_sent_at to now for the given invoice IDs.
func (r *invoiceRepository) MarkOverdueReminderSent(ctx context.Context, invoiceIDs []uint) error {
	if len(invoiceIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id IN ?", invoiceIDs).
		Update("overdue_reminder_sent_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// MarkUpcomingReminderSent sets upcoming_reminder_sent_at to now for the given invoice IDs.
func (r *invoiceRepository) MarkUpcomingReminderSent(ctx context.Context, invoiceIDs []uint) error {
	if len(invoiceIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id IN ?", invoiceIDs).
		Update("upcoming_reminder_sent_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// InvoiceStats holds the count of invoices by status
type InvoiceStats struct {
	Total         int64 `json:"total"`
	Draft         int64 `json:"draft"`
	Issued        int64 `json:"issued"`
	PartiallyPaid int64 `json:"partially_paid"`
	Paid          int64 `json:"paid"`
	Voided        int64 `json:"voided"`
	Overdue       int64 `json:"overdue"`
}

func (r *invoiceRepository) GetStats(ctx context.Context, orgID uint) (*InvoiceStats, error) {
	stats := &InvoiceStats{}

	db := r.db.WithContext(ctx).Model(&models.Invoice{})
	if orgID > 0 {
		db = db.Where("org_id = ?", orgID)
	}

	// Execute a single query to get counts by status
	rows, err := db.
		Select("status, count(*) as count").
		Group("status").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var total int64
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		total += count
		switch status {
		case models.InvoiceStatusDraft:
			stats.Draft = count
		case models.InvoiceStatusIssued:
			stats.Issued = count
		case models.InvoiceStatusPartiallyPaid:
			stats.PartiallyPaid = count
		case models.InvoiceStatusPaid:
			stats.Paid = count
		case models.InvoiceStatusVoided:
			stats.Voided = count
		}
	}
	stats.Total = total

	// Overdue is a virtual status, counted separately
	overdueDB := r.db.WithContext(ctx).Model(&models.Invoice{})
	if orgID > 0 {
		overdueDB = overdueDB.Where("org_id = ?", orgID)
	}
	err = overdueDB.
		Where("status IN ? AND due_date < CURRENT_DATE",
			[]string{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid}).
		Count(&stats.Overdue).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// BillingStats holds monthly billing statistics
type BillingStats struct {
	InvoicedThisMonth  float64 `json:"invoiced_this_month"`
	CollectedThisMonth float64 `json:"collected_this_month"`
	TotalOutstanding   float64 `json:"total_outstanding"`
	TotalOverdue       float64 `json:"total_overdue"`
}

func (r *invoiceRepository) GetMonthlyStats(ctx context.Context, orgID uint) (*BillingStats, error) {
	stats := &BillingStats{}

	var invoicedThisMonth, collectedThisMonth, totalOutstanding, totalOverdue float64

	// 1. Amount invoiced in the current month (issued invoices only)
	invoicedDB := r.db.WithContext(ctx).Model(&models.Invoice{})
	if orgID > 0 {
		invoicedDB = invoicedDB.Where("org_id = ?", orgID)
	}
	err := invoicedDB.
		Select("COALESCE(SUM(total_amount), 0)").
		Where("invoices.status NOT IN ? AND EXTRACT(MONTH FROM issued_at) = EXTRACT(MONTH FROM CURRENT_DATE) AND EXTRACT(YEAR FROM issued_at) = EXTRACT(YEAR FROM CURRENT_DATE)",
			[]string{models.InvoiceStatusDraft, models.InvoiceStatusVoided}).
		Scan(&invoicedThisMonth).Error
	if err != nil {
		return nil, err
	}

	// 2. Amount collected in the current month
	collectedDB := r.db.WithContext(ctx).Model(&models.Payment{})
	if orgID > 0 {
		collectedDB = collectedDB.Where("org_id = ?", orgID)
	}
	err = collectedDB.
		Select("COALESCE(SUM(amount), 0)").
		Where("payments.status = ? AND EXTRACT(MONTH FROM payment_date) = EXTRACT(MONTH FROM CURRENT_DATE) AND EXTRACT(YEAR FROM payment_date) = EXTRACT(YEAR FROM CURRENT_DATE)",
			models.PaymentStatusCompleted).
		Scan(&collectedThisMonth).Error
	if err != nil {
		return nil, err
	}

	// 3. Total outstanding balance across open invoices
	outstandingDB := r.db.WithContext(ctx).Model(&models.Invoice{})
	if orgID > 0 {
		outstandingDB = outstandingDB.Where("org_id = ?", orgID)
	}
	err = outstandingDB.
		Select("COALESCE(SUM(balance_amount), 0)").
		Where("invoices.status IN ?", []string{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid}).
		Scan(&totalOutstanding).Error
	if err != nil {
		return nil, err
	}

	// 4. Overdue portion of the outstanding balance
	overdueDB := r.db.WithContext(ctx).Model(&models.Invoice{})
	if orgID > 0 {
		overdueDB = overdueDB.Where("org_id = ?", orgID)
	}
	err = overdueDB.
		Select("COALESCE(SUM(balance_amount), 0)").
		Where("invoices.status IN ? AND due_date < CURRENT_DATE",
			[]string{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid}).
		Scan(&totalOverdue).Error
	if err != nil {
		return nil, err
	}

	stats.InvoicedThisMonth = invoicedThisMonth
	stats.CollectedThisMonth = collectedThisMonth
	stats.TotalOutstanding = totalOutstanding
	stats.TotalOverdue = totalOverdue

	return stats, nil
}

// PaymentQuery extends ListQuery with payment-specific filters
type PaymentQuery struct {
	*ListQuery
	OrgID     uint
	UserID    uint
	IsAdmin   bool
	InvoiceID uint
	LeaseID   uint
	Status    string
}

// PaymentRepository defines the interface for payment data access
type PaymentRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Payment, error)
	FindByInvoice(ctx context.Context, invoiceID uint) ([]models.Payment, error)
	FindByTenant(ctx context.Context, tenantUserID uint) ([]models.Payment, error)
	FindCompletedByMonth(ctx context.Context, orgID uint, month, year int) ([]models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	UpdateWithLock(ctx context.Context, payment *models.Payment) error
	List(ctx context.Context, query *PaymentQuery) ([]models.Payment, int64, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Invoice.Lease.Unit.Property").
		Preload("Invoice.Lease.TenantUser").
		Preload("RecordedBy").
		First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByInvoice(ctx context.Context, invoiceID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Preload("RecordedBy").
		Where("invoice_id = ?", invoiceID).
		Order("payment_date ASC, id ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) FindByTenant(ctx context.Context, tenantUserID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Joins("JOIN leases ON leases.id = payments.lease_id").
		Where("leases.tenant_user_id = ?", tenantUserID).
		Preload("Invoice").
		Preload("Lease.Unit.Property").
		Order("payments.payment_date DESC, payments.id DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) FindCompletedByMonth(ctx context.Context, orgID uint, month, year int) ([]models.Payment, error) {
	var payments []models.Payment
	db := r.db.WithContext(ctx)
	if orgID > 0 {
		db = db.Where("payments.org_id = ?", orgID)
	}
	err := db.
		Preload("Invoice.Lease.Unit.Property").
		Preload("Invoice.Lease.TenantUser").
		Preload("RecordedBy").
		Where("payments.status = ? AND EXTRACT(MONTH FROM payments.payment_date) = ? AND EXTRACT(YEAR FROM payments.payment_date) = ?",
			models.PaymentStatusCompleted, month, year).
		Order("payment_date ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(payment).Error
}

func (r *paymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(payment).Error
}

func (r *paymentRepository) UpdateWithLock(ctx context.Context, payment *models.Payment) error {
	currentVersion := payment.LockVersion
	payment.LockVersion++
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND lock_version = ?", payment.ID, currentVersion).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Updates(payment)
	if result.Error != nil {
		payment.LockVersion = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		payment.LockVersion = currentVersion
		return ErrStaleObject
	}
	return nil
}

func (r *paymentRepository) List(ctx context.Context, query *PaymentQuery) ([]models.Payment, int64, error) {
	var payments []models.Payment
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Payment{})

	if query.OrgID > 0 {
		db = db.Where("payments.org_id = ?", query.OrgID)
	}

	// Tenants only see payments of their own leases
	if !query.IsAdmin && query.UserID > 0 {
		db = db.Joins("JOIN leases AS scope_l ON scope_l.id = payments.lease_id").
			Where("scope_l.tenant_user_id = ?", query.UserID)
	}

	if query.InvoiceID > 0 {
		db = db.Where("payments.invoice_id = ?", query.InvoiceID)
	}

	if query.LeaseID > 0 {
		db = db.Where("payments.lease_id = ?", query.LeaseID)
	}

	// Apply status filter
	statusFilter := query.Status
	if statusFilter == "" && query.Filters != nil {
		statusFilter = query.Filters["status"]
	}
	if statusFilter != "" {
		if strings.HasPrefix(statusFilter, "[") && strings.HasSuffix(statusFilter, "]") {
			// Handle format [pending|completed]
			inner := statusFilter[1 : len(statusFilter)-1]
			statuses := strings.Split(inner, "|")
			db = db.Where("payments.status IN ?", statuses)
		} else if strings.Contains(statusFilter, ",") {
			// Handle comma-separated list
			statuses := strings.Split(statusFilter, ",")
			db = db.Where("payments.status IN ?", statuses)
		} else {
			db = db.Where("payments.status = ?", statusFilter)
		}
	}

	// Apply payment mode filter
	if query.Filters != nil {
		if val, ok := query.Filters["payment_mode"]; ok && val != "" {
			db = db.Where("payments.payment_mode = ?", val)
		}
	}

	// Apply date filters
	if val, ok := query.Filters["start_date"]; ok && val != "" {
		db = db.Where("payments.payment_date >= ?", val)
	}
	if val, ok := query.Filters["end_date"]; ok && val != "" {
		endDate := val
		if len(endDate) == 10 {
			endDate += " 23:59:59"
		}
		db = db.Where("payments.payment_date <= ?", endDate)
	}

	// Apply search filter if provided (case-insensitive across multiple fields)
	if search := query.Search; search != "" {
		term := "%" + search + "%"
		db = db.Joins("JOIN invoices ON invoices.id = payments.invoice_id").
			Joins("JOIN leases ON leases.id = payments.lease_id").
			Joins("JOIN users ON users.id = leases.tenant_user_id").
			Where("(users.full_name ILIKE ? OR users.email ILIKE ? OR COALESCE(payments.receipt_number, '') ILIKE ? OR "+
				"COALESCE(payments.transaction_ref, '') ILIKE ? OR COALESCE(payments.payer_name, '') ILIKE ? OR "+
				"COALESCE(invoices.invoice_number, '') ILIKE ?)", term, term, term, term, term, term)
	}

	// Clone the database session for count to avoid affecting the main query
	countDb := db.Session(&gorm.Session{})
	if err := countDb.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply sorting: always show pending (awaiting gateway confirmation) first, then the rest
	pendingFirst := "(CASE WHEN payments.status = '" + models.PaymentStatusPending + "' THEN 0 ELSE 1 END) ASC"
	db = db.Order(pendingFirst)
	if query.SortBy != "" {
		field := query.SortBy
		switch field {
		case "updated_at", "created_at", "payment_date", "amount":
			field = "payments." + field
		case "tenant":
			db = db.Joins("LEFT JOIN leases AS sort_l ON sort_l.id = payments.lease_id").
				Joins("LEFT JOIN users AS sort_u ON sort_u.id = sort_l.tenant_user_id")
			field = "sort_u.full_name"
		}

		order := field
		if strings.ToLower(query.SortDir) == "desc" {
			order += " DESC"
		} else {
			order += " ASC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("payments.payment_date DESC, payments.id DESC")
	}

	// Apply pagination
	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.
		Select("payments.*"). // Ensure we select only payment fields, especially when joining
		Preload("Invoice.Lease.Unit.Property").
		Preload("Invoice.Lease.TenantUser").
		Preload("RecordedBy").
		Find(&payments).Error

	return payments, total, err
}

// PropertyRepository defines the interface for property data access
type PropertyRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Property, error)
	Create(ctx context.Context, property *models.Property) error
	Update(ctx context.Context, property *models.Property) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, orgID uint, query *ListQuery) ([]models.Property, int64, error)
}

type propertyRepository struct {
	db *gorm.DB
}

func NewPropertyRepository(db *gorm.DB) PropertyRepository {
	return &propertyRepository{db: db}
}

func (r *propertyRepository) FindByID(ctx context.Context, id uint) (*models.Property, error) {
	var property models.Property
	err := r.db.WithContext(ctx).Preload("Units").First(&property, id).Error
	if err != nil {
		return nil, err
	}
	return &property, nil
}

func (r *propertyRepository) Create(ctx context.Context, property *models.Property) error {
	return r.db.WithContext(ctx).Create(property).Error
}

func (r *propertyRepository) Update(ctx context.Context, property *models.Property) error {
	return r.db.WithContext(ctx).Save(property).Error
}

func (r *propertyRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Property{}, id).Error
}

func (r *propertyRepository) List(ctx context.Context, orgID uint, query *ListQuery) ([]models.Property, int64, error) {
	var properties []models.Property
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Property{})

	if orgID > 0 {
		db = db.Where("org_id = ?", orgID)
	}

	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("name ILIKE ? OR address ILIKE ? OR city ILIKE ? OR guid ILIKE ?", search, search, search, search)
	}

	if val, ok := query.Filters["property_type"]; ok && val != "" {
		db = db.Where("property_type = ?", val)
	}

	if val, ok := query.Filters["guid"]; ok && val != "" {
		db = db.Where("guid = ?", val)
	}

	db.Count(&total)

	if query.SortBy != "" {
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("created_at DESC")
	}

	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.Preload("Units").Find(&properties).Error
	return properties, total, err
}

// UnitRepository defines the interface for unit data access
type UnitRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Unit, error)
	Create(ctx context.Context, unit *models.Unit) error
	Update(ctx context.Context, unit *models.Unit) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, propertyID uint, query *ListQuery) ([]models.Unit, int64, error)
}

type unitRepository struct {
	db *gorm.DB
}

func NewUnitRepository(db *gorm.DB) UnitRepository {
	return &unitRepository{db: db}
}

func (r *unitRepository) FindByID(ctx context.Context, id uint) (*models.Unit, error) {
	var unit models.Unit
	err := r.db.WithContext(ctx).Preload("Property").First(&unit, id).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *unitRepository) Create(ctx context.Context, unit *models.Unit) error {
	return r.db.WithContext(ctx).Create(unit).Error
}

func (r *unitRepository) Update(ctx context.Context, unit *models.Unit) error {
	return r.db.WithContext(ctx).Save(unit).Error
}

func (r *unitRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Unit{}, id).Error
}

func (r *unitRepository) List(ctx context.Context, propertyID uint, query *ListQuery) ([]models.Unit, int64, error) {
	var units []models.Unit
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Unit{}).Where("property_id = ?", propertyID)

	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("label ILIKE ?", search)
	}

	if query.Filters["status"] != "" {
		db = db.Where("units.status = ?", query.Filters["status"])
	}

	db.Count(&total)

	if query.SortBy != "" {
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("label ASC")
	}

	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.Preload("Property").
		Preload("Leases", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Preload("Leases.TenantUser").
		Find(&units).Error
	return units, total, err
}

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Notification, error)
	FindByUser(ctx context.Context, userID uint, query *ListQuery) ([]models.Notification, int64, error)
	Create(ctx context.Context, notification *models.Notification) error
	Update(ctx context.Context, notification *models.Notification) error
	Delete(ctx context.Context, id uint) error
	MarkAllAsRead(ctx context.Context, userID uint) error
	CountUnread(ctx context.Context, userID uint) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) FindByID(ctx context.Context, id uint) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).First(&notification, id).Error
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) FindByUser(ctx context.Context, userID uint, query *ListQuery) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)

	if status, ok := query.Filters["status"]; ok && status != "" {
		switch strings.ToLower(status) {
		case "unread":
			db = db.Where("read_at IS NULL")
		case "read":
			db = db.Where("read_at IS NOT NULL")
		}
	}

	db.Count(&total)
	db = db.Order("created_at DESC")

	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.Find(&notifications).Error
	return notifications, total, err
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) Update(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Save(notification).Error
}

func (r *notificationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Notification{}, id).Error
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", now).Error
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// RefreshTokenRepository defines the interface for refresh token data access
type RefreshTokenRepository interface {
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	Create(ctx context.Context, rt *models.RefreshToken) error
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type refreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&rt).Error
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *refreshTokenRepository) Create(ctx context.Context, rt *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(rt).Error
}

func (r *refreshTokenRepository) Delete(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.RefreshToken{}).Error
}

func (r *refreshTokenRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}
