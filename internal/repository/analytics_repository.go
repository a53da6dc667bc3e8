package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/dtorrez/rentora-api/internal/models"
	"gorm.io/gorm"
)

type AnalyticsRepository interface {
	GetCache(ctx context.Context, key string, orgID *uint) (*models.AnalyticsCache, error)
	SetCache(ctx context.Context, key string, orgID *uint, data interface{}, ttl time.Duration) error
	InvalidateCache(ctx context.Context, key string, orgID *uint) error
	CleanExpiredCache(ctx context.Context) error

	// Data retrieval for analytics
	GetTotalInvoiced(ctx context.Context, orgID *uint, startDate, endDate *time.Time) (float64, error)
	GetTotalCollected(ctx context.Context, orgID *uint, startDate, endDate *time.Time) (float64, error)
	GetTotalOutstanding(ctx context.Context, orgID *uint) (float64, error)
	GetOverdueTotals(ctx context.Context, orgID *uint) (float64, int, error)
	GetActiveLeasesCount(ctx context.Context, orgID *uint, startDate, endDate *time.Time) (int, error)
	GetOccupancyRate(ctx context.Context, orgID *uint) (float64, error)
	GetCollectionTrend(ctx context.Context, orgID *uint, months int, year *int) ([]models.CollectionTrendPoint, error)
	GetInvoiceStatusDistribution(ctx context.Context, orgID *uint) (*models.InvoiceStatusDistribution, error)
	GetPropertyRevenue(ctx context.Context, orgID *uint, year int) ([]models.PropertyRevenue, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) GetCache(ctx context.Context, key string, orgID *uint) (*models.AnalyticsCache, error) {
	var cache models.AnalyticsCache
	db := r.db.WithContext(ctx).Where("cache_key = ?", key)
	if orgID != nil {
		db = db.Where("org_id = ?", *orgID)
	} else {
		db = db.Where("org_id IS NULL")
	}

	err := db.Where("expires_at > ?", time.Now()).First(&cache).Error
	if err != nil {
		return nil, err
	}
	return &cache, nil
}

func (r *analyticsRepository) SetCache(ctx context.Context, key string, orgID *uint, data interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	cache := models.AnalyticsCache{
		CacheKey:  key,
		OrgID:     orgID,
		Data:      jsonData,
		ExpiresAt: time.Now().Add(ttl),
	}

	// Upsert strategy
	var existing models.AnalyticsCache
	db := r.db.WithContext(ctx).Where("cache_key = ?", key)
	if orgID != nil {
		db = db.Where("org_id = ?", *orgID)
	} else {
		db = db.Where("org_id IS NULL")
	}

	err = db.First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"data":       jsonData,
			"expires_at": cache.ExpiresAt,
			"updated_at": time.Now(),
		}).Error
	}

	return r.db.WithContext(ctx).Create(&cache).Error
}

func (r *analyticsRepository) InvalidateCache(ctx context.Context, key string, orgID *uint) error {
	db := r.db.WithContext(ctx).Where("cache_key = ?", key)
	if orgID != nil {
		db = db.Where("org_id = ?", *orgID)
	}
	return db.Delete(&models.AnalyticsCache{}).Error
}

func (r *analyticsRepository) CleanExpiredCache(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&models.AnalyticsCache{}).Error
}

// Data retrieval implementations

func (r *analyticsRepository) GetTotalInvoiced(ctx context.Context, orgID *uint, startDate, endDate *time.Time) (float64, error) {
	var total float64
	query := r.db.WithContext(ctx).Table("invoices").
		Select("COALESCE(SUM(total_amount), 0)").
		Where("invoices.status NOT IN ?", []string{models.InvoiceStatusDraft, models.InvoiceStatusVoided})

	if orgID != nil {
		query = query.Where("invoices.org_id = ?", *orgID)
	}

	if startDate != nil {
		query = query.Where("invoices.issued_at >= ?", *startDate)
	}
	if endDate != nil {
		query = query.Where("invoices.issued_at <= ?", *endDate)
	}

	err := query.Scan(&total).Error
	return total, err
}

func (r *analyticsRepository) GetTotalCollected(ctx context.Context, orgID *uint, startDate, endDate *time.Time) (float64, error) {
	var total float64
	query := r.db.WithContext(ctx).Table("payments").
		Select("COALESCE(SUM(amount), 0)").
		Where("payments.status = ?", models.PaymentStatusCompleted)

	if orgID != nil {
		query = query.Where("payments.org_id = ?", *orgID)
	}

	if startDate != nil {
		query = query.Where("payments.payment_date >= ?", *startDate)
	}
	if endDate != nil {
		query = query.Where("payments.payment_date <= ?", *endDate)
	}

	err := query.Scan(&total).Error
	return total, err
}

func (r *analyticsRepository) GetTotalOutstanding(ctx context.Context, orgID *uint) (float64, error) {
	var total float64
	query := r.db.WithContext(ctx).Table("invoices").
		Select("COALESCE(SUM(balance_amount), 0)").
		Where("invoices.status IN ?", []string{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid})

	if orgID != nil {
		query = query.Where("invoices.org_id = ?", *orgID)
	}

	err := query.Scan(&total).Error
	return total, err
}

func (r *analyticsRepository) GetOverdueTotals(ctx context.Context, orgID *uint) (float64, int, error) {
	var result struct {
		Total float64
		Count int
	}
	query := r.db.WithContext(ctx).Table("invoices").
		Select("COALESCE(SUM(balance_amount), 0) as total, COUNT(*) as count").
		Where("invoices.status IN ? AND invoices.due_date < CURRENT_DATE",
			[]string{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid})

	if orgID != nil {
		query = query.Where("invoices.org_id = ?", *orgID)
	}

	err := query.Scan(&result).Error
	return result.Total, result.Count, err
}

func (r *analyticsRepository) GetActiveLeasesCount(ctx context.Context, orgID *uint, startDate, endDate *time.Time) (int, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Lease{}).
		Where("leases.status = ?", models.LeaseStatusActive)

	if orgID != nil {
		query = query.Where("leases.org_id = ?", *orgID)
	}

	if startDate != nil {
		query = query.Where("leases.start_date >= ?", *startDate)
	}
	if endDate != nil {
		query = query.Where("leases.start_date <= ?", *endDate)
	}

	err := query.Count(&count).Error
	return int(count), err
}

func (r *analyticsRepository) GetOccupancyRate(ctx context.Context, orgID *uint) (float64, error) {
	var total, occupied int64

	unitQuery := r.db.WithContext(ctx).Model(&models.Unit{})
	if orgID != nil {
		unitQuery = unitQuery.
			Joins("JOIN properties ON properties.id = units.property_id").
			Where("properties.org_id = ?", *orgID)
	}

	err := unitQuery.Count(&total).Error
	if err != nil || total == 0 {
		return 0, err
	}

	err = unitQuery.Where("units.status = ?", models.UnitStatusOccupied).Count(&occupied).Error
	if err != nil {
		return 0, err
	}

	return (float64(occupied) / float64(total)) * 100, nil
}

func (r *analyticsRepository) GetCollectionTrend(ctx context.Context, orgID *uint, months int, year *int) ([]models.CollectionTrendPoint, error) {
	var points []models.CollectionTrendPoint

	var startDate, endDate time.Time
	if year != nil {
		startDate = time.Date(*year, 1, 1, 0, 0, 0, 0, time.UTC)
		endDate = time.Date(*year, 12, 31, 23, 59, 59, 0, time.UTC)
	} else {
		if months <= 0 {
			months = 12
		}
		startDate = time.Now().AddDate(0, -months, 0)
		endDate = time.Now()
	}

	// Invoiced per month (issued invoices)
	var invoicedResults []struct {
		Label string
		Total float64
	}

	invoicedQuery := r.db.WithContext(ctx).Table("invoices").
		Select("TO_CHAR(invoices.issued_at, 'Mon') as label, SUM(invoices.total_amount) as total, MIN(invoices.issued_at) as sort_date").
		Where("invoices.status NOT IN ?", []string{models.InvoiceStatusDraft, models.InvoiceStatusVoided}).
		Where("invoices.issued_at >= ?", startDate).
		Where("invoices.issued_at <= ?", endDate).
		Group("TO_CHAR(invoices.issued_at, 'Mon')").
		Order("sort_date ASC")

	if orgID != nil {
		invoicedQuery = invoicedQuery.Where("invoices.org_id = ?", *orgID)
	}

	err := invoicedQuery.Scan(&invoicedResults).Error
	if err != nil {
		return nil, err
	}

	// Collected per month (completed payments)
	var collectedResults []struct {
		Label string
		Total float64
	}

	collectedQuery := r.db.WithContext(ctx).Table("payments").
		Select("TO_CHAR(payments.payment_date, 'Mon') as label, SUM(payments.amount) as total, MIN(payments.payment_date) as sort_date").
		Where("payments.status = ?", models.PaymentStatusCompleted).
		Where("payments.payment_date >= ?", startDate).
		Where("payments.payment_date <= ?", endDate).
		Group("TO_CHAR(payments.payment_date, 'Mon')").
		Order("sort_date ASC")

	if orgID != nil {
		collectedQuery = collectedQuery.Where("payments.org_id = ?", *orgID)
	}

	err = collectedQuery.Scan(&collectedResults).Error
	if err != nil {
		return nil, err
	}

	// Merge results keyed by month label, keeping the invoiced ordering
	labelMap := make(map[string]*models.CollectionTrendPoint)

	for _, res := range invoicedResults {
		labelMap[res.Label] = &models.CollectionTrendPoint{Label: res.Label, Invoiced: res.Total}
	}

	for _, res := range collectedResults {
		if pt, ok := labelMap[res.Label]; ok {
			pt.Collected = res.Total
		} else {
			labelMap[res.Label] = &models.CollectionTrendPoint{Label: res.Label, Collected: res.Total}
		}
	}

	for _, res := range invoicedResults {
		if pt, ok := labelMap[res.Label]; ok {
			points = append(points, *pt)
			delete(labelMap, res.Label) // Remove to avoid duplicates
		}
	}

	// Add remaining collected-only months
	for _, pt := range labelMap {
		points = append(points, *pt)
	}

	return points, nil
}

func (r *analyticsRepository) GetInvoiceStatusDistribution(ctx context.Context, orgID *uint) (*models.InvoiceStatusDistribution, error) {
	var dist models.InvoiceStatusDistribution

	query := r.db.WithContext(ctx).Model(&models.Invoice{})
	if orgID != nil {
		query = query.Where("org_id = ?", *orgID)
	}

	var results []struct {
		Status string
		Count  int
	}

	err := query.Select("status, COUNT(*) as count").Group("status").Scan(&results).Error
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		dist.TotalInvoices += res.Count
		switch res.Status {
		case models.InvoiceStatusDraft:
			dist.Draft = res.Count
		case models.InvoiceStatusIssued:
			dist.Issued = res.Count
		case models.InvoiceStatusPartiallyPaid:
			dist.PartiallyPaid = res.Count
		case models.InvoiceStatusPaid:
			dist.Paid = res.Count
		case models.InvoiceStatusVoided:
			dist.Voided = res.Count
		}
	}

	// Calculate percentages
	if dist.TotalInvoices > 0 {
		dist.DraftPercentage = (float64(dist.Draft) / float64(dist.TotalInvoices)) * 100
		dist.IssuedPercentage = (float64(dist.Issued) / float64(dist.TotalInvoices)) * 100
		dist.PartiallyPaidPercentage = (float64(dist.PartiallyPaid) / float64(dist.TotalInvoices)) * 100
		dist.PaidPercentage = (float64(dist.Paid) / float64(dist.TotalInvoices)) * 100
		dist.VoidedPercentage = (float64(dist.Voided) / float64(dist.TotalInvoices)) * 100
	}

	return &dist, nil
}

func (r *analyticsRepository) GetPropertyRevenue(ctx context.Context, orgID *uint, year int) ([]models.PropertyRevenue, error) {
	query := r.db.WithContext(ctx).Model(&models.Property{})
	if orgID != nil {
		query = query.Where("org_id = ?", *orgID)
	}
	var properties []models.Property
	err := query.Order("name ASC").Find(&properties).Error
	if err != nil {
		return nil, err
	}

	// Collected per property per month, one grouped query for all properties
	var collectedRows []struct {
		PropertyID uint
		Month      int
		Total      float64
	}
	err = r.db.WithContext(ctx).Table("payments").
		Select("units.property_id as property_id, EXTRACT(MONTH FROM payments.payment_date)::int as month, SUM(payments.amount) as total").
		Joins("JOIN leases ON leases.id = payments.lease_id").
		Joins("JOIN units ON units.id = leases.unit_id").
		Where("payments.status = ? AND EXTRACT(YEAR FROM payments.payment_date) = ?", models.PaymentStatusCompleted, year).
		Group("units.property_id, EXTRACT(MONTH FROM payments.payment_date)").
		Scan(&collectedRows).Error
	if err != nil {
		return nil, err
	}

	// Outstanding balance per property
	var outstandingRows []struct {
		PropertyID uint
		Total      float64
	}
	err = r.db.WithContext(ctx).Table("invoices").
		Select("units.property_id as property_id, SUM(invoices.balance_amount) as total").
		Joins("JOIN leases ON leases.id = invoices.lease_id").
		Joins("JOIN units ON units.id = leases.unit_id").
		Where("invoices.status IN ?", []string{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid}).
		Group("units.property_id").
		Scan(&outstandingRows).Error
	if err != nil {
		return nil, err
	}

	monthlyByProperty := make(map[uint][]float64)
	collectedByProperty := make(map[uint]float64)
	for _, row := range collectedRows {
		if monthlyByProperty[row.PropertyID] == nil {
			monthlyByProperty[row.PropertyID] = make([]float64, 12)
		}
		if row.Month >= 1 && row.Month <= 12 {
			monthlyByProperty[row.PropertyID][row.Month-1] = row.Total
		}
		collectedByProperty[row.PropertyID] += row.Total
	}
	outstandingByProperty := make(map[uint]float64)
	for _, row := range outstandingRows {
		outstandingByProperty[row.PropertyID] = row.Total
	}

	var revenue []models.PropertyRevenue
	for _, p := range properties {
		monthly := monthlyByProperty[p.ID]
		if monthly == nil {
			monthly = make([]float64, 12)
		}
		revenue = append(revenue, models.PropertyRevenue{
			PropertyID:    strconv.FormatUint(uint64(p.ID), 10),
			PropertyName:  p.Name,
			Collected:     collectedByProperty[p.ID],
			Outstanding:   outstandingByProperty[p.ID],
			MonthlyTotals: monthly,
		})
	}

	return revenue, nil
}
