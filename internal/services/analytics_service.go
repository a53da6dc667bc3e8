package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/pkg/logger"
)

type AnalyticsService struct {
	analyticsRepo   repository.AnalyticsRepository
	orgRepo         repository.OrganizationRepository
	notificationSvc *NotificationService
}

func NewAnalyticsService(
	analyticsRepo repository.AnalyticsRepository,
	orgRepo repository.OrganizationRepository,
	notificationSvc *NotificationService,
) *AnalyticsService {
	return &AnalyticsService{
		analyticsRepo:   analyticsRepo,
		orgRepo:         orgRepo,
		notificationSvc: notificationSvc,
	}
}

type AnalyticsFilters struct {
	OrgID       *uint
	StartDate   *time.Time
	EndDate     *time.Time
	TrendMonths int
	Year        *int
}

// GetOverview returns the billing overview: invoiced and collected totals,
// outstanding and overdue amounts, and the collection trend chart. Results
// are cached for 15 minutes per organization.
func (s *AnalyticsService) GetOverview(ctx context.Context, filters AnalyticsFilters) (*models.BillingOverview, error) {
	cacheKey := "billing_overview"
	if filters.TrendMonths > 0 {
		cacheKey += fmt.Sprintf("_%dm", filters.TrendMonths)
	}

	// Check cache
	cached, err := s.analyticsRepo.GetCache(ctx, cacheKey, filters.OrgID)
	if err == nil && cached != nil {
		var overview models.BillingOverview
		if err := json.Unmarshal(cached.Data, &overview); err == nil {
			return &overview, nil
		}
	}

	overview, err := s.computeOverview(ctx, filters)
	if err != nil {
		return nil, err
	}

	// Set cache (15 min TTL)
	_ = s.analyticsRepo.SetCache(ctx, cacheKey, filters.OrgID, overview, 15*time.Minute)

	return overview, nil
}

// calculatePercentageChange computes the percentage difference between current and previous values
func calculatePercentageChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100.0
		}
		return 0.0
	}
	change := ((current - previous) / previous) * 100
	// Round to 1 decimal place
	return float64(int(change*10+0.5)) / 10
}

// getPreviousPeriod calculates the previous period date range based on current filters
func getPreviousPeriod(startDate, endDate *time.Time) (prevStart, prevEnd *time.Time) {
	if startDate == nil || endDate == nil {
		// Default to 30 days if no dates provided
		now := time.Now()
		currentStart := now.AddDate(0, 0, -30)

		prevEnd := currentStart.AddDate(0, 0, -1) // Day before current start
		prevStart := prevEnd.AddDate(0, 0, -30)

		return &prevStart, &prevEnd
	}

	// Calculate the duration of the current period
	duration := endDate.Sub(*startDate)

	// Previous period ends one day before current start
	prevEndTime := startDate.AddDate(0, 0, -1)
	prevStartTime := prevEndTime.Add(-duration)

	return &prevStartTime, &prevEndTime
}

func (s *AnalyticsService) computeOverview(ctx context.Context, filters AnalyticsFilters) (*models.BillingOverview, error) {
	// Current period stats
	totalInvoiced, err := s.analyticsRepo.GetTotalInvoiced(ctx, filters.OrgID, filters.StartDate, filters.EndDate)
	if err != nil {
		return nil, err
	}

	totalCollected, err := s.analyticsRepo.GetTotalCollected(ctx, filters.OrgID, filters.StartDate, filters.EndDate)
	if err != nil {
		return nil, err
	}

	totalOutstanding, err := s.analyticsRepo.GetTotalOutstanding(ctx, filters.OrgID)
	if err != nil {
		return nil, err
	}

	overdueAmount, overdueCount, err := s.analyticsRepo.GetOverdueTotals(ctx, filters.OrgID)
	if err != nil {
		return nil, err
	}

	activeLeases, err := s.analyticsRepo.GetActiveLeasesCount(ctx, filters.OrgID, filters.StartDate, filters.EndDate)
	if err != nil {
		return nil, err
	}

	occupancyRate, err := s.analyticsRepo.GetOccupancyRate(ctx, filters.OrgID)
	if err != nil {
		return nil, err
	}

	months := filters.TrendMonths
	if months <= 0 {
		months = 6
	}
	trend, err := s.analyticsRepo.GetCollectionTrend(ctx, filters.OrgID, months, filters.Year)
	if err != nil {
		return nil, err
	}

	// Previous period data for percentage calculations
	prevStart, prevEnd := getPreviousPeriod(filters.StartDate, filters.EndDate)

	prevInvoiced, err := s.analyticsRepo.GetTotalInvoiced(ctx, filters.OrgID, prevStart, prevEnd)
	if err != nil {
		prevInvoiced = 0
	}

	prevCollected, err := s.analyticsRepo.GetTotalCollected(ctx, filters.OrgID, prevStart, prevEnd)
	if err != nil {
		prevCollected = 0
	}

	prevLeases, err := s.analyticsRepo.GetActiveLeasesCount(ctx, filters.OrgID, prevStart, prevEnd)
	if err != nil {
		prevLeases = 0
	}

	// How much of what was invoiced actually came in
	collectionRate := 0.0
	if totalInvoiced > 0 {
		collectionRate = float64(int(totalCollected/totalInvoiced*1000+0.5)) / 10
	}

	return &models.BillingOverview{
		TotalInvoiced:               totalInvoiced,
		InvoicedChangePercentage:    calculatePercentageChange(totalInvoiced, prevInvoiced),
		TotalCollected:              totalCollected,
		CollectedChangePercentage:   calculatePercentageChange(totalCollected, prevCollected),
		TotalOutstanding:            totalOutstanding,
		OutstandingChangePercentage: 0,
		OverdueAmount:               overdueAmount,
		OverdueInvoices:             overdueCount,
		ActiveLeases:                activeLeases,
		LeasesChangePercentage:      calculatePercentageChange(float64(activeLeases), float64(prevLeases)),
		CollectionRate:              collectionRate,
		OccupancyRate:               occupancyRate,
		CurrencySymbol:              "L",
		CollectionTrend:             trend,
	}, nil
}

// GetDistribution returns invoice counts and percentages per status.
func (s *AnalyticsService) GetDistribution(ctx context.Context, orgID *uint) (*models.InvoiceStatusDistribution, error) {
	cacheKey := "invoice_distribution"

	// Check cache
	cached, err := s.analyticsRepo.GetCache(ctx, cacheKey, orgID)
	if err == nil && cached != nil {
		var dist models.InvoiceStatusDistribution
		if err := json.Unmarshal(cached.Data, &dist); err == nil {
			return &dist, nil
		}
	}

	dist, err := s.analyticsRepo.GetInvoiceStatusDistribution(ctx, orgID)
	if err != nil {
		return nil, err
	}

	// Set cache (15 min TTL)
	_ = s.analyticsRepo.SetCache(ctx, cacheKey, orgID, dist, 15*time.Minute)

	return dist, nil
}

// GetPropertyRevenue returns collected and outstanding revenue per property
// for the given year.
func (s *AnalyticsService) GetPropertyRevenue(ctx context.Context, orgID *uint, year int) ([]models.PropertyRevenue, error) {
	if year == 0 {
		year = time.Now().Year()
	}
	cacheKey := fmt.Sprintf("property_revenue_%d", year)

	// Check cache
	cached, err := s.analyticsRepo.GetCache(ctx, cacheKey, orgID)
	if err == nil && cached != nil {
		var revenue []models.PropertyRevenue
		if err := json.Unmarshal(cached.Data, &revenue); err == nil {
			return revenue, nil
		}
	}

	revenue, err := s.analyticsRepo.GetPropertyRevenue(ctx, orgID, year)
	if err != nil {
		return nil, err
	}

	// Set cache (30 min TTL)
	_ = s.analyticsRepo.SetCache(ctx, cacheKey, orgID, revenue, 30*time.Minute)

	return revenue, nil
}

// RefreshCache recomputes the cached analytics for every organization. Runs
// as a scheduled job so dashboards stay warm.
func (s *AnalyticsService) RefreshCache(ctx context.Context) error {
	logger.Info("[AnalyticsService] Refreshing analytics cache in background...")

	orgs, err := s.orgRepo.FindAll(ctx)
	if err != nil {
		logger.Error("Failed to fetch organizations for cache refresh", "error", err)
		_ = s.notificationSvc.NotifyAdmins(ctx, "Error en estadísticas",
			"No se pudo actualizar el caché de analíticas", models.NotificationTypeSystemError)
		return err
	}

	// Refresh global stats
	_, _ = s.GetOverview(ctx, AnalyticsFilters{})
	_, _ = s.GetDistribution(ctx, nil)
	_, _ = s.GetPropertyRevenue(ctx, nil, time.Now().Year())

	// Refresh each organization's stats
	for _, org := range orgs {
		orgID := org.ID
		_, _ = s.GetOverview(ctx, AnalyticsFilters{OrgID: &orgID})
		_, _ = s.GetDistribution(ctx, &orgID)
		_, _ = s.GetPropertyRevenue(ctx, &orgID, time.Now().Year())
	}

	// Clean up old cache
	_ = s.analyticsRepo.CleanExpiredCache(ctx)

	logger.Info("[AnalyticsService] Analytics cache refresh completed.")
	return nil
}

// InvalidateOrg drops the cached analytics of one organization so the next
// dashboard hit recomputes them.
func (s *AnalyticsService) InvalidateOrg(ctx context.Context, orgID uint) {
	keys := []string{"billing_overview", "invoice_distribution",
		fmt.Sprintf("property_revenue_%d", time.Now().Year())}
	for _, key := range keys {
		_ = s.analyticsRepo.InvalidateCache(ctx, key, &orgID)
	}
}
