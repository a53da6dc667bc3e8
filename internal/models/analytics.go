package models

import (
	"encoding/json"
	"time"
)

// AnalyticsCache represents a cached analytics result
type AnalyticsCache struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	CacheKey  string          `gorm:"not null;index:idx_analytics_cache_key_org" json:"cache_key"`
	OrgID     *uint           `gorm:"index:idx_analytics_cache_key_org" json:"org_id"`
	Data      json.RawMessage `gorm:"type:jsonb;not null" json:"data"`
	ExpiresAt time.Time       `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for AnalyticsCache
func (AnalyticsCache) TableName() string {
	return "analytics_cache"
}

// BillingOverview represents high-level billing statistics and trend data
type BillingOverview struct {
	TotalInvoiced               float64                `json:"total_invoiced"`
	InvoicedChangePercentage    float64                `json:"invoiced_change_percentage"`
	TotalCollected              float64                `json:"total_collected"`
	CollectedChangePercentage   float64                `json:"collected_change_percentage"`
	TotalOutstanding            float64                `json:"total_outstanding"`
	OutstandingChangePercentage float64                `json:"outstanding_change_percentage"`
	OverdueAmount               float64                `json:"overdue_amount"`
	OverdueInvoices             int                    `json:"overdue_invoices"`
	ActiveLeases                int                    `json:"active_leases"`
	LeasesChangePercentage      float64                `json:"leases_change_percentage"`
	CollectionRate              float64                `json:"collection_rate"`
	OccupancyRate               float64                `json:"occupancy_rate"`
	CurrencySymbol              string                 `json:"currency_symbol"`
	CollectionTrend             []CollectionTrendPoint `json:"collection_trend"`
}

// CollectionTrendPoint represents a data point in the collection chart
type CollectionTrendPoint struct {
	Label     string  `json:"label"`
	Invoiced  float64 `json:"invoiced"`
	Collected float64 `json:"collected"`
}

// InvoiceStatusDistribution represents invoice counts and amounts per status
type InvoiceStatusDistribution struct {
	TotalInvoices           int     `json:"total_invoices"`
	Draft                   int     `json:"draft"`
	Issued                  int     `json:"issued"`
	PartiallyPaid           int     `json:"partially_paid"`
	Paid                    int     `json:"paid"`
	Voided                  int     `json:"voided"`
	DraftPercentage         float64 `json:"draft_percentage"`
	IssuedPercentage        float64 `json:"issued_percentage"`
	PartiallyPaidPercentage float64 `json:"partially_paid_percentage"`
	PaidPercentage          float64 `json:"paid_percentage"`
	VoidedPercentage        float64 `json:"voided_percentage"`
}

// PropertyRevenue represents collected revenue per property
type PropertyRevenue struct {
	PropertyID    string    `json:"property_id"`
	PropertyName  string    `json:"property_name"`
	Collected     float64   `json:"collected"`
	Outstanding   float64   `json:"outstanding"`
	MonthlyTotals []float64 `json:"monthly_totals"`
}
