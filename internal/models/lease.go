package models

import (
	"time"
)

// Lease represents a rental agreement binding a unit to a tenant
type Lease struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OrgID         uint       `gorm:"not null;index" json:"org_id"`
	UnitID        uint       `gorm:"not null;index" json:"unit_id"`
	TenantUserID  uint       `gorm:"not null;index" json:"tenant_user_id"`
	CreatorID     *uint      `gorm:"index" json:"creator_id"`
	StartDate     time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate       *time.Time `gorm:"type:date" json:"end_date"`
	BillingDay    int        `gorm:"default:1;not null" json:"billing_day"`
	DueDays       int        `gorm:"default:10;not null" json:"due_days"`
	Status        string     `gorm:"default:active;index" json:"status"`
	Currency      string     `gorm:"default:HNL;not null" json:"currency"`
	DepositAmount *float64   `gorm:"type:decimal(10,2)" json:"deposit_amount"`
	Note          *string    `gorm:"type:text" json:"note"`
	TerminatedAt  *time.Time `json:"terminated_at"`
	LockVersion   int        `gorm:"default:1;not null" json:"lock_version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Associations
	Unit       Unit          `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	TenantUser User          `gorm:"foreignKey:TenantUserID" json:"tenant_user,omitempty"`
	Creator    *User         `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Charges    []LeaseCharge `gorm:"foreignKey:LeaseID" json:"charges,omitempty"`
	Invoices   []Invoice     `gorm:"foreignKey:LeaseID" json:"invoices,omitempty"`
}

// TableName specifies the table name for Lease
func (Lease) TableName() string {
	return "leases"
}

// Lease status constants
const (
	LeaseStatusActive     = "active"
	LeaseStatusTerminated = "terminated"
	LeaseStatusExpired    = "expired"
)

// IsActive returns true if the lease is currently active
func (l *Lease) IsActive() bool {
	return l.Status == LeaseStatusActive
}

// MayTerminate returns true if the lease can be terminated
func (l *Lease) MayTerminate() bool {
	return l.Status == LeaseStatusActive
}

// OccupancyEnd returns the last day covered by the lease, or nil for
// open-ended leases.
func (l *Lease) OccupancyEnd() *time.Time {
	if l.TerminatedAt != nil {
		day := time.Date(l.TerminatedAt.Year(), l.TerminatedAt.Month(), l.TerminatedAt.Day(), 0, 0, 0, 0, time.UTC)
		return &day
	}
	return l.EndDate
}

// LeaseCharge represents a recurring charge billed each period
type LeaseCharge struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	LeaseID         uint       `gorm:"not null;index" json:"lease_id"`
	ChargeType      string     `gorm:"not null;index" json:"charge_type"`
	Description     string     `gorm:"not null" json:"description"`
	Amount          float64    `gorm:"type:decimal(10,2);not null" json:"amount"`
	TaxRate         float64    `gorm:"type:decimal(5,2);default:0" json:"tax_rate"`
	ProrationMethod string     `gorm:"default:actual_days" json:"proration_method"`
	EffectiveFrom   *time.Time `gorm:"type:date" json:"effective_from"`
	EffectiveTo     *time.Time `gorm:"type:date" json:"effective_to"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Associations
	Lease Lease `gorm:"foreignKey:LeaseID" json:"-"`
}

// TableName specifies the table name for LeaseCharge
func (LeaseCharge) TableName() string {
	return "lease_charges"
}

// Charge type constants
const (
	ChargeTypeRent        = "rent"
	ChargeTypeMaintenance = "maintenance"
	ChargeTypeParking     = "parking"
	ChargeTypeWater       = "water"
	ChargeTypeOther       = "other"
)

// Proration method constants
const (
	ProrationActualDays = "actual_days"
	ProrationNone       = "none"
)

// ValidChargeType returns true for a known charge type
func ValidChargeType(chargeType string) bool {
	switch chargeType {
	case ChargeTypeRent, ChargeTypeMaintenance, ChargeTypeParking, ChargeTypeWater, ChargeTypeOther:
		return true
	}
	return false
}

// ValidProrationMethod returns true for a known proration method
func ValidProrationMethod(method string) bool {
	return method == ProrationActualDays || method == ProrationNone
}

// EffectiveIn returns true if the charge applies at any point of the given
// period. Both bounds are inclusive dates.
func (c *LeaseCharge) EffectiveIn(periodStart, periodEnd time.Time) bool {
	if c.EffectiveFrom != nil && c.EffectiveFrom.After(periodEnd) {
		return false
	}
	if c.EffectiveTo != nil && c.EffectiveTo.Before(periodStart) {
		return false
	}
	return true
}

// LeaseResponse is the JSON response format for leases
type LeaseResponse struct {
	ID             uint                  `json:"id"`
	OrgID          uint                  `json:"org_id"`
	UnitID         uint                  `json:"unit_id"`
	UnitLabel      string                `json:"unit_label"`
	PropertyID     uint                  `json:"property_id"`
	PropertyName   string                `json:"property_name"`
	PropertyAddress string               `json:"property_address"`
	TenantUserID   uint                  `json:"tenant_user_id"`
	TenantName     string                `json:"tenant_name"`
	TenantPhone    string                `json:"tenant_phone"`
	TenantIdentity string                `json:"tenant_identity"`
	TenantScore    int                   `json:"tenant_payment_score"`
	CreatedBy      string                `json:"created_by"`
	StartDate      time.Time             `json:"start_date"`
	EndDate        *time.Time            `json:"end_date"`
	BillingDay     int                   `json:"billing_day"`
	DueDays        int                   `json:"due_days"`
	Status         string                `json:"status"`
	Currency       string                `json:"currency"`
	DepositAmount  *float64              `json:"deposit_amount"`
	MonthlyTotal   float64               `json:"monthly_total"`
	Note           *string               `json:"note"`
	TerminatedAt   *time.Time            `json:"terminated_at"`
	LockVersion    int                   `json:"lock_version"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	Charges        []LeaseChargeResponse `json:"charges"`
}

// LeaseChargeResponse is the JSON response format for lease charges
type LeaseChargeResponse struct {
	ID              uint       `json:"id"`
	LeaseID         uint       `json:"lease_id"`
	ChargeType      string     `json:"charge_type"`
	Description     string     `json:"description"`
	Amount          float64    `json:"amount"`
	TaxRate         float64    `json:"tax_rate"`
	ProrationMethod string     `json:"proration_method"`
	EffectiveFrom   *time.Time `json:"effective_from"`
	EffectiveTo     *time.Time `json:"effective_to"`
}

// ToResponse converts LeaseCharge to LeaseChargeResponse
func (c *LeaseCharge) ToResponse() LeaseChargeResponse {
	return LeaseChargeResponse{
		ID:              c.ID,
		LeaseID:         c.LeaseID,
		ChargeType:      c.ChargeType,
		Description:     c.Description,
		Amount:          c.Amount,
		TaxRate:         c.TaxRate,
		ProrationMethod: c.ProrationMethod,
		EffectiveFrom:   c.EffectiveFrom,
		EffectiveTo:     c.EffectiveTo,
	}
}

// ToResponse converts Lease to LeaseResponse
func (l *Lease) ToResponse() LeaseResponse {
	resp := LeaseResponse{
		ID:            l.ID,
		OrgID:         l.OrgID,
		UnitID:        l.UnitID,
		TenantUserID:  l.TenantUserID,
		StartDate:     l.StartDate,
		EndDate:       l.EndDate,
		BillingDay:    l.BillingDay,
		DueDays:       l.DueDays,
		Status:        l.Status,
		Currency:      l.Currency,
		DepositAmount: l.DepositAmount,
		Note:          l.Note,
		TerminatedAt:  l.TerminatedAt,
		LockVersion:   l.LockVersion,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}

	// Add unit and property info
	resp.UnitLabel = l.Unit.Label
	resp.PropertyID = l.Unit.PropertyID
	resp.PropertyName = l.Unit.Property.Name
	resp.PropertyAddress = l.Unit.Property.Address

	// Add tenant info
	resp.TenantName = l.TenantUser.FullName
	resp.TenantPhone = l.TenantUser.Phone
	resp.TenantIdentity = maskIdentity(l.TenantUser.Identity)
	resp.TenantScore = l.TenantUser.PaymentScore

	// Add creator info
	if l.Creator != nil {
		resp.CreatedBy = l.Creator.FullName
	}

	// Sum currently effective charges
	var monthly float64
	now := time.Now()
	for _, charge := range l.Charges {
		if charge.EffectiveIn(now, now) {
			monthly += charge.Amount
		}
	}
	resp.MonthlyTotal = monthly

	for _, charge := range l.Charges {
		resp.Charges = append(resp.Charges, charge.ToResponse())
	}

	return resp
}

// maskIdentity masks an identity string for privacy
func maskIdentity(identity string) string {
	if len(identity) <= 4 {
		masked := ""
		for range identity {
			masked += "*"
		}
		return masked
	}
	masked := identity[:4]
	for i := 4; i < len(identity)-3; i++ {
		masked += "*"
	}
	if len(identity) > 4 {
		masked += identity[len(identity)-3:]
	}
	return masked
}
