package models

import (
	"time"
)

// Invoice represents a billing document for one lease period
type Invoice struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	GUID                   string     `gorm:"column:guid;not null;uniqueIndex" json:"guid"`
	OrgID                  uint       `gorm:"not null;index" json:"org_id"`
	LeaseID                uint       `gorm:"not null;index" json:"lease_id"`
	InvoiceNumber          *string    `gorm:"uniqueIndex" json:"invoice_number"`
	PeriodStart            time.Time  `gorm:"type:date;not null;index" json:"period_start"`
	PeriodEnd              time.Time  `gorm:"type:date;not null" json:"period_end"`
	Status                 string     `gorm:"default:draft;not null;index" json:"status"`
	Subtotal               float64    `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	TaxAmount              float64    `gorm:"type:decimal(10,2);not null" json:"tax_amount"`
	TotalAmount            float64    `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	PaidAmount             float64    `gorm:"type:decimal(10,2);default:0;not null" json:"paid_amount"`
	BalanceAmount          float64    `gorm:"type:decimal(10,2);not null" json:"balance_amount"`
	Currency               string     `gorm:"default:HNL;not null" json:"currency"`
	DueDate                *time.Time `gorm:"type:date;index" json:"due_date"`
	IssuedAt               *time.Time `gorm:"index" json:"issued_at"`
	VoidedAt               *time.Time `json:"voided_at"`
	VoidReason             *string    `gorm:"type:text" json:"void_reason"`
	Notes                  *string    `gorm:"type:text" json:"notes"`
	OverdueReminderSentAt  *time.Time `gorm:"column:overdue_reminder_sent_at" json:"-"`
	UpcomingReminderSentAt *time.Time `gorm:"column:upcoming_reminder_sent_at" json:"-"`
	LockVersion            int        `gorm:"default:1;not null" json:"lock_version"`
	CreatedAt              time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`

	// Associations
	Lease    Lease         `gorm:"foreignKey:LeaseID" json:"lease,omitempty"`
	Lines    []InvoiceLine `gorm:"foreignKey:InvoiceID" json:"lines,omitempty"`
	Payments []Payment     `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

// TableName specifies the table name for Invoice
func (Invoice) TableName() string {
	return "invoices"
}

// Invoice status constants
const (
	InvoiceStatusDraft         = "draft"
	InvoiceStatusIssued        = "issued"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusVoided        = "voided"
)

// MayIssue returns true if invoice can transition to issued
func (i *Invoice) MayIssue() bool {
	return i.Status == InvoiceStatusDraft
}

// MayVoid returns true if invoice can be voided. Only untouched invoices
// qualify; anything with money applied must be settled, not voided.
func (i *Invoice) MayVoid() bool {
	if i.PaidAmount != 0 {
		return false
	}
	return i.Status == InvoiceStatusDraft || i.Status == InvoiceStatusIssued
}

// MayApplyPayment returns true if invoice can receive a payment
func (i *Invoice) MayApplyPayment() bool {
	return i.Status == InvoiceStatusIssued || i.Status == InvoiceStatusPartiallyPaid
}

// MayRegenerate returns true if invoice lines can be replaced
func (i *Invoice) MayRegenerate() bool {
	return i.Status == InvoiceStatusDraft
}

// IsTerminal returns true if invoice is in a final state
func (i *Invoice) IsTerminal() bool {
	return i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusVoided
}

// IsOverdue returns true if invoice is unpaid past its due date
func (i *Invoice) IsOverdue() bool {
	if i.DueDate == nil {
		return false
	}
	if i.Status != InvoiceStatusIssued && i.Status != InvoiceStatusPartiallyPaid {
		return false
	}
	return time.Now().After(*i.DueDate)
}

// OverdueDays returns the number of days overdue
func (i *Invoice) OverdueDays() int {
	if !i.IsOverdue() {
		return 0
	}
	return int(time.Since(*i.DueDate).Hours() / 24)
}

// InvoiceLine represents one charge on an invoice
type InvoiceLine struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	InvoiceID    uint      `gorm:"not null;index" json:"invoice_id"`
	ChargeType   string    `gorm:"not null" json:"charge_type"`
	Description  string    `gorm:"not null" json:"description"`
	Quantity     float64   `gorm:"type:decimal(10,2);default:1;not null" json:"quantity"`
	UnitAmount   float64   `gorm:"type:decimal(10,2);not null" json:"unit_amount"`
	Amount       float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	TaxRate      float64   `gorm:"type:decimal(5,2);default:0" json:"tax_rate"`
	TaxAmount    float64   `gorm:"type:decimal(10,2);default:0" json:"tax_amount"`
	ServiceStart time.Time `gorm:"type:date;not null" json:"service_start"`
	ServiceEnd   time.Time `gorm:"type:date;not null" json:"service_end"`
	Prorated     bool      `gorm:"default:false" json:"prorated"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Associations
	Invoice Invoice `gorm:"foreignKey:InvoiceID" json:"-"`
}

// TableName specifies the table name for InvoiceLine
func (InvoiceLine) TableName() string {
	return "invoice_lines"
}

// InvoiceLineResponse is the JSON response format for invoice lines
type InvoiceLineResponse struct {
	ID           uint      `json:"id"`
	ChargeType   string    `json:"charge_type"`
	Description  string    `json:"description"`
	Quantity     float64   `json:"quantity"`
	UnitAmount   float64   `json:"unit_amount"`
	Amount       float64   `json:"amount"`
	TaxRate      float64   `json:"tax_rate"`
	TaxAmount    float64   `json:"tax_amount"`
	ServiceStart time.Time `json:"service_start"`
	ServiceEnd   time.Time `json:"service_end"`
	Prorated     bool      `json:"prorated"`
}

// ToResponse converts InvoiceLine to InvoiceLineResponse
func (l *InvoiceLine) ToResponse() InvoiceLineResponse {
	return InvoiceLineResponse{
		ID:           l.ID,
		ChargeType:   l.ChargeType,
		Description:  l.Description,
		Quantity:     l.Quantity,
		UnitAmount:   l.UnitAmount,
		Amount:       l.Amount,
		TaxRate:      l.TaxRate,
		TaxAmount:    l.TaxAmount,
		ServiceStart: l.ServiceStart,
		ServiceEnd:   l.ServiceEnd,
		Prorated:     l.Prorated,
	}
}

// InvoiceResponse is the JSON response format for invoices
type InvoiceResponse struct {
	ID             uint                  `json:"id"`
	GUID           string                `json:"guid"`
	OrgID          uint                  `json:"org_id"`
	LeaseID        uint                  `json:"lease_id"`
	InvoiceNumber  *string               `json:"invoice_number"`
	PeriodStart    time.Time             `json:"period_start"`
	PeriodEnd      time.Time             `json:"period_end"`
	Status         string                `json:"status"`
	Subtotal       float64               `json:"subtotal"`
	TaxAmount      float64               `json:"tax_amount"`
	TotalAmount    float64               `json:"total_amount"`
	PaidAmount     float64               `json:"paid_amount"`
	BalanceAmount  float64               `json:"balance_amount"`
	Currency       string                `json:"currency"`
	DueDate        *time.Time            `json:"due_date"`
	IssuedAt       *time.Time            `json:"issued_at"`
	VoidedAt       *time.Time            `json:"voided_at"`
	VoidReason     *string               `json:"void_reason"`
	Notes          *string               `json:"notes"`
	OverdueDays    int                   `json:"overdue_days"`
	LockVersion    int                   `json:"lock_version"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	Lines          []InvoiceLineResponse `json:"lines"`

	// Lease details
	UnitLabel      string `json:"unit_label,omitempty"`
	PropertyName   string `json:"property_name,omitempty"`
	TenantName     string `json:"tenant_name,omitempty"`
	TenantPhone    string `json:"tenant_phone,omitempty"`
	TenantIdentity string `json:"tenant_identity,omitempty"`
}

// ToResponse converts Invoice to InvoiceResponse
func (i *Invoice) ToResponse() InvoiceResponse {
	resp := InvoiceResponse{
		ID:            i.ID,
		GUID:          i.GUID,
		OrgID:         i.OrgID,
		LeaseID:       i.LeaseID,
		InvoiceNumber: i.InvoiceNumber,
		PeriodStart:   i.PeriodStart,
		PeriodEnd:     i.PeriodEnd,
		Status:        i.Status,
		Subtotal:      i.Subtotal,
		TaxAmount:     i.TaxAmount,
		TotalAmount:   i.TotalAmount,
		PaidAmount:    i.PaidAmount,
		BalanceAmount: i.BalanceAmount,
		Currency:      i.Currency,
		DueDate:       i.DueDate,
		IssuedAt:      i.IssuedAt,
		VoidedAt:      i.VoidedAt,
		VoidReason:    i.VoidReason,
		Notes:         i.Notes,
		OverdueDays:   i.OverdueDays(),
		LockVersion:   i.LockVersion,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}

	for _, line := range i.Lines {
		resp.Lines = append(resp.Lines, line.ToResponse())
	}

	// Add lease details if available
	if i.Lease.ID != 0 {
		resp.UnitLabel = i.Lease.Unit.Label
		if i.Lease.Unit.Property.ID != 0 {
			resp.PropertyName = i.Lease.Unit.Property.Name
		}
		if i.Lease.TenantUser.ID != 0 {
			resp.TenantName = i.Lease.TenantUser.FullName
			resp.TenantPhone = i.Lease.TenantUser.Phone
			resp.TenantIdentity = maskIdentity(i.Lease.TenantUser.Identity)
		}
	}

	return resp
}
