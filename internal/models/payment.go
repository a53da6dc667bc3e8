package models

import (
	"strings"
	"time"
)

// Payment represents money received against an invoice
type Payment struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrgID          uint       `gorm:"not null;index" json:"org_id"`
	InvoiceID      uint       `gorm:"not null;index" json:"invoice_id"`
	LeaseID        uint       `gorm:"not null;index" json:"lease_id"`
	Amount         float64    `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaymentDate    time.Time  `gorm:"type:date;not null;index" json:"payment_date"`
	PaymentMode    string     `gorm:"not null;index" json:"payment_mode"`
	Status         string     `gorm:"default:pending;not null;index" json:"status"`
	TransactionRef *string    `gorm:"index" json:"transaction_ref"`
	GatewayTxnID   *string    `gorm:"column:gateway_txn_id;index" json:"gateway_txn_id"`
	GatewayName    *string    `json:"gateway_name"`
	ReceiptNumber  *string    `gorm:"uniqueIndex" json:"receipt_number"`
	PayerName      *string    `json:"payer_name"`
	Notes          *string    `gorm:"type:text" json:"notes"`
	FailureReason  *string    `gorm:"type:text" json:"failure_reason,omitempty"`
	ReceiptPath    *string    `json:"-"`
	RecordedByID   *uint      `gorm:"index" json:"recorded_by_id"`
	CompletedAt    *time.Time `gorm:"index" json:"completed_at"`
	LockVersion    int        `gorm:"default:1;not null" json:"lock_version"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Associations
	Invoice    Invoice `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	Lease      Lease   `gorm:"foreignKey:LeaseID" json:"lease,omitempty"`
	RecordedBy *User   `gorm:"foreignKey:RecordedByID" json:"recorded_by,omitempty"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// Payment status constants
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Payment mode constants
const (
	PaymentModeCash         = "cash"
	PaymentModeBankTransfer = "bank_transfer"
	PaymentModeCard         = "card"
	PaymentModeOnline       = "online"
)

// ValidPaymentMode returns true for a known payment mode
func ValidPaymentMode(mode string) bool {
	switch mode {
	case PaymentModeCash, PaymentModeBankTransfer, PaymentModeCard, PaymentModeOnline:
		return true
	}
	return false
}

// IsCash returns true for cash payments
func (p *Payment) IsCash() bool {
	return p.PaymentMode == PaymentModeCash
}

// MayComplete returns true if payment can transition to completed
func (p *Payment) MayComplete() bool {
	return p.Status == PaymentStatusPending
}

// MayFail returns true if payment can transition to failed
func (p *Payment) MayFail() bool {
	return p.Status == PaymentStatusPending
}

// IsSettled returns true once the payment reached a final state
func (p *Payment) IsSettled() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}

// PaymentResponse is the JSON response format for payments
type PaymentResponse struct {
	ID             uint       `json:"id"`
	OrgID          uint       `json:"org_id"`
	InvoiceID      uint       `json:"invoice_id"`
	InvoiceNumber  *string    `json:"invoice_number"`
	LeaseID        uint       `json:"lease_id"`
	Amount         float64    `json:"amount"`
	PaymentDate    time.Time  `json:"payment_date"`
	PaymentMode    string     `json:"payment_mode"`
	Status         string     `json:"status"`
	TransactionRef *string    `json:"transaction_ref"`
	GatewayTxnID   *string    `json:"gateway_txn_id"`
	GatewayName    *string    `json:"gateway_name"`
	ReceiptNumber  *string    `json:"receipt_number"`
	PayerName      *string    `json:"payer_name"`
	Notes          *string    `json:"notes"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
	HasReceipt     bool       `json:"has_receipt"`
	IsPDF          bool       `json:"is_pdf"`
	RecordedBy     string     `json:"recorded_by,omitempty"`
	CompletedAt    *time.Time `json:"completed_at"`
	LockVersion    int        `json:"lock_version"`
	CreatedAt      time.Time  `json:"created_at"`

	// Invoice details
	TenantName   string `json:"tenant_name,omitempty"`
	TenantPhone  string `json:"tenant_phone,omitempty"`
	UnitLabel    string `json:"unit_label,omitempty"`
	PropertyName string `json:"property_name,omitempty"`
}

// ToResponse converts Payment to PaymentResponse
func (p *Payment) ToResponse() PaymentResponse {
	resp := PaymentResponse{
		ID:             p.ID,
		OrgID:          p.OrgID,
		InvoiceID:      p.InvoiceID,
		LeaseID:        p.LeaseID,
		Amount:         p.Amount,
		PaymentDate:    p.PaymentDate,
		PaymentMode:    p.PaymentMode,
		Status:         p.Status,
		TransactionRef: p.TransactionRef,
		GatewayTxnID:   p.GatewayTxnID,
		GatewayName:    p.GatewayName,
		ReceiptNumber:  p.ReceiptNumber,
		PayerName:      p.PayerName,
		Notes:          p.Notes,
		FailureReason:  p.FailureReason,
		HasReceipt:     p.ReceiptPath != nil && *p.ReceiptPath != "",
		IsPDF:          p.ReceiptPath != nil && strings.HasSuffix(strings.ToLower(*p.ReceiptPath), ".pdf"),
		CompletedAt:    p.CompletedAt,
		LockVersion:    p.LockVersion,
		CreatedAt:      p.CreatedAt,
	}

	if p.RecordedBy != nil {
		resp.RecordedBy = p.RecordedBy.FullName
	}

	// Add invoice details if available
	if p.Invoice.ID != 0 {
		resp.InvoiceNumber = p.Invoice.InvoiceNumber
	}

	// Add lease details if available
	if p.Lease.ID != 0 {
		if p.Lease.TenantUser.ID != 0 {
			resp.TenantName = p.Lease.TenantUser.FullName
			resp.TenantPhone = p.Lease.TenantUser.Phone
		}
		if p.Lease.Unit.ID != 0 {
			resp.UnitLabel = p.Lease.Unit.Label
			if p.Lease.Unit.Property.ID != 0 {
				resp.PropertyName = p.Lease.Unit.Property.Name
			}
		}
	}

	return resp
}
