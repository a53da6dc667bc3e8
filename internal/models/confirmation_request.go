package models

import (
	"time"
)

// PaymentConfirmationRequest represents a tenant-submitted claim that an
// invoice was paid outside the system, awaiting staff review.
type PaymentConfirmationRequest struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrgID          uint       `gorm:"not null;index" json:"org_id"`
	InvoiceID      uint       `gorm:"not null;index" json:"invoice_id"`
	Amount         float64    `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaymentDate    time.Time  `gorm:"type:date;not null" json:"payment_date"`
	ReceiptNumber  *string    `json:"receipt_number"`
	Notes          *string    `gorm:"type:text" json:"notes"`
	ProofPath      *string    `json:"-"`
	ProofThumbPath *string    `json:"-"`
	Status         string     `gorm:"default:pending;not null;index" json:"status"`
	SubmittedByID  uint       `gorm:"not null;index" json:"submitted_by_id"`
	ReviewedByID   *uint      `gorm:"index" json:"reviewed_by_id"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	ReviewResponse *string    `gorm:"type:text" json:"review_response"`
	PaymentID      *uint      `gorm:"index" json:"payment_id"`
	LockVersion    int        `gorm:"default:1;not null" json:"lock_version"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Associations
	Invoice     Invoice  `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	SubmittedBy User     `gorm:"foreignKey:SubmittedByID" json:"submitted_by,omitempty"`
	ReviewedBy  *User    `gorm:"foreignKey:ReviewedByID" json:"reviewed_by,omitempty"`
	Payment     *Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}

// TableName specifies the table name for PaymentConfirmationRequest
func (PaymentConfirmationRequest) TableName() string {
	return "payment_confirmation_requests"
}

// Confirmation request status constants
const (
	ConfirmationStatusPending   = "pending"
	ConfirmationStatusConfirmed = "confirmed"
	ConfirmationStatusRejected  = "rejected"
)

// MayConfirm returns true if the request can be confirmed
func (r *PaymentConfirmationRequest) MayConfirm() bool {
	return r.Status == ConfirmationStatusPending
}

// MayReject returns true if the request can be rejected
func (r *PaymentConfirmationRequest) MayReject() bool {
	return r.Status == ConfirmationStatusPending
}

// IsTerminal returns true once the request has been reviewed
func (r *PaymentConfirmationRequest) IsTerminal() bool {
	return r.Status == ConfirmationStatusConfirmed || r.Status == ConfirmationStatusRejected
}

// HasProof returns true if a proof of payment file was uploaded
func (r *PaymentConfirmationRequest) HasProof() bool {
	return r.ProofPath != nil && *r.ProofPath != ""
}

// ConfirmationRequestResponse is the JSON response format for confirmation requests
type ConfirmationRequestResponse struct {
	ID             uint       `json:"id"`
	OrgID          uint       `json:"org_id"`
	InvoiceID      uint       `json:"invoice_id"`
	InvoiceNumber  *string    `json:"invoice_number"`
	InvoiceBalance float64    `json:"invoice_balance"`
	Amount         float64    `json:"amount"`
	PaymentDate    time.Time  `json:"payment_date"`
	ReceiptNumber  *string    `json:"receipt_number"`
	Notes          *string    `json:"notes"`
	HasProof       bool       `json:"has_proof"`
	Status         string     `json:"status"`
	SubmittedByID  uint       `json:"submitted_by_id"`
	SubmittedBy    string     `json:"submitted_by,omitempty"`
	ReviewedByID   *uint      `json:"reviewed_by_id"`
	ReviewedBy     string     `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	ReviewResponse *string    `json:"review_response"`
	PaymentID      *uint      `json:"payment_id"`
	LockVersion    int        `json:"lock_version"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ToResponse converts PaymentConfirmationRequest to ConfirmationRequestResponse
func (r *PaymentConfirmationRequest) ToResponse() ConfirmationRequestResponse {
	resp := ConfirmationRequestResponse{
		ID:             r.ID,
		OrgID:          r.OrgID,
		InvoiceID:      r.InvoiceID,
		Amount:         r.Amount,
		PaymentDate:    r.PaymentDate,
		ReceiptNumber:  r.ReceiptNumber,
		Notes:          r.Notes,
		HasProof:       r.HasProof(),
		Status:         r.Status,
		SubmittedByID:  r.SubmittedByID,
		ReviewedByID:   r.ReviewedByID,
		ReviewedAt:     r.ReviewedAt,
		ReviewResponse: r.ReviewResponse,
		PaymentID:      r.PaymentID,
		LockVersion:    r.LockVersion,
		CreatedAt:      r.CreatedAt,
	}

	if r.Invoice.ID != 0 {
		resp.InvoiceNumber = r.Invoice.InvoiceNumber
		resp.InvoiceBalance = r.Invoice.BalanceAmount
	}
	if r.SubmittedBy.ID != 0 {
		resp.SubmittedBy = r.SubmittedBy.FullName
	}
	if r.ReviewedBy != nil {
		resp.ReviewedBy = r.ReviewedBy.FullName
	}

	return resp
}
