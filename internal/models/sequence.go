package models

import (
	"fmt"
	"time"
)

// NumberSequence holds the last assigned value of a per-organization
// document numbering sequence. Values are consumed with the row locked, so
// concurrent readers never see the same number twice.
type NumberSequence struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OrgID        uint      `gorm:"not null;uniqueIndex:idx_sequences_org_type" json:"org_id"`
	SequenceType string    `gorm:"not null;uniqueIndex:idx_sequences_org_type" json:"sequence_type"`
	LastValue    int64     `gorm:"default:0;not null" json:"last_value"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for NumberSequence
func (NumberSequence) TableName() string {
	return "number_sequences"
}

// Sequence type constants
const (
	SequenceTypeInvoice = "invoice"
	SequenceTypeReceipt = "receipt"
)

// FormatSequenceNumber renders a sequence value as a document number
func FormatSequenceNumber(sequenceType string, value int64) string {
	switch sequenceType {
	case SequenceTypeReceipt:
		return fmt.Sprintf("RCT-%06d", value)
	default:
		return fmt.Sprintf("INV-%06d", value)
	}
}
