package models

import (
	"time"
)

// Organization represents a landlord company. It is the scoping root for
// users, properties, numbering sequences and listings.
type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	RTN       string    `gorm:"column:rtn;uniqueIndex" json:"rtn"`
	Address   *string   `json:"address"`
	Phone     *string   `json:"phone"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Users      []User     `gorm:"foreignKey:OrgID" json:"users,omitempty"`
	Properties []Property `gorm:"foreignKey:OrgID" json:"properties,omitempty"`
}

// TableName specifies the table name for Organization
func (Organization) TableName() string {
	return "organizations"
}
