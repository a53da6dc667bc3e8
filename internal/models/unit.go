package models

import (
	"time"
)

// Unit represents a rentable unit within a property
type Unit struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PropertyID  uint      `gorm:"not null;index" json:"property_id"`
	Label       string    `gorm:"not null" json:"label"`
	Status      string    `gorm:"default:available;index" json:"status"`
	Floor       *int      `json:"floor"`
	Area        float64   `gorm:"type:decimal(10,2)" json:"area"`
	Bedrooms    *int      `json:"bedrooms"`
	Bathrooms   *int      `json:"bathrooms"`
	MonthlyRent float64   `gorm:"type:decimal(10,2);not null" json:"monthly_rent"`
	Note        *string   `gorm:"type:text" json:"note"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Associations
	Property Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Leases   []Lease  `gorm:"foreignKey:UnitID" json:"leases,omitempty"`
}

// TableName specifies the table name for Unit
func (Unit) TableName() string {
	return "units"
}

// Unit status constants
const (
	UnitStatusAvailable   = "available"
	UnitStatusOccupied    = "occupied"
	UnitStatusMaintenance = "maintenance"
)

// IsAvailable returns true if the unit can be leased
func (u *Unit) IsAvailable() bool {
	return u.Status == UnitStatusAvailable
}

// UnitResponse is the JSON response format for units
type UnitResponse struct {
	ID           uint    `json:"id"`
	PropertyID   uint    `json:"property_id"`
	PropertyName string  `json:"property_name"`
	Label        string  `json:"label"`
	Status       string  `json:"status"`
	Floor        *int    `json:"floor"`
	Area         float64 `json:"area"`
	Bedrooms     *int    `json:"bedrooms"`
	Bathrooms    *int    `json:"bathrooms"`
	MonthlyRent  float64 `json:"monthly_rent"`
	Note         *string `json:"note"`
}

// ToResponse converts Unit to UnitResponse
func (u *Unit) ToResponse() UnitResponse {
	return UnitResponse{
		ID:           u.ID,
		PropertyID:   u.PropertyID,
		PropertyName: u.Property.Name,
		Label:        u.Label,
		Status:       u.Status,
		Floor:        u.Floor,
		Area:         u.Area,
		Bedrooms:     u.Bedrooms,
		Bathrooms:    u.Bathrooms,
		MonthlyRent:  u.MonthlyRent,
		Note:         u.Note,
	}
}
