package models

import (
	"time"
)

// Property represents a rental property (building or complex)
type Property struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OrgID        uint      `gorm:"not null;index" json:"org_id"`
	Name         string    `gorm:"not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	PropertyType string    `gorm:"default:residential" json:"property_type"`
	Address      string    `gorm:"not null" json:"address"`
	City         string    `json:"city"`
	UnitCount    int       `gorm:"not null" json:"unit_count"`
	GUID         string    `gorm:"column:guid;not null" json:"guid"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Associations
	Organization Organization `gorm:"foreignKey:OrgID" json:"-"`
	Units        []Unit       `gorm:"foreignKey:PropertyID" json:"units,omitempty"`
}

// TableName specifies the table name for Property
func (Property) TableName() string {
	return "properties"
}

// Property type constants
const (
	PropertyTypeResidential = "residential"
	PropertyTypeCommercial  = "commercial"
	PropertyTypeMixed       = "mixed"
)

// PropertyResponse is the JSON response format for properties
type PropertyResponse struct {
	ID               uint      `json:"id"`
	OrgID            uint      `json:"org_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	PropertyType     string    `json:"property_type"`
	Address          string    `json:"address"`
	City             string    `json:"city"`
	UnitCount        int       `json:"unit_count"`
	AvailableUnits   int       `json:"available_units"`
	OccupiedUnits    int       `json:"occupied_units"`
	MaintenanceUnits int       `json:"maintenance_units"`
	CreatedAt        time.Time `json:"created_at"`
}

// ToResponse converts Property to PropertyResponse
func (p *Property) ToResponse() PropertyResponse {
	var available, occupied, maintenance int
	for _, unit := range p.Units {
		switch unit.Status {
		case UnitStatusAvailable:
			available++
		case UnitStatusOccupied:
			occupied++
		case UnitStatusMaintenance:
			maintenance++
		}
	}

	return PropertyResponse{
		ID:               p.ID,
		OrgID:            p.OrgID,
		Name:             p.Name,
		Description:      p.Description,
		PropertyType:     p.PropertyType,
		Address:          p.Address,
		City:             p.City,
		UnitCount:        p.UnitCount,
		AvailableUnits:   available,
		OccupiedUnits:    occupied,
		MaintenanceUnits: maintenance,
		CreatedAt:        p.CreatedAt,
	}
}
