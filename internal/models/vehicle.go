package models

import "time"

// VehicleStatus is the operational state reported by the vehicle registry.
type VehicleStatus string

const (
	VehicleOperational VehicleStatus = "operational"
	VehicleBlocked     VehicleStatus = "blocked"
	VehicleBreakdown   VehicleStatus = "breakdown"
)

// Valid reports whether s is a known vehicle status.
func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleOperational, VehicleBlocked, VehicleBreakdown:
		return true
	}
	return false
}

// Vehicle is a shared piece of powered equipment (forklift, reach truck).
type Vehicle struct {
	ID         uint          `gorm:"primaryKey"`
	Code       string        `gorm:"size:32;not null;uniqueIndex"`
	Status     VehicleStatus `gorm:"size:16;default:operational;index"`
	LocationID *uint
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Location *Location `gorm:"foreignKey:LocationID"`
}

// Location is a named place where vehicles are parked or charged.
type Location struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:64;not null"`
}

// Operator is a person who drives fleet vehicles. Only the display name is
// kept here; the identity provider owns everything else.
type Operator struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:128;not null"`
}
