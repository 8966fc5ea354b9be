// Package registry reads the vehicle registry and operator directory that the
// cycle engine consumes. Both are owned by external systems; Fleetyard keeps
// a seeded copy in its own tables.
package registry

import (
	"errors"
	"fmt"

	"github.com/zulandar/fleetyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Lookup failures.
var (
	ErrVehicleNotFound  = errors.New("vehicle not found")
	ErrLocationNotFound = errors.New("location not found")
)

// GetVehicle returns the vehicle with the given id.
func GetVehicle(db *gorm.DB, id uint) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := db.Where("id = ?", id).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("registry: %w: %d", ErrVehicleNotFound, id)
		}
		return nil, fmt.Errorf("registry: get vehicle %d: %w", id, err)
	}
	return &v, nil
}

// LockVehicle reads the vehicle row with SELECT ... FOR UPDATE. It must be
// called inside a transaction; the row lock serialises every writer that
// touches the vehicle's cycles until the transaction ends.
//
// SQLite ignores the locking clause; its writers are already serialised by
// BEGIN IMMEDIATE.
func LockVehicle(tx *gorm.DB, id uint) (*models.Vehicle, error) {
	var v models.Vehicle
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&v)
	if result.Error != nil {
		return nil, fmt.Errorf("registry: lock vehicle %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("registry: %w: %d", ErrVehicleNotFound, id)
	}
	return &v, nil
}

// SetLocation moves a vehicle to a location.
func SetLocation(db *gorm.DB, vehicleID, locationID uint) error {
	result := db.Model(&models.Vehicle{}).
		Where("id = ?", vehicleID).
		Update("location_id", locationID)
	if result.Error != nil {
		return fmt.Errorf("registry: set location of vehicle %d: %w", vehicleID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("registry: %w: %d", ErrVehicleNotFound, vehicleID)
	}
	return nil
}

// GetLocation returns the location with the given id.
func GetLocation(db *gorm.DB, id uint) (*models.Location, error) {
	var l models.Location
	if err := db.Where("id = ?", id).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("registry: %w: %d", ErrLocationNotFound, id)
		}
		return nil, fmt.Errorf("registry: get location %d: %w", id, err)
	}
	return &l, nil
}

// ListVehicles returns all vehicles ordered by code.
func ListVehicles(db *gorm.DB) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	if err := db.Preload("Location").Order("code ASC, id ASC").Find(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("registry: list vehicles: %w", err)
	}
	return vehicles, nil
}

// OperatorNames resolves display names for the given operator ids. Unknown
// ids are simply absent from the result.
func OperatorNames(db *gorm.DB, ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var ops []models.Operator
	if err := db.Where("id IN ?", ids).Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("registry: operator names: %w", err)
	}
	for _, o := range ops {
		names[o.ID] = o.Name
	}
	return names, nil
}

// OperatorName returns the display name of one operator, falling back to
// "#<id>" when the directory has no entry.
func OperatorName(db *gorm.DB, id uint) string {
	names, err := OperatorNames(db, []uint{id})
	if err != nil || names[id] == "" {
		return fmt.Sprintf("#%d", id)
	}
	return names[id]
}
