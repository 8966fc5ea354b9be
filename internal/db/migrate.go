package db

import (
	"fmt"

	"github.com/zulandar/fleetyard/internal/config"
	"github.com/zulandar/fleetyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Location{},
		&models.Operator{},
		&models.Vehicle{},
		&models.ChargeCycle{},
		&models.ComplianceSnapshot{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedFleet upserts locations, operators and vehicles from configuration.
// A vehicle's location is only written on first insert; afterwards it is
// owned by park returns.
func SeedFleet(db *gorm.DB, cfg *config.Config) error {
	for _, lc := range cfg.Locations {
		loc := models.Location{ID: lc.ID, Name: lc.Name}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).Create(&loc).Error; err != nil {
			return fmt.Errorf("db: seed location %d: %w", lc.ID, err)
		}
	}

	for _, oc := range cfg.Operators {
		op := models.Operator{ID: oc.ID, Name: oc.Name}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).Create(&op).Error; err != nil {
			return fmt.Errorf("db: seed operator %d: %w", oc.ID, err)
		}
	}

	for _, vc := range cfg.Vehicles {
		v := models.Vehicle{
			ID:     vc.ID,
			Code:   vc.Code,
			Status: models.VehicleStatus(vc.Status),
		}
		if vc.Location != 0 {
			loc := vc.Location
			v.LocationID = &loc
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "status", "updated_at"}),
		}).Create(&v).Error; err != nil {
			return fmt.Errorf("db: seed vehicle %s: %w", vc.Code, err)
		}
	}
	return nil
}

// DropAll drops every Fleetyard table, dependents first.
func DropAll(db *gorm.DB) error {
	all := AllModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("db: drop %T: %w", all[i], err)
		}
	}
	return nil
}
