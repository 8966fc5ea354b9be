package cycle

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/fleetyard/internal/db"
	"github.com/zulandar/fleetyard/internal/models"
	"gorm.io/gorm"
)

const (
	opAna uint = 1
	opBen uint = 2
	opCam uint = 3

	vehFL07      uint = 7
	vehBlocked   uint = 8
	vehBreakdown uint = 9
)

var shiftStart = time.Date(2026, 3, 2, 6, 0, 0, 0, time.Local)

func openEngineTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gormDB))

	dock := uint(1)
	require.NoError(t, gormDB.Create(&[]models.Location{{ID: 1, Name: "Dock A"}, {ID: 3, Name: "Charging bay"}}).Error)
	require.NoError(t, gormDB.Create(&[]models.Operator{{ID: opAna, Name: "Ana"}, {ID: opBen, Name: "Ben"}, {ID: opCam, Name: "Cam"}}).Error)
	require.NoError(t, gormDB.Create(&[]models.Vehicle{
		{ID: vehFL07, Code: "FL-07", Status: models.VehicleOperational, LocationID: &dock},
		{ID: vehBlocked, Code: "FL-08", Status: models.VehicleBlocked},
		{ID: vehBreakdown, Code: "RT-09", Status: models.VehicleBreakdown},
	}).Error)
	return gormDB
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *testclock.Clock, *gorm.DB) {
	t.Helper()
	gormDB := openEngineTestDB(t)
	clk := testclock.NewClock(shiftStart)
	e, err := New(gormDB, append([]Option{WithClock(clk)}, opts...)...)
	require.NoError(t, err)
	return e, clk, gormDB
}

func loadCycle(t *testing.T, gormDB *gorm.DB, id uint) models.ChargeCycle {
	t.Helper()
	var c models.ChargeCycle
	require.NoError(t, gormDB.First(&c, id).Error)
	return c
}

func activeCount(t *testing.T, gormDB *gorm.DB, vehicleID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gormDB.Model(&models.ChargeCycle{}).
		Where("vehicle_id = ? AND status IN ?", vehicleID, models.ActiveStatuses).
		Count(&n).Error)
	return n
}

func uintPtr(v uint) *uint { return &v }
