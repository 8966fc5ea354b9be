package analytics

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

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

func ago(d time.Duration) time.Time { return now.Add(-d) }

func timePtr(t time.Time) *time.Time { return &t }
func intPtr(v int) *int              { return &v }
func uintPtr(v uint) *uint           { return &v }
func strPtr(s string) *string        { return &s }
func typePtr(t models.ReturnType) *models.ReturnType {
	return &t
}

func openAnalyticsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gormDB))

	require.NoError(t, gormDB.Create(&[]models.Location{{ID: 1, Name: "Dock A"}, {ID: 3, Name: "Charging bay"}}).Error)
	require.NoError(t, gormDB.Create(&[]models.Operator{{ID: 1, Name: "Ana"}, {ID: 2, Name: "Ben"}, {ID: 3, Name: "Cam"}}).Error)
	require.NoError(t, gormDB.Create(&[]models.Vehicle{
		{ID: 7, Code: "FL-07", Status: models.VehicleOperational, LocationID: uintPtr(1)},
		{ID: 8, Code: "FL-08", Status: models.VehicleOperational, LocationID: uintPtr(3)},
		{ID: 9, Code: "RT-09", Status: models.VehicleBreakdown},
		{ID: 10, Code: "FL-10", Status: models.VehicleOperational},
		{ID: 11, Code: "FL-11", Status: models.VehicleBlocked},
	}).Error)
	return gormDB
}

// seedHistory writes a fixed week of cycles:
//
//	A  FL-07 Ana  -10h..-9h    charge 25%  completed
//	B  FL-07 Ben  -5h..-4h30   charge 70%  completed
//	C  FL-07 Cam  -3h30        in_use (early)
//	F  RT-09 Ana  -6h..-2h     taken over by Ben
//	G  RT-09 Ben  -2h          in_use
//	E  FL-08 Cam  -1h30..-1h   park 15%    parked
//	H  FL-10 Ana  -8h..-7h     charge 90%  charging
//	D  FL-08 Ben  20 days ago  charge 50%  completed
func seedHistory(t *testing.T, gormDB *gorm.DB) map[string]uint {
	t.Helper()
	cycles := map[string]*models.ChargeCycle{
		"A": {VehicleID: 7, OperatorID: 1, PickupTime: ago(10 * time.Hour), PickupBatteryPct: 95,
			ReturnTime: timePtr(ago(9 * time.Hour)), ReturnOperatorID: uintPtr(1), ReturnBatteryPct: intPtr(25),
			ReturnType: typePtr(models.ReturnCharge), Status: models.StatusCompleted},
		"B": {VehicleID: 7, OperatorID: 2, PickupTime: ago(5 * time.Hour), PickupBatteryPct: 100,
			ReturnTime: timePtr(ago(4*time.Hour + 30*time.Minute)), ReturnOperatorID: uintPtr(2), ReturnBatteryPct: intPtr(70),
			ReturnType: typePtr(models.ReturnCharge), Status: models.StatusCompleted},
		"C": {VehicleID: 7, OperatorID: 3, PickupTime: ago(3*time.Hour + 30*time.Minute), PickupBatteryPct: 75,
			EarlyPickup: true, EarlyPickupReason: strPtr("rush order"), Status: models.StatusInUse, ActiveSlot: uintPtr(7)},
		"F": {VehicleID: 9, OperatorID: 1, PickupTime: ago(6 * time.Hour), PickupBatteryPct: 80,
			ReturnTime: timePtr(ago(2 * time.Hour)), ReturnOperatorID: uintPtr(2), ReturnBatteryPct: intPtr(45),
			ReturnType: typePtr(models.ReturnTakeover), ForgotReturn: true, ForcedReturnBy: uintPtr(2),
			Status: models.StatusCompleted},
		"G": {VehicleID: 9, OperatorID: 2, PickupTime: ago(2 * time.Hour), PickupBatteryPct: 45,
			Status: models.StatusInUse, ActiveSlot: uintPtr(9)},
		"E": {VehicleID: 8, OperatorID: 3, PickupTime: ago(90 * time.Minute), PickupBatteryPct: 60,
			ReturnTime: timePtr(ago(time.Hour)), ReturnOperatorID: uintPtr(3), ReturnBatteryPct: intPtr(15),
			ReturnType: typePtr(models.ReturnPark), ReturnLocationID: uintPtr(3), Status: models.StatusParked, ActiveSlot: uintPtr(8)},
		"H": {VehicleID: 10, OperatorID: 1, PickupTime: ago(8 * time.Hour), PickupBatteryPct: 100,
			ReturnTime: timePtr(ago(7 * time.Hour)), ReturnOperatorID: uintPtr(1), ReturnBatteryPct: intPtr(90),
			ReturnType: typePtr(models.ReturnCharge), Status: models.StatusCharging, ActiveSlot: uintPtr(10)},
		"D": {VehicleID: 8, OperatorID: 2, PickupTime: ago(20 * 24 * time.Hour), PickupBatteryPct: 100,
			ReturnTime: timePtr(ago(20*24*time.Hour - time.Hour)), ReturnOperatorID: uintPtr(2), ReturnBatteryPct: intPtr(50),
			ReturnType: typePtr(models.ReturnCharge), Status: models.StatusCompleted},
	}
	ids := make(map[string]uint, len(cycles))
	for _, key := range []string{"D", "A", "H", "F", "B", "C", "G", "E"} {
		c := cycles[key]
		require.NoError(t, gormDB.Create(c).Error, "seed cycle %s", key)
		ids[key] = c.ID
	}
	return ids
}

func newTestService(t *testing.T) (*Service, *testclock.Clock, *gorm.DB, map[string]uint) {
	t.Helper()
	gormDB := openAnalyticsTestDB(t)
	ids := seedHistory(t, gormDB)
	clk := testclock.NewClock(now)
	s, err := New(gormDB, WithClock(clk))
	require.NoError(t, err)
	return s, clk, gormDB, ids
}
