package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/fleetyard/internal/models"
)

func TestFleet(t *testing.T) {
	s, _, _, ids := newTestService(t)

	fleet, err := s.Fleet(context.Background())
	require.NoError(t, err)
	require.Len(t, fleet, 5)

	byCode := make(map[string]FleetEntry)
	var order []string
	for _, e := range fleet {
		byCode[e.Code] = e
		order = append(order, e.Code)
	}
	assert.Equal(t, []string{"FL-07", "FL-08", "FL-10", "FL-11", "RT-09"}, order)

	fl07 := byCode["FL-07"]
	assert.Equal(t, ChargeInUse, fl07.ChargeStatus)
	require.NotNil(t, fl07.OperatorID)
	assert.Equal(t, uint(3), *fl07.OperatorID)
	assert.Equal(t, "Cam", fl07.OperatorName)
	require.NotNil(t, fl07.BatteryPct)
	assert.Equal(t, 75, *fl07.BatteryPct)
	assert.Equal(t, "Dock A", fl07.Location)
	require.NotNil(t, fl07.CycleID)
	assert.Equal(t, ids["C"], *fl07.CycleID)

	fl08 := byCode["FL-08"]
	assert.Equal(t, ChargeParked, fl08.ChargeStatus)
	require.NotNil(t, fl08.BatteryPct)
	assert.Equal(t, 15, *fl08.BatteryPct)
	assert.Nil(t, fl08.OperatorID)

	fl10 := byCode["FL-10"]
	assert.Equal(t, ChargeCharged, fl10.ChargeStatus)
	require.NotNil(t, fl10.RemainingChargeMinutes)
	assert.Equal(t, 0, *fl10.RemainingChargeMinutes)
	assert.Equal(t, 100, *fl10.BatteryPct)

	fl11 := byCode["FL-11"]
	assert.Equal(t, ChargeAvailable, fl11.ChargeStatus)
	assert.Equal(t, models.VehicleBlocked, fl11.Status)
	assert.Nil(t, fl11.CycleID)
	assert.Nil(t, fl11.BatteryPct)

	rt09 := byCode["RT-09"]
	assert.Equal(t, ChargeInUse, rt09.ChargeStatus)
	assert.Equal(t, "Ben", rt09.OperatorName)
	assert.Equal(t, models.VehicleBreakdown, rt09.Status)
}

func TestFillFromCycle_ChargingEstimate(t *testing.T) {
	c := &models.ChargeCycle{ID: 4, VehicleID: 7, OperatorID: 1, Status: models.StatusCharging,
		ReturnTime: timePtr(ago(time.Hour)), ReturnBatteryPct: intPtr(40), ReturnType: typePtr(models.ReturnCharge)}

	var e FleetEntry
	fillFromCycle(&e, c, nil, now)
	assert.Equal(t, ChargeCharging, e.ChargeStatus)
	assert.Equal(t, 60, *e.BatteryPct)
	assert.Equal(t, 120, *e.RemainingChargeMinutes)
}
