package analytics

import (
	"context"
	"time"

	"github.com/zulandar/fleetyard/internal/cycle"
	"github.com/zulandar/fleetyard/internal/models"
	"github.com/zulandar/fleetyard/internal/registry"
)

// ChargeStatus is the availability of a vehicle derived from its active
// cycle.
type ChargeStatus string

const (
	ChargeAvailable ChargeStatus = "available"
	ChargeInUse     ChargeStatus = "in_use"
	ChargeCharging  ChargeStatus = "charging"
	ChargeCharged   ChargeStatus = "charged"
	ChargeParked    ChargeStatus = "parked"
)

// FleetEntry is one row of the fleet view.
type FleetEntry struct {
	VehicleID              uint                 `json:"vehicle_id"`
	Code                   string               `json:"code"`
	Status                 models.VehicleStatus `json:"status"`
	LocationID             *uint                `json:"location_id,omitempty"`
	Location               string               `json:"location,omitempty"`
	ChargeStatus           ChargeStatus         `json:"charge_status"`
	CycleID                *uint                `json:"cycle_id,omitempty"`
	OperatorID             *uint                `json:"operator_id,omitempty"`
	OperatorName           string               `json:"operator_name,omitempty"`
	BatteryPct             *int                 `json:"battery_pct,omitempty"`
	RemainingChargeMinutes *int                 `json:"remaining_charge_minutes,omitempty"`
}

// Fleet returns every registered vehicle with its current charge status.
func (s *Service) Fleet(ctx context.Context) ([]FleetEntry, error) {
	db := s.db.WithContext(ctx)
	vehicles, err := registry.ListVehicles(db)
	if err != nil {
		return nil, err
	}
	active, err := s.activeCycles(ctx)
	if err != nil {
		return nil, err
	}
	byVehicle := make(map[uint]*models.ChargeCycle, len(active))
	var holders []uint
	for i := range active {
		c := &active[i]
		byVehicle[c.VehicleID] = c
		if c.Status == models.StatusInUse {
			holders = append(holders, c.OperatorID)
		}
	}
	names, err := registry.OperatorNames(db, holders)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	out := make([]FleetEntry, len(vehicles))
	for i, v := range vehicles {
		e := FleetEntry{
			VehicleID:    v.ID,
			Code:         v.Code,
			Status:       v.Status,
			LocationID:   v.LocationID,
			ChargeStatus: ChargeAvailable,
		}
		if v.Location != nil {
			e.Location = v.Location.Name
		}
		if c, ok := byVehicle[v.ID]; ok {
			fillFromCycle(&e, c, names, now)
		}
		out[i] = e
	}
	return out, nil
}

func fillFromCycle(e *FleetEntry, c *models.ChargeCycle, names map[uint]string, now time.Time) {
	id := c.ID
	e.CycleID = &id
	switch c.Status {
	case models.StatusInUse:
		op := c.OperatorID
		pct := c.PickupBatteryPct
		e.ChargeStatus = ChargeInUse
		e.OperatorID = &op
		e.OperatorName = names[op]
		e.BatteryPct = &pct
	case models.StatusCharging:
		if c.ReturnTime == nil || c.ReturnBatteryPct == nil {
			e.ChargeStatus = ChargeCharging
			return
		}
		pct := cycle.EstimatedBattery(*c.ReturnBatteryPct, *c.ReturnTime, now)
		rem := cycle.RemainingMinutes(*c.ReturnBatteryPct, *c.ReturnTime, now)
		e.BatteryPct = &pct
		e.RemainingChargeMinutes = &rem
		e.ChargeStatus = ChargeCharging
		if rem == 0 {
			e.ChargeStatus = ChargeCharged
		}
	case models.StatusParked:
		e.ChargeStatus = ChargeParked
		if c.ReturnBatteryPct != nil {
			pct := *c.ReturnBatteryPct
			e.BatteryPct = &pct
		}
	}
}
