package cycle

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/fleetyard/internal/models"
	"github.com/zulandar/fleetyard/internal/registry"
	"gorm.io/gorm"
)

// PickupRequest asks to check a vehicle out to an operator.
type PickupRequest struct {
	VehicleID  uint
	OperatorID uint
	BatteryPct int
	// EarlyReason, when non-blank, lets the operator take a vehicle whose
	// charge is not yet complete.
	EarlyReason string
}

// PickupResult is the outcome of an accepted pickup or takeover.
type PickupResult struct {
	Cycle *models.ChargeCycle
	// Closed is the predecessor cycle completed by this operation, if any.
	Closed *models.ChargeCycle
}

// Pickup checks the vehicle out to the operator. A charging or parked
// predecessor is completed in the same transaction as the new cycle is
// opened.
func (e *Engine) Pickup(ctx context.Context, req PickupRequest) (*PickupResult, error) {
	start := time.Now()
	var res *PickupResult
	err := e.pickup(ctx, req, &res)
	e.observe("pickup", start, logrus.Fields{
		"vehicle_id":  req.VehicleID,
		"operator_id": req.OperatorID,
		"battery_pct": req.BatteryPct,
	}, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) pickup(ctx context.Context, req PickupRequest, out **PickupResult) error {
	if err := validBattery(req.BatteryPct); err != nil {
		return err
	}
	reason := strings.TrimSpace(req.EarlyReason)

	return e.withVehicle(ctx, req.VehicleID, func(tx *gorm.DB, v *models.Vehicle, now time.Time) error {
		if v.Status == models.VehicleBlocked {
			return newError(KindVehicleBlocked, "vehicle %s is blocked", v.Code)
		}

		active, err := activeCycle(tx, v.ID)
		if err != nil {
			return err
		}

		early := ""
		if active != nil {
			switch active.Status {
			case models.StatusInUse:
				holder := registry.OperatorName(tx, active.OperatorID)
				de := newError(KindResourceBusy, "vehicle %s is in use by %s", v.Code, holder)
				de.HolderID = active.OperatorID
				de.HolderName = holder
				return de
			case models.StatusCharging:
				startPct := deref(active.ReturnBatteryPct)
				if active.ReturnTime != nil && !ChargeComplete(startPct, *active.ReturnTime, now) {
					if reason == "" {
						rem := RemainingMinutes(startPct, *active.ReturnTime, now)
						de := newError(KindInsufficientCharge, "vehicle %s needs %d more minutes of charge", v.Code, rem)
						de.RemainingMinutes = rem
						return de
					}
					early = reason
				}
			}
		}

		var closed *models.ChargeCycle
		if active != nil {
			if err := transition(tx, active, models.StatusCompleted, map[string]interface{}{}); err != nil {
				return err
			}
			closed = active
		}

		c, err := openCycle(tx, v.ID, req.OperatorID, req.BatteryPct, now, early)
		if err != nil {
			return err
		}
		*out = &PickupResult{Cycle: c, Closed: closed}
		return nil
	})
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
