package cycle

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/fleetyard/internal/models"
	"gorm.io/gorm"
)

// TakeoverRequest asks to take a vehicle recorded as in use by someone else.
type TakeoverRequest struct {
	VehicleID  uint
	OperatorID uint
	BatteryPct int
}

// Takeover force-closes another operator's in_use cycle and opens a new one
// for the caller. The charge-wait check does not apply: the vehicle is
// physically available, so operational continuity wins.
func (e *Engine) Takeover(ctx context.Context, req TakeoverRequest) (*PickupResult, error) {
	start := time.Now()
	var res *PickupResult
	err := e.takeover(ctx, req, &res)
	e.observe("takeover", start, logrus.Fields{
		"vehicle_id":  req.VehicleID,
		"operator_id": req.OperatorID,
		"battery_pct": req.BatteryPct,
	}, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) takeover(ctx context.Context, req TakeoverRequest, out **PickupResult) error {
	if err := validBattery(req.BatteryPct); err != nil {
		return err
	}

	return e.withVehicle(ctx, req.VehicleID, func(tx *gorm.DB, v *models.Vehicle, now time.Time) error {
		if v.Status == models.VehicleBlocked {
			return newError(KindVehicleBlocked, "vehicle %s is blocked", v.Code)
		}

		active, err := activeCycle(tx, v.ID)
		if err != nil {
			return err
		}
		if active == nil || active.Status != models.StatusInUse {
			return newError(KindNoActiveUsage, "vehicle %s is not in use", v.Code)
		}
		if active.OperatorID == req.OperatorID {
			return newError(KindSelfTakeover, "vehicle %s is already yours", v.Code)
		}

		caller := req.OperatorID
		if err := transition(tx, active, models.StatusCompleted, map[string]interface{}{
			"return_time":        now,
			"return_operator_id": caller,
			"return_battery_pct": req.BatteryPct,
			"return_type":        models.ReturnTakeover,
			"forgot_return":      true,
			"forced_return_by":   caller,
		}); err != nil {
			return err
		}

		c, err := openCycle(tx, v.ID, caller, req.BatteryPct, now, "")
		if err != nil {
			return err
		}
		*out = &PickupResult{Cycle: c, Closed: active}
		return nil
	})
}
