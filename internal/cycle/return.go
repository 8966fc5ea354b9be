package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/fleetyard/internal/models"
	"github.com/zulandar/fleetyard/internal/registry"
	"gorm.io/gorm"
)

// ReturnRequest hands an in_use cycle back.
type ReturnRequest struct {
	CycleID    uint
	BatteryPct int
	ReturnType models.ReturnType
	// LocationID is required for park returns.
	LocationID *uint
	// OperatorID is the person returning the vehicle. Zero means the
	// operator who picked it up.
	OperatorID uint
}

// ReturnResult is the outcome of an accepted return.
type ReturnResult struct {
	Cycle    *models.ChargeCycle
	Warnings []Warning
}

// Return puts an in_use cycle on charge or parks it. A park return also moves
// the vehicle to the given location.
func (e *Engine) Return(ctx context.Context, req ReturnRequest) (*ReturnResult, error) {
	start := time.Now()
	var res *ReturnResult
	err := e.doReturn(ctx, req, &res)
	e.observe("return", start, logrus.Fields{
		"cycle_id":    req.CycleID,
		"operator_id": req.OperatorID,
		"battery_pct": req.BatteryPct,
		"return_type": req.ReturnType,
	}, err)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		e.metrics.ObserveWarning(w)
	}
	return res, nil
}

// validateReturn checks the request shape before any store access.
func validateReturn(req ReturnRequest) error {
	if req.ReturnType != models.ReturnCharge && req.ReturnType != models.ReturnPark {
		return newError(KindInvalidReturnType, "return type %q must be charge or park", req.ReturnType)
	}
	if req.ReturnType == models.ReturnPark && req.LocationID == nil {
		return newError(KindLocationRequired, "a park return needs a location")
	}
	return validBattery(req.BatteryPct)
}

// ReturnWarnings lists the advisories for a return of the given type and
// battery level.
func ReturnWarnings(t models.ReturnType, pct int) []Warning {
	var ws []Warning
	if t == models.ReturnCharge && IsUnnecessaryCharge(pct) {
		ws = append(ws, WarnInsufficientDepletion)
	}
	if t == models.ReturnPark && IsCriticalPark(pct) {
		ws = append(ws, WarnCriticalBattery)
	}
	return ws
}

func (e *Engine) doReturn(ctx context.Context, req ReturnRequest, out **ReturnResult) error {
	current, err := e.Get(ctx, req.CycleID)
	if err != nil {
		return err
	}
	if current.Status != models.StatusInUse {
		return newError(KindInvalidState, "cycle %d is %s, not in_use", current.ID, current.Status)
	}
	if err := validateReturn(req); err != nil {
		return err
	}

	return e.withVehicle(ctx, current.VehicleID, func(tx *gorm.DB, v *models.Vehicle, now time.Time) error {
		// Re-read under the vehicle lock; the cycle may have been taken over
		// while we waited.
		var c models.ChargeCycle
		if err := tx.First(&c, req.CycleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newError(KindNotFound, "cycle %d not found", req.CycleID)
			}
			return fmt.Errorf("cycle: reload cycle %d: %w", req.CycleID, err)
		}
		if c.Status != models.StatusInUse {
			return newError(KindInvalidState, "cycle %d is %s, not in_use", c.ID, c.Status)
		}

		if req.LocationID != nil {
			if _, err := registry.GetLocation(tx, *req.LocationID); err != nil {
				if errors.Is(err, registry.ErrLocationNotFound) {
					return newError(KindNotFound, "location %d not found", *req.LocationID)
				}
				return fmt.Errorf("cycle: %w", err)
			}
		}

		returner := req.OperatorID
		if returner == 0 {
			returner = c.OperatorID
		}
		to := models.StatusCharging
		if req.ReturnType == models.ReturnPark {
			to = models.StatusParked
		}
		updates := map[string]interface{}{
			"return_time":        now,
			"return_operator_id": returner,
			"return_battery_pct": req.BatteryPct,
			"return_type":        req.ReturnType,
		}
		if req.LocationID != nil {
			updates["return_location_id"] = *req.LocationID
		}
		if err := transition(tx, &c, to, updates); err != nil {
			return err
		}

		if req.ReturnType == models.ReturnPark {
			if err := registry.SetLocation(tx, v.ID, *req.LocationID); err != nil {
				return fmt.Errorf("cycle: %w", err)
			}
		}

		*out = &ReturnResult{Cycle: &c, Warnings: ReturnWarnings(req.ReturnType, req.BatteryPct)}
		return nil
	})
}
