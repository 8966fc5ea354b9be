// Package cycle implements the vehicle cycle engine: pickup, takeover and
// return of shared equipment, and the linear charging model that gates early
// pickups. The engine is the only writer of charge cycles.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/fleetyard/internal/db"
	"github.com/zulandar/fleetyard/internal/models"
	"github.com/zulandar/fleetyard/internal/registry"
	"gorm.io/gorm"
)

// DefaultLockTimeout bounds how long a request waits for a busy vehicle.
const DefaultLockTimeout = 3 * time.Second

// Engine enforces the pickup/takeover/return rules. Construct with New.
type Engine struct {
	db          *gorm.DB
	clock       clock.Clock
	log         logrus.FieldLogger
	metrics     Recorder
	locks       *vehicleLocks
	lockTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

// WithLockTimeout sets the bounded wait for a busy vehicle.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockTimeout = d
		}
	}
}

// New returns an engine writing to gormDB.
func New(gormDB *gorm.DB, opts ...Option) (*Engine, error) {
	if gormDB == nil {
		return nil, fmt.Errorf("cycle: db is required")
	}
	e := &Engine{
		db:          gormDB,
		clock:       clock.WallClock,
		metrics:     nopRecorder{},
		locks:       newVehicleLocks(),
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		e.log = l
	}
	return e, nil
}

// withVehicle runs fn as one atomic unit scoped to the vehicle: the
// in-process vehicle lock is taken with a bounded wait, then fn runs inside a
// single transaction with the vehicle row locked. A domain error or any other
// error from fn rolls everything back.
func (e *Engine) withVehicle(ctx context.Context, vehicleID uint, fn func(tx *gorm.DB, v *models.Vehicle, now time.Time) error) error {
	release, err := e.locks.acquire(ctx, vehicleID, e.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return fmt.Errorf("%w: vehicle %d", ErrLockTimeout, vehicleID)
		}
		return fmt.Errorf("cycle: wait for vehicle %d: %w", vehicleID, err)
	}
	defer release()

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := registry.LockVehicle(tx, vehicleID)
		if err != nil {
			if errors.Is(err, registry.ErrVehicleNotFound) {
				return newError(KindNotFound, "vehicle %d not found", vehicleID)
			}
			return fmt.Errorf("cycle: %w", err)
		}
		return fn(tx, v, e.clock.Now())
	})
}

// activeCycle loads the vehicle's active cycle, or nil when it has none.
func activeCycle(tx *gorm.DB, vehicleID uint) (*models.ChargeCycle, error) {
	var cycles []models.ChargeCycle
	if err := tx.Where("vehicle_id = ? AND status IN ?", vehicleID, models.ActiveStatuses).
		Order("pickup_time DESC, id DESC").
		Find(&cycles).Error; err != nil {
		return nil, fmt.Errorf("cycle: load active cycle of vehicle %d: %w", vehicleID, err)
	}
	switch len(cycles) {
	case 0:
		return nil, nil
	case 1:
		return &cycles[0], nil
	}
	return nil, fmt.Errorf("cycle: vehicle %d has %d active cycles", vehicleID, len(cycles))
}

// transition applies updates to an active cycle after checking the state
// machine. The status column is part of the WHERE clause so a cycle that
// changed underneath is never double-closed.
func transition(tx *gorm.DB, c *models.ChargeCycle, to models.CycleStatus, updates map[string]interface{}) error {
	if !models.CanTransition(c.Status, to) {
		return newError(KindInvalidState, "cycle %d cannot move from %s to %s", c.ID, c.Status, to)
	}
	updates["status"] = to
	if to == models.StatusCompleted {
		updates["active_slot"] = nil
	}
	result := tx.Model(&models.ChargeCycle{}).
		Where("id = ? AND status = ?", c.ID, c.Status).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("cycle: update cycle %d: %w", c.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return newError(KindInvalidState, "cycle %d is no longer %s", c.ID, c.Status)
	}
	if err := tx.First(c, c.ID).Error; err != nil {
		return fmt.Errorf("cycle: reload cycle %d: %w", c.ID, err)
	}
	return nil
}

// openCycle inserts a new in_use cycle for the operator.
func openCycle(tx *gorm.DB, vehicleID, operatorID uint, batteryPct int, now time.Time, earlyReason string) (*models.ChargeCycle, error) {
	slot := vehicleID
	c := &models.ChargeCycle{
		VehicleID:        vehicleID,
		OperatorID:       operatorID,
		PickupTime:       now,
		PickupBatteryPct: batteryPct,
		Status:           models.StatusInUse,
		ActiveSlot:       &slot,
	}
	if earlyReason != "" {
		c.EarlyPickup = true
		c.EarlyPickupReason = &earlyReason
	}
	if err := tx.Create(c).Error; err != nil {
		if db.IsDuplicateKey(err) {
			return nil, newError(KindResourceBusy, "vehicle %d already has an active cycle", vehicleID)
		}
		return nil, fmt.Errorf("cycle: open cycle on vehicle %d: %w", vehicleID, err)
	}
	return c, nil
}

func validBattery(pct int) error {
	if pct < 0 || pct > 100 {
		return newError(KindInvalidBattery, "battery %d%% is outside 0..100", pct)
	}
	return nil
}

// observe logs and records the outcome of an operation.
func (e *Engine) observe(op string, start time.Time, fields logrus.Fields, err error) {
	outcome := "ok"
	entry := e.log.WithFields(fields).WithField("operation", op)
	switch de, ok := AsDomain(err); {
	case err == nil:
		entry.Info("cycle operation accepted")
	case ok:
		outcome = string(de.Kind)
		entry.WithField("kind", de.Kind).Info("cycle operation rejected")
	default:
		outcome = "error"
		entry.WithError(err).Error("cycle operation failed")
	}
	e.metrics.ObserveOperation(op, outcome, time.Since(start))
}

// Get returns a cycle by id.
func (e *Engine) Get(ctx context.Context, id uint) (*models.ChargeCycle, error) {
	var c models.ChargeCycle
	if err := e.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "cycle %d not found", id)
		}
		return nil, fmt.Errorf("cycle: get %d: %w", id, err)
	}
	return &c, nil
}
