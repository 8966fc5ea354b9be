// Package analytics derives compliance reporting from recorded charge
// cycles: the dashboard, the per-operator rating, cycle history and the fleet
// view. It only reads cycles and takes no locks, so results may trail a
// concurrent write by one operation.
package analytics

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/juju/clock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/fleetyard/internal/models"
	"gorm.io/gorm"
)

// Window bounds.
const (
	DefaultDays = 7
	MaxDays     = 365
)

// Window selects the cycles picked up within the last Days days. Zero
// means the service default.
type Window struct {
	Days int
}

// Filter narrows a cycle query. Zero values match everything.
type Filter struct {
	VehicleID  uint
	OperatorID uint
	Status     models.CycleStatus
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.VehicleID != 0 {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.OperatorID != 0 {
		q = q.Where("operator_id = ?", f.OperatorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// Service answers analytics queries against the cycle store.
type Service struct {
	db          *gorm.DB
	clock       clock.Clock
	log         logrus.FieldLogger
	defaultDays int
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source used to place the window.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger used by scheduled jobs.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// WithDefaultDays sets the window used when a query asks for zero days.
func WithDefaultDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.defaultDays = days
		}
	}
}

// New returns a Service reading from gormDB.
func New(gormDB *gorm.DB, opts ...Option) (*Service, error) {
	if gormDB == nil {
		return nil, fmt.Errorf("analytics: db is required")
	}
	s := &Service{
		db:          gormDB,
		clock:       clock.WallClock,
		defaultDays: DefaultDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	return s, nil
}

// days resolves the window length: zero takes the default, everything else
// is clamped to [1, MaxDays].
func (s *Service) days(w Window) int {
	d := w.Days
	if d == 0 {
		d = s.defaultDays
	}
	switch {
	case d < 1:
		return 1
	case d > MaxDays:
		return MaxDays
	}
	return d
}

// bounds returns now and the earliest pickup time inside the window.
func (s *Service) bounds(w Window) (days int, now, since time.Time) {
	days = s.days(w)
	now = s.clock.Now()
	return days, now, now.AddDate(0, 0, -days)
}

// windowCycles loads every cycle picked up since the window start, oldest
// first.
func (s *Service) windowCycles(ctx context.Context, since time.Time, f Filter) ([]models.ChargeCycle, error) {
	var cycles []models.ChargeCycle
	q := f.apply(s.db.WithContext(ctx).Where("pickup_time >= ?", since))
	if err := q.Order("pickup_time ASC, id ASC").Find(&cycles).Error; err != nil {
		return nil, fmt.Errorf("analytics: load window: %w", err)
	}
	return cycles, nil
}

// activeCycles loads every cycle that is still in_use, charging or parked.
func (s *Service) activeCycles(ctx context.Context) ([]models.ChargeCycle, error) {
	var cycles []models.ChargeCycle
	if err := s.db.WithContext(ctx).
		Where("status IN ?", models.ActiveStatuses).
		Order("vehicle_id ASC").
		Find(&cycles).Error; err != nil {
		return nil, fmt.Errorf("analytics: load active cycles: %w", err)
	}
	return cycles, nil
}

// percent returns num/den as a percentage rounded to one decimal, or 0 when
// den is 0.
func percent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(num)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(den))).
		Round(1).
		InexactFloat64()
}
