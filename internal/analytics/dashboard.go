package analytics

import (
	"context"
	"time"

	"github.com/zulandar/fleetyard/internal/cycle"
	"github.com/zulandar/fleetyard/internal/models"
)

// Compliance is the share of charge returns whose vehicle was left on the
// charger for the full required time before the next pickup.
type Compliance struct {
	Rate      float64 `json:"rate"`
	Compliant int     `json:"compliant"`
	// Evaluated counts charge returns that have a later pickup in the
	// window. Rate is 0 when nothing could be evaluated.
	Evaluated int `json:"evaluated"`
}

// Dashboard is a fleet-wide summary: instantaneous counts of active cycles
// plus totals over the window.
type Dashboard struct {
	GeneratedAt time.Time `json:"generated_at"`
	WindowDays  int       `json:"window_days"`

	InUse          int `json:"in_use"`
	Charging       int `json:"charging"`
	ChargeComplete int `json:"charge_complete"`
	Parked         int `json:"parked"`

	TotalCycles        int        `json:"total_cycles"`
	CompletedCycles    int        `json:"completed_cycles"`
	ChargedCycles      int        `json:"charged_cycles"`
	ParkedCycles       int        `json:"parked_cycles"`
	Takeovers          int        `json:"takeovers"`
	EarlyPickups       int        `json:"early_pickups"`
	UnnecessaryCharges int        `json:"unnecessary_charges"`
	CriticalIgnored    int        `json:"critical_ignored"`
	Compliance         Compliance `json:"compliance"`
}

// Dashboard computes the fleet summary for the window.
func (s *Service) Dashboard(ctx context.Context, w Window) (*Dashboard, error) {
	days, now, since := s.bounds(w)

	active, err := s.activeCycles(ctx)
	if err != nil {
		return nil, err
	}
	cycles, err := s.windowCycles(ctx, since, Filter{})
	if err != nil {
		return nil, err
	}

	d := &Dashboard{GeneratedAt: now, WindowDays: days}
	for _, c := range active {
		switch c.Status {
		case models.StatusInUse:
			d.InUse++
		case models.StatusCharging:
			d.Charging++
			if c.ReturnTime != nil && c.ReturnBatteryPct != nil &&
				cycle.ChargeComplete(*c.ReturnBatteryPct, *c.ReturnTime, now) {
				d.ChargeComplete++
			}
		case models.StatusParked:
			d.Parked++
		}
	}

	d.TotalCycles = len(cycles)
	for i := range cycles {
		c := &cycles[i]
		if c.Status == models.StatusCompleted {
			d.CompletedCycles++
		}
		if c.EarlyPickup {
			d.EarlyPickups++
		}
		switch {
		case c.ReturnedAs(models.ReturnCharge):
			d.ChargedCycles++
			if unnecessaryCharge(c) {
				d.UnnecessaryCharges++
			}
		case c.ReturnedAs(models.ReturnPark):
			d.ParkedCycles++
			if criticalIgnored(c) {
				d.CriticalIgnored++
			}
		case c.ReturnedAs(models.ReturnTakeover):
			d.Takeovers++
		}
	}
	d.Compliance = complianceOf(cycles)
	return d, nil
}

// ComplianceRate computes only the charge compliance for the window.
func (s *Service) ComplianceRate(ctx context.Context, w Window) (Compliance, error) {
	_, _, since := s.bounds(w)
	cycles, err := s.windowCycles(ctx, since, Filter{})
	if err != nil {
		return Compliance{}, err
	}
	return complianceOf(cycles), nil
}

// complianceOf evaluates every completed charge return against the next
// pickup of the same vehicle. cycles must be ordered oldest first.
func complianceOf(cycles []models.ChargeCycle) Compliance {
	byVehicle := make(map[uint][]*models.ChargeCycle)
	for i := range cycles {
		c := &cycles[i]
		byVehicle[c.VehicleID] = append(byVehicle[c.VehicleID], c)
	}

	var out Compliance
	for _, vcs := range byVehicle {
		for i, c := range vcs {
			if c.Status != models.StatusCompleted || !c.ReturnedAs(models.ReturnCharge) ||
				c.ReturnTime == nil || c.ReturnBatteryPct == nil {
				continue
			}
			next := nextPickup(vcs[i+1:], *c.ReturnTime)
			if next == nil {
				continue
			}
			out.Evaluated++
			needed := time.Duration(cycle.MinutesNeeded(*c.ReturnBatteryPct)) * time.Minute
			if next.PickupTime.Sub(*c.ReturnTime) >= needed {
				out.Compliant++
			}
		}
	}
	out.Rate = percent(out.Compliant, out.Evaluated)
	return out
}

func nextPickup(later []*models.ChargeCycle, after time.Time) *models.ChargeCycle {
	for _, n := range later {
		if n.PickupTime.After(after) {
			return n
		}
	}
	return nil
}

func unnecessaryCharge(c *models.ChargeCycle) bool {
	return c.ReturnedAs(models.ReturnCharge) && c.ReturnBatteryPct != nil &&
		cycle.IsUnnecessaryCharge(*c.ReturnBatteryPct)
}

func criticalIgnored(c *models.ChargeCycle) bool {
	return c.ReturnedAs(models.ReturnPark) && c.ReturnBatteryPct != nil &&
		cycle.IsCriticalPark(*c.ReturnBatteryPct)
}
