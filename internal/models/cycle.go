package models

import "time"

// CycleStatus is the lifecycle state of a charge cycle.
type CycleStatus string

const (
	StatusInUse     CycleStatus = "in_use"
	StatusCharging  CycleStatus = "charging"
	StatusParked    CycleStatus = "parked"
	StatusCompleted CycleStatus = "completed"
)

// ActiveStatuses are the statuses that occupy a vehicle's active slot.
var ActiveStatuses = []CycleStatus{StatusInUse, StatusCharging, StatusParked}

// Valid reports whether s is a known cycle status.
func (s CycleStatus) Valid() bool {
	switch s {
	case StatusInUse, StatusCharging, StatusParked, StatusCompleted:
		return true
	}
	return false
}

// Active reports whether s holds the vehicle's active slot.
func (s CycleStatus) Active() bool {
	return s == StatusInUse || s == StatusCharging || s == StatusParked
}

// ReturnType records how a cycle was handed back.
type ReturnType string

const (
	ReturnCharge ReturnType = "charge"
	ReturnPark   ReturnType = "park"
	// ReturnTakeover is written by the engine when another operator
	// force-closes the cycle. Callers cannot request it.
	ReturnTakeover ReturnType = "takeover"
)

// Valid reports whether t is a known return type.
func (t ReturnType) Valid() bool {
	switch t {
	case ReturnCharge, ReturnPark, ReturnTakeover:
		return true
	}
	return false
}

// ValidTransitions maps each cycle status to its valid next statuses.
var ValidTransitions = map[CycleStatus][]CycleStatus{
	StatusInUse:    {StatusCharging, StatusParked, StatusCompleted},
	StatusCharging: {StatusCompleted},
	StatusParked:   {StatusCompleted},
}

// CanTransition checks whether a cycle may move from one status to another.
func CanTransition(from, to CycleStatus) bool {
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

// ChargeCycle is one checkout-to-return lifespan of a vehicle.
//
// ActiveSlot mirrors VehicleID while the cycle is active and is NULL once it
// completes; its unique index keeps a second active cycle out of the table.
type ChargeCycle struct {
	ID                uint        `gorm:"primaryKey;autoIncrement"`
	VehicleID         uint        `gorm:"not null;index:idx_vehicle_pickup"`
	OperatorID        uint        `gorm:"not null;index"`
	PickupTime        time.Time   `gorm:"not null;index:idx_vehicle_pickup;index"`
	PickupBatteryPct  int         `gorm:"not null"`
	EarlyPickup       bool        `gorm:"default:false"`
	EarlyPickupReason *string     `gorm:"size:255"`
	ReturnTime        *time.Time  `gorm:"index"`
	ReturnOperatorID  *uint
	ReturnBatteryPct  *int
	ReturnType        *ReturnType `gorm:"size:16"`
	ReturnLocationID  *uint
	ForgotReturn      bool        `gorm:"default:false"`
	ForcedReturnBy    *uint
	Status            CycleStatus `gorm:"size:16;not null;default:in_use;index"`
	ActiveSlot        *uint       `gorm:"uniqueIndex"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsActive reports whether the cycle still holds its vehicle.
func (c *ChargeCycle) IsActive() bool {
	return c.Status.Active()
}

// ReturnedAs reports whether the cycle was returned with the given type.
func (c *ChargeCycle) ReturnedAs(t ReturnType) bool {
	return c.ReturnType != nil && *c.ReturnType == t
}

// UsageDuration is the time between pickup and return, if returned.
func (c *ChargeCycle) UsageDuration() (time.Duration, bool) {
	if c.ReturnTime == nil || c.PickupTime.IsZero() {
		return 0, false
	}
	return c.ReturnTime.Sub(c.PickupTime), true
}

// ComplianceSnapshot is a point-in-time copy of the dashboard counters.
type ComplianceSnapshot struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement"`
	TakenAt            time.Time `gorm:"not null;index"`
	WindowDays         int       `gorm:"not null"`
	InUse              int
	Charging           int
	Parked             int
	TotalCycles        int
	CompletedCycles    int
	ChargedCycles      int
	ParkedCycles       int
	Takeovers          int
	EarlyPickups       int
	UnnecessaryCharges int
	CriticalIgnored    int
	ComplianceRate     float64
	ComplianceSample   int
}
