package cycle

import "time"

// Charging model constants. The values are fixed for every vehicle class.
const (
	// MinutesPerPercent is the linear charge rate: 0→100% takes 300 minutes.
	MinutesPerPercent = 3
	// UnnecessaryChargePct is the battery level at or above which a charge
	// return counts as an unnecessary charge.
	UnnecessaryChargePct = 30
	// CriticalBatteryPct is the battery level at or below which a park
	// return leaves a critical battery unattended.
	CriticalBatteryPct = 20
)

// Warning is a non-fatal advisory attached to a successful return.
type Warning string

const (
	WarnInsufficientDepletion Warning = "insufficient depletion"
	WarnCriticalBattery       Warning = "critical battery left unattended"
)

func clampPct(pct int) int {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// MinutesNeeded is the charge time required to go from startPct to full.
func MinutesNeeded(startPct int) int {
	return (100 - clampPct(startPct)) * MinutesPerPercent
}

// elapsedMinutes returns whole minutes between since and now, never negative.
func elapsedMinutes(since, now time.Time) int {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// RemainingMinutes is the charge time still needed for a cycle put on charge
// at startPct at returnTime. Zero once the charge is complete.
func RemainingMinutes(startPct int, returnTime, now time.Time) int {
	rem := MinutesNeeded(startPct) - elapsedMinutes(returnTime, now)
	if rem < 0 {
		return 0
	}
	return rem
}

// ChargeComplete reports whether a charge started at startPct at returnTime
// is finished by now.
func ChargeComplete(startPct int, returnTime, now time.Time) bool {
	return elapsedMinutes(returnTime, now) >= MinutesNeeded(startPct)
}

// EstimatedBattery is the linear estimate of the battery level of a vehicle
// put on charge at startPct at returnTime.
func EstimatedBattery(startPct int, returnTime, now time.Time) int {
	return clampPct(clampPct(startPct) + elapsedMinutes(returnTime, now)/MinutesPerPercent)
}

// IsUnnecessaryCharge reports whether a charge return at pct was premature.
func IsUnnecessaryCharge(pct int) bool {
	return pct >= UnnecessaryChargePct
}

// IsCriticalPark reports whether a park return at pct left a critical battery.
func IsCriticalPark(pct int) bool {
	return pct <= CriticalBatteryPct
}
