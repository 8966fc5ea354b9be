package cycle

import (
	"errors"
	"fmt"
)

// Kind classifies a domain validation failure. Domain failures describe a
// real conflict at the equipment and are never retried automatically.
type Kind string

const (
	KindVehicleBlocked     Kind = "VehicleBlocked"
	KindResourceBusy       Kind = "ResourceBusy"
	KindInsufficientCharge Kind = "InsufficientCharge"
	KindNoActiveUsage      Kind = "NoActiveUsage"
	KindSelfTakeover       Kind = "SelfTakeover"
	KindNotFound           Kind = "NotFound"
	KindInvalidState       Kind = "InvalidState"
	KindInvalidReturnType  Kind = "InvalidReturnType"
	KindLocationRequired   Kind = "LocationRequired"
	KindInvalidBattery     Kind = "InvalidBattery"
)

// Error is a domain validation failure with the context a person needs to
// resolve it.
type Error struct {
	Kind    Kind
	Message string
	// HolderID and HolderName identify the operator currently holding the
	// vehicle (ResourceBusy).
	HolderID   uint
	HolderName string
	// RemainingMinutes is the charge time still required (InsufficientCharge).
	RemainingMinutes int
}

func (e *Error) Error() string {
	return fmt.Sprintf("cycle: %s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, cycle.ErrResourceBusy).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrVehicleBlocked     = &Error{Kind: KindVehicleBlocked}
	ErrResourceBusy       = &Error{Kind: KindResourceBusy}
	ErrInsufficientCharge = &Error{Kind: KindInsufficientCharge}
	ErrNoActiveUsage      = &Error{Kind: KindNoActiveUsage}
	ErrSelfTakeover       = &Error{Kind: KindSelfTakeover}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrInvalidReturnType  = &Error{Kind: KindInvalidReturnType}
	ErrLocationRequired   = &Error{Kind: KindLocationRequired}
	ErrInvalidBattery     = &Error{Kind: KindInvalidBattery}
)

// ErrLockTimeout is an infrastructure failure: the vehicle stayed locked by
// another request for longer than the engine's lock timeout. Safe to retry.
var ErrLockTimeout = errors.New("cycle: vehicle lock wait timed out")

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsDomain returns the domain error wrapped in err, if any.
func AsDomain(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsDomain reports whether err is a domain validation failure rather than a
// store or infrastructure failure.
func IsDomain(err error) bool {
	_, ok := AsDomain(err)
	return ok
}
