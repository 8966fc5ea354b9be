package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/fleetyard/internal/cycle"
	"github.com/zulandar/fleetyard/internal/registry"
)

// statusFor maps a domain kind to its HTTP status.
func statusFor(kind cycle.Kind) int {
	switch kind {
	case cycle.KindVehicleBlocked:
		return http.StatusForbidden
	case cycle.KindResourceBusy:
		return http.StatusConflict
	case cycle.KindInsufficientCharge, cycle.KindLocationRequired:
		return http.StatusUnprocessableEntity
	case cycle.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

// writeError renders err as the JSON error body. Domain failures carry their
// context; lock timeouts are marked retryable; anything else is an internal
// error whose detail is only logged.
func writeError(c *gin.Context, err error) {
	if de, ok := cycle.AsDomain(err); ok {
		body := gin.H{"error": de.Kind, "message": de.Message}
		if de.HolderID != 0 {
			body["holder_id"] = de.HolderID
			body["holder_name"] = de.HolderName
		}
		if de.Kind == cycle.KindInsufficientCharge {
			body["remaining_minutes"] = de.RemainingMinutes
		}
		c.AbortWithStatusJSON(statusFor(de.Kind), body)
		return
	}

	switch {
	case errors.Is(err, cycle.ErrLockTimeout):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":     "Unavailable",
			"message":   "vehicle is busy, try again",
			"retryable": true,
		})
	case errors.Is(err, registry.ErrVehicleNotFound), errors.Is(err, registry.ErrLocationNotFound):
		abortWith(c, http.StatusNotFound, string(cycle.KindNotFound), err.Error())
	default:
		c.Error(err)
		abortWith(c, http.StatusInternalServerError, "Internal", "internal error")
	}
}

func abortWith(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": kind, "message": message})
}

func badRequest(c *gin.Context, message string) {
	abortWith(c, http.StatusBadRequest, "BadRequest", message)
}
