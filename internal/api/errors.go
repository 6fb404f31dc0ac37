package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studio-booking-backend/internal/booking"
)

// Error kinds returned in the "error" field of every failed response.
const (
	kindInvalidRange     = "invalid_range"
	kindOutsideHours     = "outside_operating_hours"
	kindSlotConflict     = "slot_conflict"
	kindUnauthorized     = "unauthorized"
	kindAlreadyTerminal  = "already_terminal"
	kindNotFound         = "not_found"
	kindStorage          = "storage_error"
	kindBadRequest       = "bad_request"
	conflictReasonBuffer = "overlaps an existing booking or its turnover buffer"
)

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": kindBadRequest, "message": message})
}

// writeError maps booking errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	var conflict *booking.SlotConflictError
	switch {
	case errors.As(err, &conflict):
		body := gin.H{
			"error":   kindSlotConflict,
			"message": conflict.Error(),
			"reason":  conflictReasonBuffer,
		}
		if conflict.SuggestedStart != nil {
			body["suggested_start"] = conflict.SuggestedStart
		}
		c.AbortWithStatusJSON(http.StatusConflict, body)
	case errors.Is(err, booking.ErrInvalidRange):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": kindInvalidRange, "message": err.Error()})
	case errors.Is(err, booking.ErrOutsideOperatingHours):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": kindOutsideHours, "message": err.Error()})
	case errors.Is(err, booking.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": kindUnauthorized, "message": err.Error()})
	case errors.Is(err, booking.ErrAlreadyTerminal):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": kindAlreadyTerminal, "message": err.Error()})
	case errors.Is(err, booking.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": kindNotFound, "message": err.Error()})
	default:
		// Storage details stay in the log.
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": kindStorage, "message": "internal error"})
	}
}
