package api

import (
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"studio-booking-backend/internal/booking"
	"studio-booking-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	bookings  *booking.Manager
	occupancy *booking.Aggregator
	webpush   *webpush.Options
	log       *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, m *booking.Manager, webpushOptions *webpush.Options, log *slog.Logger) *Handler {
	return &Handler{
		store:     s,
		bookings:  m,
		occupancy: booking.NewAggregator(s),
		webpush:   webpushOptions,
		log:       log,
	}
}

// Health reports liveness and whether the database answers.
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.log.Error("health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
