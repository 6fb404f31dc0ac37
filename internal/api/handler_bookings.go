package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studio-booking-backend/internal/booking"
	"studio-booking-backend/internal/model"
)

type createBookingRequest struct {
	StudioID int64     `json:"studio_id" binding:"required,gt=0"`
	Unit     string    `json:"unit" binding:"required,unit_label"`
	Start    time.Time `json:"start" binding:"required"`
	End      time.Time `json:"end" binding:"required"`
}

// CreateBooking handles POST /api/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	b, err := h.bookings.Create(c.Request.Context(), actorFrom(c), booking.CreateRequest{
		StudioID: req.StudioID,
		Unit:     req.Unit,
		Start:    req.Start,
		End:      req.End,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

type cancelBookingRequest struct {
	Reason *string `json:"reason"`
}

// CancelBooking handles PUT /api/bookings/:id/cancel. The body is optional.
func (h *Handler) CancelBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid booking id")
		return
	}

	var req cancelBookingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	b, err := h.bookings.Cancel(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type myBookingsResponse struct {
	Upcoming []model.Booking `json:"upcoming"`
	History  []model.Booking `json:"history"`
}

// MyBookings handles GET /api/me/bookings.
func (h *Handler) MyBookings(c *gin.Context) {
	bookings, err := h.bookings.ListForUser(c.Request.Context(), actorFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	upcoming, history := h.bookings.Partition(bookings)
	c.JSON(http.StatusOK, myBookingsResponse{Upcoming: upcoming, History: history})
}

// AdminBookings handles GET /api/admin/bookings?user=&studio=&date=.
func (h *Handler) AdminBookings(c *gin.Context) {
	filter := booking.AdminFilter{
		UserQuery:   c.Query("user"),
		StudioQuery: c.Query("studio"),
	}
	if raw := c.Query("date"); raw != "" {
		date, err := h.parseDate(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		filter.Date = &date
	}

	bookings, err := h.bookings.ListForAdminScope(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}
