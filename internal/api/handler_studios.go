package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/parse"
	"studio-booking-backend/internal/store"
	"studio-booking-backend/internal/timerange"
)

// StudioResponse is a studio with its derived unit labels.
type StudioResponse struct {
	model.Studio
	Units []string `json:"units"`
}

func studioResponse(s model.Studio) StudioResponse {
	return StudioResponse{Studio: s, Units: parse.UnitLabels(s.Code, s.NumStudios)}
}

// ListStudios handles GET /api/studios?city=&q=&date=&start=&end=. With a
// date and an HH:MM start and end, studios whose units all overlap a
// confirmed booking in that window are dropped.
func (h *Handler) ListStudios(c *gin.Context) {
	window, err := h.occupancyWindow(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	studios, err := h.store.ListStudios(c.Request.Context(), store.StudioFilter{
		City:  c.Query("city"),
		Query: c.Query("q"),
	})
	if err != nil {
		h.log.Error("failed to list studios", "err", err)
		writeError(c, err)
		return
	}

	if window != nil {
		if studios, err = h.occupancy.AvailableStudios(c.Request.Context(), studios, *window); err != nil {
			writeError(c, err)
			return
		}
	}

	resp := make([]StudioResponse, len(studios))
	for i, s := range studios {
		resp[i] = studioResponse(s)
	}
	c.JSON(http.StatusOK, resp)
}

// occupancyWindow reads the optional date, start and end parameters. Either
// all three are present or none.
func (h *Handler) occupancyWindow(c *gin.Context) (*timerange.Range, error) {
	date, start, end := c.Query("date"), c.Query("start"), c.Query("end")
	if date == "" && start == "" && end == "" {
		return nil, nil
	}
	if date == "" || start == "" || end == "" {
		return nil, errors.New("date, start and end must be given together")
	}

	loc := h.bookings.Policy().Zone()
	from, err := time.ParseInLocation(dateLayout+" 15:04", date+" "+start, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date or start: %v", err)
	}
	to, err := time.ParseInLocation(dateLayout+" 15:04", date+" "+end, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date or end: %v", err)
	}
	r, err := timerange.New(from, to)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetStudio handles GET /api/studios/:studio_id.
func (h *Handler) GetStudio(c *gin.Context) {
	studioID, err := strconv.ParseInt(c.Param("studio_id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid studio id")
		return
	}

	studio, err := h.store.GetStudio(c.Request.Context(), studioID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": kindNotFound, "message": "studio not found"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, studioResponse(*studio))
}
