package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"studio-booking-backend/internal/booking"
	"studio-booking-backend/internal/timerange"
)

const dateLayout = "2006-01-02"

type rangeResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type checkResponse struct {
	Verdict        booking.Verdict `json:"verdict"`
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	ConflictEnd    *time.Time      `json:"conflict_end,omitempty"`
	SuggestedStart *time.Time      `json:"suggested_start,omitempty"`
}

func (h *Handler) parseDate(raw string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, raw, h.bookings.Policy().Zone())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return d, nil
}

// dateParam reads ?date=, defaulting to today.
func (h *Handler) dateParam(c *gin.Context) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return time.Now().In(h.bookings.Policy().Zone()), nil
	}
	return h.parseDate(raw)
}

// unitParams resolves the :studio_id and :unit path parameters. It writes the
// error response itself and reports whether the handler may continue.
func (h *Handler) unitParams(c *gin.Context) (int64, string, bool) {
	studioID, err := strconv.ParseInt(c.Param("studio_id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid studio id")
		return 0, "", false
	}
	_, unit, err := h.bookings.Unit(c.Request.Context(), studioID, c.Param("unit"))
	if err != nil {
		writeError(c, err)
		return 0, "", false
	}
	return studioID, unit, true
}

// Availability handles GET /api/studios/:studio_id/units/:unit/availability and
// lists the unit's confirmed bookings on the given day.
func (h *Handler) Availability(c *gin.Context) {
	studioID, unit, ok := h.unitParams(c)
	if !ok {
		return
	}
	date, err := h.dateParam(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	day := timerange.Day(date, h.bookings.Policy().Zone())
	ranges, err := h.bookings.Index().ConfirmedBookings(c.Request.Context(), studioID, unit, day)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]rangeResponse, len(ranges))
	for i, r := range ranges {
		resp[i] = rangeResponse{Start: r.Start, End: r.End}
	}
	c.JSON(http.StatusOK, resp)
}

// Slots handles GET /api/studios/:studio_id/units/:unit/slots.
func (h *Handler) Slots(c *gin.Context) {
	studioID, unit, ok := h.unitParams(c)
	if !ok {
		return
	}
	date, err := h.dateParam(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	statuses, err := h.bookings.Index().HourlySlotStatus(c.Request.Context(), studioID, unit, date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

// Check handles GET /api/studios/:studio_id/units/:unit/check?start=&end=, a
// dry run of conflict resolution. Nothing is reserved.
func (h *Handler) Check(c *gin.Context) {
	studioID, unit, ok := h.unitParams(c)
	if !ok {
		return
	}
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		badRequest(c, "start must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		badRequest(c, "end must be an RFC 3339 timestamp")
		return
	}

	d, err := h.bookings.Resolver().Resolve(c.Request.Context(), studioID, unit, start, end)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := checkResponse{
		Verdict:        d.Verdict,
		Start:          d.Range.Start,
		End:            d.Range.End,
		SuggestedStart: d.SuggestedStart,
	}
	if d.Conflict != nil {
		resp.ConflictEnd = &d.Conflict.End
	}
	c.JSON(http.StatusOK, resp)
}
