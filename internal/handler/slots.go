package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/lattice"
	"github.com/iliyamo/turf-reservation/internal/repository"
	"github.com/iliyamo/turf-reservation/internal/service"
)

// SlotHandler serves the slot exception listing and the admin maintenance
// endpoints.
type SlotHandler struct {
	Slots       *repository.SlotRepo
	Maintenance *service.MaintenanceManager
	Timeout     time.Duration
	Now         func() time.Time
}

func NewSlotHandler(slots *repository.SlotRepo, m *service.MaintenanceManager, timeout time.Duration) *SlotHandler {
	if slots == nil || m == nil {
		panic("nil dependency passed to NewSlotHandler")
	}
	return &SlotHandler{Slots: slots, Maintenance: m, Timeout: timeout, Now: time.Now}
}

type slotDTO struct {
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	Status        string  `json:"status"`
	ReservationID *uint64 `json:"reservation_id,omitempty"`
}

// Exceptions handles GET /v1/slots/exceptions?from=YYYY-MM-DD.  Every unit
// not listed is available.  from defaults to today.
func (h *SlotHandler) Exceptions(c echo.Context) error {
	from, err := dateParam(c, "from", h.Now())
	if err != nil {
		return badRequest(c, "from must be YYYY-MM-DD")
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	rows, err := h.Slots.ListFrom(ctx, from)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]slotDTO, len(rows))
	for i, r := range rows {
		out[i] = slotDTO{Date: r.SlotDate, Time: r.SlotTime, Status: string(r.Status), ReservationID: r.ReservationID}
	}
	return c.JSON(http.StatusOK, echo.Map{"from": lattice.FormatDate(from), "slots": out})
}

type maintenanceReq struct {
	Date      string   `json:"date"`
	UnitTimes []string `json:"unit_times"`
}

// parseMaintenance reads the body shared by both maintenance endpoints.
// A non-empty msg describes why the request is invalid.
func parseMaintenance(c echo.Context) (date time.Time, times []lattice.TimeOfDay, msg string) {
	var req maintenanceReq
	if err := c.Bind(&req); err != nil {
		return date, nil, "invalid body"
	}
	date, err := lattice.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return date, nil, "date must be YYYY-MM-DD"
	}
	if len(req.UnitTimes) == 0 {
		return date, nil, "unit_times is required"
	}
	times = make([]lattice.TimeOfDay, 0, len(req.UnitTimes))
	for _, s := range req.UnitTimes {
		t, err := lattice.ParseTimeOfDay(s)
		if err != nil {
			return date, nil, "invalid unit time " + s
		}
		times = append(times, t)
	}
	return date, times, ""
}

// MarkMaintenance handles POST /v1/admin/slots/maintenance.  Units held by
// a reservation are reported and left alone.
func (h *SlotHandler) MarkMaintenance(c echo.Context) error {
	date, times, msg := parseMaintenance(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res, err := h.Maintenance.MarkMaintenance(ctx, date, times)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ClearMaintenance handles DELETE /v1/admin/slots/maintenance.
func (h *SlotHandler) ClearMaintenance(c echo.Context) error {
	date, times, msg := parseMaintenance(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res, err := h.Maintenance.ClearMaintenance(ctx, date, times)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
