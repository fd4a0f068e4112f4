package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/lattice"
	"github.com/iliyamo/turf-reservation/internal/repository"
)

// ReportHandler serves the read-only admin reports.  Responses are safe
// to cache for a short TTL; writes invalidate the cache.
type ReportHandler struct {
	Reports *repository.ReportRepo
	Timeout time.Duration
	Now     func() time.Time
}

func NewReportHandler(r *repository.ReportRepo, timeout time.Duration) *ReportHandler {
	if r == nil {
		panic("nil repository passed to NewReportHandler")
	}
	return &ReportHandler{Reports: r, Timeout: timeout, Now: time.Now}
}

// Bookings handles GET /v1/admin/bookings?date=YYYY-MM-DD (default today).
func (h *ReportHandler) Bookings(c echo.Context) error {
	date, err := dateParam(c, "date", h.Now())
	if err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	rows, err := h.Reports.BookingsOn(ctx, date)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": lattice.FormatDate(date), "bookings": rows})
}

// Dashboard handles GET /v1/admin/dashboard.
func (h *ReportHandler) Dashboard(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	d, err := h.Reports.Dashboard(ctx, lattice.NormalizeDate(h.Now()))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Users handles GET /v1/admin/users.
func (h *ReportHandler) Users(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	rows, err := h.Reports.Users(ctx, lattice.NormalizeDate(h.Now()))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": rows})
}

// UserDetail handles GET /v1/admin/users/:phone.
func (h *ReportHandler) UserDetail(c echo.Context) error {
	phone := repository.NormalizePhone(c.Param("phone"))
	if phone == "" {
		return badRequest(c, "phone is required")
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	d, err := h.Reports.UserDetail(ctx, phone, lattice.NormalizeDate(h.Now()))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}
