package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/turf-reservation/internal/lattice"
	"github.com/iliyamo/turf-reservation/internal/service"
)

// BookingHandler exposes the booking engine over HTTP.
type BookingHandler struct {
	Bookings *service.BookingManager
	Timeout  time.Duration
}

func NewBookingHandler(b *service.BookingManager, timeout time.Duration) *BookingHandler {
	if b == nil {
		panic("nil booking manager passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b, Timeout: timeout}
}

type bookReq struct {
	UserID    uint64          `json:"user_id"`
	Date      string          `json:"date"`
	StartTime string          `json:"start_time"` // "14:00" or "02:00 PM"
	EndTime   string          `json:"end_time"`
	Amount    decimal.Decimal `json:"amount"`
}

type bookResp struct {
	ReservationID uint64   `json:"reservation_id"`
	Date          string   `json:"date"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	Units         []string `json:"units"`
	Amount        string   `json:"amount"`
}

// Book handles POST /v1/bookings.  It returns 201 with the reservation id
// and the units claimed, 409 naming the first blocked unit, or 409 with
// retryable=true when concurrent writers kept winning.
func (h *BookingHandler) Book(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	date, err := lattice.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	start, err := lattice.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return badRequest(c, "invalid start_time")
	}
	end, err := lattice.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return badRequest(c, "invalid end_time")
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	b, err := h.Bookings.Book(ctx, service.BookRequest{
		UserID: req.UserID,
		Date:   date,
		Start:  start,
		End:    end,
		Amount: req.Amount,
	})
	if err != nil {
		return respondError(c, err)
	}

	units := make([]string, len(b.Units))
	for i, u := range b.Units {
		units[i] = u.Key()
	}
	return c.JSON(http.StatusCreated, bookResp{
		ReservationID: b.Reservation.ID,
		Date:          b.Reservation.ReservationDate,
		StartTime:     b.Reservation.StartTime,
		EndTime:       b.Reservation.EndTime,
		Units:         units,
		Amount:        b.Reservation.Amount.StringFixed(2),
	})
}
