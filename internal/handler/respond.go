package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/lattice"
	"github.com/iliyamo/turf-reservation/internal/logger"
	"github.com/iliyamo/turf-reservation/internal/middleware"
	"github.com/iliyamo/turf-reservation/internal/repository"
	"github.com/iliyamo/turf-reservation/internal/service"
	"github.com/iliyamo/turf-reservation/internal/utils"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	Status    string `json:"slot_status,omitempty"`
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: msg, Code: service.ErrInvalidRequest.Code})
}

// respondError writes err as JSON.  Engine errors keep their code and
// status; repository sentinels map to 404/409; anything else is a 503
// with a generic message and the cause goes to the log only.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"})
	case errors.Is(err, repository.ErrPhoneExists):
		return c.JSON(http.StatusConflict, errorBody{Error: err.Error(), Code: "phone_exists"})
	case errors.Is(err, repository.ErrUsernameExists):
		return c.JSON(http.StatusConflict, errorBody{Error: err.Error(), Code: "username_exists"})
	case errors.Is(err, utils.ErrWeakPassword):
		return badRequest(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: "request timed out", Code: service.ErrStorageUnavailable.Code, Retryable: true})
	}

	e := service.AsError(err)
	body := errorBody{Error: e.Message, Code: e.Code, Retryable: e.Retryable}
	var se *service.SlotUnavailableError
	if errors.As(err, &se) {
		body.Date, body.Time, body.Status = se.Date, se.Time, se.Status
	}
	if e.Status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"request_id", middleware.RequestID(c),
			"path", c.Path(),
			"err", err)
	}
	return c.JSON(e.Status, body)
}

// requestContext bounds the storage work of one request.
func requestContext(c echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), timeout)
}

// dateParam parses a YYYY-MM-DD query parameter, falling back to def when
// the parameter is absent.
func dateParam(c echo.Context, name string, def time.Time) (time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return lattice.NormalizeDate(def), nil
	}
	return lattice.ParseDate(v)
}
