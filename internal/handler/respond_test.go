package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/repository"
	"github.com/iliyamo/turf-reservation/internal/service"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"slot unavailable", &service.SlotUnavailableError{Date: "2025-03-10", Time: "14:00", Status: "Maintenance"}, http.StatusConflict, "slot_unavailable", false},
		{"storage conflict", service.ErrStorageConflict, http.StatusConflict, "storage_conflict", true},
		{"user not found", service.ErrUserNotFound, http.StatusNotFound, "user_not_found", false},
		{"invalid range", service.ErrInvalidRange, http.StatusBadRequest, "invalid_range", false},
		{"repository not found", fmt.Errorf("lookup: %w", repository.ErrNotFound), http.StatusNotFound, "not_found", false},
		{"phone exists", repository.ErrPhoneExists, http.StatusConflict, "phone_exists", false},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "storage_unavailable", true},
		{"driver error", errors.New("Error 1045: Access denied for user 'turf'"), http.StatusServiceUnavailable, "storage_unavailable", false},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if err := respondError(c, tt.err); err != nil {
				t.Fatalf("respondError: %v", err)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rec.Code != tt.status || body.Code != tt.code || body.Retryable != tt.retryable {
				t.Errorf("got %d %+v, want %d %s retryable=%v", rec.Code, body, tt.status, tt.code, tt.retryable)
			}
			if strings.Contains(rec.Body.String(), "Access denied") {
				t.Errorf("driver text leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestRespondErrorNamesBlockedUnit(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/v1/bookings", nil), rec)
	_ = respondError(c, fmt.Errorf("book: %w", &service.SlotUnavailableError{Date: "2025-03-11", Time: "01:00", Status: "Unavailable"}))

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Date != "2025-03-11" || body.Time != "01:00" || body.Status != "Unavailable" {
		t.Errorf("body = %+v", body)
	}
}

func TestParseMaintenance(t *testing.T) {
	tests := []struct {
		body    string
		wantMsg bool
		times   int
	}{
		{`{"date":"2025-03-10","unit_times":["06:00","07:00 PM"]}`, false, 2},
		{`{"date":"2025-03-10","unit_times":[]}`, true, 0},
		{`{"date":"March 10","unit_times":["06:00"]}`, true, 0},
		{`{"date":"2025-03-10","unit_times":["dawn"]}`, true, 0},
		{`not json`, true, 0},
	}
	e := echo.New()
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())
		_, times, msg := parseMaintenance(c)
		if (msg != "") != tt.wantMsg || len(times) != tt.times {
			t.Errorf("parseMaintenance(%s) = %d times, msg %q", tt.body, len(times), msg)
		}
	}
}
