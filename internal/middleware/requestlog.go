package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/logger"
)

// CtxRequestID is the context key holding the request id.
const CtxRequestID = "request_id"

// RequestLog assigns every request an id (honouring an inbound
// X-Request-ID), echoes it back in the response header and logs one line
// per request once the handler has finished.
func RequestLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(CtxRequestID, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			kv := []interface{}{
				"id", id,
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"latency", time.Since(start).String(),
				"ip", c.RealIP(),
			}
			switch {
			case status >= 500:
				logger.Error("request", kv...)
			case status >= 400:
				logger.Warn("request", kv...)
			default:
				logger.Info("request", kv...)
			}
			return nil
		}
	}
}

// RequestID returns the id assigned by RequestLog, or "" outside it.
func RequestID(c echo.Context) string {
	id, _ := c.Get(CtxRequestID).(string)
	return id
}
