package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// actorID identifies the caller for rate limiting.  Admins are keyed by
// their token subject; everyone else shares "anon" and is separated by IP.
func actorID(c echo.Context) string {
	if id, ok := c.Get(CtxAdminID).(uint64); ok {
		return "admin:" + strconv.FormatUint(id, 10)
	}
	return "anon"
}

// AdminID returns the authenticated admin's ID as set by JWTAuth.
func AdminID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxAdminID).(uint64)
	return id, ok
}
