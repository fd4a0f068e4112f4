package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxAdminID = "admin_id"
	CtxRole    = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the admin ID and role claims into the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers
// read the values with c.Get(CtxAdminID) (uint64) and c.Get(CtxRole).
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := bearerClaims(c, secret)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or missing bearer token"})
			}
			id, err := claims.AdminID()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			c.Set(CtxAdminID, id)
			c.Set(CtxRole, claims.Role)
			return next(c)
		}
	}
}

// OptionalJWT behaves like JWTAuth when a valid token is present and lets
// the request through untouched otherwise.  It backs endpoints that are
// open until some condition holds, such as the first admin registration.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if claims, ok := bearerClaims(c, secret); ok {
				if id, err := claims.AdminID(); err == nil {
					c.Set(CtxAdminID, id)
					c.Set(CtxRole, claims.Role)
				}
			}
			return next(c)
		}
	}
}

func bearerClaims(c echo.Context, secret string) (*utils.Claims, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, false
	}
	claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return nil, false
	}
	return claims, true
}
