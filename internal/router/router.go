// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/turf-reservation/internal/config"
	"github.com/iliyamo/turf-reservation/internal/handler"
	"github.com/iliyamo/turf-reservation/internal/metrics"
	"github.com/iliyamo/turf-reservation/internal/middleware"
	"github.com/iliyamo/turf-reservation/internal/utils"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Health   echo.HandlerFunc
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Bookings *handler.BookingHandler
	Slots    *handler.SlotHandler
	Reports  *handler.ReportHandler
}

// Options carries the middleware configuration.  Redis may be nil, which
// turns rate limiting and report caching off.
type Options struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
}

// New builds the Echo instance with every route registered.
func New(h Handlers, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLog())
	e.Use(metrics.Middleware())

	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, opts.JWTSecret)
	RegisterCustomer(e, h.Users, h.Bookings, h.Slots, middleware.NewTokenBucket(opts.RateLimit, opts.Redis))
	RegisterAdmin(e, h.Slots, h.Reports, opts.JWTSecret, middleware.NewRedisCache(opts.Cache, opts.Redis))
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the admin auth routes.  Registration is open
// until the first admin exists, so it only parses a token when one is
// sent and the handler decides.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.POST("/register", a.Register, middleware.OptionalJWT(jwtSecret))
	g.POST("/login", a.Login)
	g.PUT("/reset-password", a.ResetPassword,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin))
}

// RegisterCustomer registers the customer-facing endpoints.  Customers do
// not authenticate; writes go through the rate limiter.
func RegisterCustomer(e *echo.Echo, u *handler.UserHandler, b *handler.BookingHandler, s *handler.SlotHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.POST("/users", u.Register, limit)
	g.GET("/users/check", u.Check)
	g.PUT("/users/rename", u.Rename, limit)

	g.POST("/bookings", b.Book, limit)
	g.GET("/slots/exceptions", s.Exceptions)
}

// RegisterAdmin registers the admin-only endpoints.  Report GETs are
// served through the response cache; maintenance writes are not.
func RegisterAdmin(e *echo.Echo, s *handler.SlotHandler, r *handler.ReportHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)
	g.POST("/slots/maintenance", s.MarkMaintenance)
	g.DELETE("/slots/maintenance", s.ClearMaintenance)

	g.GET("/bookings", r.Bookings, cache)
	g.GET("/dashboard", r.Dashboard, cache)
	g.GET("/users", r.Users, cache)
	g.GET("/users/:phone", r.UserDetail, cache)
}
