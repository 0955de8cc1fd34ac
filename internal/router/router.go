package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/restaurant-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/restaurant-reservation/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/restaurant-reservation/internal/model"      // role names
)

// RegisterRoutes registers the probes that do not require authentication.
// /healthz answers as long as the process is up; /readyz also checks the
// storage and cache dependencies passed in checks.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(checks))
}

// RegisterPublic registers the guest-facing reservation endpoints.  The slot
// listing is served through the response cache, which the booking service
// invalidates per date on every write.  Booking itself is rate limited; a
// nil limiter or cache middleware leaves the route unwrapped.
func RegisterPublic(e *echo.Echo, h *handler.ReservationHandler, cache, limiter echo.MiddlewareFunc) {
	e.GET("/v1/opening-hours", h.OpeningHours)

	g := e.Group("/v1/reservations")
	g.GET("/available-slots", h.AvailableSlots, optional(cache)...)
	g.POST("/check-availability", h.CheckAvailability)
	g.POST("", h.Create, optional(limiter)...)
}

// RegisterAuth registers all authentication-related routes.  Login, refresh
// and logout live under /v1/auth and do not need an access token; logout
// takes the refresh token in the body so an expired session can still be
// closed.  /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterAdmin registers the back-office reservation endpoints.  Every route
// requires a valid access token carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminReservationHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	// List a day's reservations: /v1/admin/reservations?date=YYYY-MM-DD
	g.GET("/reservations", h.List)
	g.GET("/reservations/:id", h.Get)
	g.PUT("/reservations/:id", h.Update)
	g.POST("/reservations/:id/cancel", h.Cancel)
	g.DELETE("/reservations/:id", h.Delete)
}

func optional(m echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if m == nil {
		return nil
	}
	return []echo.MiddlewareFunc{m}
}
