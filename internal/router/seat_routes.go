package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
)

// RegisterSeats registers the session-scoped seat and upload routes.  Every
// route requires a valid session token and goes through the rate limiter,
// which runs after authentication so it can key on the session.
func RegisterSeats(e *echo.Echo, s *handler.SeatHandler, u *handler.UploadHandler, secret string, limiter echo.MiddlewareFunc) {
	if limiter == nil {
		limiter = noop
	}
	g := e.Group("/api", middleware.SessionAuth(secret), limiter)
	g.GET("/seats/:trip_id", s.Seats)
	g.POST("/select-seat", s.Select)
	g.POST("/unselect-seat", s.Unselect)
	g.POST("/book", s.Book)
	g.GET("/bookings/:booking_id", s.Booking)
	if u != nil {
		g.POST("/upload", u.Upload)
	}
}
