// Package router registers the HTTP routes of the seat server.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
)

// RegisterRoutes registers routes that do not require a session: the
// health check and, when handler is non-nil, the metrics endpoint.
func RegisterRoutes(e *echo.Echo, metrics echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if metrics != nil {
		e.GET("/metrics", metrics)
	}
}

// RegisterSession exposes POST /api/session, which issues the token every
// seat route requires.
func RegisterSession(e *echo.Echo, h *handler.SessionHandler) {
	e.POST("/api/session", h.Start)
}

// RegisterCatalog registers the public catalog routes.  cache wraps only
// the GET routes whose answer is static catalog data; trip listings carry
// live seat counts and are never cached.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, cache echo.MiddlewareFunc) {
	if cache == nil {
		cache = noop
	}
	g := e.Group("/api")
	g.GET("/cities", h.Cities, cache)
	g.GET("/dates/:route_id", h.Dates, cache)
	g.GET("/trip-info/:trip_id", h.TripInfo, cache)
	g.POST("/routes", h.Routes)
	g.POST("/trips", h.Trips)
}

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }
