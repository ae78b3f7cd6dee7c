package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/catalog"
	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
	"github.com/iliyamo/bus-seat-reservation/internal/seatstore"
)

// CatalogHandler serves routes and trips to unauthenticated clients.  Seat
// counts come from the live store.
type CatalogHandler struct {
	Catalog *catalog.Service
	Seats   *seatstore.Store
}

func NewCatalogHandler(cat *catalog.Service, seats *seatstore.Store) *CatalogHandler {
	if cat == nil || seats == nil {
		panic("nil dependency passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: cat, Seats: seats}
}

// Cities handles GET /api/cities.
func (h *CatalogHandler) Cities(c echo.Context) error {
	cities, err := h.Catalog.ListCities(c.Request().Context())
	if err != nil {
		return fail(c, reservation.ReasonInternal, "could not list cities")
	}
	return c.JSON(http.StatusOK, cities)
}

// Routes handles POST /api/routes.  Empty filters match every city.
func (h *CatalogHandler) Routes(c echo.Context) error {
	var req catalog.RoutesRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, reservation.ReasonValidationFailed, "invalid request body")
	}
	routes, err := h.Catalog.SearchRoutes(c.Request().Context(), strings.TrimSpace(req.FromCity), strings.TrimSpace(req.ToCity))
	if err != nil {
		return fail(c, reservation.ReasonInternal, "could not search routes")
	}
	return c.JSON(http.StatusOK, catalog.RoutesResponse{Routes: routes})
}

// Dates handles GET /api/dates/:route_id.
func (h *CatalogHandler) Dates(c echo.Context) error {
	routeID := c.Param("route_id")
	dates, err := h.Catalog.ListDates(c.Request().Context(), routeID)
	if err != nil {
		reason := reasonFor(err)
		return fail(c, reason, messageFor(reason))
	}
	return c.JSON(http.StatusOK, catalog.DatesResponse{RouteID: routeID, Dates: dates})
}

// Trips handles POST /api/trips.  Each trip carries its current number of
// selectable seats.
func (h *CatalogHandler) Trips(c echo.Context) error {
	var req catalog.TripsRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, reservation.ReasonValidationFailed, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, reservation.ReasonValidationFailed, err.Error())
	}
	trips, err := h.Catalog.SearchTrips(c.Request().Context(), req.RouteID, req.Date)
	if err != nil {
		reason := reasonFor(err)
		return fail(c, reason, messageFor(reason))
	}
	for i := range trips {
		n, err := h.Seats.AvailableCount(trips[i].ID)
		if err != nil {
			n = trips[i].Seats()
		}
		trips[i].AvailableSeats = n
	}
	return c.JSON(http.StatusOK, catalog.TripsResponse{Trips: trips})
}

// TripInfo handles GET /api/trip-info/:trip_id.  The answer is static
// catalog data and may be cached.
func (h *CatalogHandler) TripInfo(c echo.Context) error {
	trip, err := h.Catalog.GetTrip(c.Request().Context(), c.Param("trip_id"))
	if err != nil {
		reason := reasonFor(err)
		return fail(c, reason, messageFor(reason))
	}
	route, ok := h.Catalog.Route(trip.RouteID)
	if !ok {
		return fail(c, reservation.ReasonInvalidRoute, messageFor(reservation.ReasonInvalidRoute))
	}
	return c.JSON(http.StatusOK, catalog.TripInfoResponse{Trip: trip, Route: route})
}
