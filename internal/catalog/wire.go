package catalog

import "github.com/iliyamo/bus-seat-reservation/internal/model"

// RoutesRequest is the body of POST /api/routes.
type RoutesRequest struct {
	FromCity string `json:"from_city"`
	ToCity   string `json:"to_city"`
}

type RoutesResponse struct {
	Routes []model.Route `json:"routes"`
}

type DatesResponse struct {
	RouteID string   `json:"route_id"`
	Dates   []string `json:"dates"`
}

// TripsRequest is the body of POST /api/trips.  An empty Date lists every
// trip of the route.
type TripsRequest struct {
	RouteID string `json:"route_id" validate:"required"`
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type TripsResponse struct {
	Trips []model.Trip `json:"trips"`
}

type TripInfoResponse struct {
	Trip  model.Trip  `json:"trip"`
	Route model.Route `json:"route"`
}
