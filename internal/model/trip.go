package model

// Route connects two cities.  BasePrice is the fare per seat in the
// smallest currency unit.
//
// Fields:
//
//	ID         – route identifier (e.g. "R001").
//	FromCity   – departure city.
//	ToCity     – arrival city.
//	DistanceKm – informational distance.
//	BasePrice  – price per seat.
type Route struct {
	ID         string `json:"id" yaml:"id"`
	FromCity   string `json:"from_city" yaml:"from_city"`
	ToCity     string `json:"to_city" yaml:"to_city"`
	DistanceKm int    `json:"distance_km" yaml:"distance_km"`
	BasePrice  int64  `json:"base_price" yaml:"base_price"`
}

// Trip is a scheduled departure on a route.  AvailableSeats is filled by
// the server when listing trips and is zero in the catalog file.
//
// Fields:
//
//	ID             – trip identifier.
//	RouteID        – route served by this trip.
//	Date           – service date, YYYY-MM-DD.
//	DepartureTime  – local departure time, HH:MM.
//	BusCode        – vehicle plate or code.
//	BusType        – vehicle description (sleeper, seater, ...).
//	TotalSeats     – seat count; zero means DefaultTotalSeats.
//	AvailableSeats – live count of available seats.
type Trip struct {
	ID             string `json:"id" yaml:"id"`
	RouteID        string `json:"route_id" yaml:"route_id"`
	Date           string `json:"date" yaml:"date"`
	DepartureTime  string `json:"departure_time" yaml:"departure_time"`
	BusCode        string `json:"bus_code" yaml:"bus_code"`
	BusType        string `json:"bus_type" yaml:"bus_type"`
	TotalSeats     int    `json:"total_seats" yaml:"total_seats"`
	AvailableSeats int    `json:"available_seats" yaml:"-"`
}

// Layout returns the seat layout of the trip.
func (t Trip) Layout() Layout { return StandardLayout(t.TotalSeats) }

// Seats returns the trip's total seat count with the default applied.
func (t Trip) Seats() int {
	if t.TotalSeats <= 0 {
		return DefaultTotalSeats
	}
	return t.TotalSeats
}

// Cities lists the distinct departure and arrival cities of all routes.
type Cities struct {
	FromCities []string `json:"from_cities"`
	ToCities   []string `json:"to_cities"`
}
