// Package queue carries booking events over RabbitMQ.
package queue

// BookingConfirmedEvent is published after a booking commits.  It holds
// enough to log or notify downstream without reading the database.
type BookingConfirmedEvent struct {
	BookingID     string   `json:"booking_id"`
	TripID        string   `json:"trip_id"`
	RouteID       string   `json:"route_id"`
	FromCity      string   `json:"from_city"`
	ToCity        string   `json:"to_city"`
	Date          string   `json:"date"`
	DepartureTime string   `json:"departure_time"`
	BusCode       string   `json:"bus_code"`
	Seats         []string `json:"seats"`
	CustomerName  string   `json:"customer_name"`
	CustomerPhone string   `json:"customer_phone"`
	TotalPrice    int64    `json:"total_price"`
	ConfirmedAt   string   `json:"confirmed_at"`
}
