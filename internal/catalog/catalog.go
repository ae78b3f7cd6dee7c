// Package catalog serves the read-only route and trip reference data.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrTripNotFound  = errors.New("trip not found")
)

// Data is the on-disk layout of the catalog file.
type Data struct {
	Routes []model.Route `yaml:"routes"`
	Trips  []model.Trip  `yaml:"trips"`
}

// Service answers catalog queries from an immutable Data set.  It is safe
// for concurrent use.
type Service struct {
	routes    []model.Route
	trips     []model.Trip
	routeByID map[string]model.Route
	tripByID  map[string]model.Trip
}

// Load reads a YAML catalog file.
func Load(path string) (*Service, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML catalog.
func Parse(r io.Reader) (*Service, error) {
	var d Data
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(d)
}

// New indexes d.  Duplicate ids and trips on unknown routes are rejected.
func New(d Data) (*Service, error) {
	s := &Service{
		routeByID: make(map[string]model.Route, len(d.Routes)),
		tripByID:  make(map[string]model.Trip, len(d.Trips)),
	}
	for _, r := range d.Routes {
		if r.ID == "" {
			return nil, errors.New("catalog: route without id")
		}
		if _, dup := s.routeByID[r.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate route %s", r.ID)
		}
		s.routeByID[r.ID] = r
		s.routes = append(s.routes, r)
	}
	for _, t := range d.Trips {
		if t.ID == "" {
			return nil, errors.New("catalog: trip without id")
		}
		if _, dup := s.tripByID[t.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate trip %s", t.ID)
		}
		if _, ok := s.routeByID[t.RouteID]; !ok {
			return nil, fmt.Errorf("catalog: trip %s references unknown route %s", t.ID, t.RouteID)
		}
		t.TotalSeats = t.Seats()
		s.tripByID[t.ID] = t
		s.trips = append(s.trips, t)
	}
	return s, nil
}

// ListCities returns the sorted distinct departure and arrival cities.
func (s *Service) ListCities(context.Context) (model.Cities, error) {
	from := map[string]struct{}{}
	to := map[string]struct{}{}
	for _, r := range s.routes {
		from[r.FromCity] = struct{}{}
		to[r.ToCity] = struct{}{}
	}
	return model.Cities{FromCities: sortedKeys(from), ToCities: sortedKeys(to)}, nil
}

// SearchRoutes returns routes matching from and to, compared without
// regard to case.  An empty argument matches every city.
func (s *Service) SearchRoutes(_ context.Context, from, to string) ([]model.Route, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	out := []model.Route{}
	for _, r := range s.routes {
		if from != "" && !strings.EqualFold(r.FromCity, from) {
			continue
		}
		if to != "" && !strings.EqualFold(r.ToCity, to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Route returns a route by id.
func (s *Service) Route(id string) (model.Route, bool) {
	r, ok := s.routeByID[id]
	return r, ok
}

// ListDates returns the sorted distinct dates with trips on routeID.
func (s *Service) ListDates(_ context.Context, routeID string) ([]string, error) {
	if _, ok := s.routeByID[routeID]; !ok {
		return nil, ErrRouteNotFound
	}
	seen := map[string]struct{}{}
	for _, t := range s.trips {
		if t.RouteID == routeID {
			seen[t.Date] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

// SearchTrips returns the trips of routeID on date ordered by departure
// time.  AvailableSeats is left for the caller to fill.
func (s *Service) SearchTrips(_ context.Context, routeID, date string) ([]model.Trip, error) {
	if _, ok := s.routeByID[routeID]; !ok {
		return nil, ErrRouteNotFound
	}
	out := []model.Trip{}
	for _, t := range s.trips {
		if t.RouteID == routeID && (date == "" || t.Date == date) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].DepartureTime < out[j].DepartureTime
	})
	return out, nil
}

// GetTrip returns a trip by id.
func (s *Service) GetTrip(_ context.Context, tripID string) (model.Trip, error) {
	t, ok := s.tripByID[tripID]
	if !ok {
		return model.Trip{}, ErrTripNotFound
	}
	return t, nil
}

// Lookup adapts the catalog to seatstore.Lookup.
func (s *Service) Lookup(tripID string) (model.Trip, bool) {
	t, ok := s.tripByID[tripID]
	return t, ok
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
