package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/catalog"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
	"github.com/iliyamo/bus-seat-reservation/internal/seatstore"
	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

// BookingSaver persists a committed booking.  It is called with the seat
// store locked, so a failure leaves every seat as it was.
type BookingSaver interface {
	Save(ctx context.Context, b model.Booking, nationalIDHash string) error
}

// BookingReader loads a stored booking.
type BookingReader interface {
	GetByID(ctx context.Context, id string) (model.Booking, error)
}

// EventPublisher announces confirmed bookings.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// SeatHandler serves seat maps and the select, unselect and book
// operations of an authenticated session.  Bookings, Reader and Events
// are optional.
type SeatHandler struct {
	Store      *seatstore.Store
	Catalog    *catalog.Service
	Bookings   BookingSaver
	Reader     BookingReader
	Events     EventPublisher
	BcryptCost int
	NewID      func() string
	Log        *zap.Logger
}

func NewSeatHandler(store *seatstore.Store, cat *catalog.Service, bcryptCost int, log *zap.Logger) *SeatHandler {
	if store == nil || cat == nil {
		panic("nil dependency passed to NewSeatHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SeatHandler{Store: store, Catalog: cat, BcryptCost: bcryptCost, NewID: utils.NewBookingID, Log: log}
}

// Seats handles GET /api/seats/:trip_id.  Available seats are omitted from
// the map.
func (h *SeatHandler) Seats(c echo.Context) error {
	snap, err := h.Store.Snapshot(c.Param("trip_id"))
	if err != nil {
		reason := reasonFor(err)
		return fail(c, reason, messageFor(reason))
	}
	return c.JSON(http.StatusOK, snap)
}

// Select handles POST /api/select-seat.
func (h *SeatHandler) Select(c echo.Context) error {
	return h.mutateSeat(c, h.Store.Select, "seat held")
}

// Unselect handles POST /api/unselect-seat.
func (h *SeatHandler) Unselect(c echo.Context) error {
	return h.mutateSeat(c, h.Store.Unselect, "seat released")
}

func (h *SeatHandler) mutateSeat(c echo.Context, op func(string, model.SeatID, string) (int64, error), ok string) error {
	var req reservation.SeatRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, reservation.ReasonValidationFailed, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, reservation.ReasonValidationFailed, err.Error())
	}
	stamp, err := op(req.TripID, req.SeatID, middleware.SessionID(c))
	if err != nil {
		reason := reasonFor(err)
		if reason == reservation.ReasonInternal {
			h.Log.Error("seat mutation", zap.String("trip_id", req.TripID), zap.String("seat_id", string(req.SeatID)), zap.Error(err))
		}
		return failAt(c, reason, messageFor(reason), h.Store.Stamp())
	}
	return c.JSON(http.StatusOK, reservation.Response{Success: true, Message: ok, Timestamp: stamp})
}

// Book handles POST /api/book.  Every seat must be held by the caller's
// session.  Repeating a successful request returns the same booking with
// action "existing".
func (h *SeatHandler) Book(c echo.Context) error {
	var req reservation.BookRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, reservation.ReasonValidationFailed, "invalid request body")
	}
	info := req.CustomerInfo.Normalize()
	if err := info.Validate(); err != nil {
		return fail(c, reservation.ReasonValidationFailed, err.Error())
	}
	req.CustomerInfo = info
	if err := c.Validate(&req); err != nil {
		return fail(c, reservation.ReasonValidationFailed, err.Error())
	}

	ctx := c.Request().Context()
	trip, err := h.Catalog.GetTrip(ctx, req.TripID)
	if err != nil {
		return fail(c, reservation.ReasonInvalidTrip, messageFor(reservation.ReasonInvalidTrip))
	}
	route, ok := h.Catalog.Route(trip.RouteID)
	if !ok {
		return fail(c, reservation.ReasonInvalidRoute, messageFor(reservation.ReasonInvalidRoute))
	}
	seats := uniqueSeats(req.SeatIDs)
	total := route.BasePrice * int64(len(seats))
	session := middleware.SessionID(c)

	// bcrypt is slow; hash before the store lock is taken.
	var idHash string
	if h.Bookings != nil {
		idHash, err = utils.HashNationalID(info.NationalID, h.BcryptCost)
		if err != nil {
			h.Log.Error("hash national id", zap.Error(err))
			return fail(c, reservation.ReasonInternal, "could not process customer information")
		}
	}

	createdAt := time.Now().UTC()
	commit := func(bookingID string) error {
		if h.Bookings == nil {
			return nil
		}
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.Bookings.Save(saveCtx, model.Booking{
			ID:         bookingID,
			TripID:     trip.ID,
			SeatIDs:    seats,
			Customer:   info,
			TotalPrice: total,
			SessionID:  session,
			CreatedAt:  createdAt,
		}, idHash)
	}

	res, err := h.Store.Book(trip.ID, seats, session, h.NewID, commit)
	if err != nil {
		reason := reasonFor(err)
		if reason == reservation.ReasonInternal {
			h.Log.Error("book seats", zap.String("trip_id", trip.ID), zap.Error(err))
			return failAt(c, reason, "could not save booking", h.Store.Stamp())
		}
		if errors.Is(err, seatstore.ErrSeatNoLongerHeld) {
			h.Log.Info("book rejected", zap.String("trip_id", trip.ID), zap.String("session_id", session))
		}
		return failAt(c, reason, messageFor(reason), h.Store.Stamp())
	}

	action := "created"
	if res.Existing {
		action = "existing"
	} else {
		h.Log.Info("booking confirmed",
			zap.String("booking_id", res.BookingID),
			zap.String("trip_id", trip.ID),
			zap.Int("seats", len(seats)),
			zap.Int64("total_price", total),
		)
		h.publish(queue.BookingConfirmedEvent{
			BookingID:     res.BookingID,
			TripID:        trip.ID,
			RouteID:       route.ID,
			FromCity:      route.FromCity,
			ToCity:        route.ToCity,
			Date:          trip.Date,
			DepartureTime: trip.DepartureTime,
			BusCode:       trip.BusCode,
			Seats:         seatStrings(seats),
			CustomerName:  info.Name,
			CustomerPhone: info.Phone,
			TotalPrice:    total,
			ConfirmedAt:   createdAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, reservation.Response{
		Success:    true,
		BookingID:  res.BookingID,
		TotalPrice: total,
		Action:     action,
		Message:    "booking confirmed",
		Timestamp:  res.Stamp,
	})
}

// publish sends ev in the background; the booking is already committed.
func (h *SeatHandler) publish(ev queue.BookingConfirmedEvent) {
	if h.Events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Events.PublishBookingConfirmed(ctx, ev); err != nil {
			h.Log.Warn("publish booking.confirmed", zap.String("booking_id", ev.BookingID), zap.Error(err))
		}
	}()
}

func uniqueSeats(ids []model.SeatID) []model.SeatID {
	seen := make(map[model.SeatID]struct{}, len(ids))
	out := make([]model.SeatID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func seatStrings(ids []model.SeatID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
