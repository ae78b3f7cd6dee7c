// Package broadcast periodically publishes the seat maps of watched trips
// and delivers them to client sessions.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// DefaultMaxBytes bounds one encoded update.
const DefaultMaxBytes = 512 << 10

// ErrTooLarge is returned when even a single-trip update exceeds the size
// limit.
var ErrTooLarge = errors.New("broadcast: update too large")

// Source produces the update for at most limit watched trips.
type Source interface {
	Update(limit int) (model.SeatUpdate, bool)
}

// Publisher delivers an encoded update to subscribers.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Observer is notified of every publish attempt.
type Observer interface {
	BroadcastPublished(trips int)
	BroadcastFailed()
}

type nopObserver struct{}

func (nopObserver) BroadcastPublished(int) {}
func (nopObserver) BroadcastFailed()       {}

// Broadcaster publishes updates from a Source on a fixed interval.
type Broadcaster struct {
	src      Source
	pub      Publisher
	interval time.Duration
	maxTrips int
	maxBytes int
	log      *zap.Logger
	obs      Observer
}

type Option func(*Broadcaster)

func WithInterval(d time.Duration) Option { return func(b *Broadcaster) { b.interval = d } }

func WithMaxTrips(n int) Option { return func(b *Broadcaster) { b.maxTrips = n } }

func WithMaxBytes(n int) Option { return func(b *Broadcaster) { b.maxBytes = n } }

func WithLogger(l *zap.Logger) Option { return func(b *Broadcaster) { b.log = l } }

func WithObserver(o Observer) Option { return func(b *Broadcaster) { b.obs = o } }

// New returns a Broadcaster with a two second interval and at most fifty
// trips per update.
func New(src Source, pub Publisher, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		src:      src,
		pub:      pub,
		interval: 2 * time.Second,
		maxTrips: 50,
		maxBytes: DefaultMaxBytes,
		log:      zap.NewNop(),
		obs:      nopObserver{},
	}
	for _, o := range opts {
		o(b)
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	if b.obs == nil {
		b.obs = nopObserver{}
	}
	return b
}

// Run publishes until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.Tick(ctx); err != nil && ctx.Err() == nil {
				b.log.Warn("broadcast failed", zap.Error(err))
			}
		}
	}
}

// Tick publishes one update and returns the number of trips it carried.
// Nothing is published when no trip is watched.  An update over the size
// limit is rebuilt with half as many trips.
func (b *Broadcaster) Tick(ctx context.Context) (int, error) {
	limit := b.maxTrips
	for {
		u, ok := b.src.Update(limit)
		if !ok {
			return 0, nil
		}
		payload, err := json.Marshal(u)
		if err != nil {
			return 0, fmt.Errorf("encode update: %w", err)
		}
		if b.maxBytes > 0 && len(payload) > b.maxBytes {
			if len(u.SeatsData) <= 1 {
				b.obs.BroadcastFailed()
				return 0, ErrTooLarge
			}
			limit = len(u.SeatsData) / 2
			continue
		}
		if err := b.pub.Publish(ctx, payload); err != nil {
			b.obs.BroadcastFailed()
			return 0, err
		}
		b.obs.BroadcastPublished(len(u.SeatsData))
		return len(u.SeatsData), nil
	}
}

// Decode parses a published payload.  Messages of another type are
// rejected.
func Decode(payload []byte) (model.SeatUpdate, error) {
	var u model.SeatUpdate
	if err := json.Unmarshal(payload, &u); err != nil {
		return model.SeatUpdate{}, fmt.Errorf("decode update: %w", err)
	}
	if u.Type != model.SeatUpdateType {
		return model.SeatUpdate{}, fmt.Errorf("decode update: unexpected type %q", u.Type)
	}
	return u, nil
}
