package broadcast

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// RedisPublisher publishes updates on a Redis pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, payload []byte) error {
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

// RedisSubscriber forwards updates from a Redis channel to a session.
type RedisSubscriber struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisSubscriber(rdb *redis.Client, channel string, log *zap.Logger) *RedisSubscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisSubscriber{rdb: rdb, channel: channel, log: log}
}

// Run subscribes and sends every decodable update to out until ctx is
// done.  Undecodable payloads are dropped.
func (s *RedisSubscriber) Run(ctx context.Context, out chan<- model.SeatUpdate) error {
	sub := s.rdb.Subscribe(ctx, s.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	return forward(ctx, sub.Channel(), out, s.log)
}

func forward(ctx context.Context, in <-chan *redis.Message, out chan<- model.SeatUpdate, log *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			u, err := Decode([]byte(msg.Payload))
			if err != nil {
				log.Debug("drop broadcast", zap.Error(err))
				continue
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
