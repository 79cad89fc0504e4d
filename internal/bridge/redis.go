// Package bridge implements the cross-instance fan-out bus. Each process
// publishes membership events on per-session topics and re-emits events it
// receives from other instances to its own connections.
package bridge

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrBacklog is returned when the publish queue is full. The event is
// dropped; membership convergence is eventually consistent anyway.
var ErrBacklog = errors.New("bridge publish backlog full")

const publishQueueSize = 256

type pubItem struct {
	topic   string
	payload []byte
}

// RedisBus is a core.Bus over redis pub/sub. Publishing is asynchronous
// through a bounded queue so a slow redis never stalls the connection
// handling path.
type RedisBus struct {
	client *redis.Client
	ctx    context.Context
	cancel context.CancelFunc
	queue  chan pubItem
}

func NewRedisBus(parent context.Context, url string) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, pingCancel := context.WithTimeout(parent, 3*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	b := &RedisBus{
		client: client,
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan pubItem, publishQueueSize),
	}
	go b.publishLoop()
	return b, nil
}

func (b *RedisBus) Publish(_ context.Context, topic string, payload []byte) error {
	select {
	case b.queue <- pubItem{topic: topic, payload: payload}:
		return nil
	default:
		log.Warn().Str("module", "bridge.redis").Str("topic", topic).Msg("publish queue full, event dropped")
		return ErrBacklog
	}
}

func (b *RedisBus) publishLoop() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case item := <-b.queue:
			if err := b.client.Publish(b.ctx, item.topic, item.payload).Err(); err != nil {
				log.Warn().Str("module", "bridge.redis").Str("topic", item.topic).Err(err).Msg("publish failed")
			}
		}
	}
}

// Subscribe consumes the pattern via PSUBSCRIBE and invokes the handler
// for every message until the context is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, pattern string, handler func(topic string, payload []byte)) error {
	pubsub := b.client.PSubscribe(ctx, pattern)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Channel, []byte(msg.Payload))
			}
		}
	}()
	log.Info().Str("module", "bridge.redis").Str("pattern", pattern).Msg("subscribed")
	return nil
}

func (b *RedisBus) Close() error {
	b.cancel()
	return b.client.Close()
}
