package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChangeFeed announces committed writes to a cart collection. Stores that
// cannot push snapshots themselves re-read the collection on every signal.
type ChangeFeed interface {
	Publish(ctx context.Context, uid string) error
	Listen(ctx context.Context, uid string) (Listener, error)
}

type Listener interface {
	Changes() <-chan struct{}
	Close() error
}

// RedisFeed is a ChangeFeed over Redis pub/sub, one channel per identity.
type RedisFeed struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisFeed(client *redis.Client, logger *slog.Logger) *RedisFeed {
	return &RedisFeed{client: client, logger: logger}
}

func (f *RedisFeed) Publish(ctx context.Context, uid string) error {
	stamp := strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := f.client.Publish(ctx, feedChannel(uid), stamp).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Listen returns once the Redis subscription is confirmed, so no publish
// issued after Listen returns can be missed.
func (f *RedisFeed) Listen(ctx context.Context, uid string) (Listener, error) {
	pubsub := f.client.Subscribe(ctx, feedChannel(uid))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	l := &redisListener{
		pubsub: pubsub,
		out:    make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.pump(pubsub.Channel())
	return l, nil
}

type redisListener struct {
	pubsub *redis.PubSub
	out    chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (l *redisListener) pump(in <-chan *redis.Message) {
	defer close(l.out)
	for {
		select {
		case <-l.done:
			return
		case _, ok := <-in:
			if !ok {
				return
			}
			// coalesce: one pending signal is enough to trigger a re-read
			select {
			case l.out <- struct{}{}:
			default:
			}
		}
	}
}

func (l *redisListener) Changes() <-chan struct{} {
	return l.out
}

func (l *redisListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.pubsub.Close()
	})
	return err
}

func feedChannel(uid string) string {
	return fmt.Sprintf("cart-changes:%s", uid)
}
