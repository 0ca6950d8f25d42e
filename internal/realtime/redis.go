package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisBroker fans notifications out over Redis pub/sub so every API
// instance sees changes made through any other.
type RedisBroker struct {
	redisdb  *redis.Client
	embedded *miniredis.Miniredis
}

func NewRedisBroker(cfg RedisConfig) *RedisBroker {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &RedisBroker{redisdb: redisdb}
}

// NewEmbeddedRedisBroker runs an in-process Redis for single-binary setups.
// The server stops when the broker is closed.
func NewEmbeddedRedisBroker() (*RedisBroker, error) {
	mr, err := miniredis.Run()
	if err != nil {
		return nil, err
	}

	b := NewRedisBroker(RedisConfig{Addr: mr.Addr()})
	b.embedded = mr
	return b, nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.redisdb.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	err := b.redisdb.Close()
	if b.embedded != nil {
		b.embedded.Close()
	}
	return err
}

func (b *RedisBroker) Notify(ctx context.Context, topic string) error {
	return b.redisdb.Publish(ctx, topic, "changed").Err()
}

func (b *RedisBroker) Listen(ctx context.Context, topic string) (Listener, error) {
	ps := b.redisdb.Subscribe(ctx, topic)

	// wait for the subscription confirmation so no publish after Listen returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	l := &redisListener{ps: ps, sig: newSignal()}
	l.wg.Add(1)
	go l.pump()
	return l, nil
}

type redisListener struct {
	ps   *redis.PubSub
	sig  signal
	once sync.Once
	wg   sync.WaitGroup
}

func (l *redisListener) pump() {
	defer l.wg.Done()
	for range l.ps.Channel() {
		l.sig.fire()
	}
}

func (l *redisListener) C() <-chan struct{} { return l.sig.ch }

func (l *redisListener) Close() error {
	var err error
	l.once.Do(func() {
		err = l.ps.Close()
		l.wg.Wait()
	})
	return err
}
