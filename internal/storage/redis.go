package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	pkgredis "github.com/angelmondragon/intellisales-pos/pkg/redis"
)

// Redis keeps entries as plain keys and announces every write on a shared
// pub/sub channel, so sessions on other hosts see them too.
type Redis struct {
	client  *pkgredis.Client
	channel string
}

func NewRedis(client *pkgredis.Client, namespace string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &Redis{client: client, channel: client.ChannelKey(namespace, "changes")}, nil
}

// Channel returns the pub/sub channel carrying change events.
func (r *Redis) Channel() string {
	return r.channel
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok, err := r.client.GetBytes(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, ok, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if err := r.client.Set(ctx, key, value, 0); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return r.publish(ctx, Event{Key: key, Value: value})
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return r.publish(ctx, Event{Key: key})
}

func (r *Redis) publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Watch subscribes to the change channel. Payloads that do not decode are
// skipped.
func (r *Redis) Watch(ctx context.Context, fn func(Event)) (func(), error) {
	sub, err := r.client.Subscribe(ctx, r.channel)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}

	messages := sub.Channel()
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				stop()
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				fn(event)
			}
		}
	}()

	return stop, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
