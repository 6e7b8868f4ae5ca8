package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linesmerrill/primecare-chat/models"
)

// redisChannel is the pub/sub channel shared by every relay instance
const redisChannel = "primecare:chat:rooms"

// RoomEvent is one envelope addressed to every client in any of Rooms. A client in several
// of the rooms receives it once. Except names a connection that must not receive it, e.g.
// the typist of a typing event.
type RoomEvent struct {
	Rooms    []string        `json:"rooms"`
	Except   string          `json:"except,omitempty"`
	Envelope models.Envelope `json:"envelope"`
}

// Broadcaster fans room events out to the hubs that hold the room's clients
type Broadcaster interface {
	Publish(ctx context.Context, ev RoomEvent) error
	// Run delivers published events until ctx is done
	Run(ctx context.Context, deliver func(RoomEvent)) error
}

// LocalBroadcaster delivers events to the hub of this process only
type LocalBroadcaster struct {
	events chan RoomEvent
}

// NewLocalBroadcaster creates an in-process broadcaster with the given queue size
func NewLocalBroadcaster(size int) *LocalBroadcaster {
	if size <= 0 {
		size = 256
	}
	return &LocalBroadcaster{events: make(chan RoomEvent, size)}
}

// Publish queues ev, blocking while the queue is full
func (b *LocalBroadcaster) Publish(ctx context.Context, ev RoomEvent) error {
	select {
	case b.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *LocalBroadcaster) Run(ctx context.Context, deliver func(RoomEvent)) error {
	for {
		select {
		case ev := <-b.events:
			deliver(ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RedisBroadcaster relays events through redis pub/sub so rooms span relay instances
type RedisBroadcaster struct {
	client *redis.Client
}

// NewRedisBroadcaster connects to redisURL and checks the connection
func NewRedisBroadcaster(ctx context.Context, redisURL string) (*RedisBroadcaster, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBroadcaster{client: client}, nil
}

// Close closes the redis connection
func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}

func (b *RedisBroadcaster) Publish(ctx context.Context, ev RoomEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, redisChannel, payload).Err()
}

func (b *RedisBroadcaster) Run(ctx context.Context, deliver func(RoomEvent)) error {
	sub := b.client.Subscribe(ctx, redisChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", redisChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev RoomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				zap.S().Errorw("dropping malformed room event", "error", err)
				continue
			}
			deliver(ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
