package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/event"
)

const (
	changeStreamKey       = "pncp:tender_changed"
	changeStreamMaxLen    = 10_000
	consumeBlockingWindow = 5 * time.Second
)

// MessageTransport carries TenderChanged events from the reconciler to the
// notifier. The Redis-backed implementation allows the notifier to run as
// a separate process; the in-memory one serves dev and tests.
type MessageTransport interface {
	Publish(ctx context.Context, ev event.TenderChanged) error
	// Consume blocks until an event is available or ctx is done.
	// Consume is not safe for concurrent callers; run a single consumer
	// and fan events out from there.
	Consume(ctx context.Context) (event.TenderChanged, error)
	Close() error
}

// Stream is the Redis Streams implementation of MessageTransport.
type Stream struct {
	client *redis.Client
	lastID string // advanced only by the single Consume caller
}

func NewStream(url string) (*Stream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Stream{client: client, lastID: "$"}, nil
}

func (s *Stream) Publish(ctx context.Context, ev event.TenderChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal tender changed event: %w", err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: changeStreamKey,
		MaxLen: changeStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd tender changed event: %w", err)
	}
	return nil
}

func (s *Stream) Consume(ctx context.Context) (event.TenderChanged, error) {
	for {
		if err := ctx.Err(); err != nil {
			return event.TenderChanged{}, err
		}

		streams, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{changeStreamKey, s.lastID},
			Count:   1,
			Block:   consumeBlockingWindow,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return event.TenderChanged{}, ctx.Err()
			}
			return event.TenderChanged{}, fmt.Errorf("xread tender changed: %w", err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				s.lastID = msg.ID
				raw, ok := msg.Values["payload"].(string)
				if !ok {
					continue
				}
				var ev event.TenderChanged
				if err := json.Unmarshal([]byte(raw), &ev); err != nil {
					return event.TenderChanged{}, fmt.Errorf("unmarshal tender changed event: %w", err)
				}
				return ev, nil
			}
		}
	}
}

func (s *Stream) Close() error {
	return s.client.Close()
}

// InMemoryStream is a channel-backed MessageTransport for single-process
// deployments and tests.
type InMemoryStream struct {
	ch chan event.TenderChanged
}

func NewInMemoryStream() *InMemoryStream {
	return &InMemoryStream{ch: make(chan event.TenderChanged, 256)}
}

func (s *InMemoryStream) Publish(ctx context.Context, ev event.TenderChanged) error {
	select {
	case s.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *InMemoryStream) Consume(ctx context.Context) (event.TenderChanged, error) {
	select {
	case ev := <-s.ch:
		return ev, nil
	case <-ctx.Done():
		return event.TenderChanged{}, ctx.Err()
	}
}

func (s *InMemoryStream) Close() error {
	return nil
}
