package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/senyabanana/engagement-service/internal/models"

	"github.com/redis/go-redis/v9"
)

// Publisher доставляет доменные события подписчикам.
type Publisher interface {
	Publish(ctx context.Context, evt models.DomainEvent) error
	Close() error
}

// RedisPublisher публикует события в Redis Stream командой XADD.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisPublisher подключается к Redis по URL и проверяет соединение.
func NewRedisPublisher(redisURL, stream string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisPublisher{client: client, stream: stream}, nil
}

// Publish добавляет событие в поток. event_id позволяет подписчикам отбрасывать повторы.
func (p *RedisPublisher) Publish(ctx context.Context, evt models.DomainEvent) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":   evt.ID,
			"type":       string(evt.Type),
			"request_id": evt.RequestID,
			"entity_id":  evt.EntityID,
			"actor_id":   evt.ActorID,
			"payload":    string(payload),
			"created_at": evt.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// LogPublisher пишет события в лог. Используется, когда Redis не настроен.
type LogPublisher struct {
	Logger *log.Logger
}

func (p LogPublisher) Publish(_ context.Context, evt models.DomainEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	p.Logger.Printf("event %s", body)
	return nil
}

func (p LogPublisher) Close() error { return nil }
