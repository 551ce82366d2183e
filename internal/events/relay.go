package events

import (
	"context"
	"log"
	"time"

	"github.com/senyabanana/engagement-service/internal/repository"
)

// Relay переносит события из outbox к подписчикам. Доставка at-least-once:
// событие помечается отправленным только после успешной публикации.
type Relay struct {
	Store     repository.Store
	Publisher Publisher
	Logger    *log.Logger
	Interval  time.Duration
	BatchSize int
	Now       func() time.Time
}

// NewRelay создает новый экземпляр Relay.
func NewRelay(store repository.Store, publisher Publisher, logger *log.Logger, interval time.Duration, batchSize int) *Relay {
	return &Relay{
		Store:     store,
		Publisher: publisher,
		Logger:    logger,
		Interval:  interval,
		BatchSize: batchSize,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run опрашивает outbox до отмены контекста.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.Logger.Printf("WARN: event relay: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce публикует одну пачку событий и возвращает число отправленных.
// Публикация останавливается на первой ошибке, чтобы сохранить порядок.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	batch, err := r.Store.ListUnpublishedEvents(ctx, r.BatchSize)
	if err != nil {
		return 0, err
	}
	published := make([]string, 0, len(batch))
	var publishErr error
	for _, evt := range batch {
		if publishErr = r.Publisher.Publish(ctx, evt); publishErr != nil {
			break
		}
		published = append(published, evt.ID)
	}
	if err := r.Store.MarkEventsPublished(ctx, published, r.Now()); err != nil {
		return 0, err
	}
	return len(published), publishErr
}
