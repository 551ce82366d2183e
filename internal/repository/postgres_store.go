package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/senyabanana/engagement-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresStore - реализация Store для PostgreSQL.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore создаёт новый экземпляр PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db}
}

// WithinTx выполняет fn в транзакции READ COMMITTED. Строки заявок блокируются явно через LockRequest.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListUnpublishedEvents возвращает неотправленные события в порядке записи.
func (s *PostgresStore) ListUnpublishedEvents(ctx context.Context, limit int) ([]models.DomainEvent, error) {
	query := `SELECT seq, id, event_type, request_id, entity_id, actor_id, payload_json, created_at
	          FROM outbox_event WHERE published_at IS NULL ORDER BY seq LIMIT $1`
	rows, err := s.DB.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.DomainEvent
	for rows.Next() {
		var evt models.DomainEvent
		var payload []byte
		if err := rows.Scan(
			&evt.Seq,
			&evt.ID,
			&evt.Type,
			&evt.RequestID,
			&evt.EntityID,
			&evt.ActorID,
			&payload,
			&evt.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &evt.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of event %s: %w", evt.ID, err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// MarkEventsPublished помечает события отправленными.
func (s *PostgresStore) MarkEventsPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.DB.Exec(ctx,
		`UPDATE outbox_event SET published_at = $1 WHERE id = ANY($2) AND published_at IS NULL`,
		at, pq.Array(ids))
	return err
}

func (s *PostgresStore) Close() error {
	s.DB.Close()
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

// mapPostgresError переводит нарушения уникальности в ошибки репозитория.
func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "response_record_card_actor_key":
		return ErrDuplicateResponse
	case "proposal_card_one_pending":
		return ErrPendingCardExists
	case "proposal_card_request_number_key":
		return ErrCardNumberTaken
	case "provider_owner_actor_key":
		return ErrDuplicateProvider
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
