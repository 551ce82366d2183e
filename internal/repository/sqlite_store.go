package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/senyabanana/engagement-service/internal/models"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore - реализация Store для встроенной базы SQLite.
// Пул ограничен одним соединением, поэтому транзакции выполняются по очереди.
type SQLiteStore struct {
	DB *sql.DB
}

// NewSQLiteStore создаёт новый экземпляр SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db}
}

func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUnpublishedEvents(ctx context.Context, limit int) ([]models.DomainEvent, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT seq, id, event_type, request_id, entity_id, actor_id, payload_json, created_at
		 FROM outbox_event WHERE published_at IS NULL ORDER BY seq LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.DomainEvent
	for rows.Next() {
		var evt models.DomainEvent
		var payload, createdAt string
		if err := rows.Scan(&evt.Seq, &evt.ID, &evt.Type, &evt.RequestID, &evt.EntityID, &evt.ActorID, &payload, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &evt.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of event %s: %w", evt.ID, err)
		}
		if evt.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) MarkEventsPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := []interface{}{formatTime(at)}
	for _, id := range ids {
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE outbox_event SET published_at = ? WHERE published_at IS NULL AND id IN (%s)`, placeholders(len(ids)))
	_, err := s.DB.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}

type sqliteTx struct {
	tx *sql.Tx
}

type rowScanner interface {
	Scan(dest ...any) error
}

// mapSQLiteError переводит нарушения уникальности в ошибки репозитория.
// SQLite не сообщает имя индекса, только перечень столбцов.
func mapSQLiteError(err error) error {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) || sqlErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return err
	}
	msg := sqlErr.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return err
	}
	switch {
	case strings.Contains(msg, "response_record."):
		return ErrDuplicateResponse
	case strings.Contains(msg, "proposal_card.card_number"):
		return ErrCardNumberTaken
	case strings.Contains(msg, "proposal_card.request_id"):
		return ErrPendingCardExists
	case strings.Contains(msg, "provider.owner_actor_id"):
		return ErrDuplicateProvider
	}
	return err
}

func sqliteNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// sqliteTimeLayout - фиксированная ширина дробной части, чтобы строки сортировались как время.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
