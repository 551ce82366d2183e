package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/senyabanana/engagement-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

const requestColumns = `id, organizer_id, provider_id, title, description, status, is_agreement_locked, created_at, updated_at`

func scanRequest(row pgx.Row) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := row.Scan(
		&req.ID,
		&req.OrganizerID,
		&req.ProviderID,
		&req.Title,
		&req.Description,
		&req.Status,
		&req.IsAgreementLocked,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// InsertRequest создает новую заявку.
func (t *postgresTx) InsertRequest(ctx context.Context, req models.ServiceRequest) error {
	insertQuery := `INSERT INTO service_request (id, organizer_id, provider_id, title, description, status, is_agreement_locked, created_at, updated_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := t.tx.Exec(
		ctx,
		insertQuery,
		req.ID,
		req.OrganizerID,
		req.ProviderID,
		req.Title,
		req.Description,
		req.Status,
		req.IsAgreementLocked,
		req.CreatedAt,
		req.UpdatedAt)
	return err
}

// GetRequest возвращает заявку по идентификатору.
func (t *postgresTx) GetRequest(ctx context.Context, id string) (*models.ServiceRequest, error) {
	return scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_request WHERE id = $1`, id))
}

// LockRequest возвращает заявку и удерживает блокировку строки до конца транзакции.
func (t *postgresTx) LockRequest(ctx context.Context, id string) (*models.ServiceRequest, error) {
	return scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_request WHERE id = $1 FOR UPDATE`, id))
}

// UpdateRequestState меняет статус заявки, если она всё ещё в статусе from.
func (t *postgresTx) UpdateRequestState(ctx context.Context, id string, from models.RequestStatus, next RequestState) (bool, error) {
	updateQuery := `UPDATE service_request
	                SET status = $1, is_agreement_locked = $2, provider_id = $3, updated_at = $4
	                WHERE id = $5 AND status = $6`
	tag, err := t.tx.Exec(ctx, updateQuery, next.Status, next.Locked, next.ProviderID, next.UpdatedAt, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListRequests возвращает список заявок по фильтру.
func (t *postgresTx) ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_request`
	var filters []string
	var args []interface{}
	argIndex := 1

	if len(filter.Statuses) > 0 {
		filters = append(filters, fmt.Sprintf("status = ANY($%d)", argIndex))
		args = append(args, pq.Array(requestStatusStrings(filter.Statuses)))
		argIndex++
	}
	if filter.OrganizerID != "" {
		filters = append(filters, fmt.Sprintf("organizer_id = $%d", argIndex))
		args = append(args, filter.OrganizerID)
		argIndex++
	}
	if filter.ProviderID != "" {
		filters = append(filters, fmt.Sprintf("provider_id = $%d", argIndex))
		args = append(args, filter.ProviderID)
		argIndex++
	}
	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// InsertComment добавляет комментарий к заявке.
func (t *postgresTx) InsertComment(ctx context.Context, c models.Comment) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO request_comment (id, request_id, author_id, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.RequestID, c.AuthorID, c.Body, c.CreatedAt)
	return err
}

// ListComments возвращает комментарии заявки в хронологическом порядке.
func (t *postgresTx) ListComments(ctx context.Context, requestID string, limit, offset int) ([]models.Comment, error) {
	query := `SELECT id, request_id, author_id, body, created_at
	          FROM request_comment WHERE request_id = $1
	          ORDER BY created_at, id LIMIT $2 OFFSET $3`
	rows, err := t.tx.Query(ctx, query, requestID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.RequestID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// InsertProvider регистрирует исполнителя.
func (t *postgresTx) InsertProvider(ctx context.Context, p models.Provider) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO provider (id, owner_actor_id, display_name, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.OwnerActorID, p.DisplayName, p.CreatedAt)
	return mapPostgresError(err)
}

// GetProvider возвращает исполнителя по идентификатору.
func (t *postgresTx) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	var p models.Provider
	err := t.tx.QueryRow(ctx,
		`SELECT id, owner_actor_id, display_name, created_at FROM provider WHERE id = $1`, id).
		Scan(&p.ID, &p.OwnerActorID, &p.DisplayName, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ProviderByOwner возвращает исполнителя, которым владеет участник.
func (t *postgresTx) ProviderByOwner(ctx context.Context, actorID string) (*models.Provider, error) {
	var p models.Provider
	err := t.tx.QueryRow(ctx,
		`SELECT id, owner_actor_id, display_name, created_at FROM provider WHERE owner_actor_id = $1`, actorID).
		Scan(&p.ID, &p.OwnerActorID, &p.DisplayName, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}
