package repository

import (
	"context"
	"strings"

	"github.com/senyabanana/engagement-service/internal/models"
)

func scanSQLiteRequest(row rowScanner) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	var createdAt, updatedAt string
	err := row.Scan(
		&req.ID,
		&req.OrganizerID,
		&req.ProviderID,
		&req.Title,
		&req.Description,
		&req.Status,
		&req.IsAgreementLocked,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, sqliteNotFound(err)
	}
	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if req.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &req, nil
}

func (t *sqliteTx) InsertRequest(ctx context.Context, req models.ServiceRequest) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO service_request (id, organizer_id, provider_id, title, description, status, is_agreement_locked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.OrganizerID, req.ProviderID, req.Title, req.Description, string(req.Status),
		req.IsAgreementLocked, formatTime(req.CreatedAt), formatTime(req.UpdatedAt))
	return err
}

func (t *sqliteTx) GetRequest(ctx context.Context, id string) (*models.ServiceRequest, error) {
	return scanSQLiteRequest(t.tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_request WHERE id = ?`, id))
}

// LockRequest в SQLite совпадает с GetRequest: писатель в базе всегда один.
func (t *sqliteTx) LockRequest(ctx context.Context, id string) (*models.ServiceRequest, error) {
	return t.GetRequest(ctx, id)
}

func (t *sqliteTx) UpdateRequestState(ctx context.Context, id string, from models.RequestStatus, next RequestState) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE service_request SET status = ?, is_agreement_locked = ?, provider_id = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(next.Status), next.Locked, next.ProviderID, formatTime(next.UpdatedAt), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *sqliteTx) ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_request`
	var filters []string
	var args []interface{}

	if len(filter.Statuses) > 0 {
		filters = append(filters, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range requestStatusStrings(filter.Statuses) {
			args = append(args, s)
		}
	}
	if filter.OrganizerID != "" {
		filters = append(filters, "organizer_id = ?")
		args = append(args, filter.OrganizerID)
	}
	if filter.ProviderID != "" {
		filters = append(filters, "provider_id = ?")
		args = append(args, filter.ProviderID)
	}
	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.ServiceRequest
	for rows.Next() {
		req, err := scanSQLiteRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func (t *sqliteTx) InsertComment(ctx context.Context, c models.Comment) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO request_comment (id, request_id, author_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.RequestID, c.AuthorID, c.Body, formatTime(c.CreatedAt))
	return err
}

func (t *sqliteTx) ListComments(ctx context.Context, requestID string, limit, offset int) ([]models.Comment, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, request_id, author_id, body, created_at FROM request_comment
		 WHERE request_id = ? ORDER BY created_at, id LIMIT ? OFFSET ?`, requestID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.RequestID, &c.AuthorID, &c.Body, &createdAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (t *sqliteTx) InsertProvider(ctx context.Context, p models.Provider) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO provider (id, owner_actor_id, display_name, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.OwnerActorID, p.DisplayName, formatTime(p.CreatedAt))
	return mapSQLiteError(err)
}

func (t *sqliteTx) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	return scanSQLiteProvider(t.tx.QueryRowContext(ctx,
		`SELECT id, owner_actor_id, display_name, created_at FROM provider WHERE id = ?`, id))
}

func (t *sqliteTx) ProviderByOwner(ctx context.Context, actorID string) (*models.Provider, error) {
	return scanSQLiteProvider(t.tx.QueryRowContext(ctx,
		`SELECT id, owner_actor_id, display_name, created_at FROM provider WHERE owner_actor_id = ?`, actorID))
}

func scanSQLiteProvider(row rowScanner) (*models.Provider, error) {
	var p models.Provider
	var createdAt string
	if err := row.Scan(&p.ID, &p.OwnerActorID, &p.DisplayName, &createdAt); err != nil {
		return nil, sqliteNotFound(err)
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}
