package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/senyabanana/engagement-service/internal/models"
)

func scanSQLiteCard(row rowScanner) (*models.ProposalCard, error) {
	var card models.ProposalCard
	var budgetMin, budgetMax sql.NullInt64
	var currency, timeline, respondsTo sql.NullString
	var createdAt string
	err := row.Scan(
		&card.ID,
		&card.RequestID,
		&card.SubmittedBy,
		&card.CardNumber,
		&card.Status,
		&card.Terms.Title,
		&card.Terms.Description,
		&budgetMin,
		&budgetMax,
		&currency,
		&timeline,
		&respondsTo,
		&createdAt,
	)
	if err != nil {
		return nil, sqliteNotFound(err)
	}
	if budgetMin.Valid && budgetMax.Valid {
		card.Terms.Budget = &models.BudgetRange{Min: budgetMin.Int64, Max: budgetMax.Int64, Currency: currency.String}
	}
	if timeline.Valid {
		card.Terms.Timeline = &timeline.String
	}
	if respondsTo.Valid {
		card.ResponseToCardID = &respondsTo.String
	}
	if card.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &card, nil
}

func scanSQLiteCards(rows *sql.Rows) ([]models.ProposalCard, error) {
	defer rows.Close()
	var cards []models.ProposalCard
	for rows.Next() {
		card, err := scanSQLiteCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

func (t *sqliteTx) InsertCard(ctx context.Context, card models.ProposalCard) (int, error) {
	budgetMin, budgetMax, currency := splitBudget(card.Terms.Budget)
	var number int
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO proposal_card (id, request_id, submitted_by, card_number, status, negotiated_title,
		     negotiated_description, budget_min, budget_max, budget_currency, negotiated_timeline, response_to_card_id, created_at)
		 SELECT ?1, ?2, ?3, COALESCE(MAX(card_number), 0) + 1, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12
		 FROM proposal_card WHERE request_id = ?2
		 RETURNING card_number`,
		card.ID, card.RequestID, card.SubmittedBy, string(card.Status), card.Terms.Title, card.Terms.Description,
		budgetMin, budgetMax, currency, card.Terms.Timeline, card.ResponseToCardID, formatTime(card.CreatedAt)).Scan(&number)
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	return number, nil
}

func (t *sqliteTx) GetCard(ctx context.Context, id string) (*models.ProposalCard, error) {
	return scanSQLiteCard(t.tx.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM proposal_card WHERE id = ?`, id))
}

func (t *sqliteTx) ListCards(ctx context.Context, requestID string) ([]models.ProposalCard, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM proposal_card WHERE request_id = ? ORDER BY card_number`, requestID)
	if err != nil {
		return nil, err
	}
	return scanSQLiteCards(rows)
}

func (t *sqliteTx) PendingCard(ctx context.Context, requestID string) (*models.ProposalCard, error) {
	card, err := scanSQLiteCard(t.tx.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM proposal_card WHERE request_id = ? AND status = ?`, requestID, string(models.PendingCard)))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return card, err
}

func (t *sqliteTx) AgreementCardFor(ctx context.Context, cardID string) (*models.ProposalCard, error) {
	card, err := scanSQLiteCard(t.tx.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM proposal_card WHERE response_to_card_id = ? AND status = ?`, cardID, string(models.AgreementCard)))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return card, err
}

func (t *sqliteTx) UpdateCardStatus(ctx context.Context, id string, from, to models.CardStatus) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE proposal_card SET status = ? WHERE id = ? AND status = ?`, string(to), id, string(from))
	if err != nil {
		return false, mapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *sqliteTx) InsertResponse(ctx context.Context, rec models.ResponseRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO response_record (id, card_id, responded_by, response_type, response_notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CardID, rec.RespondedBy, string(rec.ResponseType), rec.ResponseNotes, formatTime(rec.CreatedAt))
	return mapSQLiteError(err)
}

func scanSQLiteResponse(row rowScanner) (*models.ResponseRecord, error) {
	var rec models.ResponseRecord
	var notes sql.NullString
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.CardID, &rec.RespondedBy, &rec.ResponseType, &notes, &createdAt); err != nil {
		return nil, sqliteNotFound(err)
	}
	if notes.Valid {
		rec.ResponseNotes = &notes.String
	}
	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanSQLiteResponses(rows *sql.Rows) ([]models.ResponseRecord, error) {
	defer rows.Close()
	var records []models.ResponseRecord
	for rows.Next() {
		rec, err := scanSQLiteResponse(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (t *sqliteTx) GetResponse(ctx context.Context, cardID, actorID string) (*models.ResponseRecord, error) {
	return scanSQLiteResponse(t.tx.QueryRowContext(ctx,
		`SELECT `+responseColumns+` FROM response_record WHERE card_id = ? AND responded_by = ?`, cardID, actorID))
}

func (t *sqliteTx) ListResponses(ctx context.Context, cardID string) ([]models.ResponseRecord, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+responseColumns+` FROM response_record WHERE card_id = ? ORDER BY created_at, id`, cardID)
	if err != nil {
		return nil, err
	}
	return scanSQLiteResponses(rows)
}

func (t *sqliteTx) ListRequestResponses(ctx context.Context, requestID string) ([]models.ResponseRecord, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT r.id, r.card_id, r.responded_by, r.response_type, r.response_notes, r.created_at
		 FROM response_record r
		 JOIN proposal_card c ON r.card_id = c.id
		 WHERE c.request_id = ?
		 ORDER BY c.card_number, r.created_at, r.id`, requestID)
	if err != nil {
		return nil, err
	}
	return scanSQLiteResponses(rows)
}

func (t *sqliteTx) AppendEvent(ctx context.Context, evt models.DomainEvent) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO outbox_event (id, event_type, request_id, entity_id, actor_id, payload_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.ID, string(evt.Type), evt.RequestID, evt.EntityID, evt.ActorID, string(payload), formatTime(evt.CreatedAt))
	return err
}
