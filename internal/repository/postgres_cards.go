package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/senyabanana/engagement-service/internal/models"

	"github.com/jackc/pgx/v5"
)

const cardColumns = `id, request_id, submitted_by, card_number, status, negotiated_title, negotiated_description,
	budget_min, budget_max, budget_currency, negotiated_timeline, response_to_card_id, created_at`

func scanCard(row pgx.Row) (*models.ProposalCard, error) {
	var card models.ProposalCard
	var budgetMin, budgetMax *int64
	var currency *string
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
		&card.Terms.Timeline,
		&card.ResponseToCardID,
		&card.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	card.Terms.Budget = joinBudget(budgetMin, budgetMax, currency)
	return &card, nil
}

func scanCards(rows pgx.Rows) ([]models.ProposalCard, error) {
	defer rows.Close()
	var cards []models.ProposalCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// InsertCard добавляет карточку. Номер вычисляется в том же запросе, что и вставка.
func (t *postgresTx) InsertCard(ctx context.Context, card models.ProposalCard) (int, error) {
	budgetMin, budgetMax, currency := splitBudget(card.Terms.Budget)
	insertQuery := `INSERT INTO proposal_card (id, request_id, submitted_by, card_number, status, negotiated_title,
	                    negotiated_description, budget_min, budget_max, budget_currency, negotiated_timeline, response_to_card_id, created_at)
	                SELECT $1, $2, $3, COALESCE(MAX(card_number), 0) + 1, $4, $5, $6, $7, $8, $9, $10, $11, $12
	                FROM proposal_card WHERE request_id = $2
	                RETURNING card_number`
	var number int
	err := t.tx.QueryRow(
		ctx,
		insertQuery,
		card.ID,
		card.RequestID,
		card.SubmittedBy,
		card.Status,
		card.Terms.Title,
		card.Terms.Description,
		budgetMin,
		budgetMax,
		currency,
		card.Terms.Timeline,
		card.ResponseToCardID,
		card.CreatedAt).Scan(&number)
	if err != nil {
		return 0, mapPostgresError(err)
	}
	return number, nil
}

// GetCard возвращает карточку по идентификатору.
func (t *postgresTx) GetCard(ctx context.Context, id string) (*models.ProposalCard, error) {
	return scanCard(t.tx.QueryRow(ctx, `SELECT `+cardColumns+` FROM proposal_card WHERE id = $1`, id))
}

// ListCards возвращает карточки заявки по возрастанию номера.
func (t *postgresTx) ListCards(ctx context.Context, requestID string) ([]models.ProposalCard, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+cardColumns+` FROM proposal_card WHERE request_id = $1 ORDER BY card_number`, requestID)
	if err != nil {
		return nil, err
	}
	return scanCards(rows)
}

// PendingCard возвращает текущую карточку заявки или nil.
func (t *postgresTx) PendingCard(ctx context.Context, requestID string) (*models.ProposalCard, error) {
	card, err := scanCard(t.tx.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM proposal_card WHERE request_id = $1 AND status = $2`, requestID, models.PendingCard))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return card, err
}

// AgreementCardFor возвращает карточку соглашения, созданную по cardID, или nil.
func (t *postgresTx) AgreementCardFor(ctx context.Context, cardID string) (*models.ProposalCard, error) {
	card, err := scanCard(t.tx.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM proposal_card WHERE response_to_card_id = $1 AND status = $2`, cardID, models.AgreementCard))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return card, err
}

// UpdateCardStatus меняет статус карточки, если он всё ещё равен from.
func (t *postgresTx) UpdateCardStatus(ctx context.Context, id string, from, to models.CardStatus) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE proposal_card SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return false, mapPostgresError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertResponse записывает ответ. Уникальность (card_id, responded_by) проверяет база.
func (t *postgresTx) InsertResponse(ctx context.Context, rec models.ResponseRecord) error {
	insertQuery := `INSERT INTO response_record (id, card_id, responded_by, response_type, response_notes, created_at)
	                VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := t.tx.Exec(ctx, insertQuery, rec.ID, rec.CardID, rec.RespondedBy, rec.ResponseType, rec.ResponseNotes, rec.CreatedAt)
	return mapPostgresError(err)
}

const responseColumns = `id, card_id, responded_by, response_type, response_notes, created_at`

func scanResponses(rows pgx.Rows) ([]models.ResponseRecord, error) {
	defer rows.Close()
	var records []models.ResponseRecord
	for rows.Next() {
		var rec models.ResponseRecord
		if err := rows.Scan(&rec.ID, &rec.CardID, &rec.RespondedBy, &rec.ResponseType, &rec.ResponseNotes, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetResponse возвращает ответ участника на карточку.
func (t *postgresTx) GetResponse(ctx context.Context, cardID, actorID string) (*models.ResponseRecord, error) {
	var rec models.ResponseRecord
	err := t.tx.QueryRow(ctx,
		`SELECT `+responseColumns+` FROM response_record WHERE card_id = $1 AND responded_by = $2`, cardID, actorID).
		Scan(&rec.ID, &rec.CardID, &rec.RespondedBy, &rec.ResponseType, &rec.ResponseNotes, &rec.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// ListResponses возвращает ответы на карточку в порядке записи.
func (t *postgresTx) ListResponses(ctx context.Context, cardID string) ([]models.ResponseRecord, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+responseColumns+` FROM response_record WHERE card_id = $1 ORDER BY created_at, id`, cardID)
	if err != nil {
		return nil, err
	}
	return scanResponses(rows)
}

// ListRequestResponses возвращает все ответы по карточкам заявки.
func (t *postgresTx) ListRequestResponses(ctx context.Context, requestID string) ([]models.ResponseRecord, error) {
	query := `SELECT r.id, r.card_id, r.responded_by, r.response_type, r.response_notes, r.created_at
	          FROM response_record r
	          JOIN proposal_card c ON r.card_id = c.id
	          WHERE c.request_id = $1
	          ORDER BY c.card_number, r.created_at, r.id`
	rows, err := t.tx.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	return scanResponses(rows)
}

// AppendEvent записывает событие в outbox.
func (t *postgresTx) AppendEvent(ctx context.Context, evt models.DomainEvent) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}
	insertQuery := `INSERT INTO outbox_event (id, event_type, request_id, entity_id, actor_id, payload_json, created_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = t.tx.Exec(ctx, insertQuery, evt.ID, evt.Type, evt.RequestID, evt.EntityID, evt.ActorID, payload, evt.CreatedAt)
	return err
}

func splitBudget(b *models.BudgetRange) (lo, hi *int64, currency *string) {
	if b == nil {
		return nil, nil, nil
	}
	return &b.Min, &b.Max, &b.Currency
}

func joinBudget(lo, hi *int64, currency *string) *models.BudgetRange {
	if lo == nil || hi == nil {
		return nil
	}
	b := &models.BudgetRange{Min: *lo, Max: *hi}
	if currency != nil {
		b.Currency = *currency
	}
	return b
}
