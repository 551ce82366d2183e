package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/senyabanana/engagement-service/internal/models"
	"github.com/senyabanana/engagement-service/internal/repository"

	"github.com/google/uuid"
)

// core - общие зависимости сервисов.
type core struct {
	Store  repository.Store
	Logger *log.Logger
	Now    func() time.Time
}

func newCore(store repository.Store, logger *log.Logger) core {
	if logger == nil {
		logger = log.Default()
	}
	return core{
		Store:  store,
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c core) lockRequest(ctx context.Context, tx repository.Tx, id string) (*models.ServiceRequest, error) {
	req, err := tx.LockRequest(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.ErrRequestNotFound
	}
	return req, err
}

func (c core) getCard(ctx context.Context, tx repository.Tx, id string) (*models.ProposalCard, error) {
	card, err := tx.GetCard(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.ErrCardNotFound
	}
	return card, err
}

// counterpart определяет участника на стороне исполнителя: владелец назначенного
// исполнителя, иначе первый участник, кроме организатора, в цепочке карточек и ответов.
// Пустая строка означает, что исполнитель ещё не определён.
func (c core) counterpart(ctx context.Context, tx repository.Tx, req *models.ServiceRequest) (string, error) {
	if req.ProviderID != nil {
		p, err := tx.GetProvider(ctx, *req.ProviderID)
		if err == nil {
			return p.OwnerActorID, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
	}
	cards, err := tx.ListCards(ctx, req.ID)
	if err != nil {
		return "", err
	}
	for _, card := range cards {
		if card.SubmittedBy != req.OrganizerID && card.Status != models.AgreementCard {
			return card.SubmittedBy, nil
		}
	}
	responses, err := tx.ListRequestResponses(ctx, req.ID)
	if err != nil {
		return "", err
	}
	for _, r := range responses {
		if r.RespondedBy != req.OrganizerID {
			return r.RespondedBy, nil
		}
	}
	return "", nil
}

// authorizeParty проверяет, что actorID - сторона переговоров, и возвращает исполнителя.
func (c core) authorizeParty(ctx context.Context, tx repository.Tx, req *models.ServiceRequest, actorID string) (string, error) {
	if actorID == "" {
		return "", models.NewErrorResponse(http.StatusUnauthorized, "actor is required")
	}
	counterpart, err := c.counterpart(ctx, tx, req)
	if err != nil {
		return "", err
	}
	if actorID == req.OrganizerID {
		return counterpart, nil
	}
	if counterpart == "" || counterpart == actorID {
		return counterpart, nil
	}
	return "", models.ErrNotParticipant
}

// moveRequest переводит заявку по статусной машине и пишет событие RequestStatusChanged.
// Флаг блокировки сохраняется только для статусов, которые его допускают.
func (c core) moveRequest(ctx context.Context, tx repository.Tx, req *models.ServiceRequest, trigger Trigger, actorID string) error {
	next, err := NextStatus(req.Status, trigger)
	if err != nil {
		return err
	}
	state := repository.RequestState{
		Status:     next,
		Locked:     trigger == TriggerFinalize || (req.IsAgreementLocked && next.AllowsLock()),
		ProviderID: req.ProviderID,
		UpdatedAt:  c.Now(),
	}
	ok, err := tx.UpdateRequestState(ctx, req.ID, req.Status, state)
	if err != nil {
		return err
	}
	if !ok {
		return models.InvalidTransitionError{From: req.Status, To: next}
	}
	from := req.Status
	req.Status = next
	req.IsAgreementLocked = state.Locked
	req.UpdatedAt = state.UpdatedAt
	return c.appendEvent(ctx, tx, models.RequestStatusChangedEvent, req.ID, req.ID, actorID, map[string]any{
		"from":    string(from),
		"to":      string(next),
		"trigger": string(trigger),
	})
}

func (c core) appendEvent(ctx context.Context, tx repository.Tx, typ models.EventType, requestID, entityID, actorID string, payload map[string]any) error {
	return tx.AppendEvent(ctx, models.DomainEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		RequestID: requestID,
		EntityID:  entityID,
		ActorID:   actorID,
		Payload:   payload,
		CreatedAt: c.Now(),
	})
}

func validateTerms(terms models.Terms) error {
	if strings.TrimSpace(terms.Title) == "" {
		return models.BadRequest("terms title is required")
	}
	if b := terms.Budget; b != nil {
		if b.Min < 0 || b.Max < b.Min {
			return models.BadRequest("invalid budget range")
		}
		if b.Currency == "" {
			return models.BadRequest("budget currency is required")
		}
	}
	return nil
}
