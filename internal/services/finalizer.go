package services

import (
	"context"
	"errors"

	"github.com/senyabanana/engagement-service/internal/models"
	"github.com/senyabanana/engagement-service/internal/repository"

	"github.com/google/uuid"
)

// FinalizeResult - итог финализации.
type FinalizeResult struct {
	Request       models.ServiceRequest `json:"request"`
	AgreementCard *models.ProposalCard  `json:"agreementCard,omitempty"`
	AlreadyLocked bool                  `json:"alreadyLocked"`
}

// Finalize повторно проводит финализацию по принятой обеими сторонами карточке.
// Для уже зафиксированной заявки возвращает текущее состояние без изменений.
func (s *NegotiationService) Finalize(ctx context.Context, cardID, actorID string) (*FinalizeResult, error) {
	if cardID == "" {
		return nil, models.BadRequest("card id is required")
	}
	var result FinalizeResult
	err := s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		card, err := s.getCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		req, err := s.lockRequest(ctx, tx, card.RequestID)
		if err != nil {
			return err
		}
		if card, err = s.getCard(ctx, tx, cardID); err != nil {
			return err
		}
		if _, err := s.authorizeParty(ctx, tx, req, actorID); err != nil {
			return err
		}
		if req.IsAgreementLocked {
			result.AlreadyLocked = true
			result.Request = *req
			result.AgreementCard, err = tx.AgreementCardFor(ctx, card.ID)
			return err
		}
		if req.Status.IsTerminal() {
			return models.ErrRequestClosed
		}
		if card.Status != models.PendingCard {
			return models.CardStatusConflictError{CardID: card.ID, Current: card.Status, Wanted: models.AcceptedCard}
		}

		responses, err := tx.ListResponses(ctx, card.ID)
		if err != nil {
			return err
		}
		counterpart, err := s.counterpart(ctx, tx, req)
		if err != nil {
			return err
		}
		if !IsMutualAcceptance(req.OrganizerID, counterpart, responses) {
			return models.ErrNoMutualAcceptance
		}
		result.AgreementCard, err = s.finalizeTx(ctx, tx, card, req, responses, actorID)
		if err != nil {
			return err
		}
		result.Request = *req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// finalizeTx фиксирует соглашение в текущей транзакции: карточка соглашения,
// исходная карточка accepted, затем заявка agreed с блокировкой. Заявка меняется последней.
func (s *NegotiationService) finalizeTx(ctx context.Context, tx repository.Tx, card *models.ProposalCard, req *models.ServiceRequest, responses []models.ResponseRecord, actorID string) (*models.ProposalCard, error) {
	if req.IsAgreementLocked {
		return nil, models.AlreadyLockedError{RequestID: req.ID}
	}

	providerID, err := s.resolveProvider(ctx, tx, card, req, responses)
	if err != nil {
		return nil, err
	}
	if providerID == nil {
		s.Logger.Printf("WARN: provider for request %s could not be resolved, finalizing without assignment", req.ID)
	}

	agreement, err := tx.AgreementCardFor(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	if agreement == nil {
		agreement = &models.ProposalCard{
			ID:               uuid.NewString(),
			RequestID:        req.ID,
			SubmittedBy:      actorID,
			Status:           models.AgreementCard,
			Terms:            card.Terms,
			ResponseToCardID: &card.ID,
			CreatedAt:        s.Now(),
		}
		if err := s.insertCard(ctx, tx, agreement); err != nil {
			return nil, err
		}
	}

	ok, err := tx.UpdateCardStatus(ctx, card.ID, models.PendingCard, models.AcceptedCard)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.getCard(ctx, tx, card.ID)
		if err != nil {
			return nil, err
		}
		if current.Status != models.AcceptedCard {
			return nil, models.CardStatusConflictError{CardID: card.ID, Current: current.Status, Wanted: models.AcceptedCard}
		}
	}
	card.Status = models.AcceptedCard

	req.ProviderID = providerID
	if err := s.moveRequest(ctx, tx, req, TriggerFinalize, actorID); err != nil {
		var invalid models.InvalidTransitionError
		if errors.As(err, &invalid) {
			if current, getErr := tx.GetRequest(ctx, req.ID); getErr == nil && current.IsAgreementLocked {
				return nil, models.AlreadyLockedError{RequestID: req.ID}
			}
		}
		return nil, err
	}

	payload := map[string]any{
		"cardId":           card.ID,
		"agreementCardId":  agreement.ID,
		"providerAssigned": providerID != nil,
	}
	if providerID != nil {
		payload["providerId"] = *providerID
	}
	if err := s.appendEvent(ctx, tx, models.AgreementFinalizedEvent, req.ID, agreement.ID, actorID, payload); err != nil {
		return nil, err
	}
	s.Logger.Printf("request %s finalized with agreement card %s", req.ID, agreement.ID)
	return agreement, nil
}

// resolveProvider определяет исполнителя для заявки. nil без ошибки означает,
// что исполнителя найти не удалось: финализация продолжается без назначения.
func (s *NegotiationService) resolveProvider(ctx context.Context, tx repository.Tx, card *models.ProposalCard, req *models.ServiceRequest, responses []models.ResponseRecord) (*string, error) {
	if req.ProviderID != nil {
		return req.ProviderID, nil
	}
	actor := ""
	if card.SubmittedBy != req.OrganizerID {
		actor = card.SubmittedBy
	} else {
		for _, r := range responses {
			if r.ResponseType == models.AcceptResponse && r.RespondedBy != req.OrganizerID {
				actor = r.RespondedBy
				break
			}
		}
	}
	if actor == "" {
		return nil, nil
	}
	p, err := tx.ProviderByOwner(ctx, actor)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p.ID, nil
}
