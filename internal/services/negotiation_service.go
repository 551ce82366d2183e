package services

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/senyabanana/engagement-service/internal/models"
	"github.com/senyabanana/engagement-service/internal/repository"

	"github.com/google/uuid"
)

// NegotiationService ведёт обмен карточками: подача, ответы, финализация и история.
type NegotiationService struct {
	core
}

// NewNegotiationService создает новый экземпляр NegotiationService.
func NewNegotiationService(store repository.Store, logger *log.Logger) *NegotiationService {
	return &NegotiationService{core: newCore(store, logger)}
}

// SubmitProposal создает новую карточку предложения по заявке.
// Если указан RespondsTo, это встречное предложение: оно записывается в журнал ответов как counter.
func (s *NegotiationService) SubmitProposal(ctx context.Context, requestID, actorID string, input models.ProposalInput) (*models.ProposalCard, error) {
	if requestID == "" {
		return nil, models.BadRequest("request id is required")
	}
	if err := validateTerms(input.Terms); err != nil {
		return nil, err
	}
	if input.RespondsTo != nil {
		return s.submitCounter(ctx, requestID, actorID, *input.RespondsTo, input.Terms)
	}

	var card models.ProposalCard
	err := s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		req, err := s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.IsAgreementLocked {
			return models.LockedRequestError{RequestID: req.ID}
		}
		if req.Status.IsTerminal() {
			return models.ErrRequestClosed
		}
		if _, err := s.authorizeParty(ctx, tx, req, actorID); err != nil {
			return err
		}
		current, err := tx.PendingCard(ctx, req.ID)
		if err != nil {
			return err
		}
		if current != nil {
			return models.StaleProposalError{RequestID: req.ID, CurrentCardID: current.ID}
		}

		card = models.ProposalCard{
			ID:          uuid.NewString(),
			RequestID:   req.ID,
			SubmittedBy: actorID,
			Status:      models.PendingCard,
			Terms:       input.Terms,
			CreatedAt:   s.Now(),
		}
		if err := s.insertCard(ctx, tx, &card); err != nil {
			return err
		}
		if req.Status == models.PendingRequest {
			return s.moveRequest(ctx, tx, req, TriggerFirstProposal, actorID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (s *NegotiationService) submitCounter(ctx context.Context, requestID, actorID, respondsTo string, terms models.Terms) (*models.ProposalCard, error) {
	outcome, err := s.respond(ctx, respondsTo, actorID, models.ResponseInput{
		ResponseType: models.CounterResponse,
		CounterTerms: &terms,
	}, requestID)
	if err != nil {
		return nil, err
	}
	return outcome.CounterCard, nil
}

// Respond записывает ответ участника на карточку и выполняет его последствия.
func (s *NegotiationService) Respond(ctx context.Context, cardID, actorID string, input models.ResponseInput) (*models.ResponseOutcome, error) {
	return s.respond(ctx, cardID, actorID, input, "")
}

func (s *NegotiationService) respond(ctx context.Context, cardID, actorID string, input models.ResponseInput, expectedRequestID string) (*models.ResponseOutcome, error) {
	if cardID == "" {
		return nil, models.BadRequest("card id is required")
	}
	if !input.ResponseType.Valid() {
		return nil, models.BadRequest("invalid response type. Must be 'accept', 'reject' or 'counter'")
	}
	if input.ResponseType == models.CounterResponse {
		if input.CounterTerms == nil {
			return nil, models.BadRequest("counter terms are required for a counter response")
		}
		if err := validateTerms(*input.CounterTerms); err != nil {
			return nil, err
		}
	}

	var outcome models.ResponseOutcome
	err := s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		if expectedRequestID != "" {
			if err := s.checkCounterTarget(ctx, tx, expectedRequestID, cardID); err != nil {
				return err
			}
		}
		card, err := s.getCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if expectedRequestID != "" && card.RequestID != expectedRequestID {
			return models.NewErrorResponse(http.StatusBadRequest, "card does not belong to this request")
		}
		req, err := s.lockRequest(ctx, tx, card.RequestID)
		if err != nil {
			return err
		}
		// статус карточки мог измениться, пока ждали блокировку
		if card, err = s.getCard(ctx, tx, cardID); err != nil {
			return err
		}

		if _, err := tx.GetResponse(ctx, card.ID, actorID); err == nil {
			return models.DuplicateResponseError{CardID: card.ID, ActorID: actorID}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if req.IsAgreementLocked {
			return models.LockedRequestError{RequestID: req.ID}
		}
		if req.Status.IsTerminal() {
			return models.ErrRequestClosed
		}
		if card.Status != models.PendingCard {
			stale := models.StaleProposalError{RequestID: req.ID, RespondsTo: card.ID}
			if current, err := tx.PendingCard(ctx, req.ID); err == nil && current != nil {
				stale.CurrentCardID = current.ID
			}
			return stale
		}
		if _, err := s.authorizeParty(ctx, tx, req, actorID); err != nil {
			return err
		}

		rec := models.ResponseRecord{
			ID:            uuid.NewString(),
			CardID:        card.ID,
			RespondedBy:   actorID,
			ResponseType:  input.ResponseType,
			ResponseNotes: input.Notes,
			CreatedAt:     s.Now(),
		}
		if err := tx.InsertResponse(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrDuplicateResponse) {
				return models.DuplicateResponseError{CardID: card.ID, ActorID: actorID}
			}
			return err
		}
		outcome.Response = rec
		err = s.appendEvent(ctx, tx, models.ResponseRecordedEvent, req.ID, rec.ID, actorID, map[string]any{
			"cardId":       card.ID,
			"responseType": string(rec.ResponseType),
		})
		if err != nil {
			return err
		}

		switch input.ResponseType {
		case models.AcceptResponse:
			err = s.onAccept(ctx, tx, card, req, actorID, &outcome)
		case models.CounterResponse:
			outcome.CounterCard, err = s.onCounter(ctx, tx, card, actorID, *input.CounterTerms)
		case models.RejectResponse:
			err = s.onReject(ctx, tx, card, req, actorID)
		}
		if err != nil {
			return err
		}
		outcome.Request = *req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

// checkCounterTarget проверяет предусловия подачи встречного предложения до чтения
// карточки и журнала ответов: блокировка, закрытая заявка, respondsTo равен текущей карточке.
func (s *NegotiationService) checkCounterTarget(ctx context.Context, tx repository.Tx, requestID, respondsTo string) error {
	req, err := s.lockRequest(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if req.IsAgreementLocked {
		return models.LockedRequestError{RequestID: req.ID}
	}
	if req.Status.IsTerminal() {
		return models.ErrRequestClosed
	}
	current, err := tx.PendingCard(ctx, req.ID)
	if err != nil {
		return err
	}
	if current == nil || current.ID != respondsTo {
		stale := models.StaleProposalError{RequestID: req.ID, RespondsTo: respondsTo}
		if current != nil {
			stale.CurrentCardID = current.ID
		}
		return stale
	}
	return nil
}

func (s *NegotiationService) onAccept(ctx context.Context, tx repository.Tx, card *models.ProposalCard, req *models.ServiceRequest, actorID string, outcome *models.ResponseOutcome) error {
	responses, err := tx.ListResponses(ctx, card.ID)
	if err != nil {
		return err
	}
	counterpart, err := s.counterpart(ctx, tx, req)
	if err != nil {
		return err
	}
	if !IsMutualAcceptance(req.OrganizerID, counterpart, responses) {
		return nil
	}
	agreement, err := s.finalizeTx(ctx, tx, card, req, responses, actorID)
	var locked models.AlreadyLockedError
	if errors.As(err, &locked) {
		return nil
	}
	if err != nil {
		return err
	}
	outcome.AgreementCard = agreement
	return nil
}

// onCounter закрывает исходную карточку и создаёт следующую. Исходная помечается
// первой: уникальный индекс допускает только одну pending-карточку на заявку.
func (s *NegotiationService) onCounter(ctx context.Context, tx repository.Tx, card *models.ProposalCard, actorID string, terms models.Terms) (*models.ProposalCard, error) {
	if err := s.markCard(ctx, tx, card, models.CounteredCard); err != nil {
		return nil, err
	}
	next := models.ProposalCard{
		ID:               uuid.NewString(),
		RequestID:        card.RequestID,
		SubmittedBy:      actorID,
		Status:           models.PendingCard,
		Terms:            terms,
		ResponseToCardID: &card.ID,
		CreatedAt:        s.Now(),
	}
	if err := s.insertCard(ctx, tx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *NegotiationService) onReject(ctx context.Context, tx repository.Tx, card *models.ProposalCard, req *models.ServiceRequest, actorID string) error {
	if err := s.markCard(ctx, tx, card, models.CancelledCard); err != nil {
		return err
	}
	current, err := tx.PendingCard(ctx, req.ID)
	if err != nil {
		return err
	}
	if current != nil {
		return nil
	}
	if err := s.moveRequest(ctx, tx, req, TriggerDecline, actorID); err != nil {
		return err
	}
	return s.appendEvent(ctx, tx, models.RequestDeclinedEvent, req.ID, card.ID, actorID, map[string]any{
		"cardId": card.ID,
	})
}

// markCard меняет статус pending-карточки. Терминальные карточки не меняются.
func (s *NegotiationService) markCard(ctx context.Context, tx repository.Tx, card *models.ProposalCard, to models.CardStatus) error {
	ok, err := tx.UpdateCardStatus(ctx, card.ID, models.PendingCard, to)
	if err != nil {
		return err
	}
	if !ok {
		current, err := s.getCard(ctx, tx, card.ID)
		if err != nil {
			return err
		}
		return models.CardStatusConflictError{CardID: card.ID, Current: current.Status, Wanted: to}
	}
	card.Status = to
	return nil
}

// insertCard записывает карточку, присваивает ей номер и пишет событие ProposalCreated.
func (s *NegotiationService) insertCard(ctx context.Context, tx repository.Tx, card *models.ProposalCard) error {
	number, err := tx.InsertCard(ctx, *card)
	if err != nil {
		if errors.Is(err, repository.ErrPendingCardExists) {
			stale := models.StaleProposalError{RequestID: card.RequestID}
			if card.ResponseToCardID != nil {
				stale.RespondsTo = *card.ResponseToCardID
			}
			return stale
		}
		return err
	}
	card.CardNumber = number
	if card.Status == models.AgreementCard {
		return nil
	}
	payload := map[string]any{"cardNumber": number}
	if card.ResponseToCardID != nil {
		payload["responseToCardId"] = *card.ResponseToCardID
	}
	return s.appendEvent(ctx, tx, models.ProposalCreatedEvent, card.RequestID, card.ID, card.SubmittedBy, payload)
}

// GetThread возвращает историю переговоров по заявке.
func (s *NegotiationService) GetThread(ctx context.Context, requestID string) (*models.NegotiationThread, error) {
	return s.loadThread(ctx, requestID, nil)
}

// ViewThread возвращает историю переговоров участнику. Посторонним - ErrNotParticipant.
func (s *NegotiationService) ViewThread(ctx context.Context, requestID, actorID string) (*models.NegotiationThread, error) {
	return s.loadThread(ctx, requestID, func(tx repository.Tx, req *models.ServiceRequest) error {
		_, err := s.authorizeParty(ctx, tx, req, actorID)
		return err
	})
}

func (s *NegotiationService) loadThread(ctx context.Context, requestID string, authorize func(tx repository.Tx, req *models.ServiceRequest) error) (*models.NegotiationThread, error) {
	if requestID == "" {
		return nil, models.BadRequest("request id is required")
	}
	var thread models.NegotiationThread
	err := s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		req, err := tx.GetRequest(ctx, requestID)
		if errors.Is(err, repository.ErrNotFound) {
			return models.ErrRequestNotFound
		}
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(tx, req); err != nil {
				return err
			}
		}
		cards, err := tx.ListCards(ctx, requestID)
		if err != nil {
			return err
		}
		responses, err := tx.ListRequestResponses(ctx, requestID)
		if err != nil {
			return err
		}
		byCard := make(map[string][]models.ResponseRecord, len(cards))
		for _, r := range responses {
			byCard[r.CardID] = append(byCard[r.CardID], r)
		}

		thread.Request = *req
		thread.Cards = make([]models.ThreadCard, 0, len(cards))
		for _, card := range cards {
			recs := byCard[card.ID]
			if recs == nil {
				recs = []models.ResponseRecord{}
			}
			thread.Cards = append(thread.Cards, models.ThreadCard{ProposalCard: card, Responses: recs})
			if card.Status == models.PendingCard {
				current := card
				thread.CurrentCard = &current
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &thread, nil
}
