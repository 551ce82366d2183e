package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/senyabanana/engagement-service/internal/models"
	"github.com/senyabanana/engagement-service/internal/repository"
	"github.com/senyabanana/engagement-service/internal/utils"

	"github.com/google/uuid"
)

var knownRequestStatuses = []models.RequestStatus{
	models.PendingRequest,
	models.NegotiatingRequest,
	models.AgreedRequest,
	models.InProgressRequest,
	models.PendingReviewRequest,
	models.CompletedRequest,
	models.DeclinedRequest,
	models.CancelledRequest,
}

// RequestService отвечает за заявки, их исполнение после соглашения, комментарии и справочник исполнителей.
type RequestService struct {
	core
}

// NewRequestService создает новый экземпляр RequestService.
func NewRequestService(store repository.Store, logger *log.Logger) *RequestService {
	return &RequestService{core: newCore(store, logger)}
}

// CreateRequest создает новую заявку.
func (s *RequestService) CreateRequest(ctx context.Context, organizerID string, input models.ServiceRequestInput) (*models.ServiceRequest, error) {
	if organizerID == "" {
		return nil, models.NewErrorResponse(http.StatusUnauthorized, "actor is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, models.BadRequest("missing required fields: title")
	}
	now := s.Now()
	req := models.ServiceRequest{
		ID:          uuid.NewString(),
		OrganizerID: organizerID,
		ProviderID:  input.ProviderID,
		Title:       input.Title,
		Description: input.Description,
		Status:      models.PendingRequest,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		if req.ProviderID != nil {
			p, err := tx.GetProvider(ctx, *req.ProviderID)
			if errors.Is(err, repository.ErrNotFound) {
				return models.ErrProviderNotFound
			}
			if err != nil {
				return err
			}
			if p.OwnerActorID == organizerID {
				return models.BadRequest("organizer cannot be the provider of their own request")
			}
		}
		return tx.InsertRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetRequest возвращает заявку по идентификатору.
func (s *RequestService) GetRequest(ctx context.Context, requestID string) (*models.ServiceRequest, error) {
	var req *models.ServiceRequest
	err := s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		req, err = tx.GetRequest(ctx, requestID)
		if errors.Is(err, repository.ErrNotFound) {
			return models.ErrRequestNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequests возвращает список заявок.
func (s *RequestService) ListRequests(ctx context.Context, statuses []string, organizerID, providerID, limitStr, offsetStr string) ([]models.ServiceRequest, error) {
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.BadRequest(err.Error())
	}
	filter := models.RequestFilter{OrganizerID: organizerID, ProviderID: providerID, Limit: limit, Offset: offset}
	for _, st := range statuses {
		status := models.RequestStatus(st)
		if !utils.Contains(knownRequestStatuses, status) {
			return nil, models.BadRequest(fmt.Sprintf("unknown request status %q", st))
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	var requests []models.ServiceRequest
	err = s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		requests, err = tx.ListRequests(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []models.ServiceRequest{}
	}
	return requests, nil
}

// StartWork переводит зафиксированную заявку в работу. Доступно обеим сторонам.
func (s *RequestService) StartWork(ctx context.Context, requestID, actorID string) (*models.ServiceRequest, error) {
	return s.advance(ctx, requestID, actorID, TriggerStartWork, "", nil)
}

// SubmitForReview сдаёт работу на проверку. Доступно только исполнителю.
func (s *RequestService) SubmitForReview(ctx context.Context, requestID, actorID string) (*models.ServiceRequest, error) {
	return s.advance(ctx, requestID, actorID, TriggerSubmitReview, "", func(req *models.ServiceRequest) error {
		if actorID == req.OrganizerID {
			return models.NewErrorResponse(http.StatusForbidden, "only the provider can submit work for review")
		}
		return nil
	})
}

// Complete принимает работу. Доступно только организатору.
func (s *RequestService) Complete(ctx context.Context, requestID, actorID string) (*models.ServiceRequest, error) {
	return s.advance(ctx, requestID, actorID, TriggerComplete, "", func(req *models.ServiceRequest) error {
		if actorID != req.OrganizerID {
			return models.NewErrorResponse(http.StatusForbidden, "only the organizer can complete the request")
		}
		return nil
	})
}

// CancelRequest отменяет заявку. Текущая карточка отменяется, блокировка снимается.
func (s *RequestService) CancelRequest(ctx context.Context, requestID, actorID, reason string) (*models.ServiceRequest, error) {
	return s.advance(ctx, requestID, actorID, TriggerCancel, reason, func(req *models.ServiceRequest) error {
		if actorID != req.OrganizerID {
			return models.NewErrorResponse(http.StatusForbidden, "only the organizer can cancel the request")
		}
		return nil
	})
}

// advance проводит заявку по статусной машине от имени участника. authorize может быть nil.
func (s *RequestService) advance(ctx context.Context, requestID, actorID string, trigger Trigger, reason string, authorize func(req *models.ServiceRequest) error) (*models.ServiceRequest, error) {
	if requestID == "" {
		return nil, models.BadRequest("request id is required")
	}
	var result models.ServiceRequest
	err := s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		req, err := s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if _, err := s.authorizeParty(ctx, tx, req, actorID); err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(req); err != nil {
				return err
			}
		}
		if req.Status.IsTerminal() {
			return models.ErrRequestClosed
		}
		if trigger == TriggerCancel {
			if err := s.cancelPendingCard(ctx, tx, req.ID); err != nil {
				return err
			}
		}
		if err := s.moveRequest(ctx, tx, req, trigger, actorID); err != nil {
			return err
		}
		if trigger == TriggerCancel {
			payload := map[string]any{}
			if reason != "" {
				payload["reason"] = reason
			}
			if err := s.appendEvent(ctx, tx, models.RequestCancelledEvent, req.ID, req.ID, actorID, payload); err != nil {
				return err
			}
		}
		result = *req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *RequestService) cancelPendingCard(ctx context.Context, tx repository.Tx, requestID string) error {
	current, err := tx.PendingCard(ctx, requestID)
	if err != nil || current == nil {
		return err
	}
	_, err = tx.UpdateCardStatus(ctx, current.ID, models.PendingCard, models.CancelledCard)
	return err
}

// AddComment добавляет комментарий к заявке. Комментарии не влияют на переговоры.
func (s *RequestService) AddComment(ctx context.Context, requestID, actorID, body string) (*models.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, models.BadRequest("comment body is required")
	}
	comment := models.Comment{
		ID:        uuid.NewString(),
		RequestID: requestID,
		AuthorID:  actorID,
		Body:      body,
		CreatedAt: s.Now(),
	}
	err := s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		req, err := s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if _, err := s.authorizeParty(ctx, tx, req, actorID); err != nil {
			return err
		}
		return tx.InsertComment(ctx, comment)
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments возвращает комментарии к заявке.
func (s *RequestService) ListComments(ctx context.Context, requestID, actorID, limitStr, offsetStr string) ([]models.Comment, error) {
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.BadRequest(err.Error())
	}
	var comments []models.Comment
	err = s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		req, err := tx.GetRequest(ctx, requestID)
		if errors.Is(err, repository.ErrNotFound) {
			return models.ErrRequestNotFound
		}
		if err != nil {
			return err
		}
		if _, err := s.authorizeParty(ctx, tx, req, actorID); err != nil {
			return err
		}
		comments, err = tx.ListComments(ctx, requestID, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// RegisterProvider регистрирует исполнителя, которым владеет участник.
func (s *RequestService) RegisterProvider(ctx context.Context, actorID, displayName string) (*models.Provider, error) {
	if actorID == "" {
		return nil, models.NewErrorResponse(http.StatusUnauthorized, "actor is required")
	}
	if strings.TrimSpace(displayName) == "" {
		return nil, models.BadRequest("missing required fields: displayName")
	}
	p := models.Provider{
		ID:           uuid.NewString(),
		OwnerActorID: actorID,
		DisplayName:  displayName,
		CreatedAt:    s.Now(),
	}
	err := s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.InsertProvider(ctx, p)
	})
	if errors.Is(err, repository.ErrDuplicateProvider) {
		return nil, models.NewErrorResponse(http.StatusConflict, "actor already owns a provider")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
