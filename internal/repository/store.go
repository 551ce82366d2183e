package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/engagement-service/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateResponse = errors.New("response already recorded for this card and actor")
	ErrPendingCardExists = errors.New("request already has a pending card")
	ErrCardNumberTaken   = errors.New("card number already taken")
	ErrDuplicateProvider = errors.New("actor already owns a provider")
)

// Store - хранилище переговоров. Все изменения выполняются внутри WithinTx.
type Store interface {
	// WithinTx выполняет fn в одной транзакции: commit при nil, rollback при ошибке.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// ListUnpublishedEvents возвращает неотправленные события в порядке записи.
	ListUnpublishedEvents(ctx context.Context, limit int) ([]models.DomainEvent, error)
	// MarkEventsPublished помечает события отправленными.
	MarkEventsPublished(ctx context.Context, ids []string, at time.Time) error
	Close() error
}

// Tx - операции над заявками, карточками и ответами в рамках транзакции.
type Tx interface {
	RequestRepository
	CardRepository
	ResponseRepository
	CommentRepository
	ProviderRepository
	EventRepository
}

// RequestRepository - интерфейс для работы с заявками.
type RequestRepository interface {
	InsertRequest(ctx context.Context, req models.ServiceRequest) error
	GetRequest(ctx context.Context, id string) (*models.ServiceRequest, error)
	// LockRequest читает заявку и блокирует её строку до конца транзакции.
	LockRequest(ctx context.Context, id string) (*models.ServiceRequest, error)
	// UpdateRequestState меняет статус, флаг блокировки и исполнителя, только если текущий
	// статус равен from. Возвращает false, если строка не изменилась.
	UpdateRequestState(ctx context.Context, id string, from models.RequestStatus, next RequestState) (bool, error)
	ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.ServiceRequest, error)
}

// RequestState - новые значения изменяемых полей заявки.
type RequestState struct {
	Status     models.RequestStatus
	Locked     bool
	ProviderID *string
	UpdatedAt  time.Time
}

// CardRepository - интерфейс для работы с карточками предложений.
type CardRepository interface {
	// InsertCard присваивает card_number одной условной записью и возвращает его.
	InsertCard(ctx context.Context, card models.ProposalCard) (int, error)
	GetCard(ctx context.Context, id string) (*models.ProposalCard, error)
	ListCards(ctx context.Context, requestID string) ([]models.ProposalCard, error)
	// PendingCard возвращает текущую карточку заявки или nil.
	PendingCard(ctx context.Context, requestID string) (*models.ProposalCard, error)
	// AgreementCardFor возвращает карточку соглашения, созданную для cardID, или nil.
	AgreementCardFor(ctx context.Context, cardID string) (*models.ProposalCard, error)
	// UpdateCardStatus меняет статус, только если текущий равен from.
	UpdateCardStatus(ctx context.Context, id string, from, to models.CardStatus) (bool, error)
}

// ResponseRepository - интерфейс для работы с ответами на карточки.
type ResponseRepository interface {
	// InsertResponse возвращает ErrDuplicateResponse при нарушении уникальности (card_id, responded_by).
	InsertResponse(ctx context.Context, rec models.ResponseRecord) error
	GetResponse(ctx context.Context, cardID, actorID string) (*models.ResponseRecord, error)
	ListResponses(ctx context.Context, cardID string) ([]models.ResponseRecord, error)
	ListRequestResponses(ctx context.Context, requestID string) ([]models.ResponseRecord, error)
}

// CommentRepository - интерфейс для работы с комментариями.
type CommentRepository interface {
	InsertComment(ctx context.Context, c models.Comment) error
	ListComments(ctx context.Context, requestID string, limit, offset int) ([]models.Comment, error)
}

// ProviderRepository - справочник исполнителей.
type ProviderRepository interface {
	InsertProvider(ctx context.Context, p models.Provider) error
	GetProvider(ctx context.Context, id string) (*models.Provider, error)
	ProviderByOwner(ctx context.Context, actorID string) (*models.Provider, error)
}

// EventRepository - запись событий в outbox в той же транзакции.
type EventRepository interface {
	AppendEvent(ctx context.Context, evt models.DomainEvent) error
}

func requestStatusStrings(statuses []models.RequestStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
