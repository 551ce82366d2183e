package models

import "time"

type RequestStatus string // Статус заявки на услугу

const (
	PendingRequest       RequestStatus = "pending"        // Заявка создана, предложений ещё нет
	NegotiatingRequest   RequestStatus = "negotiating"    // Идут переговоры
	AgreedRequest        RequestStatus = "agreed"         // Стороны договорились, условия зафиксированы
	InProgressRequest    RequestStatus = "in_progress"    // Работа выполняется
	PendingReviewRequest RequestStatus = "pending_review" // Работа сдана на проверку
	CompletedRequest     RequestStatus = "completed"      // Работа принята
	DeclinedRequest      RequestStatus = "declined"       // Переговоры завершились отказом
	CancelledRequest     RequestStatus = "cancelled"      // Заявка отменена организатором
)

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s RequestStatus) IsTerminal() bool {
	return s == CompletedRequest || s == DeclinedRequest || s == CancelledRequest
}

// AllowsLock перечисляет статусы, в которых заявка может быть заблокирована соглашением.
func (s RequestStatus) AllowsLock() bool {
	switch s {
	case AgreedRequest, InProgressRequest, PendingReviewRequest, CompletedRequest:
		return true
	}
	return false
}

// ServiceRequest представляет модель заявки на услугу.
type ServiceRequest struct {
	ID                string        `json:"id" yaml:"id"`
	OrganizerID       string        `json:"organizerId" yaml:"organizerId"`
	ProviderID        *string       `json:"providerId,omitempty" yaml:"providerId,omitempty"`
	Title             string        `json:"title" yaml:"title"`
	Description       string        `json:"description" yaml:"description"`
	Status            RequestStatus `json:"status" yaml:"status"`
	IsAgreementLocked bool          `json:"isAgreementLocked" yaml:"isAgreementLocked"`
	CreatedAt         time.Time     `json:"createdAt" yaml:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt" yaml:"updatedAt"`
}

// ServiceRequestInput представляет структуру запроса для создания заявки.
type ServiceRequestInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ProviderID  *string `json:"providerId,omitempty"`
}

// RequestFilter задаёт условия выборки заявок.
type RequestFilter struct {
	Statuses    []RequestStatus
	OrganizerID string
	ProviderID  string
	Limit       int
	Offset      int
}
