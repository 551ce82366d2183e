package models

import "time"

type EventType string // Тип доменного события

const (
	ProposalCreatedEvent      EventType = "ProposalCreated"
	ResponseRecordedEvent     EventType = "ResponseRecorded"
	AgreementFinalizedEvent   EventType = "AgreementFinalized"
	RequestDeclinedEvent      EventType = "RequestDeclined"
	RequestCancelledEvent     EventType = "RequestCancelled"
	RequestStatusChangedEvent EventType = "RequestStatusChanged"
)

// DomainEvent - запись исходящего события (outbox).
type DomainEvent struct {
	ID          string         `json:"eventId"`
	Seq         int64          `json:"-"`
	Type        EventType      `json:"type"`
	RequestID   string         `json:"requestId"`
	EntityID    string         `json:"entityId"`
	ActorID     string         `json:"actorId"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"createdAt"`
	PublishedAt *time.Time     `json:"publishedAt,omitempty"`
}
