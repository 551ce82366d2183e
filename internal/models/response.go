package models

import "time"

type ResponseType string // Тип ответа на предложение

const (
	AcceptResponse  ResponseType = "accept"  // Согласие с условиями
	RejectResponse  ResponseType = "reject"  // Отказ
	CounterResponse ResponseType = "counter" // Встречное предложение
)

// Valid проверяет, что тип ответа известен.
func (t ResponseType) Valid() bool {
	return t == AcceptResponse || t == RejectResponse || t == CounterResponse
}

// ResponseRecord представляет ответ участника на конкретную карточку.
type ResponseRecord struct {
	ID            string       `json:"id" yaml:"id"`
	CardID        string       `json:"cardId" yaml:"cardId"`
	RespondedBy   string       `json:"respondedBy" yaml:"respondedBy"`
	ResponseType  ResponseType `json:"responseType" yaml:"responseType"`
	ResponseNotes *string      `json:"responseNotes,omitempty" yaml:"responseNotes,omitempty"`
	CreatedAt     time.Time    `json:"createdAt" yaml:"createdAt"`
}

// ResponseInput представляет структуру запроса для ответа на предложение.
type ResponseInput struct {
	ResponseType ResponseType `json:"responseType"`
	Notes        *string      `json:"notes,omitempty"`
	CounterTerms *Terms       `json:"counterTerms,omitempty"`
}

// ResponseOutcome описывает результат ответа: сам ответ и то, что он вызвал.
type ResponseOutcome struct {
	Response      ResponseRecord `json:"response"`
	CounterCard   *ProposalCard  `json:"counterCard,omitempty"`
	AgreementCard *ProposalCard  `json:"agreementCard,omitempty"`
	Request       ServiceRequest `json:"request"`
}
