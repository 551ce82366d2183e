package models

import "time"

type CardStatus string // Статус карточки предложения

const (
	PendingCard   CardStatus = "pending"   // Текущее предложение, ждёт ответа
	AcceptedCard  CardStatus = "accepted"  // Предложение принято обеими сторонами
	CounteredCard CardStatus = "countered" // На предложение ответили встречным
	CancelledCard CardStatus = "cancelled" // Предложение отклонено или отозвано
	AgreementCard CardStatus = "agreement" // Итоговая карточка соглашения
)

// IsTerminal сообщает, что статус карточки больше не меняется.
func (s CardStatus) IsTerminal() bool {
	return s != PendingCard
}

// BudgetRange описывает бюджет в минимальных единицах валюты.
type BudgetRange struct {
	Min      int64  `json:"min" yaml:"min"`
	Max      int64  `json:"max" yaml:"max"`
	Currency string `json:"currency" yaml:"currency"`
}

// Terms представляет обсуждаемые условия.
type Terms struct {
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description" yaml:"description"`
	Budget      *BudgetRange `json:"budget,omitempty" yaml:"budget,omitempty"`
	Timeline    *string      `json:"timeline,omitempty" yaml:"timeline,omitempty"`
}

// ProposalCard представляет модель одной версии предложения.
type ProposalCard struct {
	ID               string     `json:"id" yaml:"id"`
	RequestID        string     `json:"requestId" yaml:"requestId"`
	SubmittedBy      string     `json:"submittedBy" yaml:"submittedBy"`
	CardNumber       int        `json:"cardNumber" yaml:"cardNumber"`
	Status           CardStatus `json:"status" yaml:"status"`
	Terms            Terms      `json:"terms" yaml:"terms"`
	ResponseToCardID *string    `json:"responseToCardId,omitempty" yaml:"responseToCardId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt" yaml:"createdAt"`
}

// ProposalInput представляет структуру запроса для подачи предложения.
type ProposalInput struct {
	Terms      Terms   `json:"terms"`
	RespondsTo *string `json:"respondsTo,omitempty"`
}
