package models

import (
	"errors"
	"fmt"
)

var (
	ErrRequestNotFound    = errors.New("service request not found")
	ErrCardNotFound       = errors.New("proposal card not found")
	ErrProviderNotFound   = errors.New("provider not found")
	ErrNotParticipant     = errors.New("actor is not a party to this negotiation")
	ErrRequestClosed      = errors.New("service request is closed")
	ErrNoMutualAcceptance = errors.New("proposal card has not been accepted by both parties")
)

// LockedRequestError - заявка уже зафиксирована соглашением.
type LockedRequestError struct {
	RequestID string
}

func (e LockedRequestError) Error() string {
	return fmt.Sprintf("service request %s is locked by an agreement", e.RequestID)
}

// StaleProposalError - предложение ссылается не на текущую карточку.
type StaleProposalError struct {
	RequestID     string
	RespondsTo    string
	CurrentCardID string
}

func (e StaleProposalError) Error() string {
	if e.CurrentCardID == "" {
		return fmt.Sprintf("card %s is no longer current for request %s", e.RespondsTo, e.RequestID)
	}
	if e.RespondsTo == "" {
		return fmt.Sprintf("request %s already has a pending card %s", e.RequestID, e.CurrentCardID)
	}
	return fmt.Sprintf("card %s is stale for request %s, current card is %s", e.RespondsTo, e.RequestID, e.CurrentCardID)
}

// DuplicateResponseError - участник уже ответил на эту карточку.
type DuplicateResponseError struct {
	CardID  string
	ActorID string
}

func (e DuplicateResponseError) Error() string {
	return fmt.Sprintf("actor %s already responded to card %s", e.ActorID, e.CardID)
}

// AlreadyLockedError возвращается повторной финализацией. Для вызывающего это не ошибка.
type AlreadyLockedError struct {
	RequestID string
}

func (e AlreadyLockedError) Error() string {
	return fmt.Sprintf("service request %s is already finalized", e.RequestID)
}

// InvalidTransitionError - недопустимый переход статуса заявки.
type InvalidTransitionError struct {
	From RequestStatus
	To   RequestStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid request status transition %s -> %s", e.From, e.To)
}

// CardStatusConflictError - карточка уже в терминальном статусе.
type CardStatusConflictError struct {
	CardID  string
	Current CardStatus
	Wanted  CardStatus
}

func (e CardStatusConflictError) Error() string {
	return fmt.Sprintf("card %s is %s and cannot become %s", e.CardID, e.Current, e.Wanted)
}

// IsContention сообщает, что ошибка вызвана действием другого участника.
func IsContention(err error) bool {
	var dup DuplicateResponseError
	var stale StaleProposalError
	var conflict CardStatusConflictError
	return errors.As(err, &dup) || errors.As(err, &stale) || errors.As(err, &conflict)
}
