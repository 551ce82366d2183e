package services

import (
	"github.com/senyabanana/engagement-service/internal/models"
	"github.com/senyabanana/engagement-service/internal/utils"
)

type Trigger string // Событие, которое двигает заявку по статусам

const (
	TriggerFirstProposal Trigger = "first_proposal" // Подана первая карточка
	TriggerFinalize      Trigger = "finalize"       // Соглашение зафиксировано
	TriggerDecline       Trigger = "decline"        // Отказ без открытой цепочки
	TriggerCancel        Trigger = "cancel"         // Отмена организатором
	TriggerStartWork     Trigger = "start_work"
	TriggerSubmitReview  Trigger = "submit_review"
	TriggerComplete      Trigger = "complete"
)

var allowedStatusTransition = map[models.RequestStatus][]models.RequestStatus{
	models.PendingRequest:       {models.NegotiatingRequest, models.CancelledRequest},
	models.NegotiatingRequest:   {models.AgreedRequest, models.DeclinedRequest, models.CancelledRequest},
	models.AgreedRequest:        {models.InProgressRequest, models.CancelledRequest},
	models.InProgressRequest:    {models.PendingReviewRequest, models.CancelledRequest},
	models.PendingReviewRequest: {models.CompletedRequest, models.CancelledRequest},
	models.CompletedRequest:     {},
	models.DeclinedRequest:      {},
	models.CancelledRequest:     {},
}

// Статус agreed достижим только через TriggerFinalize.
var triggerTarget = map[Trigger]models.RequestStatus{
	TriggerFirstProposal: models.NegotiatingRequest,
	TriggerFinalize:      models.AgreedRequest,
	TriggerDecline:       models.DeclinedRequest,
	TriggerCancel:        models.CancelledRequest,
	TriggerStartWork:     models.InProgressRequest,
	TriggerSubmitReview:  models.PendingReviewRequest,
	TriggerComplete:      models.CompletedRequest,
}

// CanTransition проверяет, что переход from -> to разрешён.
func CanTransition(from, to models.RequestStatus) bool {
	return utils.Contains(allowedStatusTransition[from], to)
}

// NextStatus возвращает статус, в который заявку переводит trigger.
func NextStatus(from models.RequestStatus, trigger Trigger) (models.RequestStatus, error) {
	to, ok := triggerTarget[trigger]
	if !ok || !CanTransition(from, to) {
		return from, models.InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}
