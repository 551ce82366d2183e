package services

import "github.com/senyabanana/engagement-service/internal/models"

// IsMutualAcceptance сообщает, что карточку приняли обе стороны: организатор и исполнитель.
// Если исполнитель ещё не определён (counterpartID пуст), подходит любой участник, кроме организатора.
// Функция не обращается к хранилищу.
func IsMutualAcceptance(organizerID, counterpartID string, responses []models.ResponseRecord) bool {
	var organizerAccepted, counterpartAccepted bool
	for _, r := range responses {
		if r.ResponseType != models.AcceptResponse {
			continue
		}
		switch {
		case r.RespondedBy == organizerID:
			organizerAccepted = true
		case counterpartID == "" || r.RespondedBy == counterpartID:
			counterpartAccepted = true
		}
	}
	return organizerAccepted && counterpartAccepted
}
