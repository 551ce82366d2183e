package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/senyabanana/engagement-service/internal/auth"
	"github.com/senyabanana/engagement-service/internal/models"
	"github.com/senyabanana/engagement-service/internal/utils"
)

const (
	msgContention = "someone already acted on this"
	msgFinalized  = "this engagement is already finalized"
)

// sendServiceError переводит ошибку сервиса в HTTP-ответ. fallback - сообщение для 500.
func sendServiceError(w http.ResponseWriter, logger *log.Logger, err error, fallback string) {
	logger.Println(err)

	var errorResponse *models.ErrorResponse
	var locked models.LockedRequestError
	var invalid models.InvalidTransitionError
	switch {
	case errors.As(err, &errorResponse):
		utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
	case models.IsContention(err):
		utils.SendErrorResponse(w, http.StatusConflict, msgContention)
	case errors.As(err, &locked):
		utils.SendErrorResponse(w, http.StatusConflict, msgFinalized)
	case errors.As(err, &invalid):
		utils.SendErrorResponse(w, http.StatusConflict, invalid.Error())
	case errors.Is(err, models.ErrRequestClosed):
		utils.SendErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrNoMutualAcceptance):
		utils.SendErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrRequestNotFound),
		errors.Is(err, models.ErrCardNotFound),
		errors.Is(err, models.ErrProviderNotFound):
		utils.SendErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrNotParticipant):
		utils.SendErrorResponse(w, http.StatusForbidden, err.Error())
	default:
		utils.SendErrorResponse(w, http.StatusInternalServerError, fallback)
	}
}

// actor возвращает участника запроса или отвечает 401.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.ActorFromContext(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
	}
	return id, ok
}

func sendJSON(w http.ResponseWriter, logger *log.Logger, statusCode int, body any) {
	if err := utils.SendJSON(w, statusCode, body); err != nil {
		logger.Println(err)
	}
}
