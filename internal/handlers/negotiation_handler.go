package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/engagement-service/internal/models"
	"github.com/senyabanana/engagement-service/internal/services"
	"github.com/senyabanana/engagement-service/internal/utils"

	"github.com/go-chi/chi/v5"
)

// NegotiationHandler - структура для обработки HTTP-запросов по переговорам.
type NegotiationHandler struct {
	Service *services.NegotiationService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewNegotiationHandler создаёт новый экземпляр NegotiationHandler.
func NewNegotiationHandler(service *services.NegotiationService, logger *log.Logger, timeout time.Duration) *NegotiationHandler {
	return &NegotiationHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// SubmitProposal обрабатывает подачу предложения по заявке.
func (h *NegotiationHandler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var input models.ProposalInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	card, err := h.Service.SubmitProposal(ctx, chi.URLParam(r, "requestId"), actorID, input)
	if err != nil {
		sendServiceError(w, h.Logger, err, "failed to submit proposal")
		return
	}
	sendJSON(w, h.Logger, http.StatusCreated, card)
}

// Respond обрабатывает ответ на карточку: accept, reject или counter.
func (h *NegotiationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var input models.ResponseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.Service.Respond(ctx, chi.URLParam(r, "cardId"), actorID, input)
	if err != nil {
		sendServiceError(w, h.Logger, err, "failed to record response")
		return
	}
	sendJSON(w, h.Logger, http.StatusOK, outcome)
}

// Finalize обрабатывает повторный запуск финализации по карточке.
func (h *NegotiationHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	result, err := h.Service.Finalize(ctx, chi.URLParam(r, "cardId"), actorID)
	if err != nil {
		sendServiceError(w, h.Logger, err, "failed to finalize agreement")
		return
	}
	sendJSON(w, h.Logger, http.StatusOK, result)
}

// GetThread обрабатывает запросы для получения истории переговоров.
func (h *NegotiationHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	thread, err := h.Service.ViewThread(ctx, chi.URLParam(r, "requestId"), actorID)
	if err != nil {
		sendServiceError(w, h.Logger, err, "failed to fetch negotiation thread")
		return
	}
	sendJSON(w, h.Logger, http.StatusOK, thread)
}
