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

// RequestHandler - структура для обработки HTTP-запросов по заявкам.
type RequestHandler struct {
	Service *services.RequestService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewRequestHandler создаёт новый экземпляр RequestHandler.
func NewRequestHandler(service *services.RequestService, logger *log.Logger, timeout time.Duration) *RequestHandler {
	return &RequestHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// CreateRequest обрабатывает запросы для создания заявки.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var input models.ServiceRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.Service.CreateRequest(ctx, actorID, input)
	if err != nil {
		sendServiceError(w, h.Logger, err, "failed to create service request")
		return
	}
	sendJSON(w, h.Logger, http.StatusCreated, req)
}

// ListRequests обрабатывает запросы для получения списка заявок.
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	query := r.URL.Query()
	requests, err := h.Service.ListRequests(ctx, query["status"], query.Get("organizer"), query.Get("provider"),
		query.Get("limit"), query.Get("offset"))
	if err != nil {
		sendServiceError(w, h.Logger, err, "failed to fetch service requests")
		return
	}
	sendJSON(w, h.Logger, http.StatusOK, requests)
}

// GetRequest обрабатывает запросы для получения заявки.
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	req, err := h.Service.GetRequest(ctx, chi.URLParam(r, "requestId"))
	if err != nil {
		sendServiceError(w, h.Logger, err, "failed to fetch service request")
		return
	}
	sendJSON(w, h.Logger, http.StatusOK, req)
}

type cancelBody struct {
	Reason string `json:"reason"`
}

// CancelRequest обрабатывает запросы для отмены заявки. Тело запроса необязательно.
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var body cancelBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	req, err := h.Service.CancelRequest(ctx, chi.URLParam(r, "requestId"), actorID, body.Reason)
	if err != nil {
		sendServiceError(w, h.Logger, err, "failed to cancel service request")
		return
	}
	sendJSON(w, h.Logger, http.StatusOK, req)
}

// StartWork обрабатывает перевод заявки в работу.
func (h *RequestHandler) StartWork(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.StartWork, "failed to start work")
}

// SubmitForReview обрабатывает сдачу работы на проверку.
func (h *RequestHandler) SubmitForReview(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.SubmitForReview, "failed to submit work for review")
}

// Complete обрабатывает приёмку работы.
func (h *RequestHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Complete, "failed to complete service request")
}

func (h *RequestHandler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, requestID, actorID string) (*models.ServiceRequest, error), fallback string) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	req, err := fn(ctx, chi.URLParam(r, "requestId"), actorID)
	if err != nil {
		sendServiceError(w, h.Logger, err, fallback)
		return
	}
	sendJSON(w, h.Logger, http.StatusOK, req)
}

type commentBody struct {
	Body string `json:"body"`
}

// AddComment обрабатывает запросы для добавления комментария.
func (h *RequestHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var body commentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	comment, err := h.Service.AddComment(ctx, chi.URLParam(r, "requestId"), actorID, body.Body)
	if err != nil {
		sendServiceError(w, h.Logger, err, "failed to add comment")
		return
	}
	sendJSON(w, h.Logger, http.StatusCreated, comment)
}

// ListComments обрабатывает запросы для получения комментариев.
func (h *RequestHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	comments, err := h.Service.ListComments(ctx, chi.URLParam(r, "requestId"), actorID,
		r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		sendServiceError(w, h.Logger, err, "failed to fetch comments")
		return
	}
	sendJSON(w, h.Logger, http.StatusOK, comments)
}

type providerBody struct {
	DisplayName string `json:"displayName"`
}

// RegisterProvider обрабатывает регистрацию исполнителя в справочнике.
func (h *RequestHandler) RegisterProvider(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var body providerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	provider, err := h.Service.RegisterProvider(ctx, actorID, body.DisplayName)
	if err != nil {
		sendServiceError(w, h.Logger, err, "failed to register provider")
		return
	}
	sendJSON(w, h.Logger, http.StatusCreated, provider)
}
