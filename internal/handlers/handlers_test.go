package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/senyabanana/engagement-service/internal/auth"
	"github.com/senyabanana/engagement-service/internal/db"
	"github.com/senyabanana/engagement-service/internal/handlers"
	"github.com/senyabanana/engagement-service/internal/models"
	"github.com/senyabanana/engagement-service/internal/repository"
	"github.com/senyabanana/engagement-service/internal/router"
	"github.com/senyabanana/engagement-service/internal/router/config"
	"github.com/senyabanana/engagement-service/internal/services"
)

const (
	organizer = "org-1"
	vendor    = "vendor-1"
	secret    = "handler-secret"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engagement.db")
	if err := db.RunMigrations(config.DriverSQLite, "sqlite://"+path); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := repository.NewSQLiteStore(conn)
	t.Cleanup(func() { store.Close() })

	logger := log.New(io.Discard, "", 0)
	requestHandler := handlers.NewRequestHandler(services.NewRequestService(store, logger), logger, 5*time.Second)
	negotiationHandler := handlers.NewNegotiationHandler(services.NewNegotiationService(store, logger), logger, 5*time.Second)
	routes := router.InitRoutes(requestHandler, negotiationHandler, auth.Config{
		JWTSecret:        secret,
		AllowActorHeader: true,
		Logger:           logger,
	})

	srv := httptest.NewServer(routes)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, actor string, body any, out any) int {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, payload)
	if err != nil {
		t.Fatal(err)
	}
	if actor != "" {
		req.Header.Set("X-Actor-Id", actor)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func proposal(title string) models.ProposalInput {
	return models.ProposalInput{Terms: models.Terms{
		Title:       title,
		Description: "two photographers",
		Budget:      &models.BudgetRange{Min: 400000, Max: 500000, Currency: "USD"},
	}}
}

func TestPingIsPublic(t *testing.T) {
	srv := newServer(t)
	resp, err := srv.Client().Get(srv.URL + "/api/ping")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected ping response: %d %q", resp.StatusCode, body)
	}
}

func TestRequiresAuthentication(t *testing.T) {
	srv := newServer(t)
	var errResp models.ErrorResponse
	if code := call(t, srv, http.MethodGet, "/api/requests", "", nil, &errResp); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if errResp.Message == "" {
		t.Fatal("expected a reason in the error body")
	}
}

func TestBearerTokenIdentity(t *testing.T) {
	srv := newServer(t)
	token, err := auth.IssueToken(organizer, secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(models.ServiceRequestInput{Title: "Catering"})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/requests", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var created models.ServiceRequest
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated || created.OrganizerID != organizer {
		t.Fatalf("unexpected create result: %d %+v", resp.StatusCode, created)
	}
}

func TestNegotiationOverHTTP(t *testing.T) {
	srv := newServer(t)

	var provider models.Provider
	if code := call(t, srv, http.MethodPost, "/api/providers", vendor, map[string]string{"displayName": "Acme Photo"}, &provider); code != http.StatusCreated {
		t.Fatalf("register provider: %d", code)
	}

	var req models.ServiceRequest
	code := call(t, srv, http.MethodPost, "/api/requests", organizer,
		models.ServiceRequestInput{Title: "Wedding photography", ProviderID: &provider.ID}, &req)
	if code != http.StatusCreated || req.Status != models.PendingRequest {
		t.Fatalf("create request: %d %+v", code, req)
	}

	var card models.ProposalCard
	if code := call(t, srv, http.MethodPost, "/api/requests/"+req.ID+"/proposals", vendor, proposal("Initial offer"), &card); code != http.StatusCreated {
		t.Fatalf("submit proposal: %d", code)
	}
	if card.CardNumber != 1 {
		t.Fatalf("expected card #1, got %d", card.CardNumber)
	}

	var errResp models.ErrorResponse
	if code := call(t, srv, http.MethodPost, "/api/requests/"+req.ID+"/proposals", organizer, proposal("Another"), &errResp); code != http.StatusConflict {
		t.Fatalf("second pending proposal: expected 409, got %d", code)
	}

	accept := models.ResponseInput{ResponseType: models.AcceptResponse}
	var outcome models.ResponseOutcome
	if code := call(t, srv, http.MethodPost, "/api/cards/"+card.ID+"/responses", organizer, accept, &outcome); code != http.StatusOK {
		t.Fatalf("organizer accept: %d", code)
	}
	if outcome.AgreementCard != nil || outcome.Request.IsAgreementLocked {
		t.Fatal("single acceptance must not finalize")
	}

	if code := call(t, srv, http.MethodPost, "/api/cards/"+card.ID+"/responses", organizer, accept, &errResp); code != http.StatusConflict {
		t.Fatalf("duplicate response: expected 409, got %d", code)
	}
	if errResp.Message != "someone already acted on this" {
		t.Fatalf("unexpected duplicate message: %q", errResp.Message)
	}

	outcome = models.ResponseOutcome{}
	if code := call(t, srv, http.MethodPost, "/api/cards/"+card.ID+"/responses", vendor, accept, &outcome); code != http.StatusOK {
		t.Fatalf("vendor accept: %d", code)
	}
	if outcome.AgreementCard == nil || !outcome.Request.IsAgreementLocked || outcome.Request.Status != models.AgreedRequest {
		t.Fatalf("expected finalized agreement, got %+v", outcome)
	}

	errResp = models.ErrorResponse{}
	if code := call(t, srv, http.MethodPost, "/api/requests/"+req.ID+"/proposals", vendor, proposal("Late"), &errResp); code != http.StatusConflict {
		t.Fatalf("proposal after lock: expected 409, got %d", code)
	}
	if errResp.Message != "this engagement is already finalized" {
		t.Fatalf("unexpected locked message: %q", errResp.Message)
	}

	var result services.FinalizeResult
	if code := call(t, srv, http.MethodPost, "/api/cards/"+card.ID+"/finalize", organizer, nil, &result); code != http.StatusOK {
		t.Fatalf("finalize retry: %d", code)
	}
	if !result.AlreadyLocked {
		t.Fatal("finalize on a locked request must be a no-op")
	}

	var thread models.NegotiationThread
	if code := call(t, srv, http.MethodGet, "/api/requests/"+req.ID+"/thread", organizer, nil, &thread); code != http.StatusOK {
		t.Fatalf("thread: %d", code)
	}
	if len(thread.Cards) != 2 || thread.Cards[1].Status != models.AgreementCard {
		t.Fatalf("unexpected thread: %+v", thread.Cards)
	}
	if code := call(t, srv, http.MethodGet, "/api/requests/"+req.ID+"/thread", "stranger", nil, &errResp); code != http.StatusForbidden {
		t.Fatalf("thread for a stranger: expected 403, got %d", code)
	}
}

func TestDeliveryLifecycleOverHTTP(t *testing.T) {
	srv := newServer(t)

	var req models.ServiceRequest
	call(t, srv, http.MethodPost, "/api/requests", organizer, models.ServiceRequestInput{Title: "Venue setup"}, &req)
	var card models.ProposalCard
	call(t, srv, http.MethodPost, "/api/requests/"+req.ID+"/proposals", vendor, proposal("Setup"), &card)
	accept := models.ResponseInput{ResponseType: models.AcceptResponse}
	call(t, srv, http.MethodPost, "/api/cards/"+card.ID+"/responses", organizer, accept, nil)
	call(t, srv, http.MethodPost, "/api/cards/"+card.ID+"/responses", vendor, accept, nil)

	var errResp models.ErrorResponse
	if code := call(t, srv, http.MethodPost, "/api/requests/"+req.ID+"/complete", organizer, nil, &errResp); code != http.StatusConflict {
		t.Fatalf("complete before review: expected 409, got %d", code)
	}

	steps := []struct {
		path   string
		actor  string
		status models.RequestStatus
	}{
		{"/start", vendor, models.InProgressRequest},
		{"/submit_review", vendor, models.PendingReviewRequest},
		{"/complete", organizer, models.CompletedRequest},
	}
	for _, step := range steps {
		var got models.ServiceRequest
		if code := call(t, srv, http.MethodPost, "/api/requests/"+req.ID+step.path, step.actor, nil, &got); code != http.StatusOK {
			t.Fatalf("%s: %d", step.path, code)
		}
		if got.Status != step.status {
			t.Fatalf("%s: expected %s, got %s", step.path, step.status, got.Status)
		}
	}
}

func TestCommentsAndCancelOverHTTP(t *testing.T) {
	srv := newServer(t)

	var req models.ServiceRequest
	call(t, srv, http.MethodPost, "/api/requests", organizer, models.ServiceRequestInput{Title: "DJ"}, &req)

	var comment models.Comment
	if code := call(t, srv, http.MethodPost, "/api/requests/"+req.ID+"/comments", organizer, map[string]string{"body": "evening only"}, &comment); code != http.StatusCreated {
		t.Fatalf("add comment: %d", code)
	}
	var comments []models.Comment
	if code := call(t, srv, http.MethodGet, "/api/requests/"+req.ID+"/comments?limit=10", organizer, nil, &comments); code != http.StatusOK {
		t.Fatalf("list comments: %d", code)
	}
	if len(comments) != 1 || comments[0].Body != "evening only" {
		t.Fatalf("unexpected comments: %+v", comments)
	}

	var errResp models.ErrorResponse
	if code := call(t, srv, http.MethodPost, "/api/requests/"+req.ID+"/cancel", vendor, nil, &errResp); code != http.StatusForbidden {
		t.Fatalf("cancel by non-organizer: expected 403, got %d", code)
	}
	var cancelled models.ServiceRequest
	if code := call(t, srv, http.MethodPost, "/api/requests/"+req.ID+"/cancel", organizer, map[string]string{"reason": "date moved"}, &cancelled); code != http.StatusOK {
		t.Fatalf("cancel: %d", code)
	}
	if cancelled.Status != models.CancelledRequest {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newServer(t)
	var errResp models.ErrorResponse

	if code := call(t, srv, http.MethodGet, "/api/requests/missing", organizer, nil, &errResp); code != http.StatusNotFound {
		t.Fatalf("missing request: expected 404, got %d", code)
	}
	if code := call(t, srv, http.MethodPost, "/api/cards/missing/responses", organizer,
		models.ResponseInput{ResponseType: models.AcceptResponse}, &errResp); code != http.StatusNotFound {
		t.Fatalf("missing card: expected 404, got %d", code)
	}
	if code := call(t, srv, http.MethodPost, "/api/cards/missing/responses", organizer,
		models.ResponseInput{ResponseType: "maybe"}, &errResp); code != http.StatusBadRequest {
		t.Fatalf("bad response type: expected 400, got %d", code)
	}
	if code := call(t, srv, http.MethodGet, "/api/requests?limit=100", organizer, nil, &errResp); code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", code)
	}
	if code := call(t, srv, http.MethodPost, "/api/requests", organizer, models.ServiceRequestInput{}, &errResp); code != http.StatusBadRequest {
		t.Fatalf("missing title: expected 400, got %d", code)
	}
}
