package services_test

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/senyabanana/engagement-service/internal/db"
	"github.com/senyabanana/engagement-service/internal/models"
	"github.com/senyabanana/engagement-service/internal/repository"
	"github.com/senyabanana/engagement-service/internal/router/config"
	"github.com/senyabanana/engagement-service/internal/services"
)

const (
	organizer = "org-1"
	vendor    = "vendor-1"
)

type testEnv struct {
	Negotiation *services.NegotiationService
	Requests    *services.RequestService
	Store       *repository.SQLiteStore
	Ctx         context.Context
}

func newTestEnv(t *testing.T) testEnv {
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
	now := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	negotiation := services.NewNegotiationService(store, logger)
	negotiation.Now = now
	requests := services.NewRequestService(store, logger)
	requests.Now = now
	return testEnv{Negotiation: negotiation, Requests: requests, Store: store, Ctx: context.Background()}
}

func (e testEnv) createRequest(t *testing.T, providerID *string) *models.ServiceRequest {
	t.Helper()
	req, err := e.Requests.CreateRequest(e.Ctx, organizer, models.ServiceRequestInput{
		Title:       "Wedding photography",
		Description: "Full day, two photographers",
		ProviderID:  providerID,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func (e testEnv) registerVendor(t *testing.T) *models.Provider {
	t.Helper()
	p, err := e.Requests.RegisterProvider(e.Ctx, vendor, "Acme Photo")
	if err != nil {
		t.Fatalf("register provider: %v", err)
	}
	return p
}

func terms(title string) models.Terms {
	timeline := "2 weeks"
	return models.Terms{
		Title:       title,
		Description: "coverage and editing",
		Budget:      &models.BudgetRange{Min: 500000, Max: 500000, Currency: "USD"},
		Timeline:    &timeline,
	}
}

func (e testEnv) submit(t *testing.T, requestID, actor string) *models.ProposalCard {
	t.Helper()
	card, err := e.Negotiation.SubmitProposal(e.Ctx, requestID, actor, models.ProposalInput{Terms: terms("Initial offer")})
	if err != nil {
		t.Fatalf("submit proposal: %v", err)
	}
	return card
}

func (e testEnv) respond(t *testing.T, cardID, actor string, typ models.ResponseType) *models.ResponseOutcome {
	t.Helper()
	input := models.ResponseInput{ResponseType: typ}
	if typ == models.CounterResponse {
		counter := terms("Counter offer")
		input.CounterTerms = &counter
	}
	outcome, err := e.Negotiation.Respond(e.Ctx, cardID, actor, input)
	if err != nil {
		t.Fatalf("respond %s by %s: %v", typ, actor, err)
	}
	return outcome
}

func (e testEnv) thread(t *testing.T, requestID string) *models.NegotiationThread {
	t.Helper()
	thread, err := e.Negotiation.GetThread(e.Ctx, requestID)
	if err != nil {
		t.Fatalf("get thread: %v", err)
	}
	return thread
}

func (e testEnv) eventCounts(t *testing.T) map[models.EventType]int {
	t.Helper()
	events, err := e.Store.ListUnpublishedEvents(e.Ctx, 1000)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	counts := make(map[models.EventType]int)
	for _, evt := range events {
		counts[evt.Type]++
	}
	return counts
}
