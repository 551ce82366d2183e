package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/senyabanana/engagement-service/internal/db"
	"github.com/senyabanana/engagement-service/internal/models"
	"github.com/senyabanana/engagement-service/internal/repository"
	"github.com/senyabanana/engagement-service/internal/router/config"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) *repository.SQLiteStore {
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
	return store
}

func seedRequest(t *testing.T, store repository.Store, id string) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(tx repository.Tx) error {
		return tx.InsertRequest(context.Background(), models.ServiceRequest{
			ID:          id,
			OrganizerID: "org-1",
			Title:       "Catering",
			Status:      models.PendingRequest,
			CreatedAt:   testNow,
			UpdatedAt:   testNow,
		})
	})
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}
}

func newCard(id, requestID string, status models.CardStatus) models.ProposalCard {
	timeline := "two weeks"
	return models.ProposalCard{
		ID:          id,
		RequestID:   requestID,
		SubmittedBy: "org-1",
		Status:      status,
		Terms: models.Terms{
			Title:    "Catering for 50",
			Budget:   &models.BudgetRange{Min: 100000, Max: 150000, Currency: "USD"},
			Timeline: &timeline,
		},
		CreatedAt: testNow,
	}
}

func TestInsertCardAssignsSequentialNumbers(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	seedRequest(t, store, "req-1")

	var numbers []int
	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		for i, id := range []string{"card-1", "card-2", "card-3"} {
			status := models.CounteredCard
			if i == 2 {
				status = models.PendingCard
			}
			n, err := tx.InsertCard(ctx, newCard(id, "req-1", status))
			if err != nil {
				return err
			}
			numbers = append(numbers, n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert cards: %v", err)
	}
	if len(numbers) != 3 || numbers[0] != 1 || numbers[1] != 2 || numbers[2] != 3 {
		t.Fatalf("expected 1,2,3 got %v", numbers)
	}

	err = store.WithinTx(ctx, func(tx repository.Tx) error {
		card, err := tx.GetCard(ctx, "card-1")
		if err != nil {
			return err
		}
		if card.Terms.Budget == nil || card.Terms.Budget.Max != 150000 || card.Terms.Budget.Currency != "USD" {
			t.Fatalf("budget not round-tripped: %+v", card.Terms.Budget)
		}
		if card.Terms.Timeline == nil || *card.Terms.Timeline != "two weeks" {
			t.Fatalf("timeline not round-tripped")
		}
		if !card.CreatedAt.Equal(testNow) {
			t.Fatalf("created_at mismatch: %s", card.CreatedAt)
		}
		pending, err := tx.PendingCard(ctx, "req-1")
		if err != nil {
			return err
		}
		if pending == nil || pending.ID != "card-3" {
			t.Fatalf("expected card-3 pending, got %+v", pending)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSecondPendingCardRejected(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	seedRequest(t, store, "req-1")

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.InsertCard(ctx, newCard("card-1", "req-1", models.PendingCard)); err != nil {
			return err
		}
		_, err := tx.InsertCard(ctx, newCard("card-2", "req-1", models.PendingCard))
		return err
	})
	if !errors.Is(err, repository.ErrPendingCardExists) {
		t.Fatalf("expected ErrPendingCardExists, got %v", err)
	}
}

func TestDuplicateResponseMapped(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	seedRequest(t, store, "req-1")

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.InsertCard(ctx, newCard("card-1", "req-1", models.PendingCard)); err != nil {
			return err
		}
		rec := models.ResponseRecord{ID: "resp-1", CardID: "card-1", RespondedBy: "org-1", ResponseType: models.AcceptResponse, CreatedAt: testNow}
		if err := tx.InsertResponse(ctx, rec); err != nil {
			return err
		}
		rec.ID = "resp-2"
		rec.ResponseType = models.RejectResponse
		return tx.InsertResponse(ctx, rec)
	})
	if !errors.Is(err, repository.ErrDuplicateResponse) {
		t.Fatalf("expected ErrDuplicateResponse, got %v", err)
	}
}

func TestConditionalUpdates(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	seedRequest(t, store, "req-1")

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.InsertCard(ctx, newCard("card-1", "req-1", models.PendingCard)); err != nil {
			return err
		}
		ok, err := tx.UpdateCardStatus(ctx, "card-1", models.PendingCard, models.AcceptedCard)
		if err != nil || !ok {
			t.Fatalf("first card update: ok=%v err=%v", ok, err)
		}
		ok, err = tx.UpdateCardStatus(ctx, "card-1", models.PendingCard, models.CancelledCard)
		if err != nil || ok {
			t.Fatalf("second card update must not apply: ok=%v err=%v", ok, err)
		}

		ok, err = tx.UpdateRequestState(ctx, "req-1", models.NegotiatingRequest, repository.RequestState{
			Status: models.AgreedRequest, Locked: true, UpdatedAt: testNow,
		})
		if err != nil || ok {
			t.Fatalf("update from wrong status must not apply: ok=%v err=%v", ok, err)
		}
		ok, err = tx.UpdateRequestState(ctx, "req-1", models.PendingRequest, repository.RequestState{
			Status: models.NegotiatingRequest, UpdatedAt: testNow,
		})
		if err != nil || !ok {
			t.Fatalf("request update: ok=%v err=%v", ok, err)
		}
		req, err := tx.GetRequest(ctx, "req-1")
		if err != nil {
			return err
		}
		if req.Status != models.NegotiatingRequest || req.IsAgreementLocked {
			t.Fatalf("unexpected request state: %+v", req)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRollbackOnError(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	seedRequest(t, store, "req-1")

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.InsertCard(ctx, newCard("card-1", "req-1", models.PendingCard)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	err = store.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := tx.GetCard(ctx, "card-1")
		return err
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected card to be rolled back, got %v", err)
	}
}

func TestListRequestsFilter(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	seedRequest(t, store, "req-1")
	seedRequest(t, store, "req-2")

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := tx.UpdateRequestState(ctx, "req-2", models.PendingRequest, repository.RequestState{
			Status: models.CancelledRequest, UpdatedAt: testNow,
		})
		if err != nil {
			return err
		}
		list, err := tx.ListRequests(ctx, models.RequestFilter{
			Statuses: []models.RequestStatus{models.PendingRequest, models.NegotiatingRequest},
			Limit:    10,
		})
		if err != nil {
			return err
		}
		if len(list) != 1 || list[0].ID != "req-1" {
			t.Fatalf("expected only req-1, got %+v", list)
		}
		list, err = tx.ListRequests(ctx, models.RequestFilter{OrganizerID: "org-1", Limit: 10})
		if err != nil {
			return err
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(list))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestOutboxListAndMark(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
			err := tx.AppendEvent(ctx, models.DomainEvent{
				ID:        id,
				Type:      models.ProposalCreatedEvent,
				RequestID: "req-1",
				EntityID:  "card-1",
				ActorID:   "org-1",
				Payload:   map[string]any{"cardNumber": 1},
				CreatedAt: testNow,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append events: %v", err)
	}

	events, err := store.ListUnpublishedEvents(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[0].ID != "evt-1" || events[1].ID != "evt-2" {
		t.Fatalf("unexpected batch: %+v", events)
	}
	if events[0].Payload["cardNumber"] != float64(1) {
		t.Fatalf("payload not decoded: %+v", events[0].Payload)
	}
	if err := store.MarkEventsPublished(ctx, []string{"evt-1", "evt-2"}, testNow); err != nil {
		t.Fatalf("mark: %v", err)
	}
	events, err = store.ListUnpublishedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].ID != "evt-3" {
		t.Fatalf("expected only evt-3 left, got %+v", events)
	}
}

func TestProviderDirectory(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		p := models.Provider{ID: "prov-1", OwnerActorID: "vendor-1", DisplayName: "Acme", CreatedAt: testNow}
		if err := tx.InsertProvider(ctx, p); err != nil {
			return err
		}
		got, err := tx.ProviderByOwner(ctx, "vendor-1")
		if err != nil {
			return err
		}
		if got.ID != "prov-1" {
			t.Fatalf("unexpected provider: %+v", got)
		}
		p.ID = "prov-2"
		return tx.InsertProvider(ctx, p)
	})
	if !errors.Is(err, repository.ErrDuplicateProvider) {
		t.Fatalf("expected ErrDuplicateProvider, got %v", err)
	}
}
