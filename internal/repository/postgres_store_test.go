package repository_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/senyabanana/engagement-service/internal/db"
	"github.com/senyabanana/engagement-service/internal/models"
	"github.com/senyabanana/engagement-service/internal/repository"
	"github.com/senyabanana/engagement-service/internal/router/config"

	"github.com/google/uuid"
)

func newPostgresStore(t *testing.T) *repository.PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	conn := os.Getenv("TEST_POSTGRES_CONN")
	if conn == "" {
		t.Skip("TEST_POSTGRES_CONN is not set")
	}
	if err := db.RunMigrations(config.DriverPostgres, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := db.InitDb(context.Background(), config.Config{PostgresConn: conn})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	store := repository.NewPostgresStore(pool)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresConcurrentCardInsertKeepsNumbersUnique(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	requestID := uuid.NewString()
	seedRequest(t, store, requestID)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.WithinTx(ctx, func(tx repository.Tx) error {
				if _, err := tx.LockRequest(ctx, requestID); err != nil {
					return err
				}
				_, err := tx.InsertCard(ctx, newCard(uuid.NewString(), requestID, models.CounteredCard))
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("insert card: %v", err)
		}
	}

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		cards, err := tx.ListCards(ctx, requestID)
		if err != nil {
			return err
		}
		if len(cards) != writers {
			t.Fatalf("expected %d cards, got %d", writers, len(cards))
		}
		for i, card := range cards {
			if card.CardNumber != i+1 {
				t.Fatalf("expected card number %d, got %d", i+1, card.CardNumber)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPostgresUniqueViolationsMapped(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	requestID := uuid.NewString()
	seedRequest(t, store, requestID)
	cardID := uuid.NewString()

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.InsertCard(ctx, newCard(cardID, requestID, models.PendingCard)); err != nil {
			return err
		}
		_, err := tx.InsertCard(ctx, newCard(uuid.NewString(), requestID, models.PendingCard))
		return err
	})
	if !errors.Is(err, repository.ErrPendingCardExists) {
		t.Fatalf("expected ErrPendingCardExists, got %v", err)
	}

	err = store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.InsertCard(ctx, newCard(cardID, requestID, models.PendingCard)); err != nil {
			return err
		}
		rec := models.ResponseRecord{ID: uuid.NewString(), CardID: cardID, RespondedBy: "org-1", ResponseType: models.AcceptResponse, CreatedAt: testNow}
		if err := tx.InsertResponse(ctx, rec); err != nil {
			return err
		}
		rec.ID = uuid.NewString()
		return tx.InsertResponse(ctx, rec)
	})
	if !errors.Is(err, repository.ErrDuplicateResponse) {
		t.Fatalf("expected ErrDuplicateResponse, got %v", err)
	}
}
