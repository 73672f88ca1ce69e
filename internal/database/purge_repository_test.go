package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/partswatch/partswatch/internal/database"
)

func TestPurgeRepository_DeleteAll(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewPurgeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM product_changes").
		WillReturnResult(sqlmock.NewResult(0, 120))
	mock.ExpectExec("DELETE FROM price_history").
		WillReturnResult(sqlmock.NewResult(0, 300))
	mock.ExpectExec("DELETE FROM products").
		WillReturnResult(sqlmock.NewResult(0, 45))
	mock.ExpectCommit()

	result, err := repo.Purge(context.Background(), database.PurgeOptions{
		DeleteAll:       true,
		IncludeProducts: true,
	})
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if result.ChangesDeleted != 120 {
		t.Errorf("expected 120 changes deleted, got %d", result.ChangesDeleted)
	}
	if result.PriceHistoryDeleted != 300 {
		t.Errorf("expected 300 history rows deleted, got %d", result.PriceHistoryDeleted)
	}
	if result.ProductsDeleted != 45 {
		t.Errorf("expected 45 products deleted, got %d", result.ProductsDeleted)
	}

	expectationsMet(t, mock)
}

func TestPurgeRepository_CutoffKeepsProducts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewPurgeRepository(db)

	days := 30
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM product_changes WHERE changed_at").
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec("DELETE FROM price_history WHERE recorded_at").
		WillReturnResult(sqlmock.NewResult(0, 25))
	mock.ExpectCommit()

	result, err := repo.Purge(context.Background(), database.PurgeOptions{OlderThanDays: &days})
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if result.ProductsDeleted != 0 {
		t.Errorf("expected no products deleted, got %d", result.ProductsDeleted)
	}

	expectationsMet(t, mock)
}

func TestPurgeRepository_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewPurgeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM product_changes").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	if _, err := repo.Purge(context.Background(), database.PurgeOptions{DeleteAll: true}); err == nil {
		t.Fatal("expected error, got nil")
	}

	expectationsMet(t, mock)
}
