package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/partswatch/partswatch/internal/database"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

var brandColumns = []string{"id", "name", "slug", "url", "created_at", "updated_at"}

func TestTaxonomyRepository_SaveBrand(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewTaxonomyRepository(db)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO brands").
		WithArgs("Apple", "apple", "https://partsdepot.example").
		WillReturnRows(
			sqlmock.NewRows(brandColumns).AddRow(
				int64(7), "Apple", "apple", "https://partsdepot.example", now, now,
			),
		)

	brand, err := repo.SaveBrand(context.Background(), "Apple", "apple", "https://partsdepot.example")
	if err != nil {
		t.Fatalf("SaveBrand() error = %v", err)
	}
	if brand.ID != 7 {
		t.Errorf("expected ID=7, got %d", brand.ID)
	}
	if brand.Slug != "apple" {
		t.Errorf("expected Slug=apple, got %s", brand.Slug)
	}

	expectationsMet(t, mock)
}

func TestTaxonomyRepository_SaveBrand_Error(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewTaxonomyRepository(db)

	mock.ExpectQuery("INSERT INTO brands").
		WillReturnError(errors.New("connection refused"))

	if _, err := repo.SaveBrand(context.Background(), "Apple", "apple", ""); err == nil {
		t.Fatal("expected error, got nil")
	}

	expectationsMet(t, mock)
}

func TestTaxonomyRepository_SaveCategoryAndModel(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewTaxonomyRepository(db)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO categories").
		WithArgs(int64(7), "iPhone Parts", "iphone-parts", "https://partsdepot.example/c/iphone").
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "brand_id", "name", "slug", "url", "created_at", "updated_at"}).
				AddRow(int64(11), int64(7), "iPhone Parts", "iphone-parts", "https://partsdepot.example/c/iphone", now, now),
		)
	mock.ExpectQuery("INSERT INTO models").
		WithArgs(int64(11), "iPhone 13", "iphone-13", "https://partsdepot.example/c/iphone").
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "category_id", "name", "slug", "url", "created_at", "updated_at"}).
				AddRow(int64(23), int64(11), "iPhone 13", "iphone-13", "https://partsdepot.example/c/iphone", now, now),
		)

	category, err := repo.SaveCategory(context.Background(), 7, "iPhone Parts", "iphone-parts", "https://partsdepot.example/c/iphone")
	if err != nil {
		t.Fatalf("SaveCategory() error = %v", err)
	}
	if category.BrandID != 7 {
		t.Errorf("expected BrandID=7, got %d", category.BrandID)
	}

	model, err := repo.SaveModel(context.Background(), category.ID, "iPhone 13", "iphone-13", "https://partsdepot.example/c/iphone")
	if err != nil {
		t.Fatalf("SaveModel() error = %v", err)
	}
	if model.CategoryID != 11 {
		t.Errorf("expected CategoryID=11, got %d", model.CategoryID)
	}

	expectationsMet(t, mock)
}
