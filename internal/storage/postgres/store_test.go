package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/worldcore/internal/domain/entity"
)

func TestCreateEntityGeneratesInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("INSERT INTO entities").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	store := New(sqlx.NewDb(db, "postgres"))
	got, err := store.CreateEntity(context.Background(), entity.Entity{Kind: entity.KindRoom, Properties: map[string]any{"name": "Lobby"}})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	if got.ID != 7 {
		t.Fatalf("expected id 7, got %d", got.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// TestStoreIntegration creates an entity against a live Postgres instance
// when TEST_POSTGRES_DSN is set; otherwise it is skipped,
// matching the teacher's integration test posture.
func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := New(db)

	room, err := store.CreateEntity(ctx, entity.Entity{Kind: entity.KindRoom, Properties: map[string]any{"name": "Lobby"}})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	if room.ID == 0 {
		t.Fatalf("expected nonzero id")
	}
}
