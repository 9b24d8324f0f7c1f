package db_test

import (
	"context"
	"testing"

	"github.com/onnwee/streamlytics/db"
	"github.com/onnwee/streamlytics/testutil"
)

func TestMigrateIdempotent(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	// Running the embedded migration repeatedly must not fail.
	for i := 0; i < 3; i++ {
		if err := db.Migrate(ctx, database); err != nil {
			t.Fatalf("Migrate() pass %d error = %v", i, err)
		}
	}

	for _, table := range []string{"etl_runs", "kv"} {
		var n int
		if err := database.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = $1`, table).Scan(&n); err != nil {
			t.Fatalf("inspect table %s: %v", table, err)
		}
		if n != 1 {
			t.Errorf("table %s missing after migrate", table)
		}
	}
}

func TestKVRoundTrip(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	got, err := db.GetKV(ctx, database, "absent")
	if err != nil {
		t.Fatalf("GetKV(absent) error = %v", err)
	}
	if got != "" {
		t.Errorf("GetKV(absent) = %q, want empty", got)
	}

	if err := db.SetKV(ctx, database, "k", "v1"); err != nil {
		t.Fatalf("SetKV() error = %v", err)
	}
	if err := db.SetKV(ctx, database, "k", "v2"); err != nil {
		t.Fatalf("SetKV() upsert error = %v", err)
	}
	got, err = db.GetKV(ctx, database, "k")
	if err != nil {
		t.Fatalf("GetKV() error = %v", err)
	}
	if got != "v2" {
		t.Errorf("GetKV() = %q, want v2 after upsert", got)
	}
}
