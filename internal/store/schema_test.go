package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openRaw(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "raw.db")+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestInitSchema_Fresh(t *testing.T) {
	db := openRaw(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	for _, table := range []string{"days", "hours", "waste", "schema_version"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s missing", table)
		}
	}
	v, err := getSchemaVersion(ctx, db)
	if err != nil || v != SchemaVersion {
		t.Errorf("schema version = %d, %v; want %d", v, err, SchemaVersion)
	}

	// Re-running on an initialized database is a no-op.
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("second InitSchema() error = %v", err)
	}
}

func TestInitSchema_MigratesV1(t *testing.T) {
	db := openRaw(t)
	ctx := context.Background()

	if _, err := db.Exec(schemaV1); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (1, datetime('now'))`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO days (id, day, started) VALUES ('old', 1, '2026-01-01T00:00:00Z')`); err != nil {
		t.Fatal(err)
	}

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if !tableExists(t, db, "waste") {
		t.Error("v2 migration did not add the waste table")
	}
	v, _ := getSchemaVersion(ctx, db)
	if v != SchemaVersion {
		t.Errorf("schema version = %d, want %d", v, SchemaVersion)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM days`).Scan(&n); err != nil || n != 1 {
		t.Errorf("existing days = %d, %v; want 1 kept", n, err)
	}
}

func TestValidateIntegrity_DanglingHour(t *testing.T) {
	db := openRaw(t)
	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO hours (day_id, hour, cost, avg_pmv, bill) VALUES ('ghost', 3, 1, 0, 1)`); err != nil {
		t.Fatal(err)
	}
	if err := ValidateIntegrity(ctx, db); err == nil {
		t.Error("ValidateIntegrity() = nil, want foreign key failure")
	}
}
