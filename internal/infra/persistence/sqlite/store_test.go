package sqlite

import (
	"chemlab/pkg/domain"
	"context"
	"path/filepath"
	"testing"
)

func seedReagent(t *testing.T, store *Store, name string) {
	t.Helper()
	reagent, err := domain.NewReagent(domain.ReagentSpec{
		Name:         name,
		Description:  "persisted reagent",
		Cost:         1.5,
		Category:     "solvents",
		Inventory:    80,
		Unit:         "ml",
		MinThreshold: 10,
	})
	if err != nil {
		t.Fatalf("new reagent: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.PutReagent(reagent)
		return err
	}); err != nil {
		t.Fatalf("put reagent: %v", err)
	}
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	seedReagent(t, store, "Acetone")
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	got, err := reloaded.GetReagent(context.Background(), "Acetone")
	if err != nil {
		t.Fatalf("expected reagent to survive reload, got %v", err)
	}
	if got.Inventory != 80 {
		t.Fatalf("expected inventory 80 after reload, got %v", got.Inventory)
	}
}

func TestSQLiteStoreCreatesStateTable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var tableName string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='state'").Scan(&tableName); err != nil {
		t.Fatalf("lookup state table: %v", err)
	}
	if tableName != "state" {
		t.Fatalf("expected state table, got %s", tableName)
	}
}

func TestSQLiteStoreWritesAllBuckets(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	seedReagent(t, store, "Ethanol")
	var count int
	if err := store.DB().QueryRow("SELECT COUNT(*) FROM state").Scan(&count); err != nil {
		t.Fatalf("count buckets: %v", err)
	}
	if count != len(sqliteBuckets) {
		t.Fatalf("expected %d buckets, got %d", len(sqliteBuckets), count)
	}
}
