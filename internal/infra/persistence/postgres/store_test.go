package postgres

import (
	"chemlab/pkg/domain"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
)

// stubConn implements just enough of database/sql/driver to satisfy the
// snapshotting store: every statement succeeds, SELECTs return no rows, and
// executed statements plus bucket upserts are recorded for assertions.
type stubConn struct {
	mu       sync.Mutex
	execs    []string
	buckets  map[string][]byte
	failExec bool
}

type stubDriver struct{ conn *stubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return &stubStmt{conn: c, query: query}, nil
}

func (c *stubConn) Close() error              { return nil }
func (c *stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

func (c *stubConn) Ping(context.Context) error { return nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubStmt struct {
	conn  *stubConn
	query string
}

func (s *stubStmt) Close() error  { return nil }
func (s *stubStmt) NumInput() int { return -1 }

func (s *stubStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.conn.failExec {
		return nil, fmt.Errorf("exec refused: %s", s.query)
	}
	s.conn.execs = append(s.conn.execs, s.query)
	if strings.Contains(s.query, "INSERT INTO state") && len(args) == 2 {
		bucket, _ := args[0].(string)
		payload, _ := args[1].([]byte)
		if s.conn.buckets == nil {
			s.conn.buckets = map[string][]byte{}
		}
		s.conn.buckets[bucket] = append([]byte(nil), payload...)
	}
	return driver.RowsAffected(1), nil
}

func (s *stubStmt) Query([]driver.Value) (driver.Rows, error) {
	return emptyRows{}, nil
}

type emptyRows struct{}

func (emptyRows) Columns() []string         { return []string{"bucket", "payload"} }
func (emptyRows) Close() error              { return nil }
func (emptyRows) Next([]driver.Value) error { return io.EOF }

var registerOnce sync.Once

func newStubDB(t *testing.T) (*sql.DB, *stubConn) {
	t.Helper()
	conn := &stubConn{}
	registerOnce.Do(func() {
		sql.Register("chemlab-stub", &registryDriver{})
	})
	registry.set(conn)
	db, err := sql.Open("chemlab-stub", "stub")
	if err != nil {
		t.Fatalf("open stub: %v", err)
	}
	return db, conn
}

// registryDriver indirects through a swappable connection so each test gets a
// fresh recorder behind the single registered driver name.
type registryDriver struct{}

func (registryDriver) Open(string) (driver.Conn, error) { return registry.get(), nil }

var registry = connRegistry{}

type connRegistry struct {
	mu   sync.Mutex
	conn *stubConn
}

func (r *connRegistry) set(c *stubConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn = c
}

func (r *connRegistry) get() *stubConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

func TestNewStoreOpenError(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return nil, errors.New("open fail")
	})
	defer restore()
	if _, err := NewStore("", domain.NewRulesEngine()); err == nil || !strings.Contains(err.Error(), "open fail") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestNewStoreEnsuresStateTable(t *testing.T) {
	db, conn := newStubDB(t)
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore("", domain.NewRulesEngine()); err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	var sawDDL bool
	for _, stmt := range conn.execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS STATE") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL, got execs: %v", conn.execs)
	}
}

func TestRunInTransactionPersistsBuckets(t *testing.T) {
	db, conn := newStubDB(t)
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	reagent, err := domain.NewReagent(domain.ReagentSpec{
		Name:         "Nitric acid",
		Description:  "oxidizer",
		Cost:         4,
		Category:     "acids",
		Inventory:    25,
		Unit:         "ml",
		MinThreshold: 5,
	})
	if err != nil {
		t.Fatalf("new reagent: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.PutReagent(reagent)
		return err
	}); err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	for _, bucket := range postgresBuckets {
		if _, ok := conn.buckets[bucket]; !ok {
			t.Fatalf("expected bucket %q to be upserted, got %v", bucket, conn.buckets)
		}
	}
	if payload := conn.buckets["reagents"]; !strings.Contains(string(payload), "Nitric acid") {
		t.Fatalf("expected reagent payload, got %s", payload)
	}
}

func TestRunInTransactionStopsOnUserError(t *testing.T) {
	db, conn := newStubDB(t)
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	userErr := errors.New("user fail")
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return userErr }); !errors.Is(err, userErr) {
		t.Fatalf("expected user error to propagate, got %v", err)
	}
	if len(conn.buckets) != 0 {
		t.Fatalf("expected no persistence when fn errors, got %v", conn.buckets)
	}
}

func TestRunInTransactionPersistError(t *testing.T) {
	db, conn := newStubDB(t)
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.mu.Lock()
	conn.failExec = true
	conn.mu.Unlock()
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return nil }); err == nil {
		t.Fatal("expected persistence error when exec fails")
	}
}
