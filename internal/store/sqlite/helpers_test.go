package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"timeclock/gateway/internal/db"
	"timeclock/gateway/internal/store"
	sqlitestore "timeclock/gateway/internal/store/sqlite"
)

// openTestDB returns a private in-memory database with the production
// schema, closed when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenMemory(context.Background(), "test_"+t.Name())
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()
	w := db.NewWorker(conn)
	t.Cleanup(w.Close)
	return w
}

func seedDevice(t *testing.T, ds *sqlitestore.DeviceStore, serial string, code uint32, enabled bool) int64 {
	t.Helper()
	id, err := ds.UpsertDevice(context.Background(), store.DeviceRecord{
		Serial:  serial,
		Code:    code,
		Name:    "terminal " + serial,
		Enabled: enabled,
	})
	if err != nil {
		t.Fatalf("seedDevice: %v", err)
	}
	return id
}
