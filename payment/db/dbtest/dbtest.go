// Package dbtest provides a throwaway SQLite-backed payment store for tests.
package dbtest

import (
	"path/filepath"
	"testing"
	"time"

	"go-mpesa/payment/db"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(sqlite.Open(filepath.Join(t.TempDir(), "payments.db")))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func NewStore(t testing.TB) *db.Store {
	t.Helper()
	return db.NewStore(NewDB(t), 5*time.Second)
}
