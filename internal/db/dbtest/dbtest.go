// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"testing" // Test helpers

	"wallet_ledger/internal/config" // Application configuration
	"wallet_ledger/internal/db"     // Database connection

	"github.com/glebarez/sqlite" // Pure Go SQLite dialector
	"gorm.io/gorm"               // GORM ORM library
)

// Open returns a migrated in-memory database that is closed when the test ends.
// The pool is limited to one connection so the database lives as long as the
// test and concurrent transactions are serialized the way row locks would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := &config.Config{DBLogLevel: "silent", DBMaxOpenConns: 1}
	gdb, err := db.OpenWith(sqlite.Open(":memory:"), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}
