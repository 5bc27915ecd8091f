// Package sqlitetest opens migrated SQLite databases for tests.
package sqlitetest

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/migrations"
	"github.com/garyjia/incident-intake/pkg/database"
)

// Open creates a file-backed database in t.TempDir with all migrations applied.
func Open(t testing.TB) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.New(ctx, database.Config{
		Path:         filepath.Join(t.TempDir(), "incidents.db"),
		MaxOpenConns: 4,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := database.NewMigrator(db, zap.NewNop()).Run(ctx, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
