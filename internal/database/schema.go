package database

import (
	"context"
	"fmt"
	"log/slog"

	"podshare/internal/middleware"

	"gorm.io/gorm"
)

const (
	// SchemaModeAuto runs GORM AutoMigrate over PersistentModels.
	SchemaModeAuto = "auto"
	// SchemaModeSQL applies the embedded SQL migrations (PostgreSQL only).
	SchemaModeSQL = "sql"
)

// EnsureSchema brings the schema up to date using mode. SQLite always uses
// AutoMigrate because the SQL migrations target PostgreSQL.
func EnsureSchema(ctx context.Context, db *gorm.DB, mode string) error {
	if db.Dialector.Name() == "sqlite" {
		mode = SchemaModeAuto
	}

	switch mode {
	case SchemaModeSQL:
		m, err := NewMigrator(db)
		if err != nil {
			return err
		}
		return m.Up(ctx)
	case SchemaModeAuto, "":
		middleware.Logger.InfoContext(ctx, "running GORM AutoMigrate", slog.String("dialect", db.Dialector.Name()))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown DB_SCHEMA_MODE %q", mode)
	}
}
