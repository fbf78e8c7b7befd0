package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrIncompatibleSchema is returned by [Open] when a `sensors` table already
// exists but does not carry the expected columns. The store refuses to start
// rather than risk undefined writes against an unknown shape.
var ErrIncompatibleSchema = errors.New("existing sensors table has an incompatible shape")

// Store is the durable record store for sensor state.
//
// Implementations must serialize conflicting writes to the same key at the
// storage layer: Upsert is one atomic statement, never read-then-write, so
// concurrent ingestions of the same key cannot corrupt its final state.
type Store interface {
	// Upsert inserts the reading or, if a row with the same (idSensor, lot)
	// key exists, replaces that row's availability.
	Upsert(ctx context.Context, r Reading) error

	// ScanAll returns the full current contents of the store. No pagination,
	// no filtering, no ordering guarantee beyond the natural scan order.
	ScanAll(ctx context.Context) ([]Reading, error)

	// Close releases the underlying database resources.
	Close() error
}

// Options configures [Open].
type Options struct {
	// Driver selects the database dialect: "sqlite", "postgres" or "mysql".
	Driver string

	// DSN is the driver-specific connection string. For sqlite this is the
	// database file path; parent directories are created as needed.
	DSN string

	// Connection pool settings. Zero values keep the driver defaults.
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration

	// Logger receives store lifecycle events. Defaults to slog.Default.
	Logger *slog.Logger
}

// gormStore is the GORM-backed [Store] implementation.
type gormStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the configured database and ensures the schema exists.
//
// When the `sensors` table is missing it is created with the composite
// unique constraint on (idSensor, lot). When a table already exists its
// shape is probed: if the expected columns are present the store logs and
// proceeds without migrating, otherwise Open fails with
// [ErrIncompatibleSchema]. A connection failure is fatal here — the process
// must not silently continue serving broken storage.
func Open(opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case "sqlite":
		if dir := filepath.Dir(opts.DSN); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(opts.DSN)
	case "postgres":
		dialector = postgres.Open(opts.DSN)
	case "mysql":
		dialector = mysql.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := ensureSchema(db, logger); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("record store ready", "driver", opts.Driver)
	return &gormStore{db: db, logger: logger}, nil
}

// ensureSchema creates the sensors table when absent and probes the shape of
// a pre-existing one.
func ensureSchema(db *gorm.DB, logger *slog.Logger) error {
	migrator := db.Migrator()

	if !migrator.HasTable(&Reading{}) {
		if err := migrator.CreateTable(&Reading{}); err != nil {
			return fmt.Errorf("failed to create sensors table: %w", err)
		}
		logger.Info("sensors table created")
		return nil
	}

	for _, column := range []string{"idSensor", "lot", "available"} {
		if !migrator.HasColumn(&Reading{}, column) {
			return fmt.Errorf("%w: missing column %q", ErrIncompatibleSchema, column)
		}
	}

	// the unique constraint may be unnamed in tables created elsewhere, so
	// only its columns are verified; upserts rely on the constraint holding
	logger.Info("sensors table already exists, using existing structure")
	return nil
}

// Upsert applies one reading as a single atomic statement:
//
//	INSERT ... ON CONFLICT (idSensor, lot) DO UPDATE SET available = excluded.available
func (s *gormStore) Upsert(ctx context.Context, r Reading) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idSensor"}, {Name: "lot"}},
		DoUpdates: clause.AssignmentColumns([]string{"available"}),
	}).Create(&r)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert reading (sensor %d, lot %d): %w", r.IDSensor, r.Lot, result.Error)
	}
	return nil
}

// ScanAll returns every persisted reading in natural scan order.
func (s *gormStore) ScanAll(ctx context.Context) ([]Reading, error) {
	readings := make([]Reading, 0)
	if err := s.db.WithContext(ctx).Find(&readings).Error; err != nil {
		return nil, fmt.Errorf("failed to scan sensors table: %w", err)
	}
	return readings, nil
}

// Close closes the underlying database connection.
func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
