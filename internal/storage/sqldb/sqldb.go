// Package sqldb provides the relational implementation of storage.Storage
// on top of GORM.
//
// Two backends are supported:
//
//   - SQLite: a single file on disk (or ":memory:" in tests). The
//     connection is opened through database/sql with the mattn/go-sqlite3
//     driver and handed to GORM, limited to one open connection so writes
//     never contend for the file lock.
//   - PostgreSQL: for deployments that run more than one API instance.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smartcampus/campus-api/internal/config"
	"github.com/smartcampus/campus-api/internal/storage"
	"github.com/smartcampus/campus-api/internal/types"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Registers the "sqlite3" driver with database/sql.
	_ "github.com/mattn/go-sqlite3"
)

// Store is the concrete implementation of storage.Storage.
// A single *gorm.DB is a connection pool and safe for concurrent use.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ storage.Storage = (*Store)(nil)

// New opens the database selected by cfg.Database. It does not migrate;
// call Migrate once at startup (or run `campus-api migrate`).
func New(cfg *config.Config, log *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector

	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "sqlite", "":
		conn, err := openSQLite(cfg.Database.StoragePath)
		if err != nil {
			return nil, err
		}
		dialector = &gormsqlite.Dialector{DriverName: "sqlite3", Conn: conn}
	default:
		return nil, fmt.Errorf("sqldb.New: unsupported driver %q", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Warn),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("sqldb.New: open gorm: %w", err)
	}

	if cfg.Database.Driver == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqldb.New: pool: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &Store{db: db, log: log}, nil
}

// openSQLite opens path with foreign keys enforced. sql.Open does not
// connect; the first query does.
func openSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqldb.New: create storage dir: %w", err)
			}
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb.New: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	return conn, nil
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&types.Profile{},
		&types.LostItem{},
		&types.Event{},
		&types.EventAttendee{},
		&types.Club{},
		&types.ClubMember{},
		&types.Feedback{},
	)
	if err != nil {
		return fmt.Errorf("sqldb.Migrate: %w", err)
	}
	return nil
}

// Ping checks that the database answers within two seconds.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps GORM errors onto the storage sentinels so handlers never
// import gorm.
func translate(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s: referenced row missing: %w", op, storage.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
