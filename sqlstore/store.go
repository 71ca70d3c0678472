package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
	"github.com/pymesuite/authcore"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Dialect selects the SQL flavour and migration set.
type Dialect string

const (
	// DialectSQLite is the embedded single-file backend.
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres is the server backend, driven through pgx.
	DialectPostgres Dialect = "postgres"
)

// Store implements authcore.UserStore, authcore.SessionStore and
// authcore.PermissionStore on one database.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *zap.Logger
}

var (
	_ authcore.UserStore       = (*Store)(nil)
	_ authcore.SessionStore    = (*Store)(nil)
	_ authcore.PermissionStore = (*Store)(nil)
)

// Open connects to dsn. postgres:// and postgresql:// URLs use pgx; anything
// else is a SQLite path, optionally prefixed with "sqlite:" (":memory:" works).
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	dialect, source := ParseDSN(dsn)
	if source == "" {
		return nil, errors.New("sqlstore: empty dsn")
	}

	driver := "sqlite"
	if dialect == DialectPostgres {
		driver = "pgx"
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	if dialect == DialectSQLite {
		// One connection keeps :memory: databases and PRAGMAs consistent.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	s := New(db, dialect, logger)
	s.logger.Debug("database opened", zap.String("dialect", string(dialect)))
	return s, nil
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	bind := "sqlite3"
	if dialect == DialectPostgres {
		bind = "pgx"
	}
	return &Store{
		db:      sqlx.NewDb(db, bind),
		dialect: dialect,
		logger:  logger.Named("sqlstore"),
	}
}

// ParseDSN splits dsn into its dialect and the driver data source.
func ParseDSN(dsn string) (Dialect, string) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DialectPostgres, dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "sqlite:"):
		return DialectSQLite, strings.TrimPrefix(dsn, "sqlite:")
	default:
		return DialectSQLite, dsn
	}
}

// Dialect reports the backend in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// DB exposes the underlying handle for tooling.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Migrate applies the embedded schema migrations. It is safe to run on
// every start and from several stores at once; Postgres migrations run
// under a session advisory lock.
func (s *Store) Migrate(ctx context.Context) error {
	dir := "migrations/sqlite"
	dialect := goose.DialectSQLite3
	var opts []goose.ProviderOption
	if s.dialect == DialectPostgres {
		dir = "migrations/postgres"
		dialect = goose.DialectPostgres
		locker, err := lock.NewPostgresSessionLocker()
		if err != nil {
			return err
		}
		opts = append(opts, goose.WithSessionLocker(locker))
	}

	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, s.db.DB, sub, opts...)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("%w: migrate: %v", authcore.ErrStoreUnavailable, err)
	}
	for _, r := range results {
		s.logger.Debug("migration applied", zap.Int64("version", r.Source.Version), zap.Duration("took", r.Duration))
	}

	version, err := provider.GetDBVersion(ctx)
	if err == nil {
		s.logger.Info("schema migrated", zap.String("dialect", string(s.dialect)), zap.Int64("version", version))
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

// isUniqueViolation reports whether err is a unique or primary key
// constraint failure on either backend.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}

func dbErr(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
}
