package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// dbFileName is the SQLite file created inside the store directory.
const dbFileName = "mediacache.db"

// ErrUnsupportedSchema is returned when the stored schema version is newer
// than this build supports. Opening must fail rather than guess.
var ErrUnsupportedSchema = errors.New("database: schema version is newer than supported")

// DB owns the SQLite connection pool for one media store. Every repository
// operation borrows one exclusive connection via Acquire for the duration
// of a single statement or transaction.
type DB struct {
	handler  *sql.DB
	log      zerolog.Logger
	lock     sync.RWMutex
	squirrel sq.StatementBuilderType
}

// NewDB creates the store directory if needed, opens the connection pool,
// enables WAL mode and brings the schema up to date.
func NewDB(dir string, log zerolog.Logger) (*DB, error) {
	db := &DB{
		log:      log.With().Str("module", "database").Logger(),
		squirrel: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "unable to create store directory")
	}

	var (
		err error
		DSN = filepath.Join(dir, dbFileName) + "?_pragma=busy_timeout%3d1000"
	)

	db.handler, err = sql.Open("sqlite", DSN)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to database")
	}

	if err = db.handler.Ping(); err != nil {
		db.handler.Close()
		return nil, errors.Wrap(err, "unable to initialize connection pool")
	}

	// WAL must be enabled outside any transaction; SQLite rejects changing
	// the journal mode from within one.
	if _, err = db.handler.Exec(`PRAGMA journal_mode = wal;`); err != nil {
		db.handler.Close()
		return nil, errors.Wrap(err, "unable to enable WAL mode")
	}

	if err := db.Migrate(); err != nil {
		db.handler.Close()
		return nil, errors.Wrap(err, "failed to migrate schema")
	}

	return db, nil
}

// Acquire hands out one exclusive pooled connection. The caller must Close
// it when its statement or transaction completes, on every path.
func (db *DB) Acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := db.handler.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to acquire connection")
	}

	return conn, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if _, err := db.handler.Exec(`PRAGMA optimize;`); err != nil {
		return errors.Wrap(err, "query planner optimization")
	}

	return db.handler.Close()
}

// Ping checks if the database connection is alive
func (db *DB) Ping() error {
	return db.handler.Ping()
}

// GetKV reads one configuration value; nil when the key is absent.
func (db *DB) GetKV(ctx context.Context, key string) ([]byte, error) {
	query, args, err := db.squirrel.
		Select("value").
		From(TableKV).
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	var value []byte
	if err := db.handler.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "error executing query")
	}

	return value, nil
}

// SetKV inserts or replaces one configuration value.
func (db *DB) SetKV(ctx context.Context, key string, value []byte) error {
	query, args, err := db.squirrel.
		Replace(TableKV).
		Columns("key", "value").
		Values(key, value).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	if _, err := db.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

// Migrate brings the schema up to the version this build expects. Each
// migration step commits its schema changes and its version bump in the
// same transaction, so a crash mid-run never records a version that was
// not durably applied; a retried open resumes from the last applied step.
func (db *DB) Migrate() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	version, err := db.schemaVersion()
	if err != nil {
		return err
	}

	if version == len(migrations) {
		db.log.Debug().Int("version", version).Msg("Database schema is up to date")
		return nil
	} else if version > len(migrations) {
		return errors.Wrapf(ErrUnsupportedSchema, "stored version %d, supported %d", version, len(migrations))
	}

	db.log.Info().Msgf("Beginning database schema upgrade from version %v to version: %v", version, len(migrations))

	if version == 0 {
		if err := db.applyMigration(schema, 1); err != nil {
			return errors.Wrap(err, "failed to initialize schema")
		}
		db.log.Info().Msg("Created initial media cache schema")
		version = 1
	}

	for v := version; v < len(migrations); v++ {
		db.log.Info().Msgf("Upgrading media cache schema to version: %v", v+1)
		if err := db.applyMigration(migrations[v], v+1); err != nil {
			return errors.Wrapf(err, "failed to execute migration #%v", v)
		}
	}

	db.log.Info().Msgf("Database schema upgraded to version: %v", len(migrations))
	return nil
}

// applyMigration runs one migration step and records the new version
// inside the same transaction.
func (db *DB) applyMigration(stmts string, to int) error {
	tx, err := db.handler.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if stmts != "" {
		if _, err := tx.Exec(stmts); err != nil {
			return errors.Wrap(err, "failed to execute migration statements")
		}
	}

	query, args, err := db.squirrel.
		Replace(TableKV).
		Columns("key", "value").
		Values(keyVersion, []byte{byte(to)}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return errors.Wrap(err, "failed to bump schema version")
	}

	return tx.Commit()
}

// schemaVersion reads the stored version, defaulting to 0 when no schema
// exists yet.
func (db *DB) schemaVersion() (int, error) {
	var exists bool
	if err := db.handler.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = '` + TableKV + `')`,
	).Scan(&exists); err != nil {
		return 0, errors.Wrap(err, "failed to query schema tables")
	}
	if !exists {
		return 0, nil
	}

	value, err := db.GetKV(context.Background(), keyVersion)
	if err != nil {
		return 0, errors.Wrap(err, "failed to query schema version")
	}
	if value == nil {
		return 0, nil
	}
	if len(value) != 1 {
		return 0, errors.Errorf("malformed schema version value (%d bytes)", len(value))
	}

	return int(value[0]), nil
}
