package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pbaille/attrs/internal/errors"
	"github.com/pbaille/attrs/internal/logger"
)

//go:embed schema.sql
var schema string

// DefaultBusyTimeoutMS is used when Options leaves the timeout unset.
const DefaultBusyTimeoutMS = 5000

// Options tune how the database is opened.
type Options struct {
	BusyTimeoutMS int
	Logger        *zap.SugaredLogger
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store handles database operations
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// New opens the SQLite database at dbPath and initializes the schema.
func New(dbPath string, opts Options) (*Store, error) {
	log := logger.OrNop(opts.Logger)
	timeout := opts.BusyTimeoutMS
	if timeout <= 0 {
		timeout = DefaultBusyTimeoutMS
	}

	log.Debugw("Opening database", "path", dbPath)
	db, err := sql.Open("sqlite3", dsn(dbPath, timeout))
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	s := NewFromDB(db, log)
	if err := s.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	log.Infow("Database opened",
		"path", dbPath,
		"wal_mode", true,
		"foreign_keys", true,
		"busy_timeout_ms", timeout,
	)
	return s, nil
}

// NewFromDB wraps an already opened handle. The schema is not touched.
func NewFromDB(db *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: db, log: logger.OrNop(log)}
}

// dsn sets the pragmas through the connection string so that every pooled
// connection gets them, not just the first one.
func dsn(path string, busyTimeoutMS int) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", fmt.Sprint(busyTimeoutMS))
	// Writers take the lock up front instead of failing a read->write upgrade.
	params.Set("_txlock", "immediate")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}

// Init creates missing tables and indexes.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "init schema")
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Queries returns a query set running outside any transaction.
func (s *Store) Queries() *Queries {
	return &Queries{db: s.db}
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise, including on panic.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.Warnw("Rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(&Queries{db: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// Queries holds every statement, bound to either the database or a transaction.
type Queries struct {
	db dbtx
}

// translate maps driver errors onto the package sentinels.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(errors.Mark(err, errors.ErrNotFound), op)
	}
	if isUniqueViolation(err) {
		return errors.Wrap(errors.Mark(err, errors.ErrConflict), op)
	}
	return errors.Wrap(err, op)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
