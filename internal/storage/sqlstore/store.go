// Package sqlstore is the database/sql implementation of the ledger store.
// It speaks PostgreSQL in production and SQLite for local runs and tests.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
)

// Dialect is the SQL flavour of the database. Its value is the name the
// database/sql driver is registered under.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// ParseDialect maps a configured driver name to a Dialect
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", errs.Configuration("unsupported storage driver %q", driver)
}

func (d Dialect) moneyType() string {
	if d == Postgres {
		return "NUMERIC"
	}
	// exact decimal strings; SQLite NUMERIC would coerce to REAL
	return "TEXT"
}

func (d Dialect) timeType() string {
	if d == Postgres {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

// Open opens a database for the dialect. An in-memory SQLite database only
// exists on one connection, so the pool is pinned to it.
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", dialect)
	}
	if dialect == SQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// Store implements interfaces.LedgerStore on a *sql.DB
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// StoreOpt is an option of the SQL store
type StoreOpt func(s *Store)

// WithDialect sets the SQL dialect. Postgres is the default.
func WithDialect(dialect Dialect) StoreOpt {
	return func(s *Store) {
		s.dialect = dialect
	}
}

func New(db *sql.DB, opts ...StoreOpt) *Store {
	s := &Store{db: db, dialect: Postgres}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) schema() []string {
	money, ts := s.dialect.moneyType(), s.dialect.timeType()
	return []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS accounts(
	id             VARCHAR(64)  NOT NULL PRIMARY KEY,
	user_id        VARCHAR(64)  NOT NULL,
	account_number VARCHAR(32)  NOT NULL UNIQUE,
	account_name   VARCHAR(255) NOT NULL,
	balance        %[1]s NOT NULL,
	currency       VARCHAR(3)   NOT NULL,
	tier           VARCHAR(16)  NOT NULL,
	type           VARCHAR(32)  NOT NULL,
	version        BIGINT       NOT NULL DEFAULT 0,
	created_at     %[2]s NOT NULL,
	updated_at     %[2]s NOT NULL,
	deleted_at     %[2]s NULL
)`, money, ts),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS transactions(
	id              VARCHAR(64)  NOT NULL PRIMARY KEY,
	reference       VARCHAR(64)  NOT NULL UNIQUE,
	operation_id    VARCHAR(64)  NOT NULL,
	idempotency_key VARCHAR(255) NULL UNIQUE,
	kind            VARCHAR(32)  NOT NULL,
	direction       VARCHAR(8)   NOT NULL,
	category        VARCHAR(16)  NOT NULL,
	amount          %[1]s NOT NULL,
	currency        VARCHAR(3)   NOT NULL,
	description     VARCHAR(255) NOT NULL,
	account_id      VARCHAR(64)  NOT NULL REFERENCES accounts(id),
	created_at      %[2]s NOT NULL
)`, money, ts),
		`CREATE INDEX IF NOT EXISTS transactions_account_created_idx ON transactions(account_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS transactions_operation_idx ON transactions(operation_id)`,
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS journal_entries(
	id              VARCHAR(64)  NOT NULL PRIMARY KEY,
	reference       VARCHAR(64)  NOT NULL,
	description     VARCHAR(255) NOT NULL,
	posted_at       %[1]s NOT NULL,
	debit_entry_id  VARCHAR(64)  NOT NULL,
	credit_entry_id VARCHAR(64)  NOT NULL
)`, ts),
		`CREATE INDEX IF NOT EXISTS journal_entries_reference_idx ON journal_entries(reference)`,
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS entries(
	id               VARCHAR(64)  NOT NULL PRIMARY KEY,
	journal_entry_id VARCHAR(64)  NOT NULL REFERENCES journal_entries(id),
	account_id       VARCHAR(64)  NOT NULL REFERENCES accounts(id),
	amount           %[1]s NOT NULL,
	currency         VARCHAR(3)   NOT NULL,
	direction        VARCHAR(8)   NOT NULL,
	description      VARCHAR(255) NOT NULL,
	posted_at        %[2]s NOT NULL
)`, money, ts),
		`CREATE INDEX IF NOT EXISTS entries_journal_idx ON entries(journal_entry_id)`,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Setup creates the schema. It is safe to run repeatedly.
func (s *Store) Setup(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to setup storage")
		}
	}
	return nil
}

// sqlTx adapts *sql.Tx to interfaces.Tx
type sqlTx struct {
	store    *Store
	tx       *sql.Tx
	readOnly bool
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return errs.Validation("transaction already finished")
		}
		return classify(err, "commit transaction")
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, "rollback transaction")
	}
	return nil
}

func (s *Store) BeginTx(ctx context.Context) (interfaces.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err, "begin transaction")
	}
	return &sqlTx{store: s, tx: tx}, nil
}

// BeginReadTx opens a read-only snapshot. On Postgres it is a repeatable
// read transaction, so reads inside it need no FOR UPDATE.
func (s *Store) BeginReadTx(ctx context.Context) (interfaces.Tx, error) {
	var opts *sql.TxOptions
	if s.dialect == Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, classify(err, "begin read transaction")
	}
	return &sqlTx{store: s, tx: tx, readOnly: true}, nil
}

// querier resolves tx to the handle statements run on. A nil tx runs on the pool.
func (s *Store) querier(tx interfaces.Tx) (querier, error) {
	if tx == nil {
		return s.db, nil
	}
	t, ok := tx.(*sqlTx)
	if !ok || t.store != s {
		return nil, errs.Validation("transaction does not belong to this store")
	}
	return t.tx, nil
}

func (s *Store) writer(tx interfaces.Tx) (querier, error) {
	if tx == nil {
		return nil, errs.Validation("write requires a transaction")
	}
	return s.querier(tx)
}

// lockClause makes reads inside a writing scope hold row locks on Postgres.
// SQLite locks the whole database on write, so it needs none.
func (s *Store) lockClause(tx interfaces.Tx) string {
	if tx == nil || s.dialect != Postgres {
		return ""
	}
	if t, ok := tx.(*sqlTx); ok && t.readOnly {
		return ""
	}
	return " FOR UPDATE"
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// isContention reports lock and serialization failures a caller may retry
func isContention(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
		return false
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// classify tags driver errors with the ledger's kinds
func classify(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err), isContention(err):
		return errs.WithKind(errs.KindConflict, err, message)
	}
	return errors.Wrap(err, message)
}

var _ interfaces.LedgerStore = (*Store)(nil)
