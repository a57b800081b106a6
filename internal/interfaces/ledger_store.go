package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

// Tx is an atomic scope spanning every record type of one operation.
// Rollback after Commit is a no-op, so callers may always defer Rollback.
type Tx interface {
	Commit() error
	Rollback() error
}

// TxManager opens atomic scopes
type TxManager interface {
	BeginTx(ctx context.Context) (Tx, error)
	// BeginReadTx opens a scope for reads only. It sees one consistent
	// snapshot and takes no row locks, so it never blocks writers.
	BeginReadTx(ctx context.Context) (Tx, error)
}

// AccountStore persists accounts. Reads accept a nil tx to run outside any scope.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, tx Tx, id string) (*models.Account, error)
	GetByAccountNumber(ctx context.Context, tx Tx, accountNumber string) (*models.Account, error)
	GetSystemAccount(ctx context.Context, tx Tx, currency models.Currency) (*models.Account, error)
	// ApplyBalanceDelta reads and rewrites the balance inside tx, failing
	// with a Conflict if another scope changed the account meanwhile.
	ApplyBalanceDelta(ctx context.Context, tx Tx, accountID string, delta decimal.Decimal) (*models.Account, error)
}

// TransactionStore persists immutable transaction rows
type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx Tx, transaction *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// ListTransactions returns rows of accountID created in [from, to), oldest first.
	// A zero bound is open.
	ListTransactions(ctx context.Context, tx Tx, accountID string, from, to time.Time) ([]models.Transaction, error)
	ListByOperation(ctx context.Context, operationID string) ([]models.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
}

// JournalStore persists journal headers and their entry pairs
type JournalStore interface {
	InsertJournal(ctx context.Context, tx Tx, journal *models.JournalEntry, debit, credit *models.Entry) error
	GetJournal(ctx context.Context, id string) (*models.JournalEntry, error)
	ListEntries(ctx context.Context, journalID string) ([]models.Entry, error)
	ListJournalsByReference(ctx context.Context, reference string) ([]models.JournalEntry, error)
}

// LedgerStore is a storage backend for the whole engine
type LedgerStore interface {
	TxManager
	AccountStore
	TransactionStore
	JournalStore
}
