package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

// AccountLedger owns account balance state
type AccountLedger interface {
	GetByAccountNumber(ctx context.Context, tx Tx, accountNumber string) (*models.Account, error)
	GetActive(ctx context.Context, tx Tx, accountNumber string, currency models.Currency) (*models.Account, error)
	GetSystemAccount(ctx context.Context, tx Tx, currency models.Currency) (*models.Account, error)
	ApplyBalanceDelta(ctx context.Context, tx Tx, accountID string, delta decimal.Decimal) (*models.Account, error)
}

// RecordInput describes a transaction row to write
type RecordInput struct {
	OperationID    string
	IdempotencyKey string
	Kind           models.OperationKind
	Direction      models.Direction
	Category       models.Category
	Amount         decimal.Decimal
	Currency       models.Currency
	Description    string
	AccountID      string
}

// TransactionRecorder writes immutable transaction rows
type TransactionRecorder interface {
	Record(ctx context.Context, tx Tx, in RecordInput) (*models.Transaction, error)
}

// JournalComposer writes balanced journal entries
type JournalComposer interface {
	Compose(ctx context.Context, tx Tx, reference, description string, debit, credit models.Leg) (*models.JournalEntry, error)
}

// LimitPolicy maps tier and currency to limits and computes charges
type LimitPolicy interface {
	Exempt(tier models.Tier) bool
	ChargeFor(amount decimal.Decimal) decimal.Decimal
	CheckCredit(account *models.Account, amount decimal.Decimal) error
	CheckDebit(account *models.Account, amount, charge decimal.Decimal) error
	CheckDaily(account *models.Account, todaysTotal, amount decimal.Decimal) error
}
