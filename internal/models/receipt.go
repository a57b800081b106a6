package models

import "github.com/shopspring/decimal"

// Receipt is returned to the caller of a money movement
type Receipt struct {
	OperationID  string
	Kind         OperationKind
	Transactions []Transaction // customer-facing rows in write order
	Journals     []JournalEntry
	Replayed     bool // true when an idempotency key matched an earlier operation
}

// Reconciliation compares an account's stored balance with its transaction rows
type Reconciliation struct {
	AccountID     string
	AccountNumber string
	Balance       decimal.Decimal
	Credits       decimal.Decimal
	Debits        decimal.Decimal
	Net           decimal.Decimal
	Balanced      bool
}
