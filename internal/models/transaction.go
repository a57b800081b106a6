package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether a row adds to or takes from an account
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Category separates customer principal from fees when aggregating rows
type Category string

const (
	CategoryPrincipal Category = "principal"
	CategoryCharge    Category = "charge"
)

// OperationKind is the logical money movement a row belongs to
type OperationKind string

const (
	OperationDeposit    OperationKind = "deposit"
	OperationWithdrawal OperationKind = "withdrawal"
	OperationTransfer   OperationKind = "transfer"
	OperationBankCharge OperationKind = "bank_charge"
)

// Transaction is one immutable leg of a money movement on a single account.
// Every movement writes at least a customer leg and a clearing-account leg.
type Transaction struct {
	ID             string
	Reference      string // unique per row
	OperationID    string // shared by every row of one logical operation
	IdempotencyKey string // set on the customer-facing row only, may be empty
	Kind           OperationKind
	Direction      Direction
	Category       Category
	Amount         decimal.Decimal // always positive
	Currency       Currency
	Description    string
	AccountID      string
	CreatedAt      time.Time
}

// SignedAmount is the effect of the row on its account's balance
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}
