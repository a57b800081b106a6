package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is the header proving a movement is balanced. It always
// points at exactly one debit Entry and one credit Entry.
type JournalEntry struct {
	ID            string
	Reference     string // reference of the customer-facing transaction
	Description   string
	Date          time.Time
	DebitEntryID  string
	CreditEntryID string
}

// Entry is one side of a journal entry
type Entry struct {
	ID             string
	JournalEntryID string
	AccountID      string
	Amount         decimal.Decimal
	Currency       Currency
	Direction      Direction
	Description    string
	Date           time.Time
}

// Leg describes one side of a journal entry before it is written
type Leg struct {
	AccountID   string
	Amount      decimal.Decimal
	Currency    Currency
	Description string
}
