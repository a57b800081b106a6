package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionCompleted is published once an operation has been committed
type TransactionCompleted struct {
	OperationID   string          `json:"operation_id"`
	Kind          string          `json:"kind"`
	Reference     string          `json:"reference"`
	AccountNumber string          `json:"account_number,omitempty"`
	FromAccount   string          `json:"from_account,omitempty"`
	ToAccount     string          `json:"to_account,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Charge        decimal.Decimal `json:"charge"`
	Currency      string          `json:"currency"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Key partitions events of one operation together
func (e TransactionCompleted) Key() string {
	return e.OperationID
}
