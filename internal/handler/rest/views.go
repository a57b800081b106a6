package rest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

type transactionView struct {
	ID          string          `json:"id"`
	Reference   string          `json:"reference"`
	OperationID string          `json:"operationId"`
	Kind        string          `json:"kind"`
	Direction   string          `json:"direction"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	AccountID   string          `json:"accountId"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func newTransactionView(t models.Transaction) transactionView {
	return transactionView{
		ID:          t.ID,
		Reference:   t.Reference,
		OperationID: t.OperationID,
		Kind:        string(t.Kind),
		Direction:   string(t.Direction),
		Category:    string(t.Category),
		Amount:      t.Amount,
		Currency:    string(t.Currency),
		Description: t.Description,
		AccountID:   t.AccountID,
		CreatedAt:   t.CreatedAt,
	}
}

func newTransactionViews(rows []models.Transaction) []transactionView {
	views := make([]transactionView, 0, len(rows))
	for _, row := range rows {
		views = append(views, newTransactionView(row))
	}
	return views
}

type journalView struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

type receiptView struct {
	OperationID  string            `json:"operationId"`
	Kind         string            `json:"kind"`
	Replayed     bool              `json:"replayed"`
	Transactions []transactionView `json:"transactions"`
	Journals     []journalView     `json:"journals,omitempty"`
}

func newReceiptView(r *models.Receipt) receiptView {
	view := receiptView{
		OperationID:  r.OperationID,
		Kind:         string(r.Kind),
		Replayed:     r.Replayed,
		Transactions: newTransactionViews(r.Transactions),
	}
	for _, j := range r.Journals {
		view.Journals = append(view.Journals, journalView{
			ID:          j.ID,
			Reference:   j.Reference,
			Description: j.Description,
			Date:        j.Date,
		})
	}
	return view
}

type reconciliationView struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	Credits       decimal.Decimal `json:"credits"`
	Debits        decimal.Decimal `json:"debits"`
	Net           decimal.Decimal `json:"net"`
	Balanced      bool            `json:"balanced"`
}
