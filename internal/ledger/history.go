package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

func (l *Ledger) activeAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	account, err := l.accounts.GetByAccountNumber(ctx, nil, accountNumber)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, errs.Forbidden("account not active")
	}
	return account, nil
}

// TransactionHistory lists the account's rows created in [from, to).
// Zero bounds are open.
func (l *Ledger) TransactionHistory(ctx context.Context, accountNumber string, from, to time.Time) ([]models.Transaction, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, errs.Validation("end date must not be before start date")
	}
	account, err := l.activeAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	rows, err := l.transactions.ListTransactions(ctx, nil, account.ID, from, to)
	if err != nil {
		return nil, errs.Wrap(err, "load transaction history")
	}
	return rows, nil
}

// TransactionDetails returns one row of the account. A row owned by another
// account is reported as missing.
func (l *Ledger) TransactionDetails(ctx context.Context, accountNumber, transactionID string) (*models.Transaction, error) {
	account, err := l.activeAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	trx, err := l.transactions.GetTransaction(ctx, transactionID)
	if err != nil && !errs.Is(err, errs.KindNotFound) {
		return nil, errs.Wrap(err, "load transaction")
	}
	if err != nil || trx.AccountID != account.ID {
		return nil, errs.NotFound("transaction %s not found", transactionID)
	}
	return trx, nil
}

// Reconcile checks balance == sum(credits) - sum(debits) for the account.
// Balance and rows are read in one read-only snapshot so they describe the
// same moment without holding locks on the account.
func (l *Ledger) Reconcile(ctx context.Context, accountNumber string) (result *models.Reconciliation, err error) {
	tx, err := l.tx.BeginReadTx(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "begin transaction")
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && err == nil {
			err = errs.Wrap(rbErr, "release read scope")
		}
	}()

	account, err := l.accounts.GetByAccountNumber(ctx, tx, accountNumber)
	if err != nil {
		return nil, err
	}
	rows, err := l.transactions.ListTransactions(ctx, tx, account.ID, time.Time{}, time.Time{})
	if err != nil {
		return nil, errs.Wrap(err, "load transactions")
	}

	result = &models.Reconciliation{
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		Balance:       account.Balance,
		Credits:       decimal.Zero,
		Debits:        decimal.Zero,
	}
	for _, row := range rows {
		if row.Direction == models.Debit {
			result.Debits = result.Debits.Add(row.Amount)
		} else {
			result.Credits = result.Credits.Add(row.Amount)
		}
	}
	result.Net = result.Credits.Sub(result.Debits)
	result.Balanced = result.Net.Equal(result.Balance)
	return result, nil
}

// VerifySystemAccounts fails when any recognised currency lacks a clearing
// account. Run it at startup.
func (l *Ledger) VerifySystemAccounts(ctx context.Context) error {
	for _, currency := range models.Currencies() {
		if _, err := l.accounts.GetSystemAccount(ctx, nil, currency); err != nil {
			return err
		}
	}
	return nil
}
