package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

// AccountLedger owns account balance state on top of an AccountStore
type AccountLedger struct {
	store interfaces.AccountStore
}

func NewAccountLedger(store interfaces.AccountStore) *AccountLedger {
	return &AccountLedger{store: store}
}

func (a *AccountLedger) GetByAccountNumber(ctx context.Context, tx interfaces.Tx, accountNumber string) (*models.Account, error) {
	account, err := a.store.GetByAccountNumber(ctx, tx, accountNumber)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return nil, errs.NotFound("account %s not found", accountNumber)
		}
		return nil, errs.Wrapf(err, "load account %s", accountNumber)
	}
	return account, nil
}

// GetActive resolves an account that may take part in a movement of currency
func (a *AccountLedger) GetActive(ctx context.Context, tx interfaces.Tx, accountNumber string, currency models.Currency) (*models.Account, error) {
	account, err := a.GetByAccountNumber(ctx, tx, accountNumber)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, errs.Forbidden("account not active")
	}
	if account.Currency != currency {
		return nil, errs.Forbidden("account currency %s does not match %s", account.Currency, currency)
	}
	return account, nil
}

// GetSystemAccount resolves the clearing account for currency. The engine
// cannot run without one, so a miss is a configuration error.
func (a *AccountLedger) GetSystemAccount(ctx context.Context, tx interfaces.Tx, currency models.Currency) (*models.Account, error) {
	account, err := a.store.GetSystemAccount(ctx, tx, currency)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return nil, errs.Configuration("no system clearing account for %s", currency)
		}
		return nil, errs.Wrapf(err, "load system account for %s", currency)
	}
	return account, nil
}

// ApplyBalanceDelta adds delta to the stored balance inside tx. Customer
// balances never go below zero; clearing accounts may carry any sign.
func (a *AccountLedger) ApplyBalanceDelta(ctx context.Context, tx interfaces.Tx, accountID string, delta decimal.Decimal) (*models.Account, error) {
	if tx == nil {
		return nil, errs.Validation("balance updates require a transaction")
	}
	account, err := a.store.ApplyBalanceDelta(ctx, tx, accountID, delta)
	if err != nil {
		if errs.Is(err, errs.KindConflict) || errs.Is(err, errs.KindNotFound) {
			return nil, err
		}
		return nil, errs.Wrapf(err, "apply balance delta to %s", accountID)
	}
	if !account.IsSystem() && account.Balance.IsNegative() {
		return nil, errs.Forbidden("insufficient funds")
	}
	return account, nil
}

var _ interfaces.AccountLedger = (*AccountLedger)(nil)
