package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

// SystemUserID owns every clearing account
var SystemUserID = uuid.Nil.String()

// SystemAccountNumber is the account number of the clearing account of the
// i-th currency of models.Currencies
func SystemAccountNumber(i int) string {
	return fmt.Sprintf("90000000%02d", i+1)
}

// SeedSystemAccounts creates the clearing account of every currency that
// does not have one yet. Running it again changes nothing.
func SeedSystemAccounts(ctx context.Context, store interfaces.AccountStore, logger logrus.FieldLogger) error {
	for i, currency := range models.Currencies() {
		existing, err := store.GetSystemAccount(ctx, nil, currency)
		if err == nil {
			logger.WithField("account_number", existing.AccountNumber).Debugf("%s clearing account present", currency)
			continue
		}
		if !errs.Is(err, errs.KindNotFound) {
			return errs.Wrapf(err, "look up %s clearing account", currency)
		}

		account := &models.Account{
			ID:            uuid.NewString(),
			UserID:        SystemUserID,
			AccountNumber: SystemAccountNumber(i),
			AccountName:   fmt.Sprintf("%s clearing", currency),
			Balance:       decimal.Zero,
			Currency:      currency,
			Tier:          models.Tier3,
			Type:          models.AccountTypeSystem,
		}
		if err := store.CreateAccount(ctx, account); err != nil {
			return errs.Wrapf(err, "create %s clearing account", currency)
		}
		logger.WithField("account_number", account.AccountNumber).Infof("%s clearing account created", currency)
	}
	return nil
}
