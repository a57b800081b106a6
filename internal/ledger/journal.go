package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

// JournalComposer is the only writer of journal entries, and every entry it
// writes is a balanced debit/credit pair.
type JournalComposer struct {
	store interfaces.JournalStore
	now   func() time.Time
}

func NewJournalComposer(store interfaces.JournalStore, now func() time.Time) *JournalComposer {
	if now == nil {
		now = time.Now
	}
	return &JournalComposer{store: store, now: now}
}

func checkBalanced(debit, credit models.Leg) error {
	if !debit.Amount.IsPositive() {
		return errs.Validation("journal amount must be positive")
	}
	if !debit.Amount.Equal(credit.Amount) {
		return errs.Validation("unbalanced journal entry: debit %s != credit %s", debit.Amount, credit.Amount)
	}
	if debit.Currency != credit.Currency {
		return errs.Validation("journal currency mismatch: debit %s, credit %s", debit.Currency, credit.Currency)
	}
	if debit.AccountID == credit.AccountID {
		return errs.Validation("journal debit and credit must use different accounts")
	}
	return nil
}

func (c *JournalComposer) Compose(ctx context.Context, tx interfaces.Tx, reference, description string, debit, credit models.Leg) (*models.JournalEntry, error) {
	if err := checkBalanced(debit, credit); err != nil {
		return nil, err
	}

	date := c.now().UTC()
	journal := &models.JournalEntry{
		ID:            uuid.NewString(),
		Reference:     reference,
		Description:   description,
		Date:          date,
		DebitEntryID:  uuid.NewString(),
		CreditEntryID: uuid.NewString(),
	}
	debitEntry := &models.Entry{
		ID:             journal.DebitEntryID,
		JournalEntryID: journal.ID,
		AccountID:      debit.AccountID,
		Amount:         debit.Amount,
		Currency:       debit.Currency,
		Direction:      models.Debit,
		Description:    debit.Description,
		Date:           date,
	}
	creditEntry := &models.Entry{
		ID:             journal.CreditEntryID,
		JournalEntryID: journal.ID,
		AccountID:      credit.AccountID,
		Amount:         credit.Amount,
		Currency:       credit.Currency,
		Direction:      models.Credit,
		Description:    credit.Description,
		Date:           date,
	}

	if err := c.store.InsertJournal(ctx, tx, journal, debitEntry, creditEntry); err != nil {
		return nil, err
	}
	return journal, nil
}

var _ interfaces.JournalComposer = (*JournalComposer)(nil)
