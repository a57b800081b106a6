package memory

import (
	"context"
	"testing"
	"time"

	"github.com/bxcodec/faker/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

func newAccount(t *testing.T, store *MemoryLedgerStore, balance string) *models.Account {
	acc := &models.Account{
		ID:            uuid.NewString(),
		UserID:        uuid.NewString(),
		AccountNumber: faker.CCNumber(),
		AccountName:   faker.Name(),
		Balance:       decimal.RequireFromString(balance),
		Currency:      models.NGN,
		Tier:          models.Tier1,
		Type:          models.AccountTypeSavings,
	}
	require.NoError(t, store.CreateAccount(context.Background(), acc))
	return acc
}

func newTransaction(accountID string) *models.Transaction {
	return &models.Transaction{
		ID:          uuid.NewString(),
		Reference:   uuid.NewString(),
		OperationID: uuid.NewString(),
		Kind:        models.OperationDeposit,
		Direction:   models.Credit,
		Category:    models.CategoryPrincipal,
		Amount:      decimal.NewFromInt(10),
		Currency:    models.NGN,
		Description: faker.Sentence(),
		AccountID:   accountID,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestMemoryLedgerStore_CommitPublishesStagedWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore()
	acc := newAccount(t, store, "100")

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	updated, err := store.ApplyBalanceDelta(ctx, tx, acc.ID, decimal.NewFromInt(25))
	require.NoError(t, err)
	assert.Equal(t, "125", updated.Balance.String())
	assert.Equal(t, int64(1), updated.Version)

	trx := newTransaction(acc.ID)
	require.NoError(t, store.InsertTransaction(ctx, tx, trx))

	// staged writes are invisible outside the scope
	outside, err := store.GetByID(ctx, nil, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", outside.Balance.String())
	_, err = store.GetTransaction(ctx, trx.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	// but visible inside it
	inside, err := store.ListTransactions(ctx, tx, acc.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, inside, 1)

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())

	after, err := store.GetByAccountNumber(ctx, nil, acc.AccountNumber)
	require.NoError(t, err)
	assert.Equal(t, "125", after.Balance.String())
	got, err := store.GetTransaction(ctx, trx.ID)
	require.NoError(t, err)
	assert.Equal(t, trx.Reference, got.Reference)
}

func TestMemoryLedgerStore_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore()
	acc := newAccount(t, store, "100")

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = store.ApplyBalanceDelta(ctx, tx, acc.ID, decimal.NewFromInt(-40))
	require.NoError(t, err)
	require.NoError(t, store.InsertTransaction(ctx, tx, newTransaction(acc.ID)))
	require.NoError(t, tx.Rollback())

	after, err := store.GetByID(ctx, nil, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", after.Balance.String())
	rows, err := store.ListTransactions(ctx, nil, acc.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = store.ApplyBalanceDelta(ctx, tx, acc.ID, decimal.NewFromInt(1))
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestMemoryLedgerStore_ConcurrentModificationConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore()
	acc := newAccount(t, store, "100")

	first, err := store.BeginTx(ctx)
	require.NoError(t, err)
	second, err := store.BeginTx(ctx)
	require.NoError(t, err)

	_, err = store.ApplyBalanceDelta(ctx, first, acc.ID, decimal.NewFromInt(-60))
	require.NoError(t, err)
	_, err = store.ApplyBalanceDelta(ctx, second, acc.ID, decimal.NewFromInt(-60))
	require.NoError(t, err)

	require.NoError(t, first.Commit())
	err = second.Commit()
	assert.True(t, errs.Is(err, errs.KindConflict))

	after, err := store.GetByID(ctx, nil, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "40", after.Balance.String())
}

func TestMemoryLedgerStore_UniqueReferenceAndIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore()
	acc := newAccount(t, store, "0")

	original := newTransaction(acc.ID)
	original.IdempotencyKey = "key-1"
	tx, _ := store.BeginTx(ctx)
	require.NoError(t, store.InsertTransaction(ctx, tx, original))
	require.NoError(t, tx.Commit())

	dupRef := newTransaction(acc.ID)
	dupRef.Reference = original.Reference
	tx, _ = store.BeginTx(ctx)
	require.NoError(t, store.InsertTransaction(ctx, tx, dupRef))
	assert.True(t, errs.Is(tx.Commit(), errs.KindConflict))

	dupKey := newTransaction(acc.ID)
	dupKey.IdempotencyKey = "key-1"
	tx, _ = store.BeginTx(ctx)
	require.NoError(t, store.InsertTransaction(ctx, tx, dupKey))
	assert.True(t, errs.Is(tx.Commit(), errs.KindConflict))

	got, err := store.GetByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, original.ID, got.ID)
}

func TestMemoryLedgerStore_SystemAccount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore()

	_, err := store.GetSystemAccount(ctx, nil, models.USD)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	system := &models.Account{
		ID:            uuid.NewString(),
		AccountNumber: "9000000002",
		Balance:       decimal.Zero,
		Currency:      models.USD,
		Tier:          models.Tier3,
		Type:          models.AccountTypeSystem,
	}
	require.NoError(t, store.CreateAccount(ctx, system))

	got, err := store.GetSystemAccount(ctx, nil, models.USD)
	require.NoError(t, err)
	assert.Equal(t, system.ID, got.ID)

	err = store.CreateAccount(ctx, &models.Account{ID: uuid.NewString(), AccountNumber: "9000000002"})
	assert.True(t, errs.Is(err, errs.KindConflict))
}

func TestMemoryLedgerStore_Journals(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore()

	journal := &models.JournalEntry{ID: uuid.NewString(), Reference: "REF", DebitEntryID: "d", CreditEntryID: "c"}
	debit := &models.Entry{ID: "d", JournalEntryID: journal.ID, Direction: models.Debit}
	credit := &models.Entry{ID: "c", JournalEntryID: journal.ID, Direction: models.Credit}

	tx, _ := store.BeginTx(ctx)
	require.NoError(t, store.InsertJournal(ctx, tx, journal, debit, credit))
	require.NoError(t, tx.Commit())

	entries, err := store.ListEntries(ctx, journal.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.Debit, entries[0].Direction)
	assert.Equal(t, models.Credit, entries[1].Direction)

	byRef, err := store.ListJournalsByReference(ctx, "REF")
	require.NoError(t, err)
	assert.Len(t, byRef, 1)
	assert.Len(t, store.Journals(), 1)
}
