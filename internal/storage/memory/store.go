package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// Writes are staged in a memoryTx and become visible all at once on Commit.
type MemoryLedgerStore struct {
	mu sync.Mutex // protects everything below

	accounts      map[string]models.Account // committed accounts by id
	numbers       map[string]string         // account number -> account id
	transactions  []models.Transaction      // append-only, in commit order
	transactionIx map[string]int            // transaction id -> index in transactions
	references    map[string]struct{}
	idempotency   map[string]string // idempotency key -> transaction id
	journals      map[string]models.JournalEntry
	journalOrder  []string
	entries       map[string]models.Entry
}

// NewMemoryLedgerStore creates and returns a new MemoryLedgerStore instance
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts:      make(map[string]models.Account),
		numbers:       make(map[string]string),
		transactionIx: make(map[string]int),
		references:    make(map[string]struct{}),
		idempotency:   make(map[string]string),
		journals:      make(map[string]models.JournalEntry),
		entries:       make(map[string]models.Entry),
	}
}

// BeginReadTx opens a scope like BeginTx. Memory scopes hold no locks, and a
// scope that writes nothing commits or rolls back without effect.
func (m *MemoryLedgerStore) BeginReadTx(ctx context.Context) (interfaces.Tx, error) {
	return m.BeginTx(ctx)
}

// Setup is a no-op; there is no schema to create
func (m *MemoryLedgerStore) Setup(ctx context.Context) error {
	return nil
}

func (m *MemoryLedgerStore) Close() error {
	return nil
}

// memoryTx stages writes privately. It remembers the version of every
// account it has seen so Commit can detect concurrent modification.
type memoryTx struct {
	store        *MemoryLedgerStore
	seen         map[string]int64
	accounts     map[string]models.Account
	transactions []models.Transaction
	journals     []models.JournalEntry
	entries      []models.Entry
	done         bool
}

func (m *MemoryLedgerStore) BeginTx(ctx context.Context) (interfaces.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{
		store:    m,
		seen:     make(map[string]int64),
		accounts: make(map[string]models.Account),
	}, nil
}

func (t *memoryTx) observe(a models.Account) {
	if _, ok := t.seen[a.ID]; !ok {
		t.seen[a.ID] = a.Version
	}
}

func (t *memoryTx) Commit() error {
	if t.done {
		return errs.Validation("transaction already finished")
	}
	t.done = true

	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, version := range t.seen {
		if m.accounts[id].Version != version {
			return errs.Conflict("account %s was modified by a concurrent operation", id)
		}
	}

	refs := make(map[string]struct{}, len(t.transactions))
	keys := make(map[string]struct{})
	for _, trx := range t.transactions {
		if _, dup := m.references[trx.Reference]; dup {
			return errs.Conflict("transaction reference %s already exists", trx.Reference)
		}
		if _, dup := refs[trx.Reference]; dup {
			return errs.Conflict("transaction reference %s already exists", trx.Reference)
		}
		refs[trx.Reference] = struct{}{}
		if trx.IdempotencyKey == "" {
			continue
		}
		if _, dup := m.idempotency[trx.IdempotencyKey]; dup {
			return errs.Conflict("idempotency key %s already used", trx.IdempotencyKey)
		}
		if _, dup := keys[trx.IdempotencyKey]; dup {
			return errs.Conflict("idempotency key %s already used", trx.IdempotencyKey)
		}
		keys[trx.IdempotencyKey] = struct{}{}
	}

	// everything validated, publish the stage
	for id, a := range t.accounts {
		m.accounts[id] = a
	}
	for _, trx := range t.transactions {
		m.transactionIx[trx.ID] = len(m.transactions)
		m.transactions = append(m.transactions, trx)
		m.references[trx.Reference] = struct{}{}
		if trx.IdempotencyKey != "" {
			m.idempotency[trx.IdempotencyKey] = trx.ID
		}
	}
	for _, j := range t.journals {
		m.journals[j.ID] = j
		m.journalOrder = append(m.journalOrder, j.ID)
	}
	for _, e := range t.entries {
		m.entries[e.ID] = e
	}
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.accounts = nil
	t.transactions = nil
	t.journals = nil
	t.entries = nil
	return nil
}

// scope resolves tx to a live memoryTx. A nil tx yields nil, nil.
func (m *MemoryLedgerStore) scope(tx interfaces.Tx) (*memoryTx, error) {
	if tx == nil {
		return nil, nil
	}
	t, ok := tx.(*memoryTx)
	if !ok || t.store != m {
		return nil, errs.Validation("transaction does not belong to this store")
	}
	if t.done {
		return nil, errs.Validation("transaction already finished")
	}
	return t, nil
}

func (m *MemoryLedgerStore) requireScope(tx interfaces.Tx) (*memoryTx, error) {
	t, err := m.scope(tx)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errs.Validation("write requires a transaction")
	}
	return t, nil
}

func (m *MemoryLedgerStore) CreateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if account.ID == "" || account.AccountNumber == "" {
		return errs.Validation("account id and number are required")
	}
	if _, exists := m.accounts[account.ID]; exists {
		return errs.Conflict("account %s already exists", account.ID)
	}
	if _, exists := m.numbers[account.AccountNumber]; exists {
		return errs.Conflict("account number %s already exists", account.AccountNumber)
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}
	m.accounts[account.ID] = *account
	m.numbers[account.AccountNumber] = account.ID
	return nil
}

// account returns the freshest view of id for t (staged first, then committed)
func (m *MemoryLedgerStore) account(t *memoryTx, id string) (models.Account, bool) {
	if t != nil {
		if a, ok := t.accounts[id]; ok {
			return a, true
		}
	}
	m.mu.Lock()
	a, ok := m.accounts[id]
	m.mu.Unlock()
	if ok && t != nil {
		t.observe(a)
	}
	return a, ok
}

func (m *MemoryLedgerStore) GetByID(ctx context.Context, tx interfaces.Tx, id string) (*models.Account, error) {
	t, err := m.scope(tx)
	if err != nil {
		return nil, err
	}
	a, ok := m.account(t, id)
	if !ok {
		return nil, errs.NotFound("account %s not found", id)
	}
	return &a, nil
}

func (m *MemoryLedgerStore) GetByAccountNumber(ctx context.Context, tx interfaces.Tx, accountNumber string) (*models.Account, error) {
	t, err := m.scope(tx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	id, ok := m.numbers[accountNumber]
	m.mu.Unlock()
	if !ok {
		return nil, errs.NotFound("account %s not found", accountNumber)
	}
	a, _ := m.account(t, id)
	return &a, nil
}

func (m *MemoryLedgerStore) GetSystemAccount(ctx context.Context, tx interfaces.Tx, currency models.Currency) (*models.Account, error) {
	t, err := m.scope(tx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	var candidates []models.Account
	for _, a := range m.accounts {
		if a.IsSystem() && a.IsActive() && a.Currency == currency {
			candidates = append(candidates, a)
		}
	}
	m.mu.Unlock()

	if len(candidates) == 0 {
		return nil, errs.NotFound("no system account for %s", currency)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].AccountNumber < candidates[j].AccountNumber
	})
	a, _ := m.account(t, candidates[0].ID)
	return &a, nil
}

func (m *MemoryLedgerStore) ApplyBalanceDelta(ctx context.Context, tx interfaces.Tx, accountID string, delta decimal.Decimal) (*models.Account, error) {
	t, err := m.requireScope(tx)
	if err != nil {
		return nil, err
	}
	a, ok := m.account(t, accountID)
	if !ok {
		return nil, errs.NotFound("account %s not found", accountID)
	}
	a.Balance = a.Balance.Add(delta)
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	t.accounts[accountID] = a
	return &a, nil
}

func (m *MemoryLedgerStore) InsertTransaction(ctx context.Context, tx interfaces.Tx, transaction *models.Transaction) error {
	t, err := m.requireScope(tx)
	if err != nil {
		return err
	}
	t.transactions = append(t.transactions, *transaction)
	return nil
}

func (m *MemoryLedgerStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ix, ok := m.transactionIx[id]
	if !ok {
		return nil, errs.NotFound("transaction %s not found", id)
	}
	trx := m.transactions[ix]
	return &trx, nil
}

func inRange(at, from, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}

func (m *MemoryLedgerStore) ListTransactions(ctx context.Context, tx interfaces.Tx, accountID string, from, to time.Time) ([]models.Transaction, error) {
	t, err := m.scope(tx)
	if err != nil {
		return nil, err
	}

	var result []models.Transaction
	m.mu.Lock()
	for _, trx := range m.transactions {
		if trx.AccountID == accountID && inRange(trx.CreatedAt, from, to) {
			result = append(result, trx)
		}
	}
	m.mu.Unlock()

	if t != nil {
		for _, trx := range t.transactions {
			if trx.AccountID == accountID && inRange(trx.CreatedAt, from, to) {
				result = append(result, trx)
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryLedgerStore) ListByOperation(ctx context.Context, operationID string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Transaction
	for _, trx := range m.transactions {
		if trx.OperationID == operationID {
			result = append(result, trx)
		}
	}
	return result, nil
}

func (m *MemoryLedgerStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.idempotency[key]
	if !ok {
		return nil, errs.NotFound("no transaction for idempotency key %s", key)
	}
	trx := m.transactions[m.transactionIx[id]]
	return &trx, nil
}

func (m *MemoryLedgerStore) InsertJournal(ctx context.Context, tx interfaces.Tx, journal *models.JournalEntry, debit, credit *models.Entry) error {
	t, err := m.requireScope(tx)
	if err != nil {
		return err
	}
	t.journals = append(t.journals, *journal)
	t.entries = append(t.entries, *debit, *credit)
	return nil
}

func (m *MemoryLedgerStore) GetJournal(ctx context.Context, id string) (*models.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.journals[id]
	if !ok {
		return nil, errs.NotFound("journal entry %s not found", id)
	}
	return &j, nil
}

// ListEntries returns the debit entry followed by the credit entry
func (m *MemoryLedgerStore) ListEntries(ctx context.Context, journalID string) ([]models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.journals[journalID]
	if !ok {
		return nil, errs.NotFound("journal entry %s not found", journalID)
	}
	return []models.Entry{m.entries[j.DebitEntryID], m.entries[j.CreditEntryID]}, nil
}

func (m *MemoryLedgerStore) ListJournalsByReference(ctx context.Context, reference string) ([]models.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.JournalEntry
	for _, id := range m.journalOrder {
		if j := m.journals[id]; j.Reference == reference {
			result = append(result, j)
		}
	}
	return result, nil
}

// Journals returns every committed journal entry in commit order.
// Useful for audits and tests.
func (m *MemoryLedgerStore) Journals() []models.JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.JournalEntry, 0, len(m.journalOrder))
	for _, id := range m.journalOrder {
		result = append(result, m.journals[id])
	}
	return result
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
