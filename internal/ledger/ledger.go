package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models/events"
)

// BankChargeDescription labels every fee posting
const BankChargeDescription = "Bank Charge"

// DefaultEventTopic is where TransactionCompleted events go unless overridden
const DefaultEventTopic = "transaction_completed"

// Deps are the collaborators of the orchestrator. Publisher is optional.
type Deps struct {
	Tx           interfaces.TxManager
	Accounts     interfaces.AccountLedger
	Recorder     interfaces.TransactionRecorder
	Journal      interfaces.JournalComposer
	Policy       interfaces.LimitPolicy
	Transactions interfaces.TransactionStore
	Journals     interfaces.JournalStore
	Publisher    interfaces.EventPublisher
}

// Option customises a Ledger
type Option func(*Ledger)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(l *Ledger) { l.log = logger }
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the time zone the daily limit window is computed in
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) { l.loc = loc }
}

func WithEventTopic(topic string) Option {
	return func(l *Ledger) { l.topic = topic }
}

// Ledger is the transaction orchestrator. It holds no in-process locks:
// every money movement runs inside one atomic scope of the store and either
// commits completely or leaves no trace.
type Ledger struct {
	tx           interfaces.TxManager
	accounts     interfaces.AccountLedger
	recorder     interfaces.TransactionRecorder
	journal      interfaces.JournalComposer
	policy       interfaces.LimitPolicy
	transactions interfaces.TransactionStore
	journals     interfaces.JournalStore
	publisher    interfaces.EventPublisher

	log   logrus.FieldLogger
	now   func() time.Time
	loc   *time.Location
	topic string
}

// NewLedger wires the orchestrator from explicit dependencies
func NewLedger(deps Deps, opts ...Option) (*Ledger, error) {
	if deps.Tx == nil || deps.Accounts == nil || deps.Recorder == nil ||
		deps.Journal == nil || deps.Policy == nil || deps.Transactions == nil || deps.Journals == nil {
		return nil, errs.Configuration("ledger dependencies are incomplete")
	}
	l := &Ledger{
		tx:           deps.Tx,
		accounts:     deps.Accounts,
		recorder:     deps.Recorder,
		journal:      deps.Journal,
		policy:       deps.Policy,
		transactions: deps.Transactions,
		journals:     deps.Journals,
		publisher:    deps.Publisher,
		log:          logrus.StandardLogger(),
		now:          time.Now,
		loc:          time.UTC,
		topic:        DefaultEventTopic,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// DepositRequest credits an account from the clearing account
type DepositRequest struct {
	AccountNumber  string
	Amount         decimal.Decimal
	Currency       models.Currency
	Description    string
	IdempotencyKey string
}

// WithdrawalRequest debits an account to the clearing account, plus a bank charge
type WithdrawalRequest struct {
	AccountNumber  string
	Amount         decimal.Decimal
	Currency       models.Currency
	Description    string
	IdempotencyKey string
}

// TransferRequest moves money between two customer accounts through the
// clearing account of the currency
type TransferRequest struct {
	FromAccountNumber string
	ToAccountNumber   string
	Amount            decimal.Decimal
	Currency          models.Currency
	Description       string
	IdempotencyKey    string
}

// BankChargeRequest debits a fee from an account to the clearing account
type BankChargeRequest struct {
	AccountNumber string
	Amount        decimal.Decimal
	Currency      models.Currency
	Description   string
}

func validateMoney(amount decimal.Decimal, currency models.Currency) error {
	if !amount.IsPositive() {
		return errs.Validation("amount must be positive")
	}
	if !currency.Valid() {
		return errs.Validation("unsupported currency %q", currency)
	}
	return nil
}

// run executes fn inside one atomic scope. The scope is rolled back on every
// failing exit path and fn's error is returned unchanged.
func (l *Ledger) run(ctx context.Context, fn func(tx interfaces.Tx) error) (err error) {
	tx, err := l.tx.BeginTx(ctx)
	if err != nil {
		return errs.Wrap(err, "begin transaction")
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				l.log.WithError(rbErr).Error("failed to roll back transaction")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// movement is one balanced posting between a customer and the clearing account
type movement struct {
	operationID    string
	idempotencyKey string
	kind           models.OperationKind
	category       models.Category
	customer       *models.Account
	system         *models.Account
	amount         decimal.Decimal
	description    string
	// direction of the customer leg; the clearing leg takes the opposite
	direction models.Direction
}

// post writes the clearing-account row, the customer row, both balance
// changes and the journal entry of one movement, all inside tx
func (l *Ledger) post(ctx context.Context, tx interfaces.Tx, m movement) (*models.Transaction, *models.JournalEntry, error) {
	systemDirection := models.Debit
	customerDelta := m.amount
	if m.direction == models.Debit {
		systemDirection = models.Credit
		customerDelta = m.amount.Neg()
	}

	record := func(account *models.Account, direction models.Direction, key string) (*models.Transaction, error) {
		return l.recorder.Record(ctx, tx, interfaces.RecordInput{
			OperationID:    m.operationID,
			IdempotencyKey: key,
			Kind:           m.kind,
			Direction:      direction,
			Category:       m.category,
			Amount:         m.amount,
			Currency:       account.Currency,
			Description:    m.description,
			AccountID:      account.ID,
		})
	}

	if _, err := record(m.system, systemDirection, ""); err != nil {
		return nil, nil, err
	}
	customerTrx, err := record(m.customer, m.direction, m.idempotencyKey)
	if err != nil {
		return nil, nil, err
	}

	if _, err := l.accounts.ApplyBalanceDelta(ctx, tx, m.customer.ID, customerDelta); err != nil {
		return nil, nil, err
	}
	if _, err := l.accounts.ApplyBalanceDelta(ctx, tx, m.system.ID, customerDelta.Neg()); err != nil {
		return nil, nil, err
	}

	customerLeg := models.Leg{AccountID: m.customer.ID, Amount: m.amount, Currency: m.customer.Currency, Description: m.description}
	systemLeg := models.Leg{AccountID: m.system.ID, Amount: m.amount, Currency: m.system.Currency, Description: m.description}
	debit, credit := systemLeg, customerLeg
	if m.direction == models.Debit {
		debit, credit = customerLeg, systemLeg
	}

	journal, err := l.journal.Compose(ctx, tx, customerTrx.Reference, m.description, debit, credit)
	if err != nil {
		return nil, nil, err
	}
	return customerTrx, journal, nil
}

// todaysPrincipal sums the principal the account moved on its own initiative
// during the current calendar day: its debits and its deposits. Incoming
// transfer credits were started by someone else and bank charges are not
// principal, so neither counts against the daily limit.
func (l *Ledger) todaysPrincipal(ctx context.Context, tx interfaces.Tx, account *models.Account) (decimal.Decimal, error) {
	now := l.now().In(l.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, l.loc)
	end := start.AddDate(0, 0, 1)

	rows, err := l.transactions.ListTransactions(ctx, tx, account.ID, start.UTC(), end.UTC())
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "load today's transactions")
	}
	total := decimal.Zero
	for _, row := range rows {
		if row.Category != models.CategoryPrincipal {
			continue
		}
		if row.Direction == models.Debit || row.Kind == models.OperationDeposit {
			total = total.Add(row.Amount)
		}
	}
	return total, nil
}

func (l *Ledger) checkDaily(ctx context.Context, tx interfaces.Tx, account *models.Account, amount decimal.Decimal) error {
	if l.policy.Exempt(account.Tier) {
		return nil
	}
	total, err := l.todaysPrincipal(ctx, tx, account)
	if err != nil {
		return err
	}
	return l.policy.CheckDaily(account, total, amount)
}

// Deposit credits the customer and debits the clearing account
func (l *Ledger) Deposit(ctx context.Context, req DepositRequest) (*models.Receipt, error) {
	if err := validateMoney(req.Amount, req.Currency); err != nil {
		return nil, err
	}
	if receipt, err := l.replay(ctx, req.IdempotencyKey, models.OperationDeposit, req.AccountNumber, req.Amount, req.Currency); receipt != nil || err != nil {
		return receipt, err
	}

	receipt := &models.Receipt{OperationID: uuid.NewString(), Kind: models.OperationDeposit}
	err := l.run(ctx, func(tx interfaces.Tx) error {
		account, err := l.accounts.GetActive(ctx, tx, req.AccountNumber, req.Currency)
		if err != nil {
			return err
		}
		if err := l.policy.CheckCredit(account, req.Amount); err != nil {
			return err
		}
		if err := l.checkDaily(ctx, tx, account, req.Amount); err != nil {
			return err
		}
		system, err := l.accounts.GetSystemAccount(ctx, tx, req.Currency)
		if err != nil {
			return err
		}

		trx, journal, err := l.post(ctx, tx, movement{
			operationID:    receipt.OperationID,
			idempotencyKey: req.IdempotencyKey,
			kind:           models.OperationDeposit,
			category:       models.CategoryPrincipal,
			customer:       account,
			system:         system,
			amount:         req.Amount,
			description:    req.Description,
			direction:      models.Credit,
		})
		if err != nil {
			return err
		}
		receipt.Transactions = append(receipt.Transactions, *trx)
		receipt.Journals = append(receipt.Journals, *journal)
		return nil
	})
	if err != nil {
		l.aborted(models.OperationDeposit, req.AccountNumber, err)
		return nil, err
	}

	l.committed(ctx, receipt, events.TransactionCompleted{
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		Charge:        decimal.Zero,
		Currency:      string(req.Currency),
	})
	return receipt, nil
}

// Withdraw debits the customer for the principal and then for the bank charge
func (l *Ledger) Withdraw(ctx context.Context, req WithdrawalRequest) (*models.Receipt, error) {
	if err := validateMoney(req.Amount, req.Currency); err != nil {
		return nil, err
	}
	if receipt, err := l.replay(ctx, req.IdempotencyKey, models.OperationWithdrawal, req.AccountNumber, req.Amount, req.Currency); receipt != nil || err != nil {
		return receipt, err
	}

	charge := l.policy.ChargeFor(req.Amount)
	receipt := &models.Receipt{OperationID: uuid.NewString(), Kind: models.OperationWithdrawal}
	err := l.run(ctx, func(tx interfaces.Tx) error {
		account, err := l.accounts.GetActive(ctx, tx, req.AccountNumber, req.Currency)
		if err != nil {
			return err
		}
		if err := l.policy.CheckDebit(account, req.Amount, charge); err != nil {
			return err
		}
		if err := l.checkDaily(ctx, tx, account, req.Amount); err != nil {
			return err
		}
		system, err := l.accounts.GetSystemAccount(ctx, tx, req.Currency)
		if err != nil {
			return err
		}

		base := movement{
			operationID: receipt.OperationID,
			kind:        models.OperationWithdrawal,
			customer:    account,
			system:      system,
			direction:   models.Debit,
		}

		principal := base
		principal.idempotencyKey = req.IdempotencyKey
		principal.category = models.CategoryPrincipal
		principal.amount = req.Amount
		principal.description = req.Description
		trx, journal, err := l.post(ctx, tx, principal)
		if err != nil {
			return err
		}
		receipt.Transactions = append(receipt.Transactions, *trx)
		receipt.Journals = append(receipt.Journals, *journal)

		if !charge.IsPositive() {
			return nil
		}
		fee := base
		fee.category = models.CategoryCharge
		fee.amount = charge
		fee.description = BankChargeDescription
		trx, journal, err = l.post(ctx, tx, fee)
		if err != nil {
			return err
		}
		receipt.Transactions = append(receipt.Transactions, *trx)
		receipt.Journals = append(receipt.Journals, *journal)
		return nil
	})
	if err != nil {
		l.aborted(models.OperationWithdrawal, req.AccountNumber, err)
		return nil, err
	}

	l.committed(ctx, receipt, events.TransactionCompleted{
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		Charge:        charge,
		Currency:      string(req.Currency),
	})
	return receipt, nil
}

// Transfer moves money in two legs through the clearing account: the source
// pays the clearing account, then the clearing account pays the destination.
func (l *Ledger) Transfer(ctx context.Context, req TransferRequest) (*models.Receipt, error) {
	if err := validateMoney(req.Amount, req.Currency); err != nil {
		return nil, err
	}
	if req.FromAccountNumber == req.ToAccountNumber {
		return nil, errs.Validation("cannot transfer to the same account")
	}
	if receipt, err := l.replay(ctx, req.IdempotencyKey, models.OperationTransfer, req.FromAccountNumber, req.Amount, req.Currency); receipt != nil || err != nil {
		return receipt, err
	}

	receipt := &models.Receipt{OperationID: uuid.NewString(), Kind: models.OperationTransfer}
	err := l.run(ctx, func(tx interfaces.Tx) error {
		source, destination, err := l.transferParties(ctx, tx, req)
		if err != nil {
			return err
		}
		if err := l.policy.CheckDebit(source, req.Amount, decimal.Zero); err != nil {
			return err
		}
		if err := l.checkDaily(ctx, tx, source, req.Amount); err != nil {
			return err
		}
		system, err := l.accounts.GetSystemAccount(ctx, tx, req.Currency)
		if err != nil {
			return err
		}

		legs := []movement{
			{
				idempotencyKey: req.IdempotencyKey,
				customer:       source,
				direction:      models.Debit,
			},
			{
				customer:  destination,
				direction: models.Credit,
			},
		}
		for _, leg := range legs {
			leg.operationID = receipt.OperationID
			leg.kind = models.OperationTransfer
			leg.category = models.CategoryPrincipal
			leg.system = system
			leg.amount = req.Amount
			leg.description = req.Description

			trx, journal, err := l.post(ctx, tx, leg)
			if err != nil {
				return err
			}
			receipt.Transactions = append(receipt.Transactions, *trx)
			receipt.Journals = append(receipt.Journals, *journal)
		}
		return nil
	})
	if err != nil {
		l.aborted(models.OperationTransfer, req.FromAccountNumber, err)
		return nil, err
	}

	l.committed(ctx, receipt, events.TransactionCompleted{
		FromAccount: req.FromAccountNumber,
		ToAccount:   req.ToAccountNumber,
		Amount:      req.Amount,
		Charge:      decimal.Zero,
		Currency:    string(req.Currency),
	})
	return receipt, nil
}

// transferParties resolves both accounts in account-number order so two
// opposite transfers lock rows in the same order
func (l *Ledger) transferParties(ctx context.Context, tx interfaces.Tx, req TransferRequest) (*models.Account, *models.Account, error) {
	numbers := []string{req.FromAccountNumber, req.ToAccountNumber}
	if numbers[1] < numbers[0] {
		numbers[0], numbers[1] = numbers[1], numbers[0]
	}

	resolved := make(map[string]*models.Account, 2)
	for _, number := range numbers {
		account, err := l.accounts.GetActive(ctx, tx, number, req.Currency)
		if err != nil {
			return nil, nil, err
		}
		resolved[number] = account
	}
	return resolved[req.FromAccountNumber], resolved[req.ToAccountNumber], nil
}

// BankCharge debits a standalone fee from an account to the clearing account
func (l *Ledger) BankCharge(ctx context.Context, req BankChargeRequest) (*models.Receipt, error) {
	if err := validateMoney(req.Amount, req.Currency); err != nil {
		return nil, err
	}
	description := req.Description
	if description == "" {
		description = BankChargeDescription
	}

	receipt := &models.Receipt{OperationID: uuid.NewString(), Kind: models.OperationBankCharge}
	err := l.run(ctx, func(tx interfaces.Tx) error {
		account, err := l.accounts.GetActive(ctx, tx, req.AccountNumber, req.Currency)
		if err != nil {
			return err
		}
		if err := l.policy.CheckDebit(account, req.Amount, decimal.Zero); err != nil {
			return err
		}
		system, err := l.accounts.GetSystemAccount(ctx, tx, req.Currency)
		if err != nil {
			return err
		}
		trx, journal, err := l.post(ctx, tx, movement{
			operationID: receipt.OperationID,
			kind:        models.OperationBankCharge,
			category:    models.CategoryCharge,
			customer:    account,
			system:      system,
			amount:      req.Amount,
			description: description,
			direction:   models.Debit,
		})
		if err != nil {
			return err
		}
		receipt.Transactions = append(receipt.Transactions, *trx)
		receipt.Journals = append(receipt.Journals, *journal)
		return nil
	})
	if err != nil {
		l.aborted(models.OperationBankCharge, req.AccountNumber, err)
		return nil, err
	}

	l.committed(ctx, receipt, events.TransactionCompleted{
		AccountNumber: req.AccountNumber,
		Amount:        decimal.Zero,
		Charge:        req.Amount,
		Currency:      string(req.Currency),
	})
	return receipt, nil
}

// replay returns the receipt of an earlier operation that used key.
// It returns nil, nil when key is empty or unused. A key reused for a
// request that differs from the original is a Conflict.
func (l *Ledger) replay(ctx context.Context, key string, kind models.OperationKind, accountNumber string, amount decimal.Decimal, currency models.Currency) (*models.Receipt, error) {
	if key == "" {
		return nil, nil
	}
	original, err := l.transactions.GetByIdempotencyKey(ctx, key)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return nil, nil
		}
		return nil, errs.Wrap(err, "look up idempotency key")
	}

	account, err := l.accounts.GetByAccountNumber(ctx, nil, accountNumber)
	if err != nil {
		return nil, err
	}
	if original.Kind != kind || original.AccountID != account.ID {
		return nil, errs.Conflict("idempotency key %s was used for a different operation", key)
	}
	if !original.Amount.Equal(amount) || original.Currency != currency {
		return nil, errs.Conflict("idempotency key %s was used with a different amount or currency", key)
	}

	system, err := l.accounts.GetSystemAccount(ctx, nil, original.Currency)
	if err != nil {
		return nil, err
	}
	rows, err := l.transactions.ListByOperation(ctx, original.OperationID)
	if err != nil {
		return nil, errs.Wrap(err, "load original operation")
	}

	receipt := &models.Receipt{OperationID: original.OperationID, Kind: kind, Replayed: true}
	for _, row := range rows {
		if row.AccountID == system.ID {
			continue
		}
		receipt.Transactions = append(receipt.Transactions, row)
		journals, err := l.journals.ListJournalsByReference(ctx, row.Reference)
		if err != nil {
			return nil, errs.Wrap(err, "load original journals")
		}
		receipt.Journals = append(receipt.Journals, journals...)
	}
	l.log.WithFields(logrus.Fields{
		"operation_id": original.OperationID,
		"kind":         kind,
	}).Info("replayed idempotent operation")
	return receipt, nil
}

func (l *Ledger) aborted(kind models.OperationKind, accountNumber string, err error) {
	l.log.WithError(err).WithFields(logrus.Fields{
		"kind":           kind,
		"account_number": accountNumber,
		"error_kind":     errs.KindOf(err),
	}).Warn("operation aborted")
}

// committed logs the operation and publishes its event. The commit is
// final at this point, so a publish failure is only logged.
func (l *Ledger) committed(ctx context.Context, receipt *models.Receipt, event events.TransactionCompleted) {
	l.log.WithFields(logrus.Fields{
		"operation_id": receipt.OperationID,
		"kind":         receipt.Kind,
		"rows":         len(receipt.Transactions),
	}).Info("operation committed")

	if l.publisher == nil {
		return
	}
	event.OperationID = receipt.OperationID
	event.Kind = string(receipt.Kind)
	if len(receipt.Transactions) > 0 {
		event.Reference = receipt.Transactions[0].Reference
	}
	event.OccurredAt = l.now().UTC()
	if err := l.publisher.Publish(ctx, l.topic, event); err != nil {
		l.log.WithError(err).WithField("operation_id", receipt.OperationID).Error("failed to publish transaction event")
	}
}
