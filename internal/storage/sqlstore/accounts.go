package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

const accountColumns = `id, user_id, account_number, account_name, balance, currency, tier, type, version, created_at, updated_at, deleted_at`

func scanAccount(row scanner) (*models.Account, error) {
	var (
		account models.Account
		deleted sql.NullTime
	)
	if err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.AccountNumber,
		&account.AccountName,
		&account.Balance,
		&account.Currency,
		&account.Tier,
		&account.Type,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
		&deleted,
	); err != nil {
		return nil, err
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	if deleted.Valid {
		at := deleted.Time.UTC()
		account.DeletedAt = &at
	}
	return &account, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" || account.AccountNumber == "" {
		return errs.Validation("account id and number are required")
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO accounts(`+accountColumns+`)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		account.ID,
		account.UserID,
		account.AccountNumber,
		account.AccountName,
		account.Balance,
		account.Currency,
		account.Tier,
		account.Type,
		account.Version,
		account.CreatedAt.UTC(),
		account.UpdatedAt.UTC(),
		nullTime(account.DeletedAt),
	)
	return classify(err, "failed to insert account "+account.AccountNumber)
}

func (s *Store) getAccount(ctx context.Context, tx interfaces.Tx, where string, args ...interface{}) (*models.Account, error) {
	q, err := s.querier(tx)
	if err != nil {
		return nil, err
	}
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where+s.lockClause(tx), args...)
	return scanAccount(row)
}

func (s *Store) GetByID(ctx context.Context, tx interfaces.Tx, id string) (*models.Account, error) {
	account, err := s.getAccount(ctx, tx, `id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("account %s not found", id)
	}
	if err != nil {
		return nil, classify(err, "failed to load account")
	}
	return account, nil
}

func (s *Store) GetByAccountNumber(ctx context.Context, tx interfaces.Tx, accountNumber string) (*models.Account, error) {
	account, err := s.getAccount(ctx, tx, `account_number = $1`, accountNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("account %s not found", accountNumber)
	}
	if err != nil {
		return nil, classify(err, "failed to load account")
	}
	return account, nil
}

// GetSystemAccount returns the active clearing account of currency with the
// lowest account number
func (s *Store) GetSystemAccount(ctx context.Context, tx interfaces.Tx, currency models.Currency) (*models.Account, error) {
	account, err := s.getAccount(ctx, tx,
		`type = $1 AND currency = $2 AND deleted_at IS NULL ORDER BY account_number LIMIT 1`,
		models.AccountTypeSystem, currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("no system account for %s", currency)
	}
	if err != nil {
		return nil, classify(err, "failed to load system account")
	}
	return account, nil
}

// ApplyBalanceDelta reads the account and writes it back only if its version
// is unchanged. On Postgres the read also holds the row lock until commit.
func (s *Store) ApplyBalanceDelta(ctx context.Context, tx interfaces.Tx, accountID string, delta decimal.Decimal) (*models.Account, error) {
	q, err := s.writer(tx)
	if err != nil {
		return nil, err
	}
	account, err := s.GetByID(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	previous := account.Version
	account.Balance = account.Balance.Add(delta)
	account.Version++
	account.UpdatedAt = time.Now().UTC()

	res, err := q.ExecContext(ctx, `
	UPDATE accounts
	SET balance = $1, version = $2, updated_at = $3
	WHERE id = $4 AND version = $5`,
		account.Balance, account.Version, account.UpdatedAt, account.ID, previous)
	if err != nil {
		return nil, classify(err, "failed to update balance")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to update balance")
	}
	if affected == 0 {
		return nil, errs.Conflict("account %s was modified by a concurrent operation", accountID)
	}
	return account, nil
}
