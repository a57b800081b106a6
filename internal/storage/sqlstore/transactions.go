package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

const transactionColumns = `id, reference, operation_id, idempotency_key, kind, direction, category, amount, currency, description, account_id, created_at`

func scanTransaction(row scanner) (*models.Transaction, error) {
	var (
		trx models.Transaction
		key sql.NullString
	)
	if err := row.Scan(
		&trx.ID,
		&trx.Reference,
		&trx.OperationID,
		&key,
		&trx.Kind,
		&trx.Direction,
		&trx.Category,
		&trx.Amount,
		&trx.Currency,
		&trx.Description,
		&trx.AccountID,
		&trx.CreatedAt,
	); err != nil {
		return nil, err
	}
	trx.IdempotencyKey = key.String
	trx.CreatedAt = trx.CreatedAt.UTC()
	return &trx, nil
}

func scanTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	defer rows.Close()

	var result []models.Transaction
	for rows.Next() {
		trx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *trx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// nullString stores an empty key as NULL so the unique index ignores it
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) InsertTransaction(ctx context.Context, tx interfaces.Tx, trx *models.Transaction) error {
	q, err := s.writer(tx)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
	INSERT INTO transactions(`+transactionColumns+`)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		trx.ID,
		trx.Reference,
		trx.OperationID,
		nullString(trx.IdempotencyKey),
		trx.Kind,
		trx.Direction,
		trx.Category,
		trx.Amount,
		trx.Currency,
		trx.Description,
		trx.AccountID,
		trx.CreatedAt.UTC(),
	)
	return classify(err, "failed to insert transaction "+trx.Reference)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	trx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("transaction %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load transaction")
	}
	return trx, nil
}

// ListTransactions orders rows by creation time and then by reference, which
// is monotonic, so rows written in the same instant keep their write order
func (s *Store) ListTransactions(ctx context.Context, tx interfaces.Tx, accountID string, from, to time.Time) ([]models.Transaction, error) {
	q, err := s.querier(tx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = $1`
	args := []interface{}{accountID}
	if !from.IsZero() {
		args = append(args, from.UTC())
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to.UTC())
		query += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}
	query += ` ORDER BY created_at, reference`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "failed to list transactions")
	}
	result, err := scanTransactions(rows)
	return result, errors.Wrap(err, "failed to list transactions")
}

func (s *Store) ListByOperation(ctx context.Context, operationID string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+transactionColumns+`
	FROM transactions
	WHERE operation_id = $1
	ORDER BY created_at, reference`, operationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list operation transactions")
	}
	result, err := scanTransactions(rows)
	return result, errors.Wrap(err, "failed to list operation transactions")
}

func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`, key)
	trx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("no transaction for idempotency key %s", key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load transaction by idempotency key")
	}
	return trx, nil
}
