package ledger

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

// Recorder writes immutable transaction rows, each with its own reference
type Recorder struct {
	store interfaces.TransactionStore
	now   func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewRecorder(store interfaces.TransactionStore, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		store:   store,
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// newReference returns a 128-bit ULID. Monotonic entropy keeps references
// minted in the same millisecond distinct.
func (r *Recorder) newReference(at time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(at), r.entropy)
	if err != nil {
		return "", errs.Wrap(err, "generate transaction reference")
	}
	return id.String(), nil
}

func (r *Recorder) Record(ctx context.Context, tx interfaces.Tx, in interfaces.RecordInput) (*models.Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, errs.Validation("transaction amount must be positive")
	}

	createdAt := r.now().UTC()
	reference, err := r.newReference(createdAt)
	if err != nil {
		return nil, err
	}

	trx := &models.Transaction{
		ID:             uuid.NewString(),
		Reference:      reference,
		OperationID:    in.OperationID,
		IdempotencyKey: in.IdempotencyKey,
		Kind:           in.Kind,
		Direction:      in.Direction,
		Category:       in.Category,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Description:    in.Description,
		AccountID:      in.AccountID,
		CreatedAt:      createdAt,
	}
	if err := r.store.InsertTransaction(ctx, tx, trx); err != nil {
		return nil, err
	}
	return trx, nil
}

var _ interfaces.TransactionRecorder = (*Recorder)(nil)
