package sqlstore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

const (
	journalColumns = `id, reference, description, posted_at, debit_entry_id, credit_entry_id`
	entryColumns   = `id, journal_entry_id, account_id, amount, currency, direction, description, posted_at`
)

func scanJournal(row scanner) (*models.JournalEntry, error) {
	var j models.JournalEntry
	if err := row.Scan(&j.ID, &j.Reference, &j.Description, &j.Date, &j.DebitEntryID, &j.CreditEntryID); err != nil {
		return nil, err
	}
	j.Date = j.Date.UTC()
	return &j, nil
}

// InsertJournal writes the header first so the entries' foreign keys resolve
func (s *Store) InsertJournal(ctx context.Context, tx interfaces.Tx, journal *models.JournalEntry, debit, credit *models.Entry) error {
	q, err := s.writer(tx)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, `
	INSERT INTO journal_entries(`+journalColumns+`)
	VALUES($1, $2, $3, $4, $5, $6)`,
		journal.ID, journal.Reference, journal.Description, journal.Date.UTC(), journal.DebitEntryID, journal.CreditEntryID,
	); err != nil {
		return classify(err, "failed to insert journal entry")
	}

	for _, e := range []*models.Entry{debit, credit} {
		if _, err := q.ExecContext(ctx, `
		INSERT INTO entries(`+entryColumns+`)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.JournalEntryID, e.AccountID, e.Amount, e.Currency, e.Direction, e.Description, e.Date.UTC(),
		); err != nil {
			return classify(err, "failed to insert entry")
		}
	}
	return nil
}

func (s *Store) GetJournal(ctx context.Context, id string) (*models.JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+journalColumns+` FROM journal_entries WHERE id = $1`, id)
	j, err := scanJournal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("journal entry %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load journal entry")
	}
	return j, nil
}

// ListEntries returns the debit entry followed by the credit entry
func (s *Store) ListEntries(ctx context.Context, journalID string) ([]models.Entry, error) {
	journal, err := s.GetJournal(ctx, journalID)
	if err != nil {
		return nil, err
	}

	result := make([]models.Entry, 0, 2)
	for _, id := range []string{journal.DebitEntryID, journal.CreditEntryID} {
		var e models.Entry
		if err := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id).Scan(
			&e.ID, &e.JournalEntryID, &e.AccountID, &e.Amount, &e.Currency, &e.Direction, &e.Description, &e.Date,
		); err != nil {
			return nil, errors.Wrapf(err, "failed to load entry %s", id)
		}
		e.Date = e.Date.UTC()
		result = append(result, e)
	}
	return result, nil
}

func (s *Store) ListJournalsByReference(ctx context.Context, reference string) ([]models.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+journalColumns+`
	FROM journal_entries
	WHERE reference = $1
	ORDER BY posted_at, id`, reference)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list journal entries")
	}
	defer rows.Close()

	var result []models.JournalEntry
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list journal entries")
		}
		result = append(result, *j)
	}
	return result, errors.Wrap(rows.Err(), "failed to list journal entries")
}
