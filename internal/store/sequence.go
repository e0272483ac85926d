// sequence.go implements doccode.Sequencer on the sequences table.
//
// Without an accept check the increment is one upsert with RETURNING, so it
// is atomic across every connection and process sharing the database. The
// WHERE clause on the update arm keeps an exhausted counter untouched. With
// an accept check the candidate is read, judged in Go, then committed with a
// compare-and-swap on the value it was derived from.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jpl-au/dms/internal/errs"
)

const maxSequenceRetries = 64

// Next implements doccode.Sequencer.
func (s *SQLiteStore) Next(ctx context.Context, ruleID int, start, max int64, accept func(n int64) bool) (int64, error) {
	if accept != nil {
		return s.nextChecked(ctx, ruleID, start, max, accept)
	}
	if start >= max {
		// A fresh counter would already be past the end.
		if _, ok, err := s.Last(ctx, ruleID); err != nil {
			return 0, errs.Transientf("%v", err)
		} else if !ok {
			return 0, errs.SequenceExhaustedf("rule %d", ruleID)
		}
	}

	var last int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (rule_id, last) VALUES (?, ?)
		ON CONFLICT (rule_id) DO UPDATE SET last = last + 1, updated_at = unixepoch()
		WHERE last < ?
		RETURNING last`,
		ruleID, start+1, max,
	).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errs.SequenceExhaustedf("rule %d", ruleID)
	}
	if err != nil {
		return 0, errs.Transientf("sequence for rule %d: %v", ruleID, err)
	}
	return last, nil
}

func (s *SQLiteStore) nextChecked(ctx context.Context, ruleID int, start, max int64, accept func(n int64) bool) (int64, error) {
	for range maxSequenceRetries {
		last, ok, err := s.Last(ctx, ruleID)
		if err != nil {
			return 0, errs.Transientf("%v", err)
		}
		if !ok {
			last = start
		}
		if last >= max {
			return 0, errs.SequenceExhaustedf("rule %d at %d", ruleID, last)
		}
		if !accept(last + 1) {
			return 0, errs.SequenceExhaustedf("rule %d: %d refused", ruleID, last+1)
		}

		var next int64
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO sequences (rule_id, last) VALUES (?, ?)
			ON CONFLICT (rule_id) DO UPDATE SET last = excluded.last, updated_at = unixepoch()
			WHERE last = ?
			RETURNING last`,
			ruleID, last+1, last,
		).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return 0, errs.Transientf("sequence for rule %d: %v", ruleID, err)
		}
		return next, nil
	}
	return 0, errs.Transientf("sequence for rule %d: too much contention", ruleID)
}

// Last returns the most recently allocated number for a rule, or false if
// the rule never allocated one.
func (s *SQLiteStore) Last(ctx context.Context, ruleID int) (int64, bool, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `SELECT last FROM sequences WHERE rule_id = ?`, ruleID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read sequence for rule %d: %w", ruleID, err)
	}
	return last, true, nil
}

// SetLast moves a rule's counter. Moving it backwards would hand out
// numbers twice, so only forward moves are accepted.
func (s *SQLiteStore) SetLast(ctx context.Context, ruleID int, last int64) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sequences (rule_id, last) VALUES (?, ?)
		ON CONFLICT (rule_id) DO UPDATE SET last = excluded.last, updated_at = unixepoch()
		WHERE excluded.last >= last`,
		ruleID, last,
	)
	if err != nil {
		return fmt.Errorf("set sequence for rule %d: %w", ruleID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.Validationf("rule %d: sequence cannot move backwards", ruleID)
	}
	return nil
}
