// revisions.go implements storage.Backend inside the database.
//
// Separated from sequence.go because revision numbers are scoped per unit,
// not per rule. The counter upsert is the first statement of the store
// transaction, so the write lock is taken before anything is read and two
// concurrent stores to the same unit simply queue.
//
// Design: content is a BLOB next to its metadata JSON. This backend suits
// repositories of modest size where one file is easier to ship than a
// directory tree; the local backend remains the default.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/storage"
)

// listPage bounds how many codes List fetches per query.
const listPage = 256

// Store implements storage.Backend.
func (s *SQLiteStore) Store(ctx context.Context, rule *doccode.Rule, code string, data []byte, meta document.Metadata) (int, error) {
	unit, err := storage.UnitPath(rule, code)
	if err != nil {
		return 0, err
	}
	if data == nil {
		data = []byte{}
	}

	var rev int
	err = s.Tx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO revision_counters (unit, last) VALUES (?, 1)
			ON CONFLICT (unit) DO UPDATE SET last = last + 1
			RETURNING last`, unit).Scan(&rev)
		if err != nil {
			return errs.Transientf("allocate revision for %s: %v", code, err)
		}

		meta.Revision = rev
		if meta.Size == 0 {
			meta.Size = int64(len(data))
		}
		encoded, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO revisions (unit, rule_id, code, revision, content, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			unit, rule.ID, code, rev, data, string(encoded), time.Now().Unix())
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return errs.Collisionf("%s revision %d already exists", code, rev)
			}
			return errs.Transientf("store %s r%d: %v", code, rev, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rev, nil
}

func decodeMetadata(raw string) (document.Metadata, error) {
	var m document.Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, errs.Transientf("corrupt revision metadata: %v", err)
	}
	return m, nil
}

// Retrieve implements storage.Backend.
func (s *SQLiteStore) Retrieve(ctx context.Context, rule *doccode.Rule, code string, rev int) ([]byte, document.Metadata, error) {
	unit, err := storage.UnitPath(rule, code)
	if err != nil {
		return nil, document.Metadata{}, err
	}

	var row *sql.Row
	if rev == 0 {
		row = s.db.QueryRowContext(ctx, `
			SELECT content, metadata FROM revisions
			WHERE unit = ? ORDER BY revision DESC LIMIT 1`, unit)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT content, metadata FROM revisions
			WHERE unit = ? AND revision = ?`, unit, rev)
	}

	var data []byte
	var raw string
	err = row.Scan(&data, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		if rev == 0 {
			return nil, document.Metadata{}, errs.NotFoundf("document %s", code)
		}
		return nil, document.Metadata{}, errs.NotFoundf("document %s revision %d", code, rev)
	}
	if err != nil {
		return nil, document.Metadata{}, errs.Transientf("retrieve %s: %v", code, err)
	}
	meta, err := decodeMetadata(raw)
	if err != nil {
		return nil, document.Metadata{}, err
	}
	return data, meta, nil
}

// Revisions implements storage.Backend.
func (s *SQLiteStore) Revisions(ctx context.Context, rule *doccode.Rule, code string) ([]document.Metadata, error) {
	unit, err := storage.UnitPath(rule, code)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT metadata FROM revisions WHERE unit = ? ORDER BY revision`, unit)
	if err != nil {
		return nil, errs.Transientf("revisions %s: %v", code, err)
	}
	defer rows.Close()

	var revs []document.Metadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		revs = append(revs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Transientf("revisions %s: %v", code, err)
	}
	if len(revs) == 0 {
		return nil, errs.NotFoundf("document %s", code)
	}
	return revs, nil
}

func scanMetadata(sc scanner) (document.Metadata, error) {
	var raw string
	if err := sc.Scan(&raw); err != nil {
		return document.Metadata{}, errs.Transientf("scan revision: %v", err)
	}
	return decodeMetadata(raw)
}

// Delete implements storage.Backend. The unit's counter row is never
// deleted, so a code stored again after a full removal continues its
// numbering.
func (s *SQLiteStore) Delete(ctx context.Context, rule *doccode.Rule, code string, rev int) error {
	unit, err := storage.UnitPath(rule, code)
	if err != nil {
		return err
	}

	return s.Tx(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		if rev == 0 {
			res, err = tx.ExecContext(ctx, `DELETE FROM revisions WHERE unit = ?`, unit)
		} else {
			res, err = tx.ExecContext(ctx, `DELETE FROM revisions WHERE unit = ? AND revision = ?`, unit, rev)
		}
		if err != nil {
			return errs.Transientf("delete %s: %v", code, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if rev == 0 {
				return errs.NotFoundf("document %s", code)
			}
			return errs.NotFoundf("document %s revision %d", code, rev)
		}
		return nil
	})
}

// List implements storage.Backend. Codes are read a page at a time with a
// keyset cursor, so a long listing never holds a read transaction open
// while the caller works.
func (s *SQLiteStore) List(ctx context.Context, rule *doccode.Rule) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if rule == nil {
			yield("", errs.Configurationf("storage: list without a rule"))
			return
		}
		after := ""
		for {
			codes, err := s.listPage(ctx, rule.ID, after)
			if err != nil {
				yield("", err)
				return
			}
			for _, c := range codes {
				if !yield(c, nil) {
					return
				}
			}
			if len(codes) < listPage {
				return
			}
			after = codes[len(codes)-1]
		}
	}
}

func (s *SQLiteStore) listPage(ctx context.Context, ruleID int, after string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT code FROM revisions
		WHERE rule_id = ? AND code > ?
		ORDER BY code LIMIT ?`, ruleID, after, listPage)
	if err != nil {
		return nil, errs.Transientf("list rule %d: %v", ruleID, err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, errs.Transientf("list rule %d: %v", ruleID, err)
		}
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Transientf("list rule %d: %v", ruleID, err)
	}
	return codes, nil
}
