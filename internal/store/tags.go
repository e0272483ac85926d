// tags.go implements Tagger.
//
// Separated from revisions.go because tags describe a document code, not a
// revision. They have their own lifecycle: tagging ADL-1001 applies to all
// of its revisions, present and future.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jpl-au/dms/internal/validate"
)

// Tags implements Tagger.
func (s *SQLiteStore) Tags(ctx context.Context, code string) ([]string, error) {
	return s.queryStrings(ctx, `SELECT tag FROM tags WHERE code = ? ORDER BY tag`, code)
}

// Tag implements Tagger.
func (s *SQLiteStore) Tag(ctx context.Context, code string, tags ...string) error {
	for _, t := range tags {
		if err := validate.Tag(t); err != nil {
			return err
		}
	}
	now := time.Now().Unix()
	return s.Tx(ctx, func(tx *sql.Tx) error {
		for _, t := range tags {
			id, err := genID()
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO tags (id, code, tag, created_at) VALUES (?, ?, ?, ?)
				ON CONFLICT (code, tag) DO NOTHING`, id, code, t, now)
			if err != nil {
				return fmt.Errorf("tag %s with %s: %w", code, t, err)
			}
		}
		return nil
	})
}

// Untag implements Tagger.
func (s *SQLiteStore) Untag(ctx context.Context, code string, tags ...string) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		for _, t := range tags {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE code = ? AND tag = ?`, code, t); err != nil {
				return fmt.Errorf("untag %s from %s: %w", t, code, err)
			}
		}
		return nil
	})
}

// ClearTags implements Tagger.
func (s *SQLiteStore) ClearTags(ctx context.Context, code string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE code = ?`, code); err != nil {
		return fmt.Errorf("clear tags on %s: %w", code, err)
	}
	return nil
}

// RenameTags implements Tagger. Tags the target already carries are kept
// once.
func (s *SQLiteStore) RenameTags(ctx context.Context, from, to string) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE OR IGNORE tags SET code = ? WHERE code = ?`, to, from); err != nil {
			return fmt.Errorf("move tags %s -> %s: %w", from, to, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE code = ?`, from); err != nil {
			return fmt.Errorf("move tags %s -> %s: %w", from, to, err)
		}
		return nil
	})
}

// CodesWithTag implements Tagger.
func (s *SQLiteStore) CodesWithTag(ctx context.Context, tag string) ([]string, error) {
	return s.queryStrings(ctx, `SELECT code FROM tags WHERE tag = ? ORDER BY code`, tag)
}

// AllTags implements Tagger.
func (s *SQLiteStore) AllTags(ctx context.Context) ([]TagCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag, COUNT(*) FROM tags GROUP BY tag ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
