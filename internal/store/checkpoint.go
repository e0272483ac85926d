// checkpoint.go implements WAL checkpointing.
//
// Called on graceful shutdown so a closed repository is a single file with
// no -wal/-shm companions. TRUNCATE mode empties the WAL completely.

package store

import (
	"context"
	"fmt"
)

// Checkpoint writes all WAL data back to the main database file and
// truncates the WAL.
func (s *SQLiteStore) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}
	return nil
}
