// log_storage.go implements SQLite persistence for audit entries.
//
// Separated from log.go to isolate database concerns. The project column
// holds a short hash of the repository directory so logs from many
// repositories can be filtered without recording their paths.

package log

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"golang.org/x/crypto/blake2b"
)

// Logger writes audit entries to a SQLite database.
type Logger struct {
	db      *sql.DB
	project string
}

func (l *Logger) log(e Entry) {
	var detail *string
	if len(e.Detail) > 0 {
		if b, err := json.Marshal(e.Detail); err == nil {
			s := string(b)
			detail = &s
		}
	}

	success := 0
	if e.Success {
		success = 1
	}

	_, err := l.db.Exec(`
		INSERT INTO log (start, end, project, source, author, action, code, rule, revision,
		                 resolved_code, result_revision, success, error, kind, stage, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Start, e.End, l.project, e.Source, nilIfEmpty(e.Author), e.Action,
		nilIfEmpty(e.Code), nilIfZero(e.Rule), nilIfZero(e.Revision),
		nilIfEmpty(e.ResolvedCode), nilIfZero(e.ResultRevision),
		success, nilIfEmpty(e.Error), nilIfEmpty(e.Kind), nilIfEmpty(e.Stage), detail,
	)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "dms: audit log write failed: %v\n", err)
	}
}

// dbPathFunc returns the database path. Tests override it.
var dbPathFunc = defaultDBPath

func defaultDBPath() string {
	return filepath.Join(xdg.DataHome, "dms", "log", "dms-log.db")
}

func dbPath() string {
	return dbPathFunc()
}

// DBPath returns the path to the log database.
func DBPath() string {
	return dbPath()
}

// hash creates a 64-bit project identifier from a directory path.
func hash(s string) string {
	h, err := blake2b.New(8, nil)
	if err != nil {
		panic("blake2b.New failed: " + err.Error())
	}
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS log (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			start           INTEGER NOT NULL,
			end             INTEGER NOT NULL,
			project         TEXT NOT NULL,
			source          TEXT NOT NULL,
			author          TEXT,
			action          TEXT NOT NULL,
			code            TEXT,
			rule            INTEGER,
			revision        INTEGER,
			resolved_code   TEXT,
			result_revision INTEGER,
			success         INTEGER NOT NULL,
			error           TEXT,
			kind            TEXT,
			stage           TEXT,
			detail          TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_log_start ON log(start);
		CREATE INDEX IF NOT EXISTS idx_log_project ON log(project);
		CREATE INDEX IF NOT EXISTS idx_log_code ON log(code);
	`)
	return err
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfZero(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
