// Package log records an audit trail of dms operations.
//
// Entries land in a SQLite database under the XDG data home
// ($XDG_DATA_HOME/dms/log/dms-log.db) so every repository on the machine
// shares one queryable history. Logging is best-effort: a failed write is
// reported on stderr and never fails the operation being logged.
//
// # Fluent API
//
//	log.Event("dms:ingest", "store").
//		Author(user.Name).
//		Code(res.Code).
//		Rule(res.Rule).
//		ResultRevision(res.Revision).
//		Write(err)
//
//	log.Event("pipeline:before_retrieval", "run").
//		Code(doc.Code).
//		Detail("stages", names).
//		Write(err)
//
// Sources follow "{area}:{operation}": "dms:fetch", "mcp:dms_ingest",
// "watch:ingest", "pipeline:storage".
package log

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jpl-au/dms/internal/errs"
)

var (
	global *Logger
	mu     sync.Mutex
)

// Entry is a single audit record.
type Entry struct {
	Source   string // e.g. "dms:fetch", "mcp:dms_ingest"
	Author   string // user the operation ran as
	Action   string // verb: store, read, delete, list, run
	Code     string // input: document code requested
	Rule     int    // rule governing the code
	Revision int    // input: revision requested

	// Output fields, set once the operation has succeeded.
	ResolvedCode   string // code actually used (allocated, renamed)
	ResultRevision int    // revision created or served

	Start int64 // unix timestamp when Event() called
	End   int64 // unix timestamp when Write() called

	Success bool
	Error   string
	Kind    string // taxonomy kind of Error
	Stage   string // stage that raised Error, if any
	Detail  map[string]any
}

// Builder constructs an Entry. Create with [Event], then call [Builder.Write].
type Builder struct {
	entry Entry
}

// Event starts an entry for an operation.
func Event(source, action string) *Builder {
	return &Builder{
		entry: Entry{
			Source: source,
			Action: action,
			Start:  time.Now().Unix(),
		},
	}
}

// Author sets who performed the operation.
func (b *Builder) Author(author string) *Builder {
	b.entry.Author = author
	return b
}

// Code sets the document code the operation targets.
func (b *Builder) Code(code string) *Builder {
	b.entry.Code = code
	return b
}

// Rule sets the governing rule id.
func (b *Builder) Rule(id int) *Builder {
	b.entry.Rule = id
	return b
}

// Revision sets the revision the caller asked for.
func (b *Builder) Revision(rev int) *Builder {
	b.entry.Revision = rev
	return b
}

// Resolved sets the code actually used when it differs from the input,
// such as an allocated identifier or a rename target.
func (b *Builder) Resolved(code string) *Builder {
	b.entry.ResolvedCode = code
	return b
}

// ResultRevision sets the revision created or served.
func (b *Builder) ResultRevision(rev int) *Builder {
	b.entry.ResultRevision = rev
	return b
}

// Detail adds a key-value pair. Can be called repeatedly.
func (b *Builder) Detail(key string, value any) *Builder {
	if b.entry.Detail == nil {
		b.entry.Detail = make(map[string]any)
	}
	b.entry.Detail[key] = value
	return b
}

// Write records the entry, deriving success, kind and stage from err.
func (b *Builder) Write(err error) {
	b.entry.End = time.Now().Unix()
	b.entry.Success = err == nil
	if err != nil {
		b.entry.Error = err.Error()
		b.entry.Kind = string(errs.KindOf(err))
		b.entry.Stage = errs.StageOf(err)
	}
	Log(b.entry)
}

// Open initialises the global logger. Safe to call multiple times.
// Errors are returned but callers may choose to ignore them.
func Open() error {
	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		return nil
	}

	p := dbPath()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", p+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return err
	}

	global = &Logger{db: db}
	return nil
}

// SetProject sets the project identifier for subsequent entries.
// dir should be the absolute path to the .dms directory.
func SetProject(dir string) {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		global.project = hash(dir)
	}
}

// Log writes an entry. A no-op until Open succeeds.
func Log(e Entry) {
	mu.Lock()
	l := global
	mu.Unlock()

	if l == nil {
		return
	}
	l.log(e)
}

// Close closes the global logger.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		global.db.Close()
		global = nil
	}
}
