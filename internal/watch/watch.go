// Package watch implements hot-folder ingestion: files dropped into a
// directory are ingested and then moved aside, to done/ on success or to
// failed/ with an accompanying .error file.
//
// A file is picked up once no filesystem event has touched it for the
// debounce period, so a scanner still writing a large PDF is not ingested
// half-written. Ingestion runs on a bounded pool; the event loop never
// blocks on it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/jpl-au/dms/internal/service"
)

// Folder names created inside the watched directory.
const (
	DoneDir   = "done"
	FailedDir = "failed"
)

// Defaults for zero Config fields.
const (
	DefaultDebounce    = 500 * time.Millisecond
	DefaultConcurrency = 4
)

// Ingester is the part of service.Service the watcher needs.
type Ingester interface {
	Ingest(ctx context.Context, filename string, r io.Reader, user string, opts service.IngestOptions) (service.IngestResult, error)
}

// Config holds watcher configuration.
type Config struct {
	// Dir is the watched directory.
	Dir string
	// User is attributed with every ingested revision.
	User string
	// Options are applied to every ingest.
	Options service.IngestOptions
	// Debounce is how long a file must stay quiet before it is ingested.
	Debounce time.Duration
	// Concurrency bounds parallel ingests.
	Concurrency int
	// OnResult, if set, is called after each file is processed. It may be
	// called from several goroutines at once.
	OnResult func(Result)
}

// Result reports one processed file.
type Result struct {
	File     string                `json:"file"`
	MovedTo  string                `json:"moved_to"`
	Ingest   *service.IngestResult `json:"ingest,omitempty"`
	Err      error                 `json:"-"`
	ErrorMsg string                `json:"error,omitempty"`
}

// Watcher ingests files appearing in a directory.
type Watcher struct {
	svc Ingester
	cfg Config

	mu       sync.Mutex
	inflight map[string]bool
}

// New validates cfg and creates the done/ and failed/ folders.
func New(svc Ingester, cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch: directory required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", cfg.Dir)
	}
	cfg.Dir = filepath.Clean(cfg.Dir)
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	for _, d := range []string{DoneDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, d), 0o755); err != nil {
			return nil, fmt.Errorf("watch: %w", err)
		}
	}
	return &Watcher{svc: svc, cfg: cfg, inflight: make(map[string]bool)}, nil
}

// Once ingests every file currently in the directory and returns.
func (w *Watcher) Once(ctx context.Context) error {
	files, err := w.pending()
	if err != nil {
		return err
	}
	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		if !w.claim(f) {
			// Already being ingested by a concurrent Run or Once.
			continue
		}
		g.Go(func() error {
			w.process(ctx, f)
			return nil
		})
	}
	g.Wait()
	return ctx.Err()
}

// Run ingests the files already present, then watches for new ones until
// ctx is cancelled. In-flight ingests finish before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", w.cfg.Dir, err)
	}

	// Files present at startup are treated as already quiet.
	quiet := make(map[string]time.Time)
	existing, err := w.pending()
	if err != nil {
		return err
	}
	for _, f := range existing {
		quiet[f] = time.Time{}
	}

	// Ingests outlive ctx so a shutdown does not send files to failed/.
	work := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	defer g.Wait()

	tick := time.NewTicker(max(w.cfg.Debounce/2, time.Millisecond))
	defer tick.Stop()

	slog.Info("watching", "dir", w.cfg.Dir, "concurrency", w.cfg.Concurrency, "debounce", w.cfg.Debounce)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.relevant(ev) {
				quiet[filepath.Clean(ev.Name)] = time.Now()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)

		case now := <-tick.C:
			for f, last := range quiet {
				if now.Sub(last) < w.cfg.Debounce {
					continue
				}
				if !w.claim(f) {
					// Still in flight; a rewrite is picked up once it lands.
					continue
				}
				if !g.TryGo(func() error {
					w.process(work, f)
					return nil
				}) {
					// Pool full; retry on the next tick.
					w.release(f)
					continue
				}
				delete(quiet, f)
			}
		}
	}
}

// relevant reports whether ev may announce a file to ingest.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}
	if filepath.Dir(filepath.Clean(ev.Name)) != w.cfg.Dir {
		return false
	}
	return candidate(filepath.Base(ev.Name))
}

// candidate skips hidden files and common partial-download names.
func candidate(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tmp", ".part", ".crdownload", ".error":
		return false
	}
	return true
}

// pending lists the regular files waiting in the directory.
func (w *Watcher) pending() ([]string, error) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !candidate(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(w.cfg.Dir, e.Name()))
	}
	return files, nil
}

// claim marks f in flight. It reports false if f is already being
// processed.
func (w *Watcher) claim(f string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inflight[f] {
		return false
	}
	w.inflight[f] = true
	return true
}

func (w *Watcher) release(f string) {
	w.mu.Lock()
	delete(w.inflight, f)
	w.mu.Unlock()
}

// process ingests one file and moves it aside.
func (w *Watcher) process(ctx context.Context, path string) {
	defer w.release(path)

	name := filepath.Base(path)
	res := Result{File: name}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		// Gone before we got to it.
		return
	}
	var in service.IngestResult
	if err == nil {
		in, err = w.svc.Ingest(ctx, name, f, w.cfg.User, w.cfg.Options)
		f.Close()
	}
	dest := DoneDir
	if err != nil {
		dest = FailedDir
		res.Err = err
		res.ErrorMsg = err.Error()
		slog.Warn("ingest failed", "file", name, "error", err)
	} else {
		res.Ingest = &in
		slog.Info("ingested", "file", name, "code", in.Code, "revision", in.Revision)
	}

	moved, merr := move(path, filepath.Join(w.cfg.Dir, dest))
	if merr != nil {
		slog.Error("move failed", "file", name, "error", merr)
		if res.Err == nil {
			res.Err = merr
			res.ErrorMsg = merr.Error()
		}
	}
	res.MovedTo = moved
	if err != nil && merr == nil {
		if werr := os.WriteFile(moved+".error", []byte(err.Error()+"\n"), 0o644); werr != nil {
			slog.Warn("write error file", "file", name, "error", werr)
		}
	}

	if w.cfg.OnResult != nil {
		w.cfg.OnResult(res)
	}
}

// move renames path into dir, adding a numeric suffix when the name is
// taken. Returns the new path.
func move(path, dir string) (string, error) {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	dest := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Lstat(dest); errors.Is(err, os.ErrNotExist) {
			break
		}
		dest = filepath.Join(dir, fmt.Sprintf("%s.%d%s", stem, i, ext))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}
