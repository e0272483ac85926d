// Package ingest provides ingestion of files and directory trees from the
// local filesystem.
//
// Each file's base name decides its code, the same as a single upload, so a
// scanner output folder of ADL-1001.pdf, ADL-1002.pdf ingests as expected.
// Directories are walked through an os.Root so symlinks cannot lead the
// walk outside the source tree. Files are ingested concurrently; one failed
// file does not stop the rest.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jpl-au/dms/internal/progress"
	"github.com/jpl-au/dms/internal/service"
)

// DefaultConcurrency bounds parallel ingests of a directory.
const DefaultConcurrency = 4

// Options configures an ingest operation.
type Options struct {
	service.IngestOptions

	User        string // User attributed with every revision
	Hidden      bool   // Include hidden files and directories
	DryRun      bool   // List what would be ingested
	Concurrency int    // Parallel ingests (0 = DefaultConcurrency)
}

// Item is one ingested file.
type Item struct {
	File string `json:"file"`
	service.IngestResult
}

// Failure is one file that could not be ingested.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Result contains the outcome of an ingest operation.
type Result struct {
	Ingested []Item    `json:"ingested"`
	Failed   []Failure `json:"failed,omitempty"`
	Files    []string  `json:"files,omitempty"` // Dry run only
}

// Run ingests src, a file or a directory. The returned error joins every
// per-file failure; the result still lists the files that succeeded.
func Run(ctx context.Context, w io.Writer, svc service.Service, src string, opts Options) (Result, error) {
	var result Result

	info, err := os.Stat(src)
	if err != nil {
		return result, err
	}

	if !info.IsDir() {
		if opts.DryRun {
			result.Files = []string{src}
			fmt.Fprintf(w, "Would ingest: %s\n", src)
			return result, nil
		}
		f, err := os.Open(src)
		if err != nil {
			return result, err
		}
		defer f.Close()
		res, err := svc.Ingest(ctx, filepath.Base(src), f, opts.User, opts.IngestOptions)
		if err != nil {
			return result, fmt.Errorf("%s: %w", src, err)
		}
		result.Ingested = append(result.Ingested, Item{File: src, IngestResult: res})
		report(w, src, res)
		return result, nil
	}

	if opts.Code != "" {
		return result, errors.New("--code applies to a single file")
	}

	root, err := os.OpenRoot(src)
	if err != nil {
		return result, fmt.Errorf("opening source root: %w", err)
	}
	defer root.Close()

	files, err := scanRoot(root, "", opts.Hidden)
	if err != nil {
		return result, fmt.Errorf("scanning %s: %w", src, err)
	}
	if opts.DryRun {
		result.Files = files
		for _, rel := range files {
			fmt.Fprintf(w, "Would ingest: %s\n", filepath.Join(src, rel))
		}
		return result, nil
	}

	prog := progress.New("Ingesting", len(files))
	defer prog.Done()

	var (
		mu   sync.Mutex
		fail []error
	)
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, rel := range files {
		g.Go(func() error {
			res, err := ingestFile(ctx, svc, root, rel, opts)
			prog.Increment()

			mu.Lock()
			defer mu.Unlock()
			path := filepath.Join(src, rel)
			if err != nil {
				result.Failed = append(result.Failed, Failure{File: path, Error: err.Error()})
				fail = append(fail, fmt.Errorf("%s: %w", path, err))
				return nil
			}
			result.Ingested = append(result.Ingested, Item{File: path, IngestResult: res})
			report(w, path, res)
			return nil
		})
	}
	g.Wait()
	slices.SortFunc(result.Ingested, func(a, b Item) int { return strings.Compare(a.File, b.File) })
	slices.SortFunc(result.Failed, func(a, b Failure) int { return strings.Compare(a.File, b.File) })
	return result, errors.Join(fail...)
}

func ingestFile(ctx context.Context, svc service.Service, root *os.Root, rel string, opts Options) (service.IngestResult, error) {
	f, err := root.Open(rel)
	if err != nil {
		return service.IngestResult{}, err
	}
	defer f.Close()
	return svc.Ingest(ctx, filepath.Base(rel), f, opts.User, opts.IngestOptions)
}

func report(w io.Writer, file string, res service.IngestResult) {
	fmt.Fprintf(w, "Ingested: %s -> %s (revision %d)\n", file, res.Code, res.Revision)
}

// scanRoot recursively lists regular files within an os.Root, returning
// paths relative to the root.
func scanRoot(root *os.Root, dir string, includeHidden bool) ([]string, error) {
	path := dir
	if path == "" {
		path = "."
	}
	f, err := root.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if !includeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		rel := name
		if dir != "" {
			rel = filepath.Join(dir, name)
		}
		switch {
		case entry.IsDir():
			sub, err := scanRoot(root, rel, includeHidden)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		case entry.Type().IsRegular():
			files = append(files, rel)
		}
	}
	return files, nil
}
