// Package repo provides repository initialisation and discovery for dms.
//
// A dms repository is a .dms directory holding the metadata database
// (sequences, tags, optionally revisions) and, for the local backend, the
// document tree. This package handles:
//   - Initialising new repositories (creating .dms/, the database and the
//     document root)
//   - Discovering existing repositories by walking up the directory tree
//   - Controlling git visibility via .gitignore (local vs shared data)
//
// The discovery algorithm mirrors git's approach: starting from the current
// directory, walk up until a .dms directory containing the database is
// found, or the filesystem root is reached.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jpl-au/dms/internal/store"
)

const (
	// Dir is the directory name for the dms repository.
	Dir = ".dms"
	// DBFile is the database filename.
	DBFile = "dms.db"
	// DocumentsDir is the default local backend root inside Dir.
	DocumentsDir = "documents"
)

// ErrNotInitialised is returned when no dms repository is found.
var ErrNotInitialised = errors.New("dms not initialised (run 'dms init')")

// Repo is a discovered repository.
type Repo struct {
	// Dir is the absolute path of the .dms directory.
	Dir string
}

// DBPath returns the database path.
func (r Repo) DBPath() string { return filepath.Join(r.Dir, DBFile) }

// Resolve returns p relative to the repository directory unless it is
// already absolute.
func (r Repo) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.Dir, p)
}

// Init initialises a new dms repository.
//
// Init does not write config: following the git model, configuration is a
// separate concern managed via "dms config".
//
// Parameters:
//   - force: reinitialise the database of an existing repository; stored
//     documents are kept
//   - local: add the database and document tree to .gitignore
//   - dir: target directory (empty for current directory)
func Init(force, local bool, dir string) (Repo, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(filepath.Join(dir, Dir))
	if err != nil {
		return Repo{}, fmt.Errorf("resolve directory: %w", err)
	}
	r := Repo{Dir: abs}

	if _, err := os.Stat(r.DBPath()); err == nil {
		if !force {
			return Repo{}, fmt.Errorf("repository already exists in %s (use --force to reinitialise)", abs)
		}
		if err := os.Remove(r.DBPath()); err != nil {
			return Repo{}, fmt.Errorf("remove database: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Join(abs, DocumentsDir), 0755); err != nil {
		return Repo{}, fmt.Errorf("create directory: %w", err)
	}

	s, err := store.Open(r.DBPath())
	if err != nil {
		return Repo{}, fmt.Errorf("open store: %w", err)
	}
	defer s.Close()
	if err := s.Init(); err != nil {
		return Repo{}, fmt.Errorf("init store: %w", err)
	}

	// Only create on first init so custom entries survive a reinit.
	gitignore := filepath.Join(abs, ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		s := `# dms - ignore local config and database journals
config.yaml
*.db-wal
*.db-shm
`
		if err := os.WriteFile(gitignore, []byte(s), 0644); err != nil {
			return Repo{}, fmt.Errorf("write gitignore: %w", err)
		}
	}

	if local {
		if err := Ignore(abs); err != nil {
			return Repo{}, fmt.Errorf("ignore data: %w", err)
		}
	}
	return r, nil
}

// Discover walks up from the working directory looking for a repository.
func Discover() (Repo, error) {
	wd, err := os.Getwd()
	if err != nil {
		return Repo{}, fmt.Errorf("get working directory: %w", err)
	}
	return DiscoverFrom(wd)
}

// DiscoverFrom walks up from dir looking for a repository.
func DiscoverFrom(dir string) (Repo, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return Repo{}, err
	}
	for {
		candidate := filepath.Join(dir, Dir)
		if _, err := os.Stat(filepath.Join(candidate, DBFile)); err == nil {
			return Repo{Dir: candidate}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Repo{}, ErrNotInitialised
		}
		dir = parent
	}
}
