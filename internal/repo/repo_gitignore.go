// repo_gitignore.go manages .gitignore entries for local vs shared data.
//
// Separated from repo.go to isolate gitignore manipulation logic. A dms
// repository's data (the database and the local document tree) is either
// shared, committed alongside the project, or local to one checkout. This
// file provides Ignore/Unignore to switch between the two by maintaining
// the .dms/.gitignore file.
//
// Design: We preserve existing gitignore content and formatting, only adding
// or removing the data entries. A header comment marks the local section.

package repo

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const localHeader = "# Local data (not committed)"

// dataEntries are the paths Ignore adds.
var dataEntries = []string{DBFile, DocumentsDir + "/"}

// parseGitignore reads a gitignore file and returns its lines (trimmed).
func parseGitignore(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines, nil
}

// Ignore adds the repository data to the gitignore in dir (marks local).
func Ignore(dir string) error {
	gitignore := filepath.Join(dir, ".gitignore")
	lines, err := parseGitignore(gitignore)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(gitignore)
	if err != nil {
		return err
	}
	s := string(content)
	if !strings.HasSuffix(s, "\n") && s != "" {
		s += "\n"
	}
	added := false
	for _, e := range dataEntries {
		if slices.Contains(lines, e) {
			continue
		}
		if !added && !slices.Contains(lines, localHeader) {
			s += "\n" + localHeader + "\n"
		}
		s += e + "\n"
		added = true
	}
	if !added {
		return nil
	}
	return os.WriteFile(gitignore, []byte(s), 0644)
}

// Unignore removes the repository data from the gitignore (marks shared).
func Unignore(dir string) error {
	gitignore := filepath.Join(dir, ".gitignore")
	content, err := os.ReadFile(gitignore)
	if err != nil {
		return err
	}

	var out []string
	for _, line := range strings.Split(string(content), "\n") {
		t := strings.TrimSpace(line)
		if slices.Contains(dataEntries, t) || t == localHeader {
			continue
		}
		out = append(out, line)
	}
	result := strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"
	return os.WriteFile(gitignore, []byte(result), 0644)
}

// IsIgnored reports whether the repository data is marked local.
func IsIgnored(dir string) (bool, error) {
	lines, err := parseGitignore(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return false, err
	}
	return slices.Contains(lines, DBFile), nil
}
