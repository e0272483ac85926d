// Package diff compares two revisions of a document.
//
// Text revisions get a line diff with collapsed context. Anything else
// (images, PDFs, compressed office files) is compared by size and equality
// only, since a byte diff of binary content means nothing to a reader.
package diff

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/jpl-au/dms/internal/errs"
)

// contextLines is the number of unchanged lines shown before/after changes.
// When equal sections exceed 2*contextLines, they're collapsed with "...".
const contextLines = 3

// sniffLen bounds how much of a revision is inspected for binary content.
const sniffLen = 8000

// Differ compares two revisions of a code. from or to may be 0 for the
// latest revision.
type Differ interface {
	Diff(ctx context.Context, code string, from, to int, user string) (Result, error)
}

// Run executes a diff and writes the formatted result to w.
func Run(ctx context.Context, w io.Writer, svc Differ, code string, from, to int, user string, colour bool) (Result, error) {
	r, err := svc.Diff(ctx, code, from, to, user)
	if err != nil {
		return r, err
	}
	fmt.Fprint(w, r.Format(colour))
	return r, nil
}

// Result holds diff output.
type Result struct {
	Old    string `json:"old"`  // old label
	New    string `json:"new"`  // new label
	Diff   string `json:"diff"` // plain diff text
	Binary bool   `json:"binary,omitempty"`
	Same   bool   `json:"same"`
}

// Compute returns a diff between two revisions' content.
func Compute(oldContent, newContent []byte, oldLabel, newLabel string) Result {
	r := Result{Old: oldLabel, New: newLabel, Same: bytes.Equal(oldContent, newContent)}
	if IsBinary(oldContent) || IsBinary(newContent) {
		r.Binary = true
		if !r.Same {
			r.Diff = fmt.Sprintf("binary content differs (%d bytes -> %d bytes)\n", len(oldContent), len(newContent))
		}
		return r
	}

	dmp := diffmatchpatch.New()
	d := dmp.DiffMain(string(oldContent), string(newContent), false)
	d = dmp.DiffCleanupSemantic(d)
	r.Diff = format(d)
	return r
}

// IsBinary reports whether data looks like something other than UTF-8
// text: a NUL byte or invalid UTF-8 in the leading sniffLen bytes.
func IsBinary(data []byte) bool {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
		// Don't fail on a rune split by the cut.
		for i := 0; i < utf8.UTFMax && len(head) > 0 && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	return bytes.IndexByte(head, 0) >= 0 || !utf8.Valid(head)
}

// format converts diffs to unified-style text.
func format(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	for _, d := range diffs {
		// Trim trailing newline to avoid artefact empty string from Split
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" {
			continue
		}
		lines := strings.Split(text, "\n")
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			for _, l := range lines {
				b.WriteString("- " + l + "\n")
			}
		case diffmatchpatch.DiffInsert:
			for _, l := range lines {
				b.WriteString("+ " + l + "\n")
			}
		case diffmatchpatch.DiffEqual:
			if len(lines) <= 2*contextLines {
				for _, l := range lines {
					b.WriteString("  " + l + "\n")
				}
				continue
			}
			for _, l := range lines[:contextLines] {
				b.WriteString("  " + l + "\n")
			}
			b.WriteString("  ...\n")
			for _, l := range lines[len(lines)-contextLines:] {
				b.WriteString("  " + l + "\n")
			}
		}
	}
	return b.String()
}

// Colourise adds ANSI colours to diff output.
func Colourise(d string) string {
	const (
		red   = "\033[31m"
		green = "\033[32m"
		reset = "\033[0m"
	)

	var b strings.Builder
	for line := range strings.SplitSeq(d, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "- "):
			b.WriteString(red + line + reset + "\n")
		case strings.HasPrefix(line, "+ "):
			b.WriteString(green + line + reset + "\n")
		default:
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// Format returns the full diff with header.
func (r Result) Format(colour bool) string {
	header := fmt.Sprintf("--- %s\n+++ %s\n", r.Old, r.New)
	if r.Same {
		return header + "  (no changes)\n"
	}
	if colour {
		return header + Colourise(r.Diff)
	}
	return header + r.Diff
}

// ParseRevisionRange parses "3:5" into two revisions. A single number "3"
// compares revision 3 against the latest (to is 0).
func ParseRevisionRange(s string) (from, to int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) > 2 {
		return 0, 0, errs.Validationf("invalid revision range %q (expected from:to)", s)
	}
	if anyEmpty(parts) {
		return 0, 0, errs.Validationf("invalid revision range %q: both revisions required", s)
	}
	from, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errs.Validationf("invalid start revision %q", parts[0])
	}
	if from < 1 {
		return 0, 0, errs.Validationf("start revision must be >= 1")
	}
	if len(parts) == 1 {
		return from, 0, nil
	}
	to, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, errs.Validationf("invalid end revision %q", parts[1])
	}
	if to < 1 {
		return 0, 0, errs.Validationf("end revision must be >= 1")
	}
	return from, to, nil
}

func anyEmpty(parts []string) bool {
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return true
		}
	}
	return false
}
