// filename.go validates uploaded filenames and document codes.
//
// Codes end up as directory and file names in the local backend and as
// object name components in the GCS backend, so anything that could escape
// the storage root or confuse a path join is rejected here, before a rule
// ever sees the name.

package validate

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxCodeLength bounds a document code. Codes become filenames, and most
// filesystems cap a single name at 255 bytes; revision suffixes need room.
const MaxCodeLength = 200

// Filename validates an uploaded filename and returns its stripped name
// (the document code candidate) and its lower-cased extension without the
// leading dot.
//
// Validation rules:
//   - Empty names rejected
//   - Null bytes rejected
//   - Directory components rejected (callers pass a base name)
//   - The stripped name must itself be a valid Code
func Filename(name string) (code, ext string, err error) {
	if name == "" {
		return "", "", fmt.Errorf("%w: empty filename", ErrInvalidFilename)
	}
	if strings.ContainsRune(name, 0) {
		return "", "", fmt.Errorf("%w: null byte in filename", ErrInvalidFilename)
	}
	if strings.ContainsAny(name, `/\`) {
		return "", "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	}

	e := filepath.Ext(name)
	code = strings.TrimSuffix(name, e)
	ext = strings.ToLower(strings.TrimPrefix(e, "."))

	if err := Code(code); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidFilename, err)
	}
	return code, ext, nil
}

// Code validates a document code.
//
// Validation rules:
//   - Empty codes rejected
//   - Null bytes, path separators and whitespace-only codes rejected
//   - Leading dots rejected (hidden files, "." and "..")
//   - Max length MaxCodeLength
func Code(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidCode)
	}
	if strings.ContainsRune(code, 0) {
		return fmt.Errorf("%w: null byte in code", ErrInvalidCode)
	}
	if strings.ContainsAny(code, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidCode, code)
	}
	if strings.HasPrefix(code, ".") {
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidCode, code)
	}
	if len(code) > MaxCodeLength {
		return fmt.Errorf("%w: code longer than %d bytes", ErrInvalidCode, MaxCodeLength)
	}
	return nil
}
