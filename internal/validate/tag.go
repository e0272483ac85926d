// tag.go implements tag string validation.
//
// Tags are labels, not identifiers. Only clearly dangerous inputs (empty,
// null bytes, commas which the CLI uses as a list separator) are rejected.

package validate

import (
	"fmt"
	"strings"
)

// Tag validates a tag string.
func Tag(t string) error {
	if strings.TrimSpace(t) == "" {
		return fmt.Errorf("%w: empty tag", ErrInvalidTag)
	}
	if strings.ContainsRune(t, 0) {
		return fmt.Errorf("%w: null byte in tag", ErrInvalidTag)
	}
	if strings.ContainsRune(t, ',') {
		return fmt.Errorf("%w: comma in tag %q", ErrInvalidTag, t)
	}
	return nil
}

// Tags validates every tag, reporting the first invalid one.
func Tags(tags []string) error {
	for _, t := range tags {
		if err := Tag(t); err != nil {
			return err
		}
	}
	return nil
}

// ParseTags splits a comma separated tag string, trimming blanks and
// dropping empty entries. Duplicates are removed, first occurrence wins.
func ParseTags(s string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		t := strings.TrimSpace(part)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}
