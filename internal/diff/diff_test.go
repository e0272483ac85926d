package diff

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/dms/internal/errs"
)

func TestParseRevisionRange(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		from, to int
		errMsg   string
	}{
		{name: "valid range", input: "1:3", from: 1, to: 3},
		{name: "same revision", input: "2:2", from: 2, to: 2},
		{name: "against latest", input: "4", from: 4},
		{name: "empty colon", input: ":", errMsg: "both revisions required"},
		{name: "missing start", input: ":5", errMsg: "both revisions required"},
		{name: "missing end", input: "3:", errMsg: "both revisions required"},
		{name: "too many colons", input: "1:2:3", errMsg: "expected from:to"},
		{name: "non-numeric start", input: "abc:5", errMsg: "invalid start revision"},
		{name: "non-numeric end", input: "3:xyz", errMsg: "invalid end revision"},
		{name: "zero start", input: "0:3", errMsg: "start revision must be >= 1"},
		{name: "negative end", input: "1:-5", errMsg: "end revision must be >= 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := ParseRevisionRange(tt.input)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, errs.ErrValidation)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestCompute_Text(t *testing.T) {
	old := []byte("one\ntwo\nthree\n")
	cur := []byte("one\n2\nthree\n")
	r := Compute(old, cur, "INV-1 r1", "INV-1 r2")
	assert.False(t, r.Binary)
	assert.False(t, r.Same)
	assert.Contains(t, r.Diff, "- two")
	assert.Contains(t, r.Diff, "+ 2")

	out := r.Format(false)
	assert.True(t, strings.HasPrefix(out, "--- INV-1 r1\n+++ INV-1 r2\n"))
}

func TestCompute_CollapsesContext(t *testing.T) {
	var lines []string
	for range 20 {
		lines = append(lines, "same")
	}
	body := strings.Join(lines, "\n") + "\n"
	r := Compute([]byte(body+"a\n"), []byte(body+"b\n"), "a", "b")
	assert.Contains(t, r.Diff, "  ...\n")
	assert.Equal(t, 2*contextLines+1, strings.Count(r.Diff, "  same")+strings.Count(r.Diff, "  ..."))
}

func TestCompute_Binary(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0x0d}
	r := Compute(png, append(bytes.Clone(png), 1), "a", "b")
	assert.True(t, r.Binary)
	assert.Equal(t, "binary content differs (8 bytes -> 9 bytes)\n", r.Diff)

	same := Compute(png, png, "a", "b")
	assert.True(t, same.Same)
	assert.Contains(t, same.Format(false), "(no changes)")
}

func TestIsBinary(t *testing.T) {
	assert.False(t, IsBinary([]byte("plain text")))
	assert.False(t, IsBinary(nil))
	assert.True(t, IsBinary([]byte{'a', 0, 'b'}))
	assert.True(t, IsBinary([]byte{0xff, 0xfe}))

	// A multi-byte rune straddling the sniff boundary is still text.
	long := append(bytes.Repeat([]byte("a"), sniffLen-1), []byte("é")...)
	assert.False(t, IsBinary(long))
}

func TestColourise(t *testing.T) {
	out := Colourise("- a\n+ b\n  c\n")
	assert.Contains(t, out, "\033[31m- a\033[0m")
	assert.Contains(t, out, "\033[32m+ b\033[0m")
	assert.Contains(t, out, "  c\n")
}
