package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/dms/internal/errs"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
		wantExt  string
		wantErr  bool
	}{
		{"simple", "ADL-1001.pdf", "ADL-1001", "pdf", false},
		{"upper ext", "ADL-1001.PDF", "ADL-1001", "pdf", false},
		{"no ext", "ADL-1001", "ADL-1001", "", false},
		{"double ext", "report.tar.gz", "report.tar", "gz", false},
		{"empty", "", "", "", true},
		{"null byte", "ADL\x00.pdf", "", "", true},
		{"slash", "a/ADL-1001.pdf", "", "", true},
		{"backslash", `a\ADL-1001.pdf`, "", "", true},
		{"dot only", ".pdf", "", "", true},
		{"dotdot", "...pdf", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ext, err := Filename(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFilename)
				assert.ErrorIs(t, err, errs.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestCode(t *testing.T) {
	valid := []string{"ADL-1001", "4111111111111111", "my doc", strings.Repeat("a", MaxCodeLength)}
	for _, c := range valid {
		assert.NoError(t, Code(c), c)
	}

	invalid := []string{"", "   ", ".hidden", "..", "a/b", `a\b`, "a\x00b", strings.Repeat("a", MaxCodeLength+1)}
	for _, c := range invalid {
		err := Code(c)
		assert.ErrorIs(t, err, ErrInvalidCode, "%q", c)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	}
}

func TestTag(t *testing.T) {
	assert.NoError(t, Tag("invoice"))
	assert.NoError(t, Tag("paid 2026"))
	for _, bad := range []string{"", " ", "a,b", "a\x00"} {
		assert.ErrorIs(t, Tag(bad), ErrInvalidTag, "%q", bad)
	}
}

func TestTags(t *testing.T) {
	assert.NoError(t, Tags(nil))
	assert.NoError(t, Tags([]string{"a", "b"}))
	assert.ErrorIs(t, Tags([]string{"a", "b,c"}), ErrInvalidTag)
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, ParseTags(" a, b,,a , c "))
	assert.Nil(t, ParseTags(""))
	assert.Nil(t, ParseTags(" , "))
}

func TestContent(t *testing.T) {
	assert.NoError(t, Content(100, 0))
	assert.NoError(t, Content(100, 100))
	err := Content(101, 100)
	assert.ErrorIs(t, err, ErrContentTooLarge)
	assert.ErrorIs(t, err, errs.ErrValidation)
}
