package format

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/store"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0B"},
		{1023, "1023B"},
		{1024, "1.0K"},
		{1536, "1.5K"},
		{5 << 20, "5.0M"},
		{3 << 30, "3.0G"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanSize(tt.in))
	}
}

func TestTime(t *testing.T) {
	assert.Equal(t, "-", Time(time.Time{}))
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	assert.Equal(t, "2024-03-01 09:30", Time(ts))
}

func TestLong(t *testing.T) {
	var buf bytes.Buffer
	Long(&buf, []Entry{
		{Code: "ADL-1001", Rule: 1, Count: 2, Tags: []string{"a", "b"},
			Latest: document.Metadata{Revision: 2, Size: 2048, Mimetype: "application/pdf"}},
		{Code: "ADL-1002", Rule: 1, Denied: true, ErrorMsg: "permission denied"},
	})
	out := buf.String()
	assert.Contains(t, out, "ADL-1001")
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, "2.0K")
	assert.Contains(t, out, "a,b")
	assert.Contains(t, out, "permission denied")

	buf.Reset()
	Long(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestMetadata(t *testing.T) {
	var buf bytes.Buffer
	Metadata(&buf, "ADL-1001", document.Metadata{Revision: 3, User: "bob", Size: 10, Pages: 4}, []string{"x"})
	out := buf.String()
	assert.Contains(t, out, "Code:        ADL-1001")
	assert.Contains(t, out, "Revision:    3")
	assert.Contains(t, out, "Pages:       4")
	assert.Contains(t, out, "Tags:        x")
	assert.NotContains(t, out, "Description")
}

func TestRulesAndStages(t *testing.T) {
	var buf bytes.Buffer
	Rules(&buf, []*doccode.Rule{
		{ID: 1, Title: "Invoices", Pattern: "ADL-[0-9]{4}", Format: "ADL-%s", Width: 4, Active: true},
		{ID: 1000, Title: "Uncategorized", NoDoccode: true, Split: "hash:2"},
	})
	out := buf.String()
	assert.Contains(t, out, "ADL-%s (width 4)")
	assert.Contains(t, out, "(uncategorized)")

	buf.Reset()
	Stages(&buf, []plugin.Registration{
		{Info: plugin.Info{Name: "security", Active: true}, Global: true},
		{Info: plugin.Info{Name: "tagger"}, Rules: []int{3, 1}},
	})
	out = buf.String()
	assert.Contains(t, out, "all")
	assert.Contains(t, out, "1,3")
}

func TestTags(t *testing.T) {
	var buf bytes.Buffer
	Tags(&buf, []store.TagCount{{Tag: "finance", Count: 3}})
	assert.Contains(t, buf.String(), "finance")
	assert.Contains(t, buf.String(), "3")
}
