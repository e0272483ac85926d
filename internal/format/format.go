// Package format provides output formatting utilities for CLI display.
//
// Centralises presentation so that command implementations focus on the
// operation while this package handles tables, sizes and timestamps.
// Tables are rendered with go-pretty in its light style.
package format

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/store"
)

// timeLayout is used for every timestamp shown in a table.
const timeLayout = "2006-01-02 15:04"

// HumanSize formats a byte count as human-readable (e.g., "1.2K", "3.4M").
func HumanSize(bytes int64) string {
	const (
		_        = iota
		KB int64 = 1 << (10 * iota)
		MB
		GB
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1fG", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1fM", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1fK", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

// Time formats t for tables; the zero time prints as "-".
func Time(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// Codes prints one code per line.
func Codes(w io.Writer, codes []string) {
	for _, c := range codes {
		fmt.Fprintln(w, c)
	}
}

// Entry is one row of a long listing: a code with its latest revision.
type Entry struct {
	Code     string            `json:"code"`
	Rule     int               `json:"rule"`
	Latest   document.Metadata `json:"latest"`
	Count    int               `json:"revisions"`
	Tags     []string          `json:"tags,omitempty"`
	Denied   bool              `json:"denied,omitempty"`
	ErrorMsg string            `json:"error,omitempty"`
}

// Long prints entries as a table of code, rule, revision, size, type,
// creation time and tags.
func Long(w io.Writer, entries []Entry) {
	if len(entries) == 0 {
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Code", "Rule", "Rev", "Size", "Type", "Created", "Tags"})
	for _, e := range entries {
		if e.ErrorMsg != "" {
			t.AppendRow(table.Row{e.Code, e.Rule, "-", "-", "-", "-", e.ErrorMsg})
			continue
		}
		t.AppendRow(table.Row{
			e.Code,
			e.Rule,
			fmt.Sprintf("%d/%d", e.Latest.Revision, e.Count),
			HumanSize(e.Latest.Size),
			e.Latest.Mimetype,
			Time(e.Latest.Created),
			strings.Join(e.Tags, ","),
		})
	}
	t.Render()
}

// Revisions prints a document's revision records.
func Revisions(w io.Writer, revs []document.Metadata) {
	if len(revs) == 0 {
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Rev", "Created", "User", "Size", "Type", "Pages", "Description"})
	for _, r := range revs {
		pages := ""
		if r.Pages > 0 {
			pages = strconv.Itoa(r.Pages)
		}
		t.AppendRow(table.Row{
			r.Revision,
			Time(r.Created),
			r.User,
			HumanSize(r.Size),
			r.Mimetype,
			pages,
			r.Description,
		})
	}
	t.Render()
}

// Metadata prints a single revision record as key/value lines.
func Metadata(w io.Writer, code string, m document.Metadata, tags []string) {
	fmt.Fprintf(w, "Code:        %s\n", code)
	fmt.Fprintf(w, "Revision:    %d\n", m.Revision)
	fmt.Fprintf(w, "Created:     %s\n", Time(m.Created))
	if m.User != "" {
		fmt.Fprintf(w, "User:        %s\n", m.User)
	}
	fmt.Fprintf(w, "Size:        %s\n", HumanSize(m.Size))
	if m.Mimetype != "" {
		fmt.Fprintf(w, "Type:        %s\n", m.Mimetype)
	}
	if m.Pages > 0 {
		fmt.Fprintf(w, "Pages:       %d\n", m.Pages)
	}
	if m.Compression != "" {
		fmt.Fprintf(w, "Compression: %s\n", m.Compression)
	}
	if m.Hashcode != "" {
		fmt.Fprintf(w, "Hashcode:    %s\n", m.Hashcode)
	}
	if m.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", m.Description)
	}
	if len(tags) > 0 {
		fmt.Fprintf(w, "Tags:        %s\n", strings.Join(tags, ", "))
	}
}

// Rules prints the document code rules in classification order.
func Rules(w io.Writer, rules []*doccode.Rule) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Title", "Pattern", "Split", "Format", "Active"})
	for _, r := range rules {
		pattern := r.Pattern
		if r.NoDoccode {
			pattern = "(uncategorized)"
		}
		format := r.Format
		if format != "" && r.Width > 0 {
			format = fmt.Sprintf("%s (width %d)", format, r.Width)
		}
		t.AppendRow(table.Row{r.ID, r.Title, pattern, r.Split, format, yesNo(r.Active)})
	}
	t.Render()
}

// Stages prints the registered stages with their points and rules.
func Stages(w io.Writer, regs []plugin.Registration) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Name", "Class", "Order", "Points", "Rules", "Active"})
	for _, r := range regs {
		points := make([]string, len(r.Points))
		for i, p := range r.Points {
			points[i] = string(p)
		}
		rules := "all"
		if !r.Global {
			ids := slices.Clone(r.Rules)
			slices.Sort(ids)
			s := make([]string, len(ids))
			for i, id := range ids {
				s[i] = strconv.Itoa(id)
			}
			rules = strings.Join(s, ",")
		}
		t.AppendRow(table.Row{
			r.Info.Name,
			string(r.Info.Class),
			r.Info.Order,
			strings.Join(points, ","),
			rules,
			yesNo(r.Info.Active),
		})
	}
	t.Render()
}

// Tags prints tag counts.
func Tags(w io.Writer, tags []store.TagCount) {
	if len(tags) == 0 {
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Tag", "Documents"})
	for _, tc := range tags {
		t.AppendRow(table.Row{tc.Tag, tc.Count})
	}
	t.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
