// Package document defines the value object that flows through a pipeline
// run: the bytes being stored or served, what is known about them, and the
// caller's request options.
//
// A Document is built fresh for every request and handed to each stage by
// exclusive reference. Stages replace fields rather than share them; once a
// run ends the caller keeps or discards the whole object.
package document

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jpl-au/dms/internal/doccode"
)

// Version is the document field-set version. Bumped when fields change
// meaning, so stages compiled against an older layout can refuse to run.
const Version = 1

// User identifies the caller and the groups they belong to. Authentication
// happens before dms sees the request; an empty Name is anonymous.
type User struct {
	Name   string   `json:"name"`
	Groups []string `json:"groups,omitempty"`
}

// Anonymous reports whether no user was supplied.
func (u User) Anonymous() bool { return u.Name == "" }

// InGroup reports membership of group.
func (u User) InGroup(group string) bool {
	return slices.Contains(u.Groups, group)
}

// Metadata is the record kept with one stored revision. It is written once
// by the storage stage and never modified afterwards.
type Metadata struct {
	Revision    int       `json:"revision"`
	Created     time.Time `json:"created"`
	User        string    `json:"user,omitempty"`
	Description string    `json:"description,omitempty"`
	Compression string    `json:"compression,omitempty"`
	Mimetype    string    `json:"mimetype,omitempty"`
	Extension   string    `json:"extension,omitempty"`
	Hashcode    string    `json:"hashcode,omitempty"`
	// Size is the content length before any transfer encoding.
	Size        int64     `json:"size"`
	Pages       int       `json:"pages,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Options carries per-request settings stages may read.
type Options struct {
	// OnlyMetadata asks retrieval to load revision records without content.
	OnlyMetadata bool
	Description  string
	// NewName renames a document during an update.
	NewName string
	// Extra holds stage-specific settings keyed by stage name or option.
	Extra map[string]string
}

// Document is the mutable state of one pipeline run.
type Document struct {
	RunID uuid.UUID

	Code      string
	Filename  string
	Extension string

	Rule *doccode.Rule
	// Uncategorized is set when no pattern rule claimed the name and the
	// fallback rule (or no rule) is handling it.
	Uncategorized bool

	Buffer   []byte
	Mimetype string
	// RequestedExtension is the format a retrieval should produce.
	RequestedExtension string

	// Revision is the revision being retrieved or removed, or the one just
	// stored. Zero means latest on retrieval and all on removal.
	Revision  int
	Current   Metadata
	Revisions []Metadata

	Tags       []string
	AddTags    []string
	RemoveTags []string

	User    User
	Options Options
}

// New creates a document for a single run.
func New(code string, rule *doccode.Rule, user User) *Document {
	return &Document{
		RunID: uuid.New(),
		Code:  code,
		Rule:  rule,
		User:  user,
	}
}

// Size returns the current buffer length.
func (d *Document) Size() int64 { return int64(len(d.Buffer)) }

// ServedName returns the name the document should be served under.
func (d *Document) ServedName() string {
	ext := d.Extension
	if d.RequestedExtension != "" {
		ext = d.RequestedExtension
	}
	if ext == "" {
		return d.Code
	}
	return d.Code + "." + ext
}

// Option returns an Extra option value.
func (d *Document) Option(key string) string {
	if d.Options.Extra == nil {
		return ""
	}
	return d.Options.Extra[key]
}

// SetOption sets an Extra option value.
func (d *Document) SetOption(key, value string) {
	if d.Options.Extra == nil {
		d.Options.Extra = make(map[string]string)
	}
	d.Options.Extra[key] = value
}

// RuleID returns the governing rule's id, or zero for an unruled document.
func (d *Document) RuleID() int {
	if d.Rule == nil {
		return 0
	}
	return d.Rule.ID
}
