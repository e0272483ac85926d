// Package service defines the shared interface for document operations.
// Commands, the MCP server, the hot folder and extensions depend on this
// interface rather than the concrete implementation in internal/dms,
// enabling testing with fakes.
package service

import (
	"context"
	"io"
	"iter"

	"github.com/jpl-au/dms/internal/diff"
	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/store"
)

// IngestOptions tunes an ingestion.
type IngestOptions struct {
	// Code stores the content under this code instead of the one derived
	// from the filename. The code must still belong to a rule.
	Code string
	// Allocate asks for a freshly allocated code. Rule selects the rule to
	// allocate under; zero means the rule the filename classifies to.
	Allocate bool
	Rule     int

	Description string
	Tags        []string
	// Mimetype overrides detection when the caller knows better.
	Mimetype string
	// Options are passed to stages (for example "hashcode").
	Options map[string]string
}

// IngestResult reports where content was stored.
type IngestResult struct {
	Code          string   `json:"code"`
	Revision      int      `json:"revision"`
	Rule          int      `json:"rule"`
	Uncategorized bool     `json:"uncategorized,omitempty"`
	Stages        []string `json:"stages,omitempty"`
}

// FetchOptions tunes a retrieval.
type FetchOptions struct {
	// Format is the extension to convert to, e.g. "pdf". Empty serves the
	// stored format.
	Format string
	// Revision selects a revision; zero is the latest.
	Revision int
	User     string
	// OnlyMetadata loads revision records without content.
	OnlyMetadata bool
	Options      map[string]string
}

// FetchResult is a served document.
type FetchResult struct {
	Data      []byte              `json:"-"`
	Mimetype  string              `json:"mimetype"`
	Filename  string              `json:"filename"`
	Code      string              `json:"code"`
	Revision  int                 `json:"revision"`
	Metadata  document.Metadata   `json:"metadata"`
	Revisions []document.Metadata `json:"revisions,omitempty"`
	Tags      []string            `json:"tags,omitempty"`
	// Cached is set when the content came from the retrieval cache.
	Cached bool `json:"cached,omitempty"`
}

// UpdateOptions describes a change to an existing document.
type UpdateOptions struct {
	AddTags    []string
	RemoveTags []string
	// NewName moves the latest revision to another code.
	NewName string
	User    string
	Options map[string]string
}

// UpdateResult reports the document after an update.
type UpdateResult struct {
	Code     string   `json:"code"`
	Revision int      `json:"revision"`
	Tags     []string `json:"tags,omitempty"`
	Renamed  bool     `json:"renamed,omitempty"`
}

// Service defines all document operations.
//
// Use dms.Open() to obtain a Service implementation wired from
// configuration. Always call Close() when done (use defer).
//
// Example:
//
//	svc, err := dms.Open(ctx, r, cfg)
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//	res, err := svc.Fetch(ctx, "ADL-1001", service.FetchOptions{User: "alice"})
//
// Rules and stages may be registered until the first request; the first
// Ingest, Fetch, Remove, Update or ListCodes seals both registries.
type Service interface {
	// Close releases database and backend resources.
	Close() error

	// Ingest classifies filename, runs the before_storage and storage
	// pipelines and returns the stored code and revision.
	//
	// A name no rule claims goes to the uncategorized rule, or fails with a
	// validation error when the uncategorized policy is reject.
	Ingest(ctx context.Context, filename string, r io.Reader, user string, opts IngestOptions) (IngestResult, error)

	// Fetch runs the before_retrieval pipeline for code. Errors carry their
	// taxonomy kind: errs.ErrAuthorization when a security stage refuses,
	// errs.ErrNotFound for an unknown code or revision.
	Fetch(ctx context.Context, code string, opts FetchOptions) (FetchResult, error)

	// Remove deletes one revision, or all of them when revision is 0.
	Remove(ctx context.Context, code string, revision int, user string) error

	// Update runs the before_update pipeline: tag edits, then an optional
	// rename that re-ingests the latest revision under NewName.
	Update(ctx context.Context, code string, opts UpdateOptions) (UpdateResult, error)

	// ListCodes enumerates the codes stored under a rule.
	ListCodes(ctx context.Context, ruleID int) iter.Seq2[string, error]

	// History returns every revision record of code, oldest first.
	History(ctx context.Context, code, user string) ([]document.Metadata, error)

	// Diff compares two revisions of code; 0 means the latest.
	Diff(ctx context.Context, code string, from, to int, user string) (diff.Result, error)

	// Rules returns the registered rules in classification order.
	Rules() []*doccode.Rule

	// Stages returns every stage registration.
	Stages() []plugin.Registration

	// Tags lists every tag with its document count.
	Tags(ctx context.Context) ([]store.TagCount, error)

	// CodesWithTag lists codes carrying tag.
	CodesWithTag(ctx context.Context, tag string) ([]string, error)

	// RegisterRule adds a rule. Fails with a configuration error once the
	// service is sealed.
	RegisterRule(r doccode.Rule) (*doccode.Rule, error)

	// RegisterStage adds a stage at points and opts ruleIDs into it (every
	// rule when ruleIDs is empty). Fails once the service is sealed.
	RegisterStage(s plugin.Stage, points []plugin.Point, ruleIDs []int) error
}
