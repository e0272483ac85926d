// Package tag provides document tagging operations for the CLI layer.
//
// This package orchestrates tag add/remove/list operations, handling both
// the service calls and output formatting. Tag edits go through
// Service.Update so the before_update pipeline (security, hashcode, cache
// invalidation) runs for them like for any other change.

package tag

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jpl-au/dms/internal/format"
	"github.com/jpl-au/dms/internal/service"
)

// Result contains the outcome of a tag operation.
type Result struct {
	Code   string   `json:"code,omitempty"`
	Tag    string   `json:"tag,omitempty"`
	Action string   `json:"action,omitempty"`
	Tags   []string `json:"tags"`
}

// Add adds tags to a document.
func Add(ctx context.Context, w io.Writer, svc service.Service, code, user string, tags ...string) (Result, error) {
	result := Result{Code: code, Tag: strings.Join(tags, ","), Action: "add"}

	res, err := svc.Update(ctx, code, service.UpdateOptions{AddTags: tags, User: user})
	if err != nil {
		return result, err
	}
	result.Tags = res.Tags

	fmt.Fprintf(w, "Added %s to %s\n", quoted(tags), code)
	return result, nil
}

// Remove removes tags from a document.
func Remove(ctx context.Context, w io.Writer, svc service.Service, code, user string, tags ...string) (Result, error) {
	result := Result{Code: code, Tag: strings.Join(tags, ","), Action: "remove"}

	res, err := svc.Update(ctx, code, service.UpdateOptions{RemoveTags: tags, User: user})
	if err != nil {
		return result, err
	}
	result.Tags = res.Tags

	fmt.Fprintf(w, "Removed %s from %s\n", quoted(tags), code)
	return result, nil
}

// List lists the tags of a document.
func List(ctx context.Context, w io.Writer, svc service.Service, code, user string) (Result, error) {
	result := Result{Code: code}

	res, err := svc.Fetch(ctx, code, service.FetchOptions{OnlyMetadata: true, User: user})
	if err != nil {
		return result, err
	}
	result.Tags = res.Tags
	if result.Tags == nil {
		result.Tags = []string{}
	}

	for _, t := range result.Tags {
		fmt.Fprintln(w, t)
	}
	return result, nil
}

// All lists every tag with its document count.
func All(ctx context.Context, w io.Writer, svc service.Service) (Result, error) {
	var result Result

	counts, err := svc.Tags(ctx)
	if err != nil {
		return result, err
	}
	result.Tags = make([]string, len(counts))
	for i, c := range counts {
		result.Tags[i] = c.Tag
	}

	format.Tags(w, counts)
	return result, nil
}

// Find lists the codes carrying tag.
func Find(ctx context.Context, w io.Writer, svc service.Service, tag string) ([]string, error) {
	codes, err := svc.CodesWithTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	format.Codes(w, codes)
	return codes, nil
}

func quoted(tags []string) string {
	q := make([]string, len(tags))
	for i, t := range tags {
		q[i] = fmt.Sprintf("%q", t)
	}
	return strings.Join(q, ", ")
}
