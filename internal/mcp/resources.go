// resources.go implements MCP resource handlers for document access.
//
// MCP resources provide read-only access to documents via URI schemes,
// letting clients load a document as context without a tool call.
//
// Design: Resource URIs follow the pattern dms://documents/{code}[/r/{revision}].
// The revision is optional; omitting it returns the latest. Text documents
// are returned as text, everything else as a base64 blob.

package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jpl-au/dms/internal/diff"
	"github.com/jpl-au/dms/internal/service"
)

var (
	// ErrInvalidURI indicates a malformed resource URI.
	ErrInvalidURI = errors.New("invalid URI")
	// ErrEmptyCode indicates a missing document code in a resource URI.
	ErrEmptyCode = errors.New("empty document code")
)

// readDocument handles dms://documents/... resource requests.
func (h *handlers) readDocument(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.svc == nil {
		return nil, errors.New(ErrNotInitialised)
	}
	uri := req.Params.URI
	code, rev, err := parseDocumentURI(uri)
	if err != nil {
		return nil, err
	}

	res, err := h.svc.Fetch(ctx, code, service.FetchOptions{Revision: rev, User: defaultUser})
	if err != nil {
		return nil, err
	}

	if diff.IsBinary(res.Data) {
		return []mcp.ResourceContents{
			mcp.BlobResourceContents{
				URI:      uri,
				MIMEType: res.Mimetype,
				Blob:     base64.StdEncoding.EncodeToString(res.Data),
			},
		}, nil
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: res.Mimetype,
			Text:     string(res.Data),
		},
	}, nil
}

// parseDocumentURI extracts code and revision from a document URI.
// Supports dms://documents/{code} and dms://documents/{code}/r/{revision}.
func parseDocumentURI(uri string) (code string, rev int, err error) {
	const prefix = "dms://documents/"
	rest, ok := strings.CutPrefix(uri, prefix)
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	if rest == "" {
		return "", 0, ErrEmptyCode
	}

	code, r, found := strings.Cut(rest, "/r/")
	if !found {
		if strings.Contains(rest, "/") {
			return "", 0, fmt.Errorf("%w: %s", ErrInvalidURI, uri)
		}
		return rest, 0, nil
	}
	if code == "" {
		return "", 0, ErrEmptyCode
	}
	rev, err = strconv.Atoi(r)
	if err != nil || rev < 1 {
		return "", 0, fmt.Errorf("%w: invalid revision %s", ErrInvalidURI, r)
	}
	return code, rev, nil
}
