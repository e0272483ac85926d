// tools_documents.go implements MCP tools for ingesting, fetching, listing,
// removing and inspecting documents.
//
// Separated from server.go to keep tool registration apart from the
// handlers. The handlers mirror the CLI commands but return structured JSON
// for LLM consumption.
//
// Design: Document content crosses the protocol base64-encoded since stored
// documents are often binary (PDF, TIFF). Fetch results also carry the
// content as plain text when it is text, so an LLM can read a note without
// decoding it. Errors return tool error results prefixed with the error
// kind rather than Go errors, giving the LLM feedback it can act on.

package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jpl-au/dms/internal/diff"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/service"
)

// fetchResponse is the JSON shape of a dms_fetch result.
type fetchResponse struct {
	service.FetchResult
	Content string `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
}

// ingestDocument handles dms_ingest tool calls.
func (h *handlers) ingestDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.requireInit(); res != nil {
		return res, nil
	}

	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError("filename is required"), nil //nolint:nilerr
	}
	encoded, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("content is required"), nil //nolint:nilerr
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("content: invalid base64: %v", err)), nil
	}

	opts := service.IngestOptions{
		Code:        getString(req, "code", ""),
		Allocate:    getBool(req, "allocate", false),
		Rule:        getInt(req, "rule", 0),
		Description: getString(req, "description", ""),
		Tags:        getStrings(req, "tags"),
		Mimetype:    getString(req, "mimetype", ""),
	}
	user := getString(req, "user", defaultUser)

	res, err := h.svc.Ingest(ctx, filename, bytes.NewReader(data), user, opts)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

// fetchDocument handles dms_fetch tool calls.
func (h *handlers) fetchDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.requireInit(); res != nil {
		return res, nil
	}

	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil //nolint:nilerr
	}

	res, err := h.svc.Fetch(ctx, code, service.FetchOptions{
		Revision:     getInt(req, "revision", 0),
		Format:       getString(req, "format", ""),
		User:         getString(req, "user", defaultUser),
		OnlyMetadata: getBool(req, "only_metadata", false),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(newFetchResponse(res))
}

func newFetchResponse(res service.FetchResult) fetchResponse {
	out := fetchResponse{FetchResult: res}
	if len(res.Data) == 0 {
		return out
	}
	out.Content = base64.StdEncoding.EncodeToString(res.Data)
	if !diff.IsBinary(res.Data) {
		out.Text = string(res.Data)
	}
	return out
}

// listDocuments handles dms_list tool calls.
func (h *handlers) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.requireInit(); res != nil {
		return res, nil
	}
	if !hasArg(req, "rule") {
		return mcp.NewToolResultError("rule is required"), nil
	}
	rule := getInt(req, "rule", 0)

	codes := []string{}
	for code, err := range h.svc.ListCodes(ctx, rule) {
		if err != nil {
			return errorResult(err), nil
		}
		codes = append(codes, code)
	}
	return jsonResult(map[string]any{
		"rule":  rule,
		"codes": codes,
		"count": len(codes),
	})
}

// removeDocument handles dms_remove tool calls.
func (h *handlers) removeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.requireInit(); res != nil {
		return res, nil
	}

	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil //nolint:nilerr
	}
	rev := getInt(req, "revision", 0)

	if err := h.svc.Remove(ctx, code, rev, getString(req, "user", defaultUser)); err != nil {
		return errorResult(err), nil
	}
	if rev > 0 {
		return mcp.NewToolResultText(fmt.Sprintf("removed %s revision %d", code, rev)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed %s", code)), nil
}

// historyDocument handles dms_history tool calls.
func (h *handlers) historyDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.requireInit(); res != nil {
		return res, nil
	}

	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil //nolint:nilerr
	}

	revs, err := h.svc.History(ctx, code, getString(req, "user", defaultUser))
	if err != nil {
		return errorResult(err), nil
	}
	if revs == nil {
		revs = []document.Metadata{}
	}
	return jsonResult(map[string]any{
		"code":      code,
		"revisions": revs,
	})
}

// updateDocument handles dms_update tool calls.
func (h *handlers) updateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.requireInit(); res != nil {
		return res, nil
	}

	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil //nolint:nilerr
	}
	opts := service.UpdateOptions{
		AddTags:    getStrings(req, "add_tags"),
		RemoveTags: getStrings(req, "remove_tags"),
		NewName:    getString(req, "new_name", ""),
		User:       getString(req, "user", defaultUser),
	}
	if len(opts.AddTags) == 0 && len(opts.RemoveTags) == 0 && opts.NewName == "" {
		return mcp.NewToolResultError("nothing to update: give add_tags, remove_tags or new_name"), nil
	}

	res, err := h.svc.Update(ctx, code, opts)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}
