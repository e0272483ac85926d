// tools_diff.go implements the MCP tool for comparing document revisions.

package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// diffDocument handles dms_diff tool calls.
func (h *handlers) diffDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.requireInit(); res != nil {
		return res, nil
	}

	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil //nolint:nilerr
	}
	from := getInt(req, "from", 0)
	if from < 1 {
		return mcp.NewToolResultError("from must be >= 1"), nil
	}

	r, err := h.svc.Diff(ctx, code, from, getInt(req, "to", 0), getString(req, "user", defaultUser))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{
		"old":    r.Old,
		"new":    r.New,
		"binary": r.Binary,
		"same":   r.Same,
		"diff":   r.Format(false),
	})
}
