// tools_rules.go implements the MCP tool for browsing rules.
//
// Separated from tools_documents.go because it reads the repository as a
// whole rather than one document. Tag browsing is contributed by the tag
// extension; tag edits go through dms_update so they run the before_update
// pipeline like every other change.

package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// listRules handles dms_rules tool calls.
func (h *handlers) listRules(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.requireInit(); res != nil {
		return res, nil
	}
	return jsonResult(h.svc.Rules())
}
