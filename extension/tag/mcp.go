// mcp.go contributes the dms_tags MCP tool.
//
// Separated from tag.go because the tool is reached through the MCP
// server's extension hook rather than cobra. Tag edits stay on dms_update
// so they run the before_update pipeline; this tool only reads.

package tag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/errs"
)

// MCPTools returns the read-only tag browsing tool.
func (e *Extension) MCPTools() []extension.MCPTool {
	return []extension.MCPTool{{
		Tool: mcp.NewTool("dms_tags",
			mcp.WithDescription("List all tags with counts, or the codes carrying one tag"),
			mcp.WithString("tag", mcp.Description("Tag to look up (optional, list all if empty)")),
		),
		Handler: listTags,
	}}
}

func listTags(ctx context.Context, extCtx extension.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc := extCtx.Service()

	if tag, err := req.RequireString("tag"); err == nil && tag != "" {
		codes, err := svc.CodesWithTag(ctx, tag)
		if err != nil {
			return toolError(err), nil
		}
		if codes == nil {
			codes = []string{}
		}
		return toolJSON(map[string]any{"tag": tag, "codes": codes})
	}

	tags, err := svc.Tags(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(tags)
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", errs.KindOf(err), err))
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
