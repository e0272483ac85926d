// tools_init.go implements the MCP tool for initialising a new repository.
//
// This tool works without an existing repository, allowing LLMs to
// bootstrap one. Other tools require initialisation first.

package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jpl-au/dms/internal/log"
	"github.com/jpl-au/dms/internal/repo"
)

// initRepo handles dms_init tool calls.
func (h *handlers) initRepo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.svc != nil {
		return mcp.NewToolResultError("repository already initialised"), nil
	}

	local := getBool(req, "local", false)

	_, err := repo.Init(false, local, h.dir)

	log.Event("mcp:init", "init").Author(defaultUser).Detail("local", local).Write(err)

	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	svc, err := h.open(ctx)
	if err != nil {
		return mcp.NewToolResultError("init succeeded but failed to open repository: " + err.Error()), nil
	}
	h.svc = svc

	slog.Info("repository initialised", "local", local)

	if local {
		return mcp.NewToolResultText("repository initialised (local - gitignored)"), nil
	}
	return mcp.NewToolResultText("repository initialised"), nil
}
