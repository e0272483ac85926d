// serve.go implements the "dms serve" command for MCP server operation.
//
// Separated from extension.go because serve has unique lifecycle requirements.
// Unlike other commands that run and exit, serve blocks handling MCP
// requests over stdio until the client disconnects or the process is
// signalled.
//
// Design: Serve is a NoStoreCommand - it manages its own service lifecycle
// instead of using the shared service from root.go. The server must start
// without a repository so that a client can create one with dms_init.

package core

import (
	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start MCP server",
		Long: `Start an MCP (Model Context Protocol) server over stdio for LLM integration.

Use --dir to serve a repository other than the one found from the working
directory:
  dms serve --dir /srv/archive`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return mcp.Serve(c.Context(), cmd.Dir())
		},
	}
}
