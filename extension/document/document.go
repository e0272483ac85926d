// Package document provides the document extension for core document
// operations. Registers commands: ingest, fetch, ls, rm, mv, history, diff.
//
// Each command file is separated to isolate its specific flag handling and
// output formatting. The commands are thin: the runners in internal/ do the
// work and the service runs every request through the stage pipeline.

package document

import (
	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/service"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the document extension.
type Extension struct {
	svc service.Service
	cfg *config.Config
}

// Compile-time interface compliance. Catches missing methods at build time
// rather than runtime, making interface changes safer to refactor.
var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
)

// Name returns "document" - this extension handles core document operations.
func (e *Extension) Name() string { return "document" }

// Init connects to the shared service for document operations.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.Service()
	e.cfg = ctx.Config()
	return nil
}

// Commands returns the document commands.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		e.newIngestCmd(),
		e.newFetchCmd(),
		e.newLsCmd(),
		e.newRmCmd(),
		e.newMvCmd(),
		e.newHistoryCmd(),
		e.newDiffCmd(),
	}
}

// MCPTools returns nil - document MCP tools are provided by internal/mcp package.
func (e *Extension) MCPTools() []extension.MCPTool {
	return nil
}
