// Package core provides the core extension for dms.
// It registers commands: init, config, rules, stages, serve, watch, db,
// version.
package core

import (
	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/extension"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the core extension.
type Extension struct {
	ctx extension.Context
}

// Compile-time interface compliance. Catches missing methods at build time
// rather than runtime, making interface changes safer to refactor.
var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
	_ extension.Storeless     = (*Extension)(nil)
)

// Name returns "core" - this extension provides fundamental dms commands.
func (e *Extension) Name() string { return "core" }

// Init keeps the shared context for the commands that need a repository.
func (e *Extension) Init(ctx extension.Context) error {
	e.ctx = ctx
	return nil
}

// Commands returns all core CLI commands for repository management.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		newInitCmd(),
		newConfigCmd(),
		e.newRulesCmd(),
		e.newStagesCmd(),
		newServeCmd(),
		e.newWatchCmd(),
		newDBCmd(),
		newVersionCmd(),
	}
}

// MCPTools returns nil - the repository-level tools live in internal/mcp.
func (e *Extension) MCPTools() []extension.MCPTool {
	return nil
}

// NoStoreCommands returns commands that manage their own service lifecycle.
// serve: Long-running MCP server opens the repository itself, and may
// start before one exists.
// db: Manages gitignore, doesn't need database connection.
// version: Displays build info, doesn't need database connection.
func (e *Extension) NoStoreCommands() []string {
	return []string{"serve", "db", "version"}
}
