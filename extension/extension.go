// Package extension provides the plugin architecture for the dms command
// line. Extensions encapsulate related functionality (commands, MCP tools,
// event handlers) and register at init time, so a new surface can be added
// without touching the core.
//
// Extensions are not pipeline stages. A stage runs inside a pipeline and
// can refuse a document; an extension sits outside and observes.
package extension

import (
	"github.com/spf13/cobra"
)

// Extension defines the contract for dms extensions.
type Extension interface {
	// Name returns a unique identifier for this extension.
	Name() string

	// Commands returns CLI commands to register with the root command.
	Commands() []*cobra.Command

	// MCPTools returns MCP tools to register with the server.
	MCPTools() []MCPTool
}

// Initializable extensions can perform setup once the service is open.
type Initializable interface {
	Extension
	Init(ctx Context) error
}

// Storeless is an optional interface for extensions with commands that
// don't require a repository. Commands returned by NoStoreCommands() will
// not trigger service initialisation in PersistentPreRunE.
//
// Use cases:
// 1. Bootstrap commands (like init) that run before a repository exists
// 2. Commands that manage their own service lifecycle
// 3. Utility commands that don't need document storage
type Storeless interface {
	NoStoreCommands() []string
}
