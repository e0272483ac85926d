// Package mcp implements the Model Context Protocol server, exposing dms
// operations to LLMs. Assistants can ingest, fetch, tag and remove
// documents through a standardised protocol, with every call running the
// same stage pipeline as the command line.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/dms"
	"github.com/jpl-au/dms/internal/repo"
	"github.com/jpl-au/dms/internal/service"
)

// Version is advertised to clients for capability negotiation.
const Version = "1.0.0"

// ErrNotInitialised is returned by tools when no repository exists.
// The LLM should call dms_init before using other tools.
const ErrNotInitialised = "repository not initialised - call dms_init first"

// defaultUser attributes calls that do not name a user.
const defaultUser = "mcp"

// Serve starts the MCP server over stdio.
//
// The server starts even when no repository exists so that an LLM can call
// dms_init rather than fail with an opaque error. Tools that need the
// repository return ErrNotInitialised until then.
func Serve(ctx context.Context, dir string) error {
	// stdout carries JSON-RPC; diagnostics go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	h := &handlers{dir: dir}
	h.open = h.openRepo

	svc, err := h.open(ctx)
	switch {
	case errors.Is(err, repo.ErrNotInitialised):
		slog.Info("dms not initialised, starting in uninitialised mode - call dms_init to create a repository")
	case err != nil:
		slog.Error("failed to open repository", "error", err)
		return err
	default:
		h.svc = svc
	}
	defer func() {
		if h.svc != nil {
			h.svc.Close()
		}
	}()

	s := newServer(h)
	slog.Info("dms MCP server ready", "version", Version, "transport", "stdio")

	err = server.ServeStdio(s)
	if errors.Is(err, context.Canceled) {
		slog.Info("server stopped")
		return nil
	}
	return err
}

// handlers provides MCP request handlers with access to the service.
// svc is nil until a repository exists.
type handlers struct {
	dir  string
	svc  service.Service
	ext  extension.Context
	open func(ctx context.Context) (service.Service, error)
}

// openRepo discovers the repository, loads its configuration and opens the
// service with the extension context attached.
func (h *handlers) openRepo(ctx context.Context) (service.Service, error) {
	r, err := repo.DiscoverFrom(h.dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	svc, err := dms.Open(ctx, r, cfg)
	if err != nil {
		return nil, err
	}
	h.ext = extension.NewContext(svc, svc.DB(), cfg)
	svc.SetExtensionContext(h.ext)
	return svc, nil
}

// requireInit returns an error result if no repository is open.
func (h *handlers) requireInit() *mcp.CallToolResult {
	if h.svc == nil {
		return mcp.NewToolResultError(ErrNotInitialised)
	}
	return nil
}

// newServer builds the MCP server with every resource and tool registered.
func newServer(h *handlers) *server.MCPServer {
	s := server.NewMCPServer(
		"dms",
		Version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)
	registerResources(s, h)
	registerTools(s, h)
	registerExtensionTools(s, h)
	return s
}

// registerResources adds URI-based access for direct document reading.
func registerResources(s *server.MCPServer, h *handlers) {
	s.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"dms://documents/{code}",
			"Document",
			mcp.WithTemplateDescription("Read the latest revision of a document by code"),
		),
		h.readDocument,
	)
	s.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"dms://documents/{code}/r/{revision}",
			"Document Revision",
			mcp.WithTemplateDescription("Read a specific revision of a document"),
		),
		h.readDocument,
	)
}

// registerTools exposes dms operations as MCP tools.
func registerTools(s *server.MCPServer, h *handlers) {
	// Works without a repository.
	s.AddTool(
		mcp.NewTool("dms_init",
			mcp.WithDescription("Initialise a new dms repository. Call this first if other tools return 'repository not initialised'."),
			mcp.WithBoolean("local", mcp.Description("If true, the database and document tree are gitignored")),
		),
		h.initRepo,
	)

	s.AddTool(
		mcp.NewTool("dms_ingest",
			mcp.WithDescription("Store a document. The filename decides the document code and rule unless code or allocate is given."),
			mcp.WithString("filename", mcp.Required(), mcp.Description("Original filename, e.g. ADL-1234.pdf")),
			mcp.WithString("content", mcp.Required(), mcp.Description("Base64-encoded file content")),
			mcp.WithString("user", mcp.Description("User attributed with the revision")),
			mcp.WithString("code", mcp.Description("Explicit document code (overrides the filename)")),
			mcp.WithBoolean("allocate", mcp.Description("Allocate the next code of the rule given by 'rule'")),
			mcp.WithNumber("rule", mcp.Description("Rule id used with allocate")),
			mcp.WithString("description", mcp.Description("Revision description")),
			mcp.WithArray("tags", mcp.Description("Tags to add"), mcp.WithStringItems()),
			mcp.WithString("mimetype", mcp.Description("Declared mimetype (sniffed when omitted)")),
		),
		h.ingestDocument,
	)

	s.AddTool(
		mcp.NewTool("dms_fetch",
			mcp.WithDescription("Fetch a document revision. Content is returned base64-encoded, plus as text when it is text."),
			mcp.WithString("code", mcp.Required(), mcp.Description("Document code")),
			mcp.WithNumber("revision", mcp.Description("Revision to read (default: latest)")),
			mcp.WithString("format", mcp.Description("Requested extension, e.g. pdf to convert an image")),
			mcp.WithString("user", mcp.Description("User making the request")),
			mcp.WithBoolean("only_metadata", mcp.Description("Return revision metadata without content")),
		),
		h.fetchDocument,
	)

	s.AddTool(
		mcp.NewTool("dms_list",
			mcp.WithDescription("List document codes stored under a rule"),
			mcp.WithNumber("rule", mcp.Required(), mcp.Description("Rule id (see dms_rules)")),
		),
		h.listDocuments,
	)

	s.AddTool(
		mcp.NewTool("dms_remove",
			mcp.WithDescription("Remove a document or a single revision"),
			mcp.WithString("code", mcp.Required(), mcp.Description("Document code")),
			mcp.WithNumber("revision", mcp.Description("Remove only this revision (default: the whole document)")),
			mcp.WithString("user", mcp.Description("User making the request")),
		),
		h.removeDocument,
	)

	s.AddTool(
		mcp.NewTool("dms_history",
			mcp.WithDescription("List the revisions of a document"),
			mcp.WithString("code", mcp.Required(), mcp.Description("Document code")),
			mcp.WithString("user", mcp.Description("User making the request")),
		),
		h.historyDocument,
	)

	s.AddTool(
		mcp.NewTool("dms_diff",
			mcp.WithDescription("Show differences between two revisions of a document"),
			mcp.WithString("code", mcp.Required(), mcp.Description("Document code")),
			mcp.WithNumber("from", mcp.Required(), mcp.Description("Older revision")),
			mcp.WithNumber("to", mcp.Description("Newer revision (default: latest)")),
			mcp.WithString("user", mcp.Description("User making the request")),
		),
		h.diffDocument,
	)

	s.AddTool(
		mcp.NewTool("dms_update",
			mcp.WithDescription("Change a document's tags or move it to a new code"),
			mcp.WithString("code", mcp.Required(), mcp.Description("Document code")),
			mcp.WithArray("add_tags", mcp.Description("Tags to add"), mcp.WithStringItems()),
			mcp.WithArray("remove_tags", mcp.Description("Tags to remove"), mcp.WithStringItems()),
			mcp.WithString("new_name", mcp.Description("New document code")),
			mcp.WithString("user", mcp.Description("User making the request")),
		),
		h.updateDocument,
	)

	s.AddTool(
		mcp.NewTool("dms_rules",
			mcp.WithDescription("List the document code rules"),
		),
		h.listRules,
	)

	s.AddTool(
		mcp.NewTool("dms_config_get",
			mcp.WithDescription("Get a configuration value"),
			mcp.WithString("key", mcp.Description("Config key (e.g. storage.backend, uncategorized) or empty for all")),
		),
		h.configGet,
	)

	s.AddTool(
		mcp.NewTool("dms_config_set",
			mcp.WithDescription("Set a configuration value. Takes effect when the server restarts."),
			mcp.WithString("key", mcp.Required(), mcp.Description("Config key")),
			mcp.WithString("value", mcp.Required(), mcp.Description("Value to set")),
		),
		h.configSet,
	)
}

// registerExtensionTools adds the tools contributed by extensions. Their
// handlers receive the extension context current at call time.
func registerExtensionTools(s *server.MCPServer, h *handlers) {
	for _, ext := range extension.All() {
		for _, t := range ext.MCPTools() {
			handler := t.Handler
			s.AddTool(t.Tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				if res := h.requireInit(); res != nil {
					return res, nil
				}
				return handler(ctx, h.ext, req)
			})
		}
	}
}
