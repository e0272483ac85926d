// Package tag provides the tag extension for dms.
// It registers commands: tag (with subcommands add, rm, ls, find).
package tag

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/log"
	"github.com/jpl-au/dms/internal/service"
	"github.com/jpl-au/dms/internal/tag"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the tag extension.
type Extension struct {
	svc service.Service
}

// Compile-time interface compliance. Catches missing methods at build time
// rather than runtime, making interface changes safer to refactor.
var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
	_ extension.EventHandler  = (*Extension)(nil)
)

// Name returns "tag" - this extension provides document tagging commands.
func (e *Extension) Name() string { return "tag" }

// Init receives the shared service from the extension context.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.Service()
	return nil
}

// Commands returns the tag command with its subcommands.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		e.newTagCmd(),
	}
}

// HandleEvent records tag changes and removals in the audit log.
//
// Tag events are fired after the update has committed, whichever surface
// made it (CLI, MCP or the tags stage), so this is the one place that
// sees all of them. Removals are logged because a removed document takes
// its tags with it.
func (e *Extension) HandleEvent(_ extension.Context, evt extension.Event) error {
	switch ev := evt.(type) {
	case extension.TagEvent:
		action := "removed"
		if ev.Added {
			action = "added"
		}
		log.Event("tag:observed", action).Code(ev.Code).Detail("tag", ev.Tag).Write(nil)
	case extension.DocumentRemoveEvent:
		if ev.Revision == 0 {
			log.Event("tag:observed", "document_removed").Author(ev.User).Code(ev.Code).Write(nil)
		}
	}
	return nil
}

// --- tag command with subcommands ---

func (e *Extension) newTagCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "tag",
		Short: "Manage document tags",
		Long:  `Add, remove, list and search document tags.`,
	}
	c.AddCommand(e.newTagAddCmd())
	c.AddCommand(e.newTagRmCmd())
	c.AddCommand(e.newTagLsCmd())
	c.AddCommand(e.newTagFindCmd())
	return c
}

func (e *Extension) newTagAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <code> <tag>...",
		Short: "Add tags to a document",
		Args:  cobra.MinimumNArgs(2),
		RunE:  e.runTagAdd,
	}
}

func (e *Extension) newTagRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <code> <tag>...",
		Short: "Remove tags from a document",
		Args:  cobra.MinimumNArgs(2),
		RunE:  e.runTagRm,
	}
}

func (e *Extension) newTagLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [code]",
		Short: "List tags for a document (or all tags with counts if code omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  e.runTagLs,
	}
}

func (e *Extension) newTagFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <tag>",
		Short: "List documents carrying a tag",
		Args:  cobra.ExactArgs(1),
		RunE:  e.runTagFind,
	}
}

func writer() io.Writer {
	if cmd.JSON() {
		return io.Discard
	}
	return cmd.Out()
}

func (e *Extension) runTagAdd(c *cobra.Command, args []string) error {
	code, tags := args[0], args[1:]
	result, err := tag.Add(c.Context(), writer(), e.svc, code, cmd.User(), tags...)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("tag add %s: %w", code, err))
	}
	return cmd.PrintJSON(result)
}

func (e *Extension) runTagRm(c *cobra.Command, args []string) error {
	code, tags := args[0], args[1:]
	result, err := tag.Remove(c.Context(), writer(), e.svc, code, cmd.User(), tags...)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("tag rm %s: %w", code, err))
	}
	return cmd.PrintJSON(result)
}

func (e *Extension) runTagLs(c *cobra.Command, args []string) error {
	var (
		result tag.Result
		err    error
	)
	if len(args) == 0 {
		result, err = tag.All(c.Context(), writer(), e.svc)
	} else {
		result, err = tag.List(c.Context(), writer(), e.svc, args[0], cmd.User())
	}
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("tag ls: %w", err))
	}
	return cmd.PrintJSON(result)
}

func (e *Extension) runTagFind(c *cobra.Command, args []string) error {
	codes, err := tag.Find(c.Context(), writer(), e.svc, args[0])
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("tag find %q: %w", args[0], err))
	}
	if codes == nil {
		codes = []string{}
	}
	return cmd.PrintJSON(codes)
}
