// history.go implements the "dms history" command for viewing revisions.
//
// Separated from document.go to isolate history flags and output.
//
// Design: History shows every revision with its user, size and description,
// the audit trail of a document. -d adds the diff between consecutive
// revisions, coloured on a terminal.

package document

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/history"
)

func (e *Extension) newHistoryCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "history <code>",
		Short: "Show document history",
		Long:  `Display the revision history of a document.`,
		Args:  cobra.ExactArgs(1),
		RunE:  e.runHistory,
	}
	c.Flags().IntP(extension.FlagLimit, "n", 0, "Show only the newest N revisions")
	c.Flags().BoolP(extension.FlagDiff, "d", false, "Show diffs between revisions")
	return c
}

func (e *Extension) runHistory(c *cobra.Command, args []string) error {
	limit, _ := c.Flags().GetInt(extension.FlagLimit)
	showDiff, _ := c.Flags().GetBool(extension.FlagDiff)
	code := args[0]

	if limit < 0 {
		return cmd.PrintJSONError(fmt.Errorf("limit must be >= 0, got %d", limit))
	}

	opts := history.Options{
		User:     cmd.User(),
		Limit:    limit,
		ShowDiff: showDiff && !cmd.JSON(),
		Colour:   term.IsTerminal(int(os.Stdout.Fd())),
	}

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	result, err := history.Run(c.Context(), w, e.svc, code, opts)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("history %s: %w", code, err))
	}
	return cmd.PrintJSON(result)
}
