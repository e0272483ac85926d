// diff.go implements the "dms diff" command for comparing revisions.
//
// Separated from document.go to isolate revision range parsing.
//
// Design: Without a range the latest revision is compared with the one
// before it, the usual question after a rescan. Binary revisions are
// reported as differing or identical without a line diff.

package document

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/diff"
	"github.com/jpl-au/dms/internal/errs"
)

func (e *Extension) newDiffCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "diff <code>",
		Short: "Show differences between revisions",
		Long: `Show differences between two revisions of a document.

Examples:
  dms diff ADL-1001           # latest against the revision before it
  dms diff ADL-1001 -r 3:5    # revision 3 against revision 5
  dms diff ADL-1001 -r 3      # revision 3 against the latest`,
		Args: cobra.ExactArgs(1),
		RunE: e.runDiff,
	}
	c.Flags().StringP(extension.FlagRevisions, "r", "", "Revision range (e.g., 3:5)")
	c.Flags().Bool(extension.FlagRaw, false, "Output without colour")
	return c
}

func (e *Extension) runDiff(c *cobra.Command, args []string) error {
	ctx := c.Context()
	revRange, _ := c.Flags().GetString(extension.FlagRevisions)
	raw, _ := c.Flags().GetBool(extension.FlagRaw)
	code := args[0]

	var from, to int
	var err error
	if revRange != "" {
		from, to, err = diff.ParseRevisionRange(revRange)
		if err != nil {
			return cmd.PrintJSONError(err)
		}
	} else {
		revs, err := e.svc.History(ctx, code, cmd.User())
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("diff %s: %w", code, err))
		}
		if len(revs) < 2 {
			return cmd.PrintJSONError(errs.Validationf("diff %s: only one revision", code))
		}
		from, to = revs[len(revs)-2].Revision, revs[len(revs)-1].Revision
	}

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}
	colour := !raw && term.IsTerminal(int(os.Stdout.Fd()))

	r, err := diff.Run(ctx, w, e.svc, code, from, to, cmd.User(), colour)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("diff %s: %w", code, err))
	}
	return cmd.PrintJSON(r)
}
