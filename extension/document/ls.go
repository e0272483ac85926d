// ls.go implements the "dms ls" command for listing documents.
//
// Separated from document.go to isolate listing flags and output.
//
// Design: Ls lists codes grouped by rule. -l adds the latest revision's
// metadata, fetched through the pipeline, so a user sees only what they may
// read in full and other rows are marked denied.

package document

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/ls"
)

func (e *Extension) newLsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "ls",
		Short: "List documents",
		Long:  `List document codes, optionally limited to one rule or tag.`,
		Args:  cobra.NoArgs,
		RunE:  e.runLs,
	}
	c.Flags().Int(extension.FlagRule, 0, "Only this rule")
	c.Flags().String(extension.FlagTag, "", "Only documents with this tag")
	c.Flags().BoolP(extension.FlagLong, "l", false, "Long format with metadata")
	return c
}

func (e *Extension) runLs(c *cobra.Command, _ []string) error {
	opts := ls.Options{User: cmd.User()}
	opts.Rule, _ = c.Flags().GetInt(extension.FlagRule)
	opts.Tag, _ = c.Flags().GetString(extension.FlagTag)
	opts.Long, _ = c.Flags().GetBool(extension.FlagLong)

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	result, err := ls.Run(c.Context(), w, e.svc, opts)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("ls: %w", err))
	}
	if cmd.JSON() {
		if !opts.Long {
			return cmd.PrintJSON(result.Codes())
		}
		return cmd.PrintJSON(result.Entries)
	}
	return nil
}
