// rm.go implements the "dms rm" command for removing documents.
//
// Separated from document.go to isolate removal flags.
//
// Design: Removal is permanent; the stored files are deleted along with
// their records. A single revision can be removed instead with --revision,
// and its number is never reused.

package document

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/rm"
)

func (e *Extension) newRmCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "rm <code>...",
		Short: "Remove documents",
		Long:  `Remove documents, or one revision of a document with --revision.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  e.runRm,
	}
	c.Flags().IntP(extension.FlagRevision, "r", 0, "Remove only this revision")
	return c
}

func (e *Extension) runRm(c *cobra.Command, args []string) error {
	revision, _ := c.Flags().GetInt(extension.FlagRevision)
	if revision < 0 {
		return cmd.PrintJSONError(fmt.Errorf("revision must be >= 0, got %d", revision))
	}

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	result, err := rm.Run(c.Context(), w, e.svc, args, rm.Options{Revision: revision, User: cmd.User()})
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("rm: %w", err))
	}
	return cmd.PrintJSON(result)
}
