// mv.go implements the "dms mv" command for renaming documents.
//
// Separated from document.go to isolate rename handling.
//
// Design: A rename is an update, so it runs the before_update pipeline and
// keeps the document's revisions and tags under the new code. The new name
// is a filename: its code part must match a rule like any ingest.

package document

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/internal/service"
)

// mvResult contains the outcome of a rename.
type mvResult struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (e *Extension) newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <code> <new-name>",
		Short: "Rename a document",
		Long: `Rename a document. The new name is a filename whose code part becomes
the document's code, e.g. "dms mv ADL-1001 ADL-2001.pdf".`,
		Args: cobra.ExactArgs(2),
		RunE: e.runMv,
	}
}

func (e *Extension) runMv(c *cobra.Command, args []string) error {
	src, dst := args[0], args[1]

	res, err := e.svc.Update(c.Context(), src, service.UpdateOptions{NewName: dst, User: cmd.User()})
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("mv %s to %s: %w", src, dst, err))
	}

	if !cmd.JSON() {
		fmt.Fprintf(cmd.Out(), "Moved %s -> %s\n", src, res.Code)
	}
	return cmd.PrintJSON(mvResult{From: src, To: res.Code})
}
