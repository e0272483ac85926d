// ingest.go implements the "dms ingest" command for storing files.
//
// Separated from document.go to isolate source handling: a file, a
// directory tree, or stdin.
//
// Design: The file's name decides its code, so "dms ingest ADL-1001.pdf"
// needs no further flags. Stdin has no name, so it requires --name. A
// directory is walked and ingested concurrently; failures are listed but
// do not stop the other files.

package document

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/ingest"
)

func (e *Extension) newIngestCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "ingest <file|dir|->",
		Short: "Store a document",
		Long: `Store a file as a new revision of the document its name identifies.

  dms ingest ADL-1001.pdf               # code ADL-1001, rule by pattern
  dms ingest scan.pdf --rule 1 --allocate
  dms ingest ./inbox                    # every file in a tree
  cat note.txt | dms ingest - --name ADL-1002.txt`,
		Args: cobra.ExactArgs(1),
		RunE: e.runIngest,
	}
	c.Flags().String(extension.FlagCode, "", "Store under this code instead of the filename's")
	c.Flags().Bool(extension.FlagAllocate, false, "Allocate the next code of --rule")
	c.Flags().Int(extension.FlagRule, 0, "Classify under this rule")
	c.Flags().StringP(extension.FlagDescription, "d", "", "Revision description")
	c.Flags().StringSliceP(extension.FlagTag, "t", nil, "Tag the document (repeatable)")
	c.Flags().String(extension.FlagMimetype, "", "Override the detected mimetype")
	c.Flags().String(extension.FlagName, "", "Filename for stdin content")
	c.Flags().Bool(extension.FlagHidden, false, "Include hidden files when ingesting a directory")
	c.Flags().Bool(extension.FlagDryRun, false, "List what would be ingested")
	c.Flags().Int(extension.FlagConcurrency, ingest.DefaultConcurrency, "Parallel ingests for a directory")
	return c
}

func (e *Extension) runIngest(c *cobra.Command, args []string) error {
	ctx := c.Context()
	var opts ingest.Options
	opts.Code, _ = c.Flags().GetString(extension.FlagCode)
	opts.Allocate, _ = c.Flags().GetBool(extension.FlagAllocate)
	opts.Rule, _ = c.Flags().GetInt(extension.FlagRule)
	opts.Description, _ = c.Flags().GetString(extension.FlagDescription)
	opts.Tags, _ = c.Flags().GetStringSlice(extension.FlagTag)
	opts.Mimetype, _ = c.Flags().GetString(extension.FlagMimetype)
	opts.Hidden, _ = c.Flags().GetBool(extension.FlagHidden)
	opts.DryRun, _ = c.Flags().GetBool(extension.FlagDryRun)
	opts.Concurrency, _ = c.Flags().GetInt(extension.FlagConcurrency)
	opts.User = cmd.User()
	name, _ := c.Flags().GetString(extension.FlagName)

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	if args[0] == "-" {
		if name == "" {
			return cmd.PrintJSONError(errors.New("--name is required when reading stdin"))
		}
		res, err := e.svc.Ingest(ctx, name, c.InOrStdin(), opts.User, opts.IngestOptions)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("ingest %s: %w", name, err))
		}
		if cmd.JSON() {
			return cmd.PrintJSON(res)
		}
		fmt.Fprintf(w, "Ingested: %s -> %s (revision %d)\n", name, res.Code, res.Revision)
		return nil
	}
	if name != "" {
		return cmd.PrintJSONError(errors.New("--name applies to stdin only"))
	}

	res, err := ingest.Run(ctx, w, e.svc, args[0], opts)
	if cmd.JSON() {
		if err != nil && len(res.Ingested) == 0 && len(res.Failed) == 0 {
			return cmd.PrintJSONError(err)
		}
		if perr := cmd.PrintJSON(res); perr != nil {
			return perr
		}
		if err != nil {
			c.SilenceErrors = true
			c.SilenceUsage = true
		}
		return err
	}
	if err != nil {
		for _, f := range res.Failed {
			fmt.Fprintf(os.Stderr, "Failed: %s: %s\n", f.File, f.Error)
		}
		if len(res.Failed) > 0 {
			c.SilenceUsage = true
			return fmt.Errorf("%d of %d files failed", len(res.Failed), len(res.Failed)+len(res.Ingested))
		}
		return err
	}
	return nil
}
