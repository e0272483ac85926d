// fetch.go implements the "dms fetch" command for retrieving documents.
//
// Separated from document.go to isolate output handling: raw bytes to
// stdout, a file on disk, a line range of a text document, or the
// metadata record alone.
//
// Design: Terminal output of a markdown document is rendered with glamour;
// pipes and redirects always get the stored bytes. Binary content is never
// written to a terminal, which would garble it, unless --raw is given.

package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/diff"
	"github.com/jpl-au/dms/internal/fetch"
)

func (e *Extension) newFetchCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "fetch <code>",
		Short: "Retrieve a document",
		Long: `Write a document's content to stdout or to a file.

  dms fetch ADL-1001                   # latest revision to stdout
  dms fetch ADL-1001 -r 2 --save .     # revision 2 into ./ADL-1001.pdf
  dms fetch ADL-1001 --format png      # converted on the way out
  dms fetch ADL-1001 --only-metadata   # the revision record
  dms fetch NOTE-7 -l 10:20 -n         # lines 10 to 20, numbered`,
		Args: cobra.ExactArgs(1),
		RunE: e.runFetch,
	}
	c.Flags().IntP(extension.FlagRevision, "r", 0, "Fetch a specific revision")
	c.Flags().String(extension.FlagFormat, "", "Convert to this format (e.g. pdf, png, jpg)")
	c.Flags().Bool(extension.FlagOnlyMetadata, false, "Show the metadata record only")
	c.Flags().String(extension.FlagSave, "", "Write to this file or directory")
	c.Flags().StringP(extension.FlagLines, "l", "", "Line range of a text document (e.g., 10:20, 5:, :15)")
	c.Flags().BoolP(extension.FlagNumber, "n", false, "Number output lines")
	c.Flags().Bool(extension.FlagRaw, false, "Write content as stored, even to a terminal")
	return c
}

func (e *Extension) runFetch(c *cobra.Command, args []string) error {
	ctx := c.Context()
	code := args[0]
	opts := fetch.Options{User: cmd.User(), Force: cmd.Force()}
	opts.Revision, _ = c.Flags().GetInt(extension.FlagRevision)
	opts.Format, _ = c.Flags().GetString(extension.FlagFormat)
	opts.OnlyMetadata, _ = c.Flags().GetBool(extension.FlagOnlyMetadata)
	opts.Output, _ = c.Flags().GetString(extension.FlagSave)
	opts.LineNumbers, _ = c.Flags().GetBool(extension.FlagNumber)
	raw, _ := c.Flags().GetBool(extension.FlagRaw)
	lineRange, _ := c.Flags().GetString(extension.FlagLines)

	if opts.Revision < 0 {
		return cmd.PrintJSONError(fmt.Errorf("revision must be >= 0, got %d", opts.Revision))
	}
	if lineRange != "" {
		start, end, err := parseLineRange(lineRange)
		if err != nil {
			return cmd.PrintJSONError(err)
		}
		opts.StartLine, opts.EndLine = start, end
	}

	if cmd.JSON() {
		// The JSON form always carries metadata; content is written only
		// when saving to a file.
		if opts.Output == "" {
			opts.OnlyMetadata = true
		}
		res, err := fetch.Run(ctx, io.Discard, e.svc, code, opts)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("fetch %s: %w", code, err))
		}
		return cmd.PrintJSON(res)
	}

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	if !tty || raw || opts.Output != "" || opts.OnlyMetadata {
		if _, err := fetch.Run(ctx, cmd.Out(), e.svc, code, opts); err != nil {
			return fmt.Errorf("fetch %s: %w", code, err)
		}
		return nil
	}

	var buf bytes.Buffer
	res, err := fetch.Run(ctx, &buf, e.svc, code, opts)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", code, err)
	}
	switch {
	case diff.IsBinary(buf.Bytes()):
		return fmt.Errorf("fetch %s: %s content not written to a terminal (use --save or --raw)", code, res.Mimetype)
	case isMarkdown(res.Filename, res.Mimetype):
		if rendered, rerr := glamour.Render(buf.String(), "dark"); rerr == nil {
			fmt.Fprint(cmd.Out(), rendered)
			return nil
		}
	}
	_, err = buf.WriteTo(cmd.Out())
	return err
}

func isMarkdown(filename, mimetype string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return true
	}
	return strings.HasPrefix(mimetype, "text/markdown")
}

// parseLineRange parses a line range string like "10:20", "5:", or ":15".
// Returns start and end line numbers (1-indexed), where 0 means unspecified.
func parseLineRange(s string) (start, end int, err error) {
	from, to, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid line range %q: expected format START:END", s)
	}
	if from != "" {
		if _, err := fmt.Sscanf(from, "%d", &start); err != nil || start < 1 {
			return 0, 0, fmt.Errorf("invalid start line %q", from)
		}
	}
	if to != "" {
		if _, err := fmt.Sscanf(to, "%d", &end); err != nil || end < 1 {
			return 0, 0, fmt.Errorf("invalid end line %q", to)
		}
	}
	if start > 0 && end > 0 && start > end {
		return 0, 0, fmt.Errorf("start line %d is greater than end line %d", start, end)
	}
	if start == 0 && end == 0 {
		return 0, 0, errors.New("line range needs a start or an end")
	}
	return start, end, nil
}
