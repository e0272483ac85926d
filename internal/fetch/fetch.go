// Package fetch provides document retrieval to a writer or to a file.
//
// Stored documents are usually binary, so by default the bytes are copied
// through untouched. For text documents a line range can be selected and
// line numbers added, which keeps large notes readable on a terminal.
package fetch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jpl-au/dms/internal/diff"
	"github.com/jpl-au/dms/internal/format"
	"github.com/jpl-au/dms/internal/service"
)

// minLineNumWidth is the minimum column width for line numbers.
const minLineNumWidth = 6

// ErrBinaryRange is returned when a line range is requested for a
// binary document.
var ErrBinaryRange = errors.New("line ranges apply to text documents only")

// Options configures a fetch operation.
type Options struct {
	Revision     int    // Specific revision (0 = latest)
	Format       string // Conversion target, e.g. "pdf" or "png"
	User         string // User making the request
	OnlyMetadata bool   // Print the metadata record instead of content

	// Output is a file or directory to write to. A directory receives the
	// document under its stored filename. Empty writes to w.
	Output string
	Force  bool // Overwrite an existing output file

	StartLine   int  // First line to show (1-indexed, 0 = start)
	EndLine     int  // Last line to show (1-indexed, 0 = end)
	LineNumbers bool // Prefix lines with their number
}

// Result contains the outcome of a fetch operation.
type Result struct {
	service.FetchResult
	Path string `json:"path,omitempty"`
}

// Run fetches code and writes it to w or to opts.Output.
func Run(ctx context.Context, w io.Writer, svc service.Service, code string, opts Options) (Result, error) {
	var result Result

	res, err := svc.Fetch(ctx, code, service.FetchOptions{
		Revision:     opts.Revision,
		Format:       opts.Format,
		User:         opts.User,
		OnlyMetadata: opts.OnlyMetadata,
	})
	if err != nil {
		return result, err
	}
	result.FetchResult = res

	if opts.OnlyMetadata {
		format.Metadata(w, res.Code, res.Metadata, res.Tags)
		return result, nil
	}

	ranged := opts.StartLine > 0 || opts.EndLine > 0 || opts.LineNumbers
	if ranged && diff.IsBinary(res.Data) {
		return result, ErrBinaryRange
	}

	if opts.Output != "" {
		path, err := outputPath(opts.Output, res.Filename)
		if err != nil {
			return result, err
		}
		if err := writeFile(path, res.Data, opts.Force); err != nil {
			return result, err
		}
		result.Path = path
		fmt.Fprintf(w, "Wrote %s revision %d to %s (%s)\n", res.Code, res.Revision, path, format.HumanSize(int64(len(res.Data))))
		return result, nil
	}

	if !ranged {
		_, err := w.Write(res.Data)
		return result, err
	}
	return result, writeLines(w, res.Data, opts)
}

// outputPath resolves out against the stored filename when out is a
// directory.
func outputPath(out, filename string) (string, error) {
	info, err := os.Stat(out)
	switch {
	case err == nil && info.IsDir():
		if filename == "" {
			return "", fmt.Errorf("%s is a directory and the document has no filename", out)
		}
		return filepath.Join(out, filepath.Base(filename)), nil
	case err == nil, errors.Is(err, os.ErrNotExist):
		return out, nil
	default:
		return "", err
	}
}

func writeFile(path string, data []byte, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s exists (use --force to overwrite)", path)
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeLines writes the selected line range of a text document.
func writeLines(w io.Writer, data []byte, opts Options) error {
	total := bytes.Count(data, []byte("\n"))
	trailing := bytes.HasSuffix(data, []byte("\n"))
	if !trailing && len(data) > 0 {
		total++
	}

	start, end := 1, total
	if opts.StartLine > 0 {
		start = opts.StartLine
	}
	if opts.EndLine > 0 && opts.EndLine < end {
		end = opts.EndLine
	}
	width := max(len(strconv.Itoa(end)), minLineNumWidth)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), max(len(data), 64*1024)+1)
	n := 0
	for sc.Scan() {
		n++
		if n < start {
			continue
		}
		if n > end {
			break
		}
		if opts.LineNumbers {
			fmt.Fprintf(w, "%*d\t", width, n)
		}
		w.Write(sc.Bytes())
		if n < end || trailing {
			fmt.Fprintln(w)
		}
	}
	return sc.Err()
}
