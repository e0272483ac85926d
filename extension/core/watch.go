// watch.go implements the "dms watch" command, a hot folder that ingests
// files as they arrive.
//
// Separated from extension.go because watch is long-running like serve,
// but unlike serve it uses the shared service: the folder is only useful
// once a repository exists.
//
// Design: Processed files are moved out of the folder, so re-running watch
// never ingests a file twice. With --once the current contents are ingested
// and the command exits, which suits a cron job.

package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/dms"
	"github.com/jpl-au/dms/internal/service"
	"github.com/jpl-au/dms/internal/watch"
)

func (e *Extension) newWatchCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest files dropped into a directory",
		Long: `Watch a directory and ingest every file that appears in it. Ingested
files move to done/; files that fail move to failed/ with a .error file
beside them explaining why.

  dms watch ./inbox                  # run until interrupted
  dms watch ./inbox --once           # ingest what is there and exit
  dms watch ./scans --rule 1 --allocate`,
		Args: cobra.ExactArgs(1),
		RunE: e.runWatch,
	}
	c.Flags().Int(extension.FlagConcurrency, watch.DefaultConcurrency, "Parallel ingests")
	c.Flags().Duration(extension.FlagDebounce, watch.DefaultDebounce, "Quiet period before a file is ingested")
	c.Flags().Bool(extension.FlagOnce, false, "Ingest the current contents and exit")
	c.Flags().Int(extension.FlagRule, 0, "Classify every file under this rule")
	c.Flags().Bool(extension.FlagAllocate, false, "Allocate a fresh code for every file (needs --rule)")
	c.Flags().StringSliceP(extension.FlagTag, "t", nil, "Tag every ingested document")
	c.Flags().StringP(extension.FlagDescription, "d", "", "Revision description")
	return c
}

func (e *Extension) runWatch(c *cobra.Command, args []string) error {
	concurrency, _ := c.Flags().GetInt(extension.FlagConcurrency)
	debounce, _ := c.Flags().GetDuration(extension.FlagDebounce)
	once, _ := c.Flags().GetBool(extension.FlagOnce)
	rule, _ := c.Flags().GetInt(extension.FlagRule)
	allocate, _ := c.Flags().GetBool(extension.FlagAllocate)
	tags, _ := c.Flags().GetStringSlice(extension.FlagTag)
	desc, _ := c.Flags().GetString(extension.FlagDescription)

	var mu sync.Mutex
	report := func(r watch.Result) {
		mu.Lock()
		defer mu.Unlock()
		if cmd.JSON() {
			b, err := json.Marshal(r)
			if err == nil {
				fmt.Fprintln(cmd.Out(), string(b))
			}
			return
		}
		if r.Err != nil {
			fmt.Fprintf(cmd.Out(), "FAIL %s: %v\n", r.File, r.Err)
			return
		}
		fmt.Fprintf(cmd.Out(), "OK   %s -> %s (revision %d)\n", r.File, r.Ingest.Code, r.Ingest.Revision)
	}

	w, err := watch.New(e.ctx.Service(), watch.Config{
		Dir:  args[0],
		User: cmd.User(),
		Options: service.IngestOptions{
			Rule:        rule,
			Allocate:    allocate,
			Tags:        tags,
			Description: desc,
		},
		Debounce:    debounce,
		Concurrency: concurrency,
		OnResult:    report,
	})
	if err != nil {
		return cmd.PrintJSONError(err)
	}

	slog.Info("repository", "wiring", dms.Describe(e.ctx.Config()))

	if once {
		return cmd.PrintJSONError(w.Once(c.Context()))
	}
	return cmd.PrintJSONError(w.Run(c.Context()))
}
