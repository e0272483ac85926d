// db.go implements the "dms db" command for repository data status.
//
// Separated from extension.go to isolate the local/shared toggling via
// gitignore manipulation.
//
// Design: DB is a NoStoreCommand because it manages gitignore entries
// without opening the database. This allows changing the status of a
// repository whose database is locked by a running watcher or server.

package core

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/log"
	"github.com/jpl-au/dms/internal/repo"
)

func newDBCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "db",
		Short: "Show or change whether repository data is committed",
		Long: `Show whether the repository's database and document tree are local
(gitignored) or shared (committed), or change it.

  dms db            # show status
  dms db --local    # stop committing the data
  dms db --share    # commit the data`,
		Args: cobra.NoArgs,
		RunE: runDB,
	}
	c.Flags().BoolP(extension.FlagLocal, "l", false, "Mark data as local")
	c.Flags().BoolP(extension.FlagShare, "s", false, "Mark data as shared")
	c.MarkFlagsMutuallyExclusive(extension.FlagLocal, extension.FlagShare)
	return c
}

func runDB(c *cobra.Command, _ []string) error {
	local, _ := c.Flags().GetBool(extension.FlagLocal)
	share, _ := c.Flags().GetBool(extension.FlagShare)

	r, err := repo.DiscoverFrom(cmd.Dir())
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("db: %w", err))
	}

	var action string
	switch {
	case local:
		action = "ignore"
		err = repo.Ignore(r.Dir)
	case share:
		action = "unignore"
		err = repo.Unignore(r.Dir)
	default:
		action = "status"
	}
	log.Event("core:db", action).Author(cmd.User()).Detail("dir", r.Dir).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("db %s: %w", action, err))
	}

	ignored, err := repo.IsIgnored(r.Dir)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("db status: %w", err))
	}
	status := "shared"
	if ignored {
		status = "local"
	}
	if cmd.JSON() {
		return cmd.PrintJSON(map[string]string{"dir": r.Dir, "status": status})
	}
	fmt.Fprintf(cmd.Out(), "%s: %s\n", r.Dir, status)
	return nil
}
