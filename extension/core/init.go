// init.go implements the "dms init" command for repository initialisation.
//
// Separated from extension.go to isolate init-specific logic. Init is special
// because it runs before a repository exists and creates the database.
//
// Design: Init does NOT create config - that's managed separately via
// "dms config". This follows git's model where init creates repository
// structure and config is separate. The --local flag controls whether the
// database and document tree are committed to git or gitignored.

package core

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/log"
	"github.com/jpl-au/dms/internal/repo"
)

func newInitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "init",
		Short: "Initialise a new dms repository",
		Long: `Creates a .dms directory holding the metadata database and the
document tree in the current directory.

Use --dir to create in a different directory:
  dms init --dir /srv/archive    # creates /srv/archive/.dms

Use --local to exclude the data from git:
  dms init --local

Use --force to recreate the database of an existing repository. Stored
document files are kept.

Note: init does not create config. Use "dms config" to set it up.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
	c.Flags().BoolP(extension.FlagLocal, "l", false, "Mark repository data as local (gitignored)")
	return c
}

func runInit(c *cobra.Command, _ []string) error {
	local, _ := c.Flags().GetBool(extension.FlagLocal)
	dir := cmd.Dir()

	r, err := repo.Init(cmd.Force(), local, dir)

	log.Event("core:init", "init").
		Author(cmd.User()).
		Detail("dir", dir).
		Detail("local", local).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("init: %w", err))
	}

	if cmd.JSON() {
		return cmd.PrintJSON(map[string]any{"dir": r.Dir, "local": local})
	}
	fmt.Fprintf(cmd.Out(), "Initialised dms repository in %s\n", r.Dir)
	return nil
}
