/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// init_extensions.go handles extension initialisation and command registration.
//
// Separated from root.go to isolate the initialisation logic that discovers
// the repository, loads config, and wires up extensions.
//
// Design: Extensions register during init() but aren't initialised until
// first command execution. This two-phase pattern allows extensions to
// declare commands before the repository exists. The service is created
// once and shared across all extensions via the Context.

package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/dms"
	"github.com/jpl-au/dms/internal/log"
	"github.com/jpl-au/dms/internal/repo"
)

// noStoreCommands lists commands that bypass automatic repository opening.
// Built from bootstrap commands plus extension-declared storeless commands.
var noStoreCommands map[string]bool

// userRequiredCommands lists commands that change documents and so must
// attribute the change to someone.
var userRequiredCommands = map[string]bool{
	"ingest": true,
	"rm":     true,
	"mv":     true,
	"tag":    true,
	"watch":  true,
}

// buildNoStoreCommands creates the set of commands that skip repository
// opening. Bootstrap commands (init, config) must work before a repository
// exists; extensions add their own via the Storeless interface.
func buildNoStoreCommands() map[string]bool {
	cmds := map[string]bool{
		"init":   true,
		"config": true,
	}
	for _, ext := range extension.All() {
		if s, ok := ext.(extension.Storeless); ok {
			for _, name := range s.NoStoreCommands() {
				cmds[name] = true
			}
		}
	}
	return cmds
}

// Global extension context, created during initialisation.
var (
	extContext extension.Context
	extService *dms.Service
	initOnce   sync.Once
	initErr    error
)

// initExtensions opens the document service and injects it into extensions.
// sync.Once guarantees one service per process; the database and pipeline
// registries are shared by every extension.
func initExtensions(ctx context.Context) error {
	initOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		r, err := repo.DiscoverFrom(Dir())
		if err != nil {
			initErr = err
			return
		}
		cfg, err := config.Load()
		if err != nil {
			initErr = err
			return
		}
		svc, err := dms.Open(ctx, r, cfg)
		if err != nil {
			initErr = fmt.Errorf("opening repository: %w", err)
			return
		}
		extService = svc

		log.SetProject(r.Dir)

		extContext = extension.NewContext(svc, svc.DB(), cfg)
		svc.SetExtensionContext(extContext)

		for _, ext := range extension.All() {
			if in, ok := ext.(extension.Initializable); ok {
				if err := in.Init(extContext); err != nil {
					initErr = fmt.Errorf("init extension %s: %w", ext.Name(), err)
					return
				}
			}
		}
	})
	return initErr
}

var extensionsOnce sync.Once

// registerExtensions adds commands from all registered extensions.
// Called once before Execute runs.
func registerExtensions() {
	extensionsOnce.Do(func() {
		for _, ext := range extension.All() {
			for _, cmd := range ext.Commands() {
				rootCmd.AddCommand(cmd)
			}
		}
		noStoreCommands = buildNoStoreCommands()
	})
}
