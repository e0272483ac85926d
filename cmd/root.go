/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// root.go defines the root command and CLI execution entry point.
//
// Separated from init_extensions.go to isolate cobra setup from extension
// initialisation logic.
//
// Design: PersistentPreRunE opens the repository lazily - only commands
// that need it trigger extension init. This lets bootstrap commands (init,
// config, version) work before a repository exists. The noStoreCommands
// map controls which commands skip initialisation.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "dms",
	Short: "Document management with pluggable stage pipelines",
	Long: `A document store that classifies files by their code, keeps every
revision, and runs each request through a configurable pipeline of stages
(security, compression, conversion, tagging, caching).`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if output != "" && !slices.Contains(validOutputFormats, output) {
			return fmt.Errorf("invalid output format: %s (valid: %v)", output, validOutputFormats)
		}

		if user == "" {
			user = detectUser()
		}

		cmdName := topLevelCmdName(cmd)
		if userRequiredCommands[cmdName] && user == "" {
			return fmt.Errorf("user not configured (checked --user, .dms/config.yaml and the global config)\n\nRun: dms config author.name \"Your Name\"")
		}

		if !noStoreCommands[cmdName] {
			if err := initExtensions(cmd.Context()); err != nil {
				if JSON() {
					_ = PrintJSON(map[string]string{"error": err.Error()})
					cmd.SilenceErrors = true
					cmd.SilenceUsage = true
				}
				return fmt.Errorf("initialise extensions: %w", err)
			}
		}

		return nil
	},
}

// topLevelCmdName returns the name of the top-level command (direct child of root).
// For "dms fetch ADL-1001", returns "fetch".
// For "dms tag add ADL-1001 finance", returns "tag".
func topLevelCmdName(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd.Name()
}

// Execute runs the root command and handles process lifecycle.
// Opens audit logging, registers extensions, executes the command, and
// closes the document service before exit. Exit code 1 indicates error.
// SIGINT and SIGTERM cancel the command context, which stops serve and watch.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := log.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: audit log unavailable: %v\n", err)
	}
	defer log.Close()

	registerExtensions()
	err := rootCmd.ExecuteContext(ctx)

	if extService != nil {
		if closeErr := extService.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: closing service: %v\n", closeErr)
		}
	}

	if err != nil {
		stop()
		log.Close()
		os.Exit(1)
	}
}

// RootCmd returns the root command for testing and extension access.
func RootCmd() *cobra.Command {
	return rootCmd
}
