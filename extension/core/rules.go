// rules.go implements the "dms rules" and "dms stages" commands, which show
// how the repository classifies documents and which stages process them.
//
// Separated from extension.go because both read the sealed registries of
// an open service rather than the configuration file: what they print is
// what requests actually run through, defaults included.

package core

import (
	"github.com/spf13/cobra"

	"github.com/jpl-au/dms/cmd"
	"github.com/jpl-au/dms/internal/format"
)

func (e *Extension) newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List document code rules",
		Long: `List the document code rules in classification order. A filename is
matched against each active rule's pattern; the first match decides the
rule, and the uncategorized rule takes what no pattern matches.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			rules := e.ctx.Service().Rules()
			if cmd.JSON() {
				return cmd.PrintJSON(rules)
			}
			format.Rules(cmd.Out(), rules)
			return nil
		},
	}
}

// stageJSON is the JSON shape of one registered stage.
type stageJSON struct {
	Name   string   `json:"name"`
	Title  string   `json:"title,omitempty"`
	Class  string   `json:"class"`
	Order  int      `json:"order"`
	Points []string `json:"points"`
	Rules  []int    `json:"rules,omitempty"`
	Global bool     `json:"global"`
	Active bool     `json:"active"`
}

func (e *Extension) newStagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List registered pipeline stages",
		Long: `List the stages registered with the pipeline, the points they run at
and the rules they are bound to. Global stages run for every rule.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			regs := e.ctx.Service().Stages()
			if !cmd.JSON() {
				format.Stages(cmd.Out(), regs)
				return nil
			}
			out := make([]stageJSON, len(regs))
			for i, r := range regs {
				points := make([]string, len(r.Points))
				for j, p := range r.Points {
					points[j] = string(p)
				}
				out[i] = stageJSON{
					Name:   r.Info.Name,
					Title:  r.Info.Title,
					Class:  string(r.Info.Class),
					Order:  r.Info.Order,
					Points: points,
					Rules:  r.Rules,
					Global: r.Global,
					Active: r.Info.Active,
				}
			}
			return cmd.PrintJSON(out)
		},
	}
}
