// security.go implements group membership checks.
//
// The stage runs ahead of the cache at every point except before_storage,
// where content validators go first. A cached copy must never reach a
// caller who would have been refused by the storage path.

package stages

import (
	"context"

	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/plugin"
)

// DefaultGroup is the group a Security stage requires when none is set.
const DefaultGroup = "security"

// Security admits only members of one group.
type Security struct {
	base
	group string
}

// NewSecurity returns a stage requiring membership of group.
func NewSecurity(name, group string) *Security {
	if group == "" {
		group = DefaultGroup
	}
	return &Security{
		base: base{
			info: plugin.Info{
				Name:        name,
				Title:       "Security Group",
				Description: "Security group member only",
				Class:       plugin.ClassSecurity,
				Order:       -20,
				Active:      true,
			},
			orders: map[plugin.Point]int{
				plugin.BeforeStorage: plugin.ClassSecurity.DefaultOrder(),
			},
			points: plugin.Points,
		},
		group: group,
	}
}

// Group returns the required group.
func (s *Security) Group() string { return s.group }

// Work implements plugin.Stage.
func (s *Security) Work(_ context.Context, _ plugin.Point, doc *document.Document) plugin.Outcome {
	if doc.User.Anonymous() {
		return plugin.Abort(errs.Authorizationf("anonymous access to %s", doc.Code))
	}
	if !doc.User.InGroup(s.group) {
		return plugin.Abort(errs.Authorizationf("%s is not in group %s", doc.User.Name, s.group))
	}
	return plugin.Continue()
}
