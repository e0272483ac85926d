// registry.go implements the stage registry.
//
// Separated from plugin.go to isolate mutable registration state. Stages
// are registered per point and assigned per rule; StagesFor joins the two.
//
// Design: registration is only legal before Seal. The dms service seals on
// its first request, so a running pipeline can never observe a stage list
// being changed underneath it.

package plugin

import (
	"slices"
	"sync"

	"github.com/jpl-au/dms/internal/errs"
)

type entry struct {
	stage Stage
	seq   int
	order int
}

// Registry holds stages per pipeline point.
type Registry struct {
	mu       sync.RWMutex
	byPoint  map[Point][]entry
	names    map[string]Stage
	assigned map[int]map[string]bool
	global   map[string]bool
	seq      int
	sealed   bool
}

// NewRegistry creates an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{
		byPoint:  make(map[Point][]entry),
		names:    make(map[string]Stage),
		assigned: make(map[int]map[string]bool),
		global:   make(map[string]bool),
	}
}

// Register adds a stage at one or more points, each at the stage's own
// order for that point.
func (r *Registry) Register(s Stage, points ...Point) error {
	orders := make([]int, len(points))
	for i, p := range points {
		orders[i] = OrderAt(s, p)
	}
	return r.register(s, points, orders)
}

// RegisterAt adds a stage at one point with an explicit order.
func (r *Registry) RegisterAt(s Stage, point Point, order int) error {
	return r.register(s, []Point{point}, []int{order})
}

func (r *Registry) register(s Stage, points []Point, orders []int) error {
	info := s.Info()
	if info.Name == "" {
		return errs.Configurationf("stage without a name")
	}
	if len(points) == 0 {
		return errs.Configurationf("stage %s: no pipeline point", info.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return errs.Configurationf("stage %s: registry is sealed", info.Name)
	}
	if prev, ok := r.names[info.Name]; ok && prev != s {
		return errs.Configurationf("stage %s: name already used by another stage", info.Name)
	}
	for _, p := range points {
		if _, err := ParsePoint(string(p)); err != nil {
			return errs.Configurationf("stage %s: %v", info.Name, err)
		}
		for _, e := range r.byPoint[p] {
			if e.stage.Info().Name == info.Name {
				return errs.Configurationf("stage %s: already registered at %s", info.Name, p)
			}
		}
	}

	r.names[info.Name] = s
	for i, p := range points {
		r.seq++
		r.byPoint[p] = append(r.byPoint[p], entry{stage: s, seq: r.seq, order: orders[i]})
	}
	return nil
}

// Assign opts a rule into the named stages.
func (r *Registry) Assign(ruleID int, names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return errs.Configurationf("assign rule %d: registry is sealed", ruleID)
	}
	set := r.assigned[ruleID]
	if set == nil {
		set = make(map[string]bool)
		r.assigned[ruleID] = set
	}
	for _, n := range names {
		if _, ok := r.names[n]; !ok {
			return errs.Configurationf("assign rule %d: unknown stage %s", ruleID, n)
		}
		set[n] = true
	}
	return nil
}

// AssignAll opts every rule, including unruled documents, into the named
// stages.
func (r *Registry) AssignAll(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return errs.Configurationf("assign: registry is sealed")
	}
	for _, n := range names {
		if _, ok := r.names[n]; !ok {
			return errs.Configurationf("assign: unknown stage %s", n)
		}
		r.global[n] = true
	}
	return nil
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// StagesFor returns the active stages ruleID has opted into at point,
// ordered by their order at that point, then registration order. The slice is a fresh copy.
func (r *Registry) StagesFor(ruleID int, point Point) []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.assigned[ruleID]
	var picked []entry
	for _, e := range r.byPoint[point] {
		info := e.stage.Info()
		if !info.Active {
			continue
		}
		if !r.global[info.Name] && !set[info.Name] {
			continue
		}
		picked = append(picked, e)
	}

	slices.SortStableFunc(picked, func(a, b entry) int {
		if a.order != b.order {
			return a.order - b.order
		}
		return a.seq - b.seq
	})

	out := make([]Stage, len(picked))
	for i, e := range picked {
		out[i] = e.stage
	}
	return out
}

// Stage returns a registered stage by name.
func (r *Registry) Stage(name string) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.names[name]
	return s, ok
}

// Registration describes where a stage is registered, for listings.
type Registration struct {
	Info   Info
	Points []Point
	Rules  []int
	Global bool
}

// All lists every registered stage in registration order.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type first struct {
		name string
		seq  int
	}
	var order []first
	seen := make(map[string]bool)
	for _, p := range Points {
		for _, e := range r.byPoint[p] {
			n := e.stage.Info().Name
			if !seen[n] {
				seen[n] = true
				order = append(order, first{n, e.seq})
			}
		}
	}
	slices.SortFunc(order, func(a, b first) int { return a.seq - b.seq })

	index := make(map[string]int, len(order))
	out := make([]Registration, 0, len(order))
	for _, f := range order {
		index[f.name] = len(out)
		out = append(out, Registration{Info: r.names[f.name].Info(), Global: r.global[f.name]})
	}
	for _, p := range Points {
		for _, e := range r.byPoint[p] {
			i := index[e.stage.Info().Name]
			out[i].Points = append(out[i].Points, p)
		}
	}
	for ruleID, set := range r.assigned {
		for n := range set {
			i := index[n]
			out[i].Rules = append(out[i].Rules, ruleID)
		}
	}
	for i := range out {
		slices.Sort(out[i].Rules)
	}
	return out
}
