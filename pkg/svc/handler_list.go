package svc

import (
	"fmt"
	"slices"
)

// HandlerList collects handler registrations in the order they were added.
// It is not safe for concurrent use; ClientType serializes access to it.
type HandlerList struct {
	specs []HandlerSpec
}

// NewHandlerList returns an empty list.
func NewHandlerList() *HandlerList {
	return &HandlerList{}
}

// Add appends a registration.
func (l *HandlerList) Add(spec HandlerSpec) {
	l.specs = append(l.specs, spec)
}

// Len returns the number of registrations.
func (l *HandlerList) Len() int {
	return len(l.specs)
}

// Resolve orders every registration into a chain. Steps run in the order of
// Steps. Within a step, handlers are topologically sorted over their
// Before/After edges and ties keep registration order. Front handlers go as
// early as their edges allow, the latest registration first. Back handlers
// go as late as their edges allow, the latest registration last.
func (l *HandlerList) Resolve() (*ResolvedChain, error) {
	owner, err := l.index()
	if err != nil {
		return nil, err
	}

	ordered := make([]HandlerSpec, 0, len(l.specs))

	for _, step := range Steps {
		specs, err := l.resolveStep(step, owner)
		if err != nil {
			return nil, err
		}

		ordered = append(ordered, specs...)
	}

	return newResolvedChain(ordered), nil
}

// ResolveStep returns the ordered handlers of a single step.
func (l *HandlerList) ResolveStep(step Step) ([]HandlerSpec, error) {
	owner, err := l.index()
	if err != nil {
		return nil, err
	}

	return l.resolveStep(step, owner)
}

func (l *HandlerList) index() (map[string]Step, error) {
	owner := make(map[string]Step, len(l.specs))

	for _, spec := range l.specs {
		if stepIndex(spec.Step) < 0 {
			return nil, &ChainResolutionError{Step: spec.Step, Handlers: []string{spec.Name}, Err: ErrUnknownStep}
		}

		if spec.Name == "" || spec.Handler == nil {
			return nil, &ChainResolutionError{Step: spec.Step, Handlers: []string{spec.Name}, Err: ErrInvalidHandler}
		}

		if _, dup := owner[spec.Name]; dup {
			return nil, &ChainResolutionError{Step: spec.Step, Handlers: []string{spec.Name}, Err: ErrDuplicateHandler}
		}

		owner[spec.Name] = spec.Step
	}

	return owner, nil
}

func (l *HandlerList) resolveStep(step Step, owner map[string]Step) ([]HandlerSpec, error) {
	var nodes []HandlerSpec

	for _, spec := range l.specs {
		if spec.Step == step {
			nodes = append(nodes, spec)
		}
	}

	if len(nodes) == 0 {
		return nil, nil
	}

	local := make(map[string]int, len(nodes))
	for i, n := range nodes {
		local[n.Name] = i
	}

	// succ[i] holds the nodes that must run after node i.
	succ := make([][]int, len(nodes))
	indegree := make([]int, len(nodes))

	addEdge := func(from, to int) {
		if from == to || slices.Contains(succ[from], to) {
			return
		}

		succ[from] = append(succ[from], to)
		indegree[to]++
	}

	for i, n := range nodes {
		for _, ref := range n.Before {
			j, err := constraintTarget(n, ref, true, local, owner)
			if err != nil {
				return nil, err
			}

			if j >= 0 {
				addEdge(i, j)
			}
		}

		for _, ref := range n.After {
			j, err := constraintTarget(n, ref, false, local, owner)
			if err != nil {
				return nil, err
			}

			if j >= 0 {
				addEdge(j, i)
			}
		}
	}

	rank := pinRanks(nodes)
	group := pinGroups(nodes, succ)
	eff := effectiveRanks(rank, group, succ)
	placed := make([]bool, len(nodes))
	order := make([]HandlerSpec, 0, len(nodes))

	for len(order) < len(nodes) {
		best := -1

		for i := range nodes {
			if placed[i] || indegree[i] > 0 {
				continue
			}

			if best < 0 || precedes(i, best, group, eff, rank) {
				best = i
			}
		}

		if best < 0 {
			return nil, &ChainResolutionError{
				Step:     step,
				Handlers: findCycle(nodes, succ, placed),
				Err:      ErrConstraintCycle,
			}
		}

		placed[best] = true
		order = append(order, nodes[best])

		for _, j := range succ[best] {
			indegree[j]--
		}
	}

	return order, nil
}

// constraintTarget returns the local index a constraint points at, or -1
// when it points outside the step. Constraints that reach across steps must
// agree with step order. Unknown references are ignored so optional
// handlers can be ordered against without being required.
func constraintTarget(n HandlerSpec, ref string, before bool, local map[string]int, owner map[string]Step) (int, error) {
	if j, ok := local[ref]; ok {
		return j, nil
	}

	target, known := owner[ref]
	if !known {
		if !IsStep(ref) {
			return -1, nil
		}

		target = Step(ref)
	}

	from, to := stepIndex(n.Step), stepIndex(target)
	if (before && from < to) || (!before && from > to) {
		return -1, nil
	}

	relation := "after"
	if before {
		relation = "before"
	}

	return -1, &ChainResolutionError{
		Step:     n.Step,
		Handlers: []string{n.Name, ref},
		Err:      fmt.Errorf("%w: %s %s %s", ErrStepOrder, n.Name, relation, ref),
	}
}

// pinRanks assigns selection priority: front pins (newest first), then
// unpinned handlers, then back pins (newest last).
func pinRanks(nodes []HandlerSpec) []int {
	n := len(nodes)
	rank := make([]int, n)

	for i, node := range nodes {
		switch node.Position {
		case Front:
			rank[i] = -(n + 1 + i)
		case Back:
			rank[i] = n + i
		default:
			rank[i] = i
		}
	}

	return rank
}

// Pin groups. Front handlers and everything they depend on come first.
// Back handlers and everything that depends on them come last.
const (
	groupFront = iota
	groupMiddle
	groupBack
)

// pinGroups assigns every node its pin group. A node required by a front
// handler stays in the front group even when it also follows a back handler.
func pinGroups(nodes []HandlerSpec, succ [][]int) []int {
	pred := make([][]int, len(nodes))

	for i, next := range succ {
		for _, j := range next {
			pred[j] = append(pred[j], i)
		}
	}

	group := make([]int, len(nodes))
	for i := range group {
		group[i] = groupMiddle
	}

	for i, node := range nodes {
		if node.Position == Back {
			spread(i, succ, group, groupBack)
		}
	}

	for i, node := range nodes {
		if node.Position == Front {
			spread(i, pred, group, groupFront)
		}
	}

	return group
}

func spread(start int, links [][]int, group []int, value int) {
	stack := []int{start}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if group[cur] == value {
			continue
		}

		group[cur] = value
		stack = append(stack, links[cur]...)
	}
}

// effectiveRanks lets a front or middle handler inherit the priority of
// anything that must run after it, so a pinned handler pulls its
// prerequisites along instead of waiting behind unrelated handlers. Back
// group handlers keep their own rank so they never move ahead of the
// middle group.
func effectiveRanks(rank, group []int, succ [][]int) []int {
	eff := append([]int(nil), rank...)

	for range rank {
		changed := false

		for i, next := range succ {
			if group[i] == groupBack {
				continue
			}

			for _, j := range next {
				if eff[j] < eff[i] {
					eff[i] = eff[j]
					changed = true
				}
			}
		}

		if !changed {
			break
		}
	}

	return eff
}

// precedes reports whether ready node i should be placed before ready node j.
func precedes(i, j int, group, eff, rank []int) bool {
	if group[i] != group[j] {
		return group[i] < group[j]
	}

	if eff[i] != eff[j] {
		return eff[i] < eff[j]
	}

	return rank[i] < rank[j]
}

// findCycle walks predecessor links among the unplaced nodes. Every unplaced
// node has an unplaced predecessor once the sort stalls, so the walk must
// revisit a node; the revisited segment is a cycle.
func findCycle(nodes []HandlerSpec, succ [][]int, placed []bool) []string {
	pred := make([]int, len(nodes))
	for i := range pred {
		pred[i] = -1
	}

	start := -1

	for i := range nodes {
		if placed[i] {
			continue
		}

		if start < 0 {
			start = i
		}

		for _, j := range succ[i] {
			if !placed[j] && pred[j] < 0 {
				pred[j] = i
			}
		}
	}

	seen := map[int]int{}
	path := []int{}

	for cur := start; cur >= 0; cur = pred[cur] {
		if at, ok := seen[cur]; ok {
			cycle := path[at:]
			slices.Reverse(cycle)

			names := make([]string, len(cycle))
			for k, idx := range cycle {
				names[k] = nodes[idx].Name
			}

			return names
		}

		seen[cur] = len(path)
		path = append(path, cur)
	}

	names := []string{}

	for i := range nodes {
		if !placed[i] {
			names = append(names, nodes[i].Name)
		}
	}

	return names
}
