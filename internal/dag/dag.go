// Package dag builds and queries the dependency graph of a workflow
// definition: topological ordering via Kahn's algorithm, cycle detection
// with a representative offending path, and the "ready frontier"
// computation the engine's main loop drives off of.
package dag

import (
	"sort"

	"github.com/alexisbeaulieu97/streamy/internal/workflow"
	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
)

// Node is one vertex of the graph: a step id plus its immediate
// dependencies and dependents.
type Node struct {
	ID        string
	DependsOn []string
	Dependents []string
}

// Graph is the built dependency graph for a Definition.
type Graph struct {
	nodes map[string]*Node
	order []string
}

// Build constructs a Graph from a Definition's steps. It assumes
// Definition.Validate has already run (dependency ids are known to exist);
// Build itself only wires edges and performs cycle detection via Kahn's
// algorithm.
func Build(def *workflow.Definition) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*Node, len(def.Steps))}

	for _, step := range def.Steps {
		g.nodes[step.ID] = &Node{ID: step.ID, DependsOn: append([]string(nil), step.DependsOn...)}
		g.order = append(g.order, step.ID)
	}

	for _, step := range def.Steps {
		for _, dep := range step.DependsOn {
			if parent, ok := g.nodes[dep]; ok {
				parent.Dependents = append(parent.Dependents, step.ID)
			}
		}
	}

	if _, err := g.topologicalSort(); err != nil {
		return nil, err
	}

	return g, nil
}

// Nodes returns every node in definition order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Node looks up a single node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// topologicalSort runs Kahn's algorithm. On success it returns a valid
// topological order; on a cycle it returns a CyclicDependencyError carrying
// one representative cycle path, derived from the nodes Kahn's algorithm
// never manages to drain (in-degree never reaches zero).
func (g *Graph) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		inDegree[id] = len(n.DependsOn)
	}

	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		next := append([]string(nil), g.nodes[id].Dependents...)
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
		sort.Strings(queue)
	}

	if len(result) != len(g.nodes) {
		remaining := make(map[string]bool)
		for id, d := range inDegree {
			if d > 0 {
				remaining[id] = true
			}
		}
		cycle := findCyclePath(g, remaining)
		return nil, streamyerrors.NewCyclicDependencyError(cycle)
	}

	return result, nil
}

// findCyclePath walks DependsOn edges starting from an arbitrary
// still-blocked node until a node repeats, producing one representative
// cycle path for error reporting.
func findCyclePath(g *Graph, remaining map[string]bool) []string {
	var start string
	for id := range remaining {
		start = id
		break
	}
	if start == "" {
		return nil
	}

	visited := map[string]int{}
	path := []string{}
	current := start
	for {
		if idx, seen := visited[current]; seen {
			return append(path[idx:], current)
		}
		visited[current] = len(path)
		path = append(path, current)

		node, ok := g.nodes[current]
		if !ok || len(node.DependsOn) == 0 {
			return path
		}

		next := current
		for _, dep := range node.DependsOn {
			if remaining[dep] {
				next = dep
				break
			}
		}
		if next == current {
			return path
		}
		current = next
	}
}

// TopologicalOrder exposes a fresh topological sort of the graph for
// callers that need a deterministic full ordering (e.g. export/inspection
// tooling). It recomputes rather than caching since Build already proved
// acyclicity.
func (g *Graph) TopologicalOrder() ([]string, error) {
	return g.topologicalSort()
}

// ReadySteps returns, in deterministic (definition) order, the ids of
// steps whose dependencies are all present in completed (a step is
// "completed" for scheduling purposes once it is Success or Skipped) and
// which are not themselves present in completed or failed.
func (g *Graph) ReadySteps(completed, failed map[string]bool) []string {
	var ready []string
	for _, id := range g.order {
		if completed[id] || failed[id] {
			continue
		}
		node := g.nodes[id]
		blocked := false
		for _, dep := range node.DependsOn {
			if failed[dep] {
				blocked = true
				break
			}
			if !completed[dep] {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, id)
		}
	}
	return ready
}
