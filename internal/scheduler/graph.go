package scheduler

import (
	"fmt"

	"github.com/gammazero/toposort"
)

// node is one validated task inside a Graph.
type node struct {
	spec  TaskSpec
	deps  []TaskID // effective dependencies (explicit + OutputFrom)
	layer int
}

// Graph is an immutable, validated snapshot of a task collection: nodes
// indexed by key, effective-dependency edges, and the layering used by the
// executor. Safe for shared read-only use across a run.
type Graph struct {
	nodes  map[any]*node
	order  []TaskID   // topological order, used for stable iteration
	layers [][]TaskID // layer i+1 tasks depend only on layers <= i
}

// Build validates a collection of specs and assembles the execution graph.
// The input order does not affect the resulting layering. Checks run in a
// fixed order for deterministic error reporting: duplicate keys, unknown
// dependencies, cycles. Build either returns a fully valid graph or an error;
// there is no partial result.
func Build(specs []TaskSpec) (*Graph, error) {
	nodes := make(map[any]*node, len(specs))
	for _, spec := range specs {
		if _, exists := nodes[spec.ID.Key]; exists {
			return nil, &DuplicateIDError{ID: spec.ID}
		}
		nodes[spec.ID.Key] = &node{spec: spec, deps: spec.effectiveDeps()}
	}

	for _, spec := range specs {
		for _, dep := range nodes[spec.ID.Key].deps {
			if _, exists := nodes[dep.Key]; !exists {
				return nil, &UnknownDependencyError{From: spec.ID, Missing: dep.Key}
			}
		}
	}

	if cycle := findCycle(specs, nodes); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	order, err := sortNodes(specs, nodes)
	if err != nil {
		return nil, err
	}

	// Longest-path layering: a task sits one layer past its deepest
	// dependency, so every dependency finishes strictly before the task's
	// layer starts while independent tasks share a layer. Processing in
	// topological order guarantees dependency layers are already assigned.
	depth := 0
	for _, id := range order {
		n := nodes[id.Key]
		n.layer = 0
		for _, dep := range n.deps {
			if l := nodes[dep.Key].layer + 1; l > n.layer {
				n.layer = l
			}
		}
		if n.layer > depth {
			depth = n.layer
		}
	}

	layers := make([][]TaskID, depth+1)
	for _, id := range order {
		n := nodes[id.Key]
		layers[n.layer] = append(layers[n.layer], id)
	}

	return &Graph{nodes: nodes, order: order, layers: layers}, nil
}

// sortNodes runs a topological sort over the effective-dependency edges.
// Cycles were ruled out by findCycle, so a sort error means the edge set
// itself is malformed.
func sortNodes(specs []TaskSpec, nodes map[any]*node) ([]TaskID, error) {
	var edges []toposort.Edge
	for _, spec := range specs {
		n := nodes[spec.ID.Key]
		if len(n.deps) == 0 {
			edges = append(edges, toposort.Edge{nil, spec.ID.Key})
			continue
		}
		for _, dep := range n.deps {
			edges = append(edges, toposort.Edge{dep.Key, spec.ID.Key})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("topological sort failed: %w", err)
	}

	order := make([]TaskID, 0, len(nodes))
	for _, key := range sorted {
		if key == nil {
			continue
		}
		order = append(order, nodes[key].spec.ID)
	}
	if len(order) != len(nodes) {
		return nil, fmt.Errorf("topological sort lost %d tasks", len(nodes)-len(order))
	}
	return order, nil
}

// findCycle looks for a dependency cycle via depth-first traversal with an
// in-progress set. It returns the ordered cycle with the entry task repeated
// at the end, or nil when the graph is acyclic.
func findCycle(specs []TaskSpec, nodes map[any]*node) []TaskID {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[any]int, len(nodes))
	var stack []TaskID

	var visit func(id TaskID) []TaskID
	visit = func(id TaskID) []TaskID {
		state[id.Key] = inStack
		stack = append(stack, id)
		for _, dep := range nodes[id.Key].deps {
			switch state[dep.Key] {
			case inStack:
				// Slice the cycle out of the current path.
				for i, on := range stack {
					if on.Key == dep.Key {
						cycle := append([]TaskID{}, stack[i:]...)
						return append(cycle, dep)
					}
				}
			case unvisited:
				if cycle := visit(nodes[dep.Key].spec.ID); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id.Key] = done
		return nil
	}

	for _, spec := range specs {
		if state[spec.ID.Key] == unvisited {
			if cycle := visit(spec.ID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Layers returns the ordered execution layers. The returned slices are
// copies; mutating them does not affect the graph.
func (g *Graph) Layers() [][]TaskID {
	layers := make([][]TaskID, len(g.layers))
	for i, layer := range g.layers {
		layers[i] = append([]TaskID(nil), layer...)
	}
	return layers
}

// Tasks returns every task identifier in topological order.
func (g *Graph) Tasks() []TaskID {
	return append([]TaskID(nil), g.order...)
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}
