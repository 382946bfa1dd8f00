package domain

import (
	"iter"
	"sort"

	"go.trai.ch/zerr"
)

// GraphNode is one feature in the install-order graph. DependsOn edges are
// hard requirements and must name features present in the set. InstallsAfter
// edges are soft ordering hints and are ignored when the named feature is not
// part of the set.
type GraphNode struct {
	ID            InternedString
	DependsOn     []InternedString
	InstallsAfter []InternedString
}

// Graph is the install-order dependency graph over a resolved feature set.
type Graph struct {
	nodes        map[InternedString]GraphNode
	installOrder []InternedString
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[InternedString]GraphNode),
	}
}

// AddFeature adds a feature node to the graph.
// It returns an error if a node with the same id already exists.
func (g *Graph) AddFeature(n GraphNode) error {
	if _, exists := g.nodes[n.ID]; exists {
		return zerr.With(ErrFeatureAlreadyExists, "feature", n.ID.String())
	}
	g.nodes[n.ID] = n
	return nil
}

// Len returns the number of features in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Validate checks for cycles using a depth-first topological sort and
// populates the install order on success. Roots and edges are visited in
// sorted order so the resulting order is deterministic for a given set.
func (g *Graph) Validate() error {
	g.installOrder = make([]InternedString, 0, len(g.nodes))
	visited := make(map[InternedString]int) // 0: unvisited, 1: visiting, 2: visited
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		visited[u] = 1
		path = append(path, u)

		node := g.nodes[u]
		for _, dep := range g.edges(node) {
			if _, exists := g.nodes[dep]; !exists {
				// Soft ordering hints may point outside the set.
				if node.isSoftEdge(dep) {
					continue
				}
				return zerr.With(zerr.With(ErrMissingDependency, "feature", u.String()), "dependency", dep.String())
			}
			if visited[dep] == 1 {
				return g.buildCycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.installOrder = append(g.installOrder, u)
		return nil
	}

	for _, id := range g.sortedIDs() {
		if visited[id] == 0 {
			if err := visit(id); err != nil {
				return err
			}
		}
	}

	return nil
}

// buildCycleError constructs an error with cycle path metadata.
func (g *Graph) buildCycleError(path []InternedString, dep InternedString) error {
	cyclePath := ""
	startIdx := -1
	for i, node := range path {
		if node == dep {
			startIdx = i
			break
		}
	}
	for i := startIdx; i < len(path); i++ {
		cyclePath += path[i].String() + " -> "
	}
	cyclePath += dep.String()
	return zerr.With(ErrCycleDetected, "cycle", cyclePath)
}

// Walk returns an iterator that yields feature ids in install order,
// prerequisites first. It assumes Validate() has been called and returned nil.
func (g *Graph) Walk() iter.Seq[InternedString] {
	return func(yield func(InternedString) bool) {
		for _, id := range g.installOrder {
			if !yield(id) {
				return
			}
		}
	}
}

// InstallOrder returns the validated install order as plain strings.
func (g *Graph) InstallOrder() []string {
	order := make([]string, 0, len(g.installOrder))
	for _, id := range g.installOrder {
		order = append(order, id.String())
	}
	return order
}

// edges returns the union of hard and soft edges in sorted order.
func (g *Graph) edges(n GraphNode) []InternedString {
	combined := make([]InternedString, 0, len(n.DependsOn)+len(n.InstallsAfter))
	seen := make(map[InternedString]struct{}, cap(combined))
	for _, dep := range n.DependsOn {
		if _, ok := seen[dep]; ok {
			continue
		}
		seen[dep] = struct{}{}
		combined = append(combined, dep)
	}
	for _, dep := range n.InstallsAfter {
		if _, ok := seen[dep]; ok {
			continue
		}
		seen[dep] = struct{}{}
		combined = append(combined, dep)
	}
	sortInterned(combined)
	return combined
}

func (n GraphNode) isSoftEdge(dep InternedString) bool {
	for _, hard := range n.DependsOn {
		if hard == dep {
			return false
		}
	}
	return true
}

func (g *Graph) sortedIDs() []InternedString {
	ids := make([]InternedString, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sortInterned(ids)
	return ids
}

func sortInterned(ids []InternedString) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
