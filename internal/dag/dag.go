// Package dag provides a small dependency graph engine. Edges point from a
// node to the node it depends on. The graph supports ready-worklist
// resolution and transitive dependency queries.
//
// Cycles are not rejected when edges are added; they surface as unresolved
// nodes from Resolve.
package dag

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNodeNotFound is returned when an operation references a non-existent node.
var ErrNodeNotFound = errors.New("node not found")

// ErrDuplicateNode is returned when adding a node that already exists.
var ErrDuplicateNode = errors.New("duplicate node")

// ErrSelfEdge is returned when an edge would create a self-loop.
var ErrSelfEdge = errors.New("self-referencing edge")

// DAG is a directed graph of string-keyed nodes.
type DAG struct {
	nodes map[string]bool
	// adjacency maps nodeID → set of dependency IDs (forward edges).
	adjacency map[string]map[string]bool
	// reverse maps nodeID → set of dependent IDs (backward edges).
	reverse map[string]map[string]bool
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:     make(map[string]bool),
		adjacency: make(map[string]map[string]bool),
		reverse:   make(map[string]map[string]bool),
	}
}

// AddNode adds a node. Returns ErrDuplicateNode if it already exists.
func (d *DAG) AddNode(id string) error {
	if d.nodes[id] {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	d.nodes[id] = true
	d.adjacency[id] = make(map[string]bool)
	d.reverse[id] = make(map[string]bool)
	return nil
}

// AddEdge records that from depends on to. Both nodes must already exist.
func (d *DAG) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfEdge, from)
	}
	if !d.nodes[from] {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if !d.nodes[to] {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	d.adjacency[from][to] = true
	d.reverse[to][from] = true
	return nil
}

// Nodes returns all node IDs, sorted alphabetically.
func (d *DAG) Nodes() []string {
	return sortedKeys(d.nodes)
}

// Resolve runs a ready-worklist pass over the graph: visit is called for a
// node only after it has been called for every node the node depends on.
// It returns the nodes that never became ready, sorted. A visit error stops
// the pass immediately.
func (d *DAG) Resolve(visit func(id string) error) ([]string, error) {
	remaining := make(map[string]int, len(d.nodes))
	var queue []string
	for id := range d.nodes {
		remaining[id] = len(d.adjacency[id])
		if remaining[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	done := make(map[string]bool, len(d.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if err := visit(id); err != nil {
			return nil, err
		}
		done[id] = true

		var freed []string
		for dependent := range d.reverse[id] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	var pending []string
	for id := range d.nodes {
		if !done[id] {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)
	return pending, nil
}

// Ancestors returns all transitive dependencies of id, sorted. Returns nil
// if the node has no dependencies or does not exist.
func (d *DAG) Ancestors(id string) []string {
	if !d.nodes[id] {
		return nil
	}
	visited := make(map[string]bool)
	collect(d.adjacency, id, visited)
	delete(visited, id)
	if len(visited) == 0 {
		return nil
	}
	return sortedKeys(visited)
}

// collect walks edges from id, marking every reachable node. Cycles are safe
// because visited nodes are not re-entered.
func collect(edges map[string]map[string]bool, id string, visited map[string]bool) {
	for next := range edges[id] {
		if !visited[next] {
			visited[next] = true
			collect(edges, next, visited)
		}
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
