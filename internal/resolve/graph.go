// Package resolve infers and checks ordering constraints between work
// items and hierarchy nodes: textual dependency cues, file-overlap
// conflict analysis, and dependency-edge graphs with cycle detection.
// Every signal it produces is advisory; nothing here blocks hierarchy
// creation.
package resolve

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cairnhq/cairn/pkg/models"
)

// ErrCycleDetected indicates a circular dependency in an edge set.
var ErrCycleDetected = errors.New("dependency cycle detected")

// ErrSelfDependency indicates an edge from a node to itself.
var ErrSelfDependency = errors.New("node cannot depend on itself")

// Graph is a directed dependency graph over sibling slugs, built from
// DependencyEdges. Edges point from a dependent to what it depends on.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]bool
	// edges maps dependent slug to the slugs it depends on.
	edges map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		edges: make(map[string][]string),
	}
}

// FromEdges builds a graph from an edge set. Self-loops are rejected;
// cycles are not checked here, only by Validate, so a stored edge set
// with a cycle can still be loaded and then reported.
func FromEdges(edges []models.DependencyEdge) (*Graph, error) {
	g := NewGraph()
	for _, edge := range edges {
		if err := g.AddEdge(edge); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode registers a slug with no dependencies yet.
func (g *Graph) AddNode(slug string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[slug] = true
}

// AddEdge adds one dependency edge, registering both endpoints.
func (g *Graph) AddEdge(edge models.DependencyEdge) error {
	if edge.DependentSlug == edge.DependsOnSlug {
		return fmt.Errorf("%w: %s", ErrSelfDependency, edge.DependentSlug)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[edge.DependentSlug] = true
	g.nodes[edge.DependsOnSlug] = true
	g.edges[edge.DependentSlug] = append(g.edges[edge.DependentSlug], edge.DependsOnSlug)
	return nil
}

// Cycle returns one dependency cycle as a slug path whose last element
// repeats the first, or nil when the graph is acyclic. Detection is
// depth-first with three colors, so traversal terminates on any input.
func (g *Graph) Cycle() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cycleLocked()
}

// cycleLocked assumes g.mu is held.
func (g *Graph) cycleLocked() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int, len(g.nodes))

	var stack []string
	var found []string

	var visit func(slug string) bool
	visit = func(slug string) bool {
		colors[slug] = gray
		stack = append(stack, slug)

		for _, dep := range g.sortedDeps(slug) {
			switch colors[dep] {
			case gray:
				// Back edge: slice the stack from the first occurrence
				// of dep and close the loop.
				for i, s := range stack {
					if s == dep {
						found = append(append([]string{}, stack[i:]...), dep)
						return true
					}
				}
			case white:
				if visit(dep) {
					return true
				}
			}
		}

		colors[slug] = black
		stack = stack[:len(stack)-1]
		return false
	}

	for _, slug := range g.sortedNodes() {
		if colors[slug] == white {
			stack = stack[:0]
			if visit(slug) {
				return found
			}
		}
	}
	return nil
}

// Validate returns a validation error naming the cycle path when the
// edge set contains one, nil otherwise.
func (g *Graph) Validate() error {
	if cycle := g.Cycle(); cycle != nil {
		return fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(cycle, " -> "))
	}
	return nil
}

// TopologicalOrder returns the slugs with every dependency before its
// dependents. Errors when the graph has a cycle.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool, len(g.nodes))
	var order []string

	var visit func(slug string)
	visit = func(slug string) {
		if visited[slug] {
			return
		}
		visited[slug] = true
		for _, dep := range g.sortedDeps(slug) {
			visit(dep)
		}
		order = append(order, slug)
	}

	for _, slug := range g.sortedNodes() {
		visit(slug)
	}
	return order, nil
}

// Ready returns the slugs whose dependencies are all in the completed
// set, excluding slugs already completed themselves.
func (g *Graph) Ready(completed map[string]bool) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for _, slug := range g.sortedNodes() {
		if completed[slug] {
			continue
		}
		ok := true
		for _, dep := range g.edges[slug] {
			if !completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, slug)
		}
	}
	return ready
}

// Dependencies returns the slugs the given slug depends on.
func (g *Graph) Dependencies(slug string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string{}, g.edges[slug]...)
}

// Dependents returns the slugs that depend on the given slug.
func (g *Graph) Dependents(slug string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, node := range g.sortedNodes() {
		for _, dep := range g.edges[node] {
			if dep == slug {
				dependents = append(dependents, node)
				break
			}
		}
	}
	return dependents
}

// Size returns the number of registered slugs.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// sortedNodes returns the node slugs in lexical order so traversal and
// cycle reports are deterministic. Caller must hold g.mu.
func (g *Graph) sortedNodes() []string {
	slugs := make([]string, 0, len(g.nodes))
	for slug := range g.nodes {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// sortedDeps returns a slug's dependencies in lexical order. Caller must
// hold g.mu.
func (g *Graph) sortedDeps(slug string) []string {
	deps := append([]string{}, g.edges[slug]...)
	sort.Strings(deps)
	return deps
}
