package resolve

import (
	"errors"
	"testing"

	"github.com/cairnhq/cairn/pkg/models"
)

func edge(dependent, dependsOn string) models.DependencyEdge {
	return models.DependencyEdge{DependentSlug: dependent, DependsOnSlug: dependsOn}
}

func TestGraph_RejectsSelfLoop(t *testing.T) {
	g := NewGraph()
	err := g.AddEdge(edge("api", "api"))
	if !errors.Is(err, ErrSelfDependency) {
		t.Errorf("AddEdge(self loop) error = %v, want ErrSelfDependency", err)
	}
}

func TestGraph_CycleDetection(t *testing.T) {
	tests := []struct {
		name      string
		edges     []models.DependencyEdge
		wantCycle bool
	}{
		{
			"acyclic chain",
			[]models.DependencyEdge{edge("c", "b"), edge("b", "a")},
			false,
		},
		{
			"two node cycle",
			[]models.DependencyEdge{edge("a", "b"), edge("b", "a")},
			true,
		},
		{
			"three node cycle",
			[]models.DependencyEdge{edge("a", "b"), edge("b", "c"), edge("c", "a")},
			true,
		},
		{
			"diamond is not a cycle",
			[]models.DependencyEdge{edge("d", "b"), edge("d", "c"), edge("b", "a"), edge("c", "a")},
			false,
		},
		{
			"cycle in a disconnected component",
			[]models.DependencyEdge{edge("b", "a"), edge("x", "y"), edge("y", "x")},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := FromEdges(tt.edges)
			if err != nil {
				t.Fatalf("FromEdges() error = %v", err)
			}

			cycle := g.Cycle()
			if tt.wantCycle && cycle == nil {
				t.Error("Cycle() = nil, want a cycle path")
			}
			if !tt.wantCycle && cycle != nil {
				t.Errorf("Cycle() = %v, want nil", cycle)
			}

			err = g.Validate()
			if tt.wantCycle && !errors.Is(err, ErrCycleDetected) {
				t.Errorf("Validate() error = %v, want ErrCycleDetected", err)
			}
			if !tt.wantCycle && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestGraph_CyclePathCloses(t *testing.T) {
	g, err := FromEdges([]models.DependencyEdge{edge("a", "b"), edge("b", "c"), edge("c", "a")})
	if err != nil {
		t.Fatalf("FromEdges() error = %v", err)
	}

	cycle := g.Cycle()
	if len(cycle) < 3 {
		t.Fatalf("Cycle() = %v, want at least three entries", cycle)
	}
	if cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("cycle path %v should close on its first slug", cycle)
	}
}

func TestGraph_TopologicalOrder(t *testing.T) {
	g, err := FromEdges([]models.DependencyEdge{
		edge("deploy", "test"),
		edge("test", "build"),
		edge("docs", "build"),
	})
	if err != nil {
		t.Fatalf("FromEdges() error = %v", err)
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder() error = %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, slug := range order {
		pos[slug] = i
	}
	if pos["build"] > pos["test"] || pos["test"] > pos["deploy"] {
		t.Errorf("order %v violates build < test < deploy", order)
	}
	if pos["build"] > pos["docs"] {
		t.Errorf("order %v violates build < docs", order)
	}
}

func TestGraph_TopologicalOrderOnCycle(t *testing.T) {
	g, err := FromEdges([]models.DependencyEdge{edge("a", "b"), edge("b", "a")})
	if err != nil {
		t.Fatalf("FromEdges() error = %v", err)
	}
	if _, err := g.TopologicalOrder(); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("TopologicalOrder() error = %v, want ErrCycleDetected", err)
	}
}

func TestGraph_Ready(t *testing.T) {
	g, err := FromEdges([]models.DependencyEdge{
		edge("test", "build"),
		edge("deploy", "test"),
	})
	if err != nil {
		t.Fatalf("FromEdges() error = %v", err)
	}
	g.AddNode("independent")

	ready := g.Ready(map[string]bool{})
	wantReady := map[string]bool{"build": true, "independent": true}
	if len(ready) != 2 {
		t.Fatalf("Ready() = %v, want build and independent", ready)
	}
	for _, slug := range ready {
		if !wantReady[slug] {
			t.Errorf("Ready() includes %q unexpectedly", slug)
		}
	}

	ready = g.Ready(map[string]bool{"build": true})
	found := false
	for _, slug := range ready {
		if slug == "test" {
			found = true
		}
		if slug == "build" {
			t.Error("Ready() must not include completed slugs")
		}
	}
	if !found {
		t.Errorf("Ready() = %v, want test once build completes", ready)
	}
}

func TestGraph_Dependents(t *testing.T) {
	g, err := FromEdges([]models.DependencyEdge{
		edge("test", "build"),
		edge("docs", "build"),
		edge("deploy", "test"),
	})
	if err != nil {
		t.Fatalf("FromEdges() error = %v", err)
	}

	dependents := g.Dependents("build")
	if len(dependents) != 2 {
		t.Errorf("Dependents(build) = %v, want docs and test", dependents)
	}
}
