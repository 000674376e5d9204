package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Nodeflow/internal/domain"
)

func buildGraph(nodes []string, edges [][2]string) *domain.Graph {
	g := &domain.Graph{Name: "test"}
	for _, id := range nodes {
		g.Nodes = append(g.Nodes, domain.NodeDef{ID: id, Kind: "start"})
	}
	for _, e := range edges {
		g.Edges = append(g.Edges, domain.EdgeDef{SourceID: e[0], TargetID: e[1]})
	}
	return g
}

func TestTopologicalOrder(t *testing.T) {
	g := buildGraph(
		[]string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
	)

	order, err := TopologicalOrder(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a", "b", "c", "d"}
	for i, id := range want {
		if order[i] != id {
			t.Errorf("position %d: expected %s, got %s", i, id, order[i])
		}
	}
}

func TestTopologicalOrder_DeclarationOrderTieBreak(t *testing.T) {
	// Узлы без зависимостей выполняются в порядке объявления
	g := buildGraph([]string{"z", "m", "a"}, nil)

	order, err := TopologicalOrder(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"z", "m", "a"}
	for i, id := range want {
		if order[i] != id {
			t.Errorf("position %d: expected %s, got %s", i, id, order[i])
		}
	}
}

func TestTopologicalOrder_Deterministic(t *testing.T) {
	g := buildGraph(
		[]string{"a", "b", "c", "d", "e"},
		[][2]string{{"a", "c"}, {"b", "c"}, {"c", "d"}, {"c", "e"}},
	)

	first, err := TopologicalOrder(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		next, err := TopologicalOrder(g)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for j := range first {
			if next[j] != first[j] {
				t.Fatalf("run %d: order differs at %d: %s vs %s", i, j, next[j], first[j])
			}
		}
	}
}

func TestTopologicalOrder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		graph *domain.Graph
		want  error
	}{
		{
			name:  "empty graph",
			graph: &domain.Graph{},
			want:  ErrEmptyGraph,
		},
		{
			name: "duplicate node id",
			graph: &domain.Graph{Nodes: []domain.NodeDef{
				{ID: "a"}, {ID: "a"},
			}},
			want: ErrDuplicateNodeID,
		},
		{
			name: "edge to unknown node",
			graph: &domain.Graph{
				Nodes: []domain.NodeDef{{ID: "a"}},
				Edges: []domain.EdgeDef{{SourceID: "a", TargetID: "ghost"}},
			},
			want: ErrUnknownNode,
		},
		{
			name: "cycle",
			graph: buildGraph(
				[]string{"a", "b", "c"},
				[][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}},
			),
			want: ErrCyclicGraph,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TopologicalOrder(tt.graph)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReachableFrom(t *testing.T) {
	g := buildGraph(
		[]string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"b", "c"}},
	)

	reachable := ReachableFrom(g, "b")
	for _, id := range []string{"b", "c"} {
		if !reachable[id] {
			t.Errorf("%s should be reachable", id)
		}
	}
	for _, id := range []string{"a", "d"} {
		if reachable[id] {
			t.Errorf("%s should not be reachable", id)
		}
	}
}
