package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/executor"
)

func TestLoadGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	data := `{
		"name": "pipeline",
		"nodes": [
			{"id": "a", "kind": "start"},
			{"id": "b", "kind": "end"}
		],
		"edges": [{"source_id": "a", "target_id": "b"}]
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write graph file: %v", err)
	}

	g, err := LoadGraph(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Name != "pipeline" || len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Errorf("graph parsed incorrectly: %+v", g)
	}

	if _, err := LoadGraph(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestValidateGraph(t *testing.T) {
	registry := executor.NewDefaultRegistry(executor.Deps{})

	tests := []struct {
		name    string
		graph   *domain.Graph
		wantErr bool
	}{
		{
			name: "valid",
			graph: &domain.Graph{
				Nodes: []domain.NodeDef{
					{ID: "a", Kind: "start"},
					{ID: "b", Kind: "end", Inputs: []string{"a"}},
				},
				Edges: []domain.EdgeDef{{SourceID: "a", TargetID: "b"}},
			},
		},
		{
			name: "empty kind",
			graph: &domain.Graph{
				Nodes: []domain.NodeDef{{ID: "a"}},
			},
			wantErr: true,
		},
		{
			name: "unknown kind",
			graph: &domain.Graph{
				Nodes: []domain.NodeDef{{ID: "a", Kind: "teleport"}},
			},
			wantErr: true,
		},
		{
			name: "unknown input reference",
			graph: &domain.Graph{
				Nodes: []domain.NodeDef{
					{ID: "a", Kind: "start", Inputs: []string{"ghost"}},
				},
			},
			wantErr: true,
		},
		{
			name: "self input",
			graph: &domain.Graph{
				Nodes: []domain.NodeDef{
					{ID: "a", Kind: "start", Inputs: []string{"a"}},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGraph(tt.graph, registry)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateGraph_ReservedNodeID(t *testing.T) {
	// ID узла попадает в bindings: "out" затенил бы output источника в
	// условиях рёбер, "input" — входные данные run
	registry := executor.NewDefaultRegistry(executor.Deps{})

	for _, reserved := range []string{OutBindingKey, InputBindingKey} {
		g := &domain.Graph{
			Nodes: []domain.NodeDef{
				{ID: reserved, Kind: "start"},
				{ID: "b", Kind: "end"},
			},
			Edges: []domain.EdgeDef{{SourceID: reserved, TargetID: "b"}},
		}
		if err := ValidateGraph(g, registry); err == nil {
			t.Errorf("node id %q should be rejected", reserved)
		}
	}
}
