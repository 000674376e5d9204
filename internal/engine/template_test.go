package engine

import (
	"errors"
	"testing"
)

func testBindings() map[string]any {
	return map[string]any{
		"fetch": map[string]any{
			"body": map[string]any{
				"total": float64(42),
				"items": []any{
					map[string]any{"id": "a"},
					map[string]any{"id": "b"},
				},
			},
		},
		"input": map[string]any{"name": "test"},
	}
}

func TestLookupPath(t *testing.T) {
	bindings := testBindings()

	tests := []struct {
		name     string
		path     string
		expected any
	}{
		{name: "node output field", path: "fetch.body.total", expected: float64(42)},
		{name: "list index", path: "fetch.body.items.1.id", expected: "b"},
		{name: "reserved input key", path: "input.name", expected: "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LookupPath(bindings, tt.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestLookupPath_Unresolved(t *testing.T) {
	bindings := testBindings()

	for _, path := range []string{"ghost", "fetch.body.missing", "fetch.body.items.9", "fetch.body.total.deep"} {
		t.Run(path, func(t *testing.T) {
			_, err := LookupPath(bindings, path)
			if !errors.Is(err, ErrUnresolvedPath) {
				t.Errorf("expected ErrUnresolvedPath, got %v", err)
			}
		})
	}
}

func TestRender(t *testing.T) {
	bindings := testBindings()

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{name: "substitution", template: "total is {fetch.body.total}", expected: "total is 42"},
		{name: "two placeholders", template: "{input.name}: {fetch.body.total}", expected: "test: 42"},
		{name: "no placeholders", template: "plain text", expected: "plain text"},
		{name: "json literal untouched", template: `{"key": "value"}`, expected: `{"key": "value"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, bindings)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRender_UnresolvedFailsClosed(t *testing.T) {
	_, err := Render("value: {ghost.field}", testBindings())
	if !errors.Is(err, ErrUnresolvedPath) {
		t.Errorf("expected ErrUnresolvedPath, got %v", err)
	}
}

func TestRenderValue_WholePlaceholder(t *testing.T) {
	// Строка из одного плейсхолдера подставляется сырым значением
	got, err := RenderValue("{fetch.body.items}", testBindings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, ok := got.([]any)
	if !ok {
		t.Fatalf("expected raw slice, got %T", got)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
}

func TestRenderConfig(t *testing.T) {
	config := map[string]any{
		"url": "https://api.example.com/items/{fetch.body.items.0.id}",
		"body": map[string]any{
			"items": "{fetch.body.items}",
			"count": 2,
		},
	}

	rendered, err := RenderConfig(config, testBindings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rendered["url"] != "https://api.example.com/items/a" {
		t.Errorf("unexpected url: %v", rendered["url"])
	}
	body := rendered["body"].(map[string]any)
	if _, ok := body["items"].([]any); !ok {
		t.Errorf("expected raw slice in nested config, got %T", body["items"])
	}
	if body["count"] != 2 {
		t.Errorf("non-string values should pass through, got %v", body["count"])
	}
}
