package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shaiso/Nodeflow/internal/toolrepo"
)

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	r.Register(NewHTTPExecutor())
	if !r.Has(KindHTTP) {
		t.Error("should have http")
	}

	exec, err := r.Get(KindHTTP)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Kind() != KindHTTP {
		t.Errorf("expected %s, got %s", KindHTTP, exec.Kind())
	}

	_, err = r.Get("unknown")
	if !errors.Is(err, ErrExecutorNotFound) {
		t.Errorf("expected ErrExecutorNotFound, got %v", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(Deps{})

	expectedKinds := []string{
		KindStart, KindEnd, KindHTTP, KindTransform, KindCondition,
		KindCollection, KindScriptLua, KindScriptJS, KindStore,
		KindFile, KindNotify, KindPrompt, KindModel, KindTool,
	}
	for _, kind := range expectedKinds {
		if !r.Has(kind) {
			t.Errorf("default registry should have %s", kind)
		}
	}
	if got := len(r.Kinds()); got != len(expectedKinds) {
		t.Errorf("expected %d kinds, got %d", len(expectedKinds), got)
	}
}

// HTTP Executor Tests

func TestHTTPExecutor_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"x": 42}`)
	}))
	defer server.Close()

	exec := NewHTTPExecutor()
	resp, err := exec.Execute(context.Background(), &Request{
		NodeID: "fetch",
		Config: map[string]any{
			"method": "get",
			"url":    server.URL,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.(map[string]any)
	if out["status_code"] != 200 {
		t.Errorf("expected 200, got %v", out["status_code"])
	}
	body := out["body"].(map[string]any)
	if body["x"] != float64(42) {
		t.Errorf("expected 42, got %v", body["x"])
	}
}

func TestHTTPExecutor_RequiredConfig(t *testing.T) {
	exec := NewHTTPExecutor()

	// Без url
	_, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{"method": "GET"},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without url, got %v", err)
	}

	// Без method
	_, err = exec.Execute(context.Background(), &Request{
		Config: map[string]any{"url": "http://example.com"},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without method, got %v", err)
	}
}

func TestHTTPExecutor_MockResponse(t *testing.T) {
	exec := NewHTTPExecutor()

	// mock_response: сеть не нужна
	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"method":        "GET",
			"url":           "http://unreachable.invalid",
			"mock_response": map[string]any{"x": float64(1)},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.(map[string]any)
	body := out["body"].(map[string]any)
	if body["x"] != float64(1) {
		t.Errorf("expected mocked body, got %v", body)
	}
}

// Transform Executor Tests

func TestTransformExecutor_MapFields(t *testing.T) {
	exec := NewTransformExecutor()
	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"mappings": map[string]any{
				"total": "fetch.body.total",
				"name":  "input.name",
			},
		},
		Bindings: map[string]any{
			"fetch": map[string]any{"body": map[string]any{"total": float64(10)}},
			"input": map[string]any{"name": "alice"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.(map[string]any)
	if out["total"] != float64(10) || out["name"] != "alice" {
		t.Errorf("unexpected output: %v", out)
	}
}

func TestTransformExecutor_MissingPath(t *testing.T) {
	exec := NewTransformExecutor()
	_, err := exec.Execute(context.Background(), &Request{
		Config:   map[string]any{"mappings": map[string]any{"x": "no.such.path"}},
		Bindings: map[string]any{},
	})
	if !errors.Is(err, ErrExecutionFailed) {
		t.Errorf("expected ErrExecutionFailed, got %v", err)
	}
}

func TestTransformExecutor_Aggregate(t *testing.T) {
	exec := NewTransformExecutor()
	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"op":     "aggregate",
			"source": "items",
			"fn":     "sum",
			"field":  "amt",
		},
		Bindings: map[string]any{
			"items": []any{
				map[string]any{"amt": float64(500)},
				map[string]any{"amt": float64(1500)},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Output != float64(2000) {
		t.Errorf("expected 2000, got %v", resp.Output)
	}
}

func TestTransformExecutor_Coerce(t *testing.T) {
	exec := NewTransformExecutor()
	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"op":     "coerce",
			"source": "raw",
			"to":     "int",
		},
		Bindings: map[string]any{"raw": "42"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Output != 42 {
		t.Errorf("expected 42, got %v", resp.Output)
	}
}

// Condition Executor Tests

func TestConditionExecutor_Branches(t *testing.T) {
	exec := NewConditionExecutor()

	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"expression":   "total > 100",
			"true_branch":  "big",
			"false_branch": "small",
		},
		Bindings: map[string]any{"total": float64(200)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.(map[string]any)
	if out["result"] != true || out["branch"] != "big" {
		t.Errorf("unexpected output: %v", out)
	}

	resp, err = exec.Execute(context.Background(), &Request{
		Config:   map[string]any{"expression": "total > 100"},
		Bindings: map[string]any{"total": float64(50)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out = resp.Output.(map[string]any)
	if out["branch"] != "false" {
		t.Errorf("expected default false branch, got %v", out["branch"])
	}
}

// Collection Executor Tests

// fakeSubgraph считает вызовы и возводит числовой элемент в квадрат.
type fakeSubgraph struct {
	calls []any
}

func (f *fakeSubgraph) RunSubgraph(_ context.Context, entryID, elementVar string, element any) (any, error) {
	f.calls = append(f.calls, element)
	n := element.(float64)
	return n * n, nil
}

func TestCollectionExecutor_Iterate(t *testing.T) {
	exec := NewCollectionExecutor()
	sub := &fakeSubgraph{}

	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"operation": "iterate",
			"source":    "nums",
			"child":     "square",
		},
		Bindings: map[string]any{"nums": []any{float64(1), float64(2), float64(3)}},
		Subgraph: sub,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sub.calls) != 3 {
		t.Errorf("expected 3 child invocations, got %d", len(sub.calls))
	}
	out := resp.Output.([]any)
	want := []float64{1, 4, 9}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("element %d: expected %v, got %v", i, w, out[i])
		}
	}
}

func TestCollectionExecutor_IterateEmpty(t *testing.T) {
	exec := NewCollectionExecutor()
	sub := &fakeSubgraph{}

	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"operation": "iterate",
			"source":    "nums",
			"child":     "square",
		},
		Bindings: map[string]any{"nums": []any{}},
		Subgraph: sub,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Пустая коллекция: пустой список, ни одного вызова подграфа
	if len(sub.calls) != 0 {
		t.Errorf("expected 0 child invocations, got %d", len(sub.calls))
	}
	if out := resp.Output.([]any); len(out) != 0 {
		t.Errorf("expected empty result, got %v", out)
	}
}

func TestCollectionExecutor_Map(t *testing.T) {
	exec := NewCollectionExecutor()
	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"operation":  "map",
			"source":     "nums",
			"expression": "item * item",
		},
		Bindings: map[string]any{"nums": []any{float64(1), float64(2), float64(3)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.([]any)
	want := []float64{1, 4, 9}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("element %d: expected %v, got %v", i, w, out[i])
		}
	}
}

func TestCollectionExecutor_Filter(t *testing.T) {
	exec := NewCollectionExecutor()
	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"operation": "filter",
			"source":    "items",
			"predicate": "amt > 1000",
		},
		Bindings: map[string]any{
			"items": []any{
				map[string]any{"amt": float64(500)},
				map[string]any{"amt": float64(1500)},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.([]any)
	if len(out) != 1 {
		t.Fatalf("expected 1 element, got %d", len(out))
	}
	if out[0].(map[string]any)["amt"] != float64(1500) {
		t.Errorf("unexpected element: %v", out[0])
	}
}

func TestCollectionExecutor_FilterNoMatch(t *testing.T) {
	exec := NewCollectionExecutor()
	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"operation": "filter",
			"source":    "items",
			"predicate": "amt > 1000",
		},
		Bindings: map[string]any{
			"items": []any{map[string]any{"amt": float64(1)}},
		},
	})
	if err != nil {
		t.Fatalf("no-match filter should not error: %v", err)
	}
	if out := resp.Output.([]any); len(out) != 0 {
		t.Errorf("expected empty result, got %v", out)
	}
}

func TestCollectionExecutor_Range(t *testing.T) {
	exec := NewCollectionExecutor()
	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"operation":  "map",
			"start":      0,
			"end":        6,
			"step":       2,
			"expression": "item + 1",
		},
		Bindings: map[string]any{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.([]any)
	want := []float64{1, 3, 5}
	if len(out) != len(want) {
		t.Fatalf("expected %d elements, got %d", len(want), len(out))
	}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("element %d: expected %v, got %v", i, w, out[i])
		}
	}
}

func TestCollectionExecutor_IterationCap(t *testing.T) {
	exec := NewCollectionExecutor()
	_, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"operation":      "map",
			"source":         "nums",
			"expression":     "item",
			"max_iterations": 2,
		},
		Bindings: map[string]any{"nums": []any{float64(1), float64(2), float64(3)}},
	})
	if !errors.Is(err, ErrIterationCap) {
		t.Errorf("expected ErrIterationCap, got %v", err)
	}
}

// Store Executor Tests

func TestStoreExecutor_SchemeValidation(t *testing.T) {
	exec := NewStoreExecutor()

	_, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"connection": "postgres://localhost/db",
			"sql":        "SELECT 1",
		},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for non-sqlite scheme, got %v", err)
	}
}

func TestStoreExecutor_ExecAndQuery(t *testing.T) {
	exec := NewStoreExecutor()
	conn := "sqlite://" + filepath.Join(t.TempDir(), "test.db")

	run := func(config map[string]any) *Response {
		t.Helper()
		resp, err := exec.Execute(context.Background(), &Request{Config: config})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return resp
	}

	run(map[string]any{
		"connection": conn,
		"op":         "exec",
		"sql":        "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
	})
	run(map[string]any{
		"connection": conn,
		"op":         "exec",
		"sql":        "INSERT INTO users (name) VALUES (?), (?)",
		"params":     []any{"alice", "bob"},
	})

	resp := run(map[string]any{
		"connection": conn,
		"op":         "query",
		"sql":        "SELECT name FROM users ORDER BY id",
	})
	out := resp.Output.(map[string]any)
	if out["count"] != 2 {
		t.Fatalf("expected 2 rows, got %v", out["count"])
	}
	rows := out["rows"].([]any)
	if rows[0].(map[string]any)["name"] != "alice" {
		t.Errorf("unexpected first row: %v", rows[0])
	}
}

// File Executor Tests

func TestFileExecutor_ReadWriteList(t *testing.T) {
	exec := NewFileExecutor(t.TempDir())
	ctx := context.Background()

	_, err := exec.Execute(ctx, &Request{
		Config: map[string]any{
			"op":      "write",
			"path":    "sub/out.txt",
			"content": "hello",
		},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	resp, err := exec.Execute(ctx, &Request{
		Config: map[string]any{"op": "read", "path": "sub/out.txt"},
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := resp.Output.(map[string]any)
	if out["content"] != "hello" {
		t.Errorf("expected hello, got %v", out["content"])
	}

	resp, err = exec.Execute(ctx, &Request{
		Config: map[string]any{"op": "list", "path": "sub"},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	out = resp.Output.(map[string]any)
	if out["count"] != 1 {
		t.Errorf("expected 1 entry, got %v", out["count"])
	}
}

func TestFileExecutor_PathEscape(t *testing.T) {
	exec := NewFileExecutor(t.TempDir())

	_, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{"op": "read", "path": "../../etc/passwd"},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for escaping path, got %v", err)
	}
}

// Script Executor Tests

func TestJSScriptExecutor_Execute(t *testing.T) {
	exec := NewJSScriptExecutor()
	resp, err := exec.Execute(context.Background(), &Request{
		Config:   map[string]any{"source": "input.a + input.b"},
		RunInput: map[string]any{"a": float64(1), "b": float64(2)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, ok := resp.Output.(float64); !ok || n != 3 {
		if n, ok := resp.Output.(int64); !ok || n != 3 {
			t.Errorf("expected 3, got %v (%T)", resp.Output, resp.Output)
		}
	}
}

func TestJSScriptExecutor_Denylist(t *testing.T) {
	exec := NewJSScriptExecutor()
	_, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{"source": `require("fs")`},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLuaScriptExecutor_Execute(t *testing.T) {
	exec := NewLuaScriptExecutor()
	resp, err := exec.Execute(context.Background(), &Request{
		Config:   map[string]any{"source": "return a + b"},
		Bindings: map[string]any{"a": float64(1), "b": float64(2)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Output != int64(3) {
		t.Errorf("expected 3, got %v (%T)", resp.Output, resp.Output)
	}
}

func TestLuaScriptExecutor_Denylist(t *testing.T) {
	exec := NewLuaScriptExecutor()
	_, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{"source": `os.execute("ls")`},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

// Notify Executor Tests

func TestNotifyExecutor_Chathook(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		received = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := NewNotifyExecutor("", "")
	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"channel": "chathook",
			"url":     server.URL,
			"message": "run finished",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.(map[string]any)
	if out["delivered"] != true {
		t.Errorf("expected delivered, got %v", out)
	}
	if received != `{"text":"run finished"}` {
		t.Errorf("unexpected payload: %s", received)
	}
}

func TestNotifyExecutor_RequiredFields(t *testing.T) {
	exec := NewNotifyExecutor("", "")

	_, err := exec.Execute(context.Background(), &Request{Config: map[string]any{}})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without channel, got %v", err)
	}

	_, err = exec.Execute(context.Background(), &Request{
		Config: map[string]any{"channel": "email", "to": "a@b.c"},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without subject/body, got %v", err)
	}
}

// Prompt Executor Tests

func TestPromptExecutor_Execute(t *testing.T) {
	exec := NewPromptExecutor()
	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"template": "Summarize: report text",
			"system":   "Be concise.",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.(map[string]any)
	if out["prompt"] != "Summarize: report text" || out["system"] != "Be concise." {
		t.Errorf("unexpected output: %v", out)
	}

	_, err = exec.Execute(context.Background(), &Request{Config: map[string]any{}})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without template, got %v", err)
	}
}

// Tool Executor Tests

func TestToolExecutor_Execute(t *testing.T) {
	repo := toolrepo.NewStatic()
	repo.Register(&toolrepo.ToolDef{ID: "echo"},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["msg"], nil
		})

	exec := NewToolExecutor(repo)
	resp, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{
			"tool_id": "echo",
			"args":    map[string]any{"msg": "hi"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := resp.Output.(map[string]any)
	if out["result"] != "hi" {
		t.Errorf("unexpected result: %v", out)
	}
}

func TestToolExecutor_MissingAndDeprecated(t *testing.T) {
	repo := toolrepo.NewStatic()
	repo.Register(&toolrepo.ToolDef{ID: "old", Deprecated: true},
		func(context.Context, map[string]any) (any, error) { return nil, nil })

	exec := NewToolExecutor(repo)

	// Неизвестный id — жёсткая ошибка
	_, err := exec.Execute(context.Background(), &Request{
		Config: map[string]any{"tool_id": "ghost"},
	})
	if err == nil || !errors.Is(err, ErrExecutionFailed) {
		t.Errorf("expected ErrExecutionFailed for unknown tool, got %v", err)
	}

	// Устаревший id — тоже
	_, err = exec.Execute(context.Background(), &Request{
		Config: map[string]any{"tool_id": "old"},
	})
	if err == nil || !errors.Is(err, ErrExecutionFailed) {
		t.Errorf("expected ErrExecutionFailed for deprecated tool, got %v", err)
	}
}
