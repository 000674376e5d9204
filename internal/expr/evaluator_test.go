package expr

import (
	"errors"
	"testing"
)

func TestEvaluateBool_Comparisons(t *testing.T) {
	bindings := map[string]any{
		"out": map[string]any{"x": 1, "name": "alpha"},
		"amt": 1500,
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"out.x > 0", true},
		{"out.x < 0", false},
		{"out.x == 1", true},
		{"out.x != 1", false},
		{"amt > 1000", true},
		{"amt >= 1500", true},
		{"out.name == \"alpha\"", true},
		{"out.x > 0 && amt > 1000", true},
		{"out.x < 0 || amt > 1000", true},
		{"!(out.x > 0)", false},
	}

	for _, tt := range tests {
		got, err := EvaluateBool(tt.expr, bindings)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.expr, tt.want, got)
		}
	}
}

func TestEvaluate_Values(t *testing.T) {
	bindings := map[string]any{
		"item":  map[string]any{"amt": 500},
		"items": []any{1.0, 2.0, 3.0},
	}

	// Арифметика
	got, err := Evaluate("item.amt * 2", bindings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1000.0 {
		t.Errorf("expected 1000, got %v", got)
	}

	// Индексация
	got, err = Evaluate("items[1]", bindings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2.0 {
		t.Errorf("expected 2, got %v", got)
	}

	// Тернарный оператор
	got, err = Evaluate("item.amt > 100 ? \"big\" : \"small\"", bindings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "big" {
		t.Errorf("expected big, got %v", got)
	}
}

func TestEvaluate_MissingPathFailsClosed(t *testing.T) {
	bindings := map[string]any{
		"out": map[string]any{"x": 1},
	}

	// Отсутствующий атрибут — ошибка, не значение по умолчанию
	_, err := Evaluate("out.missing", bindings)
	if err == nil {
		t.Fatal("expected error for missing attribute")
	}
	if !errors.Is(err, ErrEvaluation) {
		t.Errorf("expected ErrEvaluation, got %v", err)
	}

	// Неизвестный корневой идентификатор
	_, err = Evaluate("unknown_var > 0", bindings)
	if err == nil {
		t.Fatal("expected error for unknown identifier")
	}
}

func TestEvaluate_DenylistIsIndependent(t *testing.T) {
	// Denylist срабатывает даже на выражениях, которые парсер
	// отклонил бы и сам — и на тех, которые он бы пропустил.
	tests := []string{
		"a.__class__",
		"import os",
		"exec(\"rm -rf /\")",
		"eval(payload)",
		"getattr(a, \"b\")",
		"open(\"/etc/passwd\")",
		"subprocessendpoint > 0",
	}

	for _, e := range tests {
		_, err := Evaluate(e, map[string]any{"a": 1})
		if !errors.Is(err, ErrDeniedConstruct) {
			t.Errorf("%s: expected ErrDeniedConstruct, got %v", e, err)
		}
	}
}

func TestEvaluate_AllowListRejectsCallsAndLoops(t *testing.T) {
	bindings := map[string]any{"items": []any{1.0, 2.0}}

	tests := []string{
		"upper(\"abc\")",
		"length(items)",
		"[for i in items : i * 2]",
		"items[*]",
	}

	for _, e := range tests {
		_, err := Evaluate(e, bindings)
		if err == nil {
			t.Errorf("%s: expected rejection", e)
			continue
		}
		if !errors.Is(err, ErrDisallowedSyntax) && !errors.Is(err, ErrParse) {
			t.Errorf("%s: expected ErrDisallowedSyntax or ErrParse, got %v", e, err)
		}
	}
}

func TestEvaluateBool_NonBooleanResult(t *testing.T) {
	_, err := EvaluateBool("1 + 1", nil)
	if !errors.Is(err, ErrNotBoolean) {
		t.Errorf("expected ErrNotBoolean, got %v", err)
	}
}

func TestEvaluate_EmptyExpression(t *testing.T) {
	_, err := Evaluate("  ", nil)
	if !errors.Is(err, ErrEmptyExpression) {
		t.Errorf("expected ErrEmptyExpression, got %v", err)
	}
}
