package expr

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// Evaluate вычисляет выражение над bindings и возвращает результат.
//
// Порядок проверок:
//  1. denylist-скан исходного текста (scanDenied)
//  2. разбор в AST
//  3. allow-list типов узлов AST
//  4. вычисление в контексте без функций и глобального состояния
//
// Неразрешимый идентификатор или отсутствующий атрибут — ошибка,
// никогда не значение по умолчанию.
func Evaluate(expression string, bindings map[string]any) (any, error) {
	parsed, err := parse(expression)
	if err != nil {
		return nil, err
	}

	vars, err := buildVariables(bindings)
	if err != nil {
		return nil, newError(expression, err.Error(), ErrEvaluation)
	}

	// Контекст вычисления: только переданные переменные.
	// Functions пуст намеренно — вызовы функций отклоняются и на
	// уровне AST, и на уровне вычисления.
	evalCtx := &hcl.EvalContext{
		Variables: vars,
	}

	val, diags := parsed.Value(evalCtx)
	if diags.HasErrors() {
		return nil, newError(expression, diagDetail(diags), ErrEvaluation)
	}
	if !val.IsKnown() {
		return nil, newError(expression, "result is unknown", ErrEvaluation)
	}

	result, err := fromCtyValue(val)
	if err != nil {
		return nil, newError(expression, err.Error(), ErrEvaluation)
	}

	return result, nil
}

// EvaluateBool вычисляет булево выражение (условие ребра, предикат filter).
// Небулев результат — ошибка.
func EvaluateBool(expression string, bindings map[string]any) (bool, error) {
	parsed, err := parse(expression)
	if err != nil {
		return false, err
	}

	vars, err := buildVariables(bindings)
	if err != nil {
		return false, newError(expression, err.Error(), ErrEvaluation)
	}

	val, diags := parsed.Value(&hcl.EvalContext{Variables: vars})
	if diags.HasErrors() {
		return false, newError(expression, diagDetail(diags), ErrEvaluation)
	}
	if !val.IsKnown() || val.IsNull() {
		return false, newError(expression, "result is not a known value", ErrEvaluation)
	}
	if val.Type() != cty.Bool {
		return false, newError(expression,
			fmt.Sprintf("result type is %s, expected bool", val.Type().FriendlyName()),
			ErrNotBoolean)
	}

	return val.True(), nil
}

// parse проводит выражение через denylist, парсер и allow-list AST.
func parse(expression string) (hclsyntax.Expression, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, newError(expression, "empty expression", ErrEmptyExpression)
	}

	// Барьер 1: denylist исходного текста. Срабатывает первым и
	// независимо от результата разбора.
	if err := scanDenied(trimmed); err != nil {
		return nil, err
	}

	parsed, diags := hclsyntax.ParseExpression([]byte(trimmed), "expression", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, newError(expression, diagDetail(diags), ErrParse)
	}

	// Барьер 2: allow-list типов узлов AST.
	if err := checkAllowed(expression, parsed); err != nil {
		return nil, err
	}

	return parsed, nil
}

// allowWalker проверяет каждый узел AST по allow-list.
type allowWalker struct {
	expression string
	err        error
}

// Enter реализует hclsyntax.Walker.
func (w *allowWalker) Enter(node hclsyntax.Node) hcl.Diagnostics {
	if w.err != nil {
		return nil
	}

	switch node.(type) {
	case *hclsyntax.LiteralValueExpr,
		*hclsyntax.ScopeTraversalExpr,
		*hclsyntax.RelativeTraversalExpr,
		*hclsyntax.BinaryOpExpr,
		*hclsyntax.UnaryOpExpr,
		*hclsyntax.ParenthesesExpr,
		*hclsyntax.ConditionalExpr,
		*hclsyntax.IndexExpr,
		*hclsyntax.TupleConsExpr,
		*hclsyntax.ObjectConsExpr,
		*hclsyntax.ObjectConsKeyExpr,
		*hclsyntax.TemplateExpr,
		*hclsyntax.TemplateWrapExpr:
		// разрешено

	default:
		w.err = newError(w.expression,
			fmt.Sprintf("syntax node %T is not allowed", node), ErrDisallowedSyntax)
	}

	return nil
}

// Exit реализует hclsyntax.Walker.
func (w *allowWalker) Exit(node hclsyntax.Node) hcl.Diagnostics {
	return nil
}

// checkAllowed обходит AST и отклоняет узлы вне allow-list.
// Вызовы функций, for-выражения и splat-операторы сюда не входят.
func checkAllowed(expression string, parsed hclsyntax.Expression) error {
	w := &allowWalker{expression: expression}
	hclsyntax.Walk(parsed, w)
	return w.err
}

// diagDetail собирает человекочитаемое описание из диагностик HCL.
func diagDetail(diags hcl.Diagnostics) string {
	parts := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		if d.Detail != "" {
			parts = append(parts, d.Detail)
		} else {
			parts = append(parts, d.Summary)
		}
	}
	return strings.Join(parts, "; ")
}
