package executor

import (
	"context"
	"fmt"

	"github.com/shaiso/Nodeflow/internal/expr"
)

const (
	// KindCondition — тип условного узла.
	KindCondition = "condition"
)

// Ключи конфигурации condition узла.
const (
	conditionConfigExpression  = "expression"
	conditionConfigTrueBranch  = "true_branch"
	conditionConfigFalseBranch = "false_branch"
)

// Метки веток по умолчанию.
const (
	defaultTrueBranch  = "true"
	defaultFalseBranch = "false"
)

// ConditionExecutor — узел ветвления.
//
// Вычисляет булево выражение над bindings и возвращает метку ветки.
// Исходящие рёбра графа сравнивают метку в своих условиях.
//
// Конфигурация:
//
//	{
//	    "expression": "fetch.body.total > 100",
//	    "true_branch": "big",
//	    "false_branch": "small"
//	}
//
// Output:
//
//	{"result": true, "branch": "big"}
type ConditionExecutor struct{}

// NewConditionExecutor создаёт ConditionExecutor.
func NewConditionExecutor() *ConditionExecutor {
	return &ConditionExecutor{}
}

// Kind возвращает тип узла.
func (e *ConditionExecutor) Kind() string { return KindCondition }

// Category возвращает категорию брокера.
func (e *ConditionExecutor) Category() string { return CategoryNone }

// Execute вычисляет выражение и возвращает метку ветки.
func (e *ConditionExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	expression := GetConfigString(req.Config, conditionConfigExpression)
	if expression == "" {
		return nil, fmt.Errorf("%w: %s: expression is required", ErrInvalidConfig, KindCondition)
	}

	result, err := expr.EvaluateBool(expression, req.Bindings)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExecutionFailed, KindCondition, err)
	}

	branch := GetConfigString(req.Config, conditionConfigFalseBranch)
	if branch == "" {
		branch = defaultFalseBranch
	}
	if result {
		branch = GetConfigString(req.Config, conditionConfigTrueBranch)
		if branch == "" {
			branch = defaultTrueBranch
		}
	}

	return NewResponse(map[string]any{
		"result": result,
		"branch": branch,
	}), nil
}
