package executor

import (
	"context"
	"fmt"

	"github.com/shaiso/Nodeflow/internal/expr"
)

const (
	// KindCollection — тип узла обработки коллекций.
	KindCollection = "collection"

	// defaultMaxIterations — предел числа элементов по умолчанию.
	defaultMaxIterations = 1000

	// itemBinding — имя элемента в выражениях map/filter.
	itemBinding = "item"
)

// Ключи конфигурации collection узла.
const (
	collectionConfigOperation     = "operation"
	collectionConfigSource        = "source"
	collectionConfigRangeStart    = "start"
	collectionConfigRangeEnd      = "end"
	collectionConfigRangeStep     = "step"
	collectionConfigChild         = "child"
	collectionConfigElementVar    = "element_var"
	collectionConfigExpression    = "expression"
	collectionConfigPredicate     = "predicate"
	collectionConfigMaxIterations = "max_iterations"
)

// Операции collection узла.
const (
	collectionOpIterate = "iterate"
	collectionOpMap     = "map"
	collectionOpFilter  = "filter"
)

// CollectionExecutor — узел пообъектной обработки коллекций.
//
// Операции:
//
//	iterate — выполняет дочерний подграф child для каждого элемента,
//	          элемент привязан под именем element_var; результат —
//	          упорядоченный список выходов подграфа
//	map     — вычисляет expression для каждого элемента; результат —
//	          список той же длины
//	filter  — вычисляет булев predicate; не прошедшие элементы
//	          отбрасываются, порядок сохраняется
//
// Источник коллекции: путь source в bindings либо генерируемый
// диапазон start/end/step. Число элементов ограничено max_iterations;
// превышение — ошибка, не тихое усечение. Пустая коллекция — пустой
// список без единого вызова подграфа.
type CollectionExecutor struct{}

// NewCollectionExecutor создаёт CollectionExecutor.
func NewCollectionExecutor() *CollectionExecutor {
	return &CollectionExecutor{}
}

// Kind возвращает тип узла.
func (e *CollectionExecutor) Kind() string { return KindCollection }

// Category возвращает категорию брокера.
func (e *CollectionExecutor) Category() string { return CategoryNone }

// Execute выполняет операцию над коллекцией.
func (e *CollectionExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	operation := GetConfigString(req.Config, collectionConfigOperation)
	if operation == "" {
		return nil, fmt.Errorf("%w: %s: operation is required", ErrInvalidConfig, KindCollection)
	}

	elements, err := e.resolveElements(req)
	if err != nil {
		return nil, err
	}

	maxIter := GetConfigInt(req.Config, collectionConfigMaxIterations)
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	if len(elements) > maxIter {
		return nil, fmt.Errorf("%w: %s: %d elements exceeds limit %d",
			ErrIterationCap, KindCollection, len(elements), maxIter)
	}

	switch operation {
	case collectionOpIterate:
		return e.iterate(ctx, req, elements)
	case collectionOpMap:
		return e.mapElements(ctx, req, elements)
	case collectionOpFilter:
		return e.filterElements(ctx, req, elements)
	default:
		return nil, fmt.Errorf("%w: %s: unknown operation %q", ErrInvalidConfig, KindCollection, operation)
	}
}

// resolveElements получает коллекцию: путь source либо диапазон.
func (e *CollectionExecutor) resolveElements(req *Request) ([]any, error) {
	source := GetConfigString(req.Config, collectionConfigSource)
	if source != "" {
		val, ok := lookupPath(req.Bindings, source)
		if !ok {
			return nil, fmt.Errorf("%w: %s: source path %q not found", ErrExecutionFailed, KindCollection, source)
		}
		list, ok := val.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s: source %q is not a list", ErrExecutionFailed, KindCollection, source)
		}
		return list, nil
	}

	// Генерируемый диапазон [start, end) с шагом step
	_, hasStart := req.Config[collectionConfigRangeStart]
	_, hasEnd := req.Config[collectionConfigRangeEnd]
	if !hasStart || !hasEnd {
		return nil, fmt.Errorf("%w: %s: source or start/end is required", ErrInvalidConfig, KindCollection)
	}
	start := GetConfigInt(req.Config, collectionConfigRangeStart)
	end := GetConfigInt(req.Config, collectionConfigRangeEnd)
	step := GetConfigInt(req.Config, collectionConfigRangeStep)
	if step == 0 {
		step = 1
	}
	if step < 0 {
		return nil, fmt.Errorf("%w: %s: step must be positive", ErrInvalidConfig, KindCollection)
	}

	var elements []any
	for i := start; i < end; i += step {
		elements = append(elements, i)
	}
	return elements, nil
}

// iterate выполняет дочерний подграф для каждого элемента.
func (e *CollectionExecutor) iterate(ctx context.Context, req *Request, elements []any) (*Response, error) {
	child := GetConfigString(req.Config, collectionConfigChild)
	if child == "" {
		return nil, fmt.Errorf("%w: %s: child is required for iterate", ErrInvalidConfig, KindCollection)
	}
	if req.Subgraph == nil {
		return nil, fmt.Errorf("%w: %s: no subgraph runner available", ErrExecutionFailed, KindCollection)
	}

	elementVar := GetConfigString(req.Config, collectionConfigElementVar)
	if elementVar == "" {
		elementVar = itemBinding
	}

	results := make([]any, 0, len(elements))
	for i, element := range elements {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		default:
		}

		out, err := req.Subgraph.RunSubgraph(ctx, child, elementVar, element)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: element %d: %v", ErrExecutionFailed, KindCollection, i, err)
		}
		results = append(results, out)
	}
	return NewResponse(results), nil
}

// mapElements вычисляет выражение для каждого элемента.
func (e *CollectionExecutor) mapElements(ctx context.Context, req *Request, elements []any) (*Response, error) {
	expression := GetConfigString(req.Config, collectionConfigExpression)
	if expression == "" {
		return nil, fmt.Errorf("%w: %s: expression is required for map", ErrInvalidConfig, KindCollection)
	}

	results := make([]any, 0, len(elements))
	for i, element := range elements {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		default:
		}

		val, err := expr.Evaluate(expression, elementBindings(element))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: element %d: %v", ErrExecutionFailed, KindCollection, i, err)
		}
		results = append(results, val)
	}
	return NewResponse(results), nil
}

// filterElements отбирает элементы по булеву предикату.
func (e *CollectionExecutor) filterElements(ctx context.Context, req *Request, elements []any) (*Response, error) {
	predicate := GetConfigString(req.Config, collectionConfigPredicate)
	if predicate == "" {
		return nil, fmt.Errorf("%w: %s: predicate is required for filter", ErrInvalidConfig, KindCollection)
	}

	results := make([]any, 0, len(elements))
	for i, element := range elements {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		default:
		}

		keep, err := expr.EvaluateBool(predicate, elementBindings(element))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: element %d: %v", ErrExecutionFailed, KindCollection, i, err)
		}
		if keep {
			results = append(results, element)
		}
	}
	return NewResponse(results), nil
}

// elementBindings строит bindings для выражений map/filter: элемент
// под именем item, поля объекта — верхнеуровневыми переменными.
func elementBindings(element any) map[string]any {
	bindings := map[string]any{itemBinding: element}
	if obj, ok := element.(map[string]any); ok {
		for key, val := range obj {
			if key == itemBinding {
				continue
			}
			bindings[key] = val
		}
	}
	return bindings
}
