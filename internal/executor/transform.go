package executor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// KindTransform — тип узла трансформации данных.
	KindTransform = "transform"
)

// Ключи конфигурации transform узла.
const (
	transformConfigOp       = "op"
	transformConfigMappings = "mappings"
	transformConfigSource   = "source"
	transformConfigTo       = "to"
	transformConfigFields   = "fields"
	transformConfigFn       = "fn"
	transformConfigField    = "field"
)

// Операции transform узла.
const (
	transformOpMapFields = "map_fields"
	transformOpPick      = "pick"
	transformOpCoerce    = "coerce"
	transformOpFields    = "fields"
	transformOpAggregate = "aggregate"
)

// TransformExecutor — узел преобразования данных.
//
// Операции (config.op, по умолчанию map_fields):
//
//	map_fields — строит объект по mappings {ключ: "путь.к.полю"}
//	pick       — извлекает значение по пути source
//	coerce     — приводит значение source к типу to (string|int|float|bool)
//	fields     — оставляет только перечисленные поля объекта
//	             (или каждого объекта списка)
//	aggregate  — count|sum|avg|min|max по списку source,
//	             для списков объектов — по полю field
//
// Пути разрешаются относительно bindings узла: выходы предыдущих
// узлов по их id и входные данные запуска под ключом input.
type TransformExecutor struct{}

// NewTransformExecutor создаёт TransformExecutor.
func NewTransformExecutor() *TransformExecutor {
	return &TransformExecutor{}
}

// Kind возвращает тип узла.
func (e *TransformExecutor) Kind() string { return KindTransform }

// Category возвращает категорию брокера.
func (e *TransformExecutor) Category() string { return CategoryNone }

// Execute выполняет трансформацию.
func (e *TransformExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	default:
	}

	op := GetConfigString(req.Config, transformConfigOp)
	if op == "" {
		op = transformOpMapFields
	}

	switch op {
	case transformOpMapFields:
		return e.mapFields(req)
	case transformOpPick:
		return e.pick(req)
	case transformOpCoerce:
		return e.coerce(req)
	case transformOpFields:
		return e.keepFields(req)
	case transformOpAggregate:
		return e.aggregate(req)
	default:
		return nil, fmt.Errorf("%w: %s: unknown op %q", ErrInvalidConfig, KindTransform, op)
	}
}

// mapFields строит объект из mappings {ключ: путь}.
func (e *TransformExecutor) mapFields(req *Request) (*Response, error) {
	mappings := GetConfigMapString(req.Config, transformConfigMappings)
	if len(mappings) == 0 {
		return nil, fmt.Errorf("%w: %s: mappings is required", ErrInvalidConfig, KindTransform)
	}

	out := make(map[string]any, len(mappings))
	for key, path := range mappings {
		val, ok := lookupPath(req.Bindings, path)
		if !ok {
			return nil, fmt.Errorf("%w: %s: path %q not found", ErrExecutionFailed, KindTransform, path)
		}
		out[key] = val
	}
	return NewResponse(out), nil
}

// pick извлекает одно значение по пути source.
func (e *TransformExecutor) pick(req *Request) (*Response, error) {
	source := GetConfigString(req.Config, transformConfigSource)
	if source == "" {
		return nil, fmt.Errorf("%w: %s: source is required", ErrInvalidConfig, KindTransform)
	}
	val, ok := lookupPath(req.Bindings, source)
	if !ok {
		return nil, fmt.Errorf("%w: %s: path %q not found", ErrExecutionFailed, KindTransform, source)
	}
	return NewResponse(val), nil
}

// coerce приводит значение к заданному типу.
func (e *TransformExecutor) coerce(req *Request) (*Response, error) {
	source := GetConfigString(req.Config, transformConfigSource)
	to := GetConfigString(req.Config, transformConfigTo)
	if source == "" || to == "" {
		return nil, fmt.Errorf("%w: %s: source and to are required", ErrInvalidConfig, KindTransform)
	}
	val, ok := lookupPath(req.Bindings, source)
	if !ok {
		return nil, fmt.Errorf("%w: %s: path %q not found", ErrExecutionFailed, KindTransform, source)
	}

	coerced, err := coerceValue(val, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExecutionFailed, KindTransform, err)
	}
	return NewResponse(coerced), nil
}

// keepFields оставляет только указанные поля объекта или элементов списка.
func (e *TransformExecutor) keepFields(req *Request) (*Response, error) {
	source := GetConfigString(req.Config, transformConfigSource)
	fields := GetConfigSlice(req.Config, transformConfigFields)
	if source == "" || len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s: source and fields are required", ErrInvalidConfig, KindTransform)
	}

	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		if name, ok := f.(string); ok {
			keep[name] = true
		}
	}

	val, ok := lookupPath(req.Bindings, source)
	if !ok {
		return nil, fmt.Errorf("%w: %s: path %q not found", ErrExecutionFailed, KindTransform, source)
	}

	switch v := val.(type) {
	case map[string]any:
		return NewResponse(pickKeys(v, keep)), nil
	case []any:
		out := make([]any, 0, len(v))
		for _, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s: list element is not an object", ErrExecutionFailed, KindTransform)
			}
			out = append(out, pickKeys(obj, keep))
		}
		return NewResponse(out), nil
	default:
		return nil, fmt.Errorf("%w: %s: source %q is not an object or list", ErrExecutionFailed, KindTransform, source)
	}
}

// aggregate вычисляет агрегат по списку.
func (e *TransformExecutor) aggregate(req *Request) (*Response, error) {
	source := GetConfigString(req.Config, transformConfigSource)
	fn := GetConfigString(req.Config, transformConfigFn)
	field := GetConfigString(req.Config, transformConfigField)
	if source == "" || fn == "" {
		return nil, fmt.Errorf("%w: %s: source and fn are required", ErrInvalidConfig, KindTransform)
	}

	val, ok := lookupPath(req.Bindings, source)
	if !ok {
		return nil, fmt.Errorf("%w: %s: path %q not found", ErrExecutionFailed, KindTransform, source)
	}
	list, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: source %q is not a list", ErrExecutionFailed, KindTransform, source)
	}

	if fn == "count" {
		return NewResponse(len(list)), nil
	}

	nums := make([]float64, 0, len(list))
	for i, elem := range list {
		target := elem
		if field != "" {
			obj, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s: element %d is not an object", ErrExecutionFailed, KindTransform, i)
			}
			target, ok = obj[field]
			if !ok {
				return nil, fmt.Errorf("%w: %s: element %d has no field %q", ErrExecutionFailed, KindTransform, i, field)
			}
		}
		n, ok := toFloat(target)
		if !ok {
			return nil, fmt.Errorf("%w: %s: element %d is not numeric", ErrExecutionFailed, KindTransform, i)
		}
		nums = append(nums, n)
	}

	if len(nums) == 0 {
		return nil, fmt.Errorf("%w: %s: %s over empty list", ErrExecutionFailed, KindTransform, fn)
	}

	switch fn {
	case "sum":
		return NewResponse(sumFloats(nums)), nil
	case "avg":
		return NewResponse(sumFloats(nums) / float64(len(nums))), nil
	case "min":
		sort.Float64s(nums)
		return NewResponse(nums[0]), nil
	case "max":
		sort.Float64s(nums)
		return NewResponse(nums[len(nums)-1]), nil
	default:
		return nil, fmt.Errorf("%w: %s: unknown fn %q", ErrInvalidConfig, KindTransform, fn)
	}
}

// lookupPath разрешает dotted-path относительно bindings.
// Сегменты-числа индексируют списки.
func lookupPath(bindings map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var current any = bindings
	for _, seg := range segments {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func pickKeys(obj map[string]any, keep map[string]bool) map[string]any {
	out := make(map[string]any, len(keep))
	for key, val := range obj {
		if keep[key] {
			out[key] = val
		}
	}
	return out
}

func coerceValue(val any, to string) (any, error) {
	switch to {
	case "string":
		return fmt.Sprintf("%v", val), nil
	case "int":
		if f, ok := toFloat(val); ok {
			return int(f), nil
		}
		if s, ok := val.(string); ok {
			i, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("coerce %q to int: %v", s, err)
			}
			return i, nil
		}
		return nil, fmt.Errorf("cannot coerce %T to int", val)
	case "float":
		if f, ok := toFloat(val); ok {
			return f, nil
		}
		if s, ok := val.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("coerce %q to float: %v", s, err)
			}
			return f, nil
		}
		return nil, fmt.Errorf("cannot coerce %T to float", val)
	case "bool":
		switch v := val.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("coerce %q to bool: %v", v, err)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("cannot coerce %T to bool", val)
		}
	default:
		return nil, fmt.Errorf("unknown target type %q", to)
	}
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func sumFloats(nums []float64) float64 {
	var total float64
	for _, n := range nums {
		total += n
	}
	return total
}
