package executor

import (
	"context"
	"errors"
	"time"
)

// Ошибки executor'ов.
var (
	// ErrExecutorNotFound — тип узла не найден в реестре.
	ErrExecutorNotFound = errors.New("executor not found for node kind")

	// ErrInvalidConfig — невалидная конфигурация узла.
	// Конфигурация перепроверяется при диспетчеризации, даже если
	// upstream-валидация уже должна была её отклонить.
	ErrInvalidConfig = errors.New("invalid node config")

	// ErrExecutionFailed — ошибка времени выполнения узла.
	ErrExecutionFailed = errors.New("node execution failed")

	// ErrCancelled — выполнение узла отменено.
	ErrCancelled = errors.New("node execution cancelled")

	// ErrIterationCap — коллекция превысила предел числа элементов.
	ErrIterationCap = errors.New("collection iteration limit exceeded")
)

// Категории брокера для executor'ов, работающих с внешними ресурсами.
// Пустая категория означает, что admission control не нужен.
const (
	CategoryNone   = ""
	CategoryHTTP   = "http"
	CategoryStore  = "store"
	CategoryFile   = "file"
	CategoryNotify = "notify"
	CategoryModel  = "model"
	CategoryTool   = "tool"
	CategoryScript = "script"
)

// Executor — интерфейс выполнения узла одного типа.
//
// Executor'ы stateless: всё состояние приходит в Request, все внешние
// эффекты изолированы в Execute. Каждый executor сам валидирует свою
// конфигурацию и возвращает ErrInvalidConfig до каких-либо внешних
// вызовов.
type Executor interface {
	// Kind возвращает тип узла.
	Kind() string

	// Category возвращает категорию брокера для admission control.
	// CategoryNone — executor не трогает внешние ресурсы.
	Category() string

	// Execute выполняет узел и возвращает результат.
	// Должен проверять ctx.Done() на длинных операциях.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// SubgraphRunner выполняет дочерний подграф collection-узла для одного
// элемента коллекции. Реализуется движком и внедряется в Request при
// диспетчеризации collection-узлов.
type SubgraphRunner interface {
	RunSubgraph(ctx context.Context, entryID, elementVar string, element any) (any, error)
}

// Request — входные данные для выполнения узла.
type Request struct {
	// NodeID — идентификатор узла.
	NodeID string

	// NodeKind — тип узла.
	NodeKind string

	// Config — конфигурация узла, уже отрендеренная движком.
	Config map[string]any

	// Inputs — outputs объявленных входных узлов (node_id → output).
	Inputs map[string]any

	// Primary — output непосредственного предшественника
	// (источника первого взятого входящего ребра).
	Primary any

	// RunInput — исходные входные данные run.
	RunInput any

	// Bindings — контекст для выражений: outputs завершившихся узлов
	// по их ID плюс зарезервированный ключ "input".
	Bindings map[string]any

	// Subgraph — исполнитель дочернего подграфа.
	// Заполняется движком только для collection-узлов.
	Subgraph SubgraphRunner

	// Timeout — таймаут выполнения узла. 0 — таймаут по умолчанию.
	Timeout time.Duration
}

// Response — результат выполнения узла.
type Response struct {
	// Output — выходные данные узла. Доступны downstream-узлам в
	// шаблонах и выражениях по ID этого узла.
	Output any
}

// NewResponse создаёт Response с output.
func NewResponse(output any) *Response {
	return &Response{Output: output}
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из конфига.
func GetConfigInt(config map[string]any, key string) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetConfigBool извлекает булево значение из конфига.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetConfigMap извлекает map из конфига.
func GetConfigMap(config map[string]any, key string) map[string]any {
	if v, ok := config[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetConfigSlice извлекает слайс из конфига.
func GetConfigSlice(config map[string]any, key string) []any {
	if v, ok := config[key]; ok {
		if s, ok := v.([]any); ok {
			return s
		}
	}
	return nil
}

// GetConfigMapString извлекает map[string]string из конфига.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}
