package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

const (
	// KindScriptJS — тип узла JavaScript скрипта.
	KindScriptJS = "script_js"
)

// Ключи конфигурации script_js узла.
const (
	jsConfigSource = "source"
)

// jsDeniedKeywords — подстроки, запрещённые в исходнике скрипта.
// VM создаётся без host-доступа; денилист — независимый второй барьер.
var jsDeniedKeywords = []string{
	"require",
	"import",
	"process",
	"eval(",
	"Function(",
	"constructor",
	"__proto__",
}

// JSScriptExecutor — узел выполнения JavaScript скрипта в песочнице.
//
// Каждый вызов получает свежую VM без доступа к хосту: ни файловой
// системы, ни сети, ни модулей. Bindings узла доступны как глобальные
// переменные, входные данные запуска — как input. Результат — значение
// последнего выражения скрипта.
//
// Конфигурация:
//
//	{"source": "input.a + input.b"}
//
// Отмена контекста прерывает выполнение через goja.Interrupt.
type JSScriptExecutor struct{}

// NewJSScriptExecutor создаёт JSScriptExecutor.
func NewJSScriptExecutor() *JSScriptExecutor {
	return &JSScriptExecutor{}
}

// Kind возвращает тип узла.
func (e *JSScriptExecutor) Kind() string { return KindScriptJS }

// Category возвращает категорию брокера.
func (e *JSScriptExecutor) Category() string { return CategoryScript }

// Execute выполняет JavaScript скрипт.
func (e *JSScriptExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	source := GetConfigString(req.Config, jsConfigSource)
	if source == "" {
		return nil, fmt.Errorf("%w: %s: source is required", ErrInvalidConfig, KindScriptJS)
	}

	for _, kw := range jsDeniedKeywords {
		if strings.Contains(source, kw) {
			return nil, fmt.Errorf("%w: %s: script contains denied keyword %q",
				ErrInvalidConfig, KindScriptJS, kw)
		}
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	for key, val := range req.Bindings {
		if err := vm.Set(key, val); err != nil {
			return nil, fmt.Errorf("%w: %s: bind %s: %v", ErrExecutionFailed, KindScriptJS, key, err)
		}
	}
	if err := vm.Set("input", req.RunInput); err != nil {
		return nil, fmt.Errorf("%w: %s: bind input: %v", ErrExecutionFailed, KindScriptJS, err)
	}

	// Прерываем VM при отмене контекста
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := vm.RunString(source)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrExecutionFailed, KindScriptJS, err)
	}

	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return NewResponse(nil), nil
	}
	return NewResponse(val.Export()), nil
}
