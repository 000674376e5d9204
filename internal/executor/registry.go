package executor

import (
	"fmt"
	"sort"

	"github.com/shaiso/Nodeflow/internal/toolrepo"
)

// Registry — реестр executor'ов по типу узла.
//
// Реестр собирается явно при старте процесса и внедряется в движок.
// После сборки он только читается, поэтому блокировок не требует.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Deps — зависимости стандартных executor'ов.
type Deps struct {
	// Tools — внешний реестр инструментов (для узлов kind=tool).
	Tools toolrepo.Repository

	// FileRoot — корневая директория файловых операций.
	FileRoot string

	// ModelAPIKey — ключ API модельного провайдера.
	ModelAPIKey string

	// ModelBaseURL — переопределение базового URL провайдера (опционально).
	ModelBaseURL string

	// SMTPAddr — адрес SMTP-сервера для email-уведомлений (host:port).
	SMTPAddr string

	// SMTPFrom — адрес отправителя email-уведомлений.
	SMTPFrom string
}

// NewDefaultRegistry создаёт реестр со всеми стандартными executor'ами.
func NewDefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()

	r.Register(NewStartExecutor())
	r.Register(NewEndExecutor())
	r.Register(NewHTTPExecutor())
	r.Register(NewTransformExecutor())
	r.Register(NewConditionExecutor())
	r.Register(NewCollectionExecutor())
	r.Register(NewLuaScriptExecutor())
	r.Register(NewJSScriptExecutor())
	r.Register(NewStoreExecutor())
	r.Register(NewFileExecutor(deps.FileRoot))
	r.Register(NewNotifyExecutor(deps.SMTPAddr, deps.SMTPFrom))
	r.Register(NewPromptExecutor())
	r.Register(NewModelExecutor(deps.ModelAPIKey, deps.ModelBaseURL))
	r.Register(NewToolExecutor(deps.Tools))

	return r
}

// Register добавляет executor в реестр.
// Повторная регистрация типа перезаписывает предыдущую.
func (r *Registry) Register(e Executor) {
	r.executors[e.Kind()] = e
}

// Get возвращает executor для типа узла.
// Возвращает ErrExecutorNotFound, если тип не зарегистрирован.
func (r *Registry) Get(kind string) (Executor, error) {
	e, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutorNotFound, kind)
	}
	return e, nil
}

// Has проверяет, зарегистрирован ли тип узла.
func (r *Registry) Has(kind string) bool {
	_, ok := r.executors[kind]
	return ok
}

// Kinds возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
