package toolrepo

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Ошибки разрешения инструментов.
var (
	// ErrToolNotFound — инструмент с таким ID не зарегистрирован.
	// Отсутствие инструмента — жёсткая ошибка, не тихий no-op.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolDeprecated — инструмент помечен как устаревший и не может
	// быть вызван.
	ErrToolDeprecated = errors.New("tool is deprecated")
)

// ToolDef — определение внешнего инструмента.
type ToolDef struct {
	// ID — идентификатор инструмента в реестре.
	ID string `json:"id"`

	// Description — описание назначения.
	Description string `json:"description,omitempty"`

	// Deprecated — устаревший инструмент. Вызов запрещён.
	Deprecated bool `json:"deprecated,omitempty"`
}

// Repository — внешний реестр инструментов.
//
// Движок обращается к нему по ID инструмента из конфигурации узла.
// Отсутствующий, неизвестный или устаревший ID — жёсткая ошибка до
// начала вызова.
type Repository interface {
	// Resolve возвращает определение инструмента по ID.
	Resolve(ctx context.Context, id string) (*ToolDef, error)

	// Call вызывает инструмент с аргументами и возвращает результат.
	Call(ctx context.Context, id string, args map[string]any) (any, error)
}

// Static — реестр инструментов в памяти.
// Используется в тестах и CLI.
type Static struct {
	mu       sync.RWMutex
	tools    map[string]*ToolDef
	handlers map[string]func(ctx context.Context, args map[string]any) (any, error)
}

// NewStatic создаёт пустой Static реестр.
func NewStatic() *Static {
	return &Static{
		tools:    make(map[string]*ToolDef),
		handlers: make(map[string]func(ctx context.Context, args map[string]any) (any, error)),
	}
}

// Register добавляет инструмент с обработчиком.
func (s *Static) Register(def *ToolDef, handler func(ctx context.Context, args map[string]any) (any, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[def.ID] = def
	s.handlers[def.ID] = handler
}

// Resolve реализует Repository.
func (s *Static) Resolve(_ context.Context, id string) (*ToolDef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.tools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
	if def.Deprecated {
		return nil, fmt.Errorf("%w: %s", ErrToolDeprecated, id)
	}
	return def, nil
}

// Call реализует Repository.
func (s *Static) Call(ctx context.Context, id string, args map[string]any) (any, error) {
	if _, err := s.Resolve(ctx, id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	handler := s.handlers[id]
	s.mu.RUnlock()

	if handler == nil {
		return nil, fmt.Errorf("%w: %s has no handler", ErrToolNotFound, id)
	}
	return handler(ctx, args)
}
