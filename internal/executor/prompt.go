package executor

import (
	"context"
	"fmt"
	"strings"
)

const (
	// KindPrompt — тип узла сборки промпта.
	KindPrompt = "prompt"
)

// Ключи конфигурации prompt узла.
const (
	promptConfigTemplate = "template"
	promptConfigSystem   = "system"
)

// PromptExecutor — узел сборки текста промпта для model узлов.
//
// Плейсхолдеры {путь.к.полю} в template подставляются движком перед
// диспетчеризацией, здесь собирается итоговый текст.
//
// Конфигурация:
//
//	{
//	    "template": "Summarize: {fetch.body.text}",
//	    "system": "You are a concise assistant."
//	}
//
// Output:
//
//	{"prompt": "...", "system": "..."}
type PromptExecutor struct{}

// NewPromptExecutor создаёт PromptExecutor.
func NewPromptExecutor() *PromptExecutor {
	return &PromptExecutor{}
}

// Kind возвращает тип узла.
func (e *PromptExecutor) Kind() string { return KindPrompt }

// Category возвращает категорию брокера.
func (e *PromptExecutor) Category() string { return CategoryNone }

// Execute собирает промпт.
func (e *PromptExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	default:
	}

	template := GetConfigString(req.Config, promptConfigTemplate)
	if template == "" {
		return nil, fmt.Errorf("%w: %s: template is required", ErrInvalidConfig, KindPrompt)
	}

	out := map[string]any{
		"prompt": strings.TrimSpace(template),
	}
	if system := GetConfigString(req.Config, promptConfigSystem); system != "" {
		out["system"] = strings.TrimSpace(system)
	}
	return NewResponse(out), nil
}
