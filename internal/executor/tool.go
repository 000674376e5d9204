package executor

import (
	"context"
	"fmt"

	"github.com/shaiso/Nodeflow/internal/toolrepo"
)

const (
	// KindTool — тип узла вызова внешнего инструмента.
	KindTool = "tool"
)

// Ключи конфигурации tool узла.
const (
	toolConfigToolID = "tool_id"
	toolConfigArgs   = "args"
)

// ToolExecutor — узел вызова инструмента из внешнего реестра.
//
// Инструмент разрешается по tool_id до вызова; отсутствующий или
// устаревший инструмент — ошибка выполнения узла, не тихий пропуск.
//
// Конфигурация:
//
//	{
//	    "tool_id": "crm.lookup_customer",
//	    "args": {"email": "{fetch.body.email}"}
//	}
//
// Output:
//
//	{"tool_id": "...", "result": <ответ инструмента>}
type ToolExecutor struct {
	tools toolrepo.Repository
}

// NewToolExecutor создаёт ToolExecutor с реестром инструментов.
func NewToolExecutor(tools toolrepo.Repository) *ToolExecutor {
	return &ToolExecutor{tools: tools}
}

// Kind возвращает тип узла.
func (e *ToolExecutor) Kind() string { return KindTool }

// Category возвращает категорию брокера.
func (e *ToolExecutor) Category() string { return CategoryTool }

// Execute разрешает и вызывает инструмент.
func (e *ToolExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	toolID := GetConfigString(req.Config, toolConfigToolID)
	if toolID == "" {
		return nil, fmt.Errorf("%w: %s: tool_id is required", ErrInvalidConfig, KindTool)
	}
	if e.tools == nil {
		return nil, fmt.Errorf("%w: %s: tool repository is not configured", ErrExecutionFailed, KindTool)
	}

	if _, err := e.tools.Resolve(ctx, toolID); err != nil {
		return nil, fmt.Errorf("%w: %s: resolve %s: %v", ErrExecutionFailed, KindTool, toolID, err)
	}

	args := GetConfigMap(req.Config, toolConfigArgs)
	result, err := e.tools.Call(ctx, toolID, args)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: call %s: %v", ErrExecutionFailed, KindTool, toolID, err)
	}

	return NewResponse(map[string]any{
		"tool_id": toolID,
		"result":  result,
	}), nil
}
