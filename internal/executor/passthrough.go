package executor

import (
	"context"
)

// Типы сквозных узлов.
const (
	KindStart = "start"
	KindEnd   = "end"
)

// StartExecutor — входной узел графа.
// Пробрасывает исходные входные данные run дальше.
type StartExecutor struct{}

// NewStartExecutor создаёт StartExecutor.
func NewStartExecutor() *StartExecutor {
	return &StartExecutor{}
}

// Kind возвращает тип узла.
func (e *StartExecutor) Kind() string { return KindStart }

// Category возвращает категорию брокера.
func (e *StartExecutor) Category() string { return CategoryNone }

// Execute пробрасывает входные данные run.
func (e *StartExecutor) Execute(_ context.Context, req *Request) (*Response, error) {
	return NewResponse(req.RunInput), nil
}

// EndExecutor — завершающий узел графа.
// Пробрасывает output предшественника как итог run.
type EndExecutor struct{}

// NewEndExecutor создаёт EndExecutor.
func NewEndExecutor() *EndExecutor {
	return &EndExecutor{}
}

// Kind возвращает тип узла.
func (e *EndExecutor) Kind() string { return KindEnd }

// Category возвращает категорию брокера.
func (e *EndExecutor) Category() string { return CategoryNone }

// Execute пробрасывает output предшественника.
func (e *EndExecutor) Execute(_ context.Context, req *Request) (*Response, error) {
	return NewResponse(req.Primary), nil
}
