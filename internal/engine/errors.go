package engine

import "errors"

// Ошибки структуры графа. Возникают до выполнения первого узла.
var (
	// ErrEmptyGraph — граф не содержит узлов.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNode — ребро ссылается на несуществующий узел.
	ErrUnknownNode = errors.New("edge references unknown node")

	// ErrCyclicGraph — обнаружен цикл. Граф приходит провалидированным,
	// но цикл сделал бы выполнение невозможным, поэтому проверяется.
	ErrCyclicGraph = errors.New("graph contains a cycle")

	// ErrNilRegistry — движок создан без реестра executor'ов.
	ErrNilRegistry = errors.New("executor registry is required")

	// ErrNilGraph — запрос на выполнение без графа.
	ErrNilGraph = errors.New("run request has no graph")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrUnresolvedPath — путь плейсхолдера не разрешился в значение.
	// Неразрешимый путь — всегда ошибка, никогда пустая строка.
	ErrUnresolvedPath = errors.New("template path cannot be resolved")
)

// Ошибки выполнения.
var (
	// ErrRunCancelled — выполнение отменено до завершения.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrIterationCap — итерация коллекции превысила настроенный максимум.
	ErrIterationCap = errors.New("collection iteration cap exceeded")
)

// NodeError — ошибка выполнения с контекстом узла.
//
// Каждая ошибка выполнения атрибутируется конкретному узлу: его ID и
// тип включаются в сообщение, базовая причина доступна через Unwrap.
type NodeError struct {
	// NodeID — идентификатор узла.
	NodeID string

	// NodeKind — тип узла.
	NodeKind string

	// Err — базовая ошибка.
	Err error
}

// Error реализует интерфейс error.
func (e *NodeError) Error() string {
	return "node " + e.NodeID + " (" + e.NodeKind + "): " + e.Err.Error()
}

// Unwrap возвращает базовую ошибку.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// NewNodeError создаёт NodeError.
func NewNodeError(nodeID, nodeKind string, err error) *NodeError {
	return &NodeError{NodeID: nodeID, NodeKind: nodeKind, Err: err}
}
