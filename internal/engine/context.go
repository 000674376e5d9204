package engine

import (
	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// ExecutionContext — состояние одного run.
//
// Контекст принадлежит исключительно координирующей горутине run:
// конкурентный доступ к нему не предусмотрен и не нужен. Output узла
// вычисляется не более одного раза и после записи в кэш неизменяем.
type ExecutionContext struct {
	// RunID — идентификатор запуска.
	RunID uuid.UUID

	// Input — исходные входные данные run.
	Input any

	// outputs — кэш выходных данных по ID узла.
	outputs map[string]any

	// outcomes — результаты узлов по ID.
	outcomes map[string]*domain.NodeOutcome
}

// NewExecutionContext создаёт контекст для run.
func NewExecutionContext(runID uuid.UUID, input any) *ExecutionContext {
	return &ExecutionContext{
		RunID:    runID,
		Input:    input,
		outputs:  make(map[string]any),
		outcomes: make(map[string]*domain.NodeOutcome),
	}
}

// SetOutcome записывает результат узла. Output успешного узла
// попадает в кэш выходных данных.
func (c *ExecutionContext) SetOutcome(outcome *domain.NodeOutcome) {
	c.outcomes[outcome.NodeID] = outcome
	if outcome.Status == domain.NodeStatusSucceeded {
		c.outputs[outcome.NodeID] = outcome.Output
	}
}

// Outcome возвращает результат узла или nil.
func (c *ExecutionContext) Outcome(nodeID string) *domain.NodeOutcome {
	return c.outcomes[nodeID]
}

// Output возвращает закэшированный output узла.
func (c *ExecutionContext) Output(nodeID string) (any, bool) {
	v, ok := c.outputs[nodeID]
	return v, ok
}

// Outcomes возвращает карту результатов (для RunResult).
func (c *ExecutionContext) Outcomes() map[string]*domain.NodeOutcome {
	return c.outcomes
}

// Bindings собирает bindings для шаблонов и выражений: outputs всех
// завершившихся узлов по их ID плюс зарезервированный ключ "input".
func (c *ExecutionContext) Bindings() map[string]any {
	bindings := make(map[string]any, len(c.outputs)+1)
	for nodeID, output := range c.outputs {
		bindings[nodeID] = output
	}
	bindings[InputBindingKey] = c.Input
	return bindings
}

// Fork создаёт дочерний контекст для выполнения подграфа итерации:
// копия кэша outputs родителя плюс элемент коллекции под именем
// переменной итерации.
func (c *ExecutionContext) Fork(elementVar string, element any) *ExecutionContext {
	child := NewExecutionContext(c.RunID, c.Input)
	for nodeID, output := range c.outputs {
		child.outputs[nodeID] = output
	}
	child.outputs[elementVar] = element
	return child
}
