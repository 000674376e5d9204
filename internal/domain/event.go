package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события выполнения.
type EventType string

const (
	// EventNodeStart — узел начал выполняться.
	EventNodeStart EventType = "start"

	// EventNodeSucceeded — узел успешно завершён.
	EventNodeSucceeded EventType = "succeeded"

	// EventNodeFailed — узел завершился с ошибкой.
	EventNodeFailed EventType = "failed"

	// EventNodeSkipped — узел пропущен.
	EventNodeSkipped EventType = "skipped"
)

// RunEvent — событие выполнения узла, эмитируемое движком.
//
// События уходят во внешний sink (стриминг, персистентность) в том же
// порядке, в котором узлы выполнялись. Движок предполагает только
// упорядоченный append-only приёмник, не конкретный транспорт.
type RunEvent struct {
	// RunID — идентификатор run.
	RunID uuid.UUID `json:"run_id"`

	// Seq — порядковый номер события в рамках run (с нуля).
	Seq int `json:"seq"`

	// Event — тип события.
	Event EventType `json:"event"`

	// NodeID — идентификатор узла.
	NodeID string `json:"node_id"`

	// NodeKind — тип узла.
	NodeKind string `json:"node_kind"`

	// Output — выходные данные узла (для succeeded).
	Output any `json:"output,omitempty"`

	// Error — текст ошибки (для failed).
	Error string `json:"error,omitempty"`

	// SkipReason — причина пропуска (для skipped).
	SkipReason SkipReason `json:"skip_reason,omitempty"`

	// EvaluatedConditions — вычисленные условия входящих рёбер (для skipped).
	EvaluatedConditions map[string]bool `json:"evaluated_conditions,omitempty"`

	// Timestamp — время события.
	Timestamp time.Time `json:"timestamp"`
}
