package domain

import "time"

// NodeStatus — статус выполнения узла.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	        ↘ SKIPPED (узел не стал выполнимым)
type NodeStatus string

const (
	// NodeStatusPending — узел ожидает выполнения.
	NodeStatusPending NodeStatus = "PENDING"

	// NodeStatusRunning — узел выполняется.
	NodeStatusRunning NodeStatus = "RUNNING"

	// NodeStatusSucceeded — узел успешно завершён.
	NodeStatusSucceeded NodeStatus = "SUCCEEDED"

	// NodeStatusFailed — узел завершился с ошибкой.
	NodeStatusFailed NodeStatus = "FAILED"

	// NodeStatusSkipped — узел пропущен и выполняться не будет.
	NodeStatusSkipped NodeStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusSucceeded, NodeStatusFailed, NodeStatusSkipped:
		return true
	default:
		return false
	}
}

// SkipReason — причина пропуска узла.
//
// Пропуск по условию и пропуск из-за упавшего предка — разные события,
// и они отражаются в outcome по-разному.
type SkipReason string

const (
	// SkipReasonConditionFalse — все условия входящих рёбер вычислились в false.
	SkipReasonConditionFalse SkipReason = "CONDITION_FALSE"

	// SkipReasonUpstreamFailed — единственный путь к узлу проходит
	// через упавший узел.
	SkipReasonUpstreamFailed SkipReason = "UPSTREAM_FAILED"

	// SkipReasonUpstreamSkipped — все предки узла были пропущены.
	SkipReasonUpstreamSkipped SkipReason = "UPSTREAM_SKIPPED"
)

// NodeOutcome — результат выполнения одного узла в рамках run.
type NodeOutcome struct {
	// NodeID — идентификатор узла.
	NodeID string `json:"node_id"`

	// NodeKind — тип узла.
	NodeKind string `json:"node_kind"`

	// Status — статус выполнения.
	Status NodeStatus `json:"status"`

	// Output — выходные данные узла. Nil для пропущенных и упавших узлов.
	Output any `json:"output,omitempty"`

	// Error — текст ошибки, если узел упал.
	Error string `json:"error,omitempty"`

	// SkipReason — причина пропуска (только для SKIPPED).
	SkipReason SkipReason `json:"skip_reason,omitempty"`

	// EvaluatedConditions — вычисленные условия входящих рёбер
	// (условие → результат). Заполняется для пропущенных узлов,
	// чтобы пропуск был объясним.
	EvaluatedConditions map[string]bool `json:"evaluated_conditions,omitempty"`

	// StartedAt — время начала выполнения. Nil для пропущенных узлов.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration возвращает продолжительность выполнения узла.
// Возвращает 0, если узел не выполнялся или ещё не завершён.
func (o *NodeOutcome) Duration() time.Duration {
	if o.StartedAt == nil || o.FinishedAt == nil {
		return 0
	}
	return o.FinishedAt.Sub(*o.StartedAt)
}

// MarkRunning переводит outcome в статус RUNNING.
func (o *NodeOutcome) MarkRunning() {
	now := time.Now()
	o.Status = NodeStatusRunning
	o.StartedAt = &now
}

// MarkSucceeded переводит outcome в статус SUCCEEDED с выходными данными.
func (o *NodeOutcome) MarkSucceeded(output any) {
	now := time.Now()
	o.Status = NodeStatusSucceeded
	o.Output = output
	o.FinishedAt = &now
}

// MarkFailed переводит outcome в статус FAILED с текстом ошибки.
func (o *NodeOutcome) MarkFailed(err error) {
	now := time.Now()
	o.Status = NodeStatusFailed
	if err != nil {
		o.Error = err.Error()
	}
	o.FinishedAt = &now
}

// MarkSkipped переводит outcome в статус SKIPPED с причиной.
func (o *NodeOutcome) MarkSkipped(reason SkipReason, conditions map[string]bool) {
	now := time.Now()
	o.Status = NodeStatusSkipped
	o.SkipReason = reason
	o.EvaluatedConditions = conditions
	o.FinishedAt = &now
}
