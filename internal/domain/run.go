package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunRequest — запрос на выполнение графа.
//
// Запрос создаётся когда:
// - Пользователь запускает граф вручную (CLI)
// - Scheduler создаёт запуск по расписанию
// - Внешний сервис публикует запрос в очередь
type RunRequest struct {
	// RunID — уникальный идентификатор запуска.
	RunID uuid.UUID `json:"run_id"`

	// Graph — граф для выполнения.
	Graph *Graph `json:"graph"`

	// Input — входные данные запуска.
	// Доступны узлам через зарезервированный ключ шаблонов "input".
	Input any `json:"input,omitempty"`

	// CreatedAt — время создания запроса.
	CreatedAt time.Time `json:"created_at"`
}

// RunStatus — итоговый статус запуска.
type RunStatus string

const (
	// RunStatusSucceeded — все выполнимые узлы завершились успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — хотя бы один узел упал.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusCancelled — запуск отменён.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// RunResult — итог выполнения графа.
type RunResult struct {
	// RunID — идентификатор запуска.
	RunID uuid.UUID `json:"run_id"`

	// Status — итоговый статус.
	Status RunStatus `json:"status"`

	// Outcomes — результаты узлов (node_id → outcome).
	Outcomes map[string]*NodeOutcome `json:"outcomes"`

	// StartedAt — время начала выполнения.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения.
	FinishedAt time.Time `json:"finished_at"`
}

// Duration возвращает продолжительность запуска.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
