package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического запуска графа.
type Schedule struct {
	// ID — уникальный идентификатор расписания.
	ID uuid.UUID `json:"id"`

	// GraphPath — путь к файлу графа (JSON).
	GraphPath string `json:"graph_path"`

	// CronExpr — cron-выражение (5 полей: минуты, часы, день, месяц, день недели).
	CronExpr string `json:"cron_expr"`

	// Input — входные данные для каждого запуска по этому расписанию.
	Input any `json:"input,omitempty"`

	// IsActive — неактивные расписания не запускаются.
	IsActive bool `json:"is_active"`

	// CreatedAt — время создания расписания.
	CreatedAt time.Time `json:"created_at"`
}
