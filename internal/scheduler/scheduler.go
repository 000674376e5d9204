package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
)

// ErrNoPublish — планировщик создан без функции публикации запусков.
var ErrNoPublish = errors.New("scheduler requires a publish function")

// PublishFunc — доставка запроса на выполнение. В проде это публикация
// в очередь, в тестах — запись в память.
type PublishFunc func(ctx context.Context, req *domain.RunRequest) error

// Config — конфигурация Scheduler.
type Config struct {
	// Schedules — расписания (обычно из LoadSchedules).
	Schedules []domain.Schedule

	// Publish — доставка созданных RunRequest. Обязательна.
	Publish PublishFunc

	// Logger — структурный логгер.
	Logger *slog.Logger
}

// Scheduler — cron-планировщик запусков графов.
//
// Для каждого активного расписания регистрируется cron-задача; при
// срабатывании загружается граф, собирается RunRequest и публикуется
// через Publish. Ошибка одного расписания не трогает остальные.
type Scheduler struct {
	publish PublishFunc
	logger  *slog.Logger
	runner  *cron.Cron
}

// LoadSchedules читает расписания из JSON файла.
func LoadSchedules(path string) ([]domain.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedules file: %w", err)
	}

	var schedules []domain.Schedule
	if err := json.Unmarshal(data, &schedules); err != nil {
		return nil, fmt.Errorf("parse schedules file %s: %w", path, err)
	}
	return schedules, nil
}

// New создаёт Scheduler и регистрирует cron-задачи.
//
// Невалидное cron-выражение — ошибка создания: лучше упасть на старте,
// чем молча не запускать граф.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Publish == nil {
		return nil, ErrNoPublish
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		publish: cfg.Publish,
		logger:  logger,
		runner:  cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC)),
	}

	registered := 0
	for i := range cfg.Schedules {
		sched := cfg.Schedules[i]
		if !sched.IsActive {
			logger.Debug("schedule inactive, skipping", "schedule_id", sched.ID)
			continue
		}
		if err := ValidateCronExpr(sched.CronExpr); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", sched.ID, err)
		}

		if _, err := s.runner.AddFunc(sched.CronExpr, func() {
			s.fire(sched)
		}); err != nil {
			return nil, fmt.Errorf("schedule %s: register: %w", sched.ID, err)
		}
		registered++
	}

	logger.Info("scheduler configured",
		"schedules", len(cfg.Schedules),
		"active", registered,
	)
	return s, nil
}

// Start запускает cron-раннер.
func (s *Scheduler) Start() {
	s.runner.Start()
	s.logger.Info("scheduler started")
}

// Stop останавливает раннер и дожидается завершения запущенных задач.
func (s *Scheduler) Stop() {
	<-s.runner.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// fire обрабатывает срабатывание одного расписания.
func (s *Scheduler) fire(sched domain.Schedule) {
	logger := s.logger.With("schedule_id", sched.ID.String(), "graph_path", sched.GraphPath)

	graph, err := engine.LoadGraph(sched.GraphPath)
	if err != nil {
		logger.Error("failed to load graph for schedule", "error", err)
		return
	}

	req := &domain.RunRequest{
		RunID:     uuid.New(),
		Graph:     graph,
		Input:     sched.Input,
		CreatedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.publish(ctx, req); err != nil {
		logger.Error("failed to publish run request", "run_id", req.RunID, "error", err)
		return
	}
	logger.Info("run request published", "run_id", req.RunID)
}
