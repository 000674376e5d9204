package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
)

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/5 * * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("invalid expression accepted")
	}
}

func TestNextDue(t *testing.T) {
	from := time.Date(2026, 8, 30, 10, 7, 0, 0, time.UTC)

	next, err := NextDue("0 12 * * *", from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestLoadSchedules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.json")
	content := `[
		{"id": "11111111-1111-1111-1111-111111111111", "graph_path": "g.json", "cron_expr": "0 * * * *", "is_active": true},
		{"id": "22222222-2222-2222-2222-222222222222", "graph_path": "g.json", "cron_expr": "0 0 * * *", "is_active": false}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	schedules, err := LoadSchedules(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schedules) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(schedules))
	}
	if !schedules[0].IsActive || schedules[1].IsActive {
		t.Error("is_active flags parsed incorrectly")
	}
}

func TestNew_InvalidCronFailsFast(t *testing.T) {
	_, err := New(Config{
		Schedules: []domain.Schedule{
			{ID: uuid.New(), CronExpr: "garbage", IsActive: true},
		},
		Publish: func(context.Context, *domain.RunRequest) error { return nil },
	})
	if err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestNew_RequiresPublish(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, ErrNoPublish) {
		t.Errorf("expected ErrNoPublish, got %v", err)
	}
}

func TestFire_PublishesRunRequest(t *testing.T) {
	graphPath := filepath.Join(t.TempDir(), "graph.json")
	graph := `{"name": "nightly", "nodes": [{"id": "a", "kind": "start"}], "edges": []}`
	if err := os.WriteFile(graphPath, []byte(graph), 0o644); err != nil {
		t.Fatal(err)
	}

	var published *domain.RunRequest
	s, err := New(Config{
		Publish: func(_ context.Context, req *domain.RunRequest) error {
			published = req
			return nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.fire(domain.Schedule{
		ID:        uuid.New(),
		GraphPath: graphPath,
		CronExpr:  "0 0 * * *",
		Input:     map[string]any{"source": "schedule"},
		IsActive:  true,
	})

	if published == nil {
		t.Fatal("run request was not published")
	}
	if published.Graph.Name != "nightly" {
		t.Errorf("unexpected graph: %+v", published.Graph)
	}
	if published.RunID == uuid.Nil {
		t.Error("run id should be assigned")
	}
}
