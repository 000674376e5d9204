package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/executor"
)

// LoadGraph читает и парсит граф из JSON файла.
func LoadGraph(path string) (*domain.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}

	var g domain.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse graph file %s: %w", path, err)
	}
	return &g, nil
}

// ValidateGraph выполняет полную валидацию графа перед запуском.
//
// Проверяет:
// - Наличие узлов и уникальность их ID
// - Отсутствие зарезервированных имён bindings среди ID узлов
// - Известность типов узлов (против реестра, если он передан)
// - Ссылочную целостность рёбер
// - Отсутствие циклов
// - Ссылки inputs на существующие узлы
//
// Конфигурация узлов здесь не проверяется: каждый executor защитно
// перепроверяет свой конфиг при диспетчеризации.
func ValidateGraph(g *domain.Graph, registry *executor.Registry) error {
	// Топологический порядок покрывает пустоту, дубликаты, битые рёбра
	// и циклы
	if _, err := TopologicalOrder(g); err != nil {
		return err
	}

	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}

	for _, n := range g.Nodes {
		// ID узла попадает в bindings; совпадение с зарезервированным
		// ключом молча затенило бы "out" в условиях рёбер или "input"
		if n.ID == OutBindingKey || n.ID == InputBindingKey {
			return fmt.Errorf("node %s: id shadows a reserved binding name", n.ID)
		}
		if n.Kind == "" {
			return fmt.Errorf("node %s: kind is empty", n.ID)
		}
		if registry != nil && !registry.Has(n.Kind) {
			return fmt.Errorf("node %s: %w: %s", n.ID, executor.ErrExecutorNotFound, n.Kind)
		}
		for _, inputID := range n.Inputs {
			if inputID == n.ID {
				return fmt.Errorf("node %s: refers to itself in inputs", n.ID)
			}
			if !ids[inputID] {
				return fmt.Errorf("node %s: %w: input %s", n.ID, ErrUnknownNode, inputID)
			}
		}
	}

	return nil
}
