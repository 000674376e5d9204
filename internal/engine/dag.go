package engine

import (
	"fmt"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// TopologicalOrder строит детерминированный топологический порядок узлов.
//
// Алгоритм Кана с фиксированным правилом разрешения ничьих: среди
// узлов с нулевой входящей степенью всегда выбирается первый в порядке
// объявления. Один и тот же граф даёт один и тот же порядок на каждом
// запуске.
//
// Возвращает ошибку при дубликатах ID, рёбрах на несуществующие узлы
// и циклах — все три случая фатальны для run до выполнения первого узла.
func TopologicalOrder(g *domain.Graph) ([]string, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	// Индекс объявления и проверка уникальности ID
	declared := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, exists := declared[n.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
		}
		declared[n.ID] = i
	}

	// Входящая степень, с проверкой ссылочной целостности рёбер
	inDegree := make(map[string]int, len(g.Nodes))
	dependents := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		if _, ok := declared[e.SourceID]; !ok {
			return nil, fmt.Errorf("%w: source %s", ErrUnknownNode, e.SourceID)
		}
		if _, ok := declared[e.TargetID]; !ok {
			return nil, fmt.Errorf("%w: target %s", ErrUnknownNode, e.TargetID)
		}
		inDegree[e.TargetID]++
		dependents[e.SourceID] = append(dependents[e.SourceID], e.TargetID)
	}

	order := make([]string, 0, len(g.Nodes))
	placed := make(map[string]bool, len(g.Nodes))

	// На каждом шаге выбираем первый по объявлению узел со степенью 0.
	// Квадратичная сложность приемлема: графы редакторские, небольшие.
	for len(order) < len(g.Nodes) {
		picked := ""
		for _, n := range g.Nodes {
			if !placed[n.ID] && inDegree[n.ID] == 0 {
				picked = n.ID
				break
			}
		}

		if picked == "" {
			return nil, ErrCyclicGraph
		}

		placed[picked] = true
		order = append(order, picked)
		for _, dep := range dependents[picked] {
			inDegree[dep]--
		}
	}

	return order, nil
}

// ReachableFrom возвращает множество узлов, достижимых из entry
// (включая сам entry). Используется для выделения дочернего подграфа
// collection-узла.
func ReachableFrom(g *domain.Graph, entryID string) map[string]bool {
	reachable := map[string]bool{entryID: true}
	queue := []string{entryID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, e := range g.Edges {
			if e.SourceID == current && !reachable[e.TargetID] {
				reachable[e.TargetID] = true
				queue = append(queue, e.TargetID)
			}
		}
	}

	return reachable
}
