package domain

import (
	"github.com/google/uuid"
)

// Graph — направленный ациклический граф узлов.
//
// Graph — это "программа" для Nodeflow: описание узлов и связей между
// ними. Граф приходит в движок уже провалидированным (ацикличность,
// ссылочная целостность рёбер) и неизменяемым на время выполнения.
type Graph struct {
	// ID — уникальный идентификатор графа.
	ID uuid.UUID `json:"id"`

	// Version — версия графа (1, 2, 3, ...).
	// Каждый run выполняет конкретную версию.
	Version int `json:"version"`

	// Name — имя графа для удобной идентификации пользователем.
	Name string `json:"name,omitempty"`

	// Nodes — узлы графа в порядке объявления.
	// Порядок объявления используется для детерминированной
	// топологической сортировки.
	Nodes []NodeDef `json:"nodes"`

	// Edges — рёбра графа.
	Edges []EdgeDef `json:"edges"`
}

// NodeDef — определение узла графа.
type NodeDef struct {
	// ID — уникальный в пределах графа идентификатор узла.
	ID string `json:"id"`

	// Kind — тип узла (http, transform, condition, collection, ...).
	// Определяет, какой executor выполнит узел.
	Kind string `json:"kind"`

	// Config — конфигурация узла. Структура зависит от Kind.
	// Строковые значения могут содержать шаблоны {node.path.to.field},
	// которые рендерятся непосредственно перед выполнением узла.
	Config map[string]any `json:"config,omitempty"`

	// Inputs — ID узлов, чьи outputs передаются узлу как входные данные.
	Inputs []string `json:"inputs,omitempty"`
}

// EdgeDef — ребро графа.
type EdgeDef struct {
	// SourceID — узел-источник.
	SourceID string `json:"source_id"`

	// TargetID — узел-приёмник.
	TargetID string `json:"target_id"`

	// Condition — опциональное условие перехода.
	// Выражение вычисляется над output узла-источника.
	// Пустое условие означает безусловный переход.
	Condition string `json:"condition,omitempty"`
}

// NodeByID возвращает определение узла по ID.
// Возвращает nil, если узел не найден.
func (g *Graph) NodeByID(id string) *NodeDef {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// IncomingEdges возвращает входящие рёбра узла в порядке объявления.
func (g *Graph) IncomingEdges(nodeID string) []EdgeDef {
	edges := make([]EdgeDef, 0)
	for _, e := range g.Edges {
		if e.TargetID == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// OutgoingEdges возвращает исходящие рёбра узла в порядке объявления.
func (g *Graph) OutgoingEdges(nodeID string) []EdgeDef {
	edges := make([]EdgeDef, 0)
	for _, e := range g.Edges {
		if e.SourceID == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// IsConditional возвращает true, если ребро имеет условие перехода.
func (e *EdgeDef) IsConditional() bool {
	return e.Condition != ""
}
