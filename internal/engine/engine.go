package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Nodeflow/internal/broker"
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/executor"
	"github.com/shaiso/Nodeflow/internal/expr"
	"github.com/shaiso/Nodeflow/internal/sink"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// OutBindingKey — имя, под которым output источника ребра доступен
// в условии этого ребра.
const OutBindingKey = "out"

// Config — зависимости движка.
type Config struct {
	// Registry — реестр executor'ов. Обязателен.
	Registry *executor.Registry

	// Broker — admission gate для узлов с внешними ресурсами.
	// Nil означает выполнение без ограничений.
	Broker *broker.Broker

	// Sinks — получатели событий run.
	Sinks []sink.Sink

	// Logger — структурный логгер.
	Logger *slog.Logger
}

// Engine — движок выполнения графов.
//
// Один Engine обслуживает много запусков; состояние каждого run живёт
// в его ExecutionContext, выполнение узлов run'а идёт последовательно
// в детерминированном топологическом порядке.
type Engine struct {
	registry *executor.Registry
	broker   *broker.Broker
	sinks    []sink.Sink
	logger   *slog.Logger
}

// New создаёт Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, ErrNilRegistry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: cfg.Registry,
		broker:   cfg.Broker,
		sinks:    cfg.Sinks,
		logger:   logger,
	}, nil
}

// Execute выполняет граф и возвращает итог запуска.
//
// Ошибка возвращается только для дефектов структуры графа; падение
// отдельных узлов отражается в их outcome и статусе run, но не
// прерывает независимые ветви.
func (e *Engine) Execute(ctx context.Context, req *domain.RunRequest) (*domain.RunResult, error) {
	if req == nil || req.Graph == nil {
		return nil, ErrNilGraph
	}

	order, err := TopologicalOrder(req.Graph)
	if err != nil {
		return nil, err
	}

	logger := telemetry.WithGraphID(telemetry.WithRunID(e.logger, req.RunID.String()), req.Graph.ID.String())
	logger.Info("run started", "graph", req.Graph.Name, "nodes", len(req.Graph.Nodes))

	execCtx := NewExecutionContext(req.RunID, req.Input)
	em := newEmitter(req.RunID, e.sinks)
	defer em.close()

	// Узлы дочерних подграфов collection-узлов исключаются из основного
	// обхода: они выполняются по одному разу на элемент внутри iterate.
	subgraphNodes := e.collectSubgraphNodes(req.Graph)

	result := &domain.RunResult{
		RunID:     req.RunID,
		Status:    domain.RunStatusSucceeded,
		StartedAt: time.Now(),
	}

	cancelled := false
	for _, nodeID := range order {
		if subgraphNodes[nodeID] {
			continue
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		node := req.Graph.NodeByID(nodeID)
		e.stepNode(ctx, req.Graph, node, execCtx, em, order, subgraphNodes, logger)

		if outcome := execCtx.Outcome(nodeID); outcome != nil && outcome.Status == domain.NodeStatusFailed {
			result.Status = domain.RunStatusFailed
		}
	}

	if cancelled {
		result.Status = domain.RunStatusCancelled
		logger.Warn("run cancelled", "cause", ctx.Err())
	}

	result.Outcomes = execCtx.Outcomes()
	result.FinishedAt = time.Now()
	logger.Info("run finished", "status", result.Status, "duration", result.Duration())
	return result, nil
}

// admission — решение о выполнимости узла.
type admission struct {
	run        bool
	skipReason domain.SkipReason
	conditions map[string]bool
	// primary — output источника первого взятого ребра.
	primary any
	// condErr — ошибка вычисления условия. Узел падает, не выполняясь.
	condErr error
}

// resolveAdmission применяет политику пропуска к входящим рёбрам узла.
//
// Узел выполняется, если взято хотя бы одно входящее ребро: источник
// завершился успешно и условие ребра отсутствует либо истинно. Узел
// без входящих рёбер выполняется безусловно. Приоритет причин пропуска:
// UPSTREAM_FAILED, затем CONDITION_FALSE, затем UPSTREAM_SKIPPED.
func (e *Engine) resolveAdmission(g *domain.Graph, node *domain.NodeDef, execCtx *ExecutionContext) admission {
	incoming := g.IncomingEdges(node.ID)
	if len(incoming) == 0 {
		return admission{run: true}
	}

	conditions := make(map[string]bool)
	sawFailed := false
	sawConditionFalse := false
	sawAny := false

	for _, edge := range incoming {
		outcome := execCtx.Outcome(edge.SourceID)
		if outcome == nil {
			// Источник не выполнялся в этом обходе
			continue
		}
		sawAny = true

		switch outcome.Status {
		case domain.NodeStatusFailed:
			sawFailed = true

		case domain.NodeStatusSkipped:
			// Кандидат на UPSTREAM_SKIPPED, ничего не запоминаем

		case domain.NodeStatusSucceeded:
			if !edge.IsConditional() {
				return admission{run: true, primary: outcome.Output, conditions: conditions}
			}

			bindings := execCtx.Bindings()
			bindings[OutBindingKey] = outcome.Output
			taken, err := expr.EvaluateBool(edge.Condition, bindings)
			if err != nil {
				// Ошибка вычисления условия закрывает узел: FAILED
				return admission{condErr: fmt.Errorf("edge %s -> %s: condition %q: %w",
					edge.SourceID, edge.TargetID, edge.Condition, err)}
			}
			conditions[edge.Condition] = taken
			if taken {
				return admission{run: true, primary: outcome.Output, conditions: conditions}
			}
			sawConditionFalse = true
		}
	}

	// Ни один источник не выполнялся в этом обходе: узел — точка входа
	// подграфа, его источники лежат вне подграфа
	if !sawAny {
		return admission{run: true}
	}

	reason := domain.SkipReasonUpstreamSkipped
	if sawConditionFalse {
		reason = domain.SkipReasonConditionFalse
	}
	if sawFailed {
		reason = domain.SkipReasonUpstreamFailed
	}
	return admission{skipReason: reason, conditions: conditions}
}

// stepNode проводит один узел через политику пропуска и выполнение.
// Emitter может быть nil: узлы дочерних подграфов не эмитируют событий
// в основной поток run.
func (e *Engine) stepNode(ctx context.Context, g *domain.Graph, node *domain.NodeDef,
	execCtx *ExecutionContext, em *emitter, order []string, subgraphNodes map[string]bool,
	logger *slog.Logger) {

	outcome := &domain.NodeOutcome{
		NodeID:   node.ID,
		NodeKind: node.Kind,
		Status:   domain.NodeStatusPending,
	}

	logger = telemetry.WithNodeID(logger, node.ID)
	adm := e.resolveAdmission(g, node, execCtx)

	if adm.condErr != nil {
		outcome.MarkFailed(NewNodeError(node.ID, node.Kind, adm.condErr))
		execCtx.SetOutcome(outcome)
		if em != nil {
			em.emitFailed(node.ID, node.Kind, adm.condErr)
		}
		logger.Error("node failed", "error", adm.condErr)
		return
	}

	if !adm.run {
		outcome.MarkSkipped(adm.skipReason, adm.conditions)
		execCtx.SetOutcome(outcome)
		if em != nil {
			em.emitSkipped(node.ID, node.Kind, adm.skipReason, adm.conditions)
		}
		logger.Debug("node skipped", "reason", adm.skipReason)
		return
	}

	outcome.MarkRunning()
	if em != nil {
		em.emitStart(node.ID, node.Kind)
	}

	output, err := e.dispatch(ctx, g, node, execCtx, adm.primary, order, subgraphNodes, logger)
	if err != nil {
		nodeErr := NewNodeError(node.ID, node.Kind, err)
		outcome.MarkFailed(nodeErr)
		execCtx.SetOutcome(outcome)
		if em != nil {
			em.emitFailed(node.ID, node.Kind, nodeErr)
		}
		logger.Error("node failed", "error", err)
		return
	}

	outcome.MarkSucceeded(output)
	execCtx.SetOutcome(outcome)
	if em != nil {
		em.emitSucceeded(node.ID, node.Kind, output)
	}
	logger.Debug("node succeeded", "duration", outcome.Duration())
}

// dispatch рендерит конфигурацию узла и вызывает его executor, при
// необходимости оборачивая вызов в слот брокера.
func (e *Engine) dispatch(ctx context.Context, g *domain.Graph, node *domain.NodeDef,
	execCtx *ExecutionContext, primary any, order []string, subgraphNodes map[string]bool,
	logger *slog.Logger) (any, error) {

	exec, err := e.registry.Get(node.Kind)
	if err != nil {
		return nil, err
	}

	bindings := execCtx.Bindings()

	// Шаблоны рендерятся непосредственно перед диспетчеризацией, чтобы
	// видеть самые свежие значения upstream-узлов
	config, err := RenderConfig(node.Config, bindings)
	if err != nil {
		return nil, err
	}

	inputs := make(map[string]any, len(node.Inputs))
	for _, inputID := range node.Inputs {
		if v, ok := execCtx.Output(inputID); ok {
			inputs[inputID] = v
		}
	}

	req := &executor.Request{
		NodeID:   node.ID,
		NodeKind: node.Kind,
		Config:   config,
		Inputs:   inputs,
		Primary:  primary,
		RunInput: execCtx.Input,
		Bindings: bindings,
		Subgraph: &subgraphRunner{
			engine:        e,
			graph:         g,
			parent:        execCtx,
			order:         order,
			subgraphNodes: subgraphNodes,
			logger:        logger,
		},
	}

	if category := exec.Category(); category != "" && e.broker != nil {
		slot, err := e.broker.Acquire(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("acquire %s slot: %w", category, err)
		}
		defer e.broker.Release(slot)
	}

	resp, err := exec.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Output, nil
}

// iterateChildEntry возвращает вход дочернего подграфа iterate-узла,
// либо "" для всех остальных узлов.
func iterateChildEntry(g *domain.Graph, node *domain.NodeDef) string {
	if node == nil || node.Kind != executor.KindCollection {
		return ""
	}
	if op, _ := node.Config["operation"].(string); op != "iterate" {
		return ""
	}
	child, _ := node.Config["child"].(string)
	if child == "" || g.NodeByID(child) == nil {
		return ""
	}
	return child
}

// collectSubgraphNodes собирает узлы, принадлежащие дочерним подграфам
// collection-узлов с операцией iterate.
func (e *Engine) collectSubgraphNodes(g *domain.Graph) map[string]bool {
	members := make(map[string]bool)
	for i := range g.Nodes {
		entry := iterateChildEntry(g, &g.Nodes[i])
		if entry == "" {
			continue
		}
		for id := range ReachableFrom(g, entry) {
			members[id] = true
		}
	}
	return members
}

// subgraphRunner выполняет дочерний подграф iterate для одного элемента.
type subgraphRunner struct {
	engine        *Engine
	graph         *domain.Graph
	parent        *ExecutionContext
	order         []string
	subgraphNodes map[string]bool
	logger        *slog.Logger
}

// RunSubgraph реализует executor.SubgraphRunner.
//
// Для элемента создаётся форк контекста родителя; узлы подграфа
// выполняются в том же топологическом порядке, что и в основном обходе,
// с той же политикой пропуска. События дочерних узлов в основной поток
// run не эмитируются. Результат — output последнего выполненного узла
// подграфа.
func (r *subgraphRunner) RunSubgraph(ctx context.Context, entryID, elementVar string, element any) (any, error) {
	if r.graph.NodeByID(entryID) == nil {
		return nil, fmt.Errorf("%w: subgraph entry %s", ErrUnknownNode, entryID)
	}

	members := ReachableFrom(r.graph, entryID)

	// Члены подграфов вложенных iterate-узлов не выполняются напрямую:
	// их прогоняет сам вложенный узел, по разу на свой элемент
	nested := make(map[string]bool)
	for id := range members {
		entry := iterateChildEntry(r.graph, r.graph.NodeByID(id))
		if entry == "" {
			continue
		}
		for cid := range ReachableFrom(r.graph, entry) {
			nested[cid] = true
		}
	}

	child := r.parent.Fork(elementVar, element)

	var lastID string
	for _, nodeID := range r.order {
		if !members[nodeID] || nested[nodeID] {
			continue
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrRunCancelled, ctx.Err())
		}

		node := r.graph.NodeByID(nodeID)
		r.engine.stepNode(ctx, r.graph, node, child, nil, r.order, r.subgraphNodes, r.logger)

		outcome := child.Outcome(nodeID)
		if outcome.Status == domain.NodeStatusFailed {
			return nil, fmt.Errorf("subgraph node %s: %s", nodeID, outcome.Error)
		}
		if outcome.Status == domain.NodeStatusSucceeded {
			lastID = nodeID
		}
	}

	if lastID == "" {
		return nil, nil
	}
	out, _ := child.Output(lastID)
	return out, nil
}
