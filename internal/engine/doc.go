// Package engine содержит движок выполнения графов.
//
// Включает:
//   - dag.go      — детерминированная топологическая сортировка
//   - template.go — рендеринг плейсхолдеров {node.path.to.field}
//   - context.go  — контекст выполнения run (кэш выходных данных)
//   - events.go   — канал событий выполнения
//   - engine.go   — обход графа, skip-политика, диспетчеризация
//
// Движок доверяет, что граф уже провалидирован (ацикличность,
// ссылочная целостность), но дешёвые структурные проверки выполняет
// повторно: их нарушение фатально для run до выполнения первого узла.
package engine
