// Package expr содержит безопасный вычислитель выражений.
//
// Выражения используются в условиях рёбер, предикатах filter и
// трансформациях map. Грамматика ограничена: сравнения, булевы
// операторы, обращение к атрибутам и индексам, литералы, отрицание.
//
// Безопасность обеспечивается двумя независимыми барьерами:
//   - denylist-сканом исходного текста (denylist.go)
//   - allow-list'ом типов узлов AST (evaluator.go)
//
// Отклонение любым из барьеров финально. Контекст вычисления не
// содержит функций и состояния процесса: только переданные bindings.
package expr
