// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//
// Все бинарники используют единый формат логирования и экспортируют
// Prometheus метрики на /metrics endpoint (коллекторы живут рядом со
// своими компонентами, например broker.Collector).
package telemetry
