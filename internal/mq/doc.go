// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.request — запрос на выполнение графа
//   - run.event   — событие выполнения узла
//
// Exchanges:
//   - nodeflow.runs   — запросы на выполнение
//   - nodeflow.events — события выполнения (fanout для подписчиков)
//   - nodeflow.dlq    — dead letter queue
package mq
