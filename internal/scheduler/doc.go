// Package scheduler запускает графы по cron-расписаниям.
//
// Расписания описываются в JSON файле; каждое активное расписание
// регистрируется в cron-раннере и при срабатывании публикует запрос
// на выполнение графа.
package scheduler
