package broker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector — prometheus-коллектор поверх метрик брокера.
//
// Читает атомарные счётчики через Snapshot, ничего не блокируя.
type Collector struct {
	broker *Broker

	inFlight  *prometheus.Desc
	queueLen  *prometheus.Desc
	acquired  *prometheus.Desc
	rejected  *prometheus.Desc
	timedOut  *prometheus.Desc
	cancelled *prometheus.Desc
	forced    *prometheus.Desc
	avgHold   *prometheus.Desc
}

// NewCollector создаёт коллектор для брокера.
// Регистрируется стандартно: prometheus.MustRegister(NewCollector(b)).
func NewCollector(b *Broker) *Collector {
	return &Collector{
		broker: b,
		inFlight: prometheus.NewDesc("nodeflow_broker_in_flight",
			"Number of currently held broker slots.", nil, nil),
		queueLen: prometheus.NewDesc("nodeflow_broker_queue_length",
			"Number of acquire calls currently waiting.", nil, nil),
		acquired: prometheus.NewDesc("nodeflow_broker_acquired_total",
			"Total number of granted slots.", nil, nil),
		rejected: prometheus.NewDesc("nodeflow_broker_rejected_total",
			"Total number of acquires rejected due to full queue.", nil, nil),
		timedOut: prometheus.NewDesc("nodeflow_broker_timed_out_total",
			"Total number of acquires that timed out.", nil, nil),
		cancelled: prometheus.NewDesc("nodeflow_broker_cancelled_total",
			"Total number of cancelled acquires.", nil, nil),
		forced: prometheus.NewDesc("nodeflow_broker_forced_releases_total",
			"Total number of slots force-released by the watchdog.", nil, nil),
		avgHold: prometheus.NewDesc("nodeflow_broker_avg_hold_seconds",
			"Average hold duration of released slots.", nil, nil),
	}
}

// Describe реализует prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inFlight
	ch <- c.queueLen
	ch <- c.acquired
	ch <- c.rejected
	ch <- c.timedOut
	ch <- c.cancelled
	ch <- c.forced
	ch <- c.avgHold
}

// Collect реализует prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.broker.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(m.InFlight))
	ch <- prometheus.MustNewConstMetric(c.queueLen, prometheus.GaugeValue, float64(m.QueueLength))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.CounterValue, float64(m.AcquiredTotal))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(m.RejectedTotal))
	ch <- prometheus.MustNewConstMetric(c.timedOut, prometheus.CounterValue, float64(m.TimedOutTotal))
	ch <- prometheus.MustNewConstMetric(c.cancelled, prometheus.CounterValue, float64(m.CancelledTotal))
	ch <- prometheus.MustNewConstMetric(c.forced, prometheus.CounterValue, float64(m.ForcedTotal))
	ch <- prometheus.MustNewConstMetric(c.avgHold, prometheus.GaugeValue, m.AvgHold.Seconds())
}
