// internal/utils/metrics/collector.go
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricType представляет тип метрики
type MetricType string

const (
	TransactionCounterType  MetricType = "transaction_counter"
	TransactionDurationType MetricType = "transaction_duration"
	PhaseCounterType        MetricType = "migration_phase_counter"
	PhaseDurationType       MetricType = "migration_phase_duration"
	LookupTableSizeType     MetricType = "lookup_table_size"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeUnknown = "unknown"
	OutcomeSkipped = "skipped"
)

const namespace = "curvectl"

// Collector управляет набором метрик. Каждый коллектор владеет собственным
// реестром, поэтому несколько экземпляров не конфликтуют.
// Nil *Collector is valid and records nothing.
type Collector struct {
	metrics  sync.Map
	registry *prometheus.Registry
}

// NewCollector создает новый экземпляр коллектора метрик
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}
	c.initializeMetrics()
	return c
}

func (c *Collector) initializeMetrics() {
	metricsMap := map[MetricType]prometheus.Collector{
		TransactionCounterType: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of transactions processed",
			},
			[]string{"status", "type"},
		),
		TransactionDurationType: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_duration_seconds",
				Help:      "Time from build to confirmation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"type"},
		),
		PhaseCounterType: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migration_phase_total",
				Help:      "Migration phases by outcome",
			},
			[]string{"phase", "outcome"},
		),
		PhaseDurationType: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "migration_phase_duration_seconds",
				Help:      "Migration phase duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"phase"},
		),
		LookupTableSizeType: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "lookup_table_addresses",
				Help:      "Number of addresses in the last built lookup table",
			},
		),
	}

	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		c.registry.MustRegister(metric)
	}
}

// Registry exposes the collector's registry for export.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}

// RecordTransaction records a transaction outcome and its duration.
func (c *Collector) RecordTransaction(txType, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	if counter, ok := c.metrics.Load(TransactionCounterType); ok {
		if counterVec, ok := counter.(*prometheus.CounterVec); ok {
			counterVec.WithLabelValues(outcome, txType).Inc()
		}
	}
	if durationMetric, ok := c.metrics.Load(TransactionDurationType); ok {
		if histVec, ok := durationMetric.(*prometheus.HistogramVec); ok {
			histVec.WithLabelValues(txType).Observe(duration.Seconds())
		}
	}
}

// RecordPhase records one migration phase.
func (c *Collector) RecordPhase(phase, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	if counter, ok := c.metrics.Load(PhaseCounterType); ok {
		if counterVec, ok := counter.(*prometheus.CounterVec); ok {
			counterVec.WithLabelValues(phase, outcome).Inc()
		}
	}
	if durationMetric, ok := c.metrics.Load(PhaseDurationType); ok {
		if histVec, ok := durationMetric.(*prometheus.HistogramVec); ok {
			histVec.WithLabelValues(phase).Observe(duration.Seconds())
		}
	}
}

// SetLookupTableSize records the size of a freshly built lookup table.
func (c *Collector) SetLookupTableSize(n int) {
	if c == nil {
		return
	}
	if gauge, ok := c.metrics.Load(LookupTableSizeType); ok {
		if g, ok := gauge.(prometheus.Gauge); ok {
			g.Set(float64(n))
		}
	}
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
