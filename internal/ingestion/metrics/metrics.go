// Package metrics holds the Prometheus instruments for the ingestion engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all ingestion metrics. A nil *Metrics is safe to call; every
// method no-ops so tests can skip registration.
type Metrics struct {
	BatchesProcessed  prometheus.Counter
	BatchDuration     prometheus.Histogram
	ItemsProcessed    prometheus.Counter
	RawStored         prometheus.Counter
	RawDuplicates     prometheus.Counter
	Dispositions      *prometheus.CounterVec
	RecurringMatches  prometheus.Counter
	RecurringDeclined prometheus.Counter
}

// New creates and registers all ingestion metrics.
func New() *Metrics {
	return &Metrics{
		BatchesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_ingestion_batches_total",
			Help: "Total number of ingestion batches committed",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "homeledger_ingestion_batch_duration_seconds",
			Help:    "Wall time spent processing one ingestion batch",
			Buckets: prometheus.DefBuckets,
		}),
		ItemsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_ingestion_items_total",
			Help: "Total number of batch items processed",
		}),
		RawStored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_ingestion_raw_stored_total",
			Help: "Raw ingestion records created",
		}),
		RawDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_ingestion_raw_duplicates_total",
			Help: "Batch items whose payload was already known",
		}),
		Dispositions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "homeledger_ingestion_dispositions_total",
			Help: "Per-item upsert dispositions",
		}, []string{"disposition"}),
		RecurringMatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_recurring_matches_total",
			Help: "Transactions linked to a recurring item",
		}),
		RecurringDeclined: promauto.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_recurring_ambiguous_total",
			Help: "Match attempts declined because multiple candidates qualified",
		}),
	}
}

func (m *Metrics) ObserveBatch(durationSeconds float64, items int) {
	if m == nil {
		return
	}
	m.BatchesProcessed.Inc()
	m.BatchDuration.Observe(durationSeconds)
	m.ItemsProcessed.Add(float64(items))
}

func (m *Metrics) IncRawStored() {
	if m == nil {
		return
	}
	m.RawStored.Inc()
}

func (m *Metrics) IncRawDuplicate() {
	if m == nil {
		return
	}
	m.RawDuplicates.Inc()
}

func (m *Metrics) IncDisposition(disposition string) {
	if m == nil {
		return
	}
	m.Dispositions.WithLabelValues(disposition).Inc()
}

func (m *Metrics) IncRecurringMatch() {
	if m == nil {
		return
	}
	m.RecurringMatches.Inc()
}

func (m *Metrics) IncRecurringDeclined() {
	if m == nil {
		return
	}
	m.RecurringDeclined.Inc()
}
