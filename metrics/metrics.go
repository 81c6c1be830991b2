package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "classnotes"

var (
	describeReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "describe_requests_total",
			Help:      "Image description requests by provider, model and result",
		},
		[]string{"provider", "model", "result"},
	)

	describeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "describe_request_duration_seconds",
			Help:      "Duration of image description requests by provider and model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	batches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Acquisition batches by result (ok, failed)",
		},
		[]string{"result"},
	)

	documents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_generated_total",
			Help:      "PDF documents rendered",
		},
	)

	pages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_emitted_total",
			Help:      "Pages emitted across all documents",
		},
	)

	overflows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overflowing_blocks_total",
			Help:      "Blocks placed past the bottom margin",
		},
	)

	activeJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Processing jobs currently running",
		},
	)

	initOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(describeReqs, describeLatency, batches, documents, pages, overflows, activeJobs)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveDescribe(provider, model, result string, dur time.Duration) {
	describeReqs.WithLabelValues(provider, model, result).Inc()
	describeLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func IncBatch(result string) { batches.WithLabelValues(result).Inc() }

// ObserveDocument 记录一次成功生成的文档。
func ObserveDocument(pageCount, overflowCount int) {
	documents.Inc()
	pages.Add(float64(pageCount))
	overflows.Add(float64(overflowCount))
}

func JobStarted()  { activeJobs.Inc() }
func JobFinished() { activeJobs.Dec() }
