// Package metrics exposes the engine's Prometheus metrics.
//
//	annotation_api_requests_total{op,outcome}   calls to the Annotation API
//	annotation_api_request_duration_seconds{op}  their latency
//	annotation_fetch_shared_total               loads that joined an in-flight fetch
//	annotation_dirty                            annotations with unsaved changes
//	annotation_batch_saves_total{outcome}       per-item results of save-all on exit
//	notifications_total{kind}                   notifications sent to the user
//	overlays_live                               overlays currently on the map
//
// All methods accept a nil *Collector.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg prometheus.Registerer

	apiRequests   *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
	fetchShared   prometheus.Counter
	dirty         prometheus.Gauge
	batchSaves    *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reg: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotation_api_requests_total",
			Help: "Annotation API calls by operation and outcome",
		}, []string{"op", "outcome"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "annotation_api_request_duration_seconds",
			Help:    "Annotation API call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		fetchShared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "annotation_fetch_shared_total",
			Help: "Annotation fetches answered by an in-flight request",
		}),
		dirty: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "annotation_dirty",
			Help: "Annotations with unsaved local changes",
		}),
		batchSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotation_batch_saves_total",
			Help: "Per-annotation results of save-all when leaving edit mode",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notifications sent to the user by kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.fetchShared,
		c.dirty,
		c.batchSaves,
		c.notifications,
	)
	return c
}

// TrackLiveOverlays registers a gauge read from fn at scrape time.
func (c *Collector) TrackLiveOverlays(fn func() int) {
	if c == nil {
		return
	}
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "overlays_live",
		Help: "Overlays currently attached to the map",
	}, func() float64 { return float64(fn()) }))
}

func (c *Collector) ObserveAPI(op, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.apiRequests.WithLabelValues(op, outcome).Inc()
	c.apiLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) RecordSharedFetch() {
	if c == nil {
		return
	}
	c.fetchShared.Inc()
}

func (c *Collector) SetDirty(n int) {
	if c == nil {
		return
	}
	c.dirty.Set(float64(n))
}

func (c *Collector) RecordBatchSave(ok bool) {
	if c == nil {
		return
	}
	outcome := "saved"
	if !ok {
		outcome = "failed"
	}
	c.batchSaves.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordNotification(kind string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(kind).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
