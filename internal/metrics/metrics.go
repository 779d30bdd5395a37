package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rejection kinds used as the "kind" label.
const (
	RejectRuleViolation = "rule_violation"
	RejectBusy          = "busy"
	RejectClosed        = "closed"
	RejectUnauthorized  = "unauthorized"
)

// Recorder wraps the scoring collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	balls           *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	publishFailures prometheus.Counter
	submitLatency   prometheus.Histogram
	activeMatches   prometheus.Gauge
	completed       prometheus.Counter
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		balls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cricket",
			Name:      "balls_applied_total",
			Help:      "Deliveries applied to a match, by action.",
		}, []string{"action"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cricket",
			Name:      "submissions_rejected_total",
			Help:      "Ball submissions rejected, by kind.",
		}, []string{"kind"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cricket",
			Name:      "publish_failures_total",
			Help:      "Snapshot broadcasts that failed or dropped a subscriber.",
		}),
		submitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cricket",
			Name:      "submit_duration_seconds",
			Help:      "Time from submission to committed snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		activeMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cricket",
			Name:      "active_matches",
			Help:      "Matches currently held in memory.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cricket",
			Name:      "matches_completed_total",
			Help:      "Matches that reached a result.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.balls, r.rejections, r.publishFailures, r.submitLatency, r.activeMatches, r.completed)
	}
	return r
}

func (r *Recorder) BallApplied(action string) {
	if r == nil {
		return
	}
	r.balls.WithLabelValues(action).Inc()
}

func (r *Recorder) Rejected(kind string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(kind).Inc()
}

func (r *Recorder) PublishFailed() {
	if r == nil {
		return
	}
	r.publishFailures.Inc()
}

func (r *Recorder) ObserveSubmit(d time.Duration) {
	if r == nil {
		return
	}
	r.submitLatency.Observe(d.Seconds())
}

func (r *Recorder) MatchOpened() {
	if r == nil {
		return
	}
	r.activeMatches.Inc()
}

func (r *Recorder) MatchClosed() {
	if r == nil {
		return
	}
	r.activeMatches.Dec()
}

func (r *Recorder) MatchCompleted() {
	if r == nil {
		return
	}
	r.completed.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
