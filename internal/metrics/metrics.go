package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signalwatch"

// Recorder implements the source, dispatch and monitor observers using Prometheus.
type Recorder struct {
	sweeps        prometheus.Counter
	sweepDuration prometheus.Histogram
	pairs         prometheus.Gauge
	venueQueries  *prometheus.CounterVec
	venueLatency  *prometheus.HistogramVec
	triggers      *prometheus.CounterVec
	channelSends  *prometheus.CounterVec
	channelTime   *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		sweeps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Total number of completed sweeps",
		}),
		sweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one sweep over every subscription",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		pairs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sweep_pairs",
			Help:      "Subscriber and symbol pairs evaluated by the last sweep",
		}),
		venueQueries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "venue_queries_total",
			Help:      "Venue calls by venue and outcome",
		}, []string{"venue", "outcome"}),
		venueLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "venue_query_duration_seconds",
			Help:      "Duration of venue calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"venue"}),
		triggers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Alerts triggered by classification",
		}, []string{"classification"}),
		channelSends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_sends_total",
			Help:      "Alert channel sends by channel and outcome",
		}, []string{"channel", "outcome"}),
		channelTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_send_duration_seconds",
			Help:      "Duration of alert channel sends",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// VenueQueried records one venue call.
func (r *Recorder) VenueQueried(venue string, ok bool, elapsed time.Duration) {
	r.venueQueries.WithLabelValues(venue, outcome(ok)).Inc()
	r.venueLatency.WithLabelValues(venue).Observe(elapsed.Seconds())
}

// ChannelSent records one channel attempt.
func (r *Recorder) ChannelSent(channel string, ok bool, elapsed time.Duration) {
	r.channelSends.WithLabelValues(channel, outcome(ok)).Inc()
	r.channelTime.WithLabelValues(channel).Observe(elapsed.Seconds())
}

// SweepCompleted records the end of one sweep.
func (r *Recorder) SweepCompleted(pairs int, elapsed time.Duration) {
	r.sweeps.Inc()
	r.pairs.Set(float64(pairs))
	r.sweepDuration.Observe(elapsed.Seconds())
}

// Triggered records one alert-worthy transition.
func (r *Recorder) Triggered(classification string) {
	r.triggers.WithLabelValues(classification).Inc()
}
