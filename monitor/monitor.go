// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ActiveArenas     prometheus.Gauge
	AttachedViewers  prometheus.Gauge
	FramesReceived   *prometheus.CounterVec
	FrameLatency     prometheus.Histogram
	RoastsSent       prometheus.Counter
	VotesCast        prometheus.Counter
	BattlesCompleted prometheus.Counter
	BackendErrors    *prometheus.CounterVec
}

func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveArenas: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_arenas",
			Help:      "Number of battles with a running arena",
		}),
		AttachedViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attached_viewers",
			Help:      "Number of viewers attached to arenas",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of websocket frames received",
		}, []string{"type"}),
		FrameLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_latency_seconds",
			Help:      "Frame processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		RoastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roasts_sent_total",
			Help:      "Total number of roasts stored",
		}),
		VotesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Total number of votes submitted",
		}),
		BattlesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "battles_completed_total",
			Help:      "Total number of battles that reached completed",
		}),
		BackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Backend read/write failures by operation",
		}, []string{"op"}),
	}

	registerer.MustRegister(
		m.ActiveArenas,
		m.AttachedViewers,
		m.FramesReceived,
		m.FrameLatency,
		m.RoastsSent,
		m.VotesCast,
		m.BattlesCompleted,
		m.BackendErrors,
	)

	return m
}

// Monitor 监控. A nil *Monitor is valid and records nothing.
type Monitor struct {
	metrics      *Metrics
	gatherer     prometheus.Gatherer
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

// NewMonitor registers metrics on the default prometheus registry.
func NewMonitor(namespace string) *Monitor {
	return NewMonitorWithRegistry(namespace, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func NewMonitorWithRegistry(namespace string, registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace, registerer),
		gatherer:  gatherer,
		startTime: time.Now(),
	}
}

// Handler serves /metrics and /debug/vars.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

func (m *Monitor) StartServer(addr string) *http.Server {
	// 添加expvar指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("frames", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.requestCount
	}))

	srv := &http.Server{Addr: addr, Handler: m.Handler()}
	go srv.ListenAndServe()
	return srv
}

func (m *Monitor) SetActiveArenas(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveArenas.Set(float64(count))
}

func (m *Monitor) IncViewers() {
	if m == nil {
		return
	}
	m.metrics.AttachedViewers.Inc()
}

func (m *Monitor) DecViewers() {
	if m == nil {
		return
	}
	m.metrics.AttachedViewers.Dec()
}

func (m *Monitor) IncFramesReceived(frameType string) {
	if m == nil {
		return
	}
	m.metrics.FramesReceived.WithLabelValues(frameType).Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) ObserveFrameLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.FrameLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncRoasts() {
	if m == nil {
		return
	}
	m.metrics.RoastsSent.Inc()
}

func (m *Monitor) IncVotes() {
	if m == nil {
		return
	}
	m.metrics.VotesCast.Inc()
}

func (m *Monitor) IncBattlesCompleted() {
	if m == nil {
		return
	}
	m.metrics.BattlesCompleted.Inc()
}

func (m *Monitor) IncBackendErrors(op string) {
	if m == nil {
		return
	}
	m.metrics.BackendErrors.WithLabelValues(op).Inc()
}
