package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"costura-backend/internal/platform/config"
)

// Recorder: サービス層が使う最小インターフェース（テストでは Nop）
type Recorder interface {
	AttendanceRegistered(kind, status string)
	ProductionRegistered(units int64)
	SyncPushed(entity, result string)
	ScanHandled(action, result string)
}

type Metrics struct {
	registry   *prometheus.Registry
	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec
	attendance *prometheus.CounterVec
	prodCnt    prometheus.Counter
	prodUnits  prometheus.Counter
	syncCnt    *prometheus.CounterVec
	scanCnt    *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	attendance := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "attendance_registrations_total"}, []string{"kind", "status"})
	prodCnt := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "production_registrations_total"})
	prodUnits := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "production_units_total"})
	syncCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "sync_pushes_total"}, []string{"entity", "result"})
	scanCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "scans_total"}, []string{"action", "result"})
	r.MustRegister(attendance, prodCnt, prodUnits, syncCnt, scanCnt)

	return &Metrics{
		registry:   r,
		httpReqCnt: httpReqCnt,
		httpDur:    httpDur,
		httpInfl:   httpInfl,
		attendance: attendance,
		prodCnt:    prodCnt,
		prodUnits:  prodUnits,
		syncCnt:    syncCnt,
		scanCnt:    scanCnt,
	}
}

func (m *Metrics) AttendanceRegistered(kind, status string) {
	m.attendance.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ProductionRegistered(units int64) {
	m.prodCnt.Inc()
	m.prodUnits.Add(float64(units))
}

func (m *Metrics) SyncPushed(entity, result string) {
	m.syncCnt.WithLabelValues(entity, result).Inc()
}

func (m *Metrics) ScanHandled(action, result string) {
	m.scanCnt.WithLabelValues(action, result).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Nop: metrics 無効時とテスト用
type Nop struct{}

func (Nop) AttendanceRegistered(string, string) {}
func (Nop) ProductionRegistered(int64)          {}
func (Nop) SyncPushed(string, string)           {}
func (Nop) ScanHandled(string, string)          {}
