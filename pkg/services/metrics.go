package services

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const metricsNamespace = "maturity_navigator"

// Metrics はPrometheusに公開するメトリクスをまとめたものです。
// レジストリはインスタンスごとに持つため、テストで複数作成しても衝突しません。
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	completions     *prometheus.CounterVec
	defaulted       *prometheus.CounterVec
	persistDropped  prometheus.Counter
	persistFailures prometheus.Counter
	activeSessions  prometheus.Gauge
}

// NewMetrics メトリクスを作成してレジストリに登録
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by route, method and status class.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "completions_total",
			Help:      "Model completions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		defaulted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "defaulted_scores_total",
			Help:      "Dimension scores that fell back to the configured default.",
		}, []string{"dimension"}),
		persistDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "persist_dropped_total",
			Help:      "Snapshots dropped because the persist queue was full.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "persist_failures_total",
			Help:      "Snapshots the store failed to save.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Sessions held in the in-memory cache.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration, m.completions, m.defaulted,
		m.persistDropped, m.persistFailures, m.activeSessions,
	)
	return m
}

// Handler /metrics 用のHTTPハンドラ
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry テスト等で直接値を確認するためのレジストリ
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// ObserveRequest はリクエスト1件を記録します。nilレシーバでも安全です。
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, statusClass(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveCompletion モデル呼び出しの結果を記録
func (m *Metrics) ObserveCompletion(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.completions.WithLabelValues(kind, outcome).Inc()
}

// ObserveDefaulted 既定スコアを使った領域を記録
func (m *Metrics) ObserveDefaulted(dimension string) {
	if m == nil {
		return
	}
	m.defaulted.WithLabelValues(dimension).Inc()
}

// ObservePersistDropped キューが満杯で破棄したスナップショットを記録
func (m *Metrics) ObservePersistDropped() {
	if m == nil {
		return
	}
	m.persistDropped.Inc()
}

// ObservePersistFailure 保存に失敗したスナップショットを記録
func (m *Metrics) ObservePersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

// SetActiveSessions キャッシュ内のセッション数を記録
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// CompletionCount モデル呼び出しの成功/失敗件数
type CompletionCount struct {
	OK    int `json:"ok"`
	Error int `json:"error"`
}

// AssessmentStats はダッシュボード向けに評価処理のメトリクスを集めたものです。
type AssessmentStats struct {
	ActiveSessions  int                        `json:"activeSessions"`
	Completions     map[string]CompletionCount `json:"completions"`
	DefaultedScores map[string]int             `json:"defaultedScores"`
	PersistDropped  int                        `json:"persistDropped"`
	PersistFailures int                        `json:"persistFailures"`
}

// Snapshot はレジストリから現在値を読み出します。nilレシーバの場合は空の値を返します。
func (m *Metrics) Snapshot() AssessmentStats {
	stats := AssessmentStats{
		Completions:     make(map[string]CompletionCount),
		DefaultedScores: make(map[string]int),
	}
	if m == nil {
		return stats
	}

	families, err := m.registry.Gather()
	if err != nil {
		// 一部のコレクタが失敗しても取得できた分は使う
		log.Printf("⚠️ メトリクスの収集に一部失敗しました: %v", err)
	}
	for _, mf := range families {
		switch mf.GetName() {
		case metricsNamespace + "_completions_total":
			for _, metric := range mf.GetMetric() {
				kind := labelValue(metric, "kind")
				c := stats.Completions[kind]
				if labelValue(metric, "outcome") == "ok" {
					c.OK += int(metric.GetCounter().GetValue())
				} else {
					c.Error += int(metric.GetCounter().GetValue())
				}
				stats.Completions[kind] = c
			}
		case metricsNamespace + "_defaulted_scores_total":
			for _, metric := range mf.GetMetric() {
				stats.DefaultedScores[labelValue(metric, "dimension")] += int(metric.GetCounter().GetValue())
			}
		case metricsNamespace + "_persist_dropped_total":
			stats.PersistDropped = int(sumCounters(mf))
		case metricsNamespace + "_persist_failures_total":
			stats.PersistFailures = int(sumCounters(mf))
		case metricsNamespace + "_active_sessions":
			for _, metric := range mf.GetMetric() {
				stats.ActiveSessions = int(metric.GetGauge().GetValue())
			}
		}
	}
	return stats
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func sumCounters(mf *dto.MetricFamily) float64 {
	var total float64
	for _, metric := range mf.GetMetric() {
		total += metric.GetCounter().GetValue()
	}
	return total
}
