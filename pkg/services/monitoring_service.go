package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// ログの保持期間。ダッシュボードの最大集計期間（7日）より古いものは捨てます。
const logRetention = 7 * 24 * time.Hour

// MonitoringService はAPIのモニタリング機能を提供します。
// ダッシュボード用のリクエストログを保持し、同じ情報をPrometheusメトリクスにも記録します。
type MonitoringService struct {
	logs    []LogEntry
	mu      sync.RWMutex
	metrics *Metrics
	now     func() time.Time
}

// NewMonitoringService は新しいMonitoringServiceを生成します。metricsはnilでも構いません。
func NewMonitoringService(metrics *Metrics) *MonitoringService {
	return &MonitoringService{
		logs:    make([]LogEntry, 0),
		metrics: metrics,
		now:     time.Now,
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := entry.Timestamp.Add(-logRetention)
	drop := 0
	for drop < len(s.logs) && s.logs[drop].Timestamp.Before(cutoff) {
		drop++
	}
	s.logs = append(s.logs[drop:], entry)
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 次のミドルウェア/ハンドラを実行
		c.Next()

		path := c.Request.URL.Path
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))

		// 除外するパスプレフィックス
		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") || path == "/metrics" {
			return
		}

		// リクエスト情報を記録
		entry := LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		}
		s.LogRequest(entry)
	}
}

// HourlyCount 1時間ごとのリクエスト数
type HourlyCount struct {
	Time     string `json:"time"`
	Requests int    `json:"requests"`
}

// StatusCount ステータスクラスごとの件数
type StatusCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// EndpointLatency パスごとの平均応答時間（ミリ秒）
type EndpointLatency struct {
	Endpoint     string `json:"endpoint"`
	ResponseTime int64  `json:"responseTime"`
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
// Assessmentsは期間に関係なくプロセス起動からの累積値です。
type DashboardData struct {
	RequestsOverTime []HourlyCount     `json:"requestsOverTime"`
	Endpoints        map[string]int    `json:"endpoints"`
	StatusCodes      []StatusCount     `json:"statusCodes"`
	AvgResponseTimes []EndpointLatency `json:"avgResponseTimes"`
	RecentErrors     []LogEntry        `json:"recentErrors"`
	Assessments      AssessmentStats   `json:"assessments"`
}

const maxRecentErrors = 10

var statusNames = []string{"2xx Success", "4xx Client Error", "5xx Server Error"}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours < 1 {
		periodHours = 1
	}
	now := s.now()
	start := now.Truncate(time.Hour).Add(-time.Duration(periodHours-1) * time.Hour)
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	data := DashboardData{
		RequestsOverTime: make([]HourlyCount, periodHours),
		Endpoints:        make(map[string]int),
		StatusCodes:      make([]StatusCount, len(statusNames)),
		AvgResponseTimes: make([]EndpointLatency, 0),
		RecentErrors:     make([]LogEntry, 0),
		Assessments:      s.metrics.Snapshot(),
	}
	for i := range data.RequestsOverTime {
		data.RequestsOverTime[i].Time = start.Add(time.Duration(i) * time.Hour).Format("15:00")
	}
	for i, name := range statusNames {
		data.StatusCodes[i].Name = name
	}

	latency := make(map[string]time.Duration)

	s.mu.RLock()
	for _, e := range s.logs {
		if !e.Timestamp.After(since) {
			continue
		}
		if h := int(e.Timestamp.Sub(start) / time.Hour); h >= 0 && h < periodHours {
			data.RequestsOverTime[h].Requests++
		}
		data.Endpoints[e.Path]++
		latency[e.Path] += e.ResponseTime
		switch {
		case e.StatusCode >= 500:
			data.StatusCodes[2].Value++
		case e.StatusCode >= 400:
			data.StatusCodes[1].Value++
		case e.StatusCode >= 200 && e.StatusCode < 300:
			data.StatusCodes[0].Value++
		}
	}
	for i := len(s.logs) - 1; i >= 0 && len(data.RecentErrors) < maxRecentErrors; i-- {
		if e := s.logs[i]; e.Timestamp.After(since) && e.StatusCode >= 500 {
			data.RecentErrors = append(data.RecentErrors, e)
		}
	}
	s.mu.RUnlock()

	for path, total := range latency {
		data.AvgResponseTimes = append(data.AvgResponseTimes, EndpointLatency{
			Endpoint:     path,
			ResponseTime: total.Milliseconds() / int64(data.Endpoints[path]),
		})
	}
	sort.Slice(data.AvgResponseTimes, func(i, j int) bool {
		return data.AvgResponseTimes[i].Endpoint < data.AvgResponseTimes[j].Endpoint
	})
	return data
}
