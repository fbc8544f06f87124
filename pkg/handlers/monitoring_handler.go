package handlers

import (
	"net/http"

	"maturity-navigator-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler はモニタリング関連の操作のハンドラです。
type MonitoringHandler struct {
	service *services.MonitoringService
	metrics *services.Metrics
}

// NewMonitoringHandler は新しいMonitoringHandlerを生成します。
func NewMonitoringHandler(service *services.MonitoringService, metrics *services.Metrics) *MonitoringHandler {
	return &MonitoringHandler{service: service, metrics: metrics}
}

// periodHours はダッシュボードの集計期間を時間数に変換します。
func periodHours(period string) int {
	switch period {
	case "1h":
		return 1
	case "7d":
		return 24 * 7
	default:
		return 24
	}
}

// GetLogs は集計されたログデータを返します。
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	data := h.service.GetDashboardData(periodHours(c.DefaultQuery("period", "24h")))
	c.JSON(http.StatusOK, data)
}

// Metrics はPrometheus形式のメトリクスを返します。
func (h *MonitoringHandler) Metrics(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
