package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync/atomic"

	config "maturity-navigator-api/configs"
	"maturity-navigator-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler は管理者向け操作のハンドラです。
// メンテナンスモードの間、評価を変更するリクエストは503で拒否されます。
type AdminHandler struct {
	adminUsername string
	adminPassword string
	assessments   *services.AssessmentService
	maintenance   atomic.Bool
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(cfg *config.Config, assessments *services.AssessmentService) *AdminHandler {
	return &AdminHandler{
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
		assessments:   assessments,
	}
}

// AdminCredentials は管理者認証のためのリクエストボディです。
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// authorize は資格情報を検証します。パスワード未設定の場合は常に拒否します。
func (h *AdminHandler) authorize(c *gin.Context) bool {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(input.Username), []byte(h.adminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(input.Password), []byte(h.adminPassword)) == 1
	if h.adminPassword == "" || !userOK || !passOK {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return false
	}
	return true
}

// StartMaintenance はメンテナンスモードを開始し、保存待ちのスナップショットを書き込みます。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}

	h.maintenance.Store(true)
	if h.assessments != nil {
		if err := h.assessments.Flush(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode started", "flushed": false})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode started", "flushed": true})
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}

	h.maintenance.Store(false)
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode stopped"})
}

// GetHealthStatus は現在のサーバーの状態を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"isMaintenanceMode": h.maintenance.Load()})
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	if h.maintenance.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MaintenanceMiddleware はメンテナンス中の書き込みリクエストを拒否します。
// 参照系と管理者APIは通します。
func (h *AdminHandler) MaintenanceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.maintenance.Load() || c.Request.Method == http.MethodGet || strings.Contains(c.FullPath(), "/admin/") {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Server is in maintenance mode"})
	}
}
