package router

import (
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	config "maturity-navigator-api/configs"
	"maturity-navigator-api/pkg/handlers"
	"maturity-navigator-api/pkg/services"
)

// Dependencies ルーターが使うサービス
type Dependencies struct {
	Config      *config.Config
	Assessments *services.AssessmentService
	Speech      *services.SpeechService
	Monitoring  *services.MonitoringService
	Metrics     *services.Metrics
}

// AuthMiddleware はX-API-KEYヘッダーを検証します。apiKeyが未設定の場合は検証しません。
func AuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" || apiKey == "default_secret_key" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != apiKey {
			log.Printf("⚠️ [認証] 無効なAPI Keyです: %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// SetupRouter はすべてのルートを登録したGinエンジンを返します。
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.Default()

	assessmentHandler := handlers.NewAssessmentHandler(deps.Assessments)
	speechHandler := handlers.NewSpeechHandler(deps.Speech)
	adminHandler := handlers.NewAdminHandler(deps.Config, deps.Assessments)
	monitoringHandler := handlers.NewMonitoringHandler(deps.Monitoring, deps.Metrics)

	// ミドルウェアの登録
	r.Use(deps.Monitoring.LoggingMiddleware())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders("X-API-KEY", handlers.UserIDHeader)
	corsConfig.AddExposeHeaders("Content-Disposition")
	r.Use(cors.New(corsConfig))

	// ヘルスチェックとメトリクス
	r.GET("/health", adminHandler.HealthCheck)
	r.GET("/metrics", monitoringHandler.Metrics)

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(deps.Config.APIKey))
	v1.Use(adminHandler.MaintenanceMiddleware())
	{
		v1.POST("/assessment/analyze", assessmentHandler.Analyze)
		v1.POST("/chat", assessmentHandler.Chat)
		v1.POST("/speech", speechHandler.Speech)
		v1.POST("/transcribe", speechHandler.Transcribe)
		v1.POST("/email", assessmentHandler.Email)
		v1.GET("/questions", assessmentHandler.Questions)

		// インタビューのセッション
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", assessmentHandler.StartSession)
			sessions.GET("/:id", assessmentHandler.GetSession)
			sessions.POST("/:id/answer", assessmentHandler.Answer)
			sessions.POST("/:id/complete", assessmentHandler.Complete)
			sessions.POST("/:id/reset", assessmentHandler.Reset)
			sessions.PUT("/:id/playback", assessmentHandler.Playback)
		}

		// 保存された評価
		assessments := v1.Group("/assessments")
		{
			assessments.GET("", assessmentHandler.ListAssessments)
			assessments.GET("/:id", assessmentHandler.GetAssessment)
			assessments.DELETE("/:id", assessmentHandler.DeleteAssessment)
			assessments.GET("/:id/export", assessmentHandler.ExportAssessment)
		}

		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	return r
}
