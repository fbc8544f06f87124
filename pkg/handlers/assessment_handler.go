package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"maturity-navigator-api/pkg/models"
	"maturity-navigator-api/pkg/report"
	"maturity-navigator-api/pkg/services"
)

// AssessmentHandler は評価のインタビュー、分析、履歴のハンドラです。
type AssessmentHandler struct {
	service *services.AssessmentService
}

// NewAssessmentHandler 新しいAssessmentHandlerを生成
func NewAssessmentHandler(service *services.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{service: service}
}

// Analyze はプロフィールと回答一覧から成熟度評価を生成します。
// POST /api/v1/assessment/analyze
func (h *AssessmentHandler) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserInfo == nil || req.Responses == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User information and responses are required"})
		return
	}

	result, err := h.service.Analyze(c.Request.Context(), *req.UserInfo, req.Responses)
	if err != nil {
		log.Printf("❌ 評価の分析に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while analyzing your assessment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assessment": result})
}

// Chat は会話履歴とフェーズから次の発話を生成します。
// POST /api/v1/chat
func (h *AssessmentHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Conversation == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Conversation history is required"})
		return
	}
	for _, t := range req.Conversation {
		switch t.Role {
		case models.RoleUser, models.RoleAssistant, models.RoleSystem:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown conversation role %q", t.Role)})
			return
		}
	}

	reply, err := h.service.Chat(c.Request.Context(), req.Conversation, req.Context)
	if err != nil {
		log.Printf("❌ チャットの応答生成に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while processing your request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

// Email はレポートの送信先と評価結果を記録します。保存に失敗しても成功を返します。
// POST /api/v1/email
func (h *AssessmentHandler) Email(c *gin.Context) {
	var req models.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}
	if req.Assessment == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Assessment data is required"})
		return
	}

	h.service.RecordEmail(userID(c), req.Email, *req.Assessment)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Assessment report sent to %s (simulated)", req.Email),
	})
}

// Questions は質問バンクとフェーズ設定を返します。
// GET /api/v1/questions
func (h *AssessmentHandler) Questions(c *gin.Context) {
	settings := h.service.Settings()
	c.JSON(http.StatusOK, gin.H{
		"questions": settings.Questions,
		"flow": gin.H{
			"userInfo":                  settings.Flow.UserInfoCount,
			"productivity":              settings.Flow.ProductivityCount,
			"valueCreation":             settings.Flow.ValueCreationCount,
			"businessModel":             settings.Flow.BusinessModelCount,
			"total":                     settings.Flow.Total(),
			"minQuestionsForCompletion": settings.Flow.MinQuestionsForCompletion,
		},
		"bands":   h.service.Scorer().Bands().Bands(),
		"weights": settings.Framework.Weights,
	})
}

// StartSession 新しい評価を開始
// POST /api/v1/sessions
func (h *AssessmentHandler) StartSession(c *gin.Context) {
	state, err := h.service.Start(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// GetSession 評価の現在の状態
// GET /api/v1/sessions/:id
func (h *AssessmentHandler) GetSession(c *gin.Context) {
	state, err := h.service.State(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Answer 回答を送信して次の発話を受け取る
// POST /api/v1/sessions/:id/answer
func (h *AssessmentHandler) Answer(c *gin.Context) {
	var req models.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Answer) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answer is required"})
		return
	}

	res, err := h.service.Answer(c.Request.Context(), userID(c), c.Param("id"), req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Complete 評価を完了して結果を返す
// POST /api/v1/sessions/:id/complete
func (h *AssessmentHandler) Complete(c *gin.Context) {
	var req models.CompleteRequest
	// ボディなしはforce=false
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.service.Complete(c.Request.Context(), userID(c), c.Param("id"), req.Force)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assessment": result})
}

// Reset 評価を最初からやり直す
// POST /api/v1/sessions/:id/reset
func (h *AssessmentHandler) Reset(c *gin.Context) {
	state, err := h.service.Reset(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Playback 音声再生状態の通知
// PUT /api/v1/sessions/:id/playback
func (h *AssessmentHandler) Playback(c *gin.Context) {
	var req models.PlaybackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Playing == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "playing is required"})
		return
	}

	state, err := h.service.SetPlayback(c.Request.Context(), userID(c), c.Param("id"), *req.Playing)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// ListAssessments 呼び出し元ユーザーの評価を新しい順に返す
// GET /api/v1/assessments
func (h *AssessmentHandler) ListAssessments(c *gin.Context) {
	records, err := h.service.List(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	summaries := make([]models.AssessmentSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, models.Summarize(rec))
	}
	c.JSON(http.StatusOK, gin.H{"assessments": summaries, "count": len(summaries)})
}

// GetAssessment 評価の全体
// GET /api/v1/assessments/:id
func (h *AssessmentHandler) GetAssessment(c *gin.Context) {
	rec, err := h.service.Record(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DeleteAssessment 評価を削除
// DELETE /api/v1/assessments/:id
func (h *AssessmentHandler) DeleteAssessment(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ExportAssessment 評価結果をxlsxでダウンロード
// GET /api/v1/assessments/:id/export
func (h *AssessmentHandler) ExportAssessment(c *gin.Context) {
	rec, err := h.service.Record(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	bank := h.service.Settings().Questions
	lookup := func(id string) (string, bool) {
		q, ok := bank.Lookup(id)
		return q.Text, ok
	}

	var buf bytes.Buffer
	if err := report.WriteAssessment(&buf, rec, lookup); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.FileName(rec)))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}
