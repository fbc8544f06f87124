package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"maturity-navigator-api/pkg/models"
	"maturity-navigator-api/pkg/services"
)

// SpeechHandler は音声合成と文字起こしのハンドラです。
type SpeechHandler struct {
	service *services.SpeechService
}

// NewSpeechHandler 新しいSpeechHandlerを生成
func NewSpeechHandler(service *services.SpeechService) *SpeechHandler {
	return &SpeechHandler{service: service}
}

// Speech はテキストを音声（audio/mpeg）に変換します。
// シミュレーションモードではJSONで成功メッセージを返します。
// POST /api/v1/speech
func (h *SpeechHandler) Speech(c *gin.Context) {
	var req models.SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required"})
		return
	}

	res, err := h.service.Synthesize(c.Request.Context(), req.Text)
	if err != nil {
		log.Printf("❌ 音声合成に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while generating speech"})
		return
	}
	if res.Simulated {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": services.SimulatedSpeechMessage})
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", res.Audio)
}

// Transcribe はアップロードされた音声（フォームフィールド audio）を文字起こしします。
// POST /api/v1/transcribe
func (h *SpeechHandler) Transcribe(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Audio file is required"})
		return
	}
	defer file.Close()

	text, err := h.service.Transcribe(c.Request.Context(), header.Filename, file)
	if err != nil {
		log.Printf("❌ 文字起こしに失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while transcribing audio"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}
