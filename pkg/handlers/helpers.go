package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"maturity-navigator-api/pkg/assessment"
	"maturity-navigator-api/pkg/report"
	"maturity-navigator-api/pkg/services"
	"maturity-navigator-api/pkg/storage"
)

// UserIDHeader 呼び出し元ユーザーを示すヘッダー。認証は前段で行われます。
const UserIDHeader = "X-User-ID"

// AnonymousUser ヘッダーがない場合のユーザーID
const AnonymousUser = "anonymous"

// userID リクエストのユーザーIDを返す
func userID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(UserIDHeader)); id != "" {
		return id
	}
	return AnonymousUser
}

// respondError はサービスのエラーをHTTPステータスに変換して返します。
func respondError(c *gin.Context, err error) {
	var refusal *assessment.RefusalError
	switch {
	case errors.As(err, &refusal):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     refusal.Error(),
			"threshold": refusal.Threshold,
			"remaining": refusal.Remaining,
		})
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, services.ErrNotOwner):
		c.JSON(http.StatusNotFound, gin.H{"error": "Assessment not found"})
	case errors.Is(err, services.ErrReplyPending):
		c.JSON(http.StatusConflict, gin.H{"error": "A reply is still being generated for this assessment"})
	case errors.Is(err, assessment.ErrCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "Assessment is already completed"})
	case errors.Is(err, report.ErrNotCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "Assessment has no results yet"})
	case errors.Is(err, assessment.ErrStaleTurn):
		c.JSON(http.StatusConflict, gin.H{"error": "Assessment changed while the reply was generated. Please resubmit"})
	case errors.Is(err, assessment.ErrEmptyAnswer), errors.Is(err, services.ErrEmptyText):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrCompletionFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to generate a reply. Please resubmit your answer"})
	default:
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
