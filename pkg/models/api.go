package models

// AnalyzeRequest POST /assessment/analyze のリクエスト
type AnalyzeRequest struct {
	UserInfo  *UserProfile `json:"userInfo"`
	Responses []Response   `json:"responses"`
}

// ChatRequest POST /chat のリクエスト。Contextはフェーズのラベルです。
type ChatRequest struct {
	Conversation []ConversationTurn `json:"conversation"`
	Context      string             `json:"context"`
}

// SpeechRequest POST /speech のリクエスト
type SpeechRequest struct {
	Text string `json:"text"`
}

// EmailRequest POST /email のリクエスト
type EmailRequest struct {
	Email      string            `json:"email"`
	Assessment *AssessmentResult `json:"assessment"`
}

// AnswerRequest 評価セッションへの回答
type AnswerRequest struct {
	Answer string `json:"answer"`
}

// CompleteRequest 評価の完了要求。Forceは全フェーズを終える前の早期完了
type CompleteRequest struct {
	Force bool `json:"force"`
}

// PlaybackRequest 音声再生状態の通知
type PlaybackRequest struct {
	Playing *bool `json:"playing"`
}

// AssessmentSummary 一覧表示用の評価の要約
type AssessmentSummary struct {
	ID                   string           `json:"id"`
	Status               AssessmentStatus `json:"status"`
	CurrentQuestionIndex int              `json:"currentQuestionIndex"`
	CreatedAt            int64            `json:"createdAt"`
	CompletedAt          *int64           `json:"completedAt,omitempty"`
	Overall              *OverallScore    `json:"overall,omitempty"`
	LowConfidence        bool             `json:"lowConfidence"`
}

// Summarize 保存された評価から一覧用の要約を作成
func Summarize(rec AssessmentRecord) AssessmentSummary {
	s := AssessmentSummary{
		ID:                   rec.ID,
		Status:               rec.Status,
		CurrentQuestionIndex: rec.CurrentQuestionIndex,
		CreatedAt:            rec.CreatedAt.UnixMilli(),
	}
	if rec.CompletedAt != nil {
		ms := rec.CompletedAt.UnixMilli()
		s.CompletedAt = &ms
	}
	if rec.Results != nil {
		overall := rec.Results.Overall
		s.Overall = &overall
		s.LowConfidence = rec.Results.LowConfidence
	}
	return s
}
