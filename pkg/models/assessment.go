package models

import "time"

// ValueArea 質問が関係する価値領域
type ValueArea string

const (
	ValueAreaGeneral       ValueArea = "general"
	ValueAreaProductivity  ValueArea = "productivity"
	ValueAreaValueCreation ValueArea = "valueCreation"
	ValueAreaBusinessModel ValueArea = "businessModel"
)

// Question はインタビューの質問です。起動時に定義され、変更されません。
type Question struct {
	ID        string    `json:"id" yaml:"id"`
	Text      string    `json:"text" yaml:"text"`
	ValueArea ValueArea `json:"valueArea" yaml:"value_area"`
}

// Response 1つの質問への回答
type Response struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	Timestamp  int64  `json:"timestamp"` // ミリ秒単位のUNIX時刻
}

// Role 会話ターンのロール
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationTurn はモデルに送る追記専用の会話履歴の1件です。
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserProfile はユーザー情報の質問に回答する過程で蓄積されます。
type UserProfile struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Industry string `json:"industry"`
	OrgSize  string `json:"orgSize"`
	Email    string `json:"email"`
}

// MaturityLevel 成熟度レベル
type MaturityLevel int

const (
	LevelExploring     MaturityLevel = 1
	LevelExperimenting MaturityLevel = 2
	LevelImplementing  MaturityLevel = 3
	LevelTransforming  MaturityLevel = 4
)

func (l MaturityLevel) String() string {
	switch l {
	case LevelExploring:
		return "Exploring"
	case LevelExperimenting:
		return "Experimenting"
	case LevelImplementing:
		return "Implementing"
	case LevelTransforming:
		return "Transforming"
	}
	return "Unknown"
}

// DimensionScore 価値領域ごとの採点結果
type DimensionScore struct {
	Score         float64       `json:"score"`
	Level         MaturityLevel `json:"level"`
	LevelName     string        `json:"levelName"`
	Strengths     []string      `json:"strengths"`
	Opportunities []string      `json:"opportunities"`
	// Defaulted 分析からスコアを読み取れず既定値を使った場合にtrue
	Defaulted bool `json:"defaulted,omitempty"`
}

// OverallScore 領域をまたいだ重み付き総合スコア
type OverallScore struct {
	Score     float64       `json:"score"`
	Level     MaturityLevel `json:"level"`
	LevelName string        `json:"levelName"`
}

// AssessmentResult は1回の評価の確定済み結果です。
type AssessmentResult struct {
	UserInfo      UserProfile    `json:"userInfo"`
	Productivity  DimensionScore `json:"productivity"`
	ValueCreation DimensionScore `json:"valueCreation"`
	BusinessModel DimensionScore `json:"businessModel"`
	Overall       OverallScore   `json:"overall"`
	Responses     []Response     `json:"responses"`
	Timestamp     int64          `json:"timestamp"`
	// LowConfidence いずれかの領域で既定スコアを使った場合にtrue
	LowConfidence bool `json:"lowConfidence"`
}

// AssessmentStatus 保存された評価の状態
type AssessmentStatus string

const (
	StatusInProgress AssessmentStatus = "in-progress"
	StatusCompleted  AssessmentStatus = "completed"
)

// AssessmentRecord 1件の評価の永続化ドキュメント
type AssessmentRecord struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"userId"`
	Status               AssessmentStatus   `json:"status"`
	Responses            []Response         `json:"responses"`
	UserInfo             UserProfile        `json:"userInfo"`
	Conversation         []ConversationTurn `json:"conversation"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	CurrentContext       string             `json:"currentContext"`
	Results              *AssessmentResult  `json:"results,omitempty"`
	Email                string             `json:"email,omitempty"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
	CompletedAt          *time.Time         `json:"completedAt,omitempty"`
}

// ModelConfig 補完呼び出しで使うデプロイとサンプリングのパラメータ
type ModelConfig struct {
	ModelID     string  `json:"modelId" yaml:"model_id"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"maxTokens" yaml:"max_tokens"`
}
