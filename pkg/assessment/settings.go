package assessment

import (
	"errors"
	"fmt"
	"math"

	"maturity-navigator-api/pkg/models"
)

// Settings はインタビューの設定全体です（プロンプト、質問、フェーズの長さ、採点フレームワーク）。
// DefaultSettings が組み込みの値を返し、YAMLファイルで任意のセクションを上書きできます。
type Settings struct {
	Prompts   Prompts      `yaml:"prompts"`
	Questions QuestionBank `yaml:"questions"`
	Flow      Flow         `yaml:"flow"`
	Framework Framework    `yaml:"framework"`
	Models    Models       `yaml:"models"`
}

// Prompts モデル呼び出しの種類ごとのシステムプロンプト
type Prompts struct {
	ConversationIntro       string `yaml:"conversation_intro"`
	UserInfoGathering       string `yaml:"user_info_gathering"`
	ProductivityAssessment  string `yaml:"productivity_assessment"`
	ValueCreationAssessment string `yaml:"value_creation_assessment"`
	BusinessModelAssessment string `yaml:"business_model_assessment"`
	ClosingConversation     string `yaml:"closing_conversation"`
	AnalysisInstruction     string `yaml:"analysis_instruction"`
	AnalysisFormat          string `yaml:"analysis_format"`
}

// ForPhase フェーズ別のプロンプトを返す
func (p Prompts) ForPhase(phase Phase) string {
	switch phase {
	case PhaseUserInfo:
		return p.UserInfoGathering
	case PhaseProductivity:
		return p.ProductivityAssessment
	case PhaseValueCreation:
		return p.ValueCreationAssessment
	case PhaseBusinessModel:
		return p.BusinessModelAssessment
	case PhaseClosing:
		return p.ClosingConversation
	}
	return ""
}

// Flow フェーズごとの質問数と完了に必要な回答数
type Flow struct {
	UserInfoCount             int `yaml:"user_info_count"`
	ProductivityCount         int `yaml:"productivity_count"`
	ValueCreationCount        int `yaml:"value_creation_count"`
	BusinessModelCount        int `yaml:"business_model_count"`
	MinQuestionsForCompletion int `yaml:"min_questions_for_completion"`
	// Strict がtrueの場合、順序の不整合を検出するとフォールバックせずpanicします。
	Strict bool `yaml:"strict"`
}

// Count フェーズに割り当てた質問数
func (f Flow) Count(p Phase) int {
	switch p {
	case PhaseUserInfo:
		return f.UserInfoCount
	case PhaseProductivity:
		return f.ProductivityCount
	case PhaseValueCreation:
		return f.ValueCreationCount
	case PhaseBusinessModel:
		return f.BusinessModelCount
	}
	return 0
}

// Total 全フェーズの回答数の合計
func (f Flow) Total() int {
	return f.UserInfoCount + f.ProductivityCount + f.ValueCreationCount + f.BusinessModelCount
}

// Framework 採点の設定
type Framework struct {
	Bands         []Band        `yaml:"bands"`
	Weights       Weights       `yaml:"weights"`
	DefaultScores DefaultScores `yaml:"default_scores"`
}

// Weights 総合スコアの重み。合計は1.0である必要があります。
type Weights struct {
	Productivity  float64 `yaml:"productivity" json:"productivity"`
	ValueCreation float64 `yaml:"value_creation" json:"valueCreation"`
	BusinessModel float64 `yaml:"business_model" json:"businessModel"`
}

// Sum 重みの合計
func (w Weights) Sum() float64 {
	return w.Productivity + w.ValueCreation + w.BusinessModel
}

// DefaultScores 分析テキストにスコアがない領域に使う既定値
type DefaultScores struct {
	Productivity  float64 `yaml:"productivity" json:"productivity"`
	ValueCreation float64 `yaml:"value_creation" json:"valueCreation"`
	BusinessModel float64 `yaml:"business_model" json:"businessModel"`
}

// Models 呼び出し種別ごとに使うデプロイ
type Models struct {
	Conversation models.ModelConfig `yaml:"conversation"`
	Analysis     models.ModelConfig `yaml:"analysis"`
	Speech       SpeechModel        `yaml:"speech"`
	Transcribe   string             `yaml:"transcribe_model_id"`
}

// SpeechModel 音声合成の設定
type SpeechModel struct {
	ModelID string `yaml:"model_id"`
	Voice   string `yaml:"voice"`
}

const weightTolerance = 1e-6

// Validate は各コンポーネントが前提とする条件を検証します。
func (s Settings) Validate() error {
	var errs []error

	for _, p := range TimedPhases {
		n := s.Flow.Count(p)
		if n < 0 {
			errs = append(errs, fmt.Errorf("flow: %s count must not be negative", p))
		}
		if have := len(s.Questions.ForPhase(p)); have < n {
			errs = append(errs, fmt.Errorf("questions: %s has %d questions, flow needs %d", p, have, n))
		}
	}
	if len(s.Questions.Closing) == 0 {
		errs = append(errs, errors.New("questions: at least one closing question is required"))
	}
	if s.Flow.MinQuestionsForCompletion < 1 {
		errs = append(errs, errors.New("flow: min_questions_for_completion must be at least 1"))
	}
	if math.Abs(s.Framework.Weights.Sum()-1.0) > weightTolerance {
		errs = append(errs, fmt.Errorf("framework: weights sum to %.4f, want 1.0", s.Framework.Weights.Sum()))
	}
	for name, v := range map[string]float64{
		"productivity":   s.Framework.DefaultScores.Productivity,
		"value_creation": s.Framework.DefaultScores.ValueCreation,
		"business_model": s.Framework.DefaultScores.BusinessModel,
	} {
		if v < MinScore || v > MaxScore {
			errs = append(errs, fmt.Errorf("framework: default score %s=%.2f outside [%.1f, %.1f]", name, v, MinScore, MaxScore))
		}
	}
	if _, err := NewBandTable(s.Framework.Bands); err != nil {
		errs = append(errs, fmt.Errorf("framework: %w", err))
	}

	return errors.Join(errs...)
}
