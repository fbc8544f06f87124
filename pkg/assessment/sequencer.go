package assessment

import (
	"fmt"
	"log"
	"strings"

	"maturity-navigator-api/pkg/models"
)

// Sequencer は回答数から次のフェーズと質問を決定します。
// フェーズの境界はFlowで設定した固定オフセットです。
type Sequencer struct {
	bank    QuestionBank
	flow    Flow
	prompts Prompts
}

// NewSequencer 各フェーズに十分な質問があるかを検証して作成
func NewSequencer(bank QuestionBank, flow Flow, prompts Prompts) (*Sequencer, error) {
	for _, p := range TimedPhases {
		if flow.Count(p) < 0 {
			return nil, fmt.Errorf("phase %s: negative slice size", p)
		}
		if len(bank.ForPhase(p)) < flow.Count(p) {
			return nil, fmt.Errorf("phase %s: %d questions configured, %d required", p, len(bank.ForPhase(p)), flow.Count(p))
		}
	}
	if len(bank.Closing) == 0 {
		return nil, fmt.Errorf("phase %s: no closing question configured", PhaseClosing)
	}
	return &Sequencer{bank: bank, flow: flow, prompts: prompts}, nil
}

// At は回答済み件数 n に対応するフェーズと質問を返します。
// 全フェーズを過ぎた後はクロージングの質問を返し続けます。
func (s *Sequencer) At(n int) (Phase, models.Question) {
	if n < 0 {
		n = 0
	}
	offset := n
	for _, p := range TimedPhases {
		size := s.flow.Count(p)
		if offset < size {
			questions := s.bank.ForPhase(p)
			if offset >= len(questions) {
				return s.violation(p, offset)
			}
			return p, questions[offset]
		}
		offset -= size
	}
	return PhaseClosing, s.bank.Closing[0]
}

// violation 質問を解決できないインデックスの処理
func (s *Sequencer) violation(p Phase, idx int) (Phase, models.Question) {
	msg := fmt.Sprintf("sequencer: no question at %s[%d]", p, idx)
	if s.flow.Strict {
		panic(msg)
	}
	log.Printf("❌ %s, falling back to closing question", msg)
	return PhaseClosing, s.bank.Closing[0]
}

// Phase フェーズラベルのみを返す
func (s *Sequencer) Phase(n int) Phase {
	p, _ := s.At(n)
	return p
}

// Total 全フェーズを終えるのに必要な回答数
func (s *Sequencer) Total() int {
	return s.flow.Total()
}

// Progress n件回答後の進捗率（%）
func (s *Sequencer) Progress(n int) int {
	total := s.Total()
	if total == 0 || n >= total {
		return 100
	}
	if n <= 0 {
		return 0
	}
	return n * 100 / total
}

// Opening 会話の最初の質問
func (s *Sequencer) Opening() models.Question {
	_, q := s.At(0)
	return q
}

// SystemPrompt 会話の導入プロンプトとフェーズのプロンプトを結合
func (s *Sequencer) SystemPrompt(p Phase) string {
	var sb strings.Builder
	sb.WriteString(s.prompts.ConversationIntro)
	if phasePrompt := s.prompts.ForPhase(p); phasePrompt != "" {
		sb.WriteString("\n\n")
		sb.WriteString(phasePrompt)
	}
	return sb.String()
}

// ContextLabel チャットリクエストに付けるフェーズのラベル
func (s *Sequencer) ContextLabel(p Phase) string {
	return string(p)
}

// TurnPrompt は返答の最後に next の質問へ進むためのシステムプロンプトです。
func (s *Sequencer) TurnPrompt(p Phase, next models.Question) string {
	return fmt.Sprintf("%s\n\nBriefly acknowledge the user's last answer, then ask this next question in your own words:\n%s",
		s.SystemPrompt(p), next.Text)
}

// FinalPrompt は最後の回答への返答用のシステムプロンプトです。評価はこの返答で完了するため質問はさせません。
func (s *Sequencer) FinalPrompt() string {
	return s.SystemPrompt(PhaseClosing) +
		"\n\nBriefly acknowledge the user's last answer and thank them for their time. " +
		"The interview is now complete and their results are being prepared, so do not ask any further questions."
}

// Bank 質問バンクを返す
func (s *Sequencer) Bank() QuestionBank {
	return s.bank
}
