package assessment

import "maturity-navigator-api/pkg/models"

// Phase はインタビューの段階を表すラベルです。
// チャットリクエストのcontextラベルとしても使います。
type Phase string

const (
	PhaseUserInfo      Phase = "userInfo"
	PhaseProductivity  Phase = "productivity"
	PhaseValueCreation Phase = "valueCreation"
	PhaseBusinessModel Phase = "businessModel"
	PhaseClosing       Phase = "closing"
)

// TimedPhases 決まった数の回答を消費するフェーズ（順番どおり）
var TimedPhases = []Phase{PhaseUserInfo, PhaseProductivity, PhaseValueCreation, PhaseBusinessModel}

// ValidPhase 既知のフェーズラベルかどうか
func ValidPhase(p Phase) bool {
	switch p {
	case PhaseUserInfo, PhaseProductivity, PhaseValueCreation, PhaseBusinessModel, PhaseClosing:
		return true
	}
	return false
}

// QuestionBank フェーズごとの質問リスト
type QuestionBank struct {
	UserInfo      []models.Question `yaml:"user_info" json:"userInfo"`
	Productivity  []models.Question `yaml:"productivity" json:"productivity"`
	ValueCreation []models.Question `yaml:"value_creation" json:"valueCreation"`
	BusinessModel []models.Question `yaml:"business_model" json:"businessModel"`
	Closing       []models.Question `yaml:"closing" json:"closing"`
}

// ForPhase フェーズの質問リストを返す
func (b QuestionBank) ForPhase(p Phase) []models.Question {
	switch p {
	case PhaseUserInfo:
		return b.UserInfo
	case PhaseProductivity:
		return b.Productivity
	case PhaseValueCreation:
		return b.ValueCreation
	case PhaseBusinessModel:
		return b.BusinessModel
	case PhaseClosing:
		return b.Closing
	}
	return nil
}

// All はすべての質問をインタビュー順に返します。
func (b QuestionBank) All() []models.Question {
	all := make([]models.Question, 0, len(b.UserInfo)+len(b.Productivity)+len(b.ValueCreation)+len(b.BusinessModel)+len(b.Closing))
	all = append(all, b.UserInfo...)
	all = append(all, b.Productivity...)
	all = append(all, b.ValueCreation...)
	all = append(all, b.BusinessModel...)
	all = append(all, b.Closing...)
	return all
}

// Lookup IDで質問を検索
func (b QuestionBank) Lookup(id string) (models.Question, bool) {
	for _, q := range b.All() {
		if q.ID == id {
			return q, true
		}
	}
	return models.Question{}, false
}
