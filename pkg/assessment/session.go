package assessment

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"maturity-navigator-api/pkg/models"
)

var (
	// ErrReplyPending 前の回答への返答を待っている間に次の回答が送信された
	ErrReplyPending = errors.New("a reply is still pending for this assessment")
	// ErrCompleted 完了済みの評価への回答
	ErrCompleted = errors.New("assessment is already completed")
	// ErrStaleTurn 返答の生成中にセッションが変更された
	ErrStaleTurn = errors.New("assessment changed while the reply was generated")
	// ErrEmptyAnswer 空の回答
	ErrEmptyAnswer = errors.New("answer must not be empty")
)

// Session は1件の評価のメモリ上の状態です。
// 回答と会話履歴はResetされるまで追記のみです。
type Session struct {
	mu      sync.Mutex
	pending atomic.Bool

	id          string
	userID      string
	status      models.AssessmentStatus
	responses   []models.Response
	profile     models.UserProfile
	convo       []models.ConversationTurn
	context     string
	results     *models.AssessmentResult
	email       string
	createdAt   time.Time
	updatedAt   time.Time
	completedAt *time.Time
}

// NewSession 最初の質問から始まる評価を作成
func NewSession(id, userID string, seq *Sequencer, now time.Time) *Session {
	s := &Session{id: id, userID: userID, createdAt: now}
	s.resetLocked(seq, now)
	return s
}

// FromRecord 永続化された形式からセッションを復元
func FromRecord(rec models.AssessmentRecord) *Session {
	s := &Session{
		id:          rec.ID,
		userID:      rec.UserID,
		status:      rec.Status,
		responses:   append([]models.Response(nil), rec.Responses...),
		profile:     rec.UserInfo,
		convo:       append([]models.ConversationTurn(nil), rec.Conversation...),
		context:     rec.CurrentContext,
		email:       rec.Email,
		createdAt:   rec.CreatedAt,
		updatedAt:   rec.UpdatedAt,
		completedAt: rec.CompletedAt,
	}
	if rec.Results != nil {
		r := *rec.Results
		s.results = &r
	}
	if s.status == "" {
		s.status = models.StatusInProgress
	}
	return s
}

func (s *Session) resetLocked(seq *Sequencer, now time.Time) {
	phase, opening := seq.At(0)
	s.status = models.StatusInProgress
	s.responses = nil
	s.profile = models.UserProfile{}
	s.convo = []models.ConversationTurn{{Role: models.RoleAssistant, Content: opening.Text}}
	s.context = seq.ContextLabel(phase)
	s.results = nil
	s.completedAt = nil
	s.updatedAt = now
}

// ID 評価ID
func (s *Session) ID() string { return s.id }

// UserID 所有者のユーザーID
func (s *Session) UserID() string { return s.userID }

// Len 記録済みの回答数
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

// Completed 結果が確定しているか
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == models.StatusCompleted
}

// Begin は返答待ちの状態にします。すでに返答待ちの場合は ErrReplyPending を返します。
func (s *Session) Begin() error {
	if !s.pending.CompareAndSwap(false, true) {
		return ErrReplyPending
	}
	return nil
}

// End Beginで設定した返答待ちを解除
func (s *Session) End() {
	s.pending.Store(false)
}

// Pending 返答待ちかどうか
func (s *Session) Pending() bool {
	return s.pending.Load()
}

// Turn 準備済みでまだ確定していないやり取り
// Finalの場合は全フェーズの最後の回答で、Nextは空です。
type Turn struct {
	Index     int
	Phase     Phase
	Question  models.Question
	NextPhase Phase
	Next      models.Question
	Final     bool
	Context   string
	At        time.Time
	Response  models.Response
	Messages  []models.ConversationTurn
}

// PrepareTurn はセッションを変更せずに回答に対するモデルリクエストを組み立てます。
func (s *Session) PrepareTurn(seq *Sequencer, answer string, now time.Time) (Turn, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Turn{}, ErrEmptyAnswer
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == models.StatusCompleted {
		return Turn{}, ErrCompleted
	}

	idx := len(s.responses)
	phase, q := seq.At(idx)
	nextPhase, next := seq.At(idx + 1)
	final := idx+1 >= seq.Total()
	prompt := seq.TurnPrompt(nextPhase, next)
	if final {
		nextPhase, next = PhaseClosing, models.Question{}
		prompt = seq.FinalPrompt()
	}

	msgs := make([]models.ConversationTurn, 0, len(s.convo)+2)
	msgs = append(msgs, models.ConversationTurn{Role: models.RoleSystem, Content: prompt})
	msgs = append(msgs, s.convo...)
	msgs = append(msgs, models.ConversationTurn{Role: models.RoleUser, Content: answer})

	return Turn{
		Index:     idx,
		Phase:     phase,
		Question:  q,
		NextPhase: nextPhase,
		Next:      next,
		Final:     final,
		Context:   seq.ContextLabel(nextPhase),
		At:        now,
		Response:  models.Response{QuestionID: q.ID, Answer: answer, Timestamp: now.UnixMilli()},
		Messages:  msgs,
	}, nil
}

// CommitTurn は回答、プロフィール更新、会話2件をまとめて記録します。
func (s *Session) CommitTurn(t Turn, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == models.StatusCompleted {
		return ErrCompleted
	}
	if len(s.responses) != t.Index {
		return ErrStaleTurn
	}

	s.responses = append(s.responses, t.Response)
	ApplyAnswer(&s.profile, t.Phase, t.Question.ID, t.Response.Answer)
	s.convo = append(s.convo,
		models.ConversationTurn{Role: models.RoleUser, Content: t.Response.Answer},
		models.ConversationTurn{Role: models.RoleAssistant, Content: reply},
	)
	s.context = t.Context
	s.updatedAt = t.At
	return nil
}

// Responses 回答のコピーを返す
func (s *Session) Responses() []models.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Response(nil), s.responses...)
}

// Profile これまでに蓄積したプロフィール
func (s *Session) Profile() models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// SetEmail レポートの送信先を記録
func (s *Session) SetEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
	s.updatedAt = time.Now()
	if s.profile.Email == "" {
		s.profile.Email = email
	}
}

// Complete 結果を設定して評価を完了
func (s *Session) Complete(result models.AssessmentResult, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = &result
	s.status = models.StatusCompleted
	s.completedAt = &now
	s.updatedAt = now
}

// Results 確定した結果（未確定ならnil）
func (s *Session) Results() *models.AssessmentResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return nil
	}
	r := *s.results
	return &r
}

// Reset 進捗をすべて破棄して会話をやり直す。完了済みの評価はErrCompletedで変更しない
func (s *Session) Reset(seq *Sequencer, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == models.StatusCompleted {
		return ErrCompleted
	}
	s.resetLocked(seq, now)
	return nil
}

// Snapshot 永続化用の形式を返す
func (s *Session) Snapshot() models.AssessmentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := models.AssessmentRecord{
		ID:                   s.id,
		UserID:               s.userID,
		Status:               s.status,
		Responses:            append([]models.Response{}, s.responses...),
		UserInfo:             s.profile,
		Conversation:         append([]models.ConversationTurn{}, s.convo...),
		CurrentQuestionIndex: len(s.responses),
		CurrentContext:       s.context,
		Email:                s.email,
		CreatedAt:            s.createdAt,
		UpdatedAt:            s.updatedAt,
	}
	if s.results != nil {
		r := *s.results
		rec.Results = &r
	}
	if s.completedAt != nil {
		t := *s.completedAt
		rec.CompletedAt = &t
	}
	return rec
}
