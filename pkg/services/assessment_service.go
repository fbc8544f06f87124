package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"maturity-navigator-api/pkg/assessment"
	"maturity-navigator-api/pkg/models"
	"maturity-navigator-api/pkg/storage"
)

var (
	// ErrNotOwner 他のユーザーの評価へのアクセス。ハンドラでは404として扱います。
	ErrNotOwner = errors.New("assessment belongs to another user")
	// ErrCompletionFailed 会話の返答を生成できなかった。回答は記録されていません。
	ErrCompletionFailed = errors.New("failed to generate a reply")
	// ErrReplyPending 返答待ちの評価への二重送信
	ErrReplyPending = assessment.ErrReplyPending
)

// DefaultSessionCacheSize メモリに保持するセッション数の既定値
const DefaultSessionCacheSize = 1024

// AssessmentService は評価セッションの開始から完了までを管理します。
// アクティブなセッションはLRUに保持し、追い出された後はストアから復元します。
type AssessmentService struct {
	settings  assessment.Settings
	seq       *assessment.Sequencer
	gate      *assessment.Gate
	scorer    *assessment.Scorer
	completer Completer
	store     storage.Store
	queue     *PersistQueue
	playback  *PlaybackCoordinator
	metrics   *Metrics

	cache  *lru.Cache[string, *assessment.Session]
	loadMu sync.Mutex

	now   func() time.Time
	newID func() string
}

// AssessmentServiceOptions AssessmentServiceの依存関係
type AssessmentServiceOptions struct {
	Settings  assessment.Settings
	Completer Completer
	Store     storage.Store
	Queue     *PersistQueue
	Playback  *PlaybackCoordinator
	Metrics   *Metrics
	CacheSize int
	Extractor assessment.Extractor
}

// NewAssessmentService 設定を検証してサービスを作成
func NewAssessmentService(opts AssessmentServiceOptions) (*AssessmentService, error) {
	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid assessment settings: %w", err)
	}
	if opts.Completer == nil || opts.Store == nil {
		return nil, errors.New("completer and store are required")
	}

	seq, err := assessment.NewSequencer(opts.Settings.Questions, opts.Settings.Flow, opts.Settings.Prompts)
	if err != nil {
		return nil, err
	}
	scorer, err := assessment.NewScorer(opts.Extractor, opts.Settings.Framework)
	if err != nil {
		return nil, err
	}

	size := opts.CacheSize
	if size <= 0 {
		size = DefaultSessionCacheSize
	}
	cache, err := lru.New[string, *assessment.Session](size)
	if err != nil {
		return nil, err
	}

	queue := opts.Queue
	if queue == nil {
		queue = NewPersistQueue(opts.Store, 0, opts.Metrics)
	}
	playback := opts.Playback
	if playback == nil {
		playback = NewPlaybackCoordinator()
	}

	return &AssessmentService{
		settings:  opts.Settings,
		seq:       seq,
		gate:      assessment.NewGate(opts.Settings.Flow.MinQuestionsForCompletion, seq.Total()),
		scorer:    scorer,
		completer: opts.Completer,
		store:     opts.Store,
		queue:     queue,
		playback:  playback,
		metrics:   opts.Metrics,
		cache:     cache,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Settings 読み込まれた評価設定
func (s *AssessmentService) Settings() assessment.Settings { return s.settings }

// Sequencer フェーズの決定に使うシーケンサ
func (s *AssessmentService) Sequencer() *assessment.Sequencer { return s.seq }

// Gate 完了判定
func (s *AssessmentService) Gate() *assessment.Gate { return s.gate }

// Scorer 分析結果の採点器
func (s *AssessmentService) Scorer() *assessment.Scorer { return s.scorer }

// Playback 音声再生フラグの管理
func (s *AssessmentService) Playback() *PlaybackCoordinator { return s.playback }

// SessionState セッションの現在の状態（APIレスポンス用）
type SessionState struct {
	ID          string                   `json:"id"`
	Status      models.AssessmentStatus  `json:"status"`
	Phase       assessment.Phase         `json:"phase"`
	Question    models.Question          `json:"question"`
	Answered    int                      `json:"answered"`
	Total       int                      `json:"total"`
	Progress    int                      `json:"progress"`
	CanComplete bool                     `json:"canComplete"`
	Pending     bool                     `json:"pending"`
	Playing     bool                     `json:"playing"`
	Context     string                   `json:"context"`
	Results     *models.AssessmentResult `json:"results,omitempty"`
}

func (s *AssessmentService) state(sess *assessment.Session) SessionState {
	rec := sess.Snapshot()
	n := len(rec.Responses)
	phase, q := s.seq.At(n)
	return SessionState{
		ID:          rec.ID,
		Status:      rec.Status,
		Phase:       phase,
		Question:    q,
		Answered:    n,
		Total:       s.seq.Total(),
		Progress:    s.seq.Progress(n),
		CanComplete: s.gate.CanForceComplete(n),
		Pending:     sess.Pending(),
		Playing:     s.playback.Playing(rec.ID),
		Context:     rec.CurrentContext,
		Results:     rec.Results,
	}
}

// Start 新しい評価を開始
func (s *AssessmentService) Start(ctx context.Context, userID string) (SessionState, error) {
	sess := assessment.NewSession(s.newID(), userID, s.seq, s.now())
	if err := s.store.Create(ctx, sess.Snapshot()); err != nil {
		return SessionState{}, fmt.Errorf("create assessment: %w", err)
	}
	s.remember(sess)
	log.Printf("✅ 評価を開始しました: %s (user=%s)", sess.ID(), userID)
	return s.state(sess), nil
}

// State 評価の現在の状態
func (s *AssessmentService) State(ctx context.Context, userID, id string) (SessionState, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return SessionState{}, err
	}
	return s.state(sess), nil
}

func (s *AssessmentService) remember(sess *assessment.Session) {
	s.cache.Add(sess.ID(), sess)
	s.metrics.SetActiveSessions(s.cache.Len())
}

// session はキャッシュまたはストアからセッションを取得し、所有者を確認します。
func (s *AssessmentService) session(ctx context.Context, userID, id string) (*assessment.Session, error) {
	sess, ok := s.cache.Get(id)
	if !ok {
		s.loadMu.Lock()
		sess, ok = s.cache.Get(id)
		if !ok {
			rec, err := s.store.Get(ctx, id)
			if err != nil {
				s.loadMu.Unlock()
				return nil, err
			}
			sess = assessment.FromRecord(rec)
			s.remember(sess)
		}
		s.loadMu.Unlock()
	}

	if sess.UserID() != userID {
		return nil, ErrNotOwner
	}
	return sess, nil
}

func (s *AssessmentService) persist(sess *assessment.Session) {
	s.queue.Enqueue(sess.Snapshot())
}

// AnswerResult 回答を送信した結果
type AnswerResult struct {
	Reply       string                   `json:"reply"`
	Phase       assessment.Phase         `json:"phase"`
	Question    *models.Question         `json:"question,omitempty"`
	Progress    int                      `json:"progress"`
	CanComplete bool                     `json:"canComplete"`
	Complete    bool                     `json:"complete"`
	Assessment  *models.AssessmentResult `json:"assessment,omitempty"`
}

// Answer は回答を記録し、モデルに次の発話を生成させます。
// 生成に失敗した場合は何も記録されず、同じ回答を再送信できます。
// 全フェーズを終えた場合はそのまま評価を完了します。
func (s *AssessmentService) Answer(ctx context.Context, userID, id, answer string) (AnswerResult, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return AnswerResult{}, err
	}
	if sess.Completed() {
		return AnswerResult{}, assessment.ErrCompleted
	}
	if err := sess.Begin(); err != nil {
		return AnswerResult{}, err
	}
	defer sess.End()

	turn, err := sess.PrepareTurn(s.seq, answer, s.now())
	if err != nil {
		return AnswerResult{}, err
	}

	reply, err := s.completer.Complete(ctx, "", turn.Messages, s.settings.Models.Conversation)
	s.metrics.ObserveCompletion("chat", err)
	if err != nil {
		log.Printf("❌ 評価 %s の返答生成に失敗しました: %v", id, err)
		return AnswerResult{}, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	if err := sess.CommitTurn(turn, reply); err != nil {
		return AnswerResult{}, err
	}
	s.persist(sess)

	n := turn.Index + 1
	res := AnswerResult{
		Reply:       reply,
		Phase:       turn.NextPhase,
		Progress:    s.seq.Progress(n),
		CanComplete: s.gate.CanForceComplete(n),
	}
	if !turn.Final {
		next := turn.Next
		res.Question = &next
	}
	if s.gate.IsNaturallyComplete(n) {
		result := s.finish(ctx, sess)
		res.Complete = true
		res.Assessment = &result
	}
	return res, nil
}

// Complete は評価を完了して結果を返します。
// 全フェーズを終えていない場合、forceがtrueかつ最小回答数を満たすときだけ完了できます。
func (s *AssessmentService) Complete(ctx context.Context, userID, id string, force bool) (models.AssessmentResult, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return models.AssessmentResult{}, err
	}
	if r := sess.Results(); r != nil && sess.Completed() {
		return *r, nil
	}
	if err := sess.Begin(); err != nil {
		return models.AssessmentResult{}, err
	}
	defer sess.End()

	n := sess.Len()
	if !s.gate.IsNaturallyComplete(n) {
		if !force {
			return models.AssessmentResult{}, &assessment.RefusalError{Threshold: s.seq.Total(), Remaining: s.seq.Total() - n}
		}
		if err := s.gate.CheckForce(n); err != nil {
			return models.AssessmentResult{}, err
		}
	}
	return s.finish(ctx, sess), nil
}

// finish は分析を実行して評価を確定します。分析に失敗した場合は既定スコアの結果で確定します。
func (s *AssessmentService) finish(ctx context.Context, sess *assessment.Session) models.AssessmentResult {
	profile := sess.Profile()
	responses := sess.Responses()

	result, err := s.Analyze(ctx, profile, responses)
	if err != nil {
		log.Printf("⚠️ 評価 %s の分析に失敗したため既定スコアで完了します: %v", sess.ID(), err)
		result = s.scorer.Score("", profile, responses)
	}

	sess.Complete(result, s.now())
	s.persist(sess)
	log.Printf("✅ 評価を完了しました: %s (overall=%.1f %s)", sess.ID(), result.Overall.Score, result.Overall.LevelName)
	return result
}

// Transcript は回答を「Q: 質問 / A: 回答」の形式に並べます。
func (s *AssessmentService) Transcript(responses []models.Response) string {
	var sb strings.Builder
	for i, r := range responses {
		text := r.QuestionID
		if q, ok := s.seq.Bank().Lookup(r.QuestionID); ok {
			text = q.Text
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Q: %s\nA: %s", text, r.Answer)
	}
	return sb.String()
}

// Analyze は回答全体をモデルに分析させ、採点した結果を返します。
func (s *AssessmentService) Analyze(ctx context.Context, profile models.UserProfile, responses []models.Response) (models.AssessmentResult, error) {
	prompt := s.settings.Prompts.AnalysisInstruction
	if s.settings.Prompts.AnalysisFormat != "" {
		prompt += "\n\n" + s.settings.Prompts.AnalysisFormat
	}
	user := fmt.Sprintf("Here is the assessment conversation:\n\n%s", s.Transcript(responses))

	text, err := s.completer.Complete(ctx, prompt, []models.ConversationTurn{{Role: models.RoleUser, Content: user}}, s.settings.Models.Analysis)
	s.metrics.ObserveCompletion("analysis", err)
	if err != nil {
		return models.AssessmentResult{}, fmt.Errorf("analysis: %w", err)
	}

	result := s.scorer.Score(text, profile, responses)
	for d, score := range map[assessment.Dimension]models.DimensionScore{
		assessment.DimensionProductivity:  result.Productivity,
		assessment.DimensionValueCreation: result.ValueCreation,
		assessment.DimensionBusinessModel: result.BusinessModel,
	} {
		if score.Defaulted {
			s.metrics.ObserveDefaulted(string(d))
		}
	}
	return result, nil
}

// Chat は状態を持たない会話の1ターンです。contextはフェーズのラベルです。
func (s *AssessmentService) Chat(ctx context.Context, conversation []models.ConversationTurn, contextLabel string) (string, error) {
	prompt := s.settings.Prompts.ConversationIntro
	if phase := assessment.Phase(contextLabel); assessment.ValidPhase(phase) {
		prompt = s.seq.SystemPrompt(phase)
	}

	reply, err := s.completer.Complete(ctx, prompt, conversation, s.settings.Models.Conversation)
	s.metrics.ObserveCompletion("chat", err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	return reply, nil
}

// Reset 評価の進捗を破棄して最初の質問からやり直す。
// 完了済みの評価の結果は変更できないため ErrCompleted を返します。
func (s *AssessmentService) Reset(ctx context.Context, userID, id string) (SessionState, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return SessionState{}, err
	}
	if err := sess.Begin(); err != nil {
		return SessionState{}, err
	}
	defer sess.End()

	if err := sess.Reset(s.seq, s.now()); err != nil {
		return SessionState{}, err
	}
	s.playback.Forget(id)
	s.persist(sess)
	log.Printf("✅ 評価をリセットしました: %s", id)
	return s.state(sess), nil
}

// SetPlayback 音声再生中フラグを設定
func (s *AssessmentService) SetPlayback(ctx context.Context, userID, id string, playing bool) (SessionState, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return SessionState{}, err
	}
	s.playback.Set(id, playing)
	return s.state(sess), nil
}

// List ユーザーの評価を新しい順に返す
func (s *AssessmentService) List(ctx context.Context, userID string) ([]models.AssessmentRecord, error) {
	if err := s.queue.Flush(ctx); err != nil {
		return nil, err
	}
	return s.store.ListByUser(ctx, userID)
}

// Record 評価の永続化形式。メモリ上にあればその最新状態を返します。
func (s *AssessmentService) Record(ctx context.Context, userID, id string) (models.AssessmentRecord, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return models.AssessmentRecord{}, err
	}
	return sess.Snapshot(), nil
}

// Delete 評価を削除
func (s *AssessmentService) Delete(ctx context.Context, userID, id string) error {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return err
	}
	if sess.Pending() {
		return ErrReplyPending
	}
	// 後続の保存で削除済みの評価が復活しないようにする
	if err := s.queue.Flush(ctx); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	s.cache.Remove(id)
	s.playback.Forget(id)
	s.metrics.SetActiveSessions(s.cache.Len())
	log.Printf("✅ 評価を削除しました: %s", id)
	return nil
}

// RecordEmail はレポートの送信先と結果を保存します。保存はベストエフォートです。
func (s *AssessmentService) RecordEmail(userID, email string, result models.AssessmentResult) models.AssessmentRecord {
	now := s.now()
	info := result.UserInfo
	if info.Email == "" {
		info.Email = email
	}
	rec := models.AssessmentRecord{
		ID:                   s.newID(),
		UserID:               userID,
		Status:               models.StatusCompleted,
		Responses:            append([]models.Response{}, result.Responses...),
		UserInfo:             info,
		Conversation:         []models.ConversationTurn{},
		CurrentQuestionIndex: len(result.Responses),
		Results:              &result,
		Email:                email,
		CreatedAt:            now,
		UpdatedAt:            now,
		CompletedAt:          &now,
	}
	if !s.queue.Enqueue(rec) {
		log.Printf("⚠️ %s 宛ての評価レポートを保存できませんでした", email)
	}
	return rec
}

// Flush 保存待ちのスナップショットを書き込む
func (s *AssessmentService) Flush(ctx context.Context) error {
	return s.queue.Flush(ctx)
}
