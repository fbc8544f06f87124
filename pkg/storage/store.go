package storage

import (
	"context"
	"errors"
	"sort"

	"maturity-navigator-api/pkg/models"
)

var (
	// ErrNotFound 指定したIDの評価が存在しない
	ErrNotFound = errors.New("assessment not found")
	// ErrExists 同じIDの評価がすでに存在する
	ErrExists = errors.New("assessment already exists")
)

// Store は評価ドキュメントの永続化ポートです。
// 実装はSQL（SQLite/MySQL）、ローカルJSONファイル、およびそれらを組み合わせたFallbackStoreです。
type Store interface {
	// Create 新しい評価を保存。同じIDが存在する場合はErrExists
	Create(ctx context.Context, rec models.AssessmentRecord) error
	// Put 評価全体を保存（存在しなければ作成）
	Put(ctx context.Context, rec models.AssessmentRecord) error
	// Update 空でない項目だけを既存の評価にマージ。存在しない場合はErrNotFound
	Update(ctx context.Context, rec models.AssessmentRecord) error
	Get(ctx context.Context, id string) (models.AssessmentRecord, error)
	Delete(ctx context.Context, id string) error
	// ListByUser ユーザーの評価を作成日時の新しい順で返す
	ListByUser(ctx context.Context, userID string) ([]models.AssessmentRecord, error)
	Close() error
}

// MergeRecord は patch の空でない項目を base に上書きした結果を返します。
// IDとUserIDは base のものを維持します。
func MergeRecord(base, patch models.AssessmentRecord) models.AssessmentRecord {
	if patch.Status != "" {
		base.Status = patch.Status
	}
	if patch.Responses != nil {
		base.Responses = patch.Responses
	}
	if patch.UserInfo != (models.UserProfile{}) {
		base.UserInfo = patch.UserInfo
	}
	if patch.Conversation != nil {
		base.Conversation = patch.Conversation
	}
	if patch.CurrentQuestionIndex != 0 {
		base.CurrentQuestionIndex = patch.CurrentQuestionIndex
	}
	if patch.CurrentContext != "" {
		base.CurrentContext = patch.CurrentContext
	}
	if patch.Results != nil {
		base.Results = patch.Results
	}
	if patch.Email != "" {
		base.Email = patch.Email
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = patch.CreatedAt
	}
	if patch.CompletedAt != nil {
		base.CompletedAt = patch.CompletedAt
	}
	if patch.UpdatedAt.After(base.UpdatedAt) {
		base.UpdatedAt = patch.UpdatedAt
	}
	return base
}

// newer は a が b より新しく保存された状態かどうかを返します。同時刻の場合は a を優先します。
func newer(a, b models.AssessmentRecord) bool {
	return !b.UpdatedAt.After(a.UpdatedAt)
}

// sortNewestFirst 作成日時の降順に並べ替え
func sortNewestFirst(recs []models.AssessmentRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
