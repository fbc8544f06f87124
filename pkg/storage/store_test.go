package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maturity-navigator-api/pkg/models"
)

func openTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func openTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func sampleRecord(id, userID string, created time.Time) models.AssessmentRecord {
	completed := created.Add(10 * time.Minute)
	return models.AssessmentRecord{
		ID:     id,
		UserID: userID,
		Status: models.StatusCompleted,
		Responses: []models.Response{
			{QuestionID: "user-name-role", Answer: "I'm Ana, CIO", Timestamp: created.UnixMilli()},
			{QuestionID: "user-industry", Answer: "Logistics", Timestamp: created.UnixMilli() + 1000},
		},
		UserInfo: models.UserProfile{Name: "Ana", Role: "I'm Ana, CIO", Industry: "Logistics"},
		Conversation: []models.ConversationTurn{
			{Role: models.RoleAssistant, Content: "Hi there!"},
			{Role: models.RoleUser, Content: "I'm Ana, CIO"},
		},
		CurrentQuestionIndex: 2,
		CurrentContext:       "Hi there!",
		Results: &models.AssessmentResult{
			UserInfo:      models.UserProfile{Name: "Ana"},
			Productivity:  models.DimensionScore{Score: 3.2, Level: models.LevelImplementing, LevelName: "Implementing", Strengths: []string{"a"}, Opportunities: []string{"b"}},
			ValueCreation: models.DimensionScore{Score: 1.8, Level: models.LevelExperimenting, LevelName: "Experimenting", Strengths: []string{"c"}, Opportunities: []string{"d"}, Defaulted: true},
			BusinessModel: models.DimensionScore{Score: 1.5, Level: models.LevelExploring, LevelName: "Exploring", Strengths: []string{"e"}, Opportunities: []string{"f"}},
			Overall:       models.OverallScore{Score: 2.1, Level: models.LevelExperimenting, LevelName: "Experimenting"},
			Timestamp:     created.UnixMilli(),
			LowConfidence: true,
		},
		CreatedAt:   created,
		CompletedAt: &completed,
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, openTestSQLStore(t)) })
	t.Run("local", func(t *testing.T) { fn(t, openTestLocalStore(t)) })
}

func TestStore_RoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := sampleRecord("a-1", "user-1", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

		require.NoError(t, s.Create(ctx, rec))
		got, err := s.Get(ctx, "a-1")
		require.NoError(t, err)

		assert.Equal(t, rec.Results.Productivity.Score, got.Results.Productivity.Score)
		assert.Equal(t, rec.Results.Overall, got.Results.Overall)
		assert.Equal(t, rec.Responses, got.Responses)
		assert.True(t, got.Results.ValueCreation.Defaulted)
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
		require.NotNil(t, got.CompletedAt)
		assert.True(t, rec.CompletedAt.Equal(*got.CompletedAt))
	})
}

func TestStore_CreateTwice(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := sampleRecord("a-1", "user-1", time.Now().UTC())

		require.NoError(t, s.Create(ctx, rec))
		assert.ErrorIs(t, s.Create(ctx, rec), ErrExists)
	})
}

func TestStore_UpdateMerges(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := sampleRecord("a-1", "user-1", time.Now().UTC())
		require.NoError(t, s.Create(ctx, rec))

		require.NoError(t, s.Update(ctx, models.AssessmentRecord{ID: "a-1", Email: "ana@example.com"}))

		got, err := s.Get(ctx, "a-1")
		require.NoError(t, err)
		assert.Equal(t, "ana@example.com", got.Email)
		assert.Len(t, got.Responses, 2)
		assert.Equal(t, models.StatusCompleted, got.Status)

		assert.ErrorIs(t, s.Update(ctx, models.AssessmentRecord{ID: "missing"}), ErrNotFound)
	})
}

func TestStore_PutReplaces(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := sampleRecord("a-1", "user-1", time.Now().UTC())
		require.NoError(t, s.Put(ctx, rec))

		rec.Responses = nil
		rec.Results = nil
		rec.Status = models.StatusInProgress
		require.NoError(t, s.Put(ctx, rec))

		got, err := s.Get(ctx, "a-1")
		require.NoError(t, err)
		assert.Empty(t, got.Responses)
		assert.Nil(t, got.Results)
		assert.Equal(t, models.StatusInProgress, got.Status)
	})
}

func TestStore_ListByUserNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.Create(ctx, sampleRecord("old", "user-1", base)))
		require.NoError(t, s.Create(ctx, sampleRecord("new", "user-1", base.Add(time.Hour))))
		require.NoError(t, s.Create(ctx, sampleRecord("other", "user-2", base.Add(2*time.Hour))))

		list, err := s.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "new", list[0].ID)
		assert.Equal(t, "old", list[1].ID)

		empty, err := s.ListByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestStore_Delete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, sampleRecord("a-1", "user-1", time.Now().UTC())))

		require.NoError(t, s.Delete(ctx, "a-1"))
		_, err := s.Get(ctx, "a-1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "a-1"), ErrNotFound)
	})
}

// failingStore はすべての操作でエラーを返すStore
type failingStore struct{}

var errUnavailable = errors.New("store unavailable")

func (failingStore) Create(context.Context, models.AssessmentRecord) error { return errUnavailable }
func (failingStore) Put(context.Context, models.AssessmentRecord) error    { return errUnavailable }
func (failingStore) Update(context.Context, models.AssessmentRecord) error { return errUnavailable }
func (failingStore) Get(context.Context, string) (models.AssessmentRecord, error) {
	return models.AssessmentRecord{}, errUnavailable
}
func (failingStore) Delete(context.Context, string) error { return errUnavailable }
func (failingStore) ListByUser(context.Context, string) ([]models.AssessmentRecord, error) {
	return nil, errUnavailable
}
func (failingStore) Close() error { return nil }

func TestFallbackStore_WritesToSecondaryWhenPrimaryFails(t *testing.T) {
	ctx := context.Background()
	local := openTestLocalStore(t)
	s := NewFallbackStore(failingStore{}, local)

	rec := sampleRecord("a-1", "user-1", time.Now().UTC())
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, "a-1", got.ID)

	list, err := s.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Delete(ctx, "a-1"))
}

func TestFallbackStore_MergesListings(t *testing.T) {
	ctx := context.Background()
	primary := openTestSQLStore(t)
	secondary := openTestLocalStore(t)
	s := NewFallbackStore(primary, secondary)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, primary.Create(ctx, sampleRecord("shared", "user-1", base)))
	require.NoError(t, secondary.Create(ctx, sampleRecord("shared", "user-1", base)))
	require.NoError(t, secondary.Create(ctx, sampleRecord("local-only", "user-1", base.Add(time.Hour))))

	list, err := s.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "local-only", list[0].ID)
}

func TestLocalStore_SimilarUserIDsStaySeparate(t *testing.T) {
	ctx := context.Background()
	s := openTestLocalStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, sampleRecord("secret", "team/alice", base)))
	require.NoError(t, s.Create(ctx, sampleRecord("mine", "team_alice", base)))
	require.NoError(t, s.Create(ctx, sampleRecord("dots", "..", base)))

	list, err := s.ListByUser(ctx, "team_alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0].ID)

	list, err = s.ListByUser(ctx, "team/alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "secret", list[0].ID)

	got, err := s.Get(ctx, "dots")
	require.NoError(t, err)
	assert.Equal(t, "..", got.UserID)
}

func TestLocalStore_ListByUserChecksOwner(t *testing.T) {
	ctx := context.Background()
	s := openTestLocalStore(t)

	// 空のユーザーIDは"anonymous"と同じフォルダを使う
	require.NoError(t, s.Create(ctx, sampleRecord("named", "anonymous", time.Now().UTC())))
	require.NoError(t, s.Create(ctx, sampleRecord("blank", "", time.Now().UTC())))

	list, err := s.ListByUser(ctx, "anonymous")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "named", list[0].ID)
}

// switchableStore はdownの間だけ書き込みと読み込みを失敗させるStore
type switchableStore struct {
	Store
	down bool
}

func (s *switchableStore) Put(ctx context.Context, rec models.AssessmentRecord) error {
	if s.down {
		return errUnavailable
	}
	return s.Store.Put(ctx, rec)
}

func (s *switchableStore) Get(ctx context.Context, id string) (models.AssessmentRecord, error) {
	if s.down {
		return models.AssessmentRecord{}, errUnavailable
	}
	return s.Store.Get(ctx, id)
}

func TestFallbackStore_ReadsNewestCopyAfterPrimaryRecovers(t *testing.T) {
	ctx := context.Background()
	primary := &switchableStore{Store: openTestSQLStore(t)}
	secondary := openTestLocalStore(t)
	s := NewFallbackStore(primary, secondary)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := sampleRecord("a-1", "user-1", base)
	rec.CurrentQuestionIndex = 1
	rec.UpdatedAt = base
	require.NoError(t, s.Create(ctx, rec))

	primary.down = true
	rec.CurrentQuestionIndex = 5
	rec.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, s.Put(ctx, rec))
	primary.down = false

	got, err := s.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.CurrentQuestionIndex)

	list, err := s.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].CurrentQuestionIndex)

	// プライマリに新しい状態が保存されればそちらを返す
	rec.CurrentQuestionIndex = 6
	rec.UpdatedAt = base.Add(2 * time.Minute)
	require.NoError(t, s.Put(ctx, rec))
	got, err = s.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 6, got.CurrentQuestionIndex)
}
