package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"maturity-navigator-api/pkg/models"
)

// LocalStore は評価をユーザーごとのフォルダにJSONファイルとして保存します。
// データベースを用意できない環境やフォールバック先として使います。
type LocalStore struct {
	mu       sync.Mutex
	basePath string
}

// NewLocalStore 保存先ディレクトリを作成してLocalStoreを返す
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Close implements Store.
func (s *LocalStore) Close() error { return nil }

// PathEscapeは"%"をエスケープするため、後から"."と":"を置き換えても異なるIDが同じ名前になることはない
var pathSegmentChars = strings.NewReplacer(".", "%2E", ":", "%3A")

// pathSegment はIDを1つのファイル名として安全かつ単射に変換します。
func pathSegment(id string) string {
	return pathSegmentChars.Replace(url.PathEscape(id))
}

// userPath ユーザーIDからフォルダのパスを作る
func (s *LocalStore) userPath(userID string) string {
	if userID == "" {
		userID = "anonymous"
	}
	return filepath.Join(s.basePath, pathSegment(userID))
}

func fileName(id string) string {
	return pathSegment(id) + ".json"
}

// find はIDに対応するファイルを全ユーザーのフォルダから探します。
func (s *LocalStore) find(id string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.basePath, "*", fileName(id)))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrNotFound
	}
	return matches[0], nil
}

func (s *LocalStore) write(rec models.AssessmentRecord) error {
	dir := s.userPath(rec.UserID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating user directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding assessment %s: %w", rec.ID, err)
	}

	// 書き込み途中のファイルを読まないよう一時ファイル経由で置き換える
	path := filepath.Join(dir, fileName(rec.ID))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing assessment %s: %w", rec.ID, err)
	}
	return os.Rename(tmp, path)
}

func readRecord(path string) (models.AssessmentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.AssessmentRecord{}, err
	}
	var rec models.AssessmentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.AssessmentRecord{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return rec, nil
}

// Create implements Store.
func (s *LocalStore) Create(_ context.Context, rec models.AssessmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.find(rec.ID); err == nil {
		return ErrExists
	}
	return s.write(rec)
}

// Put implements Store.
func (s *LocalStore) Put(_ context.Context, rec models.AssessmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(rec)
}

// Update implements Store.
func (s *LocalStore) Update(_ context.Context, rec models.AssessmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := s.find(rec.ID)
	if err != nil {
		return err
	}
	existing, err := readRecord(path)
	if err != nil {
		return err
	}
	return s.write(MergeRecord(existing, rec))
}

// Get implements Store.
func (s *LocalStore) Get(_ context.Context, id string) (models.AssessmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := s.find(id)
	if err != nil {
		return models.AssessmentRecord{}, err
	}
	return readRecord(path)
}

// Delete implements Store.
func (s *LocalStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := s.find(id)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// ListByUser implements Store.
func (s *LocalStore) ListByUser(_ context.Context, userID string) ([]models.AssessmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.userPath(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []models.AssessmentRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := readRecord(filepath.Join(s.userPath(userID), e.Name()))
		if err != nil {
			return nil, err
		}
		if rec.UserID != userID {
			continue
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}
