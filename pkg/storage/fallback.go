package storage

import (
	"context"
	"errors"
	"log"

	"maturity-navigator-api/pkg/models"
)

// FallbackStore はプライマリへの書き込みに失敗した場合にセカンダリへ保存します。
// 読み取りは両方を参照し、UpdatedAtが新しい方を返します。同時刻ならプライマリを優先します。
type FallbackStore struct {
	primary   Store
	secondary Store
}

// NewFallbackStore プライマリとセカンダリを組み合わせたStoreを作成
func NewFallbackStore(primary, secondary Store) *FallbackStore {
	return &FallbackStore{primary: primary, secondary: secondary}
}

func (s *FallbackStore) write(op string, id string, primary, secondary func() error) error {
	err := primary()
	if err == nil || errors.Is(err, ErrExists) {
		return err
	}
	log.Printf("⚠️ プライマリストアの%sに失敗しました (id=%s): %v。ローカルに保存します", op, id, err)
	if ferr := secondary(); ferr != nil {
		return errors.Join(err, ferr)
	}
	return nil
}

// Create implements Store.
func (s *FallbackStore) Create(ctx context.Context, rec models.AssessmentRecord) error {
	return s.write("create", rec.ID,
		func() error { return s.primary.Create(ctx, rec) },
		func() error { return s.secondary.Put(ctx, rec) })
}

// Put implements Store.
func (s *FallbackStore) Put(ctx context.Context, rec models.AssessmentRecord) error {
	return s.write("put", rec.ID,
		func() error { return s.primary.Put(ctx, rec) },
		func() error { return s.secondary.Put(ctx, rec) })
}

// Update implements Store.
func (s *FallbackStore) Update(ctx context.Context, rec models.AssessmentRecord) error {
	err := s.primary.Update(ctx, rec)
	if err == nil {
		return nil
	}
	if serr := s.secondary.Update(ctx, rec); serr == nil {
		return nil
	}
	return err
}

// Get implements Store.
func (s *FallbackStore) Get(ctx context.Context, id string) (models.AssessmentRecord, error) {
	rec, err := s.primary.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Printf("⚠️ プライマリストアの読み込みに失敗しました (id=%s): %v", id, err)
	}
	local, serr := s.secondary.Get(ctx, id)
	switch {
	case err == nil && serr == nil:
		if newer(rec, local) {
			return rec, nil
		}
		return local, nil
	case err == nil:
		return rec, nil
	case serr == nil:
		return local, nil
	}
	return models.AssessmentRecord{}, err
}

// Delete は両方のストアから削除します。どちらかで削除できれば成功です。
func (s *FallbackStore) Delete(ctx context.Context, id string) error {
	perr := s.primary.Delete(ctx, id)
	serr := s.secondary.Delete(ctx, id)
	if perr == nil || serr == nil {
		return nil
	}
	if errors.Is(perr, ErrNotFound) && errors.Is(serr, ErrNotFound) {
		return ErrNotFound
	}
	return errors.Join(perr, serr)
}

// ListByUser は両方のストアの結果をIDで重複排除し、新しい方を残して返します。
func (s *FallbackStore) ListByUser(ctx context.Context, userID string) ([]models.AssessmentRecord, error) {
	primary, perr := s.primary.ListByUser(ctx, userID)
	if perr != nil {
		log.Printf("⚠️ プライマリストアの一覧取得に失敗しました: %v", perr)
	}
	secondary, serr := s.secondary.ListByUser(ctx, userID)
	if perr != nil && serr != nil {
		return nil, errors.Join(perr, serr)
	}

	index := make(map[string]int, len(primary))
	out := make([]models.AssessmentRecord, 0, len(primary)+len(secondary))
	for _, rec := range primary {
		index[rec.ID] = len(out)
		out = append(out, rec)
	}
	for _, rec := range secondary {
		i, ok := index[rec.ID]
		if !ok {
			out = append(out, rec)
			continue
		}
		if !newer(out[i], rec) {
			out[i] = rec
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Close implements Store.
func (s *FallbackStore) Close() error {
	return errors.Join(s.primary.Close(), s.secondary.Close())
}
