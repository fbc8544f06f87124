package services

import (
	"context"
	"log"
	"sync"
	"time"

	"maturity-navigator-api/pkg/models"
	"maturity-navigator-api/pkg/storage"
)

// PersistQueue はスナップショットを1つのゴルーチンで順番に保存します。
// 呼び出し側はブロックされず、保存の失敗はログに記録するだけです。
type PersistQueue struct {
	store   storage.Store
	metrics *Metrics
	timeout time.Duration

	ch        chan persistJob
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// persistJob はスナップショット、またはFlush用の区切り（ackのみ）です。
type persistJob struct {
	rec *models.AssessmentRecord
	ack chan struct{}
}

// NewPersistQueue は容量sizeのキューを作成し、書き込みゴルーチンを開始します。
func NewPersistQueue(store storage.Store, size int, metrics *Metrics) *PersistQueue {
	if size <= 0 {
		size = 256
	}
	q := &PersistQueue{
		store:   store,
		metrics: metrics,
		timeout: 10 * time.Second,
		ch:      make(chan persistJob, size),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue はスナップショットをキューに積みます。満杯の場合は警告を出して破棄します。
// 同じ評価の後続スナップショットが保存されれば最新の状態に追いつきます。
func (q *PersistQueue) Enqueue(rec models.AssessmentRecord) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		log.Printf("⚠️ 永続化キューは停止済みです。評価 %s は保存されません", rec.ID)
		return false
	}

	select {
	case q.ch <- persistJob{rec: &rec}:
		return true
	default:
		log.Printf("⚠️ 永続化キューが満杯のため評価 %s のスナップショットを破棄しました", rec.ID)
		q.metrics.ObservePersistDropped()
		return false
	}
}

func (q *PersistQueue) run() {
	defer close(q.done)
	for job := range q.ch {
		if job.rec != nil {
			q.save(*job.rec)
		}
		if job.ack != nil {
			close(job.ack)
		}
	}
}

func (q *PersistQueue) save(rec models.AssessmentRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.store.Put(ctx, rec); err != nil {
		log.Printf("❌ 評価 %s の保存に失敗しました: %v", rec.ID, err)
		q.metrics.ObservePersistFailure()
	}
}

// Close は新規の受付を止め、キューに残ったスナップショットをすべて保存してから戻ります。
// ctxが先に終了した場合はその時点で戻ります。
func (q *PersistQueue) Close(ctx context.Context) error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush はそれまでに積まれたスナップショットがすべて保存されるまで待ちます。
func (q *PersistQueue) Flush(ctx context.Context) error {
	ack := make(chan struct{})

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil
	}
	select {
	case q.ch <- persistJob{ack: ack}:
		q.mu.RUnlock()
	case <-ctx.Done():
		q.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
