package services

import "sync"

// PlaybackCoordinator は評価ごとの音声再生中フラグを保持します。
// フラグは参考情報で、回答の受付や評価の進行には影響しません。
type PlaybackCoordinator struct {
	mu      sync.RWMutex
	playing map[string]bool
}

// NewPlaybackCoordinator 新しいPlaybackCoordinatorを作成
func NewPlaybackCoordinator() *PlaybackCoordinator {
	return &PlaybackCoordinator{playing: make(map[string]bool)}
}

// Set 評価の再生状態を設定
func (p *PlaybackCoordinator) Set(id string, playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if playing {
		p.playing[id] = true
		return
	}
	delete(p.playing, id)
}

// Playing 評価が再生中かどうか
func (p *PlaybackCoordinator) Playing(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playing[id]
}

// Forget 評価の状態を破棄（削除・リセット時）
func (p *PlaybackCoordinator) Forget(id string) {
	p.Set(id, false)
}
