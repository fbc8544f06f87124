package assessment

import "fmt"

// Gate は評価を完了してよいかを判定します。
type Gate struct {
	minThreshold int
	total        int
}

// NewGate は強制完了に必要な回答数 minThreshold と、
// 自然完了となる回答数 total を持つゲートを作成します。
func NewGate(minThreshold, total int) *Gate {
	return &Gate{minThreshold: minThreshold, total: total}
}

// RefusalError は早すぎる強制完了の要求に対して返されます。
// システムの障害ではなく、ユーザーへの案内メッセージを持ちます。
type RefusalError struct {
	Threshold int
	Remaining int
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("please answer %d more question(s) before completing the assessment; at least %d answers are required",
		e.Remaining, e.Threshold)
}

// CanForceComplete n件の回答で早期完了できるか
func (g *Gate) CanForceComplete(n int) bool {
	return n >= g.minThreshold
}

// IsNaturallyComplete n件の回答で全フェーズを終えたか
func (g *Gate) IsNaturallyComplete(n int) bool {
	return n >= g.total
}

// CheckForce は n が閾値未満の場合に *RefusalError を返します。
func (g *Gate) CheckForce(n int) error {
	if g.CanForceComplete(n) {
		return nil
	}
	return &RefusalError{Threshold: g.minThreshold, Remaining: g.minThreshold - n}
}

// Threshold 設定された最小回答数
func (g *Gate) Threshold() int {
	return g.minThreshold
}
